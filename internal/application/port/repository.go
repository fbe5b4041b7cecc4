package port

import (
	"context"
	"errors"
	"time"

	"github.com/garyjia/conveyance-bills/internal/domain/entity"
)

// ErrNotFound is returned by repositories when a row does not exist
var ErrNotFound = errors.New("record not found")

// ErrConflict is returned by repositories when a unique constraint is violated
var ErrConflict = errors.New("record already exists")

// UserRepository defines persistence operations for User
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	Update(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	GetByEmployeeCode(ctx context.Context, code string) (*entity.User, error)

	// ListByRole returns users with role ordered by name
	ListByRole(ctx context.Context, role entity.Role) ([]*entity.User, error)

	// ListDirectReports returns users whose supervisor is supervisorID, ordered by name
	ListDirectReports(ctx context.Context, supervisorID string) ([]*entity.User, error)

	// LockUser takes a row lock on the user for the rest of the transaction.
	// Stores that lock the whole database per transaction may treat it as a no-op.
	LockUser(ctx context.Context, id string) error
}

// BillRepository defines persistence operations for the Bill header
type BillRepository interface {
	Create(ctx context.Context, bill *entity.Bill) error

	// UpdateHeader writes company, format, amount and updated_at
	UpdateHeader(ctx context.Context, bill *entity.Bill) error

	SetStatus(ctx context.Context, billID string, status entity.BillStatus, supervisorID *string, at time.Time) error

	// GetByID loads the header only. forUpdate locks the row where supported.
	GetByID(ctx context.Context, id string, forUpdate bool) (*entity.Bill, error)

	// Delete removes the bill together with its items and history
	Delete(ctx context.Context, id string) error

	// ListForActor returns the bills visible in the actor's role listing, newest first
	ListForActor(ctx context.Context, actor entity.Actor) ([]*entity.Bill, error)

	// ListDrafts returns the employee's DRAFT bills, newest first
	ListDrafts(ctx context.Context, employeeID string) ([]*entity.Bill, error)

	// CountPending returns how many bills wait on the actor
	CountPending(ctx context.Context, actor entity.Actor) (int, error)
}

// ItemRepository defines persistence operations for BillItem
type ItemRepository interface {
	// ReplaceForBill deletes the bill's items and inserts items, assigning IDs in place
	ReplaceForBill(ctx context.Context, billID string, items []entity.BillItem) error

	// ListByBill returns the bill's items ordered by date then id
	ListByBill(ctx context.Context, billID string) ([]entity.BillItem, error)

	// FindForEmployeeOnDay returns items of the employee's bills dated in
	// [dayStart, dayEnd), skipping excludeBillID when it is not empty
	FindForEmployeeOnDay(ctx context.Context, employeeID string, dayStart, dayEnd time.Time, excludeBillID string) ([]entity.ClaimedItem, error)
}

// HistoryRepository defines persistence operations for BillHistory
type HistoryRepository interface {
	// Append inserts a history row and sets its ID
	Append(ctx context.Context, history *entity.BillHistory) error

	// ListByBill returns the audit trail ordered by timestamp then id, with
	// the actor reference joined
	ListByBill(ctx context.Context, billID string) ([]entity.BillHistory, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
