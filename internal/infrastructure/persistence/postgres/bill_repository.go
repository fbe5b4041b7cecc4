package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/conveyance-bills/internal/application/port"
	"github.com/garyjia/conveyance-bills/internal/domain/entity"
)

const billColumns = `b.id::text, b.employee_id::text, b.company_name, b.company_address, b.format_type,
               b.amount::text, b.amount_in_words, b.status, b.supervisor_id::text, b.created_at, b.updated_at`

// BillRepository is the PostgreSQL implementation of port.BillRepository
type BillRepository struct {
	pool   Queryer
	logger *zap.Logger
}

// NewBillRepository creates a BillRepository
func NewBillRepository(pool Queryer, logger *zap.Logger) *BillRepository {
	return &BillRepository{pool: pool, logger: logger}
}

// Create inserts the bill header
func (r *BillRepository) Create(ctx context.Context, b *entity.Bill) error {
	exec := QueryerFromContext(ctx, r.pool)
	_, err := exec.Exec(ctx, `
        INSERT INTO bills (id, employee_id, company_name, company_address, format_type,
                           amount, amount_in_words, status, supervisor_id, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6::text::numeric, $7, $8, $9, $10, $11)
    `, b.ID, b.EmployeeID, b.CompanyName, b.CompanyAddress, string(b.FormatType),
		b.Amount.String(), b.AmountInWords, string(b.Status), nullableString(b.SupervisorID),
		b.CreatedAt, b.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to create bill", zap.String("employee_id", b.EmployeeID), zap.Error(err))
		return fmt.Errorf("failed to create bill: %w", translatePgError(err))
	}
	return nil
}

// UpdateHeader writes company, format, amount and updated_at
func (r *BillRepository) UpdateHeader(ctx context.Context, b *entity.Bill) error {
	exec := QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `
        UPDATE bills
           SET company_name = $1,
               company_address = $2,
               format_type = $3,
               amount = $4::text::numeric,
               amount_in_words = $5,
               updated_at = $6
         WHERE id = $7
    `, b.CompanyName, b.CompanyAddress, string(b.FormatType), b.Amount.String(),
		b.AmountInWords, b.UpdatedAt, b.ID)
	if err != nil {
		r.logger.Error("Failed to update bill header", zap.String("bill_id", b.ID), zap.Error(err))
		return fmt.Errorf("failed to update bill: %w", translatePgError(err))
	}
	return requireAffected(tag, "bill", b.ID)
}

// SetStatus moves the bill to status and records the approving supervisor
func (r *BillRepository) SetStatus(ctx context.Context, billID string, status entity.BillStatus, supervisorID *string, at time.Time) error {
	exec := QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `
        UPDATE bills
           SET status = $1,
               supervisor_id = $2,
               updated_at = $3
         WHERE id = $4
    `, string(status), nullableString(supervisorID), at, billID)
	if err != nil {
		r.logger.Error("Failed to update bill status", zap.String("bill_id", billID), zap.Error(err))
		return fmt.Errorf("failed to update bill status: %w", translatePgError(err))
	}
	return requireAffected(tag, "bill", billID)
}

// GetByID loads the header, locking the row when forUpdate is set
func (r *BillRepository) GetByID(ctx context.Context, id string, forUpdate bool) (*entity.Bill, error) {
	if !validID(id) {
		return nil, port.ErrNotFound
	}

	query := `SELECT ` + billColumns + ` FROM bills b WHERE b.id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	exec := QueryerFromContext(ctx, r.pool)
	b, err := scanBill(exec.QueryRow(ctx, query, id))
	if err != nil {
		return nil, translatePgError(err)
	}
	return b, nil
}

// Delete removes the bill; items and history cascade
func (r *BillRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return port.ErrNotFound
	}
	exec := QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `DELETE FROM bills WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete bill", zap.String("bill_id", id), zap.Error(err))
		return fmt.Errorf("failed to delete bill: %w", err)
	}
	return requireAffected(tag, "bill", id)
}

// ListForActor returns the bills in the actor's role listing, newest first
func (r *BillRepository) ListForActor(ctx context.Context, actor entity.Actor) ([]*entity.Bill, error) {
	var where string
	var args []any

	switch actor.Role {
	case entity.RoleEmployee:
		where, args = `b.employee_id = $1`, []any{actor.ID}
	case entity.RoleSupervisor:
		where, args = `b.employee_id = $1 OR u.supervisor_id = $1 OR b.supervisor_id = $1`, []any{actor.ID}
	case entity.RoleAccounts:
		where = `b.status IN ($1, $2)`
		args = []any{string(entity.StatusApprovedBySupervisor), string(entity.StatusApprovedByManagement)}
	case entity.RoleManagement:
		where, args = `b.status = $1`, []any{string(entity.StatusApprovedByAccounts)}
	default:
		return nil, fmt.Errorf("unknown role %q", actor.Role)
	}
	if (actor.Role == entity.RoleEmployee || actor.Role == entity.RoleSupervisor) && !validID(actor.ID) {
		return []*entity.Bill{}, nil
	}

	return r.list(ctx, `
        SELECT `+billColumns+`
          FROM bills b
          JOIN users u ON u.id = b.employee_id
         WHERE `+where+`
         ORDER BY b.updated_at DESC, b.id DESC
    `, args...)
}

// ListDrafts returns the employee's DRAFT bills, newest first
func (r *BillRepository) ListDrafts(ctx context.Context, employeeID string) ([]*entity.Bill, error) {
	if !validID(employeeID) {
		return []*entity.Bill{}, nil
	}
	return r.list(ctx, `
        SELECT `+billColumns+`
          FROM bills b
         WHERE b.employee_id = $1 AND b.status = $2
         ORDER BY b.updated_at DESC, b.id DESC
    `, employeeID, string(entity.StatusDraft))
}

// CountPending returns how many bills wait on the actor
func (r *BillRepository) CountPending(ctx context.Context, actor entity.Actor) (int, error) {
	var where string
	var args []any

	switch actor.Role {
	case entity.RoleEmployee:
		where = `b.employee_id = $1 AND b.status IN ($2, $3, $4, $5)`
		args = []any{actor.ID, string(entity.StatusSubmitted), string(entity.StatusApprovedBySupervisor),
			string(entity.StatusApprovedByAccounts), string(entity.StatusApprovedByManagement)}
	case entity.RoleSupervisor:
		// A forwarded bill waits on its recorded supervisor only
		where = `b.status = $1 AND (b.supervisor_id = $2 OR (b.supervisor_id IS NULL AND u.supervisor_id = $2))`
		args = []any{string(entity.StatusSubmitted), actor.ID}
	case entity.RoleAccounts:
		where = `b.status IN ($1, $2)`
		args = []any{string(entity.StatusApprovedBySupervisor), string(entity.StatusApprovedByManagement)}
	case entity.RoleManagement:
		where, args = `b.status = $1`, []any{string(entity.StatusApprovedByAccounts)}
	default:
		return 0, fmt.Errorf("unknown role %q", actor.Role)
	}
	if (actor.Role == entity.RoleEmployee || actor.Role == entity.RoleSupervisor) && !validID(actor.ID) {
		return 0, nil
	}

	exec := QueryerFromContext(ctx, r.pool)
	var count int
	err := exec.QueryRow(ctx, `
        SELECT COUNT(*)
          FROM bills b
          JOIN users u ON u.id = b.employee_id
         WHERE `+where, args...).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to count pending bills", zap.String("actor_id", actor.ID), zap.Error(err))
		return 0, fmt.Errorf("failed to count pending bills: %w", err)
	}
	return count, nil
}

func (r *BillRepository) list(ctx context.Context, query string, args ...any) ([]*entity.Bill, error) {
	exec := QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list bills", zap.Error(err))
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}
	defer rows.Close()

	bills := []*entity.Bill{}
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

func scanBill(row pgx.Row) (*entity.Bill, error) {
	var (
		id, employeeID, companyName, companyAddress string
		formatType, amount, amountInWords, status   string
		supervisorID                                *string
		createdAt, updatedAt                        time.Time
	)

	if err := row.Scan(&id, &employeeID, &companyName, &companyAddress, &formatType,
		&amount, &amountInWords, &status, &supervisorID, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q on bill %s: %w", amount, id, err)
	}

	return &entity.Bill{
		ID:             id,
		EmployeeID:     employeeID,
		CompanyName:    companyName,
		CompanyAddress: companyAddress,
		FormatType:     entity.FormatType(formatType),
		Amount:         parsed,
		AmountInWords:  amountInWords,
		Status:         entity.BillStatus(status),
		SupervisorID:   supervisorID,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}, nil
}

var _ port.BillRepository = (*BillRepository)(nil)
