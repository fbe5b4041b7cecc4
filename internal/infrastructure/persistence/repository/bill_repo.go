package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/conveyance-bills/internal/application/port"
	"github.com/garyjia/conveyance-bills/internal/domain/entity"
	"github.com/garyjia/conveyance-bills/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const billColumns = `b.id, b.employee_id, b.company_name, b.company_address, b.format_type,
	b.amount, b.amount_in_words, b.status, b.supervisor_id, b.created_at, b.updated_at`

// BillRepository implements port.BillRepository
type BillRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewBillRepository creates a new bill repository
func NewBillRepository(db *sql.DB, logger *zap.Logger) port.BillRepository {
	return &BillRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts the bill header
func (r *BillRepository) Create(ctx context.Context, bill *entity.Bill) error {
	query := `
		INSERT INTO bills (
			id, employee_id, company_name, company_address, format_type,
			amount, amount_in_words, status, supervisor_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		bill.ID,
		bill.EmployeeID,
		bill.CompanyName,
		bill.CompanyAddress,
		bill.FormatType,
		bill.Amount.String(),
		bill.AmountInWords,
		bill.Status,
		nullString(bill.SupervisorID),
		sqlite.FormatTime(bill.CreatedAt),
		sqlite.FormatTime(bill.UpdatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create bill", zap.String("employee_id", bill.EmployeeID), zap.Error(err))
		return fmt.Errorf("failed to create bill: %w", translateError(err))
	}

	return nil
}

// UpdateHeader writes company, format, amount and updated_at
func (r *BillRepository) UpdateHeader(ctx context.Context, bill *entity.Bill) error {
	query := `
		UPDATE bills
		SET company_name = ?, company_address = ?, format_type = ?,
			amount = ?, amount_in_words = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		bill.CompanyName,
		bill.CompanyAddress,
		bill.FormatType,
		bill.Amount.String(),
		bill.AmountInWords,
		sqlite.FormatTime(bill.UpdatedAt),
		bill.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update bill header", zap.String("bill_id", bill.ID), zap.Error(err))
		return fmt.Errorf("failed to update bill: %w", err)
	}

	return requireAffected(result, "bill", bill.ID)
}

// SetStatus moves the bill to status and records the approving supervisor
func (r *BillRepository) SetStatus(ctx context.Context, billID string, status entity.BillStatus, supervisorID *string, at time.Time) error {
	query := `UPDATE bills SET status = ?, supervisor_id = ?, updated_at = ? WHERE id = ?`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		status,
		nullString(supervisorID),
		sqlite.FormatTime(at),
		billID,
	)
	if err != nil {
		r.logger.Error("Failed to update bill status",
			zap.String("bill_id", billID),
			zap.String("status", status.String()),
			zap.Error(err))
		return fmt.Errorf("failed to update bill status: %w", err)
	}

	return requireAffected(result, "bill", billID)
}

// GetByID loads the bill header. forUpdate is satisfied by the immediate
// transaction lock.
func (r *BillRepository) GetByID(ctx context.Context, id string, forUpdate bool) (*entity.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills b WHERE b.id = ?`

	bill, err := scanBill(getExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get bill by ID", zap.String("bill_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get bill: %w", err)
	}
	return bill, nil
}

// Delete removes the bill; items and history cascade
func (r *BillRepository) Delete(ctx context.Context, id string) error {
	result, err := getExecutor(ctx, r.db).ExecContext(ctx, `DELETE FROM bills WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete bill", zap.String("bill_id", id), zap.Error(err))
		return fmt.Errorf("failed to delete bill: %w", err)
	}
	return requireAffected(result, "bill", id)
}

// ListForActor returns the bills in the actor's role listing, newest first
func (r *BillRepository) ListForActor(ctx context.Context, actor entity.Actor) ([]*entity.Bill, error) {
	var where string
	var args []interface{}

	switch actor.Role {
	case entity.RoleEmployee:
		where, args = `b.employee_id = ?`, []interface{}{actor.ID}
	case entity.RoleSupervisor:
		where = `b.employee_id = ? OR u.supervisor_id = ? OR b.supervisor_id = ?`
		args = []interface{}{actor.ID, actor.ID, actor.ID}
	case entity.RoleAccounts:
		where = `b.status IN (?, ?)`
		args = []interface{}{entity.StatusApprovedBySupervisor, entity.StatusApprovedByManagement}
	case entity.RoleManagement:
		where, args = `b.status = ?`, []interface{}{entity.StatusApprovedByAccounts}
	default:
		return nil, fmt.Errorf("unknown role %q", actor.Role)
	}

	query := `SELECT ` + billColumns + `
		FROM bills b JOIN users u ON u.id = b.employee_id
		WHERE ` + where + `
		ORDER BY b.updated_at DESC, b.id DESC`
	return r.list(ctx, query, args...)
}

// ListDrafts returns the employee's DRAFT bills, newest first
func (r *BillRepository) ListDrafts(ctx context.Context, employeeID string) ([]*entity.Bill, error) {
	query := `SELECT ` + billColumns + `
		FROM bills b
		WHERE b.employee_id = ? AND b.status = ?
		ORDER BY b.updated_at DESC, b.id DESC`
	return r.list(ctx, query, employeeID, entity.StatusDraft)
}

// CountPending returns how many bills wait on the actor
func (r *BillRepository) CountPending(ctx context.Context, actor entity.Actor) (int, error) {
	var where string
	var args []interface{}

	switch actor.Role {
	case entity.RoleEmployee:
		where = `b.employee_id = ? AND b.status IN (?, ?, ?, ?)`
		args = []interface{}{actor.ID, entity.StatusSubmitted, entity.StatusApprovedBySupervisor,
			entity.StatusApprovedByAccounts, entity.StatusApprovedByManagement}
	case entity.RoleSupervisor:
		// A forwarded bill waits on its recorded supervisor only
		where = `b.status = ? AND (b.supervisor_id = ? OR (b.supervisor_id IS NULL AND u.supervisor_id = ?))`
		args = []interface{}{entity.StatusSubmitted, actor.ID, actor.ID}
	case entity.RoleAccounts:
		where = `b.status IN (?, ?)`
		args = []interface{}{entity.StatusApprovedBySupervisor, entity.StatusApprovedByManagement}
	case entity.RoleManagement:
		where, args = `b.status = ?`, []interface{}{entity.StatusApprovedByAccounts}
	default:
		return 0, fmt.Errorf("unknown role %q", actor.Role)
	}

	query := `SELECT COUNT(*) FROM bills b JOIN users u ON u.id = b.employee_id WHERE ` + where

	var count int
	if err := getExecutor(ctx, r.db).QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		r.logger.Error("Failed to count pending bills", zap.String("actor_id", actor.ID), zap.Error(err))
		return 0, fmt.Errorf("failed to count pending bills: %w", err)
	}
	return count, nil
}

func (r *BillRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.Bill, error) {
	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list bills", zap.Error(err))
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}
	defer rows.Close()

	bills := []*entity.Bill{}
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bill: %w", err)
		}
		bills = append(bills, bill)
	}

	return bills, rows.Err()
}

func scanBill(row rowScanner) (*entity.Bill, error) {
	var bill entity.Bill
	var supervisorID sql.NullString

	err := row.Scan(
		&bill.ID,
		&bill.EmployeeID,
		&bill.CompanyName,
		&bill.CompanyAddress,
		&bill.FormatType,
		&bill.Amount,
		&bill.AmountInWords,
		&bill.Status,
		&supervisorID,
		&bill.CreatedAt,
		&bill.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	bill.SupervisorID = stringPtr(supervisorID)
	return &bill, nil
}

// Verify interface compliance
var _ port.BillRepository = (*BillRepository)(nil)
