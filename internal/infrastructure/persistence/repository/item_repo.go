package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/conveyance-bills/internal/application/port"
	"github.com/garyjia/conveyance-bills/internal/domain/entity"
	"github.com/garyjia/conveyance-bills/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// ItemRepository implements port.ItemRepository
type ItemRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewItemRepository creates a new bill item repository
func NewItemRepository(db *sql.DB, logger *zap.Logger) port.ItemRepository {
	return &ItemRepository{
		db:     db,
		logger: logger,
	}
}

// ReplaceForBill deletes the bill's items and inserts items, assigning IDs in place
func (r *ItemRepository) ReplaceForBill(ctx context.Context, billID string, items []entity.BillItem) error {
	exec := getExecutor(ctx, r.db)

	if _, err := exec.ExecContext(ctx, `DELETE FROM bill_items WHERE bill_id = ?`, billID); err != nil {
		r.logger.Error("Failed to delete bill items", zap.String("bill_id", billID), zap.Error(err))
		return fmt.Errorf("failed to delete bill items: %w", err)
	}

	query := `
		INSERT INTO bill_items (
			bill_id, item_date, from_location, to_location, transport,
			purpose, amount, attachment_url
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	for i := range items {
		item := &items[i]
		result, err := exec.ExecContext(ctx, query,
			billID,
			sqlite.FormatTime(item.Date),
			item.From,
			item.To,
			item.Transport,
			item.Purpose,
			item.Amount.String(),
			nullString(item.AttachmentURL),
		)
		if err != nil {
			r.logger.Error("Failed to create bill item", zap.String("bill_id", billID), zap.Int("index", i), zap.Error(err))
			return fmt.Errorf("failed to create bill item: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}

		item.ID = id
		item.BillID = billID
	}

	return nil
}

// ListByBill returns the bill's items ordered by date then id
func (r *ItemRepository) ListByBill(ctx context.Context, billID string) ([]entity.BillItem, error) {
	query := `
		SELECT id, bill_id, item_date, from_location, to_location, transport,
			purpose, amount, attachment_url
		FROM bill_items
		WHERE bill_id = ?
		ORDER BY item_date ASC, id ASC
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, billID)
	if err != nil {
		r.logger.Error("Failed to get items by bill ID", zap.String("bill_id", billID), zap.Error(err))
		return nil, fmt.Errorf("failed to get items: %w", err)
	}
	defer rows.Close()

	items := []entity.BillItem{}
	for rows.Next() {
		var item entity.BillItem
		var attachment sql.NullString
		if err := rows.Scan(
			&item.ID,
			&item.BillID,
			&item.Date,
			&item.From,
			&item.To,
			&item.Transport,
			&item.Purpose,
			&item.Amount,
			&attachment,
		); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		item.AttachmentURL = stringPtr(attachment)
		items = append(items, item)
	}

	return items, rows.Err()
}

// FindForEmployeeOnDay returns items of the employee's bills dated in
// [dayStart, dayEnd), skipping excludeBillID when it is not empty
func (r *ItemRepository) FindForEmployeeOnDay(ctx context.Context, employeeID string, dayStart, dayEnd time.Time, excludeBillID string) ([]entity.ClaimedItem, error) {
	query := `
		SELECT i.id, i.bill_id, i.item_date, i.from_location, i.to_location,
			i.transport, i.purpose, i.amount, i.attachment_url, b.status
		FROM bill_items i
		JOIN bills b ON b.id = i.bill_id
		WHERE b.employee_id = ?
			AND i.item_date >= ? AND i.item_date < ?
			AND b.id <> ?
		ORDER BY i.item_date ASC, i.id ASC
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query,
		employeeID,
		sqlite.FormatTime(dayStart),
		sqlite.FormatTime(dayEnd),
		excludeBillID,
	)
	if err != nil {
		r.logger.Error("Failed to find items for day",
			zap.String("employee_id", employeeID),
			zap.Time("day", dayStart),
			zap.Error(err))
		return nil, fmt.Errorf("failed to find items: %w", err)
	}
	defer rows.Close()

	var claimed []entity.ClaimedItem
	for rows.Next() {
		var c entity.ClaimedItem
		var attachment sql.NullString
		if err := rows.Scan(
			&c.ID,
			&c.BillID,
			&c.Date,
			&c.From,
			&c.To,
			&c.Transport,
			&c.Purpose,
			&c.Amount,
			&attachment,
			&c.BillStatus,
		); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		c.AttachmentURL = stringPtr(attachment)
		claimed = append(claimed, c)
	}

	return claimed, rows.Err()
}

// Verify interface compliance
var _ port.ItemRepository = (*ItemRepository)(nil)
