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

const itemColumns = `i.id, i.bill_id::text, i.item_date, i.from_location, i.to_location,
               i.transport, i.purpose, i.amount::text, i.attachment_url`

// ItemRepository is the PostgreSQL implementation of port.ItemRepository
type ItemRepository struct {
	pool   Queryer
	logger *zap.Logger
}

// NewItemRepository creates an ItemRepository
func NewItemRepository(pool Queryer, logger *zap.Logger) *ItemRepository {
	return &ItemRepository{pool: pool, logger: logger}
}

// ReplaceForBill deletes the bill's items and inserts items, assigning IDs in place
func (r *ItemRepository) ReplaceForBill(ctx context.Context, billID string, items []entity.BillItem) error {
	exec := QueryerFromContext(ctx, r.pool)

	if _, err := exec.Exec(ctx, `DELETE FROM bill_items WHERE bill_id = $1`, billID); err != nil {
		r.logger.Error("Failed to delete bill items", zap.String("bill_id", billID), zap.Error(err))
		return fmt.Errorf("failed to delete bill items: %w", err)
	}

	for i := range items {
		item := &items[i]
		err := exec.QueryRow(ctx, `
        INSERT INTO bill_items (bill_id, item_date, from_location, to_location, transport,
                                purpose, amount, attachment_url)
        VALUES ($1, $2, $3, $4, $5, $6, $7::text::numeric, $8)
        RETURNING id
    `, billID, item.Date, item.From, item.To, item.Transport, item.Purpose,
			item.Amount.String(), nullableString(item.AttachmentURL)).Scan(&item.ID)
		if err != nil {
			r.logger.Error("Failed to create bill item", zap.String("bill_id", billID), zap.Int("index", i), zap.Error(err))
			return fmt.Errorf("failed to create bill item: %w", err)
		}
		item.BillID = billID
	}

	return nil
}

// ListByBill returns the bill's items ordered by date then id
func (r *ItemRepository) ListByBill(ctx context.Context, billID string) ([]entity.BillItem, error) {
	if !validID(billID) {
		return []entity.BillItem{}, nil
	}

	exec := QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT `+itemColumns+`
          FROM bill_items i
         WHERE i.bill_id = $1
         ORDER BY i.item_date ASC, i.id ASC
    `, billID)
	if err != nil {
		r.logger.Error("Failed to get items by bill ID", zap.String("bill_id", billID), zap.Error(err))
		return nil, fmt.Errorf("failed to get items: %w", err)
	}
	defer rows.Close()

	items := []entity.BillItem{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// FindForEmployeeOnDay returns items of the employee's bills dated in
// [dayStart, dayEnd), skipping excludeBillID when it is not empty
func (r *ItemRepository) FindForEmployeeOnDay(ctx context.Context, employeeID string, dayStart, dayEnd time.Time, excludeBillID string) ([]entity.ClaimedItem, error) {
	query := `
        SELECT ` + itemColumns + `, b.status
          FROM bill_items i
          JOIN bills b ON b.id = i.bill_id
         WHERE b.employee_id = $1
           AND i.item_date >= $2 AND i.item_date < $3`
	args := []any{employeeID, dayStart, dayEnd}
	if validID(excludeBillID) {
		query += `
           AND b.id <> $4`
		args = append(args, excludeBillID)
	}
	query += `
         ORDER BY i.item_date ASC, i.id ASC`

	exec := QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, args...)
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
		var status string
		item, err := scanItem(rows, &status)
		if err != nil {
			return nil, err
		}
		claimed = append(claimed, entity.ClaimedItem{BillItem: *item, BillStatus: entity.BillStatus(status)})
	}
	return claimed, rows.Err()
}

func scanItem(row pgx.Row, extra ...any) (*entity.BillItem, error) {
	var (
		id                                   int64
		billID, from, to, transport, purpose string
		amount                               string
		date                                 time.Time
		attachment                           *string
	)

	dest := append([]any{&id, &billID, &date, &from, &to, &transport, &purpose, &amount, &attachment}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q on item %d: %w", amount, id, err)
	}

	return &entity.BillItem{
		ID:            id,
		BillID:        billID,
		Date:          date.UTC(),
		From:          from,
		To:            to,
		Transport:     transport,
		Purpose:       purpose,
		Amount:        parsed,
		AttachmentURL: attachment,
	}, nil
}

var _ port.ItemRepository = (*ItemRepository)(nil)
