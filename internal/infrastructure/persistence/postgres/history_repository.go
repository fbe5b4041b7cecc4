package postgres

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/conveyance-bills/internal/application/port"
	"github.com/garyjia/conveyance-bills/internal/domain/entity"
)

// HistoryRepository is the PostgreSQL implementation of port.HistoryRepository
type HistoryRepository struct {
	pool   Queryer
	logger *zap.Logger
}

// NewHistoryRepository creates a HistoryRepository
func NewHistoryRepository(pool Queryer, logger *zap.Logger) *HistoryRepository {
	return &HistoryRepository{pool: pool, logger: logger}
}

// Append inserts a history row and sets its ID
func (r *HistoryRepository) Append(ctx context.Context, h *entity.BillHistory) error {
	exec := QueryerFromContext(ctx, r.pool)
	err := exec.QueryRow(ctx, `
        INSERT INTO bill_history (bill_id, status, action, actor_id, comment, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id
    `, h.BillID, string(h.Status), string(h.Action), nullableString(h.ActorID), h.Comment, h.Timestamp).Scan(&h.ID)
	if err != nil {
		r.logger.Error("Failed to create history record", zap.String("bill_id", h.BillID), zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}
	return nil
}

// ListByBill returns the audit trail ordered by timestamp then id
func (r *HistoryRepository) ListByBill(ctx context.Context, billID string) ([]entity.BillHistory, error) {
	if !validID(billID) {
		return []entity.BillHistory{}, nil
	}

	exec := QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT h.id, h.bill_id::text, h.status, h.action, h.actor_id::text, h.comment, h.created_at,
               u.id::text, u.name, u.role, u.supervisor_id::text
          FROM bill_history h
          LEFT JOIN users u ON u.id = h.actor_id
         WHERE h.bill_id = $1
         ORDER BY h.created_at ASC, h.id ASC
    `, billID)
	if err != nil {
		r.logger.Error("Failed to get history by bill ID", zap.String("bill_id", billID), zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	records := []entity.BillHistory{}
	for rows.Next() {
		var (
			h                                   entity.BillHistory
			status, action                      string
			actorID                             *string
			timestamp                           time.Time
			userID, userName, userRole, userSup *string
		)
		if err := rows.Scan(&h.ID, &h.BillID, &status, &action, &actorID, &h.Comment, &timestamp,
			&userID, &userName, &userRole, &userSup); err != nil {
			return nil, err
		}

		h.Status = entity.BillStatus(status)
		h.Action = entity.HistoryAction(action)
		h.ActorID = actorID
		h.Timestamp = timestamp.UTC()
		if userID != nil {
			h.Actor = &entity.UserRef{ID: *userID, SupervisorID: userSup}
			if userName != nil {
				h.Actor.Name = *userName
			}
			if userRole != nil {
				h.Actor.Role = entity.Role(*userRole)
			}
		}
		records = append(records, h)
	}
	return records, rows.Err()
}

var _ port.HistoryRepository = (*HistoryRepository)(nil)
