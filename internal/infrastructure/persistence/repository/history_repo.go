package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/conveyance-bills/internal/application/port"
	"github.com/garyjia/conveyance-bills/internal/domain/entity"
	"github.com/garyjia/conveyance-bills/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Append inserts a history row. Rows are never updated or deleted apart
// from the cascade when a draft is removed.
func (r *HistoryRepository) Append(ctx context.Context, history *entity.BillHistory) error {
	query := `
		INSERT INTO bill_history (
			bill_id, status, action, actor_id, comment, created_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		history.BillID,
		history.Status,
		history.Action,
		nullString(history.ActorID),
		history.Comment,
		sqlite.FormatTime(history.Timestamp),
	)
	if err != nil {
		r.logger.Error("Failed to create history record", zap.String("bill_id", history.BillID), zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	history.ID = id
	return nil
}

// ListByBill returns the audit trail ordered by timestamp then id
func (r *HistoryRepository) ListByBill(ctx context.Context, billID string) ([]entity.BillHistory, error) {
	query := `
		SELECT h.id, h.bill_id, h.status, h.action, h.actor_id, h.comment, h.created_at,
			u.id, u.name, u.role, u.supervisor_id
		FROM bill_history h
		LEFT JOIN users u ON u.id = h.actor_id
		WHERE h.bill_id = ?
		ORDER BY h.created_at ASC, h.id ASC
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, billID)
	if err != nil {
		r.logger.Error("Failed to get history by bill ID", zap.String("bill_id", billID), zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	records := []entity.BillHistory{}
	for rows.Next() {
		var record entity.BillHistory
		var actorID, userID, userName, userRole, userSupervisor sql.NullString
		if err := rows.Scan(
			&record.ID,
			&record.BillID,
			&record.Status,
			&record.Action,
			&actorID,
			&record.Comment,
			&record.Timestamp,
			&userID,
			&userName,
			&userRole,
			&userSupervisor,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}

		record.ActorID = stringPtr(actorID)
		if userID.Valid {
			record.Actor = &entity.UserRef{
				ID:           userID.String,
				Name:         userName.String,
				Role:         entity.Role(userRole.String),
				SupervisorID: stringPtr(userSupervisor),
			}
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
