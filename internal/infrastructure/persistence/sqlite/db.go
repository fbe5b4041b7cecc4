package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/garyjia/conveyance-bills/internal/application/port"
	"github.com/garyjia/conveyance-bills/pkg/database"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const txKey contextKey = "tx"

// TimeLayout is the fixed-width UTC layout every timestamp column is written
// with, so range predicates can compare the stored text directly.
const TimeLayout = "2006-01-02 15:04:05.000000"

// DB implements TransactionManager on top of database.DB, carrying the open
// transaction through the context
type DB struct {
	*sql.DB
	base *database.DB
}

// NewDB creates a new database wrapper
func NewDB(base *database.DB) *DB {
	return &DB{
		DB:   base.DB,
		base: base,
	}
}

// WithTransaction implements port.TransactionManager
// Executes the provided function within a database transaction
func (db *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	// Reuse an enclosing transaction
	if tx := extractTx(ctx); tx != nil {
		return fn(ctx)
	}

	return db.base.WithTransaction(ctx, func(tx *sql.Tx) error {
		return fn(context.WithValue(ctx, txKey, tx))
	})
}

// extractTx retrieves transaction from context if present
func extractTx(ctx context.Context) *sql.Tx {
	if tx, ok := ctx.Value(txKey).(*sql.Tx); ok {
		return tx
	}
	return nil
}

// ExecutorFrom returns the transaction stored in ctx by WithTransaction,
// or fallback when ctx carries none.
func ExecutorFrom(ctx context.Context, fallback *sql.DB) Executor {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return fallback
}

// Executor covers both *sql.DB and *sql.Tx
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// FormatTime renders t in TimeLayout
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Verify interface compliance
var _ port.TransactionManager = (*DB)(nil)
