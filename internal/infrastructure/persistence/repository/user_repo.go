package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garyjia/conveyance-bills/internal/application/port"
	"github.com/garyjia/conveyance-bills/internal/domain/entity"
	"github.com/garyjia/conveyance-bills/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const userColumns = `id, name, email, role, supervisor_id, employee_code, designation, created_at, updated_at`

// UserRepository implements port.UserRepository
type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, logger *zap.Logger) port.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new user
func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	query := `
		INSERT INTO users (
			id, name, email, role, supervisor_id, employee_code, designation,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.Role,
		nullString(user.SupervisorID),
		nullString(user.EmployeeCode),
		nullString(user.Designation),
		sqlite.FormatTime(user.CreatedAt),
		sqlite.FormatTime(user.UpdatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create user", zap.String("email", user.Email), zap.Error(err))
		return fmt.Errorf("failed to create user: %w", translateError(err))
	}

	return nil
}

// Update writes every mutable user column
func (r *UserRepository) Update(ctx context.Context, user *entity.User) error {
	query := `
		UPDATE users
		SET name = ?, email = ?, role = ?, supervisor_id = ?, employee_code = ?,
			designation = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		user.Name,
		user.Email,
		user.Role,
		nullString(user.SupervisorID),
		nullString(user.EmployeeCode),
		nullString(user.Designation),
		sqlite.FormatTime(user.UpdatedAt),
		user.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update user", zap.String("id", user.ID), zap.Error(err))
		return fmt.Errorf("failed to update user: %w", translateError(err))
	}

	return requireAffected(result, "user", user.ID)
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	return r.getOne(ctx, "id", id)
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.getOne(ctx, "email", email)
}

// GetByEmployeeCode retrieves a user by employee code
func (r *UserRepository) GetByEmployeeCode(ctx context.Context, code string) (*entity.User, error) {
	return r.getOne(ctx, "employee_code", code)
}

func (r *UserRepository) getOne(ctx context.Context, column, value string) (*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = ?`

	user, err := scanUser(getExecutor(ctx, r.db).QueryRowContext(ctx, query, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get user", zap.String(column, value), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// ListByRole returns users with role ordered by name
func (r *UserRepository) ListByRole(ctx context.Context, role entity.Role) ([]*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role = ? ORDER BY name ASC, id ASC`
	return r.list(ctx, query, role)
}

// ListDirectReports returns users whose supervisor is supervisorID
func (r *UserRepository) ListDirectReports(ctx context.Context, supervisorID string) ([]*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE supervisor_id = ? ORDER BY name ASC, id ASC`
	return r.list(ctx, query, supervisorID)
}

// LockUser is a no-op: transactions begin with BEGIN IMMEDIATE, which
// already holds the database write lock.
func (r *UserRepository) LockUser(ctx context.Context, id string) error {
	return nil
}

func (r *UserRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.User, error) {
	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list users", zap.Error(err))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []*entity.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*entity.User, error) {
	var user entity.User
	var supervisorID, employeeCode, designation sql.NullString

	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Role,
		&supervisorID,
		&employeeCode,
		&designation,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.SupervisorID = stringPtr(supervisorID)
	user.EmployeeCode = stringPtr(employeeCode)
	user.Designation = stringPtr(designation)
	return &user, nil
}

func requireAffected(result sql.Result, kind, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, port.ErrNotFound)
	}
	return nil
}

// Verify interface compliance
var _ port.UserRepository = (*UserRepository)(nil)
