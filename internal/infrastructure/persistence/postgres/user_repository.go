package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/garyjia/conveyance-bills/internal/application/port"
	"github.com/garyjia/conveyance-bills/internal/domain/entity"
)

const userColumns = `id::text, name, email, role, supervisor_id::text, employee_code, designation, created_at, updated_at`

// UserRepository is the PostgreSQL implementation of port.UserRepository
type UserRepository struct {
	pool   Queryer
	logger *zap.Logger
}

// NewUserRepository creates a UserRepository
func NewUserRepository(pool Queryer, logger *zap.Logger) *UserRepository {
	return &UserRepository{pool: pool, logger: logger}
}

// Create inserts a user
func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	exec := QueryerFromContext(ctx, r.pool)
	_, err := exec.Exec(ctx, `
        INSERT INTO users (id, name, email, role, supervisor_id, employee_code, designation, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, u.ID, u.Name, u.Email, string(u.Role), nullableString(u.SupervisorID),
		nullableString(u.EmployeeCode), nullableString(u.Designation), u.CreatedAt, u.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to create user", zap.String("email", u.Email), zap.Error(err))
		return fmt.Errorf("failed to create user: %w", translatePgError(err))
	}
	return nil
}

// Update writes every mutable column
func (r *UserRepository) Update(ctx context.Context, u *entity.User) error {
	exec := QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `
        UPDATE users
           SET name = $1,
               email = $2,
               role = $3,
               supervisor_id = $4,
               employee_code = $5,
               designation = $6,
               updated_at = $7
         WHERE id = $8
    `, u.Name, u.Email, string(u.Role), nullableString(u.SupervisorID),
		nullableString(u.EmployeeCode), nullableString(u.Designation), u.UpdatedAt, u.ID)
	if err != nil {
		r.logger.Error("Failed to update user", zap.String("id", u.ID), zap.Error(err))
		return fmt.Errorf("failed to update user: %w", translatePgError(err))
	}
	return requireAffected(tag, "user", u.ID)
}

// GetByID finds a user by id
func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	if !validID(id) {
		return nil, port.ErrNotFound
	}
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmail finds a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// GetByEmployeeCode finds a user by employee code
func (r *UserRepository) GetByEmployeeCode(ctx context.Context, code string) (*entity.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE employee_code = $1`, code)
}

// ListByRole returns users with role ordered by name
func (r *UserRepository) ListByRole(ctx context.Context, role entity.Role) ([]*entity.User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users WHERE role = $1 ORDER BY name ASC, id ASC`, string(role))
}

// ListDirectReports returns the users reporting to supervisorID
func (r *UserRepository) ListDirectReports(ctx context.Context, supervisorID string) ([]*entity.User, error) {
	if !validID(supervisorID) {
		return []*entity.User{}, nil
	}
	return r.list(ctx, `SELECT `+userColumns+` FROM users WHERE supervisor_id = $1 ORDER BY name ASC, id ASC`, supervisorID)
}

// LockUser takes a row lock on the user until the transaction ends
func (r *UserRepository) LockUser(ctx context.Context, id string) error {
	if !validID(id) {
		return fmt.Errorf("failed to lock user %s: %w", id, port.ErrNotFound)
	}
	exec := QueryerFromContext(ctx, r.pool)
	var locked string
	if err := exec.QueryRow(ctx, `SELECT id::text FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&locked); err != nil {
		return fmt.Errorf("failed to lock user %s: %w", id, translatePgError(err))
	}
	return nil
}

func (r *UserRepository) findOne(ctx context.Context, query string, arg string) (*entity.User, error) {
	exec := QueryerFromContext(ctx, r.pool)
	u, err := scanUser(exec.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, translatePgError(err)
	}
	return u, nil
}

func (r *UserRepository) list(ctx context.Context, query string, args ...any) ([]*entity.User, error) {
	exec := QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list users", zap.Error(err))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []*entity.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func scanUser(row pgx.Row) (*entity.User, error) {
	var (
		id, name, email, role                   string
		supervisorID, employeeCode, designation *string
		createdAt, updatedAt                    time.Time
	)

	if err := row.Scan(&id, &name, &email, &role, &supervisorID, &employeeCode, &designation, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	return &entity.User{
		ID:           id,
		Name:         name,
		Email:        email,
		Role:         entity.Role(role),
		SupervisorID: supervisorID,
		EmployeeCode: employeeCode,
		Designation:  designation,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}, nil
}

var _ port.UserRepository = (*UserRepository)(nil)
