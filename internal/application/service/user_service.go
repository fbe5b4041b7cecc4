package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/conveyance-bills/internal/application/dispatcher"
	"github.com/garyjia/conveyance-bills/internal/application/port"
	"github.com/garyjia/conveyance-bills/internal/domain/entity"
	"github.com/garyjia/conveyance-bills/internal/domain/event"
	"github.com/garyjia/conveyance-bills/internal/domain/workflow"
	"github.com/garyjia/conveyance-bills/pkg/utils"
)

// RegisterInput is the data needed to create a user
type RegisterInput struct {
	Name         string      `json:"name" validate:"required,max=120"`
	Email        string      `json:"email" validate:"required,email,max=254"`
	Role         entity.Role `json:"role" validate:"required,oneof=employee supervisor accounts management"`
	SupervisorID *string     `json:"supervisor_id" validate:"omitempty,uuid"`
	EmployeeCode *string     `json:"employee_code" validate:"omitempty,employeecode"`
	Designation  *string     `json:"designation" validate:"omitempty,max=120"`
}

// ProfileInput holds a partial profile update. Nil fields are left unchanged.
type ProfileInput struct {
	Name         *string `json:"name" validate:"omitempty,min=1,max=120"`
	EmployeeCode *string `json:"employee_code" validate:"omitempty,employeecode"`
	Designation  *string `json:"designation" validate:"omitempty,max=120"`
	SupervisorID *string `json:"supervisor_id" validate:"omitempty,uuid"`

	// ClearSupervisor removes the supervisor; it wins over SupervisorID
	ClearSupervisor bool `json:"clear_supervisor"`
}

// UserService manages users and their reporting lines
type UserService interface {
	Register(ctx context.Context, in RegisterInput) (*entity.User, error)
	UpdateProfile(ctx context.Context, actor entity.Actor, in ProfileInput) (*entity.User, error)
	Get(ctx context.Context, id string) (*entity.User, error)

	// ResolveEmployee finds a user by id or, failing that, by employee code
	ResolveEmployee(ctx context.Context, ref string) (*entity.User, error)

	ListSupervisors(ctx context.Context) ([]*entity.User, error)
	ListDirectReports(ctx context.Context, actor entity.Actor) ([]*entity.User, error)
}

type userServiceImpl struct {
	users      port.UserRepository
	txManager  port.TransactionManager
	dispatcher dispatcher.Dispatcher
	logger     Logger
	now        func() time.Time
}

// NewUserService creates a new UserService. disp may be nil.
func NewUserService(
	users port.UserRepository,
	txManager port.TransactionManager,
	disp dispatcher.Dispatcher,
	logger Logger,
) UserService {
	return &userServiceImpl{
		users:      users,
		txManager:  txManager,
		dispatcher: disp,
		logger:     logger,
		now:        time.Now,
	}
}

// Register creates a user with a lower-cased email and upper-cased employee code.
// Employees and supervisors need an employee code and a designation, and an
// employee must name a supervisor.
func (s *userServiceImpl) Register(ctx context.Context, in RegisterInput) (*entity.User, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if err := checkRegistrationFields(in); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	user := &entity.User{
		ID:          uuid.NewString(),
		Name:        utils.SanitizeString(in.Name),
		Email:       normalizeEmail(in.Email),
		Role:        in.Role,
		Designation: trimmedOrNil(in.Designation),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.EmployeeCode != nil {
		code := normalizeEmployeeCode(*in.EmployeeCode)
		user.EmployeeCode = &code
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.ensureUnique(txCtx, user); err != nil {
			return err
		}
		if in.SupervisorID != nil {
			if err := s.assignSupervisor(txCtx, user, *in.SupervisorID); err != nil {
				return err
			}
		}
		if err := s.users.Create(txCtx, user); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to register user", "error", err, "email", user.Email)
		return nil, err
	}

	s.logger.Info("User registered", "user_id", user.ID, "role", user.Role)
	s.publish(ctx, user.ID)
	return user, nil
}

// UpdateProfile changes the actor's own profile
func (s *userServiceImpl) UpdateProfile(ctx context.Context, actor entity.Actor, in ProfileInput) (*entity.User, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	var user *entity.User
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		user, err = s.users.GetByID(txCtx, actor.ID)
		if err != nil {
			return notFound("user", actor.ID, err)
		}

		if in.Name != nil {
			user.Name = utils.SanitizeString(*in.Name)
		}
		if in.Designation != nil {
			user.Designation = trimmedOrNil(in.Designation)
			if user.Designation == nil && user.Role.InSupervisorTree() {
				return newValidationError("designation", "is required")
			}
		}
		if in.EmployeeCode != nil {
			code := normalizeEmployeeCode(*in.EmployeeCode)
			user.EmployeeCode = &code
			if err := s.ensureUnique(txCtx, user); err != nil {
				return err
			}
		}

		switch {
		case in.ClearSupervisor:
			if user.Role == entity.RoleEmployee {
				return newValidationError("supervisor_id", "is required for employees")
			}
			user.SupervisorID = nil
		case in.SupervisorID != nil:
			if err := s.assignSupervisor(txCtx, user, *in.SupervisorID); err != nil {
				return err
			}
		}

		user.UpdatedAt = s.now().UTC()
		if err := s.users.Update(txCtx, user); err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to update profile", "error", err, "user_id", actor.ID)
		return nil, err
	}

	s.logger.Info("Profile updated", "user_id", user.ID)
	s.publish(ctx, user.ID)
	return user, nil
}

// Get retrieves a user by ID
func (s *userServiceImpl) Get(ctx context.Context, id string) (*entity.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("user", id, err)
	}
	return user, nil
}

// ResolveEmployee accepts a user id or an employee code in any case
func (s *userServiceImpl) ResolveEmployee(ctx context.Context, ref string) (*entity.User, error) {
	return resolveUser(ctx, s.users, ref)
}

// ListSupervisors returns all supervisors ordered by name
func (s *userServiceImpl) ListSupervisors(ctx context.Context) ([]*entity.User, error) {
	users, err := s.users.ListByRole(ctx, entity.RoleSupervisor)
	if err != nil {
		return nil, fmt.Errorf("list supervisors: %w", err)
	}
	return users, nil
}

// ListDirectReports returns the users reporting to the actor
func (s *userServiceImpl) ListDirectReports(ctx context.Context, actor entity.Actor) ([]*entity.User, error) {
	if actor.Role != entity.RoleSupervisor {
		return []*entity.User{}, nil
	}
	users, err := s.users.ListDirectReports(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("list direct reports: %w", err)
	}
	return users, nil
}

func checkRegistrationFields(in RegisterInput) error {
	if !in.Role.InSupervisorTree() {
		return nil
	}
	if in.EmployeeCode == nil || utils.SanitizeString(*in.EmployeeCode) == "" {
		return newValidationError("employee_code", "is required")
	}
	if in.Designation == nil || utils.SanitizeString(*in.Designation) == "" {
		return newValidationError("designation", "is required")
	}
	if in.Role == entity.RoleEmployee && (in.SupervisorID == nil || *in.SupervisorID == "") {
		return newValidationError("supervisor_id", "is required for employees")
	}
	return nil
}

// ensureUnique rejects an email or employee code already used by another user
func (s *userServiceImpl) ensureUnique(ctx context.Context, user *entity.User) error {
	existing, err := s.users.GetByEmail(ctx, user.Email)
	switch {
	case err == nil && existing.ID != user.ID:
		return newValidationError("email", "is already registered")
	case err != nil && !errors.Is(err, port.ErrNotFound):
		return fmt.Errorf("check email: %w", err)
	}

	if user.EmployeeCode == nil {
		return nil
	}
	existing, err = s.users.GetByEmployeeCode(ctx, *user.EmployeeCode)
	switch {
	case err == nil && existing.ID != user.ID:
		return newValidationError("employee_code", "is already in use")
	case err != nil && !errors.Is(err, port.ErrNotFound):
		return fmt.Errorf("check employee code: %w", err)
	}
	return nil
}

// assignSupervisor validates and sets user's supervisor. The supervisor must be
// an existing supervisor and must not already report, directly or not, to user.
func (s *userServiceImpl) assignSupervisor(ctx context.Context, user *entity.User, supervisorID string) error {
	if !user.Role.InSupervisorTree() {
		return newValidationError("supervisor_id", "is only allowed for employees and supervisors")
	}
	if supervisorID == user.ID {
		return newValidationError("supervisor_id", "cannot be yourself")
	}

	sup, err := s.users.GetByID(ctx, supervisorID)
	if err != nil {
		return notFound("supervisor", supervisorID, err)
	}
	if sup.Role != entity.RoleSupervisor {
		return fmt.Errorf("%w: %s has role %s", workflow.ErrNotASupervisor, sup.ID, sup.Role)
	}

	// walk up from the new supervisor; reaching user would close a loop
	seen := map[string]bool{user.ID: true}
	for cur := sup; cur.HasUpline(); {
		next := *cur.SupervisorID
		if seen[next] {
			return newValidationError("supervisor_id", "would create a reporting loop")
		}
		seen[next] = true
		cur, err = s.users.GetByID(ctx, next)
		if errors.Is(err, port.ErrNotFound) {
			break
		}
		if err != nil {
			return fmt.Errorf("load reporting line: %w", err)
		}
	}

	id := sup.ID
	user.SupervisorID = &id
	return nil
}

func (s *userServiceImpl) publish(ctx context.Context, userID string) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeUserChanged, "", userID, nil))
}

// resolveUser looks ref up as a user id first, then as an employee code
func resolveUser(ctx context.Context, users port.UserRepository, ref string) (*entity.User, error) {
	user, err := users.GetByID(ctx, ref)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, port.ErrNotFound) {
		return nil, fmt.Errorf("failed to load user %s: %w", ref, err)
	}

	user, err = users.GetByEmployeeCode(ctx, normalizeEmployeeCode(ref))
	if err != nil {
		return nil, notFound("employee", ref, err)
	}
	return user, nil
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := utils.SanitizeString(*s)
	if v == "" {
		return nil
	}
	return &v
}
