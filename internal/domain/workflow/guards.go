package workflow

import (
	"fmt"

	"github.com/garyjia/conveyance-bills/internal/domain/entity"
)

// all combines guards; the first failing guard's error is returned
func all(guards ...GuardFunc) GuardFunc {
	return func(in *Input) error {
		for _, g := range guards {
			if err := g(in); err != nil {
				return err
			}
		}
		return nil
	}
}

func requireRole(roles ...entity.Role) GuardFunc {
	return func(in *Input) error {
		for _, r := range roles {
			if in.Actor.Role == r {
				return nil
			}
		}
		return fmt.Errorf("%w: role %s may not act on a %s bill", ErrUnauthorized, in.Actor.Role, in.Bill.Status)
	}
}

// actsForOwner allows employees to submit their own bills and supervisors to
// submit for anyone inside the supervisor tree.
func actsForOwner(in *Input) error {
	switch in.Actor.Role {
	case entity.RoleEmployee:
		if in.Actor.ID == in.Owner.ID {
			return nil
		}
		return fmt.Errorf("%w: employees may only submit their own bills", ErrUnauthorized)
	case entity.RoleSupervisor:
		if in.Owner.Role.InSupervisorTree() {
			return nil
		}
		return fmt.Errorf("%w: bill owner role %s cannot own bills", ErrUnauthorized, in.Owner.Role)
	case entity.RoleAccounts, entity.RoleManagement:
		return fmt.Errorf("%w: role %s may not submit bills", ErrUnauthorized, in.Actor.Role)
	default:
		return fmt.Errorf("%w: unknown role %q", ErrUnauthorized, in.Actor.Role)
	}
}

func autoApproves(in *Input) error {
	if ShouldAutoApprove(in.submitter(), in.Owner) {
		return nil
	}
	return fmt.Errorf("%w: submit does not qualify for auto-approval", ErrUnauthorized)
}

// hasApprover rejects a submit that ResolveApprovingSupervisor would answer
// with nil: a supervisor without an upline submitting for someone outside their
// direct reports, or an owner with no supervisor.
func hasApprover(in *Input) error {
	approver := in.Owner.SupervisorID
	if s := in.submitter(); s != nil && s.Role == entity.RoleSupervisor {
		approver = s.SupervisorID
	}
	if nonEmpty(approver) == nil {
		return fmt.Errorf("%w: bill %s", ErrNoApprover, in.Bill.ID)
	}
	return nil
}

func isApprovingSupervisor(in *Input) error {
	if in.Actor.Role != entity.RoleSupervisor {
		return fmt.Errorf("%w: only supervisors act on SUBMITTED bills", ErrUnauthorized)
	}
	approver := ResolveApprovingSupervisor(in.Snapshot)
	if approver == nil || *approver != in.Actor.ID {
		return fmt.Errorf("%w: %s is not the approving supervisor for bill %s", ErrUnauthorized, in.Actor.ID, in.Bill.ID)
	}
	return nil
}

func validForwardTarget(in *Input) error {
	target := in.ForwardTo
	if target == nil {
		return fmt.Errorf("%w: next supervisor is required", ErrInvalidForwardTarget)
	}
	if target.Role != entity.RoleSupervisor {
		return fmt.Errorf("%w: %s has role %s", ErrNotASupervisor, target.ID, target.Role)
	}
	if target.ID == in.Actor.ID {
		return fmt.Errorf("%w: cannot forward to yourself", ErrInvalidForwardTarget)
	}
	if target.ID == in.Owner.ID {
		return fmt.Errorf("%w: cannot forward to the bill owner", ErrInvalidForwardTarget)
	}
	return nil
}

func isOwner(in *Input) error {
	if in.Actor.ID == in.Bill.EmployeeID {
		return nil
	}
	return fmt.Errorf("%w: only the bill owner may confirm payment", ErrUnauthorized)
}

// ShouldAutoApprove reports whether a submit by submitter lands directly on
// APPROVED_BY_SUPERVISOR. A supervisor submitting for themself qualifies only
// without an upline; a supervisor submitting for someone else qualifies only as
// that person's direct supervisor.
func ShouldAutoApprove(submitter *entity.User, owner entity.User) bool {
	if submitter == nil || submitter.Role != entity.RoleSupervisor {
		return false
	}
	if submitter.ID == owner.ID {
		return !submitter.HasUpline()
	}
	return owner.ReportsTo(submitter.ID)
}

// ResolveApprovingSupervisor returns the id of the supervisor allowed to act on
// a SUBMITTED bill, or nil when nobody is.
//
// The most recent SUBMITTED history row decides: a forward hands authority to
// the bill's assigned supervisor; a submit by an employee (or by nobody known)
// goes to the owner's supervisor; a submit by a supervisor climbs to that
// supervisor's own supervisor.
func ResolveApprovingSupervisor(snap Snapshot) *string {
	last := lastSubmitted(snap.History)
	if last == nil {
		return nonEmpty(snap.Owner.SupervisorID)
	}

	if last.Action == entity.ActionForwarded {
		return nonEmpty(snap.Bill.SupervisorID)
	}

	if last.Actor == nil {
		return nonEmpty(snap.Owner.SupervisorID)
	}

	switch last.Actor.Role {
	case entity.RoleSupervisor:
		return nonEmpty(last.Actor.SupervisorID)
	case entity.RoleEmployee, entity.RoleAccounts, entity.RoleManagement:
		return nonEmpty(snap.Owner.SupervisorID)
	default:
		return nonEmpty(snap.Owner.SupervisorID)
	}
}

func lastSubmitted(history []entity.BillHistory) *entity.BillHistory {
	var last *entity.BillHistory
	for i := range history {
		h := &history[i]
		if h.Status != entity.StatusSubmitted {
			continue
		}
		if last == nil || h.After(last) {
			last = h
		}
	}
	return last
}

func nonEmpty(id *string) *string {
	if id == nil || *id == "" {
		return nil
	}
	return id
}
