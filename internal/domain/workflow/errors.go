package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when no rule exists for the trigger in the current status
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidState is returned when a status is not valid
	ErrInvalidState = errors.New("invalid state")

	// ErrUnauthorized is returned when a rule exists but the actor may not fire it
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotASupervisor is returned when a forward target does not have the supervisor role
	ErrNotASupervisor = errors.New("forward target is not a supervisor")

	// ErrInvalidForwardTarget is returned when a bill is forwarded to its owner, to the
	// forwarding supervisor or to nobody
	ErrInvalidForwardTarget = errors.New("invalid forward target")

	// ErrNoApprover is returned when a submit would leave no supervisor able to act on the bill
	ErrNoApprover = errors.New("no supervisor can approve this bill")
)
