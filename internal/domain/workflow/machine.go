package workflow

import "github.com/garyjia/conveyance-bills/internal/domain/entity"

// StateMachine tracks a bill's status and validates transitions
type StateMachine interface {
	// State returns the current status
	State() entity.BillStatus

	// CanFire returns true if the trigger is configured for the current status
	CanFire(trigger Trigger) bool

	// Fire attempts to execute the trigger, transitioning to the new status if allowed
	Fire(in *Input, trigger Trigger) error

	// PermittedTriggers returns the triggers whose guards pass for in
	PermittedTriggers(in *Input) []Trigger
}
