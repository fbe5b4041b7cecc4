package workflow

import (
	"fmt"

	"github.com/garyjia/conveyance-bills/internal/domain/entity"
)

// GuardFunc evaluates whether a transition is allowed for the given input.
// A nil error permits the transition.
type GuardFunc func(in *Input) error

// StateMachineBuilder builds a configured state machine
type StateMachineBuilder interface {
	// Configure returns a state configuration for the given status
	Configure(status entity.BillStatus) StateConfiguration

	// Build creates a new state machine instance with the given initial status
	Build(initial entity.BillStatus) StateMachine
}

// StateConfiguration configures transitions for a specific status
type StateConfiguration interface {
	// Permit allows a trigger to transition to the target status
	Permit(trigger Trigger, to entity.BillStatus) StateConfiguration

	// PermitIf allows a trigger to transition to the target status if the guard passes
	PermitIf(trigger Trigger, to entity.BillStatus, guard GuardFunc) StateConfiguration
}

// transition represents a status transition with optional guard
type transition struct {
	to    entity.BillStatus
	guard GuardFunc
}

// stateConfig implements StateConfiguration
type stateConfig struct {
	from        entity.BillStatus
	transitions map[Trigger][]transition
}

// stateMachineBuilder implements StateMachineBuilder
type stateMachineBuilder struct {
	configurations map[entity.BillStatus]*stateConfig
}

// stateMachine implements StateMachine
type stateMachine struct {
	current        entity.BillStatus
	configurations map[entity.BillStatus]*stateConfig
}

// NewBuilder creates a new state machine builder
func NewBuilder() StateMachineBuilder {
	return &stateMachineBuilder{
		configurations: make(map[entity.BillStatus]*stateConfig),
	}
}

// Configure returns a state configuration for the given status
func (b *stateMachineBuilder) Configure(status entity.BillStatus) StateConfiguration {
	if !status.IsValid() {
		panic(fmt.Sprintf("invalid status: %s", status))
	}

	config, exists := b.configurations[status]
	if !exists {
		config = &stateConfig{
			from:        status,
			transitions: make(map[Trigger][]transition),
		}
		b.configurations[status] = config
	}

	return config
}

// Build creates a new state machine with the given initial status.
// Configurations are copied so later Configure calls do not leak into it.
func (b *stateMachineBuilder) Build(initial entity.BillStatus) StateMachine {
	configsCopy := make(map[entity.BillStatus]*stateConfig, len(b.configurations))
	for status, config := range b.configurations {
		transitionsCopy := make(map[Trigger][]transition, len(config.transitions))
		for trigger, transitions := range config.transitions {
			transitionsCopy[trigger] = append([]transition{}, transitions...)
		}
		configsCopy[status] = &stateConfig{
			from:        status,
			transitions: transitionsCopy,
		}
	}

	return &stateMachine{
		current:        initial,
		configurations: configsCopy,
	}
}

// Permit allows a trigger to transition to the target status
func (c *stateConfig) Permit(trigger Trigger, to entity.BillStatus) StateConfiguration {
	return c.PermitIf(trigger, to, nil)
}

// PermitIf allows a trigger to transition to the target status if the guard passes
func (c *stateConfig) PermitIf(trigger Trigger, to entity.BillStatus, guard GuardFunc) StateConfiguration {
	if !to.IsValid() {
		panic(fmt.Sprintf("invalid target status: %s", to))
	}
	if !trigger.IsValid() {
		panic(fmt.Sprintf("invalid trigger: %s", trigger))
	}

	c.transitions[trigger] = append(c.transitions[trigger], transition{
		to:    to,
		guard: guard,
	})

	return c
}

// State returns the current status
func (m *stateMachine) State() entity.BillStatus {
	return m.current
}

// CanFire returns true if a rule exists for the trigger in the current status.
// Guards are not evaluated.
func (m *stateMachine) CanFire(trigger Trigger) bool {
	config, exists := m.configurations[m.current]
	if !exists {
		return false
	}
	return len(config.transitions[trigger]) > 0
}

// Fire evaluates the trigger's transitions in order and moves to the first one
// whose guard passes. Without any rule it returns ErrInvalidTransition; when
// every guard fails it returns the first guard's error.
func (m *stateMachine) Fire(in *Input, trigger Trigger) error {
	if !m.current.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidState, m.current)
	}

	config, exists := m.configurations[m.current]
	if !exists {
		return fmt.Errorf("%w: cannot fire %s from %s (no configuration)", ErrInvalidTransition, trigger, m.current)
	}

	transitions := config.transitions[trigger]
	if len(transitions) == 0 {
		return fmt.Errorf("%w: cannot fire %s from %s", ErrInvalidTransition, trigger, m.current)
	}

	var firstErr error
	for _, t := range transitions {
		if t.guard == nil {
			m.current = t.to
			return nil
		}
		err := t.guard(in)
		if err == nil {
			m.current = t.to
			return nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}

	return fmt.Errorf("%s from %s: %w", trigger, m.current, firstErr)
}

// PermittedTriggers returns the triggers configured for the current status
// whose guards pass for in. A nil input skips guard evaluation.
func (m *stateMachine) PermittedTriggers(in *Input) []Trigger {
	config, exists := m.configurations[m.current]
	if !exists {
		return []Trigger{}
	}

	triggers := make([]Trigger, 0, len(config.transitions))
	for _, trigger := range triggerOrder {
		transitions, ok := config.transitions[trigger]
		if !ok {
			continue
		}
		for _, t := range transitions {
			if in == nil || t.guard == nil || t.guard(in) == nil {
				triggers = append(triggers, trigger)
				break
			}
		}
	}

	return triggers
}

// triggerOrder keeps PermittedTriggers deterministic
var triggerOrder = []Trigger{
	TriggerSubmit,
	TriggerResubmit,
	TriggerAutoApproveSubmit,
	TriggerApprove,
	TriggerReject,
	TriggerForward,
	TriggerRequestPayment,
	TriggerConfirmPayment,
}
