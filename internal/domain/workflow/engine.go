// Package workflow decides bill status transitions. Decisions are pure: the
// engine reads a snapshot and returns what should be persisted.
package workflow

import (
	"fmt"

	"github.com/garyjia/conveyance-bills/internal/domain/entity"
)

// Snapshot is an immutable view of a bill for one decision
type Snapshot struct {
	Bill    entity.Bill
	Owner   entity.User
	History []entity.BillHistory
}

// Request describes who wants to fire which trigger
type Request struct {
	Trigger Trigger
	Actor   entity.Actor
	// ActorUser is the actor's full record; required for supervisor relations
	ActorUser *entity.User
	// ForwardTo is the target of TriggerForward
	ForwardTo *entity.User
	Comment   string
}

// Input is what guards evaluate
type Input struct {
	Snapshot
	Request
}

func (in *Input) submitter() *entity.User {
	if in.ActorUser != nil {
		return in.ActorUser
	}
	if in.Actor.ID == in.Owner.ID {
		return &in.Owner
	}
	return nil
}

// Entry is a history row the caller must append
type Entry struct {
	Status  entity.BillStatus
	Action  entity.HistoryAction
	ActorID string
	Comment string
}

// Decision is the outcome of a permitted trigger
type Decision struct {
	Trigger Trigger
	From    entity.BillStatus
	To      entity.BillStatus
	// SupervisorID is the bill's assigned supervisor after the transition
	SupervisorID *string
	Entries      []Entry
}

// StatusChanged returns true if the bill moves to a different status
func (d *Decision) StatusChanged() bool {
	return d.From != d.To
}

// Engine evaluates the bill approval transition table
type Engine struct {
	builder StateMachineBuilder
}

// NewEngine creates an Engine configured with the approval chain
func NewEngine() *Engine {
	b := NewBuilder()
	configure(b)
	return &Engine{builder: b}
}

func configure(b StateMachineBuilder) {
	submit := all(actsForOwner, hasApprover)
	autoApprove := all(actsForOwner, autoApproves)

	b.Configure(entity.StatusDraft).
		PermitIf(TriggerSubmit, entity.StatusSubmitted, submit).
		PermitIf(TriggerAutoApproveSubmit, entity.StatusApprovedBySupervisor, autoApprove)

	for _, rejected := range []entity.BillStatus{
		entity.StatusRejectedBySupervisor,
		entity.StatusRejectedByAccounts,
		entity.StatusRejectedByManagement,
	} {
		b.Configure(rejected).
			PermitIf(TriggerResubmit, entity.StatusSubmitted, submit).
			PermitIf(TriggerAutoApproveSubmit, entity.StatusApprovedBySupervisor, autoApprove)
	}

	b.Configure(entity.StatusSubmitted).
		PermitIf(TriggerApprove, entity.StatusApprovedBySupervisor, isApprovingSupervisor).
		PermitIf(TriggerReject, entity.StatusRejectedBySupervisor, isApprovingSupervisor).
		PermitIf(TriggerForward, entity.StatusSubmitted, all(isApprovingSupervisor, validForwardTarget))

	b.Configure(entity.StatusApprovedBySupervisor).
		PermitIf(TriggerApprove, entity.StatusApprovedByAccounts, requireRole(entity.RoleAccounts)).
		PermitIf(TriggerReject, entity.StatusRejectedByAccounts, requireRole(entity.RoleAccounts))

	b.Configure(entity.StatusApprovedByAccounts).
		PermitIf(TriggerApprove, entity.StatusApprovedByManagement, requireRole(entity.RoleManagement)).
		PermitIf(TriggerReject, entity.StatusRejectedByManagement, requireRole(entity.RoleManagement))

	b.Configure(entity.StatusApprovedByManagement).
		PermitIf(TriggerRequestPayment, entity.StatusApprovedByManagement, requireRole(entity.RoleAccounts)).
		PermitIf(TriggerConfirmPayment, entity.StatusPaid, isOwner)

	b.Configure(entity.StatusPaid)
}

// Decide fires req.Trigger against snap. TriggerSubmit is refined into
// TriggerResubmit or TriggerAutoApproveSubmit as the bill and submitter require.
func (e *Engine) Decide(snap Snapshot, req Request) (*Decision, error) {
	if !snap.Bill.Status.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidState, snap.Bill.Status)
	}
	if !req.Actor.Role.IsValid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrUnauthorized, req.Actor.Role)
	}
	if !req.Trigger.IsValid() {
		return nil, fmt.Errorf("%w: unknown trigger %q", ErrInvalidTransition, req.Trigger)
	}

	in := &Input{Snapshot: snap, Request: req}
	trigger := req.Trigger
	if trigger == TriggerSubmit {
		trigger = e.submissionTrigger(in)
	}

	machine := e.builder.Build(snap.Bill.Status)
	if err := machine.Fire(in, trigger); err != nil {
		return nil, err
	}

	d := &Decision{
		Trigger:      trigger,
		From:         snap.Bill.Status,
		To:           machine.State(),
		SupervisorID: snap.Bill.SupervisorID,
	}
	d.Entries = entriesFor(in, d)

	switch {
	case trigger.IsSubmission():
		d.SupervisorID = nil
	case trigger == TriggerForward:
		id := req.ForwardTo.ID
		d.SupervisorID = &id
	}

	return d, nil
}

// Allowed lists the triggers actor could fire on snap right now. Forward is
// reported without a target check.
func (e *Engine) Allowed(snap Snapshot, actor entity.Actor, actorUser *entity.User) []Trigger {
	if !snap.Bill.Status.IsValid() || !actor.Role.IsValid() {
		return []Trigger{}
	}
	in := &Input{Snapshot: snap, Request: Request{Actor: actor, ActorUser: actorUser}}
	machine := e.builder.Build(snap.Bill.Status)

	permitted := machine.PermittedTriggers(in)
	if machine.CanFire(TriggerForward) && isApprovingSupervisor(in) == nil {
		permitted = append(permitted, TriggerForward)
	}
	return permitted
}

func (e *Engine) submissionTrigger(in *Input) Trigger {
	if autoApproves(in) == nil && actsForOwner(in) == nil {
		return TriggerAutoApproveSubmit
	}
	if in.Bill.Status.IsRejected() {
		return TriggerResubmit
	}
	return TriggerSubmit
}

func entriesFor(in *Input, d *Decision) []Entry {
	actorID := in.Actor.ID
	comment := func(fallback string) string {
		if in.Comment != "" {
			return in.Comment
		}
		return fallback
	}

	switch d.Trigger {
	case TriggerSubmit:
		return []Entry{{Status: entity.StatusSubmitted, Action: entity.ActionSubmitted, ActorID: actorID, Comment: comment(submitComment(in))}}
	case TriggerResubmit:
		return []Entry{{Status: entity.StatusSubmitted, Action: entity.ActionResubmitted, ActorID: actorID, Comment: comment("Submitted (resubmission)")}}
	case TriggerAutoApproveSubmit:
		first := Entry{Status: entity.StatusSubmitted, Action: entity.ActionSubmitted, ActorID: actorID, Comment: comment(submitComment(in))}
		if d.From.IsRejected() {
			first.Action = entity.ActionResubmitted
			first.Comment = comment("Submitted (resubmission)")
		}
		return []Entry{
			first,
			{Status: entity.StatusApprovedBySupervisor, Action: entity.ActionAutoApproved, ActorID: actorID, Comment: "Auto-approved by supervisor submit"},
		}
	case TriggerApprove:
		return []Entry{{Status: d.To, Action: entity.ActionApproved, ActorID: actorID, Comment: comment("Approved by " + string(in.Actor.Role))}}
	case TriggerReject:
		return []Entry{{Status: d.To, Action: entity.ActionRejected, ActorID: actorID, Comment: comment("Rejected by " + string(in.Actor.Role))}}
	case TriggerForward:
		name := in.ForwardTo.Name
		if name == "" {
			name = in.ForwardTo.ID
		}
		return []Entry{{Status: entity.StatusSubmitted, Action: entity.ActionForwarded, ActorID: actorID, Comment: comment("Forwarded to " + name)}}
	case TriggerRequestPayment:
		return []Entry{{Status: d.To, Action: entity.ActionPaymentRequested, ActorID: actorID, Comment: comment("Payment requested from employee")}}
	case TriggerConfirmPayment:
		return []Entry{{Status: entity.StatusPaid, Action: entity.ActionPaymentConfirmed, ActorID: actorID, Comment: comment("Payment confirmed by employee.")}}
	default:
		return nil
	}
}

func submitComment(in *Input) string {
	switch in.Actor.Role {
	case entity.RoleSupervisor:
		if in.Actor.ID == in.Owner.ID {
			return "Submitted by supervisor"
		}
		return "Submitted by supervisor on behalf of employee"
	default:
		return "Submitted by employee"
	}
}
