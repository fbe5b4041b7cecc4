package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/conveyance-bills/internal/domain/entity"
)

func strPtr(s string) *string { return &s }

// Reporting line used throughout: emp -> sup1 -> sup2 (top level).
var (
	sup2 = entity.User{ID: "sup-2", Name: "Top Supervisor", Role: entity.RoleSupervisor}
	sup1 = entity.User{ID: "sup-1", Name: "Line Supervisor", Role: entity.RoleSupervisor, SupervisorID: strPtr("sup-2")}
	sup3 = entity.User{ID: "sup-3", Name: "Other Supervisor", Role: entity.RoleSupervisor, SupervisorID: strPtr("sup-2")}
	sup4 = entity.User{ID: "sup-4", Name: "Fourth Supervisor", Role: entity.RoleSupervisor}
	emp  = entity.User{ID: "emp-1", Name: "Employee", Role: entity.RoleEmployee, SupervisorID: strPtr("sup-1")}
	acc  = entity.User{ID: "acc-1", Name: "Accounts", Role: entity.RoleAccounts}
	mgmt = entity.User{ID: "mgmt-1", Name: "Management", Role: entity.RoleManagement}
)

var t0 = time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)

func ref(u entity.User) *entity.UserRef {
	return &entity.UserRef{ID: u.ID, Name: u.Name, Role: u.Role, SupervisorID: u.SupervisorID}
}

func historyRow(id int64, status entity.BillStatus, action entity.HistoryAction, actor entity.User, at time.Time) entity.BillHistory {
	return entity.BillHistory{
		ID:        id,
		BillID:    "bill-1",
		Status:    status,
		Action:    action,
		ActorID:   strPtr(actor.ID),
		Timestamp: at,
		Actor:     ref(actor),
	}
}

func snapshot(owner entity.User, status entity.BillStatus, history ...entity.BillHistory) Snapshot {
	return Snapshot{
		Bill:    entity.Bill{ID: "bill-1", EmployeeID: owner.ID, Status: status},
		Owner:   owner,
		History: history,
	}
}

func request(trigger Trigger, actor entity.User) Request {
	u := actor
	return Request{Trigger: trigger, Actor: actor.Actor(), ActorUser: &u}
}

func TestEngine_EmployeeSubmit(t *testing.T) {
	engine := NewEngine()

	d, err := engine.Decide(snapshot(emp, entity.StatusDraft), request(TriggerSubmit, emp))
	require.NoError(t, err)

	assert.Equal(t, TriggerSubmit, d.Trigger)
	assert.Equal(t, entity.StatusSubmitted, d.To)
	assert.Nil(t, d.SupervisorID)
	require.Len(t, d.Entries, 1)
	assert.Equal(t, entity.ActionSubmitted, d.Entries[0].Action)
	assert.Equal(t, "Submitted by employee", d.Entries[0].Comment)
	assert.Equal(t, emp.ID, d.Entries[0].ActorID)
}

func TestEngine_SubmitRoles(t *testing.T) {
	engine := NewEngine()
	other := entity.User{ID: "emp-2", Role: entity.RoleEmployee, SupervisorID: strPtr("sup-1")}

	tests := []struct {
		name    string
		actor   entity.User
		wantErr error
	}{
		{"employee for someone else", other, ErrUnauthorized},
		{"accounts", acc, ErrUnauthorized},
		{"management", mgmt, ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Decide(snapshot(emp, entity.StatusDraft), request(TriggerSubmit, tt.actor))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestEngine_ApprovalAuthority_EmployeePath(t *testing.T) {
	engine := NewEngine()
	snap := snapshot(emp, entity.StatusSubmitted,
		historyRow(1, entity.StatusSubmitted, entity.ActionSubmitted, emp, t0))

	d, err := engine.Decide(snap, request(TriggerApprove, sup1))
	require.NoError(t, err)
	assert.Equal(t, entity.StatusApprovedBySupervisor, d.To)
	assert.Equal(t, entity.ActionApproved, d.Entries[0].Action)

	_, err = engine.Decide(snap, request(TriggerApprove, sup2))
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = engine.Decide(snap, request(TriggerReject, sup3))
	assert.ErrorIs(t, err, ErrUnauthorized)

	d, err = engine.Decide(snap, request(TriggerReject, sup1))
	require.NoError(t, err)
	assert.Equal(t, entity.StatusRejectedBySupervisor, d.To)
}

func TestEngine_SupervisorSelfSubmit_NoUpline_AutoApproves(t *testing.T) {
	engine := NewEngine()

	d, err := engine.Decide(snapshot(sup2, entity.StatusDraft), request(TriggerSubmit, sup2))
	require.NoError(t, err)

	assert.Equal(t, TriggerAutoApproveSubmit, d.Trigger)
	assert.Equal(t, entity.StatusApprovedBySupervisor, d.To)
	require.Len(t, d.Entries, 2)
	assert.Equal(t, entity.StatusSubmitted, d.Entries[0].Status)
	assert.Equal(t, entity.StatusApprovedBySupervisor, d.Entries[1].Status)
	assert.Equal(t, entity.ActionAutoApproved, d.Entries[1].Action)
	for _, e := range d.Entries {
		assert.Equal(t, sup2.ID, e.ActorID)
	}
}

func TestEngine_SupervisorSelfSubmit_WithUpline_ClimbsOneLevel(t *testing.T) {
	engine := NewEngine()

	d, err := engine.Decide(snapshot(sup1, entity.StatusDraft), request(TriggerSubmit, sup1))
	require.NoError(t, err)
	assert.Equal(t, entity.StatusSubmitted, d.To)
	assert.Equal(t, "Submitted by supervisor", d.Entries[0].Comment)

	snap := snapshot(sup1, entity.StatusSubmitted,
		historyRow(1, entity.StatusSubmitted, entity.ActionSubmitted, sup1, t0))

	approver := ResolveApprovingSupervisor(snap)
	require.NotNil(t, approver)
	assert.Equal(t, sup2.ID, *approver)

	_, err = engine.Decide(snap, request(TriggerApprove, sup1))
	assert.ErrorIs(t, err, ErrUnauthorized, "a supervisor cannot approve their own bill")

	_, err = engine.Decide(snap, request(TriggerApprove, sup2))
	assert.NoError(t, err)
}

func TestEngine_SupervisorSubmitsForDirectReport_AutoApproves(t *testing.T) {
	engine := NewEngine()

	d, err := engine.Decide(snapshot(emp, entity.StatusDraft), request(TriggerSubmit, sup1))
	require.NoError(t, err)
	assert.Equal(t, entity.StatusApprovedBySupervisor, d.To)
	assert.Equal(t, "Submitted by supervisor on behalf of employee", d.Entries[0].Comment)
}

func TestEngine_SubmitWithoutApprover(t *testing.T) {
	engine := NewEngine()
	orphan := entity.User{ID: "emp-9", Role: entity.RoleEmployee}

	tests := []struct {
		name  string
		owner entity.User
		actor entity.User
	}{
		{"top-level supervisor for a skip-level report", emp, sup2},
		{"top-level supervisor for another line", sup3, sup4},
		{"employee without supervisor", orphan, orphan},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Decide(snapshot(tt.owner, entity.StatusDraft), request(TriggerSubmit, tt.actor))
			assert.ErrorIs(t, err, ErrNoApprover)

			_, err = engine.Decide(snapshot(tt.owner, entity.StatusRejectedByAccounts), request(TriggerSubmit, tt.actor))
			assert.ErrorIs(t, err, ErrNoApprover)
		})
	}
}

func TestEngine_SupervisorSubmitsForSkipLevelReport(t *testing.T) {
	engine := NewEngine()

	d, err := engine.Decide(snapshot(emp, entity.StatusDraft), request(TriggerSubmit, sup3))
	require.NoError(t, err)
	assert.Equal(t, entity.StatusSubmitted, d.To)

	snap := snapshot(emp, entity.StatusSubmitted,
		historyRow(1, entity.StatusSubmitted, entity.ActionSubmitted, sup3, t0))

	_, err = engine.Decide(snap, request(TriggerApprove, sup1))
	assert.ErrorIs(t, err, ErrUnauthorized, "authority follows the submitter's line, not the owner's")

	_, err = engine.Decide(snap, request(TriggerApprove, sup2))
	assert.NoError(t, err)
}

func TestEngine_ForwardChain(t *testing.T) {
	engine := NewEngine()
	snap := snapshot(emp, entity.StatusSubmitted,
		historyRow(1, entity.StatusSubmitted, entity.ActionSubmitted, emp, t0))

	// sup1 -> sup3
	req := request(TriggerForward, sup1)
	target := sup3
	req.ForwardTo = &target
	d, err := engine.Decide(snap, req)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusSubmitted, d.To)
	assert.False(t, d.StatusChanged())
	require.NotNil(t, d.SupervisorID)
	assert.Equal(t, sup3.ID, *d.SupervisorID)
	require.Len(t, d.Entries, 1)
	assert.Equal(t, entity.ActionForwarded, d.Entries[0].Action)
	assert.Equal(t, "Forwarded to Other Supervisor", d.Entries[0].Comment)

	snap.Bill.SupervisorID = d.SupervisorID
	snap.History = append(snap.History, historyRow(2, entity.StatusSubmitted, entity.ActionForwarded, sup1, t0.Add(time.Minute)))

	_, err = engine.Decide(snap, request(TriggerApprove, sup1))
	assert.ErrorIs(t, err, ErrUnauthorized, "forwarding hands authority away")
	_, err = engine.Decide(snap, request(TriggerApprove, sup2))
	assert.ErrorIs(t, err, ErrUnauthorized, "the forwarder's own supervisor gains nothing")

	// sup3 -> sup4
	req = request(TriggerForward, sup3)
	target = sup4
	req.ForwardTo = &target
	d, err = engine.Decide(snap, req)
	require.NoError(t, err)
	assert.Equal(t, sup4.ID, *d.SupervisorID)

	snap.Bill.SupervisorID = d.SupervisorID
	snap.History = append(snap.History, historyRow(3, entity.StatusSubmitted, entity.ActionForwarded, sup3, t0.Add(2*time.Minute)))

	_, err = engine.Decide(snap, request(TriggerApprove, sup3))
	assert.ErrorIs(t, err, ErrUnauthorized)

	d, err = engine.Decide(snap, request(TriggerApprove, sup4))
	require.NoError(t, err)
	assert.Equal(t, entity.StatusApprovedBySupervisor, d.To)
	assert.Equal(t, sup4.ID, *d.SupervisorID, "approval keeps the assigned supervisor")
}

func TestEngine_ForwardTargetErrors(t *testing.T) {
	engine := NewEngine()
	snap := snapshot(emp, entity.StatusSubmitted,
		historyRow(1, entity.StatusSubmitted, entity.ActionSubmitted, emp, t0))

	tests := []struct {
		name    string
		actor   entity.User
		target  *entity.User
		wantErr error
	}{
		{"missing target", sup1, nil, ErrInvalidForwardTarget},
		{"target not a supervisor", sup1, &acc, ErrNotASupervisor},
		{"target is self", sup1, &sup1, ErrInvalidForwardTarget},
		{"target is owner", sup1, &emp, ErrNotASupervisor},
		{"not the approver", sup3, &sup4, ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := request(TriggerForward, tt.actor)
			req.ForwardTo = tt.target
			_, err := engine.Decide(snap, req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestEngine_ForwardToOwningSupervisor(t *testing.T) {
	engine := NewEngine()
	// sup1 owns the bill; sup2 is the approver and tries to hand it back to sup1
	snap := snapshot(sup1, entity.StatusSubmitted,
		historyRow(1, entity.StatusSubmitted, entity.ActionSubmitted, sup1, t0))

	req := request(TriggerForward, sup2)
	target := sup1
	req.ForwardTo = &target
	_, err := engine.Decide(snap, req)
	assert.ErrorIs(t, err, ErrInvalidForwardTarget)
}

func TestEngine_AccountsAndManagement(t *testing.T) {
	engine := NewEngine()

	tests := []struct {
		name    string
		status  entity.BillStatus
		trigger Trigger
		actor   entity.User
		want    entity.BillStatus
		wantErr error
	}{
		{"accounts approves", entity.StatusApprovedBySupervisor, TriggerApprove, acc, entity.StatusApprovedByAccounts, nil},
		{"accounts rejects", entity.StatusApprovedBySupervisor, TriggerReject, acc, entity.StatusRejectedByAccounts, nil},
		{"management approves", entity.StatusApprovedByAccounts, TriggerApprove, mgmt, entity.StatusApprovedByManagement, nil},
		{"management rejects", entity.StatusApprovedByAccounts, TriggerReject, mgmt, entity.StatusRejectedByManagement, nil},
		{"supervisor at accounts stage", entity.StatusApprovedBySupervisor, TriggerApprove, sup1, "", ErrUnauthorized},
		{"management at accounts stage", entity.StatusApprovedBySupervisor, TriggerApprove, mgmt, "", ErrUnauthorized},
		{"accounts at management stage", entity.StatusApprovedByAccounts, TriggerApprove, acc, "", ErrUnauthorized},
		{"accounts approves a draft", entity.StatusDraft, TriggerApprove, acc, "", ErrInvalidTransition},
		{"accounts approves after management", entity.StatusApprovedByManagement, TriggerApprove, acc, "", ErrInvalidTransition},
		{"management on submitted", entity.StatusSubmitted, TriggerApprove, mgmt, "", ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := engine.Decide(snapshot(emp, tt.status), request(tt.trigger, tt.actor))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.To)
		})
	}
}

func TestEngine_Resubmission(t *testing.T) {
	engine := NewEngine()

	for _, status := range []entity.BillStatus{
		entity.StatusRejectedBySupervisor,
		entity.StatusRejectedByAccounts,
		entity.StatusRejectedByManagement,
	} {
		t.Run(string(status), func(t *testing.T) {
			snap := snapshot(emp, status)
			snap.Bill.SupervisorID = strPtr("sup-3")

			d, err := engine.Decide(snap, request(TriggerSubmit, emp))
			require.NoError(t, err)
			assert.Equal(t, TriggerResubmit, d.Trigger)
			assert.Equal(t, entity.StatusSubmitted, d.To)
			assert.Nil(t, d.SupervisorID, "submission clears any forward assignment")
			require.Len(t, d.Entries, 1)
			assert.Equal(t, entity.ActionResubmitted, d.Entries[0].Action)
			assert.Equal(t, "Submitted (resubmission)", d.Entries[0].Comment)
		})
	}
}

func TestEngine_SupervisorResubmitAutoApproves(t *testing.T) {
	engine := NewEngine()

	d, err := engine.Decide(snapshot(emp, entity.StatusRejectedByAccounts), request(TriggerSubmit, sup1))
	require.NoError(t, err)
	assert.Equal(t, entity.StatusApprovedBySupervisor, d.To)
	require.Len(t, d.Entries, 2)
	assert.Equal(t, entity.ActionResubmitted, d.Entries[0].Action)
}

func TestEngine_SubmitFromNonEditableStatus(t *testing.T) {
	engine := NewEngine()

	for _, status := range []entity.BillStatus{entity.StatusSubmitted, entity.StatusApprovedByAccounts, entity.StatusPaid} {
		t.Run(string(status), func(t *testing.T) {
			_, err := engine.Decide(snapshot(emp, status), request(TriggerSubmit, emp))
			assert.ErrorIs(t, err, ErrInvalidTransition)
		})
	}
}

func TestEngine_Payment(t *testing.T) {
	engine := NewEngine()
	snap := snapshot(emp, entity.StatusApprovedByManagement)

	d, err := engine.Decide(snap, request(TriggerRequestPayment, acc))
	require.NoError(t, err)
	assert.False(t, d.StatusChanged())
	assert.Equal(t, entity.ActionPaymentRequested, d.Entries[0].Action)
	assert.Equal(t, entity.StatusApprovedByManagement, d.Entries[0].Status)

	_, err = engine.Decide(snap, request(TriggerRequestPayment, mgmt))
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = engine.Decide(snap, request(TriggerConfirmPayment, sup1))
	assert.ErrorIs(t, err, ErrUnauthorized)

	d, err = engine.Decide(snap, request(TriggerConfirmPayment, emp))
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPaid, d.To)
	assert.Equal(t, entity.ActionPaymentConfirmed, d.Entries[0].Action)

	_, err = engine.Decide(snapshot(emp, entity.StatusApprovedByAccounts), request(TriggerConfirmPayment, emp))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestEngine_PaidIsTerminal(t *testing.T) {
	engine := NewEngine()

	for _, trigger := range triggerOrder {
		t.Run(string(trigger), func(t *testing.T) {
			_, err := engine.Decide(snapshot(emp, entity.StatusPaid), request(trigger, acc))
			assert.ErrorIs(t, err, ErrInvalidTransition)
		})
	}
}

func TestEngine_EveryStatusIsConfigured(t *testing.T) {
	engine := NewEngine()

	for _, status := range entity.AllStatuses() {
		t.Run(string(status), func(t *testing.T) {
			configured := engine.builder.Build(status).PermittedTriggers(nil)
			if status.IsTerminal() {
				assert.Empty(t, configured)
				return
			}
			assert.NotEmpty(t, configured, "non-terminal status without transitions")
		})
	}
}

func TestEngine_CommentOverride(t *testing.T) {
	engine := NewEngine()
	snap := snapshot(emp, entity.StatusApprovedBySupervisor)

	req := request(TriggerReject, acc)
	req.Comment = "missing receipts"
	d, err := engine.Decide(snap, req)
	require.NoError(t, err)
	assert.Equal(t, "missing receipts", d.Entries[0].Comment)
}

func TestEngine_InvalidInputs(t *testing.T) {
	engine := NewEngine()

	_, err := engine.Decide(snapshot(emp, entity.BillStatus("ARCHIVED")), request(TriggerApprove, acc))
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = engine.Decide(snapshot(emp, entity.StatusDraft), Request{Trigger: TriggerSubmit, Actor: entity.Actor{ID: "x", Role: "auditor"}})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = engine.Decide(snapshot(emp, entity.StatusDraft), request(Trigger("ESCALATE"), emp))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestEngine_Allowed(t *testing.T) {
	engine := NewEngine()
	snap := snapshot(emp, entity.StatusSubmitted,
		historyRow(1, entity.StatusSubmitted, entity.ActionSubmitted, emp, t0))

	assert.Equal(t, []Trigger{TriggerApprove, TriggerReject, TriggerForward}, engine.Allowed(snap, sup1.Actor(), &sup1))
	assert.Empty(t, engine.Allowed(snap, sup2.Actor(), &sup2))
	assert.Empty(t, engine.Allowed(snap, acc.Actor(), &acc))

	draft := snapshot(emp, entity.StatusDraft)
	assert.Equal(t, []Trigger{TriggerSubmit}, engine.Allowed(draft, emp.Actor(), &emp))
}

func TestResolveApprovingSupervisor(t *testing.T) {
	tests := []struct {
		name    string
		owner   entity.User
		billSup *string
		history []entity.BillHistory
		want    *string
	}{
		{
			name:  "no history falls back to owner's supervisor",
			owner: emp,
			want:  strPtr("sup-1"),
		},
		{
			name:    "actor unknown",
			owner:   emp,
			history: []entity.BillHistory{{ID: 1, Status: entity.StatusSubmitted, Action: entity.ActionSubmitted, Timestamp: t0}},
			want:    strPtr("sup-1"),
		},
		{
			name:  "latest submit wins on equal timestamps",
			owner: emp,
			history: []entity.BillHistory{
				historyRow(2, entity.StatusSubmitted, entity.ActionResubmitted, emp, t0),
				historyRow(1, entity.StatusSubmitted, entity.ActionSubmitted, sup3, t0),
			},
			want: strPtr("sup-1"),
		},
		{
			name:  "non-submitted rows are ignored",
			owner: emp,
			history: []entity.BillHistory{
				historyRow(1, entity.StatusSubmitted, entity.ActionSubmitted, sup3, t0),
				historyRow(2, entity.StatusRejectedBySupervisor, entity.ActionRejected, sup2, t0.Add(time.Hour)),
			},
			want: strPtr("sup-2"),
		},
		{
			name:    "forward with assigned supervisor",
			owner:   emp,
			billSup: strPtr("sup-4"),
			history: []entity.BillHistory{
				historyRow(1, entity.StatusSubmitted, entity.ActionSubmitted, emp, t0),
				historyRow(2, entity.StatusSubmitted, entity.ActionForwarded, sup1, t0.Add(time.Minute)),
			},
			want: strPtr("sup-4"),
		},
		{
			name:  "top-level submitter resolves to nobody",
			owner: emp,
			history: []entity.BillHistory{
				historyRow(1, entity.StatusSubmitted, entity.ActionSubmitted, sup2, t0),
			},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := snapshot(tt.owner, entity.StatusSubmitted, tt.history...)
			snap.Bill.SupervisorID = tt.billSup
			got := ResolveApprovingSupervisor(snap)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func TestShouldAutoApprove(t *testing.T) {
	tests := []struct {
		name      string
		submitter *entity.User
		owner     entity.User
		want      bool
	}{
		{"nil submitter", nil, emp, false},
		{"employee", &emp, emp, false},
		{"top-level supervisor for self", &sup2, sup2, true},
		{"supervisor with upline for self", &sup1, sup1, false},
		{"direct supervisor", &sup1, emp, true},
		{"skip-level supervisor", &sup2, emp, false},
		{"supervisor of another supervisor", &sup2, sup1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldAutoApprove(tt.submitter, tt.owner))
		})
	}
}

func TestDecisionErrorsAreDistinct(t *testing.T) {
	engine := NewEngine()
	_, err := engine.Decide(snapshot(emp, entity.StatusApprovedBySupervisor), request(TriggerApprove, sup1))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidTransition))
	assert.True(t, errors.Is(err, ErrUnauthorized))
}
