package entity

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestBillStatus_IsEditable(t *testing.T) {
	tests := []struct {
		status   BillStatus
		expected bool
	}{
		{StatusDraft, true},
		{StatusSubmitted, false},
		{StatusApprovedBySupervisor, false},
		{StatusApprovedByAccounts, false},
		{StatusApprovedByManagement, false},
		{StatusPaid, false},
		{StatusRejectedBySupervisor, true},
		{StatusRejectedByAccounts, true},
		{StatusRejectedByManagement, true},
	}

	if len(tests) != len(AllStatuses()) {
		t.Fatalf("table covers %d statuses, enum has %d", len(tests), len(AllStatuses()))
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsEditable(); got != tt.expected {
				t.Errorf("BillStatus.IsEditable() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBillStatus_IsValid(t *testing.T) {
	for _, s := range AllStatuses() {
		if !s.IsValid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if BillStatus("RETURNED").IsValid() {
		t.Error("RETURNED should not be valid")
	}
	if !StatusPaid.IsTerminal() || StatusDraft.IsTerminal() {
		t.Error("only PAID is terminal")
	}
}

func TestRole(t *testing.T) {
	tests := []struct {
		role   Role
		inTree bool
	}{
		{RoleEmployee, true},
		{RoleSupervisor, true},
		{RoleAccounts, false},
		{RoleManagement, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			if !tt.role.IsValid() {
				t.Errorf("%s should be valid", tt.role)
			}
			if got := tt.role.InSupervisorTree(); got != tt.inTree {
				t.Errorf("Role.InSupervisorTree() = %v, want %v", got, tt.inTree)
			}
		})
	}

	if Role("admin").IsValid() {
		t.Error("admin should not be a valid role")
	}
}

func TestSumItems(t *testing.T) {
	items := []BillItem{
		{Amount: decimal.RequireFromString("120.50")},
		{Amount: decimal.RequireFromString("0.25")},
		{Amount: decimal.RequireFromString("79.25")},
	}

	if got := SumItems(items); !got.Equal(decimal.RequireFromString("200")) {
		t.Errorf("SumItems() = %s, want 200", got)
	}
	if got := SumItems(nil); !got.IsZero() {
		t.Errorf("SumItems(nil) = %s, want 0", got)
	}
}

func TestBillHistory_After(t *testing.T) {
	now := time.Now()
	a := BillHistory{ID: 1, Timestamp: now}
	b := BillHistory{ID: 2, Timestamp: now}
	c := BillHistory{ID: 0, Timestamp: now.Add(time.Second)}

	if !b.After(&a) || a.After(&b) {
		t.Error("equal timestamps should order by id")
	}
	if !c.After(&b) {
		t.Error("later timestamp should sort after regardless of id")
	}
}
