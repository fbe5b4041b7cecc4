package entity

// BillStatus represents a bill's position in the approval lifecycle
type BillStatus string

const (
	StatusDraft                BillStatus = "DRAFT"
	StatusSubmitted            BillStatus = "SUBMITTED"
	StatusApprovedBySupervisor BillStatus = "APPROVED_BY_SUPERVISOR"
	StatusApprovedByAccounts   BillStatus = "APPROVED_BY_ACCOUNTS"
	StatusApprovedByManagement BillStatus = "APPROVED_BY_MANAGEMENT"
	StatusPaid                 BillStatus = "PAID"
	StatusRejectedBySupervisor BillStatus = "REJECTED_BY_SUPERVISOR"
	StatusRejectedByAccounts   BillStatus = "REJECTED_BY_ACCOUNTS"
	StatusRejectedByManagement BillStatus = "REJECTED_BY_MANAGEMENT"
)

var validStatuses = map[BillStatus]bool{
	StatusDraft:                true,
	StatusSubmitted:            true,
	StatusApprovedBySupervisor: true,
	StatusApprovedByAccounts:   true,
	StatusApprovedByManagement: true,
	StatusPaid:                 true,
	StatusRejectedBySupervisor: true,
	StatusRejectedByAccounts:   true,
	StatusRejectedByManagement: true,
}

var terminalStatuses = map[BillStatus]bool{
	StatusPaid: true,
}

// AllStatuses returns every bill status, happy path first
func AllStatuses() []BillStatus {
	return []BillStatus{
		StatusDraft,
		StatusSubmitted,
		StatusApprovedBySupervisor,
		StatusApprovedByAccounts,
		StatusApprovedByManagement,
		StatusPaid,
		StatusRejectedBySupervisor,
		StatusRejectedByAccounts,
		StatusRejectedByManagement,
	}
}

// IsValid returns true if the status is a valid bill status
func (s BillStatus) IsValid() bool {
	return validStatuses[s]
}

// IsTerminal returns true if no further transitions are allowed
func (s BillStatus) IsTerminal() bool {
	return terminalStatuses[s]
}

// String returns the string representation of the status
func (s BillStatus) String() string {
	return string(s)
}

// IsRejected returns true for the three rejection branches
func (s BillStatus) IsRejected() bool {
	switch s {
	case StatusRejectedBySupervisor, StatusRejectedByAccounts, StatusRejectedByManagement:
		return true
	case StatusDraft, StatusSubmitted, StatusApprovedBySupervisor, StatusApprovedByAccounts,
		StatusApprovedByManagement, StatusPaid:
		return false
	default:
		return false
	}
}

// IsEditable returns true when header and items may still change:
// DRAFT or any rejected status.
func (s BillStatus) IsEditable() bool {
	return s == StatusDraft || s.IsRejected()
}

// FormatType selects the line-item layout of a bill
type FormatType string

// IsValid returns true if the format is one of the defined constants
func (f FormatType) IsValid() bool {
	switch f {
	case FormatBill1, FormatBill2, FormatBill3, FormatBill4:
		return true
	default:
		return false
	}
}

// HistoryAction describes what produced a history row
type HistoryAction string

// String returns the string representation of the action
func (a HistoryAction) String() string {
	return string(a)
}
