package entity

// Role constants for User
const (
	RoleEmployee   Role = "employee"
	RoleSupervisor Role = "supervisor"
	RoleAccounts   Role = "accounts"
	RoleManagement Role = "management"
)

// Bill format constants. The format only selects the line-item layout used by
// the presentation layer; it never affects the approval workflow.
const (
	FormatBill1 FormatType = "BILL1" // plain conveyance rows
	FormatBill2 FormatType = "BILL2" // rows with per-row attachment
	FormatBill3 FormatType = "BILL3" // rows with transport sentinel and attachment
	FormatBill4 FormatType = "BILL4" // travel rows with attachment
)

// History action constants for BillHistory
const (
	ActionDraftSaved       HistoryAction = "draft_saved"
	ActionDraftUpdated     HistoryAction = "draft_updated"
	ActionSubmitted        HistoryAction = "submitted"
	ActionResubmitted      HistoryAction = "resubmitted"
	ActionAutoApproved     HistoryAction = "auto_approved"
	ActionApproved         HistoryAction = "approved"
	ActionRejected         HistoryAction = "rejected"
	ActionForwarded        HistoryAction = "forwarded"
	ActionPaymentRequested HistoryAction = "payment_requested"
	ActionPaymentConfirmed HistoryAction = "payment_confirmed"
)
