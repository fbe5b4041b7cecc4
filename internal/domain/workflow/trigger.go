package workflow

// Trigger represents an action that can cause a bill status transition
type Trigger string

const (
	TriggerSubmit            Trigger = "SUBMIT"
	TriggerResubmit          Trigger = "RESUBMIT"
	TriggerAutoApproveSubmit Trigger = "AUTO_APPROVE_SUBMIT"
	TriggerApprove           Trigger = "APPROVE"
	TriggerReject            Trigger = "REJECT"
	TriggerForward           Trigger = "FORWARD"
	TriggerRequestPayment    Trigger = "REQUEST_PAYMENT"
	TriggerConfirmPayment    Trigger = "CONFIRM_PAYMENT"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}

// IsValid returns true if the trigger is one of the defined constants
func (t Trigger) IsValid() bool {
	switch t {
	case TriggerSubmit,
		TriggerResubmit,
		TriggerAutoApproveSubmit,
		TriggerApprove,
		TriggerReject,
		TriggerForward,
		TriggerRequestPayment,
		TriggerConfirmPayment:
		return true
	default:
		return false
	}
}

// IsSubmission returns true for the three ways a bill leaves an editable status
func (t Trigger) IsSubmission() bool {
	return t == TriggerSubmit || t == TriggerResubmit || t == TriggerAutoApproveSubmit
}
