package event

// Type identifies the type of domain event
type Type string

const (
	TypeDraftSaved       Type = "bill.draft_saved"
	TypeSubmitted        Type = "bill.submitted"
	TypeStatusChanged    Type = "bill.status_changed"
	TypeForwarded        Type = "bill.forwarded"
	TypePaymentRequested Type = "bill.payment_requested"
	TypeDeleted          Type = "bill.deleted"
	TypeUserChanged      Type = "user.changed"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeDraftSaved,
		TypeSubmitted,
		TypeStatusChanged,
		TypeForwarded,
		TypePaymentRequested,
		TypeDeleted,
		TypeUserChanged:
		return true
	default:
		return false
	}
}

// AffectsPendingCounts returns true if the event can change anyone's pending count
func (t Type) AffectsPendingCounts() bool {
	switch t {
	case TypeSubmitted, TypeStatusChanged, TypeForwarded, TypeDeleted, TypeUserChanged:
		return true
	default:
		return false
	}
}

// AllTypes returns every defined event type
func AllTypes() []Type {
	return []Type{
		TypeDraftSaved,
		TypeSubmitted,
		TypeStatusChanged,
		TypeForwarded,
		TypePaymentRequested,
		TypeDeleted,
		TypeUserChanged,
	}
}
