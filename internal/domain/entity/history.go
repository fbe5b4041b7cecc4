package entity

import "time"

// BillHistory is one append-only entry in a bill's audit trail
type BillHistory struct {
	ID        int64         `json:"id"`
	BillID    string        `json:"bill_id"`
	Status    BillStatus    `json:"status"`
	Action    HistoryAction `json:"action"`
	ActorID   *string       `json:"actor_id,omitempty"`
	Comment   string        `json:"comment"`
	Timestamp time.Time     `json:"timestamp"`

	// Actor is populated on reads; nil when the actor is unknown
	Actor *UserRef `json:"actor,omitempty"`
}

// After reports whether h sorts after other in audit order
// (timestamp first, id as tie breaker).
func (h *BillHistory) After(other *BillHistory) bool {
	if !h.Timestamp.Equal(other.Timestamp) {
		return h.Timestamp.After(other.Timestamp)
	}
	return h.ID > other.ID
}
