package tripguard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/garyjia/conveyance-bills/internal/domain/entity"
)

// ErrDuplicateTrip is matched by every DuplicateTripError
var ErrDuplicateTrip = errors.New("duplicate trip")

// DuplicateTripError reports a candidate item that repeats an already claimed
// trip. ConflictingBillID is empty when the duplicate is inside the candidate batch.
type DuplicateTripError struct {
	Day               string            `json:"day"`
	From              string            `json:"from"`
	To                string            `json:"to"`
	Purpose           string            `json:"purpose"`
	ConflictingBillID string            `json:"conflicting_bill_id,omitempty"`
	ConflictingStatus entity.BillStatus `json:"conflicting_status,omitempty"`
}

// InBatch returns true if the duplicate was found within the submitted items
func (e *DuplicateTripError) InBatch() bool {
	return e.ConflictingBillID == ""
}

func (e *DuplicateTripError) Error() string {
	var b strings.Builder
	if e.InBatch() {
		b.WriteString("duplicate row in this bill: ")
	} else {
		b.WriteString("duplicate trip detected: ")
	}
	b.WriteString(e.Day)
	b.WriteString(" ")
	if e.From != "" {
		fmt.Fprintf(&b, "%q -> ", e.From)
	}
	fmt.Fprintf(&b, "%q", e.To)
	if e.Purpose != "" {
		fmt.Fprintf(&b, " (%s)", e.Purpose)
	}
	if !e.InBatch() {
		fmt.Fprintf(&b, ", already claimed in bill %s [%s]", e.ConflictingBillID, e.ConflictingStatus)
	}
	return b.String()
}

// Is makes errors.Is(err, ErrDuplicateTrip) hold
func (e *DuplicateTripError) Is(target error) bool {
	return target == ErrDuplicateTrip
}
