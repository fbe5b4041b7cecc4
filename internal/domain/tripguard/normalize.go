package tripguard

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// DayLayout is the format of a day key
const DayLayout = "2006-01-02"

// Normalize trims s, collapses internal whitespace runs to a single space and
// case-folds the result.
func Normalize(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return cases.Fold().String(strings.Join(fields, " "))
}

// DayKey returns the UTC calendar day of t as YYYY-MM-DD
func DayKey(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

// DayBounds returns the half-open UTC interval [start, end) containing t
func DayBounds(t time.Time) (start, end time.Time) {
	u := t.UTC()
	start = time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 0, 1)
	return start, end
}

// tripKey identifies a claimed trip within one employee's bills
type tripKey struct {
	day     string
	from    string
	to      string
	purpose string
}

func keyOf(date time.Time, from, to, purpose string) tripKey {
	return tripKey{
		day:     DayKey(date),
		from:    Normalize(from),
		to:      Normalize(to),
		purpose: Normalize(purpose),
	}
}

func (k tripKey) sameRoute(other tripKey) bool {
	return k.from == other.from && k.to == other.to && k.purpose == other.purpose
}
