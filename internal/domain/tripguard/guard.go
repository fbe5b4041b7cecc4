// Package tripguard rejects line items that claim the same trip twice for one
// employee, either inside one submission or across bills.
package tripguard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/garyjia/conveyance-bills/internal/domain/entity"
)

// Candidate is a line item about to be saved
type Candidate struct {
	Date    time.Time
	From    string
	To      string
	Purpose string
}

// CandidatesFromItems converts bill items into guard candidates
func CandidatesFromItems(items []entity.BillItem) []Candidate {
	out := make([]Candidate, 0, len(items))
	for _, it := range items {
		out = append(out, Candidate{Date: it.Date, From: it.From, To: it.To, Purpose: it.Purpose})
	}
	return out
}

// ItemFinder loads the items an employee already claimed on one UTC day,
// skipping the bill identified by excludeBillID when it is not empty.
type ItemFinder interface {
	FindForEmployeeOnDay(ctx context.Context, employeeID string, dayStart, dayEnd time.Time, excludeBillID string) ([]entity.ClaimedItem, error)
}

// Guard checks candidate items against the batch and the employee's other bills
type Guard struct {
	finder ItemFinder
}

// New creates a Guard backed by finder
func New(finder ItemFinder) *Guard {
	return &Guard{finder: finder}
}

// CheckBatch fails on the first pair of candidates sharing a trip key
func CheckBatch(items []Candidate) error {
	seen := make(map[tripKey]struct{}, len(items))
	for _, it := range items {
		k := keyOf(it.Date, it.From, it.To, it.Purpose)
		if _, dup := seen[k]; dup {
			return &DuplicateTripError{Day: k.day, From: it.From, To: it.To, Purpose: it.Purpose}
		}
		seen[k] = struct{}{}
	}
	return nil
}

// CheckNoDuplicates returns a *DuplicateTripError if any candidate repeats a trip
// within items or in another bill of employeeID. It performs reads only.
func (g *Guard) CheckNoDuplicates(ctx context.Context, employeeID string, items []Candidate, excludeBillID string) error {
	if len(items) == 0 {
		return nil
	}
	if err := CheckBatch(items); err != nil {
		return err
	}

	byDay := make(map[string][]Candidate)
	for _, it := range items {
		day := DayKey(it.Date)
		byDay[day] = append(byDay[day], it)
	}
	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)

	for _, day := range days {
		group := byDay[day]
		start, end := DayBounds(group[0].Date)

		existing, err := g.finder.FindForEmployeeOnDay(ctx, employeeID, start, end, excludeBillID)
		if err != nil {
			return fmt.Errorf("failed to load claimed items for %s: %w", day, err)
		}
		if len(existing) == 0 {
			continue
		}

		claimed := make([]tripKey, len(existing))
		for i, row := range existing {
			claimed[i] = keyOf(row.Date, row.From, row.To, row.Purpose)
		}

		for _, it := range group {
			k := keyOf(it.Date, it.From, it.To, it.Purpose)
			for i, c := range claimed {
				if k.sameRoute(c) {
					return &DuplicateTripError{
						Day:               day,
						From:              it.From,
						To:                it.To,
						Purpose:           it.Purpose,
						ConflictingBillID: existing[i].BillID,
						ConflictingStatus: existing[i].BillStatus,
					}
				}
			}
		}
	}

	return nil
}
