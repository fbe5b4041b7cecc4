package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bill represents an expense claim owned by one employee
type Bill struct {
	ID             string          `json:"id"`
	EmployeeID     string          `json:"employee_id"`
	CompanyName    string          `json:"company_name"`
	CompanyAddress string          `json:"company_address"`
	FormatType     FormatType      `json:"format_type"`
	Amount         decimal.Decimal `json:"amount"`
	AmountInWords  string          `json:"amount_in_words"`
	Status         BillStatus      `json:"status"`
	SupervisorID   *string         `json:"supervisor_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`

	Items   []BillItem    `json:"items,omitempty"`
	History []BillHistory `json:"history,omitempty"`
}

// BillItem represents a single claimed trip or expense line
type BillItem struct {
	ID            int64           `json:"id"`
	BillID        string          `json:"bill_id"`
	Date          time.Time       `json:"date"`
	From          string          `json:"from"`
	To            string          `json:"to"`
	Transport     string          `json:"transport,omitempty"`
	Purpose       string          `json:"purpose"`
	Amount        decimal.Decimal `json:"amount"`
	AttachmentURL *string         `json:"attachment_url,omitempty"`
}

// ClaimedItem is an existing item together with its owning bill's state,
// as loaded by the duplicate-trip guard.
type ClaimedItem struct {
	BillItem
	BillStatus BillStatus `json:"bill_status"`
}

// SumItems returns the total of the item amounts
func SumItems(items []BillItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Amount)
	}
	return total
}

// IsOwnedBy returns true if userID owns the bill
func (b *Bill) IsOwnedBy(userID string) bool {
	return b.EmployeeID == userID
}
