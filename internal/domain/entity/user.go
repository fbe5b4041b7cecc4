package entity

import "time"

// User represents an account that can own, submit or approve bills
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	SupervisorID *string   `json:"supervisor_id,omitempty"`
	EmployeeCode *string   `json:"employee_code,omitempty"`
	Designation  *string   `json:"designation,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasUpline returns true if the user reports to a supervisor
func (u *User) HasUpline() bool {
	return u.SupervisorID != nil && *u.SupervisorID != ""
}

// ReportsTo returns true if the user's direct supervisor is supervisorID
func (u *User) ReportsTo(supervisorID string) bool {
	return u.HasUpline() && *u.SupervisorID == supervisorID
}

// Actor is the identity performing an operation
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// Actor returns the user's identity as an Actor
func (u *User) Actor() Actor {
	return Actor{ID: u.ID, Role: u.Role}
}

// UserRef is the subset of a user joined onto history rows
type UserRef struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Role         Role    `json:"role"`
	SupervisorID *string `json:"supervisor_id,omitempty"`
}
