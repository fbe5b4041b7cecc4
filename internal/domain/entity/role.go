package entity

// Role is the closed set of user roles
type Role string

var validRoles = map[Role]bool{
	RoleEmployee:   true,
	RoleSupervisor: true,
	RoleAccounts:   true,
	RoleManagement: true,
}

// AllRoles returns every role in a stable order
func AllRoles() []Role {
	return []Role{RoleEmployee, RoleSupervisor, RoleAccounts, RoleManagement}
}

// IsValid returns true if the role is one of the defined constants
func (r Role) IsValid() bool {
	return validRoles[r]
}

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}

// InSupervisorTree reports whether users with this role may carry a supervisor
// and own bills.
func (r Role) InSupervisorTree() bool {
	switch r {
	case RoleEmployee, RoleSupervisor:
		return true
	case RoleAccounts, RoleManagement:
		return false
	default:
		return false
	}
}
