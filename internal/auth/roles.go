package auth

import (
	"fmt"
	"strings"
)

// Role is the closed set of access levels a user can hold. Exactly one role is
// assigned per user; only administrators may change it.
type Role string

const (
	// RoleAdmin has full read/write access, user management and system settings.
	RoleAdmin Role = "admin"
	// RoleManager runs inventory and purchase orders for a department.
	RoleManager Role = "manager"
	// RoleStaff works the floor: product view/edit and stock transactions.
	RoleStaff Role = "staff"
)

// ParseRole normalizes and validates a role name. Unknown names are rejected
// rather than mapped to a default.
func ParseRole(s string) (Role, error) {
	switch Role(strings.TrimSpace(strings.ToLower(s))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleManager:
		return RoleManager, nil
	case RoleStaff:
		return RoleStaff, nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, s)
	}
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleStaff:
		return true
	default:
		return false
	}
}

func (r Role) String() string { return string(r) }
