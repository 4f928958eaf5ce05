package domain

import "strings"

// Role enumerates portal operator roles.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
)

// ParseRole normalizes a role claim. Unknown values are kept verbatim so that
// permission checks can fail closed on them.
func ParseRole(raw string) Role {
	return Role(strings.ToLower(strings.TrimSpace(raw)))
}

// Known reports whether the role is one the portal recognizes.
func (r Role) Known() bool {
	return r == RoleAdmin || r == RoleStaff
}
