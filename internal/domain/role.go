package domain

import "strings"

// Role enumerates the clinic areas a user can be granted.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleDoctor     Role = "doctor"
	RoleEmployee   Role = "employee"
	RoleTechnician Role = "technician"
	RoleAssistant  Role = "assistant"
)

// Roles lists every known role.
var Roles = []Role{RoleAdmin, RoleDoctor, RoleEmployee, RoleTechnician, RoleAssistant}

// NormalizeRole lower-cases and trims a role string coming from the wire.
func NormalizeRole(raw string) Role {
	return Role(strings.ToLower(strings.TrimSpace(raw)))
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

func (r Role) String() string {
	return string(r)
}
