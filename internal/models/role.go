package models

import (
	"fmt"
	"slices"
)

// Role is the closed set of roles a staff user can hold.
type Role string

const (
	RoleSuperadmin    Role = "superadmin"
	RoleAdmin         Role = "admin"
	RoleTeamLeader    Role = "team_leader"
	RoleSupportWorker Role = "support_worker"
	RolePeerSupport   Role = "peer_support"
	RoleClient        Role = "client"
)

// Roles lists every role, most powerful first.
var Roles = []Role{
	RoleSuperadmin,
	RoleAdmin,
	RoleTeamLeader,
	RoleSupportWorker,
	RolePeerSupport,
	RoleClient,
}

// EligibleWorkerRoles are the roles that can receive client assignments.
var EligibleWorkerRoles = []Role{RoleSupportWorker, RolePeerSupport}

// ParseRole converts a string to a Role, rejecting anything outside the closed set.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return slices.Contains(Roles, r)
}

// Level returns the hierarchy level of the role. Lower is more powerful.
// Unknown roles return -1.
func (r Role) Level() int {
	switch r {
	case RoleSuperadmin:
		return 0
	case RoleAdmin:
		return 1
	case RoleTeamLeader:
		return 2
	case RoleSupportWorker, RolePeerSupport:
		return 3
	case RoleClient:
		return 4
	default:
		return -1
	}
}

// IsEligibleWorker reports whether the role can be assigned clients.
func (r Role) IsEligibleWorker() bool {
	return slices.Contains(EligibleWorkerRoles, r)
}

// Outranks reports whether r has administrative precedence over other.
// Superadmin outranks every role including itself.
func (r Role) Outranks(other Role) bool {
	if r == RoleSuperadmin {
		return true
	}
	if r.Level() < 0 || other.Level() < 0 {
		return false
	}
	return r.Level() < other.Level()
}
