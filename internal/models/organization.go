package models

import (
	"time"

	"github.com/google/uuid"
)

// OrgStatus is the lifecycle state of an organization.
type OrgStatus string

const (
	OrgStatusActive    OrgStatus = "active"
	OrgStatusInactive  OrgStatus = "inactive"
	OrgStatusSuspended OrgStatus = "suspended"
)

var orgTransitions = map[OrgStatus][]OrgStatus{
	OrgStatusActive:    {OrgStatusInactive, OrgStatusSuspended},
	OrgStatusInactive:  {OrgStatusActive},
	OrgStatusSuspended: {OrgStatusActive},
}

// Valid reports whether s is a known organization status.
func (s OrgStatus) Valid() bool {
	_, ok := orgTransitions[s]
	return ok
}

// CanTransition reports whether an organization may move from s to next.
func (s OrgStatus) CanTransition(next OrgStatus) bool {
	return canTransition(orgTransitions, s, next)
}

// OrgSettings holds per-organization behaviour switches.
type OrgSettings struct {
	// AutoAssign picks the least loaded worker for new appointments that name none.
	AutoAssign bool `json:"auto_assign"`
	// MaxClientsPerWorker caps a worker's active load for automatic assignment, 0 means unlimited.
	MaxClientsPerWorker int `json:"max_clients_per_worker,omitempty"`
}

// Organization represents an organization (tenant) in the system.
// Every client and every non-superadmin staff user belongs to exactly one organization.
type Organization struct {
	ID        uuid.UUID   `json:"id"` // UUIDv7
	Slug      string      `json:"slug"`
	Name      string      `json:"name"`
	Status    OrgStatus   `json:"status"`
	Settings  OrgSettings `json:"settings"`
	Version   int64       `json:"version"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}
