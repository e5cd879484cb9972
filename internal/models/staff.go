package models

import (
	"time"

	"github.com/google/uuid"
)

// UserStatus is the lifecycle state of a staff user. Users are never physically removed.
type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusInactive  UserStatus = "inactive"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusDeleted   UserStatus = "deleted"
)

var userTransitions = map[UserStatus][]UserStatus{
	UserStatusActive:    {UserStatusInactive, UserStatusSuspended, UserStatusDeleted},
	UserStatusInactive:  {UserStatusActive, UserStatusDeleted},
	UserStatusSuspended: {UserStatusActive, UserStatusDeleted},
	UserStatusDeleted:   {},
}

// Valid reports whether s is a known user status.
func (s UserStatus) Valid() bool {
	_, ok := userTransitions[s]
	return ok
}

// CanTransition reports whether a user may move from s to next.
func (s UserStatus) CanTransition(next UserStatus) bool {
	return canTransition(userTransitions, s, next)
}

// StaffUser is a person working inside the platform.
type StaffUser struct {
	ID         uuid.UUID  `json:"id"`          // UUIDv7
	ExternalID string     `json:"external_id"` // authenticated subject identifier
	Email      string     `json:"email"`
	Name       string     `json:"name"`
	Phone      string     `json:"phone,omitempty"`
	Role       Role       `json:"role"`
	OrgID      *uuid.UUID `json:"org_id,omitempty"` // nil only for superadmins
	Status     UserStatus `json:"status"`
	Version    int64      `json:"version"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
}

// IsActive returns true when the user may act and be acted upon.
func (u *StaffUser) IsActive() bool {
	return u.Status == UserStatusActive
}

// IsDeleted returns true if the user has been archived.
func (u *StaffUser) IsDeleted() bool {
	return u.Status == UserStatusDeleted
}

// BelongsTo reports whether the user is a member of the organization.
func (u *StaffUser) BelongsTo(orgID uuid.UUID) bool {
	return u.OrgID != nil && *u.OrgID == orgID
}

// IsEligibleWorkerIn reports whether the user can receive client assignments in the organization.
func (u *StaffUser) IsEligibleWorkerIn(orgID uuid.UUID) bool {
	return u.IsActive() && u.Role.IsEligibleWorker() && u.BelongsTo(orgID)
}
