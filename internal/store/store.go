// Package store defines persistence interfaces for the case engine.
// Implementations live in the memory, postgres and redis subpackages.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Sentinel errors shared by all stores
var (
	// ErrVersionConflict is returned when a compare-and-swap update sees a newer version.
	ErrVersionConflict = errors.New("version conflict")

	// ErrLockNotAcquired is returned when an organization lock cannot be taken before ctx is done.
	ErrLockNotAcquired = errors.New("organization lock not acquired")
)

// OrgLocker serializes work per organization across callers.
type OrgLocker interface {
	// Lock blocks until the organization's lock is held or ctx is done.
	// The returned release function must be called exactly once.
	Lock(ctx context.Context, orgID uuid.UUID) (release func(), err error)
}

// Stores groups the stores used by the engine.
type Stores struct {
	Organizations OrganizationStore
	Staff         StaffStore
	Clients       ClientStore
	Appointments  AppointmentStore
	Audit         AuditStore
	Locker        OrgLocker
}

// DefaultLimit and MaxLimit bound paginated queries.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// ClampLimit applies DefaultLimit and MaxLimit to a requested page size.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
