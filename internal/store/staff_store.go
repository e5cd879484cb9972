package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/wolfeidau/casekeeper/internal/models"
)

// Sentinel errors for staff store operations
var (
	ErrUserNotFound      = errors.New("staff user not found")
	ErrUserAlreadyExists = errors.New("staff user already exists")
	ErrEmailTaken        = errors.New("email already in use")
	ErrLastSuperadmin    = errors.New("at least one active superadmin must remain")
)

// UserFilter narrows List results. Nil fields do not filter.
type UserFilter struct {
	OrgID          *uuid.UUID
	Roles          []models.Role
	Status         *models.UserStatus
	IncludeDeleted bool
}

// StaffStore persists staff users.
//
// Email addresses are unique across every organization among users that are not deleted.
// Implementations also refuse any write that would leave no active superadmin.
type StaffStore interface {
	// Create stores a new user.
	// Returns ErrUserAlreadyExists for a duplicate ID or external ID, ErrEmailTaken for a duplicate email.
	Create(ctx context.Context, user *models.StaffUser) error

	// Get retrieves a user by ID, including deleted users.
	Get(ctx context.Context, userID uuid.UUID) (*models.StaffUser, error)

	// GetByExternalID retrieves a user by the authenticated subject identifier.
	GetByExternalID(ctx context.Context, externalID string) (*models.StaffUser, error)

	// Update replaces a user if its stored version equals expectedVersion.
	// On success user.Version is incremented.
	// Returns ErrVersionConflict, ErrEmailTaken or ErrLastSuperadmin.
	Update(ctx context.Context, user *models.StaffUser, expectedVersion int64) error

	// List returns users matching the filter ordered by creation time then ID.
	// Deleted users are excluded unless IncludeDeleted is set.
	List(ctx context.Context, filter UserFilter) ([]*models.StaffUser, error)

	// CountByOrg counts every user, deleted or not, that references the organization.
	CountByOrg(ctx context.Context, orgID uuid.UUID) (int, error)
}
