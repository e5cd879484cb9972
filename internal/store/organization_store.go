package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/wolfeidau/casekeeper/internal/models"
)

// Sentinel errors for organization store operations
var (
	ErrOrganizationNotFound      = errors.New("organization not found")
	ErrOrganizationAlreadyExists = errors.New("organization already exists")
	ErrOrganizationInUse         = errors.New("organization has dependent users or clients")
)

// OrganizationFilter narrows List results.
type OrganizationFilter struct {
	Status *models.OrgStatus
}

// OrganizationStore defines the interface for organization storage operations.
// Organizations are the root of tenancy: every client and non-superadmin staff user references one.
type OrganizationStore interface {
	// Create creates a new organization in the store.
	// Returns ErrOrganizationAlreadyExists if the ID or slug is already taken.
	Create(ctx context.Context, org *models.Organization) error

	// Get retrieves an organization by ID.
	// Returns ErrOrganizationNotFound if the organization doesn't exist.
	Get(ctx context.Context, orgID uuid.UUID) (*models.Organization, error)

	// GetBySlug retrieves an organization by its unique slug.
	GetBySlug(ctx context.Context, slug string) (*models.Organization, error)

	// Update replaces an organization if its stored version equals expectedVersion.
	// On success org.Version is incremented.
	// Returns ErrOrganizationNotFound or ErrVersionConflict.
	Update(ctx context.Context, org *models.Organization, expectedVersion int64) error

	// Delete removes an organization.
	// Returns ErrOrganizationInUse if any staff user or client still references it.
	Delete(ctx context.Context, orgID uuid.UUID) error

	// List returns organizations ordered by slug.
	List(ctx context.Context, filter OrganizationFilter) ([]*models.Organization, error)
}
