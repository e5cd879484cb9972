package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/casekeeper/internal/models"
	"github.com/wolfeidau/casekeeper/internal/store"
)

// orgDependents counts records that reference an organization.
type orgDependents interface {
	CountByOrg(ctx context.Context, orgID uuid.UUID) (int, error)
}

// OrganizationStore implements store.OrganizationStore using in-memory storage.
// This implementation is for testing only - data is lost on restart.
type OrganizationStore struct {
	mu sync.RWMutex

	organizations map[uuid.UUID]*models.Organization // org_id -> Organization
	dependents    []orgDependents
}

// NewOrganizationStore creates a new in-memory organization store.
// Delete refuses to remove an organization while any of the dependents still count records for it.
func NewOrganizationStore(dependents ...orgDependents) *OrganizationStore {
	return &OrganizationStore{
		organizations: make(map[uuid.UUID]*models.Organization),
		dependents:    dependents,
	}
}

// Create creates a new organization in memory.
func (s *OrganizationStore) Create(ctx context.Context, org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.organizations[org.ID]; exists {
		return store.ErrOrganizationAlreadyExists
	}
	for _, existing := range s.organizations {
		if existing.Slug == org.Slug {
			return store.ErrOrganizationAlreadyExists
		}
	}

	if org.Version == 0 {
		org.Version = 1
	}

	// Clone to avoid external modifications
	clone := *org
	s.organizations[org.ID] = &clone

	return nil
}

// Get retrieves an organization by ID.
func (s *OrganizationStore) Get(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	org, exists := s.organizations[orgID]
	if !exists {
		return nil, store.ErrOrganizationNotFound
	}

	// Clone to avoid external modifications
	clone := *org
	return &clone, nil
}

// GetBySlug retrieves an organization by slug.
func (s *OrganizationStore) GetBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, org := range s.organizations {
		if org.Slug == slug {
			clone := *org
			return &clone, nil
		}
	}

	return nil, store.ErrOrganizationNotFound
}

// Update replaces an organization when the stored version matches.
func (s *OrganizationStore) Update(ctx context.Context, org *models.Organization, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.organizations[org.ID]
	if !exists {
		return store.ErrOrganizationNotFound
	}
	if current.Version != expectedVersion {
		return store.ErrVersionConflict
	}
	for id, existing := range s.organizations {
		if id != org.ID && existing.Slug == org.Slug {
			return store.ErrOrganizationAlreadyExists
		}
	}

	org.Version = expectedVersion + 1
	org.UpdatedAt = time.Now()

	clone := *org
	s.organizations[org.ID] = &clone

	return nil
}

// Delete deletes an organization by ID once nothing references it.
func (s *OrganizationStore) Delete(ctx context.Context, orgID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.organizations[orgID]; !exists {
		return store.ErrOrganizationNotFound
	}

	for _, d := range s.dependents {
		n, err := d.CountByOrg(ctx, orgID)
		if err != nil {
			return err
		}
		if n > 0 {
			return store.ErrOrganizationInUse
		}
	}

	delete(s.organizations, orgID)

	return nil
}

// List returns organizations ordered by slug.
func (s *OrganizationStore) List(ctx context.Context, filter store.OrganizationFilter) ([]*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Organization, 0, len(s.organizations))
	for _, org := range s.organizations {
		if filter.Status != nil && org.Status != *filter.Status {
			continue
		}
		clone := *org
		result = append(result, &clone)
	}

	slices.SortFunc(result, func(a, b *models.Organization) int {
		return cmp.Compare(a.Slug, b.Slug)
	})

	return result, nil
}
