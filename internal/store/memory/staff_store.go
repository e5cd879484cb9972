package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/casekeeper/internal/models"
	"github.com/wolfeidau/casekeeper/internal/store"
)

// StaffStore implements store.StaffStore using in-memory storage.
// This implementation is for testing only - data is lost on restart.
type StaffStore struct {
	mu sync.RWMutex

	users      map[uuid.UUID]*models.StaffUser // user_id -> StaffUser
	byExternal map[string]uuid.UUID            // external_id -> user_id
}

// NewStaffStore creates a new in-memory staff store.
func NewStaffStore() *StaffStore {
	return &StaffStore{
		users:      make(map[uuid.UUID]*models.StaffUser),
		byExternal: make(map[string]uuid.UUID),
	}
}

// Create stores a new staff user.
func (s *StaffStore) Create(ctx context.Context, user *models.StaffUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.ID]; exists {
		return store.ErrUserAlreadyExists
	}
	if _, exists := s.byExternal[user.ExternalID]; exists {
		return store.ErrUserAlreadyExists
	}
	if s.emailTakenLocked(user.Email, user.ID) {
		return store.ErrEmailTaken
	}

	if user.Version == 0 {
		user.Version = 1
	}

	s.users[user.ID] = cloneUser(user)
	s.byExternal[user.ExternalID] = user.ID

	return nil
}

// Get retrieves a staff user by ID.
func (s *StaffStore) Get(ctx context.Context, userID uuid.UUID) (*models.StaffUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[userID]
	if !exists {
		return nil, store.ErrUserNotFound
	}

	return cloneUser(user), nil
}

// GetByExternalID retrieves a staff user by subject identifier.
func (s *StaffStore) GetByExternalID(ctx context.Context, externalID string) (*models.StaffUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.byExternal[externalID]
	if !exists {
		return nil, store.ErrUserNotFound
	}

	return cloneUser(s.users[id]), nil
}

// Update replaces a staff user when the stored version matches.
func (s *StaffStore) Update(ctx context.Context, user *models.StaffUser, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.users[user.ID]
	if !exists {
		return store.ErrUserNotFound
	}
	if current.Version != expectedVersion {
		return store.ErrVersionConflict
	}
	if !user.IsDeleted() && s.emailTakenLocked(user.Email, user.ID) {
		return store.ErrEmailTaken
	}
	if isActiveSuperadmin(current) && !isActiveSuperadmin(user) && s.activeSuperadminsLocked() <= 1 {
		return store.ErrLastSuperadmin
	}

	if current.ExternalID != user.ExternalID {
		if _, taken := s.byExternal[user.ExternalID]; taken {
			return store.ErrUserAlreadyExists
		}
		delete(s.byExternal, current.ExternalID)
		s.byExternal[user.ExternalID] = user.ID
	}

	user.Version = expectedVersion + 1
	user.UpdatedAt = time.Now()

	s.users[user.ID] = cloneUser(user)

	return nil
}

// List returns staff users matching the filter.
func (s *StaffStore) List(ctx context.Context, filter store.UserFilter) ([]*models.StaffUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.StaffUser
	for _, user := range s.users {
		if !filter.IncludeDeleted && user.IsDeleted() {
			continue
		}
		if filter.OrgID != nil && !user.BelongsTo(*filter.OrgID) {
			continue
		}
		if len(filter.Roles) > 0 && !slices.Contains(filter.Roles, user.Role) {
			continue
		}
		if filter.Status != nil && user.Status != *filter.Status {
			continue
		}
		result = append(result, cloneUser(user))
	}

	slices.SortFunc(result, func(a, b *models.StaffUser) int {
		return compareCreated(a.CreatedAt, a.ID, b.CreatedAt, b.ID)
	})

	return result, nil
}

// CountByOrg counts users that reference the organization.
func (s *StaffStore) CountByOrg(ctx context.Context, orgID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, user := range s.users {
		if user.BelongsTo(orgID) {
			count++
		}
	}
	return count, nil
}

func (s *StaffStore) emailTakenLocked(email string, self uuid.UUID) bool {
	if email == "" {
		return false
	}
	for id, user := range s.users {
		if id != self && !user.IsDeleted() && strings.EqualFold(user.Email, email) {
			return true
		}
	}
	return false
}

func (s *StaffStore) activeSuperadminsLocked() int {
	count := 0
	for _, user := range s.users {
		if isActiveSuperadmin(user) {
			count++
		}
	}
	return count
}

func isActiveSuperadmin(u *models.StaffUser) bool {
	return u.Role == models.RoleSuperadmin && u.IsActive()
}
