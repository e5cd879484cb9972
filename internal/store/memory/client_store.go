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

// ClientStore implements store.ClientStore using in-memory storage.
// This implementation is for testing only - data is lost on restart.
type ClientStore struct {
	mu sync.RWMutex

	clients map[uuid.UUID]*models.Client // client_id -> Client
}

// NewClientStore creates a new in-memory client store.
func NewClientStore() *ClientStore {
	return &ClientStore{
		clients: make(map[uuid.UUID]*models.Client),
	}
}

// Create stores a new client.
func (s *ClientStore) Create(ctx context.Context, client *models.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.clients[client.ID]; exists {
		return store.ErrClientAlreadyExists
	}
	if s.emailTakenLocked(client) {
		return store.ErrClientEmailTaken
	}

	if client.Version == 0 {
		client.Version = 1
	}

	s.clients[client.ID] = cloneClient(client)

	return nil
}

// Get retrieves a client by ID.
func (s *ClientStore) Get(ctx context.Context, clientID uuid.UUID) (*models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	client, exists := s.clients[clientID]
	if !exists {
		return nil, store.ErrClientNotFound
	}

	return cloneClient(client), nil
}

// Update replaces a client when the stored version matches.
func (s *ClientStore) Update(ctx context.Context, client *models.Client, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.clients[client.ID]
	if !exists {
		return store.ErrClientNotFound
	}
	if current.Version != expectedVersion {
		return store.ErrVersionConflict
	}
	if client.Status != models.ClientStatusDeleted && s.emailTakenLocked(client) {
		return store.ErrClientEmailTaken
	}

	client.Version = expectedVersion + 1
	client.UpdatedAt = time.Now()

	s.clients[client.ID] = cloneClient(client)

	return nil
}

// List returns clients matching the filter.
func (s *ClientStore) List(ctx context.Context, filter store.ClientFilter) ([]*models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Client
	for _, client := range s.clients {
		if !matchesClient(client, filter) {
			continue
		}
		result = append(result, cloneClient(client))
	}

	slices.SortFunc(result, func(a, b *models.Client) int {
		return compareCreated(a.CreatedAt, a.ID, b.CreatedAt, b.ID)
	})

	return paginate(result, filter.Offset, filter.Limit), nil
}

// WorkerLoads counts active clients per worker by scanning every client in the organization.
func (s *ClientStore) WorkerLoads(ctx context.Context, orgID uuid.UUID) (map[uuid.UUID]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	loads := make(map[uuid.UUID]int)
	for _, client := range s.clients {
		if client.OrgID != orgID || client.AssignedWorkerID == nil || !client.CountsTowardsLoad() {
			continue
		}
		loads[*client.AssignedWorkerID]++
	}

	return loads, nil
}

// CountByOrg counts clients in the organization.
func (s *ClientStore) CountByOrg(ctx context.Context, orgID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, client := range s.clients {
		if client.OrgID == orgID {
			count++
		}
	}
	return count, nil
}

func (s *ClientStore) emailTakenLocked(c *models.Client) bool {
	if c.Email == "" {
		return false
	}
	for id, other := range s.clients {
		if id == c.ID || other.OrgID != c.OrgID || other.Status == models.ClientStatusDeleted {
			continue
		}
		if strings.EqualFold(other.Email, c.Email) {
			return true
		}
	}
	return false
}

func matchesClient(c *models.Client, filter store.ClientFilter) bool {
	if !filter.IncludeDeleted && c.Status == models.ClientStatusDeleted {
		return false
	}
	if filter.OrgID != nil && c.OrgID != *filter.OrgID {
		return false
	}
	if filter.AssignedWorkerID != nil && !sameUUID(c.AssignedWorkerID, filter.AssignedWorkerID) {
		return false
	}
	if filter.Unassigned && c.AssignedWorkerID != nil {
		return false
	}
	if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, c.Status) {
		return false
	}
	return true
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
