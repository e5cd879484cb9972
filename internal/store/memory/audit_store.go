package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/wolfeidau/casekeeper/internal/models"
	"github.com/wolfeidau/casekeeper/internal/store"
)

// AuditStore implements store.AuditStore as an in-memory append-only slice.
type AuditStore struct {
	mu      sync.RWMutex
	entries []*models.AuditEntry
	ids     map[uuid.UUID]struct{}
}

// NewAuditStore creates a new in-memory audit store.
func NewAuditStore() *AuditStore {
	return &AuditStore{
		ids: make(map[uuid.UUID]struct{}),
	}
}

// Append adds an entry to the end of the log.
func (s *AuditStore) Append(ctx context.Context, entry *models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids[entry.ID]; exists {
		return store.ErrAuditEntryExists
	}

	s.ids[entry.ID] = struct{}{}
	s.entries = append(s.entries, cloneAuditEntry(entry))
	return nil
}

// List returns matching entries, newest first.
func (s *AuditStore) List(ctx context.Context, filter store.AuditFilter) ([]*models.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.AuditEntry
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if !matchesAudit(e, filter) {
			continue
		}
		result = append(result, cloneAuditEntry(e))
	}

	return paginate(result, filter.Offset, filter.Limit), nil
}

// Len returns the number of entries recorded.
func (s *AuditStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func matchesAudit(e *models.AuditEntry, f store.AuditFilter) bool {
	switch {
	case f.ActorID != "" && e.ActorID != f.ActorID:
		return false
	case f.Action != "" && e.Action != f.Action:
		return false
	case f.EntityType != "" && e.EntityType != f.EntityType:
		return false
	case f.EntityID != "" && e.EntityID != f.EntityID:
		return false
	case f.OrgID != nil && !sameUUID(e.OrgID, f.OrgID):
		return false
	case !f.Since.IsZero() && e.Timestamp.Before(f.Since):
		return false
	case !f.Until.IsZero() && !e.Timestamp.Before(f.Until):
		return false
	}
	return true
}
