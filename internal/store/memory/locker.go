package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/wolfeidau/casekeeper/internal/store"
)

// OrgLocker implements store.OrgLocker with one single-slot channel per organization.
// Locks are only visible within the current process.
type OrgLocker struct {
	mu    sync.Mutex
	slots map[uuid.UUID]chan struct{}
}

// NewOrgLocker creates a new in-process organization locker.
func NewOrgLocker() *OrgLocker {
	return &OrgLocker{slots: make(map[uuid.UUID]chan struct{})}
}

// Lock waits for the organization's slot or for ctx to finish.
func (l *OrgLocker) Lock(ctx context.Context, orgID uuid.UUID) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[orgID]
	if !ok {
		slot = make(chan struct{}, 1)
		l.slots[orgID] = slot
	}
	l.mu.Unlock()

	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return nil, store.ErrLockNotAcquired
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-slot })
	}, nil
}
