package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/casekeeper/internal/models"
)

// ErrAuditEntryExists is returned when appending an entry whose ID is already recorded.
var ErrAuditEntryExists = errors.New("audit entry already exists")

// AuditFilter narrows audit log queries. Nil or zero fields do not filter.
type AuditFilter struct {
	ActorID    string
	Action     string
	EntityType string
	EntityID   string
	OrgID      *uuid.UUID
	Since      time.Time
	Until      time.Time
	Limit      int
	Offset     int
}

// AuditStore is an append-only log. Entries are never updated or deleted.
type AuditStore interface {
	// Append adds an entry. Returns ErrAuditEntryExists for a duplicate ID.
	Append(ctx context.Context, entry *models.AuditEntry) error

	// List returns entries matching the filter, newest first.
	List(ctx context.Context, filter AuditFilter) ([]*models.AuditEntry, error)
}
