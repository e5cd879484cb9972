package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/wolfeidau/casekeeper/internal/models"
)

// Sentinel errors for client store operations
var (
	ErrClientNotFound      = errors.New("client not found")
	ErrClientAlreadyExists = errors.New("client already exists")
	ErrClientEmailTaken    = errors.New("client email already in use in organization")
)

// ClientFilter narrows List results. Nil fields do not filter.
type ClientFilter struct {
	OrgID            *uuid.UUID
	AssignedWorkerID *uuid.UUID
	Unassigned       bool
	Statuses         []models.ClientStatus
	IncludeDeleted   bool
	Limit            int
	Offset           int
}

// ClientStore persists clients. Client emails are unique within an organization.
type ClientStore interface {
	// Create stores a new client.
	Create(ctx context.Context, client *models.Client) error

	// Get retrieves a client by ID.
	Get(ctx context.Context, clientID uuid.UUID) (*models.Client, error)

	// Update replaces a client if its stored version equals expectedVersion.
	// On success client.Version is incremented.
	Update(ctx context.Context, client *models.Client, expectedVersion int64) error

	// List returns clients matching the filter ordered by creation time then ID.
	List(ctx context.Context, filter ClientFilter) ([]*models.Client, error)

	// WorkerLoads counts active clients per assigned worker in the organization.
	// Workers with no clients are absent from the map.
	WorkerLoads(ctx context.Context, orgID uuid.UUID) (map[uuid.UUID]int, error)

	// CountByOrg counts every client, deleted or not, in the organization.
	CountByOrg(ctx context.Context, orgID uuid.UUID) (int, error)
}
