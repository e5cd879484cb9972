// Package directory administers users, organizations, clients and roles.
//
// Every operation authorizes the caller and applies their tenant scope before touching a
// store, and records an audit entry after a successful mutation.
package directory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/casekeeper/internal/apperr"
	"github.com/wolfeidau/casekeeper/internal/audit"
	"github.com/wolfeidau/casekeeper/internal/auth"
	"github.com/wolfeidau/casekeeper/internal/models"
	"github.com/wolfeidau/casekeeper/internal/store"
	"github.com/wolfeidau/casekeeper/internal/workload"
)

// Service implements the directory operations.
type Service struct {
	engine   *auth.Engine
	orgs     store.OrganizationStore
	staff    store.StaffStore
	clients  store.ClientStore
	balancer *workload.Balancer
	audit    *audit.Recorder
	now      func() time.Time
}

// NewService creates a directory service.
func NewService(engine *auth.Engine, stores *store.Stores, balancer *workload.Balancer, recorder *audit.Recorder) *Service {
	return &Service{
		engine:   engine,
		orgs:     stores.Organizations,
		staff:    stores.Staff,
		clients:  stores.Clients,
		balancer: balancer,
		audit:    recorder,
		now:      time.Now,
	}
}

func (s *Service) record(ctx context.Context, actor *models.StaffUser, action, entityType, entityID string, orgID *uuid.UUID, details any) {
	s.audit.Record(ctx, audit.Event{
		ActorID:    actor.ID.String(),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
		OrgID:      orgID,
	})
}

func (s *Service) requireOrg(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	org, err := s.orgs.Get(ctx, orgID)
	if err != nil {
		return nil, storeError(err, "organization")
	}
	return org, nil
}

// storeError maps store sentinels onto the caller-facing taxonomy.
func storeError(err error, what string) error {
	switch {
	case errors.Is(err, store.ErrUserNotFound),
		errors.Is(err, store.ErrClientNotFound),
		errors.Is(err, store.ErrOrganizationNotFound):
		return apperr.NotFound("%s not found", what)
	case errors.Is(err, store.ErrEmailTaken),
		errors.Is(err, store.ErrClientEmailTaken):
		return apperr.Conflict("email address is already in use")
	case errors.Is(err, store.ErrUserAlreadyExists),
		errors.Is(err, store.ErrClientAlreadyExists),
		errors.Is(err, store.ErrOrganizationAlreadyExists):
		return apperr.Conflict("%s already exists", what)
	case errors.Is(err, store.ErrVersionConflict):
		return apperr.Conflict("%s was modified by someone else, reload and retry", what)
	case errors.Is(err, store.ErrLastSuperadmin):
		return apperr.InvariantViolation("at least one active superadmin must remain")
	case errors.Is(err, store.ErrOrganizationInUse):
		return apperr.InvariantViolation("organization still has users or clients")
	default:
		return apperr.Wrap(apperr.KindInternal, err, "failed to access "+what)
	}
}

// checkVersion rejects a stale ExpectedVersion before any write.
func checkVersion(what string, expected, current int64) (int64, error) {
	if expected == 0 {
		return current, nil
	}
	if expected != current {
		return 0, apperr.Conflict("%s was modified by someone else, reload and retry", what)
	}
	return expected, nil
}

func newID() (uuid.UUID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, apperr.Wrap(apperr.KindInternal, err, "failed to generate id")
	}
	return id, nil
}
