// Package workload picks support workers for clients so that active caseloads stay even.
package workload

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/casekeeper/internal/apperr"
	"github.com/wolfeidau/casekeeper/internal/models"
	"github.com/wolfeidau/casekeeper/internal/store"
	"github.com/wolfeidau/casekeeper/internal/telemetry"
)

// WorkerLoad is a worker's count of active assigned clients.
type WorkerLoad struct {
	WorkerID uuid.UUID   `json:"worker_id"`
	Name     string      `json:"name"`
	Role     models.Role `json:"role"`
	Load     int         `json:"load"`
}

// Assignment pairs a client with the worker chosen for it.
type Assignment struct {
	ClientID uuid.UUID `json:"client_id"`
	WorkerID uuid.UUID `json:"worker_id"`
}

// AssignFunc persists one assignment chosen by BalanceAssign.
type AssignFunc func(ctx context.Context, clientID, workerID uuid.UUID) error

// Balancer implements least-loaded worker selection.
type Balancer struct {
	orgs    store.OrganizationStore
	staff   store.StaffStore
	clients store.ClientStore
}

// NewBalancer creates a balancer over the given stores.
func NewBalancer(orgs store.OrganizationStore, staff store.StaffStore, clients store.ClientStore) *Balancer {
	return &Balancer{
		orgs:    orgs,
		staff:   staff,
		clients: clients,
	}
}

// Loads returns every eligible worker in the organization with its current load,
// in (CreatedAt, ID) order.
func (b *Balancer) Loads(ctx context.Context, orgID uuid.UUID) ([]WorkerLoad, error) {
	active := models.UserStatusActive
	workers, err := b.staff.List(ctx, store.UserFilter{
		OrgID:  &orgID,
		Roles:  models.EligibleWorkerRoles,
		Status: &active,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "failed to list workers")
	}

	counts, err := b.clients.WorkerLoads(ctx, orgID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "failed to count worker loads")
	}

	loads := make([]WorkerLoad, 0, len(workers))
	for _, w := range workers {
		if !w.IsEligibleWorkerIn(orgID) {
			continue
		}
		loads = append(loads, WorkerLoad{
			WorkerID: w.ID,
			Name:     w.Name,
			Role:     w.Role,
			Load:     counts[w.ID],
		})
	}

	return loads, nil
}

// PickLeastLoaded returns the eligible worker with the fewest active clients.
// Ties go to the earliest created worker. Workers at the organization's
// MaxClientsPerWorker are skipped.
func (b *Balancer) PickLeastLoaded(ctx context.Context, orgID uuid.UUID) (uuid.UUID, error) {
	capacity, err := b.capacity(ctx, orgID)
	if err != nil {
		return uuid.Nil, err
	}

	loads, err := b.Loads(ctx, orgID)
	if err != nil {
		return uuid.Nil, err
	}

	best := -1
	for i, l := range loads {
		if capacity > 0 && l.Load >= capacity {
			continue
		}
		if best == -1 || l.Load < loads[best].Load {
			best = i
		}
	}

	if best == -1 {
		telemetry.GetMetrics().NoEligibleWorkers.Add(ctx, 1)
		log.Warn().
			Str("org_id", orgID.String()).
			Int("workers", len(loads)).
			Int("capacity", capacity).
			Msg("No eligible workers for assignment")
		return uuid.Nil, apperr.NoEligibleWorkers("no eligible workers in organization %s", orgID)
	}

	return loads[best].WorkerID, nil
}

// BalanceAssign assigns each client in order to the least loaded worker, re-reading loads
// before every pick so each assignment sees the previous one.
//
// On error the assignments already made are returned with it.
func (b *Balancer) BalanceAssign(ctx context.Context, orgID uuid.UUID, clientIDs []uuid.UUID, assign AssignFunc) ([]Assignment, error) {
	assignments := make([]Assignment, 0, len(clientIDs))

	for _, clientID := range clientIDs {
		if err := ctx.Err(); err != nil {
			return assignments, err
		}

		workerID, err := b.PickLeastLoaded(ctx, orgID)
		if err != nil {
			return assignments, err
		}

		if err := assign(ctx, clientID, workerID); err != nil {
			return assignments, err
		}

		assignments = append(assignments, Assignment{ClientID: clientID, WorkerID: workerID})
	}

	return assignments, nil
}

func (b *Balancer) capacity(ctx context.Context, orgID uuid.UUID) (int, error) {
	org, err := b.orgs.Get(ctx, orgID)
	if err != nil {
		if errors.Is(err, store.ErrOrganizationNotFound) {
			return 0, apperr.NotFound("organization %s not found", orgID)
		}
		return 0, apperr.Wrap(apperr.KindInternal, err, "failed to load organization")
	}
	return org.Settings.MaxClientsPerWorker, nil
}
