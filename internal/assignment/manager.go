// Package assignment assigns clients to workers and books appointments.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/casekeeper/internal/apperr"
	"github.com/wolfeidau/casekeeper/internal/audit"
	"github.com/wolfeidau/casekeeper/internal/auth"
	"github.com/wolfeidau/casekeeper/internal/models"
	"github.com/wolfeidau/casekeeper/internal/store"
	"github.com/wolfeidau/casekeeper/internal/telemetry"
	"github.com/wolfeidau/casekeeper/internal/workload"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const defaultMaxTries = 5

// AssignResult describes the outcome of a single assignment.
type AssignResult struct {
	ClientID         uuid.UUID  `json:"client_id"`
	OrgID            uuid.UUID  `json:"org_id"`
	WorkerID         uuid.UUID  `json:"worker_id"`
	PreviousWorkerID *uuid.UUID `json:"previous_worker_id,omitempty"`
	// Unchanged is set when the client was already assigned to WorkerID.
	Unchanged bool  `json:"unchanged"`
	Version   int64 `json:"version"`
}

// BulkResult describes a bulk assignment run.
type BulkResult struct {
	Success       bool                  `json:"success"`
	AssignedCount int                   `json:"assigned_count"`
	Message       string                `json:"message"`
	BatchID       uuid.UUID             `json:"batch_id,omitzero"`
	Assignments   []workload.Assignment `json:"assignments"`
}

// Manager coordinates client assignment under authorization and tenant scope.
type Manager struct {
	engine   *auth.Engine
	orgs     store.OrganizationStore
	staff    store.StaffStore
	clients  store.ClientStore
	appts    store.AppointmentStore
	locker   store.OrgLocker
	balancer *workload.Balancer
	audit    *audit.Recorder
	maxTries uint
	now      func() time.Time
}

// NewManager creates an assignment manager.
func NewManager(engine *auth.Engine, stores *store.Stores, balancer *workload.Balancer, recorder *audit.Recorder) *Manager {
	return &Manager{
		engine:   engine,
		orgs:     stores.Organizations,
		staff:    stores.Staff,
		clients:  stores.Clients,
		appts:    stores.Appointments,
		locker:   stores.Locker,
		balancer: balancer,
		audit:    recorder,
		maxTries: defaultMaxTries,
		now:      time.Now,
	}
}

func (m *Manager) retryOptions() []backoff.RetryOption {
	return []backoff.RetryOption{
		backoff.WithBackOff(&backoff.ExponentialBackOff{
			InitialInterval:     5 * time.Millisecond,
			RandomizationFactor: 0.5,
			Multiplier:          2,
			MaxInterval:         100 * time.Millisecond,
		}),
		backoff.WithMaxTries(m.maxTries),
	}
}

// AssignClient assigns clientID to workerID, or to the least loaded eligible worker when
// workerID is nil. Without a worker, a client already held by an eligible worker stays
// where it is, so retries settle on the same worker. Concurrent modifications of the
// client are retried with a fresh pick.
func (m *Manager) AssignClient(ctx context.Context, subjectID string, clientID uuid.UUID, workerID *uuid.UUID) (*AssignResult, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "assignment.AssignClient")
	defer span.End()

	actor, scope, err := m.engine.CheckScoped(ctx, subjectID, auth.PermAssignClients, nil)
	if err != nil {
		return nil, err
	}

	attempts := 0
	result, err := backoff.Retry(ctx, func() (*AssignResult, error) {
		attempts++
		if attempts > 1 {
			telemetry.GetMetrics().AssignConflictRetries.Add(ctx, 1)
		}

		client, err := m.loadAssignable(ctx, scope, clientID)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		target, err := m.chooseWorker(ctx, client, workerID)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		res := &AssignResult{
			ClientID:         client.ID,
			OrgID:            client.OrgID,
			WorkerID:         target,
			PreviousWorkerID: client.AssignedWorkerID,
			Version:          client.Version,
		}
		if client.AssignedWorkerID != nil && *client.AssignedWorkerID == target {
			res.Unchanged = true
			return res, nil
		}

		client.AssignedWorkerID = &target
		if err := m.clients.Update(ctx, client, client.Version); err != nil {
			if errors.Is(err, store.ErrVersionConflict) {
				log.Debug().Str("client_id", clientID.String()).Int("attempt", attempts).Msg("Assignment conflict, retrying")
				return nil, err
			}
			return nil, backoff.Permanent(apperr.Wrap(apperr.KindInternal, err, "failed to update client"))
		}
		res.Version = client.Version

		return res, nil
	}, m.retryOptions()...)
	if err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			return nil, apperr.Conflict("client %s was modified concurrently, try again", clientID)
		}
		return nil, err
	}

	m.audit.Record(ctx, audit.Event{
		ActorID:    actor.ID.String(),
		Action:     audit.ActionClientAssign,
		EntityType: models.EntityClient,
		EntityID:   clientID.String(),
		Details:    assignDetails(result, workerID == nil, uuid.Nil),
		OrgID:      &result.OrgID,
	})

	if !result.Unchanged {
		telemetry.GetMetrics().AssignmentsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", "single")))
		log.Info().
			Str("subject_id", subjectID).
			Str("client_id", clientID.String()).
			Str("worker_id", result.WorkerID.String()).
			Msg("Client assigned")
	}

	return result, nil
}

// BulkAssign distributes every unplaced active client in the organization across
// eligible workers. A client is unplaced when it has no worker or its worker is no
// longer eligible. Runs for the same organization are serialized.
// A superadmin must name the organization; other callers default to their own.
//
// A run that places some clients before workers run out of capacity returns a result
// with Success false and no error. Any other failure part way returns the partial
// result together with the error.
func (m *Manager) BulkAssign(ctx context.Context, subjectID string, orgID *uuid.UUID) (*BulkResult, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "assignment.BulkAssign")
	defer span.End()

	actor, scope, err := m.engine.CheckScoped(ctx, subjectID, auth.PermAssignClients, orgID)
	if err != nil {
		return nil, err
	}
	if scope.Global() {
		return nil, apperr.Validation("organization is required")
	}
	org := *scope.OrgID

	if _, err := m.orgs.Get(ctx, org); err != nil {
		if errors.Is(err, store.ErrOrganizationNotFound) {
			return nil, apperr.NotFound("organization %s not found", org)
		}
		return nil, apperr.Wrap(apperr.KindInternal, err, "failed to load organization")
	}

	start := m.now()
	release, err := m.locker.Lock(ctx, org)
	if err != nil {
		if errors.Is(err, store.ErrLockNotAcquired) {
			return nil, apperr.Conflict("bulk assignment already running for organization %s", org)
		}
		return nil, apperr.Wrap(apperr.KindInternal, err, "failed to lock organization")
	}
	defer release()

	pending, eligible, err := m.unplacedClients(ctx, org)
	if err != nil {
		return nil, err
	}

	if len(pending) == 0 {
		return &BulkResult{
			Success:     true,
			Message:     "no unassigned clients",
			Assignments: []workload.Assignment{},
		}, nil
	}

	batchID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate batch id: %w", err)
	}

	clientIDs := make([]uuid.UUID, 0, len(pending))
	for _, c := range pending {
		clientIDs = append(clientIDs, c.ID)
	}

	skipped := make(map[uuid.UUID]bool)
	assign := func(ctx context.Context, clientID, workerID uuid.UUID) error {
		p, err := m.assignIfUnplaced(ctx, clientID, workerID, eligible)
		if err != nil {
			return err
		}
		if !p.assigned {
			skipped[clientID] = true
			return nil
		}

		m.audit.Record(ctx, audit.Event{
			ActorID:    actor.ID.String(),
			Action:     audit.ActionClientBulkAssign,
			EntityType: models.EntityClient,
			EntityID:   clientID.String(),
			Details:    assignDetails(&AssignResult{ClientID: clientID, OrgID: org, WorkerID: workerID, PreviousWorkerID: p.previous}, true, batchID),
			OrgID:      &org,
		})
		return nil
	}

	done, err := m.balancer.BalanceAssign(ctx, org, clientIDs, assign)

	assignments := make([]workload.Assignment, 0, len(done))
	for _, a := range done {
		if !skipped[a.ClientID] {
			assignments = append(assignments, a)
		}
	}

	telemetry.GetMetrics().AssignmentsTotal.Add(ctx, int64(len(assignments)), metric.WithAttributes(attribute.String("mode", "bulk")))
	telemetry.GetMetrics().BulkAssignDuration.Record(ctx, float64(m.now().Sub(start).Milliseconds()))

	if err != nil {
		log.Error().
			Err(err).
			Str("org_id", org.String()).
			Str("batch_id", batchID.String()).
			Int("assigned", len(assignments)).
			Int("pending", len(pending)).
			Msg("Bulk assignment stopped")

		partial := &BulkResult{
			Success:       false,
			AssignedCount: len(assignments),
			Message:       fmt.Sprintf("assigned %d of %d clients: %s", len(assignments), len(pending), apperr.SafeMessage(err)),
			BatchID:       batchID,
			Assignments:   assignments,
		}
		if len(assignments) > 0 && apperr.Is(err, apperr.KindNoEligibleWorkers) {
			return partial, nil
		}
		return partial, err
	}

	log.Info().
		Str("subject_id", subjectID).
		Str("org_id", org.String()).
		Str("batch_id", batchID.String()).
		Int("assigned", len(assignments)).
		Msg("Bulk assignment complete")

	return &BulkResult{
		Success:       true,
		AssignedCount: len(assignments),
		Message:       fmt.Sprintf("assigned %d clients", len(assignments)),
		BatchID:       batchID,
		Assignments:   assignments,
	}, nil
}

type placement struct {
	assigned bool
	previous *uuid.UUID
}

// assignIfUnplaced sets the client's worker unless it is inactive or someone already
// placed it with a worker in eligible.
func (m *Manager) assignIfUnplaced(ctx context.Context, clientID, workerID uuid.UUID, eligible map[uuid.UUID]bool) (placement, error) {
	return backoff.Retry(ctx, func() (placement, error) {
		client, err := m.clients.Get(ctx, clientID)
		if err != nil {
			return placement{}, backoff.Permanent(apperr.Wrap(apperr.KindInternal, err, "failed to load client"))
		}
		if isPlaced(client, eligible) || client.Status != models.ClientStatusActive {
			return placement{}, nil
		}

		previous := client.AssignedWorkerID
		client.AssignedWorkerID = &workerID
		if err := m.clients.Update(ctx, client, client.Version); err != nil {
			if errors.Is(err, store.ErrVersionConflict) {
				telemetry.GetMetrics().AssignConflictRetries.Add(ctx, 1)
				return placement{}, err
			}
			return placement{}, backoff.Permanent(apperr.Wrap(apperr.KindInternal, err, "failed to update client"))
		}
		return placement{assigned: true, previous: previous}, nil
	}, m.retryOptions()...)
}

// unplacedClients lists the organization's active clients that have no worker or whose
// worker is no longer eligible, along with the eligible worker set used to decide.
func (m *Manager) unplacedClients(ctx context.Context, orgID uuid.UUID) ([]*models.Client, map[uuid.UUID]bool, error) {
	eligible, err := m.eligibleWorkers(ctx, orgID)
	if err != nil {
		return nil, nil, err
	}

	active, err := m.clients.List(ctx, store.ClientFilter{
		OrgID:    &orgID,
		Statuses: []models.ClientStatus{models.ClientStatusActive},
	})
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.KindInternal, err, "failed to list clients")
	}

	pending := make([]*models.Client, 0, len(active))
	for _, c := range active {
		if !isPlaced(c, eligible) {
			pending = append(pending, c)
		}
	}
	return pending, eligible, nil
}

func (m *Manager) eligibleWorkers(ctx context.Context, orgID uuid.UUID) (map[uuid.UUID]bool, error) {
	loads, err := m.balancer.Loads(ctx, orgID)
	if err != nil {
		return nil, err
	}
	eligible := make(map[uuid.UUID]bool, len(loads))
	for _, l := range loads {
		eligible[l.WorkerID] = true
	}
	return eligible, nil
}

func isPlaced(client *models.Client, eligible map[uuid.UUID]bool) bool {
	return client.AssignedWorkerID != nil && eligible[*client.AssignedWorkerID]
}

// loadAssignable reads a client that the scope can see and that is not deleted.
func (m *Manager) loadAssignable(ctx context.Context, scope auth.Scope, clientID uuid.UUID) (*models.Client, error) {
	client, err := m.clients.Get(ctx, clientID)
	if err != nil {
		if errors.Is(err, store.ErrClientNotFound) {
			return nil, apperr.NotFound("client %s not found", clientID)
		}
		return nil, apperr.Wrap(apperr.KindInternal, err, "failed to load client")
	}
	if !scope.Permits(client.OrgID) {
		return nil, apperr.Unauthorized("client is outside your organization")
	}
	if client.Status == models.ClientStatusDeleted {
		return nil, apperr.Validation("client %s is deleted", clientID)
	}
	return client, nil
}

// chooseWorker validates an explicit worker. Without one the client's current worker is
// kept while eligible, otherwise the least loaded worker is picked.
func (m *Manager) chooseWorker(ctx context.Context, client *models.Client, workerID *uuid.UUID) (uuid.UUID, error) {
	if workerID != nil {
		if err := m.checkEligible(ctx, client.OrgID, *workerID); err != nil {
			return uuid.Nil, err
		}
		return *workerID, nil
	}

	if client.AssignedWorkerID != nil {
		ok, err := m.isEligible(ctx, client.OrgID, *client.AssignedWorkerID)
		if err != nil {
			return uuid.Nil, err
		}
		if ok {
			return *client.AssignedWorkerID, nil
		}
	}

	return m.balancer.PickLeastLoaded(ctx, client.OrgID)
}

func (m *Manager) isEligible(ctx context.Context, orgID, workerID uuid.UUID) (bool, error) {
	worker, err := m.staff.Get(ctx, workerID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return false, nil
		}
		return false, apperr.Wrap(apperr.KindInternal, err, "failed to load worker")
	}
	return worker.IsEligibleWorkerIn(orgID), nil
}

func (m *Manager) checkEligible(ctx context.Context, orgID, workerID uuid.UUID) error {
	worker, err := m.staff.Get(ctx, workerID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return apperr.Validation("worker %s not found", workerID)
		}
		return apperr.Wrap(apperr.KindInternal, err, "failed to load worker")
	}
	if !worker.IsEligibleWorkerIn(orgID) {
		return apperr.Validation("worker %s is not an active support or peer worker in the organization", workerID)
	}
	return nil
}

func assignDetails(res *AssignResult, auto bool, batchID uuid.UUID) map[string]any {
	d := map[string]any{
		"worker_id": res.WorkerID.String(),
		"auto":      auto,
	}
	if res.PreviousWorkerID != nil {
		d["previous_worker_id"] = res.PreviousWorkerID.String()
	}
	if res.Unchanged {
		d["unchanged"] = true
	}
	if batchID != uuid.Nil {
		d["batch_id"] = batchID.String()
	}
	return d
}
