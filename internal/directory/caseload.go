package directory

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/casekeeper/internal/apperr"
	"github.com/wolfeidau/casekeeper/internal/audit"
	"github.com/wolfeidau/casekeeper/internal/models"
	"github.com/wolfeidau/casekeeper/internal/store"
)

const releaseMaxTries = 5

// releaseCaseload unassigns every client that points at worker when worker can no longer
// hold it. It runs after the user change has committed, so failures are logged and left
// for the next bulk assignment to repair.
func (s *Service) releaseCaseload(ctx context.Context, actor, worker *models.StaffUser, reason string) int {
	ctx = context.WithoutCancel(ctx)

	assigned, err := s.clients.List(ctx, store.ClientFilter{
		AssignedWorkerID: &worker.ID,
		IncludeDeleted:   true,
	})
	if err != nil {
		log.Error().Err(err).Str("worker_id", worker.ID.String()).Msg("Failed to list clients of ineligible worker")
		return 0
	}

	released := 0
	for _, c := range assigned {
		if worker.IsEligibleWorkerIn(c.OrgID) {
			continue
		}

		ok, err := s.unassign(ctx, c.ID, worker.ID)
		if err != nil {
			log.Error().
				Err(err).
				Str("client_id", c.ID.String()).
				Str("worker_id", worker.ID.String()).
				Msg("Failed to unassign client from ineligible worker")
			continue
		}
		if !ok {
			continue
		}

		s.record(ctx, actor, audit.ActionClientUnassign, models.EntityClient, c.ID.String(), &c.OrgID, map[string]any{
			"previous_worker_id": worker.ID.String(),
			"reason":             reason,
		})
		released++
	}

	if released > 0 {
		log.Info().
			Str("worker_id", worker.ID.String()).
			Str("reason", reason).
			Int("clients", released).
			Msg("Released caseload of ineligible worker")
	}

	return released
}

// unassign clears the client's worker if it is still workerID.
func (s *Service) unassign(ctx context.Context, clientID, workerID uuid.UUID) (bool, error) {
	return backoff.Retry(ctx, func() (bool, error) {
		client, err := s.clients.Get(ctx, clientID)
		if err != nil {
			if errors.Is(err, store.ErrClientNotFound) {
				return false, nil
			}
			return false, backoff.Permanent(apperr.Wrap(apperr.KindInternal, err, "failed to load client"))
		}
		if client.AssignedWorkerID == nil || *client.AssignedWorkerID != workerID {
			return false, nil
		}

		client.AssignedWorkerID = nil
		if err := s.clients.Update(ctx, client, client.Version); err != nil {
			if errors.Is(err, store.ErrVersionConflict) {
				return false, err
			}
			return false, backoff.Permanent(apperr.Wrap(apperr.KindInternal, err, "failed to update client"))
		}
		return true, nil
	},
		backoff.WithBackOff(&backoff.ExponentialBackOff{
			InitialInterval:     5 * time.Millisecond,
			RandomizationFactor: 0.5,
			Multiplier:          2,
			MaxInterval:         100 * time.Millisecond,
		}),
		backoff.WithMaxTries(releaseMaxTries),
	)
}

// eligibilityChanged reports whether an update touched a field that decides whether the
// user can hold clients.
func eligibilityChanged(changed []string) bool {
	for _, field := range changed {
		switch field {
		case "status", "role", "org_id":
			return true
		}
	}
	return false
}
