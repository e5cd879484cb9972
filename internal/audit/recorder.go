// Package audit records and serves the append-only audit trail.
package audit

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/minio/crc64nvme"
	"github.com/mr-tron/base58"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/casekeeper/internal/apperr"
	"github.com/wolfeidau/casekeeper/internal/auth"
	httpmiddleware "github.com/wolfeidau/casekeeper/internal/http"
	"github.com/wolfeidau/casekeeper/internal/models"
	"github.com/wolfeidau/casekeeper/internal/store"
	"github.com/wolfeidau/casekeeper/internal/telemetry"
)

// Event describes a mutation to record.
type Event struct {
	ActorID    string
	Action     string
	EntityType string
	EntityID   string
	Details    any
	OrgID      *uuid.UUID
}

// Query selects audit entries. OrgID is a request and is narrowed by the caller's scope.
type Query struct {
	ActorID    string     `json:"actor_id,omitempty"`
	Action     string     `json:"action,omitempty"`
	EntityType string     `json:"entity_type,omitempty"`
	EntityID   string     `json:"entity_id,omitempty"`
	OrgID      *uuid.UUID `json:"org_id,omitempty"`
	Since      time.Time  `json:"since,omitzero"`
	Until      time.Time  `json:"until,omitzero"`
	Limit      int        `json:"limit,omitempty"`
	Offset     int        `json:"offset,omitempty"`
}

// Recorder appends audit entries after primary mutations commit.
//
// Recording is best effort: an entry that cannot be appended after retries is logged and
// counted, and the caller's mutation stands.
type Recorder struct {
	store    store.AuditStore
	engine   *auth.Engine
	maxTries uint
	now      func() time.Time
}

// NewRecorder creates an audit recorder.
func NewRecorder(st store.AuditStore, engine *auth.Engine) *Recorder {
	return &Recorder{
		store:    st,
		engine:   engine,
		maxTries: 3,
		now:      time.Now,
	}
}

// Record appends an entry for ev. It never returns an error.
func (r *Recorder) Record(ctx context.Context, ev Event) {
	entry, err := r.build(ctx, ev)
	if err != nil {
		r.fail(ctx, ev, err)
		return
	}

	// the mutation has already committed, so the caller's cancellation does not apply
	appendCtx := context.WithoutCancel(ctx)
	_, err = backoff.Retry(appendCtx, func() (struct{}, error) {
		return struct{}{}, r.store.Append(appendCtx, entry)
	},
		backoff.WithBackOff(&backoff.ExponentialBackOff{
			InitialInterval:     20 * time.Millisecond,
			RandomizationFactor: 0.5,
			Multiplier:          2,
			MaxInterval:         200 * time.Millisecond,
		}),
		backoff.WithMaxTries(r.maxTries),
	)
	if err != nil {
		r.fail(ctx, ev, err)
		return
	}

	telemetry.GetMetrics().AuditRecordsTotal.Add(ctx, 1)
	log.Debug().
		Str("audit_id", entry.ID.String()).
		Str("action", entry.Action).
		Str("entity_id", entry.EntityID).
		Msg("Recorded audit entry")
}

func (r *Recorder) build(ctx context.Context, ev Event) (*models.AuditEntry, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate audit id: %w", err)
	}

	var details json.RawMessage
	if ev.Details != nil {
		details, err = json.Marshal(ev.Details)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal audit details: %w", err)
		}
	}

	entry := &models.AuditEntry{
		ID:         id,
		ActorID:    ev.ActorID,
		Action:     ev.Action,
		EntityType: ev.EntityType,
		EntityID:   ev.EntityID,
		Details:    details,
		OrgID:      ev.OrgID,
		ClientIP:   httpmiddleware.ClientIPFromContext(ctx),
		// postgres keeps microseconds, truncate so the checksum survives a round trip
		Timestamp: r.now().UTC().Truncate(time.Microsecond),
	}
	entry.Checksum = Checksum(entry)

	return entry, nil
}

func (r *Recorder) fail(ctx context.Context, ev Event, err error) {
	telemetry.GetMetrics().AuditFailuresTotal.Add(ctx, 1)

	evt := log.Error().
		Err(err).
		Str("actor_id", ev.ActorID).
		Str("action", ev.Action).
		Str("entity_type", ev.EntityType).
		Str("entity_id", ev.EntityID)
	if ev.OrgID != nil {
		evt = evt.Str("org_id", ev.OrgID.String())
	}
	evt.Msg("Failed to record audit entry")
}

// List returns audit entries visible to subjectID, newest first.
func (r *Recorder) List(ctx context.Context, subjectID string, q Query) ([]*models.AuditEntry, error) {
	filter, err := r.filter(ctx, subjectID, auth.PermViewAuditLogs, q)
	if err != nil {
		return nil, err
	}

	entries, err := r.store.List(ctx, filter)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "failed to list audit entries")
	}

	return entries, nil
}

func (r *Recorder) filter(ctx context.Context, subjectID string, perm auth.Permission, q Query) (store.AuditFilter, error) {
	_, scope, err := r.engine.CheckScoped(ctx, subjectID, perm, q.OrgID)
	if err != nil {
		return store.AuditFilter{}, err
	}
	if !q.Since.IsZero() && !q.Until.IsZero() && q.Until.Before(q.Since) {
		return store.AuditFilter{}, apperr.Validation("until must not be before since")
	}
	if q.Offset < 0 {
		return store.AuditFilter{}, apperr.Validation("offset must not be negative")
	}

	return store.AuditFilter{
		ActorID:    q.ActorID,
		Action:     q.Action,
		EntityType: q.EntityType,
		EntityID:   q.EntityID,
		OrgID:      scope.OrgID,
		Since:      q.Since,
		Until:      q.Until,
		Limit:      store.ClampLimit(q.Limit),
		Offset:     q.Offset,
	}, nil
}

// Checksum returns the base58 CRC64-NVME of the entry's canonical form.
func Checksum(e *models.AuditEntry) string {
	h := crc64nvme.New()
	writeField := func(s string) {
		_, _ = h.Write([]byte(s))
		_, _ = h.Write([]byte{0})
	}

	writeField(e.ID.String())
	writeField(e.ActorID)
	writeField(e.Action)
	writeField(e.EntityType)
	writeField(e.EntityID)
	writeField(string(e.Details))
	if e.OrgID != nil {
		writeField(e.OrgID.String())
	} else {
		writeField("")
	}
	writeField(e.ClientIP)
	writeField(e.Timestamp.UTC().Format(time.RFC3339Nano))

	var sum [8]byte
	binary.BigEndian.PutUint64(sum[:], h.Sum64())
	return base58.Encode(sum[:])
}

// Verify reports whether the entry's stored checksum matches its content.
func Verify(e *models.AuditEntry) bool {
	return e.Checksum != "" && e.Checksum == Checksum(e)
}
