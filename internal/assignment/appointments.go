package assignment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/casekeeper/internal/apperr"
	"github.com/wolfeidau/casekeeper/internal/audit"
	"github.com/wolfeidau/casekeeper/internal/auth"
	"github.com/wolfeidau/casekeeper/internal/models"
	"github.com/wolfeidau/casekeeper/internal/store"
	"github.com/wolfeidau/casekeeper/internal/telemetry"
	"github.com/wolfeidau/casekeeper/internal/validation"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AppointmentInput is the request to book an appointment.
type AppointmentInput struct {
	ClientID uuid.UUID     `json:"client_id" validate:"required"`
	WorkerID *uuid.UUID    `json:"worker_id,omitempty"`
	StartsAt time.Time     `json:"starts_at" validate:"required"`
	Duration time.Duration `json:"duration" validate:"gt=0,lte=24h"`
	Notes    string        `json:"notes,omitempty" validate:"max=2000"`
}

// AppointmentQuery selects appointments. OrgID is narrowed by the caller's scope.
type AppointmentQuery struct {
	OrgID    *uuid.UUID `json:"org_id,omitempty"`
	ClientID *uuid.UUID `json:"client_id,omitempty"`
	WorkerID *uuid.UUID `json:"worker_id,omitempty"`
	From     time.Time  `json:"from,omitzero"`
	To       time.Time  `json:"to,omitzero"`
	Limit    int        `json:"limit,omitempty"`
}

// CreateAppointment books an appointment for a client.
//
// An explicit worker must be eligible. Without one, organizations with AutoAssign keep the
// client's current worker when still eligible and otherwise pick the least loaded worker.
// In that case a client without an eligible worker is also assigned to the chosen worker,
// provided the caller may assign clients.
func (m *Manager) CreateAppointment(ctx context.Context, subjectID string, in AppointmentInput) (*models.Appointment, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "assignment.CreateAppointment")
	defer span.End()

	actor, scope, err := m.engine.CheckScoped(ctx, subjectID, auth.PermCreateAppointments, nil)
	if err != nil {
		return nil, err
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	client, err := m.loadAssignable(ctx, scope, in.ClientID)
	if err != nil {
		return nil, err
	}

	org, err := m.orgs.Get(ctx, client.OrgID)
	if err != nil {
		if errors.Is(err, store.ErrOrganizationNotFound) {
			return nil, apperr.NotFound("organization %s not found", client.OrgID)
		}
		return nil, apperr.Wrap(apperr.KindInternal, err, "failed to load organization")
	}

	workerID, err := m.appointmentWorker(ctx, org, client, in.WorkerID)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate appointment id: %w", err)
	}
	now := m.now().UTC()
	appt := &models.Appointment{
		ID:        id,
		OrgID:     client.OrgID,
		ClientID:  client.ID,
		WorkerID:  workerID,
		StartsAt:  in.StartsAt.UTC(),
		Duration:  in.Duration,
		Status:    models.AppointmentScheduled,
		Notes:     in.Notes,
		CreatedBy: actor.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.appts.Create(ctx, appt); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "failed to create appointment")
	}

	if in.WorkerID == nil && org.Settings.AutoAssign && workerID != nil {
		m.assignFromAppointment(ctx, actor, appt)
	}

	m.audit.Record(ctx, audit.Event{
		ActorID:    actor.ID.String(),
		Action:     audit.ActionAppointmentCreate,
		EntityType: models.EntityAppointment,
		EntityID:   appt.ID.String(),
		Details: map[string]any{
			"client_id": appt.ClientID.String(),
			"worker_id": uuidString(appt.WorkerID),
			"starts_at": appt.StartsAt,
		},
		OrgID: &appt.OrgID,
	})

	log.Info().
		Str("subject_id", subjectID).
		Str("appointment_id", appt.ID.String()).
		Str("client_id", appt.ClientID.String()).
		Msg("Appointment created")

	return appt, nil
}

func (m *Manager) appointmentWorker(ctx context.Context, org *models.Organization, client *models.Client, requested *uuid.UUID) (*uuid.UUID, error) {
	if requested != nil {
		if err := m.checkEligible(ctx, org.ID, *requested); err != nil {
			return nil, err
		}
		w := *requested
		return &w, nil
	}

	if !org.Settings.AutoAssign {
		return nil, nil
	}

	if client.AssignedWorkerID != nil {
		if err := m.checkEligible(ctx, org.ID, *client.AssignedWorkerID); err == nil {
			w := *client.AssignedWorkerID
			return &w, nil
		}
	}

	picked, err := m.balancer.PickLeastLoaded(ctx, org.ID)
	if err != nil {
		return nil, err
	}
	return &picked, nil
}

// assignFromAppointment is opportunistic: a failure is logged and the appointment stands.
func (m *Manager) assignFromAppointment(ctx context.Context, actor *models.StaffUser, appt *models.Appointment) {
	if !m.engine.Registry().HasPermission(actor.Role, auth.PermAssignClients) {
		log.Info().
			Str("client_id", appt.ClientID.String()).
			Str("appointment_id", appt.ID.String()).
			Str("role", string(actor.Role)).
			Msg("Skipped assigning client from appointment, caller cannot assign clients")
		return
	}

	p, err := m.placeForAppointment(ctx, appt)
	if err != nil {
		log.Warn().
			Err(err).
			Str("client_id", appt.ClientID.String()).
			Str("appointment_id", appt.ID.String()).
			Msg("Could not assign client from appointment")
		return
	}
	if !p.assigned {
		return
	}

	telemetry.GetMetrics().AssignmentsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", "appointment")))
	m.audit.Record(ctx, audit.Event{
		ActorID:    actor.ID.String(),
		Action:     audit.ActionClientAssign,
		EntityType: models.EntityClient,
		EntityID:   appt.ClientID.String(),
		Details: map[string]any{
			"worker_id":          appt.WorkerID.String(),
			"previous_worker_id": uuidString(p.previous),
			"appointment_id":     appt.ID.String(),
			"auto":               true,
		},
		OrgID: &appt.OrgID,
	})
}

func (m *Manager) placeForAppointment(ctx context.Context, appt *models.Appointment) (placement, error) {
	eligible, err := m.eligibleWorkers(ctx, appt.OrgID)
	if err != nil {
		return placement{}, err
	}
	return m.assignIfUnplaced(ctx, appt.ClientID, *appt.WorkerID, eligible)
}

// ListAppointments returns appointments in the caller's scope ordered by start time.
func (m *Manager) ListAppointments(ctx context.Context, subjectID string, q AppointmentQuery) ([]*models.Appointment, error) {
	_, scope, err := m.engine.CheckScoped(ctx, subjectID, auth.PermViewAppointments, q.OrgID)
	if err != nil {
		return nil, err
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return nil, apperr.Validation("to must not be before from")
	}

	appts, err := m.appts.List(ctx, store.AppointmentFilter{
		OrgID:    scope.OrgID,
		ClientID: q.ClientID,
		WorkerID: q.WorkerID,
		From:     q.From,
		To:       q.To,
		Limit:    store.ClampLimit(q.Limit),
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "failed to list appointments")
	}

	return appts, nil
}

func uuidString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
