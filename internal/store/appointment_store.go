package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/casekeeper/internal/models"
)

var ErrAppointmentNotFound = errors.New("appointment not found")

// AppointmentFilter narrows List results. Nil or zero fields do not filter.
type AppointmentFilter struct {
	OrgID    *uuid.UUID
	ClientID *uuid.UUID
	WorkerID *uuid.UUID
	From     time.Time
	To       time.Time
	Limit    int
}

// AppointmentStore persists appointments.
type AppointmentStore interface {
	Create(ctx context.Context, appt *models.Appointment) error
	Get(ctx context.Context, apptID uuid.UUID) (*models.Appointment, error)
	// List returns appointments ordered by start time.
	List(ctx context.Context, filter AppointmentFilter) ([]*models.Appointment, error)
}
