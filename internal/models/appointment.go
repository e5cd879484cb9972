package models

import (
	"time"

	"github.com/google/uuid"
)

// AppointmentStatus is the state of an appointment.
type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "scheduled"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

// Appointment is a scheduled meeting between a client and a worker.
type Appointment struct {
	ID        uuid.UUID         `json:"id"`
	OrgID     uuid.UUID         `json:"org_id"`
	ClientID  uuid.UUID         `json:"client_id"`
	WorkerID  *uuid.UUID        `json:"worker_id,omitempty"`
	StartsAt  time.Time         `json:"starts_at"`
	Duration  time.Duration     `json:"duration"`
	Status    AppointmentStatus `json:"status"`
	Notes     string            `json:"notes,omitempty"`
	CreatedBy uuid.UUID         `json:"created_by"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}
