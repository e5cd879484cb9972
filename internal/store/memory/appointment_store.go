package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/wolfeidau/casekeeper/internal/models"
	"github.com/wolfeidau/casekeeper/internal/store"
)

// AppointmentStore implements store.AppointmentStore using in-memory storage.
type AppointmentStore struct {
	mu           sync.RWMutex
	appointments map[uuid.UUID]*models.Appointment
}

// NewAppointmentStore creates a new in-memory appointment store.
func NewAppointmentStore() *AppointmentStore {
	return &AppointmentStore{
		appointments: make(map[uuid.UUID]*models.Appointment),
	}
}

func (s *AppointmentStore) Create(ctx context.Context, appt *models.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.appointments[appt.ID] = cloneAppointment(appt)
	return nil
}

func (s *AppointmentStore) Get(ctx context.Context, apptID uuid.UUID) (*models.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	appt, exists := s.appointments[apptID]
	if !exists {
		return nil, store.ErrAppointmentNotFound
	}
	return cloneAppointment(appt), nil
}

func (s *AppointmentStore) List(ctx context.Context, filter store.AppointmentFilter) ([]*models.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Appointment
	for _, appt := range s.appointments {
		if filter.OrgID != nil && appt.OrgID != *filter.OrgID {
			continue
		}
		if filter.ClientID != nil && appt.ClientID != *filter.ClientID {
			continue
		}
		if filter.WorkerID != nil && !sameUUID(appt.WorkerID, filter.WorkerID) {
			continue
		}
		if !filter.From.IsZero() && appt.StartsAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !appt.StartsAt.Before(filter.To) {
			continue
		}
		result = append(result, cloneAppointment(appt))
	}

	slices.SortFunc(result, func(a, b *models.Appointment) int {
		return compareCreated(a.StartsAt, a.ID, b.StartsAt, b.ID)
	})

	return paginate(result, 0, filter.Limit), nil
}
