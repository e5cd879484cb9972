package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wolfeidau/casekeeper/internal/models"
	"github.com/wolfeidau/casekeeper/internal/store"
)

const appointmentColumns = `appointment_id, org_id, client_id, worker_id, starts_at, duration_ns, status, notes, created_by, created_at, updated_at`

// AppointmentStore implements store.AppointmentStore using PostgreSQL.
type AppointmentStore struct {
	pool *pgxpool.Pool
}

// NewAppointmentStore creates a new PostgreSQL-backed appointment store.
func NewAppointmentStore(pool *pgxpool.Pool) *AppointmentStore {
	return &AppointmentStore{pool: pool}
}

func (s *AppointmentStore) Create(ctx context.Context, appt *models.Appointment) error {
	query := `
		INSERT INTO appointments (` + appointmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.pool.Exec(ctx, query,
		appt.ID,
		appt.OrgID,
		appt.ClientID,
		appt.WorkerID,
		appt.StartsAt,
		appt.Duration.Nanoseconds(),
		string(appt.Status),
		appt.Notes,
		appt.CreatedBy,
		appt.CreatedAt,
		appt.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("appointment references a missing record (%s): %w", violatedConstraint(err), err)
		}
		return fmt.Errorf("failed to create appointment: %w", err)
	}

	return nil
}

func (s *AppointmentStore) Get(ctx context.Context, apptID uuid.UUID) (*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE appointment_id = $1`

	appt, err := scanAppointment(s.pool.QueryRow(ctx, query, apptID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}

	return appt, nil
}

func (s *AppointmentStore) List(ctx context.Context, filter store.AppointmentFilter) ([]*models.Appointment, error) {
	var conds conditions
	if filter.OrgID != nil {
		conds.add("org_id = $%d", *filter.OrgID)
	}
	if filter.ClientID != nil {
		conds.add("client_id = $%d", *filter.ClientID)
	}
	if filter.WorkerID != nil {
		conds.add("worker_id = $%d", *filter.WorkerID)
	}
	if !filter.From.IsZero() {
		conds.add("starts_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		conds.add("starts_at < $%d", filter.To)
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments ` + conds.where() +
		` ORDER BY starts_at, appointment_id` + conds.page(filter.Limit, 0)

	rows, err := s.pool.Query(ctx, query, conds.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	defer rows.Close()

	var appts []*models.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		appts = append(appts, appt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating appointments: %w", err)
	}

	return appts, nil
}

func scanAppointment(row rowScanner) (*models.Appointment, error) {
	var (
		appt     models.Appointment
		duration int64
		status   string
	)
	err := row.Scan(
		&appt.ID,
		&appt.OrgID,
		&appt.ClientID,
		&appt.WorkerID,
		&appt.StartsAt,
		&duration,
		&status,
		&appt.Notes,
		&appt.CreatedBy,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	appt.Duration = time.Duration(duration)
	appt.Status = models.AppointmentStatus(status)
	return &appt, nil
}
