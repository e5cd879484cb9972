package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/casekeeper/internal/models"
	"github.com/wolfeidau/casekeeper/internal/store"
)

const clientColumns = `client_id, org_id, assigned_worker_id, status, risk_level, name, email, phone, version, created_at, updated_at`

// ClientStore implements store.ClientStore using PostgreSQL.
type ClientStore struct {
	pool *pgxpool.Pool
}

// NewClientStore creates a new PostgreSQL-backed client store.
func NewClientStore(pool *pgxpool.Pool) *ClientStore {
	return &ClientStore{pool: pool}
}

// Create stores a new client.
func (s *ClientStore) Create(ctx context.Context, client *models.Client) error {
	if client.Version == 0 {
		client.Version = 1
	}

	query := `
		INSERT INTO clients (` + clientColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.pool.Exec(ctx, query,
		client.ID,
		client.OrgID,
		client.AssignedWorkerID,
		string(client.Status),
		string(client.RiskLevel),
		client.Name,
		client.Email,
		client.Phone,
		client.Version,
		client.CreatedAt,
		client.UpdatedAt,
	)
	if err != nil {
		return clientWriteError(err, "failed to create client")
	}

	log.Debug().
		Str("client_id", client.ID.String()).
		Str("org_id", client.OrgID.String()).
		Msg("Created client")

	return nil
}

// Get retrieves a client by ID.
func (s *ClientStore) Get(ctx context.Context, clientID uuid.UUID) (*models.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE client_id = $1`

	client, err := scanClient(s.pool.QueryRow(ctx, query, clientID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	return client, nil
}

// Update replaces a client when the stored version matches expectedVersion.
// The version predicate makes the write a compare-and-swap, so concurrent
// assignments of the same client cannot both succeed.
func (s *ClientStore) Update(ctx context.Context, client *models.Client, expectedVersion int64) error {
	updatedAt := time.Now()

	query := `
		UPDATE clients SET
			assigned_worker_id = $3,
			status = $4,
			risk_level = $5,
			name = $6,
			email = $7,
			phone = $8,
			version = version + 1,
			updated_at = $9
		WHERE client_id = $1 AND version = $2
	`

	result, err := s.pool.Exec(ctx, query,
		client.ID,
		expectedVersion,
		client.AssignedWorkerID,
		string(client.Status),
		string(client.RiskLevel),
		client.Name,
		client.Email,
		client.Phone,
		updatedAt,
	)
	if err != nil {
		return clientWriteError(err, "failed to update client")
	}

	if result.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM clients WHERE client_id = $1)`, client.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check client: %w", err)
		}
		if !exists {
			return store.ErrClientNotFound
		}
		return store.ErrVersionConflict
	}

	client.Version = expectedVersion + 1
	client.UpdatedAt = updatedAt

	return nil
}

// List returns clients matching the filter ordered by creation time then ID.
func (s *ClientStore) List(ctx context.Context, filter store.ClientFilter) ([]*models.Client, error) {
	var conds conditions
	if !filter.IncludeDeleted {
		conds.raw("status <> 'deleted'")
	}
	if filter.OrgID != nil {
		conds.add("org_id = $%d", *filter.OrgID)
	}
	if filter.AssignedWorkerID != nil {
		conds.add("assigned_worker_id = $%d", *filter.AssignedWorkerID)
	}
	if filter.Unassigned {
		conds.raw("assigned_worker_id IS NULL")
	}
	if len(filter.Statuses) > 0 {
		conds.add("status = ANY($%d)", toStrings(filter.Statuses))
	}

	query := `SELECT ` + clientColumns + ` FROM clients ` + conds.where() +
		` ORDER BY created_at, client_id` + conds.page(filter.Limit, filter.Offset)

	rows, err := s.pool.Query(ctx, query, conds.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var clients []*models.Client
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, client)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating clients: %w", err)
	}

	return clients, nil
}

// WorkerLoads counts active clients per assigned worker in the organization.
func (s *ClientStore) WorkerLoads(ctx context.Context, orgID uuid.UUID) (map[uuid.UUID]int, error) {
	query := `
		SELECT assigned_worker_id, count(*)
		FROM clients
		WHERE org_id = $1 AND status = 'active' AND assigned_worker_id IS NOT NULL
		GROUP BY assigned_worker_id
	`

	rows, err := s.pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to count worker loads: %w", err)
	}
	defer rows.Close()

	loads := make(map[uuid.UUID]int)
	for rows.Next() {
		var (
			workerID uuid.UUID
			count    int
		)
		if err := rows.Scan(&workerID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan worker load: %w", err)
		}
		loads[workerID] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating worker loads: %w", err)
	}

	return loads, nil
}

// CountByOrg counts clients in the organization.
func (s *ClientStore) CountByOrg(ctx context.Context, orgID uuid.UUID) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM clients WHERE org_id = $1`, orgID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count clients: %w", err)
	}
	return count, nil
}

func clientWriteError(err error, msg string) error {
	switch {
	case isUniqueViolation(err) && violatedConstraint(err) == "clients_org_email_key":
		return store.ErrClientEmailTaken
	case isUniqueViolation(err):
		return store.ErrClientAlreadyExists
	case isForeignKeyViolation(err) && violatedConstraint(err) == "clients_assigned_worker_id_fkey":
		return store.ErrUserNotFound
	case isForeignKeyViolation(err):
		return store.ErrOrganizationNotFound
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func scanClient(row rowScanner) (*models.Client, error) {
	var (
		client       models.Client
		status, risk string
	)
	err := row.Scan(
		&client.ID,
		&client.OrgID,
		&client.AssignedWorkerID,
		&status,
		&risk,
		&client.Name,
		&client.Email,
		&client.Phone,
		&client.Version,
		&client.CreatedAt,
		&client.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	client.Status = models.ClientStatus(status)
	client.RiskLevel = models.RiskLevel(risk)
	return &client, nil
}
