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

const organizationColumns = `org_id, slug, name, status, auto_assign, max_clients_per_worker, version, created_at, updated_at`

// OrganizationStore implements store.OrganizationStore using PostgreSQL.
type OrganizationStore struct {
	pool *pgxpool.Pool
}

// NewOrganizationStore creates a new PostgreSQL-backed organization store.
// It shares the connection pool with other stores.
func NewOrganizationStore(pool *pgxpool.Pool) *OrganizationStore {
	return &OrganizationStore{
		pool: pool,
	}
}

// Create creates a new organization in the database.
func (s *OrganizationStore) Create(ctx context.Context, org *models.Organization) error {
	if org.Version == 0 {
		org.Version = 1
	}

	query := `
		INSERT INTO organizations (` + organizationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.pool.Exec(ctx, query,
		org.ID,
		org.Slug,
		org.Name,
		string(org.Status),
		org.Settings.AutoAssign,
		org.Settings.MaxClientsPerWorker,
		org.Version,
		org.CreatedAt,
		org.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrOrganizationAlreadyExists
		}
		return fmt.Errorf("failed to create organization: %w", err)
	}

	log.Debug().
		Str("org_id", org.ID.String()).
		Str("slug", org.Slug).
		Msg("Created organization")

	return nil
}

// Get retrieves an organization by ID.
func (s *OrganizationStore) Get(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE org_id = $1`

	org, err := scanOrganization(s.pool.QueryRow(ctx, query, orgID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	return org, nil
}

// GetBySlug retrieves an organization by slug.
func (s *OrganizationStore) GetBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE slug = $1`

	org, err := scanOrganization(s.pool.QueryRow(ctx, query, slug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to get organization by slug: %w", err)
	}

	return org, nil
}

// Update replaces an organization when the stored version matches expectedVersion.
func (s *OrganizationStore) Update(ctx context.Context, org *models.Organization, expectedVersion int64) error {
	updatedAt := time.Now()

	query := `
		UPDATE organizations SET
			slug = $3,
			name = $4,
			status = $5,
			auto_assign = $6,
			max_clients_per_worker = $7,
			version = version + 1,
			updated_at = $8
		WHERE org_id = $1 AND version = $2
	`

	result, err := s.pool.Exec(ctx, query,
		org.ID,
		expectedVersion,
		org.Slug,
		org.Name,
		string(org.Status),
		org.Settings.AutoAssign,
		org.Settings.MaxClientsPerWorker,
		updatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrOrganizationAlreadyExists
		}
		return fmt.Errorf("failed to update organization: %w", err)
	}

	if result.RowsAffected() == 0 {
		return s.missingOrConflict(ctx, org.ID)
	}

	org.Version = expectedVersion + 1
	org.UpdatedAt = updatedAt

	log.Debug().
		Str("org_id", org.ID.String()).
		Int64("version", org.Version).
		Msg("Updated organization")

	return nil
}

// Delete removes an organization. Foreign keys from staff_users and clients
// block the delete while anything still references it.
func (s *OrganizationStore) Delete(ctx context.Context, orgID uuid.UUID) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM organizations WHERE org_id = $1`, orgID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return store.ErrOrganizationInUse
		}
		return fmt.Errorf("failed to delete organization: %w", err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrOrganizationNotFound
	}

	log.Info().
		Str("org_id", orgID.String()).
		Msg("Deleted organization")

	return nil
}

// List returns organizations ordered by slug.
func (s *OrganizationStore) List(ctx context.Context, filter store.OrganizationFilter) ([]*models.Organization, error) {
	var conds conditions
	if filter.Status != nil {
		conds.add("status = $%d", string(*filter.Status))
	}

	query := `SELECT ` + organizationColumns + ` FROM organizations ` + conds.where() + ` ORDER BY slug`

	rows, err := s.pool.Query(ctx, query, conds.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	var orgs []*models.Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		orgs = append(orgs, org)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating organizations: %w", err)
	}

	return orgs, nil
}

func (s *OrganizationStore) missingOrConflict(ctx context.Context, orgID uuid.UUID) error {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM organizations WHERE org_id = $1)`, orgID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check organization: %w", err)
	}
	if !exists {
		return store.ErrOrganizationNotFound
	}
	return store.ErrVersionConflict
}

func scanOrganization(row rowScanner) (*models.Organization, error) {
	var (
		org    models.Organization
		status string
	)
	err := row.Scan(
		&org.ID,
		&org.Slug,
		&org.Name,
		&status,
		&org.Settings.AutoAssign,
		&org.Settings.MaxClientsPerWorker,
		&org.Version,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	org.Status = models.OrgStatus(status)
	return &org, nil
}
