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

const staffColumns = `user_id, external_id, email, name, phone, role, org_id, status, version, created_at, updated_at, deleted_at`

// superadminLockKey serializes transactions that may remove an active superadmin.
const superadminLockKey = 0x73757065 // "supe"

// StaffStore implements store.StaffStore using PostgreSQL.
type StaffStore struct {
	pool *pgxpool.Pool
}

// NewStaffStore creates a new PostgreSQL-backed staff store.
func NewStaffStore(pool *pgxpool.Pool) *StaffStore {
	return &StaffStore{pool: pool}
}

// Create stores a new staff user.
func (s *StaffStore) Create(ctx context.Context, user *models.StaffUser) error {
	if user.Version == 0 {
		user.Version = 1
	}

	query := `
		INSERT INTO staff_users (` + staffColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := s.pool.Exec(ctx, query,
		user.ID,
		user.ExternalID,
		user.Email,
		user.Name,
		user.Phone,
		string(user.Role),
		user.OrgID,
		string(user.Status),
		user.Version,
		user.CreatedAt,
		user.UpdatedAt,
		user.DeletedAt,
	)
	if err != nil {
		return staffWriteError(err, "failed to create staff user")
	}

	log.Debug().
		Str("user_id", user.ID.String()).
		Str("role", string(user.Role)).
		Msg("Created staff user")

	return nil
}

// Get retrieves a staff user by ID, including deleted users.
func (s *StaffStore) Get(ctx context.Context, userID uuid.UUID) (*models.StaffUser, error) {
	query := `SELECT ` + staffColumns + ` FROM staff_users WHERE user_id = $1`

	user, err := scanStaffUser(s.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get staff user: %w", err)
	}

	return user, nil
}

// GetByExternalID retrieves a staff user by subject identifier.
func (s *StaffStore) GetByExternalID(ctx context.Context, externalID string) (*models.StaffUser, error) {
	query := `SELECT ` + staffColumns + ` FROM staff_users WHERE external_id = $1`

	user, err := scanStaffUser(s.pool.QueryRow(ctx, query, externalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get staff user by external id: %w", err)
	}

	return user, nil
}

// Update replaces a staff user when the stored version matches.
//
// The current row is locked for the duration of the transaction. When the write
// takes an active superadmin out of that state a transaction-scoped advisory lock
// serializes the remaining-superadmin count against concurrent demotions.
func (s *StaffStore) Update(ctx context.Context, user *models.StaffUser, expectedVersion int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	current, err := scanStaffUser(tx.QueryRow(ctx,
		`SELECT `+staffColumns+` FROM staff_users WHERE user_id = $1 FOR UPDATE`, user.ID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrUserNotFound
		}
		return fmt.Errorf("failed to lock staff user: %w", err)
	}
	if current.Version != expectedVersion {
		return store.ErrVersionConflict
	}

	if isActiveSuperadmin(current) && !isActiveSuperadmin(user) {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, superadminLockKey); err != nil {
			return fmt.Errorf("failed to take superadmin lock: %w", err)
		}
		var remaining int
		err := tx.QueryRow(ctx,
			`SELECT count(*) FROM staff_users WHERE role = 'superadmin' AND status = 'active'`).Scan(&remaining)
		if err != nil {
			return fmt.Errorf("failed to count superadmins: %w", err)
		}
		if remaining <= 1 {
			return store.ErrLastSuperadmin
		}
	}

	updatedAt := time.Now()
	_, err = tx.Exec(ctx, `
		UPDATE staff_users SET
			external_id = $2,
			email = $3,
			name = $4,
			phone = $5,
			role = $6,
			org_id = $7,
			status = $8,
			version = version + 1,
			updated_at = $9,
			deleted_at = $10
		WHERE user_id = $1
	`,
		user.ID,
		user.ExternalID,
		user.Email,
		user.Name,
		user.Phone,
		string(user.Role),
		user.OrgID,
		string(user.Status),
		updatedAt,
		user.DeletedAt,
	)
	if err != nil {
		return staffWriteError(err, "failed to update staff user")
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit staff user update: %w", err)
	}

	user.Version = expectedVersion + 1
	user.UpdatedAt = updatedAt

	log.Debug().
		Str("user_id", user.ID.String()).
		Int64("version", user.Version).
		Msg("Updated staff user")

	return nil
}

// List returns staff users matching the filter ordered by creation time then ID.
func (s *StaffStore) List(ctx context.Context, filter store.UserFilter) ([]*models.StaffUser, error) {
	var conds conditions
	if !filter.IncludeDeleted {
		conds.raw("status <> 'deleted'")
	}
	if filter.OrgID != nil {
		conds.add("org_id = $%d", *filter.OrgID)
	}
	if len(filter.Roles) > 0 {
		conds.add("role = ANY($%d)", toStrings(filter.Roles))
	}
	if filter.Status != nil {
		conds.add("status = $%d", string(*filter.Status))
	}

	query := `SELECT ` + staffColumns + ` FROM staff_users ` + conds.where() + ` ORDER BY created_at, user_id`

	rows, err := s.pool.Query(ctx, query, conds.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list staff users: %w", err)
	}
	defer rows.Close()

	var users []*models.StaffUser
	for rows.Next() {
		user, err := scanStaffUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan staff user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating staff users: %w", err)
	}

	return users, nil
}

// CountByOrg counts users that reference the organization.
func (s *StaffStore) CountByOrg(ctx context.Context, orgID uuid.UUID) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM staff_users WHERE org_id = $1`, orgID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count staff users: %w", err)
	}
	return count, nil
}

func staffWriteError(err error, msg string) error {
	switch {
	case isUniqueViolation(err) && violatedConstraint(err) == "staff_users_email_key":
		return store.ErrEmailTaken
	case isUniqueViolation(err):
		return store.ErrUserAlreadyExists
	case isForeignKeyViolation(err):
		return store.ErrOrganizationNotFound
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func isActiveSuperadmin(u *models.StaffUser) bool {
	return u.Role == models.RoleSuperadmin && u.IsActive()
}

func scanStaffUser(row rowScanner) (*models.StaffUser, error) {
	var (
		user         models.StaffUser
		role, status string
	)
	err := row.Scan(
		&user.ID,
		&user.ExternalID,
		&user.Email,
		&user.Name,
		&user.Phone,
		&role,
		&user.OrgID,
		&status,
		&user.Version,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	user.Role = models.Role(role)
	user.Status = models.UserStatus(status)
	return &user, nil
}
