package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wolfeidau/casekeeper/internal/models"
	"github.com/wolfeidau/casekeeper/internal/store"
)

const auditColumns = `audit_id, actor_id, action, entity_type, entity_id, details, org_id, client_ip, recorded_at, checksum`

// AuditStore implements store.AuditStore using PostgreSQL.
// A trigger on audit_log rejects UPDATE and DELETE, so rows are immutable once written.
type AuditStore struct {
	pool *pgxpool.Pool
}

// NewAuditStore creates a new PostgreSQL-backed audit store.
func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

// Append inserts an audit entry.
func (s *AuditStore) Append(ctx context.Context, entry *models.AuditEntry) error {
	query := `
		INSERT INTO audit_log (` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	// details is stored as json text, byte for byte, so checksums still verify after a round trip.
	var details any
	if len(entry.Details) > 0 {
		details = string(entry.Details)
	}

	_, err := s.pool.Exec(ctx, query,
		entry.ID,
		entry.ActorID,
		entry.Action,
		entry.EntityType,
		entry.EntityID,
		details,
		entry.OrgID,
		entry.ClientIP,
		entry.Timestamp,
		entry.Checksum,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAuditEntryExists
		}
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	return nil
}

// List returns entries matching the filter, newest first.
func (s *AuditStore) List(ctx context.Context, filter store.AuditFilter) ([]*models.AuditEntry, error) {
	var conds conditions
	if filter.ActorID != "" {
		conds.add("actor_id = $%d", filter.ActorID)
	}
	if filter.Action != "" {
		conds.add("action = $%d", filter.Action)
	}
	if filter.EntityType != "" {
		conds.add("entity_type = $%d", filter.EntityType)
	}
	if filter.EntityID != "" {
		conds.add("entity_id = $%d", filter.EntityID)
	}
	if filter.OrgID != nil {
		conds.add("org_id = $%d", *filter.OrgID)
	}
	if !filter.Since.IsZero() {
		conds.add("recorded_at >= $%d", filter.Since)
	}
	if !filter.Until.IsZero() {
		conds.add("recorded_at < $%d", filter.Until)
	}

	query := `SELECT ` + auditColumns + ` FROM audit_log ` + conds.where() +
		` ORDER BY recorded_at DESC, audit_id DESC` + conds.page(filter.Limit, filter.Offset)

	rows, err := s.pool.Query(ctx, query, conds.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.AuditEntry
	for rows.Next() {
		var (
			entry   models.AuditEntry
			details []byte
		)
		err := rows.Scan(
			&entry.ID,
			&entry.ActorID,
			&entry.Action,
			&entry.EntityType,
			&entry.EntityID,
			&details,
			&entry.OrgID,
			&entry.ClientIP,
			&entry.Timestamp,
			&entry.Checksum,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entry.Details = details
		// Checksums are computed over the UTC rendering of the timestamp.
		entry.Timestamp = entry.Timestamp.UTC()
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}

	return entries, nil
}
