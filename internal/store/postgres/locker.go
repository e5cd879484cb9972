package postgres

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/casekeeper/internal/store"
)

// AdvisoryLocker implements store.OrgLocker with session-level PostgreSQL advisory locks.
// Each held lock pins one pooled connection until it is released.
type AdvisoryLocker struct {
	pool *pgxpool.Pool
}

// NewAdvisoryLocker creates an organization locker backed by pool.
func NewAdvisoryLocker(pool *pgxpool.Pool) *AdvisoryLocker {
	return &AdvisoryLocker{pool: pool}
}

// Lock blocks in pg_advisory_lock until the organization's lock is held or ctx is done.
func (l *AdvisoryLocker) Lock(ctx context.Context, orgID uuid.UUID) (func(), error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, store.ErrLockNotAcquired
		}
		return nil, err
	}

	key := lockKey(orgID)
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock(hashtextextended($1, 0))`, key); err != nil {
		// A cancelled wait leaves the connection in an unknown state.
		conn.Hijack().Close(context.Background()) //nolint:errcheck
		if ctx.Err() != nil {
			return nil, store.ErrLockNotAcquired
		}
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			var unlocked bool
			err := conn.QueryRow(context.Background(), `SELECT pg_advisory_unlock(hashtextextended($1, 0))`, key).Scan(&unlocked)
			if err != nil || !unlocked {
				log.Warn().Err(err).Str("org_id", orgID.String()).Msg("Failed to release organization lock, discarding connection")
				conn.Hijack().Close(context.Background()) //nolint:errcheck
				return
			}
			conn.Release()
		})
	}, nil
}

func lockKey(orgID uuid.UUID) string {
	return "casekeeper:org:" + orgID.String()
}
