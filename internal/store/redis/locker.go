package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/casekeeper/internal/store"
)

const (
	defaultLease = 30 * time.Second
	keyPrefix    = "casekeeper:orglock:"
)

// Both scripts only touch the key while it still holds this holder's token,
// so an expired lease taken over by another process is never released or extended.
var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

var errHeld = errors.New("lock held by another holder")

// Locker implements store.OrgLocker with SET NX leases that are renewed while held.
type Locker struct {
	client *redis.Client
	lease  time.Duration
}

// LockerOption configures a Locker.
type LockerOption func(*Locker)

// WithLease sets how long a lock survives its holder disappearing. Defaults to 30s.
func WithLease(d time.Duration) LockerOption {
	return func(l *Locker) {
		if d > 0 {
			l.lease = d
		}
	}
}

// NewLocker creates a Redis-backed organization locker.
func NewLocker(client *redis.Client, opts ...LockerOption) *Locker {
	l := &Locker{client: client, lease: defaultLease}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Lock polls with exponential backoff until the lease is taken or ctx is done.
func (l *Locker) Lock(ctx context.Context, orgID uuid.UUID) (func(), error) {
	key := keyPrefix + orgID.String()
	token := uuid.NewString()

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		ok, err := l.client.SetNX(ctx, key, token, l.lease).Result()
		if err != nil {
			if ctx.Err() != nil {
				return struct{}{}, err
			}
			return struct{}{}, backoff.Permanent(fmt.Errorf("failed to set lock key: %w", err))
		}
		if !ok {
			return struct{}{}, errHeld
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(&backoff.ExponentialBackOff{
		InitialInterval:     10 * time.Millisecond,
		RandomizationFactor: 0.5,
		Multiplier:          1.5,
		MaxInterval:         500 * time.Millisecond,
	}))
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, errHeld) {
			return nil, store.ErrLockNotAcquired
		}
		return nil, err
	}

	renewCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.renew(renewCtx, key, token)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			stop()
			<-done
			if err := releaseScript.Run(context.WithoutCancel(ctx), l.client, []string{key}, token).Err(); err != nil {
				log.Warn().Err(err).Str("org_id", orgID.String()).Msg("Failed to release organization lock, lease will expire")
			}
		})
	}, nil
}

// renew extends the lease at a third of its length until ctx is cancelled.
func (l *Locker) renew(ctx context.Context, key, token string) {
	ticker := time.NewTicker(l.lease / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := extendScript.Run(ctx, l.client, []string{key}, token, l.lease.Milliseconds()).Int()
			if err != nil {
				if ctx.Err() == nil {
					log.Warn().Err(err).Str("key", key).Msg("Failed to extend organization lock")
				}
				continue
			}
			if n == 0 {
				log.Error().Str("key", key).Msg("Organization lock lease lost")
				return
			}
		}
	}
}
