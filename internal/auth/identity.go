package auth

import (
	"context"
	"errors"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/casekeeper/internal/apperr"
	"github.com/wolfeidau/casekeeper/internal/models"
	"github.com/wolfeidau/casekeeper/internal/store"
	"github.com/wolfeidau/casekeeper/internal/telemetry"
)

// ResolverConfig controls identity caching.
type ResolverConfig struct {
	// CacheSize is the maximum number of cached identities. Zero disables caching.
	CacheSize int
	// CacheTTL bounds how long a cached identity is trusted.
	CacheTTL time.Duration
}

// Resolver loads the staff user behind an authenticated subject identifier.
type Resolver struct {
	staff store.StaffStore
	cache *lru.LRU[string, *models.StaffUser]
}

// NewResolver creates an identity resolver backed by the staff store.
func NewResolver(staff store.StaffStore, cfg ResolverConfig) *Resolver {
	r := &Resolver{staff: staff}
	if cfg.CacheSize > 0 && cfg.CacheTTL > 0 {
		r.cache = lru.NewLRU[string, *models.StaffUser](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	return r
}

// Resolve returns the staff user for subjectID.
// An empty subject is Unauthenticated; a subject with no staff record is Unauthorized.
func (r *Resolver) Resolve(ctx context.Context, subjectID string) (*models.StaffUser, error) {
	if subjectID == "" {
		return nil, apperr.Unauthenticated("no subject identity")
	}

	if r.cache != nil {
		if user, ok := r.cache.Get(subjectID); ok {
			telemetry.GetMetrics().IdentityCacheHits.Add(ctx, 1)
			clone := *user
			return &clone, nil
		}
		telemetry.GetMetrics().IdentityCacheMisses.Add(ctx, 1)
	}

	user, err := r.staff.GetByExternalID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			log.Debug().Str("subject_id", subjectID).Msg("Subject has no staff record")
			return nil, apperr.Unauthorized("unknown subject")
		}
		return nil, apperr.Wrap(apperr.KindInternal, err, "failed to resolve subject")
	}

	if r.cache != nil {
		clone := *user
		r.cache.Add(subjectID, &clone)
	}

	return user, nil
}

// Invalidate drops any cached identity for subjectID.
func (r *Resolver) Invalidate(subjectID string) {
	if r.cache != nil {
		r.cache.Remove(subjectID)
	}
}
