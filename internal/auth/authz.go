package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/casekeeper/internal/apperr"
	"github.com/wolfeidau/casekeeper/internal/models"
	"github.com/wolfeidau/casekeeper/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Engine answers whether a subject may perform a capability.
type Engine struct {
	resolver *Resolver
	registry *RegistryHolder
	guard    *Guard
}

// NewEngine creates a permission engine.
func NewEngine(resolver *Resolver, registry *RegistryHolder) *Engine {
	return &Engine{
		resolver: resolver,
		registry: registry,
		guard:    NewGuard(resolver),
	}
}

// Registry returns the registry currently in force.
func (e *Engine) Registry() *Registry {
	return e.registry.Load()
}

// Registries returns the holder used for audited registry replacement.
func (e *Engine) Registries() *RegistryHolder {
	return e.registry
}

// Resolver returns the identity resolver used by the engine.
func (e *Engine) Resolver() *Resolver {
	return e.resolver
}

// Authorize fails closed unless subjectID resolves to an active user whose role holds perm.
func (e *Engine) Authorize(ctx context.Context, subjectID string, perm Permission) error {
	_, err := e.Check(ctx, subjectID, perm)
	return err
}

// Check is Authorize returning the resolved user.
func (e *Engine) Check(ctx context.Context, subjectID string, perm Permission) (*models.StaffUser, error) {
	user, err := e.resolver.Resolve(ctx, subjectID)
	if err != nil {
		e.record(ctx, perm, false)
		return nil, err
	}

	if !user.IsActive() {
		e.record(ctx, perm, false)
		log.Warn().Str("subject_id", subjectID).Str("status", string(user.Status)).Msg("Inactive subject denied")
		return nil, apperr.Unauthorized("subject is not active")
	}

	if !e.registry.Load().HasPermission(user.Role, perm) {
		e.record(ctx, perm, false)
		log.Warn().
			Str("subject_id", subjectID).
			Str("role", string(user.Role)).
			Str("permission", string(perm)).
			Msg("Permission denied")
		return nil, apperr.Unauthorized("permission denied: %s requires %s", user.Role, perm)
	}

	e.record(ctx, perm, true)
	return user, nil
}

// CheckScoped authorizes perm and then scopes the caller to requested.
// A cross-organization request is Unauthorized even when the permission is held.
func (e *Engine) CheckScoped(ctx context.Context, subjectID string, perm Permission, requested *uuid.UUID) (*models.StaffUser, Scope, error) {
	user, err := e.Check(ctx, subjectID, perm)
	if err != nil {
		return nil, Scope{}, err
	}

	scope, err := ScopeFor(user, requested)
	if err != nil {
		log.Warn().
			Str("subject_id", subjectID).
			Str("permission", string(perm)).
			Msg("Cross-organization request denied")
		return nil, Scope{}, err
	}

	return user, scope, nil
}

// Scope exposes the tenant guard for callers that need scoping without a permission check.
func (e *Engine) Scope(ctx context.Context, subjectID string, requested *uuid.UUID) (Scope, error) {
	return e.guard.Scope(ctx, subjectID, requested)
}

func (e *Engine) record(ctx context.Context, perm Permission, allowed bool) {
	telemetry.GetMetrics().AuthzDecisionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("permission", string(perm)),
		attribute.Bool("allowed", allowed),
	))
}
