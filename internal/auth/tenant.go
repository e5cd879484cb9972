package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/wolfeidau/casekeeper/internal/apperr"
	"github.com/wolfeidau/casekeeper/internal/models"
)

// Scope is the effective organization filter for a caller.
// A nil OrgID means every organization and is only ever produced for superadmins.
type Scope struct {
	OrgID *uuid.UUID
}

// Global reports whether the scope spans every organization.
func (s Scope) Global() bool {
	return s.OrgID == nil
}

// Permits reports whether an entity in orgID is visible within the scope.
func (s Scope) Permits(orgID uuid.UUID) bool {
	return s.OrgID == nil || *s.OrgID == orgID
}

// PermitsOptional is Permits for entities whose organization may be absent.
// Org-less entities are only visible in a global scope.
func (s Scope) PermitsOptional(orgID *uuid.UUID) bool {
	if orgID == nil {
		return s.Global()
	}
	return s.Permits(*orgID)
}

// ScopeFor computes the effective scope of user for an optionally requested organization.
//
// Superadmins get exactly what they ask for. Everyone else is pinned to their own
// organization and asking for any other is Unauthorized.
func ScopeFor(user *models.StaffUser, requested *uuid.UUID) (Scope, error) {
	if user.Role == models.RoleSuperadmin {
		if requested == nil {
			return Scope{}, nil
		}
		org := *requested
		return Scope{OrgID: &org}, nil
	}

	if user.OrgID == nil {
		return Scope{}, apperr.Unauthorized("subject has no organization")
	}
	if requested != nil && *requested != *user.OrgID {
		return Scope{}, apperr.Unauthorized("cross-organization access denied")
	}

	org := *user.OrgID
	return Scope{OrgID: &org}, nil
}

// Guard resolves subjects and computes their tenant scope.
type Guard struct {
	resolver *Resolver
}

// NewGuard creates a tenant isolation guard.
func NewGuard(resolver *Resolver) *Guard {
	return &Guard{resolver: resolver}
}

// Scope returns the effective organization for subjectID.
func (g *Guard) Scope(ctx context.Context, subjectID string, requested *uuid.UUID) (Scope, error) {
	user, err := g.resolver.Resolve(ctx, subjectID)
	if err != nil {
		return Scope{}, err
	}
	if !user.IsActive() {
		return Scope{}, apperr.Unauthorized("subject is not active")
	}
	return ScopeFor(user, requested)
}
