package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/casekeeper/internal/apperr"
	"github.com/wolfeidau/casekeeper/internal/models"
	"github.com/wolfeidau/casekeeper/internal/store/memory"
)

func TestScopeFor(t *testing.T) {
	orgA := uuid.New()
	orgB := uuid.New()

	tests := []struct {
		name      string
		user      *models.StaffUser
		requested *uuid.UUID
		wantOrg   *uuid.UUID
		wantErr   bool
	}{
		{
			name:    "superadmin without request sees everything",
			user:    &models.StaffUser{Role: models.RoleSuperadmin},
			wantOrg: nil,
		},
		{
			name:      "superadmin with request is narrowed",
			user:      &models.StaffUser{Role: models.RoleSuperadmin},
			requested: &orgB,
			wantOrg:   &orgB,
		},
		{
			name:    "worker is forced to own org",
			user:    &models.StaffUser{Role: models.RoleSupportWorker, OrgID: &orgA},
			wantOrg: &orgA,
		},
		{
			name:      "worker requesting own org",
			user:      &models.StaffUser{Role: models.RoleSupportWorker, OrgID: &orgA},
			requested: &orgA,
			wantOrg:   &orgA,
		},
		{
			name:      "admin requesting another org",
			user:      &models.StaffUser{Role: models.RoleAdmin, OrgID: &orgA},
			requested: &orgB,
			wantErr:   true,
		},
		{
			name:    "non-superadmin without org",
			user:    &models.StaffUser{Role: models.RoleAdmin},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scope, err := ScopeFor(tt.user, tt.requested)
			if tt.wantErr {
				require.True(t, apperr.Is(err, apperr.KindUnauthorized))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantOrg, scope.OrgID)
		})
	}
}

func TestScopePermits(t *testing.T) {
	orgA := uuid.New()
	orgB := uuid.New()

	scoped := Scope{OrgID: &orgA}
	require.True(t, scoped.Permits(orgA))
	require.False(t, scoped.Permits(orgB))
	require.False(t, scoped.PermitsOptional(nil))

	global := Scope{}
	require.True(t, global.Global())
	require.True(t, global.Permits(orgB))
	require.True(t, global.PermitsOptional(nil))
}

// Every non-superadmin role is refused every foreign organization.
func TestGuard_TenantIsolation(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStaffStore()
	guard := NewGuard(NewResolver(st, ResolverConfig{}))
	own := uuid.New()
	foreign := uuid.New()

	for _, role := range models.Roles {
		if role == models.RoleSuperadmin {
			continue
		}
		user := createUser(t, st, role, &own, models.UserStatusActive)
		t.Run(string(role), func(t *testing.T) {
			_, err := guard.Scope(ctx, user.ExternalID, &foreign)
			require.True(t, apperr.Is(err, apperr.KindUnauthorized))
		})
	}
}
