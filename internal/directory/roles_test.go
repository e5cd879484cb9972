package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/casekeeper/internal/apperr"
	"github.com/wolfeidau/casekeeper/internal/audit"
	"github.com/wolfeidau/casekeeper/internal/auth"
	"github.com/wolfeidau/casekeeper/internal/models"
)

func TestListRoles(t *testing.T) {
	f := newFixture(t)
	acme := f.org(t, "acme")
	leader := f.seedUser(t, models.RoleTeamLeader, &acme)

	roles, err := f.service.ListRoles(context.Background(), leader.ExternalID)
	require.NoError(t, err)
	require.Len(t, roles, len(models.Roles))
	require.Equal(t, models.RoleSuperadmin, roles[0].Role)
	require.Equal(t, 0, roles[0].Level)
	require.Len(t, roles[0].Permissions, len(auth.AllPermissions))
}

func TestUpdateRolePermissions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acme := f.org(t, "acme")
	super := f.seedUser(t, models.RoleSuperadmin, nil)
	admin := f.seedUser(t, models.RoleAdmin, &acme)
	worker := f.seedUser(t, models.RoleSupportWorker, &acme)

	require.True(t, apperr.Is(f.engine.Authorize(ctx, worker.ExternalID, auth.PermViewWorkload), apperr.KindUnauthorized))

	info, err := f.service.UpdateRolePermissions(ctx, super.ExternalID, "support_worker", []string{
		"view_clients", "edit_clients", "view_appointments", "create_appointments", "view_workload", "view_workload",
	})
	require.NoError(t, err)
	require.Len(t, info.Permissions, 5)
	require.NoError(t, f.engine.Authorize(ctx, worker.ExternalID, auth.PermViewWorkload))
	require.Equal(t, 1, f.auditCount(t, audit.ActionRolePermissions))

	t.Run("superadmin keeps manage_roles", func(t *testing.T) {
		_, err := f.service.UpdateRolePermissions(ctx, super.ExternalID, "superadmin", []string{"view_users"})
		requireKind(t, apperr.KindInvariantViolation, err)
	})

	t.Run("unknown role or permission", func(t *testing.T) {
		_, err := f.service.UpdateRolePermissions(ctx, super.ExternalID, "janitor", nil)
		requireKind(t, apperr.KindValidation, err)
		_, err = f.service.UpdateRolePermissions(ctx, super.ExternalID, "admin", []string{"fly"})
		requireKind(t, apperr.KindValidation, err)
	})

	t.Run("admin cannot rewrite roles", func(t *testing.T) {
		_, err := f.service.UpdateRolePermissions(ctx, admin.ExternalID, "admin", []string{"manage_roles"})
		requireKind(t, apperr.KindUnauthorized, err)
	})
}
