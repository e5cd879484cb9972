package directory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/casekeeper/internal/apperr"
	"github.com/wolfeidau/casekeeper/internal/audit"
	"github.com/wolfeidau/casekeeper/internal/models"
)

func TestCreateClient(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acme := f.org(t, "acme")
	globex := f.org(t, "globex")
	super := f.seedUser(t, models.RoleSuperadmin, nil)
	leader := f.seedUser(t, models.RoleTeamLeader, &acme)
	worker := f.seedUser(t, models.RoleSupportWorker, &acme)

	c, err := f.service.CreateClient(ctx, leader.ExternalID, CreateClientInput{Name: "Sam", Email: "sam@example.org"})
	require.NoError(t, err)
	require.Equal(t, acme, c.OrgID)
	require.Equal(t, models.RiskLow, c.RiskLevel)
	require.Nil(t, c.AssignedWorkerID)
	require.Equal(t, 1, f.auditCount(t, audit.ActionClientCreate))

	t.Run("email unique within org", func(t *testing.T) {
		_, err := f.service.CreateClient(ctx, leader.ExternalID, CreateClientInput{Name: "Sam Two", Email: "SAM@example.org"})
		requireKind(t, apperr.KindConflict, err)

		other, err := f.service.CreateClient(ctx, super.ExternalID, CreateClientInput{OrgID: &globex, Name: "Sam", Email: "sam@example.org"})
		require.NoError(t, err)
		require.Equal(t, globex, other.OrgID)
	})

	t.Run("worker cannot create", func(t *testing.T) {
		_, err := f.service.CreateClient(ctx, worker.ExternalID, CreateClientInput{Name: "Alex"})
		requireKind(t, apperr.KindUnauthorized, err)
	})

	t.Run("superadmin must pick an org", func(t *testing.T) {
		_, err := f.service.CreateClient(ctx, super.ExternalID, CreateClientInput{Name: "Alex"})
		requireKind(t, apperr.KindValidation, err)
	})

	t.Run("inactive org", func(t *testing.T) {
		_, err := f.service.UpdateOrganization(ctx, super.ExternalID, globex, UpdateOrganizationInput{Status: ptr(models.OrgStatusInactive)})
		require.NoError(t, err)
		_, err = f.service.CreateClient(ctx, super.ExternalID, CreateClientInput{OrgID: &globex, Name: "Late"})
		requireKind(t, apperr.KindValidation, err)
	})

	t.Run("bad risk level", func(t *testing.T) {
		_, err := f.service.CreateClient(ctx, leader.ExternalID, CreateClientInput{Name: "Risky", RiskLevel: "extreme"})
		requireKind(t, apperr.KindValidation, err)
	})
}

func TestClients_TenantIsolation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acme := f.org(t, "acme")
	globex := f.org(t, "globex")
	f.seedClient(t, acme, nil)
	theirs := f.seedClient(t, globex, nil)

	for _, role := range []models.Role{models.RoleAdmin, models.RoleTeamLeader, models.RoleSupportWorker, models.RolePeerSupport} {
		t.Run(string(role), func(t *testing.T) {
			user := f.seedUser(t, role, &acme)

			_, err := f.service.GetClient(ctx, user.ExternalID, theirs.ID)
			requireKind(t, apperr.KindUnauthorized, err)

			list, err := f.service.ListClients(ctx, user.ExternalID, ClientQuery{})
			require.NoError(t, err)
			for _, c := range list {
				require.Equal(t, acme, c.OrgID)
			}

			_, err = f.service.ListClients(ctx, user.ExternalID, ClientQuery{OrgID: &globex})
			requireKind(t, apperr.KindUnauthorized, err)

			_, err = f.service.UpdateClient(ctx, user.ExternalID, theirs.ID, UpdateClientInput{Name: ptr("stolen")})
			requireKind(t, apperr.KindUnauthorized, err)
		})
	}

	super := f.seedUser(t, models.RoleSuperadmin, nil)
	all, err := f.service.ListClients(ctx, super.ExternalID, ClientQuery{})
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestUpdateClient(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acme := f.org(t, "acme")
	admin := f.seedUser(t, models.RoleAdmin, &acme)
	worker := f.seedUser(t, models.RoleSupportWorker, &acme)
	c := f.seedClient(t, acme, &worker.ID)

	updated, err := f.service.UpdateClient(ctx, worker.ExternalID, c.ID, UpdateClientInput{RiskLevel: ptr(models.RiskHigh)})
	require.NoError(t, err)
	require.Equal(t, models.RiskHigh, updated.RiskLevel)

	_, err = f.service.UpdateClient(ctx, worker.ExternalID, c.ID, UpdateClientInput{Status: ptr(models.ClientStatusDeleted)})
	requireKind(t, apperr.KindUnauthorized, err)

	deleted, err := f.service.UpdateClient(ctx, admin.ExternalID, c.ID, UpdateClientInput{Status: ptr(models.ClientStatusDeleted)})
	require.NoError(t, err)
	require.Equal(t, models.ClientStatusDeleted, deleted.Status)

	_, err = f.service.UpdateClient(ctx, admin.ExternalID, c.ID, UpdateClientInput{Status: ptr(models.ClientStatusActive)})
	requireKind(t, apperr.KindValidation, err)

	visible, err := f.service.ListClients(ctx, admin.ExternalID, ClientQuery{})
	require.NoError(t, err)
	require.Empty(t, visible)

	withDeleted, err := f.service.ListClients(ctx, admin.ExternalID, ClientQuery{IncludeDeleted: true})
	require.NoError(t, err)
	require.Len(t, withDeleted, 1)

	got, err := f.service.GetClient(ctx, admin.ExternalID, c.ID)
	require.NoError(t, err)
	require.Equal(t, models.ClientStatusDeleted, got.Status)

	_, err = f.service.GetClient(ctx, admin.ExternalID, uuid.New())
	requireKind(t, apperr.KindNotFound, err)

	require.Equal(t, 2, f.auditCount(t, audit.ActionClientUpdate))
}
