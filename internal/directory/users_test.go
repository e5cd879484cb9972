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

func TestCreateUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acme := f.org(t, "acme")
	globex := f.org(t, "globex")
	super := f.seedUser(t, models.RoleSuperadmin, nil)
	admin := f.seedUser(t, models.RoleAdmin, &acme)

	t.Run("admin creates worker in own org", func(t *testing.T) {
		u, err := f.service.CreateUser(ctx, admin.ExternalID, CreateUserInput{
			ExternalID: "ext-worker-1",
			Email:      "worker1@acme.org",
			Name:       "Worker One",
			Phone:      "+61 400 000 000",
			Role:       models.RoleSupportWorker,
		})
		require.NoError(t, err)
		require.Equal(t, acme, *u.OrgID)
		require.Equal(t, models.UserStatusActive, u.Status)
		require.Equal(t, int64(1), u.Version)
		require.Equal(t, 1, f.auditCount(t, audit.ActionUserCreate))
	})

	t.Run("duplicate email is a conflict", func(t *testing.T) {
		_, err := f.service.CreateUser(ctx, super.ExternalID, CreateUserInput{
			ExternalID: "ext-worker-2",
			Email:      "WORKER1@acme.org",
			Name:       "Worker Two",
			Role:       models.RoleSupportWorker,
			OrgID:      &globex,
		})
		requireKind(t, apperr.KindConflict, err)
	})

	t.Run("admin cannot create admin", func(t *testing.T) {
		_, err := f.service.CreateUser(ctx, admin.ExternalID, CreateUserInput{
			ExternalID: "ext-admin-2", Email: "admin2@acme.org", Name: "Admin", Role: models.RoleAdmin,
		})
		requireKind(t, apperr.KindUnauthorized, err)
	})

	t.Run("admin cannot create in other org", func(t *testing.T) {
		_, err := f.service.CreateUser(ctx, admin.ExternalID, CreateUserInput{
			ExternalID: "ext-x", Email: "x@globex.org", Name: "X", Role: models.RoleClient, OrgID: &globex,
		})
		requireKind(t, apperr.KindUnauthorized, err)
	})

	t.Run("superadmin must name org for staff", func(t *testing.T) {
		_, err := f.service.CreateUser(ctx, super.ExternalID, CreateUserInput{
			ExternalID: "ext-y", Email: "y@globex.org", Name: "Y", Role: models.RoleAdmin,
		})
		requireKind(t, apperr.KindValidation, err)
	})

	t.Run("superadmin has no org", func(t *testing.T) {
		_, err := f.service.CreateUser(ctx, super.ExternalID, CreateUserInput{
			ExternalID: "ext-z", Email: "z@example.org", Name: "Z", Role: models.RoleSuperadmin, OrgID: &acme,
		})
		requireKind(t, apperr.KindValidation, err)

		u, err := f.service.CreateUser(ctx, super.ExternalID, CreateUserInput{
			ExternalID: "ext-z", Email: "z@example.org", Name: "Z", Role: models.RoleSuperadmin,
		})
		require.NoError(t, err)
		require.Nil(t, u.OrgID)
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := f.service.CreateUser(ctx, admin.ExternalID, CreateUserInput{
			ExternalID: "ext-bad", Email: "not-an-email", Name: "Bad", Role: models.RoleClient,
		})
		requireKind(t, apperr.KindValidation, err)

		_, err = f.service.CreateUser(ctx, admin.ExternalID, CreateUserInput{
			ExternalID: "ext-bad", Email: "bad@acme.org", Name: "Bad", Role: "janitor",
		})
		requireKind(t, apperr.KindValidation, err)
	})

	t.Run("unknown org", func(t *testing.T) {
		_, err := f.service.CreateUser(ctx, super.ExternalID, CreateUserInput{
			ExternalID: "ext-o", Email: "o@example.org", Name: "O", Role: models.RoleAdmin, OrgID: ptr(uuid.New()),
		})
		requireKind(t, apperr.KindNotFound, err)
	})
}

func TestGetUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acme := f.org(t, "acme")
	globex := f.org(t, "globex")
	super := f.seedUser(t, models.RoleSuperadmin, nil)
	leader := f.seedUser(t, models.RoleTeamLeader, &acme)
	peer := f.seedUser(t, models.RolePeerSupport, &acme)
	foreign := f.seedUser(t, models.RoleSupportWorker, &globex)

	self, err := f.service.GetUser(ctx, peer.ExternalID, nil)
	require.NoError(t, err)
	require.Equal(t, peer.ID, self.ID)

	_, err = f.service.GetUser(ctx, peer.ExternalID, &leader.ID)
	requireKind(t, apperr.KindUnauthorized, err)

	got, err := f.service.GetUser(ctx, leader.ExternalID, &peer.ID)
	require.NoError(t, err)
	require.Equal(t, peer.ID, got.ID)

	_, err = f.service.GetUser(ctx, leader.ExternalID, &foreign.ID)
	requireKind(t, apperr.KindUnauthorized, err)

	_, err = f.service.GetUser(ctx, leader.ExternalID, &super.ID)
	requireKind(t, apperr.KindUnauthorized, err)

	_, err = f.service.GetUser(ctx, super.ExternalID, &foreign.ID)
	require.NoError(t, err)

	_, err = f.service.GetUser(ctx, super.ExternalID, ptr(uuid.New()))
	requireKind(t, apperr.KindNotFound, err)

	_, err = f.service.GetUser(ctx, "", nil)
	requireKind(t, apperr.KindUnauthenticated, err)
}

func TestListUsers_Isolation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acme := f.org(t, "acme")
	globex := f.org(t, "globex")
	f.seedUser(t, models.RoleSuperadmin, nil)
	admin := f.seedUser(t, models.RoleAdmin, &acme)
	f.seedUser(t, models.RoleSupportWorker, &acme)
	f.seedUser(t, models.RoleSupportWorker, &globex)

	users, err := f.service.ListUsers(ctx, admin.ExternalID, UserQuery{})
	require.NoError(t, err)
	require.Len(t, users, 2)
	for _, u := range users {
		require.Equal(t, acme, *u.OrgID)
	}

	_, err = f.service.ListUsers(ctx, admin.ExternalID, UserQuery{OrgID: &globex})
	requireKind(t, apperr.KindUnauthorized, err)

	workers, err := f.service.ListUsers(ctx, admin.ExternalID, UserQuery{Role: ptr(models.RoleSupportWorker)})
	require.NoError(t, err)
	require.Len(t, workers, 1)
}

func TestArchiveUser_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acme := f.org(t, "acme")
	admin := f.seedUser(t, models.RoleAdmin, &acme)
	worker := f.seedUser(t, models.RoleSupportWorker, &acme)

	first, err := f.service.ArchiveUser(ctx, admin.ExternalID, worker.ID)
	require.NoError(t, err)
	require.Equal(t, models.UserStatusDeleted, first.Status)
	require.NotNil(t, first.DeletedAt)

	second, err := f.service.ArchiveUser(ctx, admin.ExternalID, worker.ID)
	require.NoError(t, err)
	require.Equal(t, first.Version, second.Version)
	require.Equal(t, first.DeletedAt.Unix(), second.DeletedAt.Unix())
	require.Equal(t, 1, f.auditCount(t, audit.ActionUserArchive))

	// archived users drop out of default listings but stay readable on request
	users, err := f.service.ListUsers(ctx, admin.ExternalID, UserQuery{})
	require.NoError(t, err)
	require.Len(t, users, 1)

	users, err = f.service.ListUsers(ctx, admin.ExternalID, UserQuery{IncludeDeleted: true})
	require.NoError(t, err)
	require.Len(t, users, 2)

	// the archived subject can no longer act
	_, err = f.service.GetUser(ctx, worker.ExternalID, nil)
	requireKind(t, apperr.KindUnauthorized, err)
}

func TestArchiveUser_LastSuperadmin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	root := f.seedUser(t, models.RoleSuperadmin, nil)

	_, err := f.service.ArchiveUser(ctx, root.ExternalID, root.ID)
	requireKind(t, apperr.KindInvariantViolation, err)

	stored, err := f.stores.Staff.Get(ctx, root.ID)
	require.NoError(t, err)
	require.Equal(t, models.UserStatusActive, stored.Status)

	second := f.seedUser(t, models.RoleSuperadmin, nil)
	_, err = f.service.ArchiveUser(ctx, second.ExternalID, root.ID)
	require.NoError(t, err)

	_, err = f.service.ArchiveUser(ctx, second.ExternalID, second.ID)
	requireKind(t, apperr.KindInvariantViolation, err)

	_, err = f.service.UpdateUser(ctx, second.ExternalID, second.ID, UpdateUserInput{Status: ptr(models.UserStatusSuspended)})
	requireKind(t, apperr.KindUnauthorized, err)
}

func TestArchiveUser_Precedence(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acme := f.org(t, "acme")
	globex := f.org(t, "globex")
	admin := f.seedUser(t, models.RoleAdmin, &acme)
	otherAdmin := f.seedUser(t, models.RoleAdmin, &acme)
	foreign := f.seedUser(t, models.RoleSupportWorker, &globex)
	leader := f.seedUser(t, models.RoleTeamLeader, &acme)

	_, err := f.service.ArchiveUser(ctx, admin.ExternalID, otherAdmin.ID)
	requireKind(t, apperr.KindUnauthorized, err)

	_, err = f.service.ArchiveUser(ctx, admin.ExternalID, foreign.ID)
	requireKind(t, apperr.KindUnauthorized, err)

	_, err = f.service.ArchiveUser(ctx, leader.ExternalID, admin.ID)
	requireKind(t, apperr.KindUnauthorized, err)

	_, err = f.service.ArchiveUser(ctx, admin.ExternalID, uuid.New())
	requireKind(t, apperr.KindNotFound, err)
}

func TestUpdateUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acme := f.org(t, "acme")
	globex := f.org(t, "globex")
	super := f.seedUser(t, models.RoleSuperadmin, nil)
	admin := f.seedUser(t, models.RoleAdmin, &acme)
	worker := f.seedUser(t, models.RoleSupportWorker, &acme)

	t.Run("promote within precedence", func(t *testing.T) {
		u, err := f.service.UpdateUser(ctx, admin.ExternalID, worker.ID, UpdateUserInput{Role: ptr(models.RoleTeamLeader)})
		require.NoError(t, err)
		require.Equal(t, models.RoleTeamLeader, u.Role)
		require.Equal(t, int64(2), u.Version)
	})

	t.Run("cannot grant own level", func(t *testing.T) {
		_, err := f.service.UpdateUser(ctx, admin.ExternalID, worker.ID, UpdateUserInput{Role: ptr(models.RoleAdmin)})
		requireKind(t, apperr.KindUnauthorized, err)
	})

	t.Run("stale version", func(t *testing.T) {
		_, err := f.service.UpdateUser(ctx, admin.ExternalID, worker.ID, UpdateUserInput{Name: ptr("Renamed"), ExpectedVersion: 1})
		requireKind(t, apperr.KindConflict, err)
	})

	t.Run("self contact details", func(t *testing.T) {
		u, err := f.service.UpdateUser(ctx, admin.ExternalID, admin.ID, UpdateUserInput{Phone: ptr("(02) 9999 0000")})
		require.NoError(t, err)
		require.Equal(t, "(02) 9999 0000", u.Phone)
	})

	t.Run("self role change", func(t *testing.T) {
		_, err := f.service.UpdateUser(ctx, admin.ExternalID, admin.ID, UpdateUserInput{Role: ptr(models.RoleSuperadmin)})
		requireKind(t, apperr.KindUnauthorized, err)
	})

	t.Run("illegal transition", func(t *testing.T) {
		_, err := f.service.UpdateUser(ctx, admin.ExternalID, worker.ID, UpdateUserInput{Status: ptr(models.UserStatusSuspended)})
		require.NoError(t, err)
		_, err = f.service.UpdateUser(ctx, admin.ExternalID, worker.ID, UpdateUserInput{Status: ptr(models.UserStatusInactive)})
		requireKind(t, apperr.KindValidation, err)
	})

	t.Run("email collision", func(t *testing.T) {
		_, err := f.service.UpdateUser(ctx, admin.ExternalID, worker.ID, UpdateUserInput{Email: ptr(admin.Email)})
		requireKind(t, apperr.KindConflict, err)
	})

	t.Run("only superadmin moves orgs", func(t *testing.T) {
		_, err := f.service.UpdateUser(ctx, admin.ExternalID, worker.ID, UpdateUserInput{OrgID: &globex})
		requireKind(t, apperr.KindUnauthorized, err)

		u, err := f.service.UpdateUser(ctx, super.ExternalID, worker.ID, UpdateUserInput{OrgID: &globex})
		require.NoError(t, err)
		require.Equal(t, globex, *u.OrgID)
	})

	t.Run("no-op", func(t *testing.T) {
		before := f.auditCount(t, audit.ActionUserUpdate)
		_, err := f.service.UpdateUser(ctx, super.ExternalID, admin.ID, UpdateUserInput{Name: ptr(admin.Name)})
		require.NoError(t, err)
		require.Equal(t, before, f.auditCount(t, audit.ActionUserUpdate))
	})

	t.Run("role change takes effect immediately", func(t *testing.T) {
		_, err := f.service.ListUsers(ctx, admin.ExternalID, UserQuery{})
		require.NoError(t, err)

		_, err = f.service.UpdateUser(ctx, super.ExternalID, admin.ID, UpdateUserInput{Role: ptr(models.RoleClient)})
		require.NoError(t, err)

		_, err = f.service.ListUsers(ctx, admin.ExternalID, UserQuery{})
		requireKind(t, apperr.KindUnauthorized, err)
	})
}
