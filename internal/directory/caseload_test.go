package directory

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/casekeeper/internal/audit"
	"github.com/wolfeidau/casekeeper/internal/models"
	"github.com/wolfeidau/casekeeper/internal/store"
)

// requireAssignmentInvariant checks that every assigned client points at an active eligible
// worker in its own organization.
func (f *fixture) requireAssignmentInvariant(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	clients, err := f.stores.Clients.List(ctx, store.ClientFilter{IncludeDeleted: true})
	require.NoError(t, err)
	for _, c := range clients {
		if c.AssignedWorkerID == nil {
			continue
		}
		w, err := f.stores.Staff.Get(ctx, *c.AssignedWorkerID)
		require.NoError(t, err)
		require.True(t, w.IsEligibleWorkerIn(c.OrgID), "client %s assigned to ineligible worker %s", c.ID, w.ID)
	}
}

func TestWorkerLifecycle_ReleasesClients(t *testing.T) {
	type actors struct {
		super, admin, worker *models.StaffUser
		globex               uuid.UUID
	}

	tests := []struct {
		name     string
		change   func(ctx context.Context, f *fixture, a actors) error
		releases bool
	}{
		{
			name: "archive",
			change: func(ctx context.Context, f *fixture, a actors) error {
				_, err := f.service.ArchiveUser(ctx, a.admin.ExternalID, a.worker.ID)
				return err
			},
			releases: true,
		},
		{
			name: "archive via status",
			change: func(ctx context.Context, f *fixture, a actors) error {
				_, err := f.service.UpdateUser(ctx, a.admin.ExternalID, a.worker.ID, UpdateUserInput{Status: ptr(models.UserStatusDeleted)})
				return err
			},
			releases: true,
		},
		{
			name: "suspend",
			change: func(ctx context.Context, f *fixture, a actors) error {
				_, err := f.service.UpdateUser(ctx, a.admin.ExternalID, a.worker.ID, UpdateUserInput{Status: ptr(models.UserStatusSuspended)})
				return err
			},
			releases: true,
		},
		{
			name: "deactivate",
			change: func(ctx context.Context, f *fixture, a actors) error {
				_, err := f.service.UpdateUser(ctx, a.admin.ExternalID, a.worker.ID, UpdateUserInput{Status: ptr(models.UserStatusInactive)})
				return err
			},
			releases: true,
		},
		{
			name: "promote to team leader",
			change: func(ctx context.Context, f *fixture, a actors) error {
				_, err := f.service.UpdateUser(ctx, a.admin.ExternalID, a.worker.ID, UpdateUserInput{Role: ptr(models.RoleTeamLeader)})
				return err
			},
			releases: true,
		},
		{
			name: "move to another organization",
			change: func(ctx context.Context, f *fixture, a actors) error {
				_, err := f.service.UpdateUser(ctx, a.super.ExternalID, a.worker.ID, UpdateUserInput{OrgID: &a.globex})
				return err
			},
			releases: true,
		},
		{
			name: "switch to peer support",
			change: func(ctx context.Context, f *fixture, a actors) error {
				_, err := f.service.UpdateUser(ctx, a.admin.ExternalID, a.worker.ID, UpdateUserInput{Role: ptr(models.RolePeerSupport)})
				return err
			},
			releases: false,
		},
		{
			name: "rename",
			change: func(ctx context.Context, f *fixture, a actors) error {
				_, err := f.service.UpdateUser(ctx, a.admin.ExternalID, a.worker.ID, UpdateUserInput{Name: ptr("Renamed")})
				return err
			},
			releases: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			acme := f.org(t, "acme")
			a := actors{
				super:  f.seedUser(t, models.RoleSuperadmin, nil),
				admin:  f.seedUser(t, models.RoleAdmin, &acme),
				worker: f.seedUser(t, models.RoleSupportWorker, &acme),
				globex: f.org(t, "globex"),
			}
			other := f.seedUser(t, models.RoleSupportWorker, &acme)

			active := f.seedClient(t, acme, &a.worker.ID)
			inactive := f.seedClient(t, acme, &a.worker.ID)
			inactive.Status = models.ClientStatusInactive
			require.NoError(t, f.stores.Clients.Update(ctx, inactive, inactive.Version))
			untouched := f.seedClient(t, acme, &other.ID)

			require.NoError(t, tt.change(ctx, f, a))

			for _, id := range []uuid.UUID{active.ID, inactive.ID} {
				stored, err := f.stores.Clients.Get(ctx, id)
				require.NoError(t, err)
				if tt.releases {
					require.Nil(t, stored.AssignedWorkerID)
				} else {
					require.Equal(t, a.worker.ID, *stored.AssignedWorkerID)
				}
			}

			stored, err := f.stores.Clients.Get(ctx, untouched.ID)
			require.NoError(t, err)
			require.Equal(t, other.ID, *stored.AssignedWorkerID)

			if !tt.releases {
				require.Zero(t, f.auditCount(t, audit.ActionClientUnassign))
				return
			}

			entries, err := f.audit.List(ctx, store.AuditFilter{Action: audit.ActionClientUnassign})
			require.NoError(t, err)
			require.Len(t, entries, 2)
			for _, e := range entries {
				require.Equal(t, acme, *e.OrgID)
				var d map[string]any
				require.NoError(t, json.Unmarshal(e.Details, &d))
				require.Equal(t, a.worker.ID.String(), d["previous_worker_id"])
				require.True(t, audit.Verify(e))
			}

			f.requireAssignmentInvariant(t)
		})
	}
}

func TestWorkerLifecycle_ReleaseSkipsConcurrentReassignment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acme := f.org(t, "acme")
	admin := f.seedUser(t, models.RoleAdmin, &acme)
	worker := f.seedUser(t, models.RoleSupportWorker, &acme)
	other := f.seedUser(t, models.RoleSupportWorker, &acme)
	c := f.seedClient(t, acme, &worker.ID)

	// moved elsewhere between listing and update
	c.AssignedWorkerID = &other.ID
	require.NoError(t, f.stores.Clients.Update(ctx, c, c.Version))

	ok, err := f.service.unassign(ctx, c.ID, worker.ID)
	require.NoError(t, err)
	require.False(t, ok)

	stored, err := f.stores.Clients.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, other.ID, *stored.AssignedWorkerID)

	_, err = f.service.ArchiveUser(ctx, admin.ExternalID, worker.ID)
	require.NoError(t, err)
	require.Zero(t, f.auditCount(t, audit.ActionClientUnassign))
}
