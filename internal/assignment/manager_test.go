package assignment

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/casekeeper/internal/apperr"
	"github.com/wolfeidau/casekeeper/internal/audit"
	"github.com/wolfeidau/casekeeper/internal/auth"
	"github.com/wolfeidau/casekeeper/internal/models"
	"github.com/wolfeidau/casekeeper/internal/store"
	"github.com/wolfeidau/casekeeper/internal/store/memory"
	"github.com/wolfeidau/casekeeper/internal/workload"
)

type harness struct {
	stores  *store.Stores
	audit   *memory.AuditStore
	manager *Manager
	clock   time.Time
	mu      sync.Mutex
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	stores := memory.NewStores()
	engine := auth.NewEngine(auth.NewResolver(stores.Staff, auth.ResolverConfig{}), auth.NewRegistryHolder(auth.DefaultRegistry()))
	balancer := workload.NewBalancer(stores.Organizations, stores.Staff, stores.Clients)
	recorder := audit.NewRecorder(stores.Audit, engine)
	return &harness{
		stores:  stores,
		audit:   stores.Audit.(*memory.AuditStore),
		manager: NewManager(engine, stores, balancer, recorder),
		clock:   time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC),
	}
}

func (h *harness) tick() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clock = h.clock.Add(time.Second)
	return h.clock
}

func (h *harness) org(t *testing.T, slug string, settings models.OrgSettings) uuid.UUID {
	t.Helper()
	now := h.tick()
	org := &models.Organization{ID: uuid.New(), Slug: slug, Name: slug, Status: models.OrgStatusActive, Settings: settings, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, h.stores.Organizations.Create(context.Background(), org))
	return org.ID
}

func (h *harness) staff(t *testing.T, role models.Role, orgID *uuid.UUID) *models.StaffUser {
	t.Helper()
	now := h.tick()
	id := uuid.New()
	u := &models.StaffUser{
		ID:         id,
		ExternalID: "sub-" + id.String(),
		Email:      id.String() + "@example.org",
		Name:       string(role),
		Role:       role,
		OrgID:      orgID,
		Status:     models.UserStatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, h.stores.Staff.Create(context.Background(), u))
	return u
}

func (h *harness) client(t *testing.T, orgID uuid.UUID, worker *uuid.UUID) uuid.UUID {
	t.Helper()
	now := h.tick()
	c := &models.Client{ID: uuid.New(), OrgID: orgID, AssignedWorkerID: worker, Status: models.ClientStatusActive, RiskLevel: models.RiskMedium, Name: "client", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, h.stores.Clients.Create(context.Background(), c))
	return c.ID
}

func (h *harness) auditActions(t *testing.T, action string) []*models.AuditEntry {
	t.Helper()
	entries, err := h.audit.List(context.Background(), store.AuditFilter{Action: action})
	require.NoError(t, err)
	return entries
}

// requireAssignmentInvariant checks that every assigned client points at an active eligible
// worker in its own organization.
func (h *harness) requireAssignmentInvariant(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	clients, err := h.stores.Clients.List(ctx, store.ClientFilter{IncludeDeleted: true})
	require.NoError(t, err)
	for _, c := range clients {
		if c.AssignedWorkerID == nil {
			continue
		}
		w, err := h.stores.Staff.Get(ctx, *c.AssignedWorkerID)
		require.NoError(t, err)
		require.True(t, w.IsEligibleWorkerIn(c.OrgID), "client %s assigned to ineligible worker %s", c.ID, w.ID)
	}
}

func ptr[T any](v T) *T { return &v }

func TestAssignClient_AutoPicksLeastLoaded(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	acme := h.org(t, "acme", models.OrgSettings{})
	admin := h.staff(t, models.RoleAdmin, &acme)
	w1 := h.staff(t, models.RoleSupportWorker, &acme)
	w2 := h.staff(t, models.RolePeerSupport, &acme)
	for range 3 {
		h.client(t, acme, &w1.ID)
	}
	h.client(t, acme, &w2.ID)
	c := h.client(t, acme, nil)

	res, err := h.manager.AssignClient(ctx, admin.ExternalID, c, nil)
	require.NoError(t, err)
	require.Equal(t, w2.ID, res.WorkerID)
	require.Equal(t, acme, res.OrgID)
	require.False(t, res.Unchanged)
	require.Nil(t, res.PreviousWorkerID)

	stored, err := h.stores.Clients.Get(ctx, c)
	require.NoError(t, err)
	require.Equal(t, w2.ID, *stored.AssignedWorkerID)

	entries := h.auditActions(t, audit.ActionClientAssign)
	require.Len(t, entries, 1)
	require.Equal(t, admin.ID.String(), entries[0].ActorID)
	require.Equal(t, acme, *entries[0].OrgID)
	require.True(t, audit.Verify(entries[0]))
	h.requireAssignmentInvariant(t)
}

func TestAssignClient_Explicit(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	acme := h.org(t, "acme", models.OrgSettings{})
	globex := h.org(t, "globex", models.OrgSettings{})
	leader := h.staff(t, models.RoleTeamLeader, &acme)
	w1 := h.staff(t, models.RoleSupportWorker, &acme)
	w2 := h.staff(t, models.RoleSupportWorker, &acme)
	foreignWorker := h.staff(t, models.RoleSupportWorker, &globex)
	notWorker := h.staff(t, models.RoleTeamLeader, &acme)
	c := h.client(t, acme, &w1.ID)

	t.Run("reassign", func(t *testing.T) {
		res, err := h.manager.AssignClient(ctx, leader.ExternalID, c, &w2.ID)
		require.NoError(t, err)
		require.Equal(t, w2.ID, res.WorkerID)
		require.Equal(t, w1.ID, *res.PreviousWorkerID)
	})

	t.Run("same worker is a no-op", func(t *testing.T) {
		before, err := h.stores.Clients.Get(ctx, c)
		require.NoError(t, err)

		res, err := h.manager.AssignClient(ctx, leader.ExternalID, c, &w2.ID)
		require.NoError(t, err)
		require.True(t, res.Unchanged)

		after, err := h.stores.Clients.Get(ctx, c)
		require.NoError(t, err)
		require.Equal(t, before.Version, after.Version)

		entries := h.auditActions(t, audit.ActionClientAssign)
		var details map[string]any
		require.NoError(t, json.Unmarshal(entries[0].Details, &details))
		require.Equal(t, true, details["unchanged"])
	})

	t.Run("worker in another org", func(t *testing.T) {
		_, err := h.manager.AssignClient(ctx, leader.ExternalID, c, &foreignWorker.ID)
		require.True(t, apperr.Is(err, apperr.KindValidation))
	})

	t.Run("ineligible role", func(t *testing.T) {
		_, err := h.manager.AssignClient(ctx, leader.ExternalID, c, &notWorker.ID)
		require.True(t, apperr.Is(err, apperr.KindValidation))
	})

	t.Run("unknown worker", func(t *testing.T) {
		_, err := h.manager.AssignClient(ctx, leader.ExternalID, c, ptr(uuid.New()))
		require.True(t, apperr.Is(err, apperr.KindValidation))
	})

	h.requireAssignmentInvariant(t)
}

func TestAssignClient_Denied(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	acme := h.org(t, "acme", models.OrgSettings{})
	globex := h.org(t, "globex", models.OrgSettings{})
	h.staff(t, models.RoleSupportWorker, &acme)
	foreignAdmin := h.staff(t, models.RoleAdmin, &globex)
	worker := h.staff(t, models.RoleSupportWorker, &acme)
	c := h.client(t, acme, nil)

	_, err := h.manager.AssignClient(ctx, foreignAdmin.ExternalID, c, nil)
	require.True(t, apperr.Is(err, apperr.KindUnauthorized))

	_, err = h.manager.AssignClient(ctx, worker.ExternalID, c, nil)
	require.True(t, apperr.Is(err, apperr.KindUnauthorized))

	_, err = h.manager.AssignClient(ctx, "", c, nil)
	require.True(t, apperr.Is(err, apperr.KindUnauthenticated))

	require.Empty(t, h.auditActions(t, audit.ActionClientAssign))
}

func TestAssignClient_ClientState(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	acme := h.org(t, "acme", models.OrgSettings{})
	admin := h.staff(t, models.RoleAdmin, &acme)

	t.Run("missing", func(t *testing.T) {
		_, err := h.manager.AssignClient(ctx, admin.ExternalID, uuid.New(), nil)
		require.True(t, apperr.Is(err, apperr.KindNotFound))
	})

	t.Run("deleted", func(t *testing.T) {
		h.staff(t, models.RoleSupportWorker, &acme)
		id := h.client(t, acme, nil)
		c, err := h.stores.Clients.Get(ctx, id)
		require.NoError(t, err)
		c.Status = models.ClientStatusDeleted
		require.NoError(t, h.stores.Clients.Update(ctx, c, c.Version))

		_, err = h.manager.AssignClient(ctx, admin.ExternalID, id, nil)
		require.True(t, apperr.Is(err, apperr.KindValidation))
	})

	t.Run("no workers", func(t *testing.T) {
		empty := h.org(t, "empty", models.OrgSettings{})
		emptyAdmin := h.staff(t, models.RoleAdmin, &empty)
		id := h.client(t, empty, nil)
		_, err := h.manager.AssignClient(ctx, emptyAdmin.ExternalID, id, nil)
		require.True(t, apperr.Is(err, apperr.KindNoEligibleWorkers))
	})
}

func TestAssignClient_ConcurrentSameClient(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	acme := h.org(t, "acme", models.OrgSettings{})
	admin := h.staff(t, models.RoleAdmin, &acme)
	workers := []uuid.UUID{
		h.staff(t, models.RoleSupportWorker, &acme).ID,
		h.staff(t, models.RoleSupportWorker, &acme).ID,
	}
	c := h.client(t, acme, nil)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		changed int
	)
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := h.manager.AssignClient(ctx, admin.ExternalID, c, &workers[i%2])
			if err != nil {
				assert.True(t, apperr.Is(err, apperr.KindConflict), "unexpected error: %v", err)
				return
			}
			if !res.Unchanged {
				mu.Lock()
				changed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	stored, err := h.stores.Clients.Get(ctx, c)
	require.NoError(t, err)
	require.Equal(t, int64(1+changed), stored.Version)
	h.requireAssignmentInvariant(t)
}

func TestBulkAssign_Splits(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	acme := h.org(t, "acme", models.OrgSettings{})
	admin := h.staff(t, models.RoleAdmin, &acme)
	w1 := h.staff(t, models.RoleSupportWorker, &acme)
	w2 := h.staff(t, models.RoleSupportWorker, &acme)
	for range 3 {
		h.client(t, acme, nil)
	}

	res, err := h.manager.BulkAssign(ctx, admin.ExternalID, nil)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, 3, res.AssignedCount)
	require.Len(t, res.Assignments, 3)

	loads, err := h.stores.Clients.WorkerLoads(ctx, acme)
	require.NoError(t, err)
	require.Equal(t, 2, loads[w1.ID])
	require.Equal(t, 1, loads[w2.ID])

	entries := h.auditActions(t, audit.ActionClientBulkAssign)
	require.Len(t, entries, 3)
	batches := map[string]bool{}
	for _, e := range entries {
		var d map[string]any
		require.NoError(t, json.Unmarshal(e.Details, &d))
		batches[d["batch_id"].(string)] = true
	}
	require.Equal(t, map[string]bool{res.BatchID.String(): true}, batches)

	again, err := h.manager.BulkAssign(ctx, admin.ExternalID, nil)
	require.NoError(t, err)
	require.True(t, again.Success)
	require.Zero(t, again.AssignedCount)
	require.Equal(t, "no unassigned clients", again.Message)
	h.requireAssignmentInvariant(t)
}

func TestBulkAssign_Scope(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	acme := h.org(t, "acme", models.OrgSettings{})
	globex := h.org(t, "globex", models.OrgSettings{})
	super := h.staff(t, models.RoleSuperadmin, nil)
	admin := h.staff(t, models.RoleAdmin, &acme)
	h.staff(t, models.RoleSupportWorker, &globex)
	h.client(t, globex, nil)

	_, err := h.manager.BulkAssign(ctx, super.ExternalID, nil)
	require.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = h.manager.BulkAssign(ctx, admin.ExternalID, &globex)
	require.True(t, apperr.Is(err, apperr.KindUnauthorized))

	res, err := h.manager.BulkAssign(ctx, super.ExternalID, &globex)
	require.NoError(t, err)
	require.Equal(t, 1, res.AssignedCount)

	_, err = h.manager.BulkAssign(ctx, super.ExternalID, ptr(uuid.New()))
	require.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestBulkAssign_ConcurrentRunsAssignOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	acme := h.org(t, "acme", models.OrgSettings{})
	admin := h.staff(t, models.RoleAdmin, &acme)
	for range 3 {
		h.staff(t, models.RoleSupportWorker, &acme)
	}
	for range 20 {
		h.client(t, acme, nil)
	}

	var wg sync.WaitGroup
	counts := make([]int, 4)
	for i := range counts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := h.manager.BulkAssign(ctx, admin.ExternalID, nil)
			if assert.NoError(t, err) {
				counts[i] = res.AssignedCount
			}
		}()
	}
	wg.Wait()

	total := 0
	for _, n := range counts {
		total += n
	}
	require.Equal(t, 20, total)
	require.Len(t, h.auditActions(t, audit.ActionClientBulkAssign), 20)

	loads, err := h.stores.Clients.WorkerLoads(ctx, acme)
	require.NoError(t, err)
	var ls []int
	for _, l := range loads {
		ls = append(ls, l)
	}
	require.ElementsMatch(t, []int{7, 7, 6}, ls)
}

func (h *harness) setStaffStatus(t *testing.T, id uuid.UUID, status models.UserStatus) {
	t.Helper()
	ctx := context.Background()
	u, err := h.stores.Staff.Get(ctx, id)
	require.NoError(t, err)
	u.Status = status
	require.NoError(t, h.stores.Staff.Update(ctx, u, u.Version))
}

func TestAssignClient_AutoRetryIsIdempotent(t *testing.T) {
	tests := []struct {
		name string
		// setup returns the client and the worker every retry must settle on
		setup func(t *testing.T, h *harness, org uuid.UUID, w1, w2 *models.StaffUser) (uuid.UUID, uuid.UUID)
	}{
		{
			name: "unassigned with idle workers",
			setup: func(t *testing.T, h *harness, org uuid.UUID, w1, w2 *models.StaffUser) (uuid.UUID, uuid.UUID) {
				return h.client(t, org, nil), w1.ID
			},
		},
		{
			name: "current worker carries the most load",
			setup: func(t *testing.T, h *harness, org uuid.UUID, w1, w2 *models.StaffUser) (uuid.UUID, uuid.UUID) {
				for range 3 {
					h.client(t, org, &w1.ID)
				}
				return h.client(t, org, &w1.ID), w1.ID
			},
		},
		{
			name: "current worker suspended",
			setup: func(t *testing.T, h *harness, org uuid.UUID, w1, w2 *models.StaffUser) (uuid.UUID, uuid.UUID) {
				c := h.client(t, org, &w1.ID)
				h.setStaffStatus(t, w1.ID, models.UserStatusSuspended)
				return c, w2.ID
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			h := newHarness(t)
			acme := h.org(t, "acme", models.OrgSettings{})
			admin := h.staff(t, models.RoleAdmin, &acme)
			w1 := h.staff(t, models.RoleSupportWorker, &acme)
			w2 := h.staff(t, models.RoleSupportWorker, &acme)
			c, want := tt.setup(t, h, acme, w1, w2)

			var versions []int64
			for range 3 {
				res, err := h.manager.AssignClient(ctx, admin.ExternalID, c, nil)
				require.NoError(t, err)
				require.Equal(t, want, res.WorkerID)
				versions = append(versions, res.Version)
			}

			// only the first call may write
			require.Equal(t, versions[1], versions[0])
			require.Equal(t, versions[2], versions[0])

			stored, err := h.stores.Clients.Get(ctx, c)
			require.NoError(t, err)
			require.Equal(t, want, *stored.AssignedWorkerID)
			h.requireAssignmentInvariant(t)
		})
	}
}

func TestBulkAssign_ReplacesIneligibleWorker(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	acme := h.org(t, "acme", models.OrgSettings{})
	admin := h.staff(t, models.RoleAdmin, &acme)
	gone := h.staff(t, models.RoleSupportWorker, &acme)
	stays := h.staff(t, models.RoleSupportWorker, &acme)
	stranded := h.client(t, acme, &gone.ID)
	kept := h.client(t, acme, &stays.ID)
	h.setStaffStatus(t, gone.ID, models.UserStatusInactive)

	res, err := h.manager.BulkAssign(ctx, admin.ExternalID, nil)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, 1, res.AssignedCount)
	require.Equal(t, []workload.Assignment{{ClientID: stranded, WorkerID: stays.ID}}, res.Assignments)

	stored, err := h.stores.Clients.Get(ctx, kept)
	require.NoError(t, err)
	require.Equal(t, int64(1), stored.Version)

	entries := h.auditActions(t, audit.ActionClientBulkAssign)
	require.Len(t, entries, 1)
	var d map[string]any
	require.NoError(t, json.Unmarshal(entries[0].Details, &d))
	require.Equal(t, gone.ID.String(), d["previous_worker_id"])
	h.requireAssignmentInvariant(t)
}

func TestBulkAssign_PartialWhenCapacityRunsOut(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	acme := h.org(t, "acme", models.OrgSettings{MaxClientsPerWorker: 1})
	admin := h.staff(t, models.RoleAdmin, &acme)
	h.staff(t, models.RoleSupportWorker, &acme)
	h.staff(t, models.RoleSupportWorker, &acme)
	for range 3 {
		h.client(t, acme, nil)
	}

	res, err := h.manager.BulkAssign(ctx, admin.ExternalID, nil)
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, 2, res.AssignedCount)
	require.Len(t, res.Assignments, 2)
	require.NotEqual(t, uuid.Nil, res.BatchID)
	require.Contains(t, res.Message, "assigned 2 of 3 clients")

	unassigned, err := h.stores.Clients.List(ctx, store.ClientFilter{OrgID: &acme, Unassigned: true})
	require.NoError(t, err)
	require.Len(t, unassigned, 1)
	require.Len(t, h.auditActions(t, audit.ActionClientBulkAssign), 2)

	t.Run("no capacity at all", func(t *testing.T) {
		_, err := h.manager.BulkAssign(ctx, admin.ExternalID, nil)
		require.True(t, apperr.Is(err, apperr.KindNoEligibleWorkers))
	})
}
