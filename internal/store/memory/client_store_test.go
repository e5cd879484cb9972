package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/casekeeper/internal/models"
	"github.com/wolfeidau/casekeeper/internal/store"
)

func newClient(orgID uuid.UUID, worker *uuid.UUID, status models.ClientStatus) *models.Client {
	now := time.Now()
	return &models.Client{
		ID:               uuid.New(),
		OrgID:            orgID,
		AssignedWorkerID: worker,
		Status:           status,
		RiskLevel:        models.RiskLow,
		Name:             "client",
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func TestMemoryClientStore_WorkerLoads(t *testing.T) {
	ctx := context.Background()
	st := NewClientStore()
	org := uuid.New()
	other := uuid.New()
	w1 := uuid.New()
	w2 := uuid.New()

	for _, c := range []*models.Client{
		newClient(org, &w1, models.ClientStatusActive),
		newClient(org, &w1, models.ClientStatusActive),
		newClient(org, &w1, models.ClientStatusInactive),
		newClient(org, &w2, models.ClientStatusActive),
		newClient(org, &w2, models.ClientStatusDeleted),
		newClient(org, nil, models.ClientStatusActive),
		newClient(other, &w1, models.ClientStatusActive),
	} {
		require.NoError(t, st.Create(ctx, c))
	}

	loads, err := st.WorkerLoads(ctx, org)
	require.NoError(t, err)
	require.Equal(t, map[uuid.UUID]int{w1: 2, w2: 1}, loads)
}

func TestMemoryClientStore_List(t *testing.T) {
	ctx := context.Background()
	st := NewClientStore()
	org := uuid.New()
	w := uuid.New()

	unassigned := newClient(org, nil, models.ClientStatusActive)
	assigned := newClient(org, &w, models.ClientStatusActive)
	inactive := newClient(org, nil, models.ClientStatusInactive)
	for _, c := range []*models.Client{unassigned, assigned, inactive} {
		require.NoError(t, st.Create(ctx, c))
	}

	got, err := st.List(ctx, store.ClientFilter{
		OrgID:      &org,
		Unassigned: true,
		Statuses:   []models.ClientStatus{models.ClientStatusActive},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, unassigned.ID, got[0].ID)

	got, err = st.List(ctx, store.ClientFilter{AssignedWorkerID: &w})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, assigned.ID, got[0].ID)
}

func TestMemoryClientStore_EmailScope(t *testing.T) {
	ctx := context.Background()
	st := NewClientStore()
	orgA := uuid.New()
	orgB := uuid.New()

	a := newClient(orgA, nil, models.ClientStatusActive)
	a.Email = "client@example.com"
	require.NoError(t, st.Create(ctx, a))

	sameOrg := newClient(orgA, nil, models.ClientStatusActive)
	sameOrg.Email = "client@example.com"
	require.ErrorIs(t, st.Create(ctx, sameOrg), store.ErrClientEmailTaken)

	otherOrg := newClient(orgB, nil, models.ClientStatusActive)
	otherOrg.Email = "client@example.com"
	require.NoError(t, st.Create(ctx, otherOrg))
}

func TestMemoryClientStore_UpdateConflict(t *testing.T) {
	ctx := context.Background()
	st := NewClientStore()
	c := newClient(uuid.New(), nil, models.ClientStatusActive)
	require.NoError(t, st.Create(ctx, c))

	w := uuid.New()
	first := *c
	first.AssignedWorkerID = &w
	require.NoError(t, st.Update(ctx, &first, 1))

	second := *c
	require.ErrorIs(t, st.Update(ctx, &second, 1), store.ErrVersionConflict)
}

func auditEntry(action string, org *uuid.UUID) *models.AuditEntry {
	return &models.AuditEntry{
		ID:         uuid.New(),
		ActorID:    "actor",
		Action:     action,
		EntityType: models.EntityClient,
		EntityID:   uuid.NewString(),
		OrgID:      org,
		Timestamp:  time.Now(),
	}
}
