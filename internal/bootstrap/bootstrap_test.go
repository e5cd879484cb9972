package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/casekeeper/internal/apperr"
	"github.com/wolfeidau/casekeeper/internal/audit"
	"github.com/wolfeidau/casekeeper/internal/auth"
	"github.com/wolfeidau/casekeeper/internal/models"
	"github.com/wolfeidau/casekeeper/internal/store"
	"github.com/wolfeidau/casekeeper/internal/store/memory"
)

func TestBootstrap(t *testing.T) {
	ctx := context.Background()
	stores := memory.NewStores()
	engine := auth.NewEngine(auth.NewResolver(stores.Staff, auth.ResolverConfig{}), auth.NewRegistryHolder(auth.DefaultRegistry()))
	cfg := Config{
		Staff:    stores.Staff,
		Recorder: audit.NewRecorder(stores.Audit, engine),
		Superadmin: Superadmin{
			ExternalID: "root",
			Email:      "root@example.com",
			Name:       "Root",
		},
	}

	first, err := Bootstrap(ctx, cfg)
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, models.RoleSuperadmin, first.User.Role)
	assert.Nil(t, first.User.OrgID)

	second, err := Bootstrap(ctx, cfg)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.User.ID, second.User.ID)

	users, err := stores.Staff.List(ctx, store.UserFilter{Roles: []models.Role{models.RoleSuperadmin}})
	require.NoError(t, err)
	assert.Len(t, users, 1)

	entries, err := stores.Audit.List(ctx, store.AuditFilter{Action: audit.ActionSuperadminBootstrap})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, first.User.ID.String(), entries[0].EntityID)
}

func TestBootstrap_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "missing external id", cfg: Config{Staff: memory.NewStaffStore(), Superadmin: Superadmin{Email: "root@example.com", Name: "Root"}}},
		{name: "bad email", cfg: Config{Staff: memory.NewStaffStore(), Superadmin: Superadmin{ExternalID: "root", Email: "nope", Name: "Root"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Bootstrap(context.Background(), tt.cfg)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindValidation))
		})
	}

	_, err := Bootstrap(context.Background(), Config{})
	require.Error(t, err)
}
