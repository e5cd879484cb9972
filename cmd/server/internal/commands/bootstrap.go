package commands

import (
	"context"

	"github.com/wolfeidau/casekeeper/internal/audit"
	"github.com/wolfeidau/casekeeper/internal/auth"
	"github.com/wolfeidau/casekeeper/internal/bootstrap"
	"github.com/wolfeidau/casekeeper/internal/logger"
)

type BootstrapCmd struct {
	ExternalID string `help:"identity provider subject of the superadmin" required:"" env:"CASEKEEPER_SUPERADMIN_SUBJECT"`
	Email      string `help:"superadmin email" required:"" env:"CASEKEEPER_SUPERADMIN_EMAIL"`
	Name       string `help:"superadmin display name" default:"Superadmin" env:"CASEKEEPER_SUPERADMIN_NAME"`

	Store StoreFlags `embed:""`
}

func (c *BootstrapCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	stores, closeStores, err := c.Store.openStores(ctx)
	if err != nil {
		return err
	}
	defer closeStores()

	engine := auth.NewEngine(auth.NewResolver(stores.Staff, auth.ResolverConfig{}), auth.NewRegistryHolder(auth.DefaultRegistry()))

	res, err := bootstrap.Bootstrap(ctx, bootstrap.Config{
		Staff:    stores.Staff,
		Recorder: audit.NewRecorder(stores.Audit, engine),
		Superadmin: bootstrap.Superadmin{
			ExternalID: c.ExternalID,
			Email:      c.Email,
			Name:       c.Name,
		},
	})
	if err != nil {
		return err
	}

	log.Info().
		Bool("created", res.Created).
		Str("user_id", res.User.ID.String()).
		Str("external_id", res.User.ExternalID).
		Msg("Bootstrap finished")
	return nil
}
