package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/casekeeper/cmd/server/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Debug     bool `help:"Enable debug mode."`
		Version   kong.VersionFlag
		Serve     commands.ServeCmd     `cmd:"" help:"Start the API server"`
		Migrate   commands.MigrateCmd   `cmd:"" help:"Apply PostgreSQL migrations"`
		Bootstrap commands.BootstrapCmd `cmd:"" help:"Create the initial superadmin if none exists"`
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
