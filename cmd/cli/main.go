package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/casekeeper/cmd/cli/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Token      commands.TokenCmd      `cmd:"" help:"Generate a JWT token"`
		Keygen     commands.KeygenCmd     `cmd:"" help:"Generate an ES256 signing key pair"`
		Users      commands.UsersCmd      `cmd:"" help:"Manage staff users"`
		Workload   commands.WorkloadCmd   `cmd:"" help:"Show worker caseloads"`
		Assign     commands.AssignCmd     `cmd:"" help:"Assign a client to a worker"`
		BulkAssign commands.BulkAssignCmd `cmd:"" name:"bulk-assign" help:"Assign every unassigned client in an organization"`
		Audit      commands.AuditCmd      `cmd:"" help:"Read the audit log"`
		Debug      bool                   `help:"Enable debug mode."`
		Version    kong.VersionFlag
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
