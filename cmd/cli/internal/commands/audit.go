package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/wolfeidau/casekeeper/internal/audit"
	"github.com/wolfeidau/casekeeper/internal/server"
)

type AuditCmd struct {
	List   AuditListCmd   `cmd:"" help:"List audit log entries, newest first"`
	Export AuditExportCmd `cmd:"" help:"Export audit log entries"`
}

// AuditFilterFlags select entries for both list and export.
type AuditFilterFlags struct {
	OrgID      string        `help:"Organization to read, defaults to your own"`
	Actor      string        `help:"Actor user id"`
	Action     string        `help:"Action, e.g. client.assign"`
	EntityType string        `help:"Entity type (user, client, organization, appointment, role)"`
	EntityID   string        `help:"Entity id"`
	Since      time.Duration `help:"Only entries newer than this, e.g. 24h"`
}

func (f *AuditFilterFlags) query() (audit.Query, error) {
	orgID, err := optionalUUID(f.OrgID)
	if err != nil {
		return audit.Query{}, err
	}
	q := audit.Query{
		ActorID:    f.Actor,
		Action:     f.Action,
		EntityType: f.EntityType,
		EntityID:   f.EntityID,
		OrgID:      orgID,
	}
	if f.Since > 0 {
		q.Since = time.Now().Add(-f.Since)
	}
	return q, nil
}

type AuditListCmd struct {
	ClientFlags      `embed:""`
	AuditFilterFlags `embed:""`

	Limit  int `help:"Entries per page" default:"50"`
	Offset int `help:"Entries to skip" default:"0"`
}

func (a *AuditListCmd) Run(ctx context.Context, globals *Globals) error {
	clients, err := a.clients(globals)
	if err != nil {
		return err
	}

	q, err := a.query()
	if err != nil {
		return err
	}
	q.Limit, q.Offset = a.Limit, a.Offset

	resp, err := clients.Audit.ListAuditLogs(ctx, &q)
	if err != nil {
		return fmt.Errorf("failed to list audit logs: %w", err)
	}

	if len(resp.Entries) == 0 {
		fmt.Println("No audit entries found.")
		return nil
	}

	fmt.Printf("%-20s %-26s %-14s %-36s %-36s\n", "Time", "Action", "Entity", "Entity ID", "Actor")
	fmt.Println(strings.Repeat("─", 136))
	for _, e := range resp.Entries {
		fmt.Printf("%-20s %-26s %-14s %-36s %-36s\n",
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			truncate(e.Action, 26),
			e.EntityType,
			truncate(e.EntityID, 36),
			truncate(e.ActorID, 36))
	}
	if len(resp.Entries) == a.Limit {
		fmt.Printf("\nUse --offset=%d to see the next page\n", a.Offset+a.Limit)
	}
	return nil
}

type AuditExportCmd struct {
	ClientFlags      `embed:""`
	AuditFilterFlags `embed:""`

	Format   string `help:"Export format" default:"ndjson" enum:"json,ndjson,csv"`
	Compress bool   `help:"zstd compress the export"`
	Output   string `help:"File to write, stdout when empty" short:"o"`
}

func (a *AuditExportCmd) Run(ctx context.Context, globals *Globals) error {
	clients, err := a.clients(globals)
	if err != nil {
		return err
	}

	q, err := a.query()
	if err != nil {
		return err
	}

	resp, err := clients.Audit.ExportAuditLogs(ctx, &server.ExportAuditLogsRequest{
		Query:    q,
		Format:   audit.ExportFormat(a.Format),
		Compress: a.Compress,
	})
	if err != nil {
		return fmt.Errorf("failed to export audit logs: %w", err)
	}

	if a.Output == "" {
		_, err = os.Stdout.Write(resp.Data)
		return err
	}
	if err := os.WriteFile(a.Output, resp.Data, 0o600); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Exported %d entries to %s\n", resp.Count, a.Output)
	return nil
}
