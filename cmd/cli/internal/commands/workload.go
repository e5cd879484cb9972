package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfeidau/casekeeper/internal/server"
)

type WorkloadCmd struct {
	ClientFlags `embed:""`

	OrgID string `help:"Organization to report on, required for superadmins"`
}

func (w *WorkloadCmd) Run(ctx context.Context, globals *Globals) error {
	clients, err := w.clients(globals)
	if err != nil {
		return err
	}

	orgID, err := optionalUUID(w.OrgID)
	if err != nil {
		return err
	}

	resp, err := clients.Directory.GetWorkerLoad(ctx, &server.GetWorkerLoadRequest{OrgID: orgID})
	if err != nil {
		return fmt.Errorf("failed to get worker load: %w", err)
	}

	if len(resp.Workers) == 0 {
		fmt.Println("No eligible workers.")
		return nil
	}

	fmt.Printf("%-36s %-16s %-25s %6s\n", "Worker ID", "Role", "Name", "Load")
	fmt.Println(strings.Repeat("─", 86))
	total := 0
	for _, worker := range resp.Workers {
		fmt.Printf("%-36s %-16s %-25s %6d\n", worker.WorkerID, worker.Role, truncate(worker.Name, 25), worker.Load)
		total += worker.Load
	}
	fmt.Printf("\nWorkers: %d, active clients assigned: %d\n", len(resp.Workers), total)
	return nil
}
