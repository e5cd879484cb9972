package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/wolfeidau/casekeeper/internal/server"
)

type AssignCmd struct {
	ClientFlags `embed:""`

	ClientID string `arg:"" help:"Client to assign"`
	Worker   string `help:"Worker to assign to, the least loaded worker when empty"`
}

func (a *AssignCmd) Run(ctx context.Context, globals *Globals) error {
	clients, err := a.clients(globals)
	if err != nil {
		return err
	}

	clientID, err := uuid.Parse(a.ClientID)
	if err != nil {
		return fmt.Errorf("invalid client id %q: %w", a.ClientID, err)
	}
	workerID, err := optionalUUID(a.Worker)
	if err != nil {
		return err
	}

	res, err := clients.Assignment.AssignClient(ctx, &server.AssignClientRequest{ClientID: clientID, WorkerID: workerID})
	if err != nil {
		return fmt.Errorf("failed to assign client: %w", err)
	}

	if res.Unchanged {
		fmt.Printf("Client %s is already assigned to %s\n", res.ClientID, res.WorkerID)
		return nil
	}
	fmt.Printf("Client %s assigned to %s (previous: %s)\n", res.ClientID, res.WorkerID, shortID(res.PreviousWorkerID))
	return nil
}

type BulkAssignCmd struct {
	ClientFlags `embed:""`

	OrgID string `help:"Organization to balance, required for superadmins"`
}

func (b *BulkAssignCmd) Run(ctx context.Context, globals *Globals) error {
	clients, err := b.clients(globals)
	if err != nil {
		return err
	}

	orgID, err := optionalUUID(b.OrgID)
	if err != nil {
		return err
	}

	res, err := clients.Assignment.BulkAssign(ctx, &server.BulkAssignRequest{OrgID: orgID})
	if err != nil {
		return fmt.Errorf("failed to bulk assign: %w", err)
	}

	fmt.Println(res.Message)
	for _, a := range res.Assignments {
		fmt.Printf("  %s -> %s\n", a.ClientID, a.WorkerID)
	}
	if res.BatchID != uuid.Nil {
		fmt.Printf("Batch: %s\n", res.BatchID)
	}
	if !res.Success {
		return fmt.Errorf("bulk assignment incomplete: %s", res.Message)
	}
	return nil
}
