package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfeidau/casekeeper/internal/models"
	"github.com/wolfeidau/casekeeper/internal/server"
)

type UsersCmd struct {
	List UsersListCmd `cmd:"" help:"List staff users"`
}

type UsersListCmd struct {
	ClientFlags `embed:""`

	OrgID          string `help:"Organization to list, defaults to your own"`
	Role           string `help:"Role to filter by (admin, team_leader, support_worker, ...)" default:""`
	IncludeDeleted bool   `help:"Include archived users"`
}

func (u *UsersListCmd) Run(ctx context.Context, globals *Globals) error {
	clients, err := u.clients(globals)
	if err != nil {
		return err
	}

	req := &server.ListUsersRequest{IncludeDeleted: u.IncludeDeleted}
	if req.OrgID, err = optionalUUID(u.OrgID); err != nil {
		return err
	}
	if u.Role != "" {
		role, err := models.ParseRole(u.Role)
		if err != nil {
			return err
		}
		req.Role = &role
	}

	resp, err := clients.Directory.ListUsers(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	if len(resp.Users) == 0 {
		fmt.Println("No users found.")
		return nil
	}

	fmt.Printf("%-36s %-16s %-10s %-30s %-36s\n", "User ID", "Role", "Status", "Email", "Organization")
	fmt.Println(strings.Repeat("─", 132))
	for _, user := range resp.Users {
		fmt.Printf("%-36s %-16s %-10s %-30s %-36s\n",
			user.ID,
			user.Role,
			user.Status,
			truncate(user.Email, 30),
			shortID(user.OrgID))
	}
	fmt.Printf("\nTotal users: %d\n", len(resp.Users))
	return nil
}
