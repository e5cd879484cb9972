package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/wolfeidau/casekeeper/internal/auth"
)

type TokenCmd struct {
	Subject    string        `help:"Subject identifier" required:""`
	TTL        time.Duration `help:"Token lifetime" default:"1h"`
	SigningKey string        `help:"path to the PEM encoded ES256 signing key" required:"" env:"CASEKEEPER_SIGNING_KEY"`
}

func (t *TokenCmd) Run(ctx context.Context) error {
	pem, err := os.ReadFile(t.SigningKey)
	if err != nil {
		return fmt.Errorf("failed to read signing key: %w", err)
	}

	token, err := auth.IssueToken(string(pem), t.Subject, t.TTL)
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}
