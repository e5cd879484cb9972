package commands

import (
	"fmt"
	"os"
	"time"

	"connectrpc.com/connect"
	"connectrpc.com/otelconnect"
	"github.com/google/uuid"
	"github.com/wolfeidau/casekeeper/internal/client"
)

type Globals struct {
	Debug   bool
	Version string
}

// ClientFlags are shared by every command that calls the API.
type ClientFlags struct {
	Server     string        `help:"Server URL" default:"http://localhost:8443" env:"CASEKEEPER_SERVER"`
	Subject    string        `help:"Subject identifier to act as" required:"" env:"CASEKEEPER_SUBJECT"`
	SigningKey string        `help:"path to the PEM encoded ES256 signing key, sends X-Subject-ID when empty" env:"CASEKEEPER_SIGNING_KEY"`
	Timeout    time.Duration `help:"Request timeout" default:"30s"`
}

func (f *ClientFlags) clients(globals *Globals) (*client.Clients, error) {
	otelInterceptor, err := otelconnect.NewInterceptor()
	if err != nil {
		return nil, fmt.Errorf("failed to create interceptor: %w", err)
	}

	authInterceptor := client.NewSubjectInterceptor(f.Subject)
	if f.SigningKey != "" {
		pem, err := os.ReadFile(f.SigningKey)
		if err != nil {
			return nil, fmt.Errorf("failed to read signing key: %w", err)
		}
		authInterceptor = client.NewBearerInterceptor(string(pem), f.Subject)
	}

	config := client.Config{
		ServerURL: f.Server,
		Timeout:   f.Timeout,
		Debug:     globals.Debug,
	}
	return client.NewClients(config, connect.WithInterceptors(otelInterceptor, authInterceptor)), nil
}

func optionalUUID(s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return &id, nil
}

func shortID(id *uuid.UUID) string {
	if id == nil {
		return "-"
	}
	return id.String()
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}
