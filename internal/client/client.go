package client

import (
	"context"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/wolfeidau/casekeeper/internal/server"
)

// Config holds common client configuration
type Config struct {
	ServerURL string
	Timeout   time.Duration
	Debug     bool
}

// Clients holds the typed RPC clients
type Clients struct {
	Directory  *DirectoryClient
	Assignment *AssignmentClient
	Audit      *AuditClient
}

// NewClients creates JSON Connect clients for every service. Extra options,
// such as an auth interceptor, are applied to each client.
func NewClients(config Config, opts ...connect.ClientOption) *Clients {
	httpClient := &http.Client{
		Timeout: config.Timeout,
	}
	baseURL := strings.TrimRight(config.ServerURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(server.Codec{})}, opts...)

	return &Clients{
		Directory:  newDirectoryClient(httpClient, baseURL, opts),
		Assignment: newAssignmentClient(httpClient, baseURL, opts),
		Audit:      newAuditClient(httpClient, baseURL, opts),
	}
}

// DefaultConfig returns a default client configuration
func DefaultConfig() Config {
	return Config{
		ServerURL: "http://localhost:8443",
		Timeout:   time.Minute,
		Debug:     false,
	}
}

func newUnary[Req, Res any](httpClient connect.HTTPClient, baseURL, procedure string, opts []connect.ClientOption) *connect.Client[Req, Res] {
	return connect.NewClient[Req, Res](httpClient, baseURL+procedure, opts...)
}

func call[Req, Res any](ctx context.Context, c *connect.Client[Req, Res], req *Req) (*Res, error) {
	resp, err := c.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}
