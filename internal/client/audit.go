package client

import (
	"context"

	"connectrpc.com/connect"
	"github.com/wolfeidau/casekeeper/internal/server"
)

// AuditClient calls casekeeper.v1.AuditService.
type AuditClient struct {
	listAuditLogs   *connect.Client[server.ListAuditLogsRequest, server.ListAuditLogsResponse]
	exportAuditLogs *connect.Client[server.ExportAuditLogsRequest, server.ExportAuditLogsResponse]
}

func newAuditClient(httpClient connect.HTTPClient, baseURL string, opts []connect.ClientOption) *AuditClient {
	return &AuditClient{
		listAuditLogs:   newUnary[server.ListAuditLogsRequest, server.ListAuditLogsResponse](httpClient, baseURL, server.AuditServiceListAuditLogsProcedure, opts),
		exportAuditLogs: newUnary[server.ExportAuditLogsRequest, server.ExportAuditLogsResponse](httpClient, baseURL, server.AuditServiceExportAuditLogsProcedure, opts),
	}
}

func (c *AuditClient) ListAuditLogs(ctx context.Context, req *server.ListAuditLogsRequest) (*server.ListAuditLogsResponse, error) {
	return call(ctx, c.listAuditLogs, req)
}

func (c *AuditClient) ExportAuditLogs(ctx context.Context, req *server.ExportAuditLogsRequest) (*server.ExportAuditLogsResponse, error) {
	return call(ctx, c.exportAuditLogs, req)
}
