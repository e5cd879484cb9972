package client

import (
	"context"

	"connectrpc.com/connect"
	"github.com/wolfeidau/casekeeper/internal/server"
)

// AssignmentClient calls casekeeper.v1.AssignmentService.
type AssignmentClient struct {
	assignClient      *connect.Client[server.AssignClientRequest, server.AssignClientResponse]
	bulkAssign        *connect.Client[server.BulkAssignRequest, server.BulkAssignResponse]
	createAppointment *connect.Client[server.CreateAppointmentRequest, server.AppointmentResponse]
	listAppointments  *connect.Client[server.ListAppointmentsRequest, server.ListAppointmentsResponse]
}

func newAssignmentClient(httpClient connect.HTTPClient, baseURL string, opts []connect.ClientOption) *AssignmentClient {
	return &AssignmentClient{
		assignClient:      newUnary[server.AssignClientRequest, server.AssignClientResponse](httpClient, baseURL, server.AssignmentServiceAssignClientProcedure, opts),
		bulkAssign:        newUnary[server.BulkAssignRequest, server.BulkAssignResponse](httpClient, baseURL, server.AssignmentServiceBulkAssignProcedure, opts),
		createAppointment: newUnary[server.CreateAppointmentRequest, server.AppointmentResponse](httpClient, baseURL, server.AssignmentServiceCreateAppointmentProcedure, opts),
		listAppointments:  newUnary[server.ListAppointmentsRequest, server.ListAppointmentsResponse](httpClient, baseURL, server.AssignmentServiceListAppointmentsProcedure, opts),
	}
}

func (c *AssignmentClient) AssignClient(ctx context.Context, req *server.AssignClientRequest) (*server.AssignClientResponse, error) {
	return call(ctx, c.assignClient, req)
}

func (c *AssignmentClient) BulkAssign(ctx context.Context, req *server.BulkAssignRequest) (*server.BulkAssignResponse, error) {
	return call(ctx, c.bulkAssign, req)
}

func (c *AssignmentClient) CreateAppointment(ctx context.Context, req *server.CreateAppointmentRequest) (*server.AppointmentResponse, error) {
	return call(ctx, c.createAppointment, req)
}

func (c *AssignmentClient) ListAppointments(ctx context.Context, req *server.ListAppointmentsRequest) (*server.ListAppointmentsResponse, error) {
	return call(ctx, c.listAppointments, req)
}
