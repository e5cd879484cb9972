package client

import (
	"context"

	"connectrpc.com/connect"
	"github.com/wolfeidau/casekeeper/internal/server"
)

// DirectoryClient calls casekeeper.v1.DirectoryService.
type DirectoryClient struct {
	getUser               *connect.Client[server.GetUserRequest, server.UserResponse]
	listUsers             *connect.Client[server.ListUsersRequest, server.ListUsersResponse]
	createUser            *connect.Client[server.CreateUserRequest, server.UserResponse]
	updateUser            *connect.Client[server.UpdateUserRequest, server.UserResponse]
	archiveUser           *connect.Client[server.ArchiveUserRequest, server.UserResponse]
	createOrganization    *connect.Client[server.CreateOrganizationRequest, server.OrganizationResponse]
	getOrganization       *connect.Client[server.GetOrganizationRequest, server.OrganizationResponse]
	updateOrganization    *connect.Client[server.UpdateOrganizationRequest, server.OrganizationResponse]
	listOrganizations     *connect.Client[server.ListOrganizationsRequest, server.ListOrganizationsResponse]
	deleteOrganization    *connect.Client[server.DeleteOrganizationRequest, server.Empty]
	createClient          *connect.Client[server.CreateClientRequest, server.ClientResponse]
	getClient             *connect.Client[server.GetClientRequest, server.ClientResponse]
	listClients           *connect.Client[server.ListClientsRequest, server.ListClientsResponse]
	updateClient          *connect.Client[server.UpdateClientRequest, server.ClientResponse]
	listRoles             *connect.Client[server.ListRolesRequest, server.ListRolesResponse]
	updateRolePermissions *connect.Client[server.UpdateRolePermissionsRequest, server.RoleResponse]
	getWorkerLoad         *connect.Client[server.GetWorkerLoadRequest, server.GetWorkerLoadResponse]
}

func newDirectoryClient(httpClient connect.HTTPClient, baseURL string, opts []connect.ClientOption) *DirectoryClient {
	return &DirectoryClient{
		getUser:               newUnary[server.GetUserRequest, server.UserResponse](httpClient, baseURL, server.DirectoryServiceGetUserProcedure, opts),
		listUsers:             newUnary[server.ListUsersRequest, server.ListUsersResponse](httpClient, baseURL, server.DirectoryServiceListUsersProcedure, opts),
		createUser:            newUnary[server.CreateUserRequest, server.UserResponse](httpClient, baseURL, server.DirectoryServiceCreateUserProcedure, opts),
		updateUser:            newUnary[server.UpdateUserRequest, server.UserResponse](httpClient, baseURL, server.DirectoryServiceUpdateUserProcedure, opts),
		archiveUser:           newUnary[server.ArchiveUserRequest, server.UserResponse](httpClient, baseURL, server.DirectoryServiceArchiveUserProcedure, opts),
		createOrganization:    newUnary[server.CreateOrganizationRequest, server.OrganizationResponse](httpClient, baseURL, server.DirectoryServiceCreateOrganizationProcedure, opts),
		getOrganization:       newUnary[server.GetOrganizationRequest, server.OrganizationResponse](httpClient, baseURL, server.DirectoryServiceGetOrganizationProcedure, opts),
		updateOrganization:    newUnary[server.UpdateOrganizationRequest, server.OrganizationResponse](httpClient, baseURL, server.DirectoryServiceUpdateOrganizationProcedure, opts),
		listOrganizations:     newUnary[server.ListOrganizationsRequest, server.ListOrganizationsResponse](httpClient, baseURL, server.DirectoryServiceListOrganizationsProcedure, opts),
		deleteOrganization:    newUnary[server.DeleteOrganizationRequest, server.Empty](httpClient, baseURL, server.DirectoryServiceDeleteOrganizationProcedure, opts),
		createClient:          newUnary[server.CreateClientRequest, server.ClientResponse](httpClient, baseURL, server.DirectoryServiceCreateClientProcedure, opts),
		getClient:             newUnary[server.GetClientRequest, server.ClientResponse](httpClient, baseURL, server.DirectoryServiceGetClientProcedure, opts),
		listClients:           newUnary[server.ListClientsRequest, server.ListClientsResponse](httpClient, baseURL, server.DirectoryServiceListClientsProcedure, opts),
		updateClient:          newUnary[server.UpdateClientRequest, server.ClientResponse](httpClient, baseURL, server.DirectoryServiceUpdateClientProcedure, opts),
		listRoles:             newUnary[server.ListRolesRequest, server.ListRolesResponse](httpClient, baseURL, server.DirectoryServiceListRolesProcedure, opts),
		updateRolePermissions: newUnary[server.UpdateRolePermissionsRequest, server.RoleResponse](httpClient, baseURL, server.DirectoryServiceUpdateRolePermissionsProcedure, opts),
		getWorkerLoad:         newUnary[server.GetWorkerLoadRequest, server.GetWorkerLoadResponse](httpClient, baseURL, server.DirectoryServiceGetWorkerLoadProcedure, opts),
	}
}

func (c *DirectoryClient) GetUser(ctx context.Context, req *server.GetUserRequest) (*server.UserResponse, error) {
	return call(ctx, c.getUser, req)
}

func (c *DirectoryClient) ListUsers(ctx context.Context, req *server.ListUsersRequest) (*server.ListUsersResponse, error) {
	return call(ctx, c.listUsers, req)
}

func (c *DirectoryClient) CreateUser(ctx context.Context, req *server.CreateUserRequest) (*server.UserResponse, error) {
	return call(ctx, c.createUser, req)
}

func (c *DirectoryClient) UpdateUser(ctx context.Context, req *server.UpdateUserRequest) (*server.UserResponse, error) {
	return call(ctx, c.updateUser, req)
}

func (c *DirectoryClient) ArchiveUser(ctx context.Context, req *server.ArchiveUserRequest) (*server.UserResponse, error) {
	return call(ctx, c.archiveUser, req)
}

func (c *DirectoryClient) CreateOrganization(ctx context.Context, req *server.CreateOrganizationRequest) (*server.OrganizationResponse, error) {
	return call(ctx, c.createOrganization, req)
}

func (c *DirectoryClient) GetOrganization(ctx context.Context, req *server.GetOrganizationRequest) (*server.OrganizationResponse, error) {
	return call(ctx, c.getOrganization, req)
}

func (c *DirectoryClient) UpdateOrganization(ctx context.Context, req *server.UpdateOrganizationRequest) (*server.OrganizationResponse, error) {
	return call(ctx, c.updateOrganization, req)
}

func (c *DirectoryClient) ListOrganizations(ctx context.Context, req *server.ListOrganizationsRequest) (*server.ListOrganizationsResponse, error) {
	return call(ctx, c.listOrganizations, req)
}

func (c *DirectoryClient) DeleteOrganization(ctx context.Context, req *server.DeleteOrganizationRequest) error {
	_, err := call(ctx, c.deleteOrganization, req)
	return err
}

func (c *DirectoryClient) CreateClient(ctx context.Context, req *server.CreateClientRequest) (*server.ClientResponse, error) {
	return call(ctx, c.createClient, req)
}

func (c *DirectoryClient) GetClient(ctx context.Context, req *server.GetClientRequest) (*server.ClientResponse, error) {
	return call(ctx, c.getClient, req)
}

func (c *DirectoryClient) ListClients(ctx context.Context, req *server.ListClientsRequest) (*server.ListClientsResponse, error) {
	return call(ctx, c.listClients, req)
}

func (c *DirectoryClient) UpdateClient(ctx context.Context, req *server.UpdateClientRequest) (*server.ClientResponse, error) {
	return call(ctx, c.updateClient, req)
}

func (c *DirectoryClient) ListRoles(ctx context.Context) (*server.ListRolesResponse, error) {
	return call(ctx, c.listRoles, &server.ListRolesRequest{})
}

func (c *DirectoryClient) UpdateRolePermissions(ctx context.Context, req *server.UpdateRolePermissionsRequest) (*server.RoleResponse, error) {
	return call(ctx, c.updateRolePermissions, req)
}

func (c *DirectoryClient) GetWorkerLoad(ctx context.Context, req *server.GetWorkerLoadRequest) (*server.GetWorkerLoadResponse, error) {
	return call(ctx, c.getWorkerLoad, req)
}
