package server

import (
	"github.com/google/uuid"
	"github.com/wolfeidau/casekeeper/internal/assignment"
	"github.com/wolfeidau/casekeeper/internal/audit"
	"github.com/wolfeidau/casekeeper/internal/directory"
	"github.com/wolfeidau/casekeeper/internal/models"
	"github.com/wolfeidau/casekeeper/internal/workload"
)

// Empty is the response of procedures that return nothing.
type Empty struct{}

// Directory messages.
type (
	GetUserRequest struct {
		// UserID defaults to the caller.
		UserID *uuid.UUID `json:"user_id,omitempty"`
	}
	ListUsersRequest  = directory.UserQuery
	CreateUserRequest = directory.CreateUserInput
	UpdateUserRequest struct {
		UserID uuid.UUID `json:"user_id"`
		directory.UpdateUserInput
	}
	ArchiveUserRequest struct {
		UserID uuid.UUID `json:"user_id"`
	}
	UserResponse struct {
		User *models.StaffUser `json:"user"`
	}
	ListUsersResponse struct {
		Users []*models.StaffUser `json:"users"`
	}

	CreateOrganizationRequest = directory.CreateOrganizationInput
	GetOrganizationRequest    struct {
		OrgID uuid.UUID `json:"org_id"`
	}
	UpdateOrganizationRequest struct {
		OrgID uuid.UUID `json:"org_id"`
		directory.UpdateOrganizationInput
	}
	ListOrganizationsRequest struct {
		Status *models.OrgStatus `json:"status,omitempty"`
	}
	DeleteOrganizationRequest struct {
		OrgID uuid.UUID `json:"org_id"`
	}
	OrganizationResponse struct {
		Organization *models.Organization `json:"organization"`
	}
	ListOrganizationsResponse struct {
		Organizations []*models.Organization `json:"organizations"`
	}

	CreateClientRequest = directory.CreateClientInput
	GetClientRequest    struct {
		ClientID uuid.UUID `json:"client_id"`
	}
	ListClientsRequest  = directory.ClientQuery
	UpdateClientRequest struct {
		ClientID uuid.UUID `json:"client_id"`
		directory.UpdateClientInput
	}
	ClientResponse struct {
		Client *models.Client `json:"client"`
	}
	ListClientsResponse struct {
		Clients []*models.Client `json:"clients"`
	}

	ListRolesRequest  struct{}
	ListRolesResponse struct {
		Roles []directory.RoleInfo `json:"roles"`
	}
	UpdateRolePermissionsRequest struct {
		Role        string   `json:"role"`
		Permissions []string `json:"permissions"`
	}
	RoleResponse struct {
		Role *directory.RoleInfo `json:"role"`
	}

	GetWorkerLoadRequest struct {
		OrgID *uuid.UUID `json:"org_id,omitempty"`
	}
	GetWorkerLoadResponse struct {
		Workers []workload.WorkerLoad `json:"workers"`
	}
)

// Assignment messages.
type (
	AssignClientRequest struct {
		ClientID uuid.UUID  `json:"client_id"`
		WorkerID *uuid.UUID `json:"worker_id,omitempty"`
	}
	AssignClientResponse = assignment.AssignResult

	BulkAssignRequest struct {
		OrgID *uuid.UUID `json:"org_id,omitempty"`
	}
	BulkAssignResponse = assignment.BulkResult

	CreateAppointmentRequest = assignment.AppointmentInput
	AppointmentResponse      struct {
		Appointment *models.Appointment `json:"appointment"`
	}
	ListAppointmentsRequest  = assignment.AppointmentQuery
	ListAppointmentsResponse struct {
		Appointments []*models.Appointment `json:"appointments"`
	}
)

// Audit messages.
type (
	ListAuditLogsRequest  = audit.Query
	ListAuditLogsResponse struct {
		Entries []*models.AuditEntry `json:"entries"`
	}
	ExportAuditLogsRequest struct {
		audit.Query
		Format   audit.ExportFormat `json:"format,omitempty"`
		Compress bool               `json:"compress,omitempty"`
	}
	ExportAuditLogsResponse struct {
		Format     audit.ExportFormat `json:"format"`
		Compressed bool               `json:"compressed"`
		Count      int                `json:"count"`
		Data       []byte             `json:"data"`
	}
)
