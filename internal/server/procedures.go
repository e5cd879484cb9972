package server

// Fully-qualified service names.
const (
	DirectoryServiceName  = "casekeeper.v1.DirectoryService"
	AssignmentServiceName = "casekeeper.v1.AssignmentService"
	AuditServiceName      = "casekeeper.v1.AuditService"
)

// Procedure paths, one per RPC.
const (
	DirectoryServiceGetUserProcedure               = "/" + DirectoryServiceName + "/GetUser"
	DirectoryServiceListUsersProcedure             = "/" + DirectoryServiceName + "/ListUsers"
	DirectoryServiceCreateUserProcedure            = "/" + DirectoryServiceName + "/CreateUser"
	DirectoryServiceUpdateUserProcedure            = "/" + DirectoryServiceName + "/UpdateUser"
	DirectoryServiceArchiveUserProcedure           = "/" + DirectoryServiceName + "/ArchiveUser"
	DirectoryServiceCreateOrganizationProcedure    = "/" + DirectoryServiceName + "/CreateOrganization"
	DirectoryServiceGetOrganizationProcedure       = "/" + DirectoryServiceName + "/GetOrganization"
	DirectoryServiceUpdateOrganizationProcedure    = "/" + DirectoryServiceName + "/UpdateOrganization"
	DirectoryServiceListOrganizationsProcedure     = "/" + DirectoryServiceName + "/ListOrganizations"
	DirectoryServiceDeleteOrganizationProcedure    = "/" + DirectoryServiceName + "/DeleteOrganization"
	DirectoryServiceCreateClientProcedure          = "/" + DirectoryServiceName + "/CreateClient"
	DirectoryServiceGetClientProcedure             = "/" + DirectoryServiceName + "/GetClient"
	DirectoryServiceListClientsProcedure           = "/" + DirectoryServiceName + "/ListClients"
	DirectoryServiceUpdateClientProcedure          = "/" + DirectoryServiceName + "/UpdateClient"
	DirectoryServiceListRolesProcedure             = "/" + DirectoryServiceName + "/ListRoles"
	DirectoryServiceUpdateRolePermissionsProcedure = "/" + DirectoryServiceName + "/UpdateRolePermissions"
	DirectoryServiceGetWorkerLoadProcedure         = "/" + DirectoryServiceName + "/GetWorkerLoad"

	AssignmentServiceAssignClientProcedure      = "/" + AssignmentServiceName + "/AssignClient"
	AssignmentServiceBulkAssignProcedure        = "/" + AssignmentServiceName + "/BulkAssign"
	AssignmentServiceCreateAppointmentProcedure = "/" + AssignmentServiceName + "/CreateAppointment"
	AssignmentServiceListAppointmentsProcedure  = "/" + AssignmentServiceName + "/ListAppointments"

	AuditServiceListAuditLogsProcedure   = "/" + AuditServiceName + "/ListAuditLogs"
	AuditServiceExportAuditLogsProcedure = "/" + AuditServiceName + "/ExportAuditLogs"
)
