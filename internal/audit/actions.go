package audit

// Actions recorded by the engine.
const (
	ActionUserCreate          = "user.create"
	ActionUserUpdate          = "user.update"
	ActionUserArchive         = "user.archive"
	ActionClientCreate        = "client.create"
	ActionClientUpdate        = "client.update"
	ActionClientAssign        = "client.assign"
	ActionClientBulkAssign    = "client.bulk_assign"
	ActionClientUnassign      = "client.unassign"
	ActionAppointmentCreate   = "appointment.create"
	ActionOrgCreate           = "organization.create"
	ActionOrgUpdate           = "organization.update"
	ActionOrgDelete           = "organization.delete"
	ActionRolePermissions     = "role.permissions_update"
	ActionSuperadminBootstrap = "user.bootstrap_superadmin"
)
