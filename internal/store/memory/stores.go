package memory

import "github.com/wolfeidau/casekeeper/internal/store"

// NewStores wires a full set of in-memory stores. The organization store checks the staff and
// client stores before deleting an organization.
func NewStores() *store.Stores {
	staff := NewStaffStore()
	clients := NewClientStore()

	return &store.Stores{
		Organizations: NewOrganizationStore(staff, clients),
		Staff:         staff,
		Clients:       clients,
		Appointments:  NewAppointmentStore(),
		Audit:         NewAuditStore(),
		Locker:        NewOrgLocker(),
	}
}
