package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wolfeidau/casekeeper/internal/store"
)

// NewStores wires every PostgreSQL store and the advisory locker onto one pool.
func NewStores(pool *pgxpool.Pool) *store.Stores {
	return &store.Stores{
		Organizations: NewOrganizationStore(pool),
		Staff:         NewStaffStore(pool),
		Clients:       NewClientStore(pool),
		Appointments:  NewAppointmentStore(pool),
		Audit:         NewAuditStore(pool),
		Locker:        NewAdvisoryLocker(pool),
	}
}
