package memory

import (
	"bytes"
	"cmp"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/casekeeper/internal/models"
)

func cloneUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneUser(u *models.StaffUser) *models.StaffUser {
	clone := *u
	clone.OrgID = cloneUUID(u.OrgID)
	clone.DeletedAt = cloneTime(u.DeletedAt)
	return &clone
}

func cloneClient(c *models.Client) *models.Client {
	clone := *c
	clone.AssignedWorkerID = cloneUUID(c.AssignedWorkerID)
	return &clone
}

func cloneAppointment(a *models.Appointment) *models.Appointment {
	clone := *a
	clone.WorkerID = cloneUUID(a.WorkerID)
	return &clone
}

func cloneAuditEntry(e *models.AuditEntry) *models.AuditEntry {
	clone := *e
	clone.OrgID = cloneUUID(e.OrgID)
	clone.Details = bytes.Clone(e.Details)
	return &clone
}

// compareCreated orders by creation time then ID, the stable enumeration order used for listings.
func compareCreated(aCreated time.Time, aID uuid.UUID, bCreated time.Time, bID uuid.UUID) int {
	if c := aCreated.Compare(bCreated); c != 0 {
		return c
	}
	return cmp.Compare(aID.String(), bID.String())
}

func sameUUID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
