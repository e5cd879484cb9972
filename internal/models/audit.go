package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Entity types recorded in the audit log.
const (
	EntityUser         = "user"
	EntityClient       = "client"
	EntityOrganization = "organization"
	EntityAppointment  = "appointment"
	EntityRole         = "role"
)

// AuditEntry is an append-only record of a mutating action.
type AuditEntry struct {
	ID         uuid.UUID       `json:"id"` // UUIDv7
	ActorID    string          `json:"actor_id"`
	Action     string          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Details    json.RawMessage `json:"details,omitempty"`
	OrgID      *uuid.UUID      `json:"org_id,omitempty"`
	ClientIP   string          `json:"client_ip,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	Checksum   string          `json:"checksum"`
}
