package models

import (
	"time"

	"github.com/google/uuid"
)

// ClientStatus is the lifecycle state of a client.
type ClientStatus string

const (
	ClientStatusActive   ClientStatus = "active"
	ClientStatusInactive ClientStatus = "inactive"
	ClientStatusDeleted  ClientStatus = "deleted"
)

var clientTransitions = map[ClientStatus][]ClientStatus{
	ClientStatusActive:   {ClientStatusInactive, ClientStatusDeleted},
	ClientStatusInactive: {ClientStatusActive, ClientStatusDeleted},
	ClientStatusDeleted:  {},
}

// Valid reports whether s is a known client status.
func (s ClientStatus) Valid() bool {
	_, ok := clientTransitions[s]
	return ok
}

// CanTransition reports whether a client may move from s to next.
func (s ClientStatus) CanTransition(next ClientStatus) bool {
	return canTransition(clientTransitions, s, next)
}

// RiskLevel classifies a client's risk.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Client is a person receiving support from an organization.
type Client struct {
	ID               uuid.UUID    `json:"id"`
	OrgID            uuid.UUID    `json:"org_id"`
	AssignedWorkerID *uuid.UUID   `json:"assigned_worker_id,omitempty"`
	Status           ClientStatus `json:"status"`
	RiskLevel        RiskLevel    `json:"risk_level"`
	Name             string       `json:"name"`
	Email            string       `json:"email,omitempty"`
	Phone            string       `json:"phone,omitempty"`
	Version          int64        `json:"version"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// CountsTowardsLoad reports whether the client adds to its worker's load.
func (c *Client) CountsTowardsLoad() bool {
	return c.Status == ClientStatusActive
}

// IsAssigned returns true if the client has a worker.
func (c *Client) IsAssigned() bool {
	return c.AssignedWorkerID != nil
}
