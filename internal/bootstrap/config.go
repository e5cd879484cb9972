package bootstrap

import (
	"github.com/wolfeidau/casekeeper/internal/audit"
	"github.com/wolfeidau/casekeeper/internal/models"
	"github.com/wolfeidau/casekeeper/internal/store"
)

// Config holds what Bootstrap needs to seed the first superadmin.
type Config struct {
	Staff store.StaffStore
	// Recorder is optional; when set the bootstrap is written to the audit log.
	Recorder *audit.Recorder

	Superadmin Superadmin
}

// Superadmin describes the account created when no active superadmin exists.
type Superadmin struct {
	ExternalID string `json:"external_id" validate:"required,max=255"`
	Email      string `json:"email" validate:"required,email,max=320"`
	Name       string `json:"name" validate:"required,max=200"`
}

// Result reports what Bootstrap did.
type Result struct {
	// Created is false when an active superadmin already existed.
	Created bool
	User    *models.StaffUser
}
