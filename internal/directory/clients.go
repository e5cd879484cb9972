package directory

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/casekeeper/internal/apperr"
	"github.com/wolfeidau/casekeeper/internal/audit"
	"github.com/wolfeidau/casekeeper/internal/auth"
	"github.com/wolfeidau/casekeeper/internal/models"
	"github.com/wolfeidau/casekeeper/internal/store"
	"github.com/wolfeidau/casekeeper/internal/validation"
)

// CreateClientInput is the request to register a client.
type CreateClientInput struct {
	OrgID     *uuid.UUID       `json:"org_id,omitempty"`
	Name      string           `json:"name" validate:"required,max=200"`
	Email     string           `json:"email,omitempty" validate:"omitempty,email,max=320"`
	Phone     string           `json:"phone,omitempty" validate:"omitempty,phone"`
	RiskLevel models.RiskLevel `json:"risk_level,omitempty" validate:"omitempty,oneof=low medium high critical"`
}

// UpdateClientInput changes the non-nil fields of a client.
type UpdateClientInput struct {
	Name            *string              `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Email           *string              `json:"email,omitempty" validate:"omitempty,email,max=320"`
	Phone           *string              `json:"phone,omitempty" validate:"omitempty,phone"`
	Status          *models.ClientStatus `json:"status,omitempty" validate:"omitempty,oneof=active inactive deleted"`
	RiskLevel       *models.RiskLevel    `json:"risk_level,omitempty" validate:"omitempty,oneof=low medium high critical"`
	ExpectedVersion int64                `json:"expected_version,omitempty"`
}

// ClientQuery selects clients. OrgID is narrowed by the caller's scope.
type ClientQuery struct {
	OrgID            *uuid.UUID           `json:"org_id,omitempty"`
	AssignedWorkerID *uuid.UUID           `json:"assigned_worker_id,omitempty"`
	Unassigned       bool                 `json:"unassigned,omitempty"`
	Status           *models.ClientStatus `json:"status,omitempty" validate:"omitempty,oneof=active inactive deleted"`
	IncludeDeleted   bool                 `json:"include_deleted,omitempty"`
	Limit            int                  `json:"limit,omitempty" validate:"gte=0"`
	Offset           int                  `json:"offset,omitempty" validate:"gte=0"`
}

// CreateClient registers an unassigned client in the caller's organization.
func (s *Service) CreateClient(ctx context.Context, subjectID string, in CreateClientInput) (*models.Client, error) {
	actor, scope, err := s.engine.CheckScoped(ctx, subjectID, auth.PermCreateClients, in.OrgID)
	if err != nil {
		return nil, err
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if scope.Global() {
		return nil, apperr.Validation("org_id is required")
	}

	org, err := s.requireOrg(ctx, *scope.OrgID)
	if err != nil {
		return nil, err
	}
	if org.Status != models.OrgStatusActive {
		return nil, apperr.Validation("organization %s is %s", org.Slug, org.Status)
	}

	id, err := newID()
	if err != nil {
		return nil, err
	}
	risk := in.RiskLevel
	if risk == "" {
		risk = models.RiskLow
	}
	now := s.now().UTC()
	client := &models.Client{
		ID:        id,
		OrgID:     org.ID,
		Status:    models.ClientStatusActive,
		RiskLevel: risk,
		Name:      in.Name,
		Email:     in.Email,
		Phone:     in.Phone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.clients.Create(ctx, client); err != nil {
		return nil, storeError(err, "client")
	}

	s.record(ctx, actor, audit.ActionClientCreate, models.EntityClient, client.ID.String(), &client.OrgID, map[string]any{
		"risk_level": client.RiskLevel,
	})
	log.Info().Str("subject_id", subjectID).Str("client_id", client.ID.String()).Str("org_id", org.ID.String()).Msg("Client created")

	return client, nil
}

// GetClient returns a client in the caller's scope, including deleted clients.
func (s *Service) GetClient(ctx context.Context, subjectID string, clientID uuid.UUID) (*models.Client, error) {
	_, scope, err := s.engine.CheckScoped(ctx, subjectID, auth.PermViewClients, nil)
	if err != nil {
		return nil, err
	}

	client, err := s.clients.Get(ctx, clientID)
	if err != nil {
		return nil, storeError(err, "client")
	}
	if !scope.Permits(client.OrgID) {
		return nil, apperr.Unauthorized("client is outside your organization")
	}
	return client, nil
}

// ListClients returns clients in scope ordered by creation time.
func (s *Service) ListClients(ctx context.Context, subjectID string, q ClientQuery) ([]*models.Client, error) {
	_, scope, err := s.engine.CheckScoped(ctx, subjectID, auth.PermViewClients, q.OrgID)
	if err != nil {
		return nil, err
	}
	if err := validation.Struct(q); err != nil {
		return nil, err
	}

	filter := store.ClientFilter{
		OrgID:            scope.OrgID,
		AssignedWorkerID: q.AssignedWorkerID,
		Unassigned:       q.Unassigned,
		IncludeDeleted:   q.IncludeDeleted,
		Limit:            store.ClampLimit(q.Limit),
		Offset:           q.Offset,
	}
	if q.Status != nil {
		filter.Statuses = []models.ClientStatus{*q.Status}
		filter.IncludeDeleted = filter.IncludeDeleted || *q.Status == models.ClientStatusDeleted
	}

	clients, err := s.clients.List(ctx, filter)
	if err != nil {
		return nil, storeError(err, "clients")
	}
	return clients, nil
}

// UpdateClient applies the non-nil fields of in. Moving a client to deleted also needs
// delete_clients. Deleting or deactivating a client leaves its worker reference in place;
// such clients no longer count towards the worker's load.
func (s *Service) UpdateClient(ctx context.Context, subjectID string, clientID uuid.UUID, in UpdateClientInput) (*models.Client, error) {
	actor, scope, err := s.engine.CheckScoped(ctx, subjectID, auth.PermEditClients, nil)
	if err != nil {
		return nil, err
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if in.Status != nil && *in.Status == models.ClientStatusDeleted {
		if err := s.engine.Authorize(ctx, subjectID, auth.PermDeleteClients); err != nil {
			return nil, err
		}
	}

	client, err := s.clients.Get(ctx, clientID)
	if err != nil {
		return nil, storeError(err, "client")
	}
	if !scope.Permits(client.OrgID) {
		return nil, apperr.Unauthorized("client is outside your organization")
	}
	if client.Status == models.ClientStatusDeleted {
		return nil, apperr.Validation("client %s is deleted", clientID)
	}
	expected, err := checkVersion("client", in.ExpectedVersion, client.Version)
	if err != nil {
		return nil, err
	}

	var changed []string
	if in.Name != nil && *in.Name != client.Name {
		client.Name = *in.Name
		changed = append(changed, "name")
	}
	if in.Email != nil && *in.Email != client.Email {
		client.Email = *in.Email
		changed = append(changed, "email")
	}
	if in.Phone != nil && *in.Phone != client.Phone {
		client.Phone = *in.Phone
		changed = append(changed, "phone")
	}
	if in.RiskLevel != nil && *in.RiskLevel != client.RiskLevel {
		client.RiskLevel = *in.RiskLevel
		changed = append(changed, "risk_level")
	}
	if in.Status != nil && *in.Status != client.Status {
		if !client.Status.CanTransition(*in.Status) {
			return nil, apperr.Validation("cannot change status from %s to %s", client.Status, *in.Status)
		}
		client.Status = *in.Status
		changed = append(changed, "status")
	}
	if len(changed) == 0 {
		return client, nil
	}

	if err := s.clients.Update(ctx, client, expected); err != nil {
		return nil, storeError(err, "client")
	}

	s.record(ctx, actor, audit.ActionClientUpdate, models.EntityClient, client.ID.String(), &client.OrgID, map[string]any{
		"changed": changed,
	})
	log.Info().Str("subject_id", subjectID).Str("client_id", client.ID.String()).Strs("changed", changed).Msg("Client updated")

	return client, nil
}
