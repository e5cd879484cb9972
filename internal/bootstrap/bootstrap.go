package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/casekeeper/internal/audit"
	"github.com/wolfeidau/casekeeper/internal/models"
	"github.com/wolfeidau/casekeeper/internal/store"
	"github.com/wolfeidau/casekeeper/internal/validation"
)

// Bootstrap creates the initial superadmin if the store has no active one.
// Running it again is a no-op that returns the existing superadmin.
func Bootstrap(ctx context.Context, cfg Config) (*Result, error) {
	if cfg.Staff == nil {
		return nil, errors.New("staff store is required")
	}
	if err := validation.Struct(cfg.Superadmin); err != nil {
		return nil, err
	}

	existing, err := activeSuperadmin(ctx, cfg.Staff)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		log.Info().Str("user_id", existing.ID.String()).Msg("Superadmin already exists, skipping bootstrap")
		return &Result{User: existing}, nil
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate user id: %w", err)
	}
	now := time.Now().UTC()
	user := &models.StaffUser{
		ID:         id,
		ExternalID: cfg.Superadmin.ExternalID,
		Email:      cfg.Superadmin.Email,
		Name:       cfg.Superadmin.Name,
		Role:       models.RoleSuperadmin,
		Status:     models.UserStatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := cfg.Staff.Create(ctx, user); err != nil {
		// a concurrent bootstrap may have won the race on external_id
		if errors.Is(err, store.ErrUserAlreadyExists) {
			if existing, lookupErr := activeSuperadmin(ctx, cfg.Staff); lookupErr == nil && existing != nil {
				return &Result{User: existing}, nil
			}
		}
		return nil, fmt.Errorf("failed to create superadmin: %w", err)
	}

	if cfg.Recorder != nil {
		cfg.Recorder.Record(ctx, audit.Event{
			ActorID:    user.ID.String(),
			Action:     audit.ActionSuperadminBootstrap,
			EntityType: models.EntityUser,
			EntityID:   user.ID.String(),
			Details:    map[string]any{"email": user.Email},
		})
	}

	log.Info().Str("user_id", user.ID.String()).Str("external_id", user.ExternalID).Msg("Bootstrapped superadmin")

	return &Result{Created: true, User: user}, nil
}

func activeSuperadmin(ctx context.Context, staff store.StaffStore) (*models.StaffUser, error) {
	active := models.UserStatusActive
	users, err := staff.List(ctx, store.UserFilter{
		Roles:  []models.Role{models.RoleSuperadmin},
		Status: &active,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list superadmins: %w", err)
	}
	if len(users) == 0 {
		return nil, nil
	}
	return users[0], nil
}
