package moderation

import (
	"context"
	"fmt"

	"github.com/iamwavecut/guardbot/internal/db"
	guarderrors "github.com/iamwavecut/guardbot/internal/errors"
)

type adminStore interface {
	GetSettings(ctx context.Context, chatID int64) (*db.Settings, error)
	SetSettings(ctx context.Context, settings *db.Settings) error
	ResetPunishmentState(ctx context.Context, chatID, userID int64) error
	Subscribe(ctx context.Context, sub *db.ReportSubscription) error
	Unsubscribe(ctx context.Context, reviewerID, chatID int64) error
}

// AdminService is the surface consumed by the external command-parsing layer.
type AdminService struct {
	store adminStore
}

func NewAdminService(store adminStore) *AdminService {
	return &AdminService{store: store}
}

// ResetUser clears accumulated points, level and the permanent ban flag. This
// is the only path that lowers a user's punishment state.
func (a *AdminService) ResetUser(ctx context.Context, chatID, userID int64) error {
	if err := a.store.ResetPunishmentState(ctx, chatID, userID); err != nil {
		return fmt.Errorf("reset punishment state: %w", err)
	}
	return nil
}

func (a *AdminService) SetEnabled(ctx context.Context, chatID int64, enabled bool) error {
	settings, err := a.settingsOrDefault(ctx, chatID)
	if err != nil {
		return err
	}
	settings.Enabled = enabled
	return a.store.SetSettings(ctx, settings)
}

// SetEnforceAdmins toggles whether the second protected tier (chat admins) is
// subject to enforcement.
func (a *AdminService) SetEnforceAdmins(ctx context.Context, chatID int64, enforce bool) error {
	settings, err := a.settingsOrDefault(ctx, chatID)
	if err != nil {
		return err
	}
	settings.EnforceAdmins = enforce
	return a.store.SetSettings(ctx, settings)
}

func (a *AdminService) Subscribe(ctx context.Context, reviewerID, chatID int64, instantAlert, dailySummary bool) error {
	return a.store.Subscribe(ctx, &db.ReportSubscription{
		ReviewerID:   reviewerID,
		ChatID:       chatID,
		InstantAlert: instantAlert,
		DailySummary: dailySummary,
	})
}

func (a *AdminService) Unsubscribe(ctx context.Context, reviewerID, chatID int64) error {
	return a.store.Unsubscribe(ctx, reviewerID, chatID)
}

func (a *AdminService) settingsOrDefault(ctx context.Context, chatID int64) (*db.Settings, error) {
	settings, err := a.store.GetSettings(ctx, chatID)
	if err == nil {
		return settings, nil
	}
	if err == guarderrors.ErrNotFound {
		return db.DefaultSettings(chatID), nil
	}
	return nil, fmt.Errorf("get settings: %w", err)
}
