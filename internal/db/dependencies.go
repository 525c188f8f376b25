package db

import (
	"context"
	"time"
)

type Client interface {
	Close() error

	GetSettings(ctx context.Context, chatID int64) (*Settings, error)
	SetSettings(ctx context.Context, settings *Settings) error

	AddViolation(ctx context.Context, entry *ViolationEntry) error
	GetViolations(ctx context.Context, chatID, userID int64) ([]*ViolationEntry, error)

	GetPunishmentState(ctx context.Context, chatID, userID int64) (*PunishmentState, error)
	IncrementPunishmentPoints(ctx context.Context, chatID, userID int64) (*PunishmentState, error)
	SetPunishmentLevel(ctx context.Context, chatID, userID int64, level int, banned bool) error
	ResetPunishmentState(ctx context.Context, chatID, userID int64) error

	CreateReport(ctx context.Context, report *AdminReport) error
	GetReport(ctx context.Context, id string) (*AdminReport, error)
	ResolveReport(ctx context.Context, id string, status string, reviewerID int64, annotation string, resolvedAt time.Time) error
	GetReportsSince(ctx context.Context, chatID int64, since time.Time) ([]*AdminReport, error)
	GetReportedChatsSince(ctx context.Context, since time.Time) ([]int64, error)

	Subscribe(ctx context.Context, sub *ReportSubscription) error
	Unsubscribe(ctx context.Context, reviewerID, chatID int64) error
	GetSubscriptions(ctx context.Context, chatID int64) ([]*ReportSubscription, error)
}

func DefaultSettings(chatID int64) *Settings {
	return &Settings{
		ID:            chatID,
		Enabled:       true,
		EnforceAdmins: false,
		Language:      "en",
	}
}

// Zero state for users with no prior violations.
func NewPunishmentState(chatID, userID int64) *PunishmentState {
	return &PunishmentState{
		ChatID: chatID,
		UserID: userID,
	}
}
