package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/guardbot/internal/db"
	guarderrors "github.com/iamwavecut/guardbot/internal/errors"
	"github.com/iamwavecut/guardbot/internal/i18n"
)

// PlatformOps is the host platform's moderation surface.
type PlatformOps interface {
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	RestrictMember(ctx context.Context, chatID, userID int64, until time.Time) error
	BanMember(ctx context.Context, chatID, userID int64) error
	SendMessage(ctx context.Context, chatID int64, text string) error
	MemberStatus(ctx context.Context, chatID, userID int64) (string, error)
}

type enforcerStore interface {
	AddViolation(ctx context.Context, entry *db.ViolationEntry) error
}

type reporter interface {
	FileAndNotify(ctx context.Context, msg *api.Message, violations []Violation, action Action) (string, error)
}

type EnforcementResult struct {
	Success        bool
	ActionTaken    Action
	MessageDeleted bool
	AdminNotified  bool
	Exempt         bool
	Denied         bool
}

type EnforcerConfig struct {
	// OwnerID is the top-tier protected principal, never sanctioned.
	OwnerID      int64
	HighSeverity int
}

// Enforcer applies a punishment through platform primitives and records the
// action in the ledger. A sanction is never applied without a durable record.
type Enforcer struct {
	ops     PlatformOps
	store   enforcerStore
	reports reporter
	config  EnforcerConfig
}

const (
	ledgerWriteRetries   = 3
	ledgerWriteRetryStep = 300 * time.Millisecond
)

func NewEnforcer(ops PlatformOps, store enforcerStore, reports reporter, config EnforcerConfig) *Enforcer {
	if config.HighSeverity <= 0 {
		config.HighSeverity = SeverityHigh
	}
	return &Enforcer{
		ops:     ops,
		store:   store,
		reports: reports,
		config:  config,
	}
}

func (e *Enforcer) Enforce(ctx context.Context, msg *api.Message, action Action, assessment Assessment, settings *db.Settings, lang string) (*EnforcementResult, error) {
	result := &EnforcementResult{ActionTaken: action}
	if msg == nil || msg.From == nil {
		return result, nil
	}
	chatID := msg.Chat.ID
	userID := msg.From.ID
	entry := e.getLogEntry().WithFields(log.Fields{
		"chat_id": chatID,
		"user_id": userID,
		"action":  string(action),
	})

	if exempt, err := e.isExempt(ctx, chatID, userID, settings); err != nil {
		entry.WithError(err).Warn("cant resolve member status, enforcing anyway")
	} else if exempt {
		result.Success = true
		result.Exempt = true
		return result, nil
	}

	// Durable record first: if the ledger write keeps failing the sanction
	// is aborted rather than applied untracked.
	if err := e.recordViolations(ctx, chatID, userID, action, assessment.Violations); err != nil {
		return result, fmt.Errorf("record violations: %w", err)
	}

	if err := e.ops.DeleteMessage(ctx, chatID, msg.MessageID); err != nil {
		entry.WithError(err).Error("failed to delete message")
	} else {
		result.MessageDeleted = true
	}

	if err := e.applyAction(ctx, msg, action, lang); err != nil {
		if errors.Is(err, guarderrors.ErrNoPrivileges) {
			result.Denied = true
			entry.Warn("enforcement denied by platform")
		} else {
			entry.WithError(err).Error("failed to apply action")
		}
	} else {
		result.Success = true
	}

	if e.reports != nil && e.shouldNotify(assessment, result) {
		if _, err := e.reports.FileAndNotify(ctx, msg, assessment.Violations, action); err != nil {
			entry.WithError(err).Error("failed to file admin report")
		} else {
			result.AdminNotified = true
		}
	}

	return result, nil
}

func (e *Enforcer) isExempt(ctx context.Context, chatID, userID int64, settings *db.Settings) (bool, error) {
	if e.config.OwnerID != 0 && userID == e.config.OwnerID {
		return true, nil
	}
	status, err := e.ops.MemberStatus(ctx, chatID, userID)
	if err != nil {
		return false, err
	}
	switch status {
	case "creator":
		return true, nil
	case "administrator":
		enforceAdmins := settings != nil && settings.EnforceAdmins
		return !enforceAdmins, nil
	}
	return false, nil
}

func (e *Enforcer) recordViolations(ctx context.Context, chatID, userID int64, action Action, violations []Violation) error {
	now := time.Now()
	var expiresAt *time.Time
	if duration, ok := action.MuteDuration(); ok {
		expiry := now.Add(duration)
		expiresAt = &expiry
	}

	for _, violation := range violations {
		record := &db.ViolationEntry{
			ChatID:      chatID,
			UserID:      userID,
			Kind:        string(violation.Kind),
			Severity:    violation.Severity,
			Summary:     violation.Summary,
			Confidence:  violation.Confidence,
			EvidenceRef: violation.EvidenceRef,
			Punishment:  string(action),
			CreatedAt:   now,
			ExpiresAt:   expiresAt,
		}

		var err error
		for attempt := 0; attempt < ledgerWriteRetries; attempt++ {
			if err = e.store.AddViolation(ctx, record); err == nil {
				break
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt+1) * ledgerWriteRetryStep):
			}
		}
		if err != nil {
			return fmt.Errorf("ledger write: %w", err)
		}
	}
	return nil
}

func (e *Enforcer) applyAction(ctx context.Context, msg *api.Message, action Action, lang string) error {
	chatID := msg.Chat.ID
	userID := msg.From.ID
	userName := userTitle(msg.From)

	switch action {
	case ActionWarning:
		text := fmt.Sprintf(i18n.Get("⚠️ %s, your message was removed for violating the group rules.", lang), userName)
		return e.ops.SendMessage(ctx, chatID, text)
	case ActionMutePermanent:
		if err := e.ops.RestrictMember(ctx, chatID, userID, time.Time{}); err != nil {
			return err
		}
		text := fmt.Sprintf(i18n.Get("🔇 %s has been muted permanently for repeated violations.", lang), userName)
		return e.ops.SendMessage(ctx, chatID, text)
	case ActionBanPermanent:
		if err := e.ops.BanMember(ctx, chatID, userID); err != nil {
			return err
		}
		text := fmt.Sprintf(i18n.Get("🚫 %s has been banned for repeated violations.", lang), userName)
		return e.ops.SendMessage(ctx, chatID, text)
	}

	duration, ok := action.MuteDuration()
	if !ok {
		return fmt.Errorf("unknown action %q", action)
	}
	if err := e.ops.RestrictMember(ctx, chatID, userID, time.Now().Add(duration)); err != nil {
		return err
	}
	text := fmt.Sprintf(i18n.Get("🔇 %s has been muted for %s for repeated violations.", lang), userName, duration)
	return e.ops.SendMessage(ctx, chatID, text)
}

func (e *Enforcer) shouldNotify(assessment Assessment, result *EnforcementResult) bool {
	if result.Denied {
		// Moderators must hear about sanctions the platform refused.
		return true
	}
	if assessment.RequiresAdminNotice {
		return true
	}
	for _, violation := range assessment.Violations {
		if violation.Severity >= e.config.HighSeverity {
			return true
		}
	}
	return false
}

func userTitle(user *api.User) string {
	if user == nil {
		return ""
	}
	if user.UserName != "" {
		return "@" + user.UserName
	}
	return strings.TrimSpace(user.FirstName + " " + user.LastName)
}

func (e *Enforcer) getLogEntry() *log.Entry {
	return log.WithField("object", "Enforcer")
}
