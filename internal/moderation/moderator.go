package moderation

import (
	"context"
	"errors"
	"fmt"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/guardbot/internal/db"
	guarderrors "github.com/iamwavecut/guardbot/internal/errors"
	"github.com/iamwavecut/guardbot/internal/observability"
)

type moderatorStore interface {
	GetSettings(ctx context.Context, chatID int64) (*db.Settings, error)
}

type ModeratorConfig struct {
	HighSeverity    int
	DefaultLanguage string
}

// Moderator drives one message through the whole pipeline: guard, inspection,
// aggregation, policy decision, enforcement.
type Moderator struct {
	guard     *ProcessingGuard
	inspector *Inspector
	policy    *PolicyEngine
	enforcer  *Enforcer
	store     moderatorStore
	config    ModeratorConfig
}

func NewModerator(guard *ProcessingGuard, inspector *Inspector, policy *PolicyEngine, enforcer *Enforcer, store moderatorStore, config ModeratorConfig) *Moderator {
	if config.HighSeverity <= 0 {
		config.HighSeverity = SeverityHigh
	}
	if config.DefaultLanguage == "" {
		config.DefaultLanguage = "en"
	}
	return &Moderator{
		guard:     guard,
		inspector: inspector,
		policy:    policy,
		enforcer:  enforcer,
		store:     store,
		config:    config,
	}
}

// Process inspects and, when warranted, punishes one inbound message. A
// concurrent attempt on the same message is a no-op, not an error.
func (m *Moderator) Process(ctx context.Context, msg *api.Message) error {
	if msg == nil || msg.From == nil {
		return nil
	}
	entry := m.getLogEntry().WithFields(log.Fields{
		"chat_id":    msg.Chat.ID,
		"user_id":    msg.From.ID,
		"message_id": msg.MessageID,
	})

	key := MessageKey(msg.Chat.ID, msg.MessageID)
	if !m.guard.TryAcquire(key) {
		entry.WithError(guarderrors.ErrDuplicateProcessing).Debug("skipping message")
		return nil
	}
	defer m.guard.Release(key)

	settings, err := m.store.GetSettings(ctx, msg.Chat.ID)
	if errors.Is(err, guarderrors.ErrNotFound) {
		settings = db.DefaultSettings(msg.Chat.ID)
	} else if err != nil {
		return fmt.Errorf("get settings: %w", err)
	}
	if !settings.Enabled {
		return nil
	}

	done := observability.StartMessageProcessing()

	violations := m.inspector.Inspect(ctx, msg)
	if len(violations) == 0 {
		done("clean")
		return nil
	}
	for _, violation := range violations {
		observability.RecordViolation(string(violation.Kind))
	}

	assessment := Aggregate(violations, m.config.HighSeverity)
	entry = entry.WithFields(log.Fields{
		"violations":     len(assessment.Violations),
		"total_severity": assessment.TotalSeverity,
	})

	action, err := m.policy.NextAction(ctx, msg.Chat.ID, msg.From.ID, assessment.TotalSeverity)
	if err != nil {
		done("error")
		// No sanction without a durable decision.
		return fmt.Errorf("next action: %w", err)
	}

	lang := settings.Language
	if lang == "" {
		lang = m.config.DefaultLanguage
	}
	result, err := m.enforcer.Enforce(ctx, msg, action, assessment, settings, lang)
	if err != nil {
		done("error")
		return fmt.Errorf("enforce: %w", err)
	}
	observability.RecordEnforcement(string(result.ActionTaken))

	entry.WithFields(log.Fields{
		"action":         string(result.ActionTaken),
		"success":        result.Success,
		"deleted":        result.MessageDeleted,
		"admin_notified": result.AdminNotified,
	}).Info("message moderated")
	done("moderated")
	return nil
}

func (m *Moderator) getLogEntry() *log.Entry {
	return log.WithField("object", "Moderator")
}
