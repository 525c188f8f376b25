package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/iamwavecut/guardbot/internal/db"
)

// Action is one tier of the escalating punishment ladder.
type Action string

const (
	ActionWarning       Action = "warning"
	ActionMute5m        Action = "mute_5m"
	ActionMute30m       Action = "mute_30m"
	ActionMute1h        Action = "mute_1h"
	ActionMute6h        Action = "mute_6h"
	ActionMute24h       Action = "mute_24h"
	ActionMutePermanent Action = "mute_permanent"
	ActionBanPermanent  Action = "ban_permanent"
)

// MuteDuration returns the restriction length for time-boxed mutes.
func (a Action) MuteDuration() (time.Duration, bool) {
	switch a {
	case ActionMute5m:
		return 5 * time.Minute, true
	case ActionMute30m:
		return 30 * time.Minute, true
	case ActionMute1h:
		return time.Hour, true
	case ActionMute6h:
		return 6 * time.Hour, true
	case ActionMute24h:
		return 24 * time.Hour, true
	}
	return 0, false
}

type policyStore interface {
	GetPunishmentState(ctx context.Context, chatID, userID int64) (*db.PunishmentState, error)
	IncrementPunishmentPoints(ctx context.Context, chatID, userID int64) (*db.PunishmentState, error)
	SetPunishmentLevel(ctx context.Context, chatID, userID int64, level int, banned bool) error
}

// Tier maps an escalation level ceiling to an action. Tiers are checked in
// ascending MaxLevel order.
type Tier struct {
	MaxLevel int
	Action   Action
}

// PolicyConfig carries the escalation constants. They mirror long-observed
// moderation practice rather than any hard requirement, so they are plain
// configuration.
type PolicyConfig struct {
	GracePoints int
	Tiers       []Tier
}

func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		GracePoints: 3,
		Tiers: []Tier{
			{MaxLevel: 1, Action: ActionMute5m},
			{MaxLevel: 3, Action: ActionMute30m},
			{MaxLevel: 5, Action: ActionMute1h},
			{MaxLevel: 8, Action: ActionMute6h},
			{MaxLevel: 12, Action: ActionMute24h},
			{MaxLevel: 16, Action: ActionMutePermanent},
		},
	}
}

// PolicyEngine decides the next punishment tier from a user's persisted
// violation history. It is the only component that reads or writes
// punishment state.
type PolicyEngine struct {
	store  policyStore
	config PolicyConfig
}

func NewPolicyEngine(store policyStore, config PolicyConfig) *PolicyEngine {
	if config.GracePoints <= 0 {
		config.GracePoints = DefaultPolicyConfig().GracePoints
	}
	if len(config.Tiers) == 0 {
		config.Tiers = DefaultPolicyConfig().Tiers
	}
	return &PolicyEngine{store: store, config: config}
}

// NextAction charges the user exactly one point for the violating message and
// maps the accumulated state to a punishment tier. Severity does not add
// points, it only pushes the escalation level forward: one severe message
// escalates faster than several mild ones, but nobody skips the grace period.
func (e *PolicyEngine) NextAction(ctx context.Context, chatID, userID int64, totalSeverity int) (Action, error) {
	state, err := e.store.GetPunishmentState(ctx, chatID, userID)
	if err != nil {
		return "", fmt.Errorf("get punishment state: %w", err)
	}
	if state.PermanentlyBanned {
		// Absorbing state, no further points and no lighter sanctions.
		return ActionBanPermanent, nil
	}

	state, err = e.store.IncrementPunishmentPoints(ctx, chatID, userID)
	if err != nil {
		return "", fmt.Errorf("increment points: %w", err)
	}

	if state.TotalPoints <= e.config.GracePoints {
		return ActionWarning, nil
	}

	level := state.TotalPoints - e.config.GracePoints + severityBonus(totalSeverity)
	action := ActionBanPermanent
	for _, tier := range e.config.Tiers {
		if level <= tier.MaxLevel {
			action = tier.Action
			break
		}
	}

	banned := action == ActionBanPermanent
	if err := e.store.SetPunishmentLevel(ctx, chatID, userID, level, banned); err != nil {
		return "", fmt.Errorf("persist punishment level: %w", err)
	}
	return action, nil
}

func severityBonus(totalSeverity int) int {
	switch {
	case totalSeverity >= SeverityHigh:
		return 2
	case totalSeverity == SeverityMedium:
		return 1
	}
	return 0
}
