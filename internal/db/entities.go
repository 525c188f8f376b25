package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type (
	// Settings holds per-chat moderation policy switches.
	Settings struct {
		ID            int64  `db:"id"`
		Enabled       bool   `db:"enabled"`
		EnforceAdmins bool   `db:"enforce_admins"`
		Language      string `db:"language"`
	}

	// ViolationEntry is an append-only ledger row, one per detected violation.
	ViolationEntry struct {
		ID          int64      `db:"id"`
		ChatID      int64      `db:"chat_id"`
		UserID      int64      `db:"user_id"`
		Kind        string     `db:"kind"`
		Severity    int        `db:"severity"`
		Summary     string     `db:"summary"`
		Confidence  float64    `db:"confidence"`
		EvidenceRef string     `db:"evidence_ref"`
		Punishment  string     `db:"punishment"`
		CreatedAt   time.Time  `db:"created_at"`
		ExpiresAt   *time.Time `db:"expires_at"`
	}

	// PunishmentState is the sole mutable aggregate per (chat, user).
	// TotalPoints only ever grows, except through an explicit admin reset.
	PunishmentState struct {
		ChatID            int64      `db:"chat_id"`
		UserID            int64      `db:"user_id"`
		TotalPoints       int        `db:"total_points"`
		PunishmentLevel   int        `db:"punishment_level"`
		PermanentlyBanned bool       `db:"permanently_banned"`
		LastViolationAt   *time.Time `db:"last_violation_at"`
	}

	AdminReport struct {
		ID                string         `db:"id"`
		ChatID            int64          `db:"chat_id"`
		UserID            int64          `db:"user_id"`
		Violations        ReportEvidence `db:"violations"`
		RecommendedAction string         `db:"recommended_action"`
		Status            string         `db:"status"`
		ReviewerID        *int64         `db:"reviewer_id"`
		Annotation        string         `db:"annotation"`
		CreatedAt         time.Time      `db:"created_at"`
		ResolvedAt        *time.Time     `db:"resolved_at"`
	}

	ReportSubscription struct {
		ReviewerID   int64 `db:"reviewer_id"`
		ChatID       int64 `db:"chat_id"`
		InstantAlert bool  `db:"instant_alert"`
		DailySummary bool  `db:"daily_summary"`
	}

	// ReportEvidence is the JSON-encoded violation list attached to a report.
	ReportEvidence []ReportViolation

	ReportViolation struct {
		Kind     string `json:"kind"`
		Severity int    `json:"severity"`
		Summary  string `json:"summary"`
	}
)

const (
	ReportStatusPending  = "pending"
	ReportStatusApproved = "approved"
	ReportStatusRejected = "rejected"
)

func (e ReportEvidence) Value() (driver.Value, error) {
	return json.Marshal(e)
}

func (e *ReportEvidence) Scan(v interface{}) error {
	if v == nil {
		return nil
	}
	switch data := v.(type) {
	case string:
		return json.Unmarshal([]byte(data), e)
	case []byte:
		return json.Unmarshal(data, e)
	default:
		return fmt.Errorf("cannot scan type %T into ReportEvidence", v)
	}
}

// Resolved reports never transition back to pending.
func (r *AdminReport) IsResolved() bool {
	return r.Status != ReportStatusPending
}
