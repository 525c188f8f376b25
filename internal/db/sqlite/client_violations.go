package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iamwavecut/guardbot/internal/db"
)

func (c *sqliteClient) AddViolation(ctx context.Context, entry *db.ViolationEntry) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `
		INSERT INTO violations (chat_id, user_id, kind, severity, summary, confidence, evidence_ref, punishment, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := c.db.ExecContext(ctx, query,
		entry.ChatID,
		entry.UserID,
		entry.Kind,
		entry.Severity,
		entry.Summary,
		entry.Confidence,
		entry.EvidenceRef,
		entry.Punishment,
		entry.CreatedAt,
		entry.ExpiresAt,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	entry.ID = id
	return nil
}

func (c *sqliteClient) GetViolations(ctx context.Context, chatID, userID int64) ([]*db.ViolationEntry, error) {
	var entries []*db.ViolationEntry
	err := c.db.SelectContext(ctx, &entries, `
		SELECT id, chat_id, user_id, kind, severity, summary, confidence, evidence_ref, punishment, created_at, expires_at
		FROM violations WHERE chat_id = ? AND user_id = ? ORDER BY id
	`, chatID, userID)
	return entries, err
}

func (c *sqliteClient) GetPunishmentState(ctx context.Context, chatID, userID int64) (*db.PunishmentState, error) {
	state := &db.PunishmentState{}
	err := c.db.GetContext(ctx, state, `
		SELECT chat_id, user_id, total_points, punishment_level, permanently_banned, last_violation_at
		FROM punishment_states WHERE chat_id = ? AND user_id = ?
	`, chatID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return db.NewPunishmentState(chatID, userID), nil
	}
	return state, err
}

// IncrementPunishmentPoints bumps total_points by exactly one inside a single
// transaction, so concurrent violations for the same (chat, user) serialize on
// the row rather than racing the read-increment-write sequence.
func (c *sqliteClient) IncrementPunishmentPoints(ctx context.Context, chatID, userID int64) (*db.PunishmentState, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	state := &db.PunishmentState{}
	err = tx.GetContext(ctx, state, `
		INSERT INTO punishment_states (chat_id, user_id, total_points, last_violation_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(chat_id, user_id) DO UPDATE SET
		total_points = total_points + 1,
		last_violation_at = excluded.last_violation_at
		RETURNING chat_id, user_id, total_points, punishment_level, permanently_banned, last_violation_at
	`, chatID, userID, now)
	if err != nil {
		return nil, fmt.Errorf("increment points: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return state, nil
}

func (c *sqliteClient) SetPunishmentLevel(ctx context.Context, chatID, userID int64, level int, banned bool) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, `
		UPDATE punishment_states SET punishment_level = ?, permanently_banned = ?
		WHERE chat_id = ? AND user_id = ?
	`, level, banned, chatID, userID)
	return err
}

// ResetPunishmentState is the only path that lowers total_points.
func (c *sqliteClient) ResetPunishmentState(ctx context.Context, chatID, userID int64) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, `
		UPDATE punishment_states
		SET total_points = 0, punishment_level = 0, permanently_banned = 0
		WHERE chat_id = ? AND user_id = ?
	`, chatID, userID)
	return err
}
