package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iamwavecut/guardbot/internal/db"
	guarderrors "github.com/iamwavecut/guardbot/internal/errors"
)

func (c *sqliteClient) CreateReport(ctx context.Context, report *db.AdminReport) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `
		INSERT INTO admin_reports (id, chat_id, user_id, violations, recommended_action, status, annotation, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := c.db.ExecContext(ctx, query,
		report.ID,
		report.ChatID,
		report.UserID,
		report.Violations,
		report.RecommendedAction,
		report.Status,
		report.Annotation,
		report.CreatedAt,
	)
	return err
}

func (c *sqliteClient) GetReport(ctx context.Context, id string) (*db.AdminReport, error) {
	report := &db.AdminReport{}
	err := c.db.GetContext(ctx, report, `
		SELECT id, chat_id, user_id, violations, recommended_action, status, reviewer_id, annotation, created_at, resolved_at
		FROM admin_reports WHERE id = ?
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, guarderrors.ErrNotFound
	}
	return report, err
}

// ResolveReport performs the one-way pending -> terminal transition. The WHERE
// clause rejects a second resolution of the same report.
func (c *sqliteClient) ResolveReport(ctx context.Context, id string, status string, reviewerID int64, annotation string, resolvedAt time.Time) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	result, err := c.db.ExecContext(ctx, `
		UPDATE admin_reports
		SET status = ?, reviewer_id = ?, annotation = ?, resolved_at = ?
		WHERE id = ? AND status = ?
	`, status, reviewerID, annotation, resolvedAt, id, db.ReportStatusPending)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return guarderrors.ErrReportResolved
	}
	return nil
}

func (c *sqliteClient) GetReportsSince(ctx context.Context, chatID int64, since time.Time) ([]*db.AdminReport, error) {
	var reports []*db.AdminReport
	err := c.db.SelectContext(ctx, &reports, `
		SELECT id, chat_id, user_id, violations, recommended_action, status, reviewer_id, annotation, created_at, resolved_at
		FROM admin_reports WHERE chat_id = ? AND created_at >= ? ORDER BY created_at
	`, chatID, since)
	return reports, err
}

func (c *sqliteClient) GetReportedChatsSince(ctx context.Context, since time.Time) ([]int64, error) {
	var chatIDs []int64
	err := c.db.SelectContext(ctx, &chatIDs, `
		SELECT DISTINCT chat_id FROM admin_reports WHERE created_at >= ?
	`, since)
	return chatIDs, err
}

func (c *sqliteClient) Subscribe(ctx context.Context, sub *db.ReportSubscription) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `
		INSERT INTO report_subscriptions (reviewer_id, chat_id, instant_alert, daily_summary)
		VALUES (:reviewer_id, :chat_id, :instant_alert, :daily_summary)
		ON CONFLICT(reviewer_id, chat_id) DO UPDATE SET
		instant_alert=excluded.instant_alert,
		daily_summary=excluded.daily_summary;
	`
	_, err := c.db.NamedExecContext(ctx, query, sub)
	return err
}

func (c *sqliteClient) Unsubscribe(ctx context.Context, reviewerID, chatID int64) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, "DELETE FROM report_subscriptions WHERE reviewer_id = ? AND chat_id = ?", reviewerID, chatID)
	return err
}

func (c *sqliteClient) GetSubscriptions(ctx context.Context, chatID int64) ([]*db.ReportSubscription, error) {
	var subs []*db.ReportSubscription
	err := c.db.SelectContext(ctx, &subs, `
		SELECT reviewer_id, chat_id, instant_alert, daily_summary
		FROM report_subscriptions WHERE chat_id = ?
	`, chatID)
	return subs, err
}
