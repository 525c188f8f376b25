package moderation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pborman/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iamwavecut/guardbot/internal/db"
	"github.com/iamwavecut/guardbot/internal/i18n"
)

type reportStore interface {
	CreateReport(ctx context.Context, report *db.AdminReport) error
	GetReport(ctx context.Context, id string) (*db.AdminReport, error)
	ResolveReport(ctx context.Context, id string, status string, reviewerID int64, annotation string, resolvedAt time.Time) error
	GetReportsSince(ctx context.Context, chatID int64, since time.Time) ([]*db.AdminReport, error)
	GetReportedChatsSince(ctx context.Context, since time.Time) ([]int64, error)
	GetSubscriptions(ctx context.Context, chatID int64) ([]*db.ReportSubscription, error)
}

type messageSender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// ReportService persists structured moderation reports and fans out instant
// alerts to subscribed reviewers.
type ReportService struct {
	store  reportStore
	sender messageSender
}

func NewReportService(store reportStore, sender messageSender) *ReportService {
	return &ReportService{store: store, sender: sender}
}

// FileAndNotify persists a pending report for the message and alerts every
// instant-alert subscriber of the chat. Returns the report id.
func (r *ReportService) FileAndNotify(ctx context.Context, msg *api.Message, violations []Violation, action Action) (string, error) {
	report := &db.AdminReport{
		ID:                uuid.New(),
		ChatID:            msg.Chat.ID,
		UserID:            msg.From.ID,
		RecommendedAction: string(action),
		Status:            db.ReportStatusPending,
		CreatedAt:         time.Now(),
	}
	for _, violation := range violations {
		report.Violations = append(report.Violations, db.ReportViolation{
			Kind:     string(violation.Kind),
			Severity: violation.Severity,
			Summary:  violation.Summary,
		})
	}

	if err := r.store.CreateReport(ctx, report); err != nil {
		return "", fmt.Errorf("create report: %w", err)
	}
	if err := r.NotifySubscribers(ctx, report); err != nil {
		r.getLogEntry().WithError(err).Error("failed to notify some subscribers")
	}
	return report.ID, nil
}

// NotifySubscribers delivers the alert to each instant-alert subscriber.
// Per-recipient failures are isolated: one unreachable reviewer never blocks
// the rest.
func (r *ReportService) NotifySubscribers(ctx context.Context, report *db.AdminReport) error {
	subs, err := r.store.GetSubscriptions(ctx, report.ChatID)
	if err != nil {
		return fmt.Errorf("get subscriptions: %w", err)
	}

	text := r.renderAlert(report)
	g := new(errgroup.Group)
	for _, sub := range subs {
		if !sub.InstantAlert {
			continue
		}
		g.Go(func() error {
			if err := r.sender.SendMessage(ctx, sub.ReviewerID, text); err != nil {
				r.getLogEntry().WithError(err).WithField("reviewer_id", sub.ReviewerID).Error("failed to deliver alert")
				return fmt.Errorf("deliver to %d: %w", sub.ReviewerID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (r *ReportService) renderAlert(report *db.AdminReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s #%s\n", i18n.Get("New moderation report", "en"), report.ID)
	fmt.Fprintf(&b, "chat: %d, user: %d\n", report.ChatID, report.UserID)
	for _, violation := range report.Violations {
		fmt.Fprintf(&b, "- %s (severity %d): %s\n", violation.Kind, violation.Severity, violation.Summary)
	}
	fmt.Fprintf(&b, "recommended: %s", report.RecommendedAction)
	return b.String()
}

// Approve marks a pending report approved. Re-resolving a resolved report
// fails with ErrReportResolved.
func (r *ReportService) Approve(ctx context.Context, reportID string, reviewerID int64) error {
	return r.store.ResolveReport(ctx, reportID, db.ReportStatusApproved, reviewerID, "", time.Now())
}

func (r *ReportService) Reject(ctx context.Context, reportID string, reviewerID int64) error {
	return r.store.ResolveReport(ctx, reportID, db.ReportStatusRejected, reviewerID, "", time.Now())
}

// Annotate resolves the report with a reviewer note attached.
func (r *ReportService) Annotate(ctx context.Context, reportID string, reviewerID int64, status, note string) error {
	if status != db.ReportStatusApproved && status != db.ReportStatusRejected {
		return fmt.Errorf("invalid terminal status %q", status)
	}
	return r.store.ResolveReport(ctx, reportID, status, reviewerID, note, time.Now())
}

func (r *ReportService) getLogEntry() *log.Entry {
	return log.WithField("object", "ReportService")
}

// DailySummary periodically aggregates the trailing window of reports per
// chat into a digest for daily-summary subscribers. Independent of the
// instant-alert path.
type DailySummary struct {
	store    reportStore
	sender   messageSender
	interval time.Duration
	window   time.Duration

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewDailySummary(store reportStore, sender messageSender, interval, window time.Duration) *DailySummary {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &DailySummary{
		store:    store,
		sender:   sender,
		interval: interval,
		window:   window,
	}
}

func (d *DailySummary) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if err := d.RunOnce(runCtx); err != nil {
					d.getLogEntry().WithError(err).Error("daily summary run failed")
				}
			}
		}
	}()

	d.started = true
	return nil
}

func (d *DailySummary) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return nil
	}
	d.started = false
	cancel := d.cancel
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.wg.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// RunOnce builds and delivers one digest per chat with recent reports.
func (d *DailySummary) RunOnce(ctx context.Context) error {
	since := time.Now().Add(-d.window)
	chatIDs, err := d.store.GetReportedChatsSince(ctx, since)
	if err != nil {
		return fmt.Errorf("list reported chats: %w", err)
	}

	for _, chatID := range chatIDs {
		reports, err := d.store.GetReportsSince(ctx, chatID, since)
		if err != nil {
			d.getLogEntry().WithError(err).WithField("chat_id", chatID).Error("failed to load reports")
			continue
		}
		if len(reports) == 0 {
			continue
		}
		subs, err := d.store.GetSubscriptions(ctx, chatID)
		if err != nil {
			d.getLogEntry().WithError(err).WithField("chat_id", chatID).Error("failed to load subscriptions")
			continue
		}

		text := renderDigest(chatID, reports)
		for _, sub := range subs {
			if !sub.DailySummary {
				continue
			}
			if err := d.sender.SendMessage(ctx, sub.ReviewerID, text); err != nil {
				d.getLogEntry().WithError(err).WithField("reviewer_id", sub.ReviewerID).Error("failed to deliver digest")
			}
		}
	}
	return nil
}

func renderDigest(chatID int64, reports []*db.AdminReport) string {
	pending := 0
	byKind := map[string]int{}
	for _, report := range reports {
		if report.Status == db.ReportStatusPending {
			pending++
		}
		for _, violation := range report.Violations {
			byKind[violation.Kind]++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s: chat %d\n", i18n.Get("Daily moderation summary", "en"), chatID)
	fmt.Fprintf(&b, "reports: %d (%d pending)\n", len(reports), pending)
	for kind, count := range byKind {
		fmt.Fprintf(&b, "- %s: %d\n", kind, count)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (d *DailySummary) getLogEntry() *log.Entry {
	return log.WithField("object", "DailySummary")
}
