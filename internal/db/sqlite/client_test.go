package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iamwavecut/guardbot/internal/db"
	guarderrors "github.com/iamwavecut/guardbot/internal/errors"
)

func TestSettingsRoundTrip(t *testing.T) {
	t.Parallel()

	client := NewInMemoryClient()
	defer client.Close()
	ctx := context.Background()

	if _, err := client.GetSettings(ctx, 42); !errors.Is(err, guarderrors.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}

	settings := db.DefaultSettings(42)
	settings.Language = "ru"
	settings.EnforceAdmins = true
	if err := client.SetSettings(ctx, settings); err != nil {
		t.Fatalf("set settings: %v", err)
	}

	loaded, err := client.GetSettings(ctx, 42)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if !loaded.Enabled || !loaded.EnforceAdmins || loaded.Language != "ru" {
		t.Fatalf("unexpected settings: %+v", loaded)
	}

	loaded.Enabled = false
	if err := client.SetSettings(ctx, loaded); err != nil {
		t.Fatalf("upsert settings: %v", err)
	}
	reloaded, err := client.GetSettings(ctx, 42)
	if err != nil {
		t.Fatalf("reload settings: %v", err)
	}
	if reloaded.Enabled {
		t.Fatal("upsert did not overwrite")
	}
}

func TestViolationLedgerAppend(t *testing.T) {
	t.Parallel()

	client := NewInMemoryClient()
	defer client.Close()
	ctx := context.Background()

	expiry := time.Now().Add(time.Hour)
	entry := &db.ViolationEntry{
		ChatID:      42,
		UserID:      100,
		Kind:        "text_profanity",
		Severity:    3,
		Summary:     "matched blocked pattern",
		Confidence:  1,
		EvidenceRef: "42:7",
		Punishment:  "mute_5m",
		CreatedAt:   time.Now(),
		ExpiresAt:   &expiry,
	}
	if err := client.AddViolation(ctx, entry); err != nil {
		t.Fatalf("add violation: %v", err)
	}
	if entry.ID == 0 {
		t.Fatal("insert id not backfilled")
	}

	second := &db.ViolationEntry{ChatID: 42, UserID: 100, Kind: "adult_image", Severity: 3, CreatedAt: time.Now()}
	if err := client.AddViolation(ctx, second); err != nil {
		t.Fatalf("add second violation: %v", err)
	}

	entries, err := client.GetViolations(ctx, 42, 100)
	if err != nil {
		t.Fatalf("get violations: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Kind != "text_profanity" || entries[1].Kind != "adult_image" {
		t.Fatalf("wrong order: %+v", entries)
	}

	other, err := client.GetViolations(ctx, 42, 999)
	if err != nil {
		t.Fatalf("get violations for other user: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("leaked entries across users: %+v", other)
	}
}

func TestPunishmentStateZeroValue(t *testing.T) {
	t.Parallel()

	client := NewInMemoryClient()
	defer client.Close()

	state, err := client.GetPunishmentState(context.Background(), 42, 100)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if state.TotalPoints != 0 || state.PermanentlyBanned {
		t.Fatalf("unexpected zero state: %+v", state)
	}
}

func TestIncrementPunishmentPoints(t *testing.T) {
	t.Parallel()

	client := NewInMemoryClient()
	defer client.Close()
	ctx := context.Background()

	for n := 1; n <= 3; n++ {
		state, err := client.IncrementPunishmentPoints(ctx, 42, 100)
		if err != nil {
			t.Fatalf("increment %d: %v", n, err)
		}
		if state.TotalPoints != n {
			t.Fatalf("increment %d: got %d points", n, state.TotalPoints)
		}
		if state.LastViolationAt == nil {
			t.Fatal("last violation time not set")
		}
	}
}

func TestIncrementPunishmentPointsConcurrent(t *testing.T) {
	t.Parallel()

	client := NewInMemoryClient()
	defer client.Close()
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	for n := 0; n < workers; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := client.IncrementPunishmentPoints(ctx, 42, 100); err != nil {
				t.Errorf("increment: %v", err)
			}
		}()
	}
	wg.Wait()

	state, err := client.GetPunishmentState(ctx, 42, 100)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if state.TotalPoints != workers {
		t.Fatalf("got %d points, want %d", state.TotalPoints, workers)
	}
}

func TestSetLevelAndReset(t *testing.T) {
	t.Parallel()

	client := NewInMemoryClient()
	defer client.Close()
	ctx := context.Background()

	if _, err := client.IncrementPunishmentPoints(ctx, 42, 100); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := client.SetPunishmentLevel(ctx, 42, 100, 5, true); err != nil {
		t.Fatalf("set level: %v", err)
	}

	state, err := client.GetPunishmentState(ctx, 42, 100)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if state.PunishmentLevel != 5 || !state.PermanentlyBanned {
		t.Fatalf("unexpected state: %+v", state)
	}

	if err := client.ResetPunishmentState(ctx, 42, 100); err != nil {
		t.Fatalf("reset: %v", err)
	}
	state, err = client.GetPunishmentState(ctx, 42, 100)
	if err != nil {
		t.Fatalf("get state after reset: %v", err)
	}
	if state.TotalPoints != 0 || state.PunishmentLevel != 0 || state.PermanentlyBanned {
		t.Fatalf("reset incomplete: %+v", state)
	}
}

func TestReportLifecycle(t *testing.T) {
	t.Parallel()

	client := NewInMemoryClient()
	defer client.Close()
	ctx := context.Background()

	report := &db.AdminReport{
		ID:     "r1",
		ChatID: 42,
		UserID: 100,
		Violations: db.ReportEvidence{
			{Kind: "adult_image", Severity: 3, Summary: "explicit"},
		},
		RecommendedAction: "mute_1h",
		Status:            db.ReportStatusPending,
		CreatedAt:         time.Now(),
	}
	if err := client.CreateReport(ctx, report); err != nil {
		t.Fatalf("create report: %v", err)
	}

	loaded, err := client.GetReport(ctx, "r1")
	if err != nil {
		t.Fatalf("get report: %v", err)
	}
	if loaded.Status != db.ReportStatusPending || len(loaded.Violations) != 1 {
		t.Fatalf("unexpected report: %+v", loaded)
	}
	if loaded.Violations[0].Kind != "adult_image" {
		t.Fatalf("evidence did not round-trip: %+v", loaded.Violations)
	}

	if err := client.ResolveReport(ctx, "r1", db.ReportStatusApproved, 5, "confirmed", time.Now()); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	err = client.ResolveReport(ctx, "r1", db.ReportStatusRejected, 6, "", time.Now())
	if !errors.Is(err, guarderrors.ErrReportResolved) {
		t.Fatalf("got %v, want ErrReportResolved", err)
	}

	loaded, err = client.GetReport(ctx, "r1")
	if err != nil {
		t.Fatalf("reload report: %v", err)
	}
	if loaded.Status != db.ReportStatusApproved || loaded.Annotation != "confirmed" {
		t.Fatalf("resolution lost: %+v", loaded)
	}
	if loaded.ReviewerID == nil || *loaded.ReviewerID != 5 {
		t.Fatalf("reviewer lost: %+v", loaded.ReviewerID)
	}

	if _, err := client.GetReport(ctx, "missing"); !errors.Is(err, guarderrors.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestReportsSinceWindow(t *testing.T) {
	t.Parallel()

	client := NewInMemoryClient()
	defer client.Close()
	ctx := context.Background()
	now := time.Now()

	fresh := &db.AdminReport{ID: "fresh", ChatID: 42, UserID: 1, Status: db.ReportStatusPending, CreatedAt: now.Add(-time.Hour)}
	stale := &db.AdminReport{ID: "stale", ChatID: 42, UserID: 2, Status: db.ReportStatusPending, CreatedAt: now.Add(-48 * time.Hour)}
	elsewhere := &db.AdminReport{ID: "elsewhere", ChatID: 7, UserID: 3, Status: db.ReportStatusPending, CreatedAt: now.Add(-time.Hour)}
	for _, report := range []*db.AdminReport{fresh, stale, elsewhere} {
		if err := client.CreateReport(ctx, report); err != nil {
			t.Fatalf("create %s: %v", report.ID, err)
		}
	}

	since := now.Add(-24 * time.Hour)
	reports, err := client.GetReportsSince(ctx, 42, since)
	if err != nil {
		t.Fatalf("get reports since: %v", err)
	}
	if len(reports) != 1 || reports[0].ID != "fresh" {
		t.Fatalf("unexpected reports: %+v", reports)
	}

	chats, err := client.GetReportedChatsSince(ctx, since)
	if err != nil {
		t.Fatalf("get reported chats: %v", err)
	}
	if len(chats) != 2 {
		t.Fatalf("got chats %v, want two distinct", chats)
	}
}

func TestSubscriptionUpsert(t *testing.T) {
	t.Parallel()

	client := NewInMemoryClient()
	defer client.Close()
	ctx := context.Background()

	sub := &db.ReportSubscription{ReviewerID: 5, ChatID: 42, InstantAlert: true, DailySummary: false}
	if err := client.Subscribe(ctx, sub); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	sub.DailySummary = true
	if err := client.Subscribe(ctx, sub); err != nil {
		t.Fatalf("re-subscribe: %v", err)
	}

	subs, err := client.GetSubscriptions(ctx, 42)
	if err != nil {
		t.Fatalf("get subscriptions: %v", err)
	}
	if len(subs) != 1 || !subs[0].DailySummary || !subs[0].InstantAlert {
		t.Fatalf("unexpected subscriptions: %+v", subs)
	}

	if err := client.Unsubscribe(ctx, 5, 42); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	subs, err = client.GetSubscriptions(ctx, 42)
	if err != nil {
		t.Fatalf("get subscriptions after unsubscribe: %v", err)
	}
	if len(subs) != 0 {
		t.Fatalf("subscription survived: %+v", subs)
	}
}
