package moderation

import (
	"context"
	"testing"

	"github.com/iamwavecut/guardbot/internal/db"
	guarderrors "github.com/iamwavecut/guardbot/internal/errors"
)

type fakeAdminStore struct {
	settings      map[int64]*db.Settings
	settingsReads int
	resets        []int64
	subs          map[int64]*db.ReportSubscription
}

func newFakeAdminStore() *fakeAdminStore {
	return &fakeAdminStore{
		settings: make(map[int64]*db.Settings),
		subs:     make(map[int64]*db.ReportSubscription),
	}
}

func (s *fakeAdminStore) GetSettings(ctx context.Context, chatID int64) (*db.Settings, error) {
	s.settingsReads++
	if settings, ok := s.settings[chatID]; ok {
		copied := *settings
		return &copied, nil
	}
	return nil, guarderrors.ErrNotFound
}

func (s *fakeAdminStore) SetSettings(ctx context.Context, settings *db.Settings) error {
	copied := *settings
	s.settings[settings.ID] = &copied
	return nil
}

func (s *fakeAdminStore) ResetPunishmentState(ctx context.Context, chatID, userID int64) error {
	s.resets = append(s.resets, userID)
	return nil
}

func (s *fakeAdminStore) Subscribe(ctx context.Context, sub *db.ReportSubscription) error {
	s.subs[sub.ReviewerID] = sub
	return nil
}

func (s *fakeAdminStore) Unsubscribe(ctx context.Context, reviewerID, chatID int64) error {
	delete(s.subs, reviewerID)
	return nil
}

func TestAdminSetEnabledCreatesDefaults(t *testing.T) {
	t.Parallel()

	store := newFakeAdminStore()
	admin := NewAdminService(store)

	if err := admin.SetEnabled(context.Background(), 42, false); err != nil {
		t.Fatalf("set enabled: %v", err)
	}
	settings, ok := store.settings[42]
	if !ok {
		t.Fatal("settings row must be created on first toggle")
	}
	if settings.Enabled {
		t.Fatal("enabled flag not persisted")
	}
}

func TestAdminSetEnforceAdminsKeepsOtherFields(t *testing.T) {
	t.Parallel()

	store := newFakeAdminStore()
	store.settings[42] = &db.Settings{ID: 42, Enabled: false, Language: "ru"}
	admin := NewAdminService(store)

	if err := admin.SetEnforceAdmins(context.Background(), 42, true); err != nil {
		t.Fatalf("set enforce admins: %v", err)
	}
	settings := store.settings[42]
	if !settings.EnforceAdmins {
		t.Fatal("enforce flag not persisted")
	}
	if settings.Enabled || settings.Language != "ru" {
		t.Fatalf("unrelated fields changed: %+v", settings)
	}
}

func TestAdminResetUser(t *testing.T) {
	t.Parallel()

	store := newFakeAdminStore()
	admin := NewAdminService(store)

	if err := admin.ResetUser(context.Background(), 42, 100); err != nil {
		t.Fatalf("reset user: %v", err)
	}
	if len(store.resets) != 1 || store.resets[0] != 100 {
		t.Fatalf("unexpected resets: %+v", store.resets)
	}
}

func TestAdminSubscriptionRoundTrip(t *testing.T) {
	t.Parallel()

	store := newFakeAdminStore()
	admin := NewAdminService(store)
	ctx := context.Background()

	if err := admin.Subscribe(ctx, 5, 42, true, false); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	sub := store.subs[5]
	if sub == nil || !sub.InstantAlert || sub.DailySummary {
		t.Fatalf("unexpected subscription: %+v", sub)
	}
	if err := admin.Unsubscribe(ctx, 5, 42); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if _, ok := store.subs[5]; ok {
		t.Fatal("subscription not removed")
	}
}
