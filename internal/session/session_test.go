package session_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/basket/tzwatch/internal/config"
	"github.com/basket/tzwatch/internal/geocoder"
	"github.com/basket/tzwatch/internal/model"
	"github.com/basket/tzwatch/internal/persistence"
	"github.com/basket/tzwatch/internal/session"
	"github.com/basket/tzwatch/internal/tzidentity"
)

func openTestStore(t *testing.T) *persistence.Store {
	t.Helper()
	dir := t.TempDir()
	store, err := persistence.Open(filepath.Join(dir, "tzwatch.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestManager(t *testing.T) *session.Manager {
	store := openTestStore(t)
	return &session.Manager{
		Store:    store,
		Identity: &tzidentity.Manager{Store: store, DecayPerDay: 0.05, Threshold: 0.3, ChatDefaultConfidence: 0.5},
		Geocoder: geocoder.New(),
		Config:   config.SessionConfig{TimezoneTTLMinutes: 30, GeoIntentTTLMinutes: 10, MaxAttempts: 3},
	}
}

func TestCreate_SecondActiveSessionRejected(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	now := time.Now()

	if _, err := m.Create(ctx, model.PlatformTelegram, "c1", "u1", model.GoalAwaitingTimezone, model.SessionContext{}, now); err != nil {
		t.Fatalf("create first session: %v", err)
	}
	_, err := m.Create(ctx, model.PlatformTelegram, "c1", "u1", model.GoalAwaitingTimezone, model.SessionContext{}, now)
	if err != persistence.ErrSessionAlreadyActive {
		t.Fatalf("expected ErrSessionAlreadyActive, got %v", err)
	}
}

func TestConfirmRelocationTurn_ConfirmationSavesAndCompletes(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	now := time.Now()

	sess, err := m.Create(ctx, model.PlatformTelegram, "c2", "u2", model.GoalConfirmRelocation,
		model.SessionContext{ResolvedCity: "Berlin", ResolvedTz: "Europe/Berlin"}, now)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	result, err := m.HandleTurn(ctx, sess, model.PlatformTelegram, "c2", "u2", "yes", now)
	if err != nil {
		t.Fatalf("handle turn: %v", err)
	}
	if !result.Terminal || result.Status != model.SessionCompleted {
		t.Fatalf("expected terminal completed, got %+v", result)
	}
	if result.Reply != "Saved: Europe/Berlin" {
		t.Fatalf("unexpected reply: %q", result.Reply)
	}

	user, err := m.Store.GetUser(ctx, model.PlatformTelegram, "u2")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.TzIANA != "Europe/Berlin" || user.Source != model.SourceRelocationConfirmed {
		t.Fatalf("expected saved user state, got %+v", user)
	}
}

func TestConfirmRelocationTurn_RejectionAsksForCity(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	now := time.Now()

	sess, err := m.Create(ctx, model.PlatformTelegram, "c3", "u3", model.GoalConfirmRelocation,
		model.SessionContext{ResolvedCity: "Berlin", ResolvedTz: "Europe/Berlin"}, now)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	result, err := m.HandleTurn(ctx, sess, model.PlatformTelegram, "c3", "u3", "нет", now)
	if err != nil {
		t.Fatalf("handle turn: %v", err)
	}
	if result.Terminal {
		t.Fatalf("expected non-terminal turn, got %+v", result)
	}
	if result.Reply != "Got it — what city, then?" {
		t.Fatalf("unexpected reply: %q", result.Reply)
	}
	if sess.Context.ResolvedTz != "" {
		t.Fatalf("expected resolved tz cleared after rejection, got %q", sess.Context.ResolvedTz)
	}
}

func TestConfirmRelocationTurn_OtherTextGeocodesAndReprompts(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	now := time.Now()

	sess, err := m.Create(ctx, model.PlatformTelegram, "c4", "u4", model.GoalConfirmRelocation,
		model.SessionContext{}, now)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	result, err := m.HandleTurn(ctx, sess, model.PlatformTelegram, "c4", "u4", "Tokyo", now)
	if err != nil {
		t.Fatalf("handle turn: %v", err)
	}
	if result.Terminal {
		t.Fatalf("expected non-terminal re-prompt, got %+v", result)
	}
	if result.Reply != "You're now in Tokyo (Asia/Tokyo)?" {
		t.Fatalf("unexpected reply: %q", result.Reply)
	}
	if sess.Context.ResolvedTz != "Asia/Tokyo" {
		t.Fatalf("expected resolved tz set from geocode, got %q", sess.Context.ResolvedTz)
	}
}

func TestConfirmRelocationTurn_AttemptLimitFails(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	now := time.Now()

	sess, err := m.Create(ctx, model.PlatformTelegram, "c5", "u5", model.GoalConfirmRelocation,
		model.SessionContext{}, now)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	var last session.TurnResult
	for i := 0; i < 3; i++ {
		last, err = m.HandleTurn(ctx, sess, model.PlatformTelegram, "c5", "u5", "not a real city xyzzy", now)
		if err != nil {
			t.Fatalf("turn %d: %v", i, err)
		}
	}
	if !last.Terminal || last.Status != model.SessionFailed {
		t.Fatalf("expected FAILED after exhausting attempts, got %+v", last)
	}
}

func TestTimezoneTurn_ExplicitIANAResolvesImmediately(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	now := time.Now()

	sess, err := m.Create(ctx, model.PlatformSlack, "c6", "u6", model.GoalAwaitingTimezone, model.SessionContext{}, now)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	result, err := m.HandleTurn(ctx, sess, model.PlatformSlack, "c6", "u6", "Europe/Moscow", now)
	if err != nil {
		t.Fatalf("handle turn: %v", err)
	}
	if !result.Terminal || result.Status != model.SessionCompleted {
		t.Fatalf("expected completed, got %+v", result)
	}
	if result.Reply != "Saved: Europe/Moscow" {
		t.Fatalf("unexpected reply: %q", result.Reply)
	}

	user, err := m.Store.GetUser(ctx, model.PlatformSlack, "u6")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.TzIANA != "Europe/Moscow" || user.Source != model.SourceCityPick {
		t.Fatalf("unexpected user state: %+v", user)
	}
}

func TestTimezoneTurn_CityNameResolvesViaGeocoder(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	now := time.Now()

	sess, err := m.Create(ctx, model.PlatformDiscord, "c7", "u7", model.GoalReverifyTimezone, model.SessionContext{}, now)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	result, err := m.HandleTurn(ctx, sess, model.PlatformDiscord, "c7", "u7", "Berlin", now)
	if err != nil {
		t.Fatalf("handle turn: %v", err)
	}
	if result.Reply != "Saved: Europe/Berlin" {
		t.Fatalf("unexpected reply: %q", result.Reply)
	}
}

func TestTimezoneTurn_UnresolvedTextReprompts(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	now := time.Now()

	sess, err := m.Create(ctx, model.PlatformTelegram, "c8", "u8", model.GoalAwaitingTimezone, model.SessionContext{}, now)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	result, err := m.HandleTurn(ctx, sess, model.PlatformTelegram, "c8", "u8", "blahblahblah", now)
	if err != nil {
		t.Fatalf("handle turn: %v", err)
	}
	if result.Terminal {
		t.Fatalf("expected non-terminal reprompt, got %+v", result)
	}
	if sess.Context.Attempts != 1 {
		t.Fatalf("expected attempts incremented to 1, got %d", sess.Context.Attempts)
	}
}

func TestGeoIntentTurn_RelocationReplySavesSeededCandidate(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	now := time.Now()

	sess, err := m.Create(ctx, model.PlatformTelegram, "c10", "u10", model.GoalGeoIntent,
		model.SessionContext{ResolvedCity: "Berlin", ResolvedTz: "Europe/Berlin"}, now)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	result, err := m.HandleTurn(ctx, sess, model.PlatformTelegram, "c10", "u10", "yeah I moved here", now)
	if err != nil {
		t.Fatalf("handle turn: %v", err)
	}
	if !result.Terminal || result.Status != model.SessionCompleted {
		t.Fatalf("expected completed, got %+v", result)
	}
	if result.Reply != "Saved: Berlin (Europe/Berlin)" {
		t.Fatalf("unexpected reply: %q", result.Reply)
	}

	user, err := m.Store.GetUser(ctx, model.PlatformTelegram, "u10")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.TzIANA != "Europe/Berlin" || user.Source != model.SourceRelocationConfirmed {
		t.Fatalf("unexpected user state: %+v", user)
	}
}

func TestGeoIntentTurn_TimeQueryReplyEndsWithNoChange(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	now := time.Now()

	sess, err := m.Create(ctx, model.PlatformTelegram, "c11", "u11", model.GoalGeoIntent,
		model.SessionContext{ResolvedCity: "Tokyo", ResolvedTz: "Asia/Tokyo"}, now)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	result, err := m.HandleTurn(ctx, sess, model.PlatformTelegram, "c11", "u11", "just mentioning the meeting time", now)
	if err != nil {
		t.Fatalf("handle turn: %v", err)
	}
	if !result.Terminal || result.Status != model.SessionCompleted {
		t.Fatalf("expected completed, got %+v", result)
	}

	user, err := m.Store.GetUser(ctx, model.PlatformTelegram, "u11")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.TzIANA != "" {
		t.Fatalf("expected no timezone saved, got %+v", user)
	}
}

func TestGeoIntentTurn_AmbiguousReplyReprompts(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	now := time.Now()

	sess, err := m.Create(ctx, model.PlatformTelegram, "c12", "u12", model.GoalGeoIntent, model.SessionContext{}, now)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	result, err := m.HandleTurn(ctx, sess, model.PlatformTelegram, "c12", "u12", "lol what", now)
	if err != nil {
		t.Fatalf("handle turn: %v", err)
	}
	if result.Terminal {
		t.Fatalf("expected non-terminal reprompt, got %+v", result)
	}
	if sess.Context.Attempts != 1 {
		t.Fatalf("expected attempts incremented to 1, got %d", sess.Context.Attempts)
	}
}

func TestTimezoneTurn_FailureSurfacesVerifyURL(t *testing.T) {
	m := newTestManager(t)
	m.VerifyURL = func(platform model.Platform, userID, chatID string, now time.Time) string {
		return "https://tzwatch.example/verify?u=" + userID
	}
	ctx := context.Background()
	now := time.Now()

	sess, err := m.Create(ctx, model.PlatformTelegram, "c9", "u9", model.GoalAwaitingTimezone, model.SessionContext{}, now)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	var last session.TurnResult
	for i := 0; i < 3; i++ {
		last, err = m.HandleTurn(ctx, sess, model.PlatformTelegram, "c9", "u9", "nonsense", now)
		if err != nil {
			t.Fatalf("turn %d: %v", i, err)
		}
	}
	if !last.Terminal || last.Status != model.SessionFailed {
		t.Fatalf("expected FAILED, got %+v", last)
	}
	if !strings.Contains(last.Reply, "https://tzwatch.example/verify?u=u9") {
		t.Fatalf("expected reply to include verify url, got %q", last.Reply)
	}
}
