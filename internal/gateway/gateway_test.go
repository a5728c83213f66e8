package gateway_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/basket/tzwatch/internal/gateway"
	"github.com/basket/tzwatch/internal/model"
	"github.com/basket/tzwatch/internal/orchestrator"
	"github.com/basket/tzwatch/internal/persistence"
	"github.com/basket/tzwatch/internal/tzidentity"
)

func openTestStore(t *testing.T) *persistence.Store {
	t.Helper()
	store, err := persistence.Open(filepath.Join(t.TempDir(), "tzwatch.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestServer(t *testing.T) (*gateway.Server, *persistence.Store, *gateway.TokenSigner) {
	t.Helper()
	store := openTestStore(t)
	identity := &tzidentity.Manager{Store: store, Threshold: 0.7}
	signer := gateway.NewTokenSigner("test-secret", time.Hour)
	srv := gateway.New(gateway.Config{
		Store:        store,
		Identity:     identity,
		Orchestrator: &orchestrator.Orchestrator{Store: store},
		Signer:       signer,
	})
	return srv, store, signer
}

func TestHandleHealth_ReportsDBOK(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" || body["db_ok"] != true {
		t.Fatalf("unexpected health body: %v", body)
	}
}

func TestHandleDiscordStub_ReturnsNotImplemented(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/hooks/discord", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", rec.Code)
	}
}

func TestHandleVerifyPage_RequiresToken(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/verify", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 with no token, got %d", rec.Code)
	}
}

func TestHandleVerifyPage_RejectsInvalidToken(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/verify?token=garbage", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 with invalid token, got %d", rec.Code)
	}
}

func TestHandleVerifyPage_AcceptsValidToken(t *testing.T) {
	srv, _, signer := newTestServer(t)
	token := signer.Generate(model.PlatformTelegram, "user-1", "chat-1", time.Now())

	req := httptest.NewRequest(http.MethodGet, "/verify?token="+token, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("verify-form")) {
		t.Fatalf("expected verification form in body")
	}
}

func TestHandleVerifySubmit_SavesTimezone(t *testing.T) {
	srv, store, signer := newTestServer(t)
	token := signer.Generate(model.PlatformTelegram, "user-1", "chat-1", time.Now())

	payload, _ := json.Marshal(map[string]string{"token": token, "tz_iana": "Europe/Moscow"})
	req := httptest.NewRequest(http.MethodPost, "/api/verify", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	user, err := store.GetUser(context.Background(), model.PlatformTelegram, "user-1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.TzIANA != "Europe/Moscow" {
		t.Fatalf("expected saved tz Europe/Moscow, got %q", user.TzIANA)
	}
}

func TestHandleVerifySubmit_RejectsInvalidTimezone(t *testing.T) {
	srv, _, signer := newTestServer(t)
	token := signer.Generate(model.PlatformTelegram, "user-1", "chat-1", time.Now())

	payload, _ := json.Marshal(map[string]string{"token": token, "tz_iana": "Not/AZone"})
	req := httptest.NewRequest(http.MethodPost, "/api/verify", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid timezone, got %d", rec.Code)
	}
}

func TestHandleVerifySubmit_RejectsExpiredToken(t *testing.T) {
	srv, _, signer := newTestServer(t)
	token := signer.Generate(model.PlatformTelegram, "user-1", "chat-1", time.Now().Add(-2*time.Hour))

	payload, _ := json.Marshal(map[string]string{"token": token, "tz_iana": "UTC"})
	req := httptest.NewRequest(http.MethodPost, "/api/verify", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for expired token, got %d", rec.Code)
	}
}
