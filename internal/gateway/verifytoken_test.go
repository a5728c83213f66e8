package gateway_test

import (
	"strings"
	"testing"
	"time"

	"github.com/basket/tzwatch/internal/gateway"
	"github.com/basket/tzwatch/internal/model"
)

func TestTokenSigner_GenerateParseRoundTrip(t *testing.T) {
	signer := gateway.NewTokenSigner("test-secret", time.Hour)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	token := signer.Generate(model.PlatformTelegram, "user-1", "chat-1", now)
	parsed, ok := signer.Parse(token, now.Add(time.Minute))
	if !ok {
		t.Fatalf("expected token to parse")
	}
	if parsed.Platform != model.PlatformTelegram || parsed.UserID != "user-1" || parsed.ChatID != "chat-1" {
		t.Fatalf("unexpected parsed token: %+v", parsed)
	}
}

func TestTokenSigner_RejectsExpiredToken(t *testing.T) {
	signer := gateway.NewTokenSigner("test-secret", time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	token := signer.Generate(model.PlatformSlack, "user-1", "chat-1", now)
	if _, ok := signer.Parse(token, now.Add(2*time.Minute)); ok {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestTokenSigner_RejectsTamperedPayload(t *testing.T) {
	signer := gateway.NewTokenSigner("test-secret", time.Hour)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	token := signer.Generate(model.PlatformDiscord, "user-1", "chat-1", now)
	tampered := token[:len(token)-8] + "deadbeef"
	if _, ok := signer.Parse(tampered, now); ok {
		t.Fatalf("expected tampered token to be rejected")
	}
}

func TestTokenSigner_RejectsWrongSecret(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	token := gateway.NewTokenSigner("secret-a", time.Hour).Generate(model.PlatformWhatsApp, "user-1", "chat-1", now)

	if _, ok := gateway.NewTokenSigner("secret-b", time.Hour).Parse(token, now); ok {
		t.Fatalf("expected token signed with a different secret to be rejected")
	}
}

func TestTokenSigner_VerifyURLIncludesToken(t *testing.T) {
	signer := gateway.NewTokenSigner("test-secret", time.Hour)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	url := signer.VerifyURL("https://tz.example.com/", model.PlatformTelegram, "user-1", "chat-1", now)
	if !strings.HasPrefix(url, "https://tz.example.com/verify?token=") {
		t.Fatalf("VerifyURL() = %q, want https://tz.example.com/verify?token=... prefix", url)
	}
}

func TestTokenSigner_MalformedTokenRejected(t *testing.T) {
	signer := gateway.NewTokenSigner("test-secret", time.Hour)
	if _, ok := signer.Parse("not-a-token", time.Now()); ok {
		t.Fatalf("expected malformed token to be rejected")
	}
}
