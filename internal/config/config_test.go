package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/basket/tzwatch/internal/config"
)

func TestLoad_FromTzwatchHome(t *testing.T) {
	home := filepath.Join(t.TempDir(), "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(home, "config.yaml"), []byte("timezone:\n  default: Europe/Moscow\ndedupe:\n  ttl_seconds: 120\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TZWATCH_HOME", home)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Timezone.Default != "Europe/Moscow" {
		t.Fatalf("expected default tz Europe/Moscow, got %q", cfg.Timezone.Default)
	}
	if cfg.Dedupe.TTLSeconds != 120 {
		t.Fatalf("expected ttl_seconds=120, got %d", cfg.Dedupe.TTLSeconds)
	}
	if cfg.Database.Path != filepath.Join(home, "tzwatch.db") {
		t.Fatalf("expected derived db path, got %q", cfg.Database.Path)
	}
}

func TestLoad_DefaultsWhenNoConfigFile(t *testing.T) {
	home := filepath.Join(t.TempDir(), "home")
	t.Setenv("TZWATCH_HOME", home)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Confidence.Threshold != 0.7 {
		t.Fatalf("expected default threshold 0.7, got %v", cfg.Confidence.Threshold)
	}
	if cfg.Throttle.ThrottleSeconds != 2 {
		t.Fatalf("expected default throttle 2s, got %d", cfg.Throttle.ThrottleSeconds)
	}
	if cfg.LLM.CircuitBreaker.FailureThreshold != 3 {
		t.Fatalf("expected default failure threshold 3, got %d", cfg.LLM.CircuitBreaker.FailureThreshold)
	}
}

func TestLoad_EnvOverridesSecrets(t *testing.T) {
	home := filepath.Join(t.TempDir(), "home")
	t.Setenv("TZWATCH_HOME", home)
	t.Setenv("TELEGRAM_BOT_TOKEN", "123456:abcdef")
	t.Setenv("SLACK_SIGNING_SECRET", "shh")
	t.Setenv("WHATSAPP_APP_SECRET", "wapp-secret")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Channels.Telegram.Token != "123456:abcdef" {
		t.Fatalf("expected telegram token override, got %q", cfg.Channels.Telegram.Token)
	}
	if cfg.Channels.Slack.SigningSecret != "shh" {
		t.Fatalf("expected slack signing secret override, got %q", cfg.Channels.Slack.SigningSecret)
	}
	if cfg.Channels.WhatsApp.AppSecret != "wapp-secret" {
		t.Fatalf("expected whatsapp app secret override, got %q", cfg.Channels.WhatsApp.AppSecret)
	}
	if cfg.LLM.APIKey != "sk-ant-test" {
		t.Fatalf("expected llm api key override, got %q", cfg.LLM.APIKey)
	}
}

func TestLoad_AppSecretKeyFallsBackToVerifyTokenSecret(t *testing.T) {
	home := filepath.Join(t.TempDir(), "home")
	t.Setenv("TZWATCH_HOME", home)
	t.Setenv("VERIFY_TOKEN_SECRET", "verify-me")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.AppSecretKey != "verify-me" {
		t.Fatalf("expected app secret key from VERIFY_TOKEN_SECRET, got %q", cfg.AppSecretKey)
	}
}
