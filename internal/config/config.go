// Package config loads the service's YAML configuration, merged over
// built-in defaults with environment-variable overrides for secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/basket/tzwatch/internal/model"
)

// AppConfig holds process-level bind/runtime settings.
type AppConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	BaseURL string `yaml:"base_url"`
}

// DatabaseConfig points at the sqlite-backed store.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// TimezoneConfig carries the chat-independent timezone defaults.
type TimezoneConfig struct {
	Default        string   `yaml:"default"`
	TeamTimezones  []string `yaml:"team_timezones"`
	TeamCities     []string `yaml:"team_cities"`
}

// ConfidenceConfig governs the identity manager's decay and disambiguation.
type ConfidenceConfig struct {
	DecayPerDay           float64 `yaml:"decay_per_day"`
	Threshold             float64 `yaml:"threshold"`
	ChatDefaultConfidence float64 `yaml:"chat_default_confidence"`
}

// TimeParsingConfig governs the regex time-parser layer.
type TimeParsingConfig struct {
	DefaultToPM bool `yaml:"default_to_pm"`
}

// DedupeConfig governs the dedup gate's TTL.
type DedupeConfig struct {
	TTLSeconds int `yaml:"ttl_seconds"`
}

// ThrottleConfig governs the per-chat response throttle.
type ThrottleConfig struct {
	ThrottleSeconds  int `yaml:"throttle_seconds"`
	CleanupMultiplier int `yaml:"cleanup_multiplier"`
}

// RateLimitWindow is one sliding-window limit (requests per window_seconds).
type RateLimitWindow struct {
	Requests      int `yaml:"requests"`
	WindowSeconds int `yaml:"window_seconds"`
}

// RateLimitsConfig holds the per-user and per-chat sliding windows.
type RateLimitsConfig struct {
	User             RateLimitWindow `yaml:"user"`
	Chat             RateLimitWindow `yaml:"chat"`
	MaxNotifications int             `yaml:"max_notifications"`
}

// ThresholdPair is a classifier's low/high decision boundary: below low is
// a confident negative, above high a confident positive, and anything in
// between falls back to the model's raw binary prediction.
type ThresholdPair struct {
	Low  float64 `yaml:"low"`
	High float64 `yaml:"high"`
}

// ClassifierConfig governs the ML trigger classifiers (time, tz-context,
// location/relocation).
type ClassifierConfig struct {
	ModelDir          string        `yaml:"model_dir"`
	Time              ThresholdPair `yaml:"time"`
	TzContext         ThresholdPair `yaml:"tz_context"`
	Location          ThresholdPair `yaml:"location"`
	LongTextThreshold int           `yaml:"long_text_threshold"`
	WindowSize        int           `yaml:"window_size"`
}

// CircuitBreakerConfig governs a single LLM operation's circuit breaker.
type CircuitBreakerConfig struct {
	FailureThreshold   int `yaml:"failure_threshold"`
	ResetTimeoutSeconds int `yaml:"reset_timeout_seconds"`
}

// LLMConfig governs the bounded LLM fallback client.
type LLMConfig struct {
	Provider       string               `yaml:"provider"`
	Model          string               `yaml:"model"`
	APIKey         string               `yaml:"api_key"`
	TimeoutSeconds int                  `yaml:"timeout_seconds"`
	MaxTokens      int                  `yaml:"max_tokens"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// SessionConfig governs the multi-turn session machine's TTLs and attempt
// budget.
type SessionConfig struct {
	TimezoneTTLMinutes  int `yaml:"timezone_ttl_minutes"`
	GeoIntentTTLMinutes int `yaml:"geo_intent_ttl_minutes"`
	MaxAttempts         int `yaml:"max_attempts"`
}

// HTTPTimeoutsConfig bounds outbound HTTP calls to platform APIs.
type HTTPTimeoutsConfig struct {
	RequestSeconds int `yaml:"request_seconds"`
}

// HTTPConfig wraps the outbound timeout settings.
type HTTPConfig struct {
	Timeouts HTTPTimeoutsConfig `yaml:"timeouts"`
}

// UIConfig governs the `/verify` HTML page.
type UIConfig struct {
	Title string `yaml:"title"`
}

// PollingConfig governs the local long-poll helper used outside of
// production webhook delivery (development/demo mode only).
type PollingConfig struct {
	Enabled         bool `yaml:"enabled"`
	IntervalSeconds int  `yaml:"interval_seconds"`
}

// TunnelConfig governs the optional ngrok-style local tunnel helper.
type TunnelConfig struct {
	Enabled  bool   `yaml:"enabled"`
	AuthToken string `yaml:"auth_token"`
}

// TriggersConfig toggles optional trigger handlers.
type TriggersConfig struct {
	MentionEnabled bool `yaml:"mention_enabled"`
}

// MaintenanceConfig governs the periodic background sweep that stands in
// for the TTL indexes a document store would enforce natively: sqlite has
// no such primitive, so dedup markers and expired sessions are deleted on
// a schedule instead.
type MaintenanceConfig struct {
	CronExpr            string `yaml:"cron_expr"`
	SessionSweepLimit    int    `yaml:"session_sweep_limit"`
	RateLimitMaxAgeMinutes int  `yaml:"rate_limit_max_age_minutes"`
}

// LoggingConfig governs the structured logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
	Quiet bool   `yaml:"quiet"`
}

// TelegramChannelConfig holds the Telegram webhook adapter's secrets.
type TelegramChannelConfig struct {
	Token            string `yaml:"token"`
	WebhookSecret    string `yaml:"webhook_secret"`
}

// SlackChannelConfig holds the Slack webhook adapter's secrets.
type SlackChannelConfig struct {
	BotToken      string `yaml:"bot_token"`
	SigningSecret string `yaml:"signing_secret"`
}

// DiscordChannelConfig holds the Discord adapter's secrets (stub surface).
type DiscordChannelConfig struct {
	BotToken string `yaml:"bot_token"`
}

// WhatsAppChannelConfig holds the WhatsApp Cloud API webhook adapter's
// secrets.
type WhatsAppChannelConfig struct {
	AppSecret   string `yaml:"app_secret"`
	VerifyToken string `yaml:"verify_token"`
	AccessToken string `yaml:"access_token"`
	PhoneNumberID string `yaml:"phone_number_id"`
}

// ChannelsConfig groups every platform adapter's configuration.
type ChannelsConfig struct {
	Telegram TelegramChannelConfig `yaml:"telegram"`
	Slack    SlackChannelConfig    `yaml:"slack"`
	Discord  DiscordChannelConfig  `yaml:"discord"`
	WhatsApp WhatsAppChannelConfig `yaml:"whatsapp"`
}

// Config is the fully merged, normalized application configuration.
type Config struct {
	DataDir        string `yaml:"-"`
	App            AppConfig            `yaml:"app"`
	Database       DatabaseConfig       `yaml:"database"`
	Timezone       TimezoneConfig       `yaml:"timezone"`
	Confidence     ConfidenceConfig     `yaml:"confidence"`
	TimeParsing    TimeParsingConfig    `yaml:"time_parsing"`
	Dedupe         DedupeConfig         `yaml:"dedupe"`
	Throttle       ThrottleConfig       `yaml:"throttle"`
	RateLimits     RateLimitsConfig     `yaml:"rate_limits"`
	Classifier     ClassifierConfig     `yaml:"classifier"`
	Session        SessionConfig        `yaml:"session"`
	LLM            LLMConfig            `yaml:"llm"`
	HTTP           HTTPConfig           `yaml:"http"`
	UI             UIConfig             `yaml:"ui"`
	Polling        PollingConfig        `yaml:"polling"`
	Tunnel         TunnelConfig         `yaml:"tunnel"`
	Triggers       TriggersConfig       `yaml:"triggers"`
	Maintenance    MaintenanceConfig    `yaml:"maintenance"`
	Logging        LoggingConfig        `yaml:"logging"`
	Channels       ChannelsConfig       `yaml:"channels"`
	AppSecretKey   string               `yaml:"app_secret_key"`
}

func defaultConfig() Config {
	return Config{
		App: AppConfig{
			Host:    "0.0.0.0",
			Port:    8080,
			BaseURL: "http://localhost:8080",
		},
		Database: DatabaseConfig{
			Path: "", // resolved to DefaultDBPath() by the caller when empty
		},
		Timezone: TimezoneConfig{
			Default: "UTC",
		},
		Confidence: ConfidenceConfig{
			DecayPerDay:           0.05,
			Threshold:             0.7,
			ChatDefaultConfidence: 0.5,
		},
		TimeParsing: TimeParsingConfig{
			DefaultToPM: false,
		},
		Dedupe: DedupeConfig{
			TTLSeconds: int((7 * 24 * time.Hour).Seconds()),
		},
		Throttle: ThrottleConfig{
			ThrottleSeconds:   2,
			CleanupMultiplier: 10,
		},
		RateLimits: RateLimitsConfig{
			User:             RateLimitWindow{Requests: 20, WindowSeconds: 60},
			Chat:             RateLimitWindow{Requests: 60, WindowSeconds: 60},
			MaxNotifications: 1,
		},
		Classifier: ClassifierConfig{
			ModelDir:          "./models",
			Time:              ThresholdPair{Low: 0.40, High: 0.60},
			TzContext:         ThresholdPair{Low: 0.40, High: 0.60},
			Location:          ThresholdPair{Low: 0.40, High: 0.60},
			LongTextThreshold: 100,
			WindowSize:        5,
		},
		Session: SessionConfig{
			TimezoneTTLMinutes:  30,
			GeoIntentTTLMinutes: 10,
			MaxAttempts:         model.MaxSessionAttempts,
		},
		LLM: LLMConfig{
			Provider:       "anthropic",
			Model:          "claude-haiku-4-5-20251001",
			TimeoutSeconds: 8,
			MaxTokens:      512,
			CircuitBreaker: CircuitBreakerConfig{
				FailureThreshold:    3,
				ResetTimeoutSeconds: 60,
			},
		},
		HTTP: HTTPConfig{
			Timeouts: HTTPTimeoutsConfig{RequestSeconds: 10},
		},
		UI: UIConfig{Title: "Verify your timezone"},
		Polling: PollingConfig{
			Enabled:         false,
			IntervalSeconds: 2,
		},
		Triggers: TriggersConfig{
			MentionEnabled: true,
		},
		Maintenance: MaintenanceConfig{
			CronExpr:               "*/5 * * * *",
			SessionSweepLimit:      200,
			RateLimitMaxAgeMinutes: 60,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// DataDir returns the directory the service uses for its database and logs,
// honoring TZWATCH_HOME if set.
func DataDir() string {
	if override := os.Getenv("TZWATCH_HOME"); override != "" {
		return override
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".tzwatch")
}

// Load reads <DataDir()>/config.yaml (if present) over the defaults, applies
// environment overrides, and normalizes derived fields.
func Load() (Config, error) {
	cfg := defaultConfig()
	cfg.DataDir = DataDir()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return cfg, fmt.Errorf("create data dir: %w", err)
	}

	configPath := filepath.Join(cfg.DataDir, "config.yaml")
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil && len(data) > 0:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config.yaml: %w", err)
		}
	case err != nil && !os.IsNotExist(err):
		return cfg, fmt.Errorf("read config.yaml: %w", err)
	}

	applyEnvOverrides(&cfg)
	normalize(&cfg)
	return cfg, nil
}

func normalize(cfg *Config) {
	if cfg.Database.Path == "" {
		cfg.Database.Path = filepath.Join(cfg.DataDir, "tzwatch.db")
	}
	if cfg.Timezone.Default == "" {
		cfg.Timezone.Default = "UTC"
	}
	if cfg.Confidence.Threshold <= 0 {
		cfg.Confidence.Threshold = 0.7
	}
	if cfg.Dedupe.TTLSeconds <= 0 {
		cfg.Dedupe.TTLSeconds = int((7 * 24 * time.Hour).Seconds())
	}
	if cfg.Throttle.ThrottleSeconds <= 0 {
		cfg.Throttle.ThrottleSeconds = 2
	}
	if cfg.Throttle.CleanupMultiplier <= 0 {
		cfg.Throttle.CleanupMultiplier = 10
	}
	if cfg.LLM.CircuitBreaker.FailureThreshold <= 0 {
		cfg.LLM.CircuitBreaker.FailureThreshold = 3
	}
	if cfg.LLM.CircuitBreaker.ResetTimeoutSeconds <= 0 {
		cfg.LLM.CircuitBreaker.ResetTimeoutSeconds = 60
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

func applyEnvOverrides(cfg *Config) {
	if raw := os.Getenv("APP_HOST"); raw != "" {
		cfg.App.Host = raw
	}
	if raw := os.Getenv("APP_PORT"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			cfg.App.Port = v
		}
	}
	if raw := os.Getenv("APP_BASE_URL"); raw != "" {
		cfg.App.BaseURL = raw
	}
	if raw := os.Getenv("APP_SECRET_KEY"); raw != "" {
		cfg.AppSecretKey = raw
	}
	if raw := os.Getenv("MONGODB_URI"); raw != "" {
		// Historical document-store DSN; the sqlite-backed store has no use
		// for it, but env-override parity is kept for deployments that
		// still set it.
		_ = raw
	}
	if raw := os.Getenv("VERIFY_TOKEN_SECRET"); raw != "" {
		cfg.AppSecretKey = raw
	}
	if raw := os.Getenv("TELEGRAM_BOT_TOKEN"); raw != "" {
		cfg.Channels.Telegram.Token = raw
	}
	if raw := os.Getenv("TELEGRAM_WEBHOOK_SECRET"); raw != "" {
		cfg.Channels.Telegram.WebhookSecret = raw
	}
	if raw := os.Getenv("SLACK_BOT_TOKEN"); raw != "" {
		cfg.Channels.Slack.BotToken = raw
	}
	if raw := os.Getenv("SLACK_SIGNING_SECRET"); raw != "" {
		cfg.Channels.Slack.SigningSecret = raw
	}
	if raw := os.Getenv("DISCORD_BOT_TOKEN"); raw != "" {
		cfg.Channels.Discord.BotToken = raw
	}
	if raw := os.Getenv("WHATSAPP_APP_SECRET"); raw != "" {
		cfg.Channels.WhatsApp.AppSecret = raw
	}
	if raw := os.Getenv("WHATSAPP_VERIFY_TOKEN"); raw != "" {
		cfg.Channels.WhatsApp.VerifyToken = raw
	}
	if raw := os.Getenv("WHATSAPP_ACCESS_TOKEN"); raw != "" {
		cfg.Channels.WhatsApp.AccessToken = raw
	}
	if raw := os.Getenv("WHATSAPP_PHONE_NUMBER_ID"); raw != "" {
		cfg.Channels.WhatsApp.PhoneNumberID = raw
	}
	if raw := os.Getenv("ANTHROPIC_API_KEY"); raw != "" {
		cfg.LLM.APIKey = raw
	}
	if raw := os.Getenv("TZWATCH_LOG_LEVEL"); raw != "" {
		cfg.Logging.Level = raw
	}
}
