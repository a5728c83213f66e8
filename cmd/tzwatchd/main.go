// Command tzwatchd runs the timezone-bot HTTP daemon: it loads
// configuration, opens the sqlite-backed store, wires the trigger
// pipeline and session machine behind the orchestrator, starts whichever
// chat platform adapters have credentials configured, and serves the
// webhook/verification/health HTTP surface until it receives a shutdown
// signal.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/basket/tzwatch/internal/channels"
	"github.com/basket/tzwatch/internal/classify"
	"github.com/basket/tzwatch/internal/config"
	"github.com/basket/tzwatch/internal/detect"
	"github.com/basket/tzwatch/internal/gateway"
	"github.com/basket/tzwatch/internal/geocoder"
	"github.com/basket/tzwatch/internal/handlers"
	"github.com/basket/tzwatch/internal/limits"
	"github.com/basket/tzwatch/internal/llm"
	"github.com/basket/tzwatch/internal/maintenance"
	"github.com/basket/tzwatch/internal/model"
	"github.com/basket/tzwatch/internal/orchestrator"
	"github.com/basket/tzwatch/internal/persistence"
	"github.com/basket/tzwatch/internal/pipeline"
	"github.com/basket/tzwatch/internal/session"
	"github.com/basket/tzwatch/internal/telemetry"
	"github.com/basket/tzwatch/internal/tzidentity"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	logger, logCloser, err := telemetry.NewLogger(cfg.DataDir, cfg.Logging.Level, cfg.Logging.Quiet)
	if err != nil {
		fmt.Fprintln(os.Stderr, "init logger:", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("fatal startup error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store, err := persistence.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	identity := &tzidentity.Manager{
		Store:                 store,
		DecayPerDay:           cfg.Confidence.DecayPerDay,
		Threshold:             cfg.Confidence.Threshold,
		ChatDefaultConfidence: cfg.Confidence.ChatDefaultConfidence,
	}

	geo := geocoder.New()

	breakers := limits.NewBreakers(cfg.LLM.CircuitBreaker.FailureThreshold, cfg.LLM.CircuitBreaker.ResetTimeoutSeconds)

	var llmClient *llm.Client
	if cfg.LLM.APIKey != "" {
		llmClient, err = llm.NewClient(cfg.LLM, breakers)
		if err != nil {
			return fmt.Errorf("init llm client: %w", err)
		}
	} else {
		logger.Warn("llm.api_key not set, geo-intent classification and LLM time-extraction fallback are disabled")
	}

	suite, err := classify.NewSuite(classify.SuiteConfig{
		ModelDir:          cfg.Classifier.ModelDir,
		TimeLow:           cfg.Classifier.Time.Low,
		TimeHigh:          cfg.Classifier.Time.High,
		TzContextLow:      cfg.Classifier.TzContext.Low,
		TzContextHigh:     cfg.Classifier.TzContext.High,
		LocationLow:       cfg.Classifier.Location.Low,
		LocationHigh:      cfg.Classifier.Location.High,
		LongTextThreshold: cfg.Classifier.LongTextThreshold,
		WindowSize:        cfg.Classifier.WindowSize,
	})
	var locationClassifier *classify.LocationTrigger
	if err != nil {
		logger.Warn("classifier models unavailable, geo-mention detection disabled", "error", err)
	} else {
		locationClassifier = suite.Location
	}

	now := time.Now

	p := &pipeline.Pipeline{
		Store:      store,
		Identity:   identity,
		Mention:    detect.MentionDetector{},
		Relocation: detect.RelocationDetector{},
		Time:       detect.TimeDetector{Geocoder: geo},
		GeoMention: detect.GeoMentionDetector{Classifier: locationClassifier, Geocoder: geo},
		Timezone:   cfg.Timezone,
		Handlers: map[model.TriggerType]pipeline.ActionHandler{
			model.TriggerTime:       handlers.TimeConversionHandler{Now: now},
			model.TriggerRelocation: handlers.RelocationHandler{Identity: identity, Geocoder: geo, Now: now},
			model.TriggerMention:    handlers.MentionHandler{},
		},
		MentionEnabled: cfg.Triggers.MentionEnabled,
	}
	if llmClient != nil {
		p.Handlers[model.TriggerGeoMention] = handlers.GeoMentionHandler{LLM: llmClient, Identity: identity, Now: now}
	}

	signer := gateway.NewTokenSigner(cfg.AppSecretKey, 24*time.Hour)
	verifyURL := func(platform model.Platform, userID, chatID string, at time.Time) string {
		return signer.VerifyURL(cfg.App.BaseURL, platform, userID, chatID, at)
	}

	sessionMgr := &session.Manager{
		Store:     store,
		Identity:  identity,
		Geocoder:  geo,
		Config:    cfg.Session,
		VerifyURL: verifyURL,
	}

	throttle := limits.NewThrottle(cfg.Throttle.ThrottleSeconds, cfg.Throttle.CleanupMultiplier)
	rateLimiter := limits.NewRateLimiter(
		cfg.RateLimits.User.Requests, cfg.RateLimits.User.WindowSeconds,
		cfg.RateLimits.Chat.Requests, cfg.RateLimits.Chat.WindowSeconds,
	)

	orch := &orchestrator.Orchestrator{
		Store:       store,
		Session:     sessionMgr,
		Pipeline:    p,
		Throttle:    throttle,
		RateLimiter: rateLimiter,
		Logger:      logger,
	}

	sched := maintenance.NewScheduler(maintenance.Config{
		Store:             store,
		RateLimiter:       rateLimiter,
		Logger:            logger,
		CronExpr:          cfg.Maintenance.CronExpr,
		DedupeTTL:         time.Duration(cfg.Dedupe.TTLSeconds) * time.Second,
		SessionSweepLimit: cfg.Maintenance.SessionSweepLimit,
		RateLimitMaxAge:   time.Duration(cfg.Maintenance.RateLimitMaxAgeMinutes) * time.Minute,
	})
	sched.Start(ctx)
	defer sched.Stop()

	var tgChannel *channels.TelegramChannel
	if cfg.Channels.Telegram.Token != "" {
		tgChannel, err = channels.NewTelegramChannel(cfg.Channels.Telegram.Token, cfg.Channels.Telegram.WebhookSecret, logger)
		if err != nil {
			return fmt.Errorf("init telegram channel: %w", err)
		}
		if cfg.Polling.Enabled {
			go func() {
				sink := make(chan model.NormalizedEvent, 32)
				go func() {
					for event := range sink {
						routeAndSend(ctx, orch, tgChannel, event, logger)
					}
				}()
				if err := tgChannel.Poll(ctx, sink); err != nil && ctx.Err() == nil {
					logger.Error("telegram poll loop exited", "error", err)
				}
			}()
		}
	}

	var slackChannel *channels.SlackChannel
	if cfg.Channels.Slack.BotToken != "" {
		slackChannel = channels.NewSlackChannel(cfg.Channels.Slack.BotToken, cfg.Channels.Slack.SigningSecret)
	}

	var whatsAppChannel *channels.WhatsAppChannel
	if cfg.Channels.WhatsApp.AccessToken != "" {
		whatsAppChannel = channels.NewWhatsAppChannel(
			cfg.Channels.WhatsApp.AppSecret,
			cfg.Channels.WhatsApp.VerifyToken,
			cfg.Channels.WhatsApp.AccessToken,
			cfg.Channels.WhatsApp.PhoneNumberID,
			time.Duration(cfg.HTTP.Timeouts.RequestSeconds)*time.Second,
		)
	}

	if cfg.Channels.Discord.BotToken != "" {
		discordChannel, err := channels.NewDiscordChannel(cfg.Channels.Discord.BotToken)
		if err != nil {
			logger.Error("init discord channel failed", "error", err)
		} else {
			go func() {
				sink := make(chan model.NormalizedEvent, 32)
				go func() {
					for event := range sink {
						routeAndSend(ctx, orch, discordChannel, event, logger)
					}
				}()
				if err := discordChannel.Run(ctx, sink); err != nil && ctx.Err() == nil {
					logger.Error("discord gateway session exited", "error", err)
				}
			}()
		}
	}

	gw := gateway.New(gateway.Config{
		Store:        store,
		Identity:     identity,
		Orchestrator: orch,
		Signer:       signer,
		Logger:       logger,
		Telegram:     tgChannel,
		Slack:        slackChannel,
		WhatsApp:     whatsAppChannel,
		UITitle:      cfg.UI.Title,
		Cities:       cityOptions(cfg, geo),
	})

	addr := fmt.Sprintf("%s:%d", cfg.App.Host, cfg.App.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: gw.Handler(),
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("tzwatchd listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		logger.Error("http server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown did not complete cleanly", "error", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// routeAndSend is the non-HTTP counterpart of gateway.Server.route, used by
// the long-lived Telegram poll loop and Discord gateway session — neither
// delivers events over a webhook, so there is no HTTP handler to do this.
func routeAndSend(ctx context.Context, orch *orchestrator.Orchestrator, sender channels.Adapter, event model.NormalizedEvent, logger *slog.Logger) {
	result, err := orch.Route(ctx, event, time.Now())
	if err != nil {
		logger.Error("route failed", "platform", event.Platform, "chat_id", event.ChatID, "error", err)
		return
	}
	for _, msg := range result.Messages {
		if err := sender.Send(ctx, msg); err != nil {
			logger.Error("send reply failed", "platform", msg.Platform, "chat_id", msg.ChatID, "error", err)
		}
	}
}

// cityOptions resolves the configured team cities to their IANA zones for
// the /verify page's quick-pick list, pairing team_cities with
// team_timezones positionally when both are the same length and falling
// back to a geocoder lookup by name otherwise.
func cityOptions(cfg config.Config, geo *geocoder.Geocoder) []gateway.CityOption {
	cities := cfg.Timezone.TeamCities
	tzs := cfg.Timezone.TeamTimezones
	options := make([]gateway.CityOption, 0, len(cities))
	for i, name := range cities {
		if i < len(tzs) && tzs[i] != "" {
			options = append(options, gateway.CityOption{Name: name, Tz: tzs[i]})
			continue
		}
		if match, ok := geo.Lookup(name); ok {
			options = append(options, gateway.CityOption{Name: match.CanonicalName, Tz: match.TzIANA})
		}
	}
	return options
}
