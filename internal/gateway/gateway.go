package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/basket/tzwatch/internal/channels"
	"github.com/basket/tzwatch/internal/model"
	"github.com/basket/tzwatch/internal/orchestrator"
	"github.com/basket/tzwatch/internal/persistence"
	"github.com/basket/tzwatch/internal/tzidentity"
)

// Config wires everything the HTTP server needs to route webhooks, serve
// the verification page, and report health.
type Config struct {
	Store        *persistence.Store
	Identity     *tzidentity.Manager
	Orchestrator *orchestrator.Orchestrator
	Signer       *TokenSigner
	Logger       *slog.Logger

	Telegram *channels.TelegramChannel
	Slack    *channels.SlackChannel
	WhatsApp *channels.WhatsAppChannel

	UITitle string
	Cities  []CityOption
}

// CityOption is one quick-pick entry on the /verify page.
type CityOption struct {
	Name string
	Tz   string
}

// Server is the HTTP front door.
type Server struct {
	cfg Config
}

// New builds a Server from cfg.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Server{cfg: cfg}
}

// Handler builds the routed mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/ready", s.handleHealth)
	mux.HandleFunc("/live", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/hooks/telegram", s.handleTelegram)
	mux.HandleFunc("/hooks/slack", s.handleSlack)
	mux.HandleFunc("/hooks/whatsapp", s.handleWhatsApp)
	mux.HandleFunc("/hooks/discord", s.handleDiscordStub)

	mux.HandleFunc("/verify", s.handleVerifyPage)
	mux.HandleFunc("/api/verify", s.handleVerifySubmit)

	return mux
}

func (s *Server) logger() *slog.Logger { return s.cfg.Logger }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dbOK := true
	if s.cfg.Store != nil {
		if err := s.cfg.Store.DB().PingContext(ctx); err != nil {
			dbOK = false
		}
	}
	payload := map[string]any{"status": "ok", "db_ok": dbOK}
	w.Header().Set("Content-Type", "application/json")
	if !dbOK {
		w.WriteHeader(http.StatusServiceUnavailable)
		payload["status"] = "degraded"
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) handleDiscordStub(w http.ResponseWriter, _ *http.Request) {
	// Discord delivers over a persistent gateway connection (see
	// internal/channels.DiscordChannel.Run), not a webhook; there is
	// nothing for this endpoint to do.
	w.WriteHeader(http.StatusNotImplemented)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "not_implemented",
		"message": "discord is served over the gateway connection, not a webhook",
	})
}

func (s *Server) handleTelegram(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.cfg.Telegram == nil {
		http.Error(w, "telegram channel not configured", http.StatusServiceUnavailable)
		return
	}
	if !s.cfg.Telegram.VerifySecretHeader(r.Header.Get("X-Telegram-Bot-Api-Secret-Token")) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	event, err := s.cfg.Telegram.Normalize(body)
	if err != nil {
		s.logger().Error("telegram normalize failed", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if event == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	s.route(r.Context(), *event, s.cfg.Telegram)
	writeJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}

func (s *Server) handleSlack(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.cfg.Slack == nil {
		http.Error(w, "slack channel not configured", http.StatusServiceUnavailable)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if !s.cfg.Slack.VerifySignature(r.Header, body) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	if challenge, ok := s.cfg.Slack.Challenge(body); ok {
		writeJSON(w, http.StatusOK, map[string]string{"challenge": challenge})
		return
	}

	event, err := s.cfg.Slack.Normalize(body)
	if err != nil {
		s.logger().Error("slack normalize failed", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if event == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	s.route(r.Context(), *event, s.cfg.Slack)
	writeJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}

func (s *Server) handleWhatsApp(w http.ResponseWriter, r *http.Request) {
	if s.cfg.WhatsApp == nil {
		http.Error(w, "whatsapp channel not configured", http.StatusServiceUnavailable)
		return
	}

	if r.Method == http.MethodGet {
		mode := r.URL.Query().Get("hub.mode")
		token := r.URL.Query().Get("hub.verify_token")
		challenge := r.URL.Query().Get("hub.challenge")
		if resp, ok := s.cfg.WhatsApp.VerifyChallenge(mode, token, challenge); ok {
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte(resp))
			return
		}
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if !s.cfg.WhatsApp.VerifySignature([]byte(r.Header.Get("X-Hub-Signature-256")), body) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	events, err := s.cfg.WhatsApp.Normalize(body)
	if err != nil {
		s.logger().Error("whatsapp normalize failed", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	for _, event := range events {
		s.route(r.Context(), event, s.cfg.WhatsApp)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}

// route hands a normalized event to the orchestrator and delivers any
// resulting replies back through the same adapter that produced the event.
func (s *Server) route(ctx context.Context, event model.NormalizedEvent, sender channels.Adapter) {
	result, err := s.cfg.Orchestrator.Route(ctx, event, time.Now())
	if err != nil {
		s.logger().Error("orchestrator route failed", "platform", event.Platform, "chat_id", event.ChatID, "error", err)
		return
	}
	for _, msg := range result.Messages {
		if err := sender.Send(ctx, msg); err != nil {
			s.logger().Error("send reply failed", "platform", msg.Platform, "chat_id", msg.ChatID, "error", err)
		}
	}
}

func (s *Server) handleVerifyPage(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing verification token", http.StatusBadRequest)
		return
	}
	if _, ok := s.cfg.Signer.Parse(token, time.Now()); !ok {
		http.Error(w, "invalid or expired verification token", http.StatusBadRequest)
		return
	}

	title := s.cfg.UITitle
	if title == "" {
		title = "Verify your timezone"
	}

	var cities strings.Builder
	for _, c := range s.cfg.Cities {
		fmt.Fprintf(&cities, "<option value=%q>%s (%s)</option>", html.EscapeString(c.Tz), html.EscapeString(c.Name), html.EscapeString(c.Tz))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, verifyPageTemplate, html.EscapeString(title), html.EscapeString(token), cities.String())
}

const verifyPageTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>%s</title></head>
<body>
<h1>%s</h1>
<form id="verify-form">
<select id="tz-select" name="tz_iana">%s</select>
<button type="submit">Save</button>
</form>
<p id="verify-result"></p>
<script>
document.getElementById("verify-form").addEventListener("submit", function (e) {
  e.preventDefault();
  fetch("/api/verify", {
    method: "POST",
    headers: {"Content-Type": "application/json"},
    body: JSON.stringify({token: %q, tz_iana: document.getElementById("tz-select").value}),
  })
    .then(function (r) { return r.json(); })
    .then(function (data) {
      document.getElementById("verify-result").textContent = data.message || data.error || "";
    });
});
</script>
</body>
</html>`

type verifyRequest struct {
	Token  string `json:"token"`
	TzIANA string `json:"tz_iana"`
}

func (s *Server) handleVerifySubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req verifyRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing request body"})
		return
	}
	if req.Token == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing token"})
		return
	}
	if req.TzIANA == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing timezone"})
		return
	}

	parsed, ok := s.cfg.Signer.Parse(req.Token, time.Now())
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid or expired token"})
		return
	}
	if !isValidIANATimezone(req.TzIANA) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid timezone"})
		return
	}

	if err := s.cfg.Identity.Update(r.Context(), parsed.Platform, parsed.UserID, parsed.ChatID, req.TzIANA, model.SourceWebVerified, time.Now()); err != nil {
		s.logger().Error("verify submit failed", "platform", parsed.Platform, "user_id", parsed.UserID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "save failed"})
		return
	}

	s.logger().Info("timezone verified", "platform", parsed.Platform, "user_id", parsed.UserID, "tz_iana", req.TzIANA)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  "Timezone saved! You can close this page.",
		"timezone": req.TzIANA,
	})
}

func isValidIANATimezone(tz string) bool {
	_, err := time.LoadLocation(tz)
	return err == nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
