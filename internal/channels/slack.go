package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/basket/tzwatch/internal/model"
)

// SlackChannel adapts the Slack Events API: event_callback webhooks in,
// chat.postMessage calls out.
type SlackChannel struct {
	client        *slack.Client
	signingSecret string
}

// NewSlackChannel builds a SlackChannel from a bot token and the app's
// signing secret (used to verify every inbound Events API delivery).
func NewSlackChannel(botToken, signingSecret string) *SlackChannel {
	return &SlackChannel{client: slack.New(botToken), signingSecret: signingSecret}
}

func (s *SlackChannel) Platform() model.Platform { return model.PlatformSlack }

// VerifySignature checks the X-Slack-Signature/X-Slack-Request-Timestamp pair
// Slack signs every Events API request with.
func (s *SlackChannel) VerifySignature(header http.Header, body []byte) bool {
	if s.signingSecret == "" {
		return true
	}
	verifier, err := slack.NewSecretsVerifier(header, s.signingSecret)
	if err != nil {
		return false
	}
	if _, err := verifier.Write(body); err != nil {
		return false
	}
	return verifier.Ensure() == nil
}

// Challenge inspects body for Slack's one-time URL verification handshake,
// returning the challenge string to echo back and true if this request is
// that handshake rather than a real event.
func (s *SlackChannel) Challenge(body []byte) (string, bool) {
	var probe struct {
		Type      string `json:"type"`
		Challenge string `json:"challenge"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return "", false
	}
	if probe.Type == slackevents.URLVerification {
		return probe.Challenge, true
	}
	return "", false
}

// Normalize parses an Events API event_callback payload into a
// NormalizedEvent. A nil event with a nil error means the callback wasn't a
// plain message (a bot message, an edit, a reaction, etc).
func (s *SlackChannel) Normalize(body []byte) (*model.NormalizedEvent, error) {
	outer, err := slackevents.ParseEvent(body, slackevents.OptionNoVerifyToken())
	if err != nil {
		return nil, fmt.Errorf("parse slack event: %w", err)
	}
	if outer.Type != slackevents.CallbackEvent {
		return nil, nil
	}

	msgEvent, ok := outer.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok || msgEvent.SubType != "" || msgEvent.Text == "" || msgEvent.Channel == "" || msgEvent.User == "" {
		return nil, nil
	}

	ts := strings.TrimSpace(msgEvent.TimeStamp)
	event := &model.NormalizedEvent{
		Platform:   model.PlatformSlack,
		EventID:    msgEvent.Channel + "_" + ts,
		MessageID:  ts,
		ChatID:     msgEvent.Channel,
		UserID:     msgEvent.User,
		Text:       msgEvent.Text,
		Timestamp:  slackTimestamp(ts),
		RawPayload: body,
	}
	if msgEvent.ThreadTimeStamp != "" && msgEvent.ThreadTimeStamp != ts {
		event.ReplyToMessageID = msgEvent.ThreadTimeStamp
	}
	return event, nil
}

func slackTimestamp(ts string) time.Time {
	secPart := ts
	if idx := strings.Index(ts, "."); idx >= 0 {
		secPart = ts[:idx]
	}
	sec, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil {
		return time.Now().UTC()
	}
	return time.Unix(sec, 0).UTC()
}

// Send delivers an outbound reply via chat.postMessage, threading it under
// ReplyToMessageID when set.
func (s *SlackChannel) Send(_ context.Context, msg model.OutboundMessage) error {
	opts := []slack.MsgOption{slack.MsgOptionText(msg.Text, false)}
	if msg.ReplyToMessageID != "" {
		opts = append(opts, slack.MsgOptionTS(msg.ReplyToMessageID))
	}
	if _, _, err := s.client.PostMessage(msg.ChatID, opts...); err != nil {
		return fmt.Errorf("slack send failed (channel=%s): %w", msg.ChatID, err)
	}
	return nil
}
