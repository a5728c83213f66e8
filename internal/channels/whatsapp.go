package channels

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/basket/tzwatch/internal/model"
)

const whatsAppAPIBase = "https://graph.facebook.com/v18.0"

// WhatsAppChannel adapts the WhatsApp Cloud API. No Go SDK in the example
// pack covers this surface, so outbound delivery is a plain REST POST — the
// same approach the original Python connector takes with a bare HTTP client
// rather than a platform SDK.
type WhatsAppChannel struct {
	appSecret     string
	verifyToken   string
	accessToken   string
	phoneNumberID string
	httpClient    *http.Client
}

// NewWhatsAppChannel builds a WhatsAppChannel from the Cloud API credentials.
func NewWhatsAppChannel(appSecret, verifyToken, accessToken, phoneNumberID string, timeout time.Duration) *WhatsAppChannel {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WhatsAppChannel{
		appSecret:     appSecret,
		verifyToken:   verifyToken,
		accessToken:   accessToken,
		phoneNumberID: phoneNumberID,
		httpClient:    &http.Client{Timeout: timeout},
	}
}

func (w *WhatsAppChannel) Platform() model.Platform { return model.PlatformWhatsApp }

// VerifyChallenge implements the Cloud API's GET subscription handshake:
// echo back hub.challenge only if hub.mode is "subscribe" and hub.verify_token
// matches the configured token.
func (w *WhatsAppChannel) VerifyChallenge(mode, token, challenge string) (string, bool) {
	if mode == "subscribe" && token == w.verifyToken {
		return challenge, true
	}
	return "", false
}

// VerifySignature checks the X-Hub-Signature-256 header Meta signs every
// webhook delivery with, using the app secret as the HMAC key.
func (w *WhatsAppChannel) VerifySignature(header, body []byte) bool {
	if w.appSecret == "" {
		return true
	}
	const prefix = "sha256="
	sig := string(header)
	if !strings.HasPrefix(sig, prefix) {
		return false
	}
	expected, err := hex.DecodeString(strings.TrimPrefix(sig, prefix))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(w.appSecret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), expected)
}

type whatsAppWebhook struct {
	Object string `json:"object"`
	Entry  []struct {
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				Contacts []struct {
					WaID    string `json:"wa_id"`
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
				} `json:"contacts"`
				Messages []struct {
					ID        string `json:"id"`
					From      string `json:"from"`
					Timestamp string `json:"timestamp"`
					Type      string `json:"type"`
					Text      struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// Normalize parses a webhook delivery into zero or more NormalizedEvents — a
// single Cloud API payload can batch several messages.
func (w *WhatsAppChannel) Normalize(body []byte) ([]model.NormalizedEvent, error) {
	var payload whatsAppWebhook
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode whatsapp webhook: %w", err)
	}
	if payload.Object != "whatsapp_business_account" {
		return nil, nil
	}

	var events []model.NormalizedEvent
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			names := make(map[string]string, len(change.Value.Contacts))
			for _, c := range change.Value.Contacts {
				names[c.WaID] = c.Profile.Name
			}
			for _, msg := range change.Value.Messages {
				if msg.Type != "text" || msg.ID == "" || msg.From == "" || msg.Text.Body == "" {
					continue
				}
				displayName := names[msg.From]
				if displayName == "" {
					displayName = msg.From
				}
				events = append(events, model.NormalizedEvent{
					Platform:    model.PlatformWhatsApp,
					EventID:     msg.From + "_" + msg.ID,
					MessageID:   msg.ID,
					ChatID:      msg.From,
					UserID:      msg.From,
					DisplayName: displayName,
					Text:        msg.Text.Body,
					Timestamp:   whatsAppTimestamp(msg.Timestamp),
				})
			}
		}
	}
	return events, nil
}

func whatsAppTimestamp(raw string) time.Time {
	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Now().UTC()
	}
	return time.Unix(sec, 0).UTC()
}

// Send posts a text message through the Cloud API. WhatsApp's 24-hour
// messaging window means this only succeeds for users who messaged recently
// or as a reply within an active conversation.
func (w *WhatsAppChannel) Send(ctx context.Context, msg model.OutboundMessage) error {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                msg.ChatID,
		"type":              "text",
		"text":              map[string]any{"body": msg.Text},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode whatsapp payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", whatsAppAPIBase, w.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build whatsapp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+w.accessToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp send failed (to=%s): %w", msg.ChatID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("whatsapp API error %d (to=%s)", resp.StatusCode, msg.ChatID)
	}
	return nil
}
