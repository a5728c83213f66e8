package channels

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/basket/tzwatch/internal/model"
)

// TelegramChannel adapts the Telegram Bot API: webhook updates in, sendMessage
// calls out. The long-poll fallback (Poll) exists for local development where
// no public webhook URL is reachable.
type TelegramChannel struct {
	bot           *tgbotapi.BotAPI
	webhookSecret string
	logger        *slog.Logger
}

// NewTelegramChannel builds a TelegramChannel, validating the bot token
// against the Telegram API.
func NewTelegramChannel(token, webhookSecret string, logger *slog.Logger) (*TelegramChannel, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram init failed: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TelegramChannel{bot: bot, webhookSecret: webhookSecret, logger: logger}, nil
}

func (t *TelegramChannel) Platform() model.Platform { return model.PlatformTelegram }

// VerifySecretHeader constant-time compares the X-Telegram-Bot-Api-Secret-Token
// header Telegram echoes back on every webhook delivery once a secret_token is
// registered with setWebhook.
func (t *TelegramChannel) VerifySecretHeader(header string) bool {
	if t.webhookSecret == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(header), []byte(t.webhookSecret)) == 1
}

// Normalize parses a raw Telegram update body into a NormalizedEvent. A nil
// event with a nil error means the update is not a processable text message
// (e.g. an edited_message, a sticker, a callback query) and should be
// acknowledged without further handling.
func (t *TelegramChannel) Normalize(body []byte) (*model.NormalizedEvent, error) {
	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		return nil, fmt.Errorf("decode telegram update: %w", err)
	}
	return normalizeTelegramUpdate(update, body), nil
}

func normalizeTelegramUpdate(update tgbotapi.Update, raw []byte) *model.NormalizedEvent {
	msg := update.Message
	if msg == nil || msg.Text == "" || msg.From == nil || msg.Chat == nil {
		return nil
	}

	event := &model.NormalizedEvent{
		Platform:    model.PlatformTelegram,
		EventID:     fmt.Sprintf("%d_%d", msg.Chat.ID, msg.MessageID),
		MessageID:   strconv.Itoa(msg.MessageID),
		ChatID:      strconv.FormatInt(msg.Chat.ID, 10),
		UserID:      strconv.FormatInt(msg.From.ID, 10),
		Username:    msg.From.UserName,
		DisplayName: telegramDisplayName(msg.From),
		Text:        msg.Text,
		Timestamp:   time.Unix(int64(msg.Date), 0).UTC(),
		RawPayload:  raw,
	}
	if msg.ReplyToMessage != nil {
		event.ReplyToMessageID = strconv.Itoa(msg.ReplyToMessage.MessageID)
	}
	return event
}

func telegramDisplayName(user *tgbotapi.User) string {
	switch {
	case user.FirstName != "" && user.LastName != "":
		return user.FirstName + " " + user.LastName
	case user.FirstName != "":
		return user.FirstName
	case user.LastName != "":
		return user.LastName
	case user.UserName != "":
		return user.UserName
	default:
		return "Unknown"
	}
}

// Send delivers an outbound reply via the Telegram Bot API's sendMessage.
func (t *TelegramChannel) Send(_ context.Context, msg model.OutboundMessage) error {
	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", msg.ChatID, err)
	}

	out := tgbotapi.NewMessage(chatID, msg.Text)
	switch msg.ParseMode {
	case model.ParseModeMarkdown:
		out.ParseMode = tgbotapi.ModeMarkdownV2
	case model.ParseModeHTML:
		out.ParseMode = tgbotapi.ModeHTML
	}
	if msg.ReplyToMessageID != "" {
		if replyID, err := strconv.Atoi(msg.ReplyToMessageID); err == nil {
			out.ReplyToMessageID = replyID
		}
	}

	if _, err := t.bot.Send(out); err != nil {
		return fmt.Errorf("telegram send failed (chat_id=%s): %w", msg.ChatID, err)
	}
	return nil
}

// Poll runs the development-mode long-poll fallback, pushing normalized
// events onto sink until ctx is cancelled. It reconnects with exponential
// backoff and treats a prolonged silence as a dead connection, the same
// shape a webhook-based production deployment never needs.
func (t *TelegramChannel) Poll(ctx context.Context, sink chan<- model.NormalizedEvent) error {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return nil
		}

		u := tgbotapi.NewUpdate(0)
		u.Timeout = 60
		updates := t.bot.GetUpdatesChan(u)

		err := t.pollUpdates(ctx, updates, sink)
		t.bot.StopReceivingUpdates()

		if err == nil {
			return nil
		}
		t.logger.Warn("telegram poll disconnected, reconnecting", "error", err, "backoff", backoff)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (t *TelegramChannel) pollUpdates(ctx context.Context, updates tgbotapi.UpdatesChannel, sink chan<- model.NormalizedEvent) error {
	const stallTimeout = 150 * time.Second

	timer := time.NewTimer(stallTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return fmt.Errorf("update channel closed")
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(stallTimeout)

			if event := normalizeTelegramUpdate(update, nil); event != nil {
				select {
				case sink <- *event:
				case <-ctx.Done():
					return nil
				}
			}
		case <-timer.C:
			return fmt.Errorf("no updates received for %v (possible disconnect)", stallTimeout)
		}
	}
}
