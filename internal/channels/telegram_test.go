package channels

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/basket/tzwatch/internal/model"
)

func TestTelegramChannel_VerifySecretHeader(t *testing.T) {
	ch := &TelegramChannel{webhookSecret: "shh"}
	if !ch.VerifySecretHeader("shh") {
		t.Fatalf("expected matching secret to verify")
	}
	if ch.VerifySecretHeader("wrong") {
		t.Fatalf("expected mismatched secret to fail")
	}
}

func TestTelegramChannel_VerifySecretHeader_EmptySecretAllowsAny(t *testing.T) {
	ch := &TelegramChannel{}
	if !ch.VerifySecretHeader("anything") {
		t.Fatalf("expected empty configured secret to accept any header")
	}
}

func TestNormalizeTelegramUpdate_BuildsEvent(t *testing.T) {
	update := tgbotapi.Update{
		Message: &tgbotapi.Message{
			MessageID: 42,
			Date:      1700000000,
			Chat:      &tgbotapi.Chat{ID: 100},
			From:      &tgbotapi.User{ID: 7, FirstName: "Ada", UserName: "ada"},
			Text:      "what time is it in Tokyo?",
		},
	}

	event := normalizeTelegramUpdate(update, []byte(`{}`))
	if event == nil {
		t.Fatalf("expected non-nil event")
	}
	if event.Platform != model.PlatformTelegram {
		t.Fatalf("expected telegram platform, got %s", event.Platform)
	}
	if event.ChatID != "100" || event.UserID != "7" {
		t.Fatalf("unexpected chat/user id: %+v", event)
	}
	if event.EventID != "100_42" {
		t.Fatalf("expected event id 100_42, got %q", event.EventID)
	}
	if event.DisplayName != "Ada" {
		t.Fatalf("expected display name Ada, got %q", event.DisplayName)
	}
}

func TestNormalizeTelegramUpdate_IgnoresNonTextUpdates(t *testing.T) {
	if event := normalizeTelegramUpdate(tgbotapi.Update{}, nil); event != nil {
		t.Fatalf("expected nil event for update with no message")
	}

	update := tgbotapi.Update{
		Message: &tgbotapi.Message{
			Chat: &tgbotapi.Chat{ID: 1},
			From: &tgbotapi.User{ID: 1},
			Text: "",
		},
	}
	if event := normalizeTelegramUpdate(update, nil); event != nil {
		t.Fatalf("expected nil event for empty-text message")
	}
}

func TestNormalizeTelegramUpdate_CarriesReplyToMessageID(t *testing.T) {
	update := tgbotapi.Update{
		Message: &tgbotapi.Message{
			MessageID:      42,
			Chat:           &tgbotapi.Chat{ID: 100},
			From:           &tgbotapi.User{ID: 7},
			Text:           "3pm works for me",
			ReplyToMessage: &tgbotapi.Message{MessageID: 41},
		},
	}
	event := normalizeTelegramUpdate(update, nil)
	if event == nil || event.ReplyToMessageID != "41" {
		t.Fatalf("expected reply_to_message_id 41, got %+v", event)
	}
}

func TestTelegramDisplayName_FallsBackThroughFields(t *testing.T) {
	cases := []struct {
		user *tgbotapi.User
		want string
	}{
		{&tgbotapi.User{FirstName: "Ada", LastName: "Lovelace"}, "Ada Lovelace"},
		{&tgbotapi.User{FirstName: "Ada"}, "Ada"},
		{&tgbotapi.User{LastName: "Lovelace"}, "Lovelace"},
		{&tgbotapi.User{UserName: "ada"}, "ada"},
		{&tgbotapi.User{}, "Unknown"},
	}
	for _, tc := range cases {
		if got := telegramDisplayName(tc.user); got != tc.want {
			t.Fatalf("telegramDisplayName(%+v) = %q, want %q", tc.user, got, tc.want)
		}
	}
}
