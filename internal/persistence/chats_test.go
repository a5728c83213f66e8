package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/basket/tzwatch/internal/model"
	"github.com/basket/tzwatch/internal/persistence"
)

func TestUpdateUserTimezoneInChat_BuildsDedupedProjection(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	if err := store.UpdateUserTimezoneInChat(ctx, model.PlatformTelegram, "chat-1", "u1", "Europe/Moscow", now); err != nil {
		t.Fatalf("update u1: %v", err)
	}
	if err := store.UpdateUserTimezoneInChat(ctx, model.PlatformTelegram, "chat-1", "u2", "Europe/Moscow", now); err != nil {
		t.Fatalf("update u2: %v", err)
	}
	if err := store.UpdateUserTimezoneInChat(ctx, model.PlatformTelegram, "chat-1", "u3", "Asia/Tokyo", now); err != nil {
		t.Fatalf("update u3: %v", err)
	}

	chat, err := store.GetChat(ctx, model.PlatformTelegram, "chat-1")
	if err != nil {
		t.Fatalf("get chat: %v", err)
	}
	if len(chat.ActiveTimezones) != 2 {
		t.Fatalf("expected 2 deduped timezones, got %v", chat.ActiveTimezones)
	}
	if chat.ActiveTimezones[0] != "Asia/Tokyo" || chat.ActiveTimezones[1] != "Europe/Moscow" {
		t.Fatalf("expected sorted [Asia/Tokyo Europe/Moscow], got %v", chat.ActiveTimezones)
	}
	if len(chat.UserTimezones) != 3 {
		t.Fatalf("expected 3 user entries, got %v", chat.UserTimezones)
	}
}

func TestUpdateUserTimezoneInChat_Reassignment(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	if err := store.UpdateUserTimezoneInChat(ctx, model.PlatformSlack, "chat-2", "u1", "Europe/Moscow", now); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := store.UpdateUserTimezoneInChat(ctx, model.PlatformSlack, "chat-2", "u1", "Asia/Tokyo", now); err != nil {
		t.Fatalf("reassign: %v", err)
	}

	chat, err := store.GetChat(ctx, model.PlatformSlack, "chat-2")
	if err != nil {
		t.Fatalf("get chat: %v", err)
	}
	if len(chat.ActiveTimezones) != 1 || chat.ActiveTimezones[0] != "Asia/Tokyo" {
		t.Fatalf("expected single reassigned tz, got %v", chat.ActiveTimezones)
	}
}

func TestGetChat_NotFound(t *testing.T) {
	store := openTestStore(t)
	_, err := store.GetChat(context.Background(), model.PlatformDiscord, "missing-chat")
	if err != persistence.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetChatDefaultTz(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.SetChatDefaultTz(ctx, model.PlatformTelegram, "chat-3", "Europe/London", time.Now()); err != nil {
		t.Fatalf("set default: %v", err)
	}
	chat, err := store.GetChat(ctx, model.PlatformTelegram, "chat-3")
	if err != nil {
		t.Fatalf("get chat: %v", err)
	}
	if chat.DefaultTz != "Europe/London" {
		t.Fatalf("expected default tz Europe/London, got %q", chat.DefaultTz)
	}
}
