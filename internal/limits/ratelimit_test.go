package limits_test

import (
	"testing"
	"time"

	"github.com/basket/tzwatch/internal/limits"
)

func TestRateLimiter_AllowsUnderLimit(t *testing.T) {
	rl := limits.NewRateLimiter(5, 60, 20, 60)
	now := time.Now()

	for i := 0; i < 5; i++ {
		ok, reason, _ := rl.CheckRateLimit("telegram", "user-1", "chat-1", now)
		if !ok {
			t.Fatalf("request %d: expected allowed, got reason %v", i, reason)
		}
	}
}

func TestRateLimiter_UserLimitBreachedBeforeChat(t *testing.T) {
	rl := limits.NewRateLimiter(2, 60, 20, 60)
	now := time.Now()

	rl.CheckRateLimit("telegram", "user-1", "chat-1", now)
	rl.CheckRateLimit("telegram", "user-1", "chat-1", now)

	ok, reason, retryAfter := rl.CheckRateLimit("telegram", "user-1", "chat-1", now)
	if ok {
		t.Fatalf("expected 3rd request to be rejected")
	}
	if reason != limits.ReasonUser {
		t.Fatalf("expected reason=user, got %v", reason)
	}
	if retryAfter <= 0 {
		t.Fatalf("expected positive retry_after, got %v", retryAfter)
	}
}

func TestRateLimiter_ChatLimitBreachedAcrossUsers(t *testing.T) {
	rl := limits.NewRateLimiter(10, 60, 2, 60)
	now := time.Now()

	rl.CheckRateLimit("telegram", "user-1", "chat-1", now)
	rl.CheckRateLimit("telegram", "user-2", "chat-1", now)

	ok, reason, _ := rl.CheckRateLimit("telegram", "user-3", "chat-1", now)
	if ok {
		t.Fatalf("expected chat limit to reject 3rd distinct user")
	}
	if reason != limits.ReasonChat {
		t.Fatalf("expected reason=chat, got %v", reason)
	}
}

func TestRateLimiter_WindowSlidesOpen(t *testing.T) {
	rl := limits.NewRateLimiter(1, 1, 10, 60)
	now := time.Now()

	ok, _, _ := rl.CheckRateLimit("telegram", "user-1", "chat-1", now)
	if !ok {
		t.Fatalf("expected first request allowed")
	}
	ok, _, _ = rl.CheckRateLimit("telegram", "user-1", "chat-1", now.Add(1100*time.Millisecond))
	if !ok {
		t.Fatalf("expected request allowed after window slides open")
	}
}

func TestRateLimiter_EvictStale(t *testing.T) {
	rl := limits.NewRateLimiter(5, 60, 5, 60)
	now := time.Now()
	rl.CheckRateLimit("telegram", "user-1", "chat-1", now)

	evicted := rl.EvictStale(time.Minute, now.Add(2*time.Minute))
	if evicted == 0 {
		t.Fatalf("expected stale windows to be evicted")
	}
}
