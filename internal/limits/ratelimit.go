package limits

import (
	"sync"
	"time"
)

// LimitReason names which sliding window rejected a request.
type LimitReason string

const (
	ReasonNone LimitReason = ""
	ReasonUser LimitReason = "user"
	ReasonChat LimitReason = "chat"
)

// slidingWindow tracks request timestamps within a fixed window and evicts
// anything older on each check, the same double-checked-locking shape as a
// token bucket but counting raw timestamps instead of refilling tokens —
// sliding windows, unlike token buckets, need the exact oldest timestamp to
// report retry_after.
type slidingWindow struct {
	mu         sync.Mutex
	timestamps []time.Time
	limit      int
	window     time.Duration
	lastAccess time.Time
}

func newSlidingWindow(limit int, window time.Duration) *slidingWindow {
	return &slidingWindow{limit: limit, window: window}
}

// allow evicts timestamps outside the window, then reports whether this
// request fits, and if not, how long until it would.
func (w *slidingWindow) allow(now time.Time) (ok bool, retryAfter time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := now.Add(-w.window)
	kept := w.timestamps[:0]
	for _, ts := range w.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	w.timestamps = kept
	w.lastAccess = now

	if len(w.timestamps) < w.limit {
		w.timestamps = append(w.timestamps, now)
		return true, 0
	}
	oldest := w.timestamps[0]
	return false, w.window - now.Sub(oldest)
}

// RateLimiter enforces the per-user and per-chat sliding-window limits
// named in the component design: the user window is checked before the chat
// window, and the first breached limit names the reason.
type RateLimiter struct {
	mu         sync.RWMutex
	userLimit  int
	userWindow time.Duration
	chatLimit  int
	chatWindow time.Duration
	userWindows map[string]*slidingWindow
	chatWindows map[string]*slidingWindow
}

// NewRateLimiter builds a RateLimiter from the configured window sizes.
func NewRateLimiter(userRequests, userWindowSeconds, chatRequests, chatWindowSeconds int) *RateLimiter {
	return &RateLimiter{
		userLimit:   userRequests,
		userWindow:  time.Duration(userWindowSeconds) * time.Second,
		chatLimit:   chatRequests,
		chatWindow:  time.Duration(chatWindowSeconds) * time.Second,
		userWindows: make(map[string]*slidingWindow),
		chatWindows: make(map[string]*slidingWindow),
	}
}

// CheckRateLimit reports whether the given user/chat pair may proceed. The
// user window is evaluated first; if it rejects, the chat window is not
// consulted (its state is not mutated).
func (r *RateLimiter) CheckRateLimit(platform, userID, chatID string, now time.Time) (allowed bool, reason LimitReason, retryAfter time.Duration) {
	userWin := r.getWindow(r.userWindows, key(platform, userID), r.userLimit, r.userWindow)
	if ok, retry := userWin.allow(now); !ok {
		return false, ReasonUser, retry
	}

	chatWin := r.getWindow(r.chatWindows, key(platform, chatID), r.chatLimit, r.chatWindow)
	if ok, retry := chatWin.allow(now); !ok {
		return false, ReasonChat, retry
	}

	return true, ReasonNone, 0
}

func (r *RateLimiter) getWindow(m map[string]*slidingWindow, k string, limit int, window time.Duration) *slidingWindow {
	r.mu.RLock()
	w, ok := m[k]
	r.mu.RUnlock()
	if ok {
		return w
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok = m[k]; ok {
		return w
	}
	w = newSlidingWindow(limit, window)
	m[k] = w
	return w
}

// EvictStale removes per-key windows that have not been touched within
// maxAge, bounding memory growth from one-off chats/users.
func (r *RateLimiter) EvictStale(maxAge time.Duration, now time.Time) int {
	cutoff := now.Add(-maxAge)
	evicted := 0

	r.mu.Lock()
	defer r.mu.Unlock()
	for k, w := range r.userWindows {
		w.mu.Lock()
		stale := w.lastAccess.Before(cutoff)
		w.mu.Unlock()
		if stale {
			delete(r.userWindows, k)
			evicted++
		}
	}
	for k, w := range r.chatWindows {
		w.mu.Lock()
		stale := w.lastAccess.Before(cutoff)
		w.mu.Unlock()
		if stale {
			delete(r.chatWindows, k)
			evicted++
		}
	}
	return evicted
}
