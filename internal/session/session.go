// Package session implements the bounded multi-turn state machine the
// pipeline falls into when it can't act on a message directly: an unknown
// or stale user timezone, or a relocation that needs confirming before the
// user's identity record is overwritten. While a session is ACTIVE for a
// (platform, chat, user), every subsequent message from that user in that
// chat is routed here instead of back through the trigger pipeline.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/basket/tzwatch/internal/config"
	"github.com/basket/tzwatch/internal/geocoder"
	"github.com/basket/tzwatch/internal/model"
	"github.com/basket/tzwatch/internal/persistence"
	"github.com/basket/tzwatch/internal/tzidentity"
)

// TurnResult is what a session turn produces: a reply to send back, and
// whether the session has reached a terminal state.
type TurnResult struct {
	Reply    string
	Terminal bool
	Status   model.SessionStatus // valid only when Terminal
}

// VerifyURLFunc mints a web-verification URL for a user, used when a
// session exhausts its attempt budget. Injected rather than imported
// directly so this package doesn't need to know about the gateway's HMAC
// token scheme.
type VerifyURLFunc func(platform model.Platform, userID, chatID string, now time.Time) string

// Manager creates and advances sessions on top of persistence.Store,
// applying the goal-specific turn logic and the shared attempt-limit/TTL
// policy.
type Manager struct {
	Store     *persistence.Store
	Identity  *tzidentity.Manager
	Geocoder  *geocoder.Geocoder
	Config    config.SessionConfig
	VerifyURL VerifyURLFunc
}

func (m *Manager) maxAttempts() int {
	if m.Config.MaxAttempts > 0 {
		return m.Config.MaxAttempts
	}
	return model.MaxSessionAttempts
}

func (m *Manager) ttlFor(goal model.SessionGoal) time.Duration {
	if goal == model.GoalGeoIntent {
		minutes := m.Config.GeoIntentTTLMinutes
		if minutes <= 0 {
			minutes = 10
		}
		return time.Duration(minutes) * time.Minute
	}
	minutes := m.Config.TimezoneTTLMinutes
	if minutes <= 0 {
		minutes = 30
	}
	return time.Duration(minutes) * time.Minute
}

// Create opens a new ACTIVE session for (platform, chatID, userID). Returns
// persistence.ErrSessionAlreadyActive if one already exists, which the
// orchestrator is expected to handle by reusing the existing session or
// dedup-rejecting the racing event.
func (m *Manager) Create(ctx context.Context, platform model.Platform, chatID, userID string, goal model.SessionGoal, seedCtx model.SessionContext, now time.Time) (*model.Session, error) {
	sess := model.Session{
		ID:        uuid.NewString(),
		Platform:  platform,
		ChatID:    chatID,
		UserID:    userID,
		Goal:      goal,
		Status:    model.SessionActive,
		Context:   seedCtx,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(m.ttlFor(goal)),
	}
	if err := m.Store.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// HandleTurn advances sess by one user reply, dispatching to the
// goal-specific handler, persisting the mutated context (or closing the
// session on a terminal outcome), and returning the reply to send.
func (m *Manager) HandleTurn(ctx context.Context, sess *model.Session, platform model.Platform, chatID, userID, text string, now time.Time) (TurnResult, error) {
	sess.Context.History = append(sess.Context.History, model.SessionTurn{Role: "user", Text: text, At: now})

	var result TurnResult
	var err error
	switch sess.Goal {
	case model.GoalConfirmRelocation:
		result, err = m.confirmRelocationTurn(ctx, sess, platform, userID, chatID, text, now)
	case model.GoalAwaitingTimezone, model.GoalReverifyTimezone:
		result, err = m.timezoneTurn(ctx, sess, platform, userID, chatID, text, now)
	case model.GoalGeoIntent:
		result, err = m.geoIntentTurn(ctx, sess, platform, userID, chatID, text, now)
	default:
		return TurnResult{}, fmt.Errorf("session: no turn handler for goal %q", sess.Goal)
	}
	if err != nil {
		return TurnResult{}, err
	}

	sess.Context.History = append(sess.Context.History, model.SessionTurn{Role: "assistant", Text: result.Reply, At: now})

	if result.Terminal {
		if closeErr := m.Store.CloseSession(ctx, sess.ID, result.Status, now); closeErr != nil {
			return TurnResult{}, fmt.Errorf("close session %s: %w", sess.ID, closeErr)
		}
		sess.Status = result.Status
		return result, nil
	}

	if updErr := m.Store.UpdateSessionContext(ctx, sess.ID, sess.Context, now); updErr != nil {
		return TurnResult{}, fmt.Errorf("update session %s context: %w", sess.ID, updErr)
	}
	return result, nil
}

// attemptLimitReached increments the attempt counter and reports whether the
// session has now exhausted its budget. Callers that hit the limit should
// fail the session and surface a verification link if one is available.
func (m *Manager) attemptLimitReached(sess *model.Session) bool {
	sess.Context.Attempts++
	return sess.Context.Attempts >= m.maxAttempts()
}

// failTurn builds the terminal-FAILED TurnResult, minting a verify link
// into sess.Context.VerifyURL if a VerifyURLFunc was configured and the
// context doesn't already carry one.
func (m *Manager) failTurn(sess *model.Session, platform model.Platform, userID, chatID, reply string, now time.Time) TurnResult {
	if sess.Context.VerifyURL == "" && m.VerifyURL != nil {
		sess.Context.VerifyURL = m.VerifyURL(platform, userID, chatID, now)
	}
	if sess.Context.VerifyURL != "" {
		reply = reply + " " + sess.Context.VerifyURL
	}
	return TurnResult{Reply: reply, Terminal: true, Status: model.SessionFailed}
}
