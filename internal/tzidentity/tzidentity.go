// Package tzidentity resolves a user's effective timezone and applies the
// update/invalidation semantics that keep a user's identity record and a
// chat's projection in sync. It sits directly on top of internal/persistence
// and adds the decay/confidence/resolution-order logic that belongs to
// neither the storage layer nor the detectors.
package tzidentity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/basket/tzwatch/internal/model"
	"github.com/basket/tzwatch/internal/persistence"
)

// EffectiveConfidence applies linear time decay to a stored confidence,
// floored at zero. A non-positive decayPerDay disables decay entirely.
func EffectiveConfidence(confidence, decayPerDay float64, updatedAt, now time.Time) float64 {
	if decayPerDay <= 0 {
		return confidence
	}
	days := now.Sub(updatedAt).Hours() / 24
	if days <= 0 {
		return confidence
	}
	decayed := confidence - decayPerDay*days
	if decayed < 0 {
		return 0
	}
	return decayed
}

// Manager resolves and mutates timezone identity on top of a Store,
// applying the confidence-decay and resolution-order policy.
type Manager struct {
	Store                 *persistence.Store
	DecayPerDay           float64
	Threshold             float64
	ChatDefaultConfidence float64
}

// Resolution is the outcome of resolving a user's effective timezone.
type Resolution struct {
	TzIANA     string // empty if unresolved
	Confidence float64
	Source     model.TzSource
}

// Resolve implements the effective-timezone policy in order: an explicit
// hint from the message always wins; otherwise the user's own state (if
// its effective confidence clears the threshold); otherwise the chat's
// default; otherwise unresolved.
func (m *Manager) Resolve(ctx context.Context, platform model.Platform, userID, chatID, explicitHint string, now time.Time) (Resolution, error) {
	if explicitHint != "" {
		return Resolution{TzIANA: explicitHint, Confidence: 1.0, Source: model.SourceMessageExplicit}, nil
	}

	user, err := m.Store.GetUser(ctx, platform, userID)
	switch {
	case err == nil:
		if user.TzIANA != "" {
			eff := EffectiveConfidence(user.Confidence, m.DecayPerDay, user.UpdatedAt, now)
			if eff >= m.Threshold {
				return Resolution{TzIANA: user.TzIANA, Confidence: eff, Source: user.Source}, nil
			}
		}
	case errors.Is(err, persistence.ErrNotFound):
		// fall through to the chat default
	default:
		return Resolution{}, fmt.Errorf("resolve user state: %w", err)
	}

	chat, err := m.Store.GetChat(ctx, platform, chatID)
	switch {
	case err == nil:
		if chat.DefaultTz != "" {
			return Resolution{TzIANA: chat.DefaultTz, Confidence: m.ChatDefaultConfidence, Source: model.SourceChatDefault}, nil
		}
	case errors.Is(err, persistence.ErrNotFound):
		// fall through to unresolved
	default:
		return Resolution{}, fmt.Errorf("resolve chat state: %w", err)
	}

	return Resolution{}, nil
}

// Update sets a user's timezone from source and propagates the change into
// the chat projection, the only supported mutation path for the active
// set.
func (m *Manager) Update(ctx context.Context, platform model.Platform, userID, chatID, tzIANA string, source model.TzSource, now time.Time) error {
	if err := m.Store.UpsertUserTimezone(ctx, platform, userID, tzIANA, source, now); err != nil {
		return fmt.Errorf("update user timezone: %w", err)
	}
	if err := m.Store.UpdateUserTimezoneInChat(ctx, platform, chatID, userID, tzIANA, now); err != nil {
		return fmt.Errorf("update chat projection: %w", err)
	}
	return nil
}

// InvalidateOnRelocation zeroes a user's confidence after a confirmed
// relocation, keeping tz_iana for historical reference so the next message
// that depends on it forces re-verification instead of silently reusing a
// confidence the user already disavowed.
func (m *Manager) InvalidateOnRelocation(ctx context.Context, platform model.Platform, userID string, now time.Time) error {
	if err := m.Store.InvalidateUserTimezone(ctx, platform, userID, now); err != nil {
		return fmt.Errorf("invalidate user timezone: %w", err)
	}
	return nil
}

// ShouldPromptVerification reports whether the user's current state (if
// any) has decayed below the confidence threshold and should trigger a
// re-verification session.
func (m *Manager) ShouldPromptVerification(ctx context.Context, platform model.Platform, userID string, now time.Time) (bool, error) {
	user, err := m.Store.GetUser(ctx, platform, userID)
	if errors.Is(err, persistence.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("load user state: %w", err)
	}
	if user.TzIANA == "" {
		return true, nil
	}
	eff := EffectiveConfidence(user.Confidence, m.DecayPerDay, user.UpdatedAt, now)
	return eff < m.Threshold, nil
}
