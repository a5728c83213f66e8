package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/basket/tzwatch/internal/model"
)

// confirmationWords and rejectionWords are the closed, pure-rule reply sets
// for CONFIRM_RELOCATION — no LLM involved, per spec.
var confirmationWords = map[string]bool{
	"да": true, "yes": true, "ок": true, "ok": true,
	"верно": true, "правильно": true, "+": true,
	"угу": true, "ага": true, "yep": true,
}

var rejectionWords = map[string]bool{
	"нет": true, "no": true, "неверно": true, "не": true, "nope": true,
}

func normalizeReply(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

func isConfirmation(text string) bool {
	norm := normalizeReply(text)
	if confirmationWords[norm] {
		return true
	}
	return strings.HasPrefix(norm, "да")
}

func isRejection(text string) bool {
	return rejectionWords[normalizeReply(text)]
}

// confirmRelocationTurn implements spec's pure-rule CONFIRM_RELOCATION turn:
// a closed confirmation/rejection vocabulary, and otherwise an attempt to
// geocode the reply as a new city candidate.
func (m *Manager) confirmRelocationTurn(ctx context.Context, sess *model.Session, platform model.Platform, userID, chatID, text string, now time.Time) (TurnResult, error) {
	switch {
	case isConfirmation(text):
		tz := sess.Context.ResolvedTz
		if tz == "" {
			return m.failTurn(sess, platform, userID, chatID, "I don't have a city to confirm anymore — what city are you in?", now), nil
		}
		if err := m.Identity.Update(ctx, platform, userID, chatID, tz, model.SourceRelocationConfirmed, now); err != nil {
			return TurnResult{}, fmt.Errorf("confirm relocation: %w", err)
		}
		return TurnResult{Reply: fmt.Sprintf("Saved: %s", tz), Terminal: true, Status: model.SessionCompleted}, nil

	case isRejection(text):
		if m.attemptLimitReached(sess) {
			return m.failTurn(sess, platform, userID, chatID, "Let's try this another way.", now), nil
		}
		sess.Context.ResolvedCity = ""
		sess.Context.ResolvedTz = ""
		return TurnResult{Reply: "Got it — what city, then?"}, nil

	default:
		match, ok := m.Geocoder.Lookup(text)
		if m.attemptLimitReached(sess) {
			return m.failTurn(sess, platform, userID, chatID, "I still couldn't pin that down.", now), nil
		}
		if !ok {
			return TurnResult{Reply: "Sorry, I couldn't find that city — what city, then?"}, nil
		}
		sess.Context.ResolvedCity = match.CanonicalName
		sess.Context.ResolvedTz = match.TzIANA
		return TurnResult{Reply: fmt.Sprintf("You're now in %s (%s)?", match.CanonicalName, match.TzIANA)}, nil
	}
}
