package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/basket/tzwatch/internal/model"
)

// timeQueryWords are the closed set of reply tokens that mark a GEO_INTENT
// clarification as "I was only mentioning a time", alongside any reply
// containing a digit.
var timeQueryWords = map[string]bool{
	"time": true, "when": true, "meeting": true, "schedule": true,
	"время": true, "час": true, "часов": true, "когда": true, "встреча": true,
}

func looksLikeTimeQuery(text string) bool {
	norm := normalizeReply(text)
	if norm == "" {
		return false
	}
	for _, r := range norm {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	for _, word := range strings.Fields(norm) {
		if timeQueryWords[word] {
			return true
		}
	}
	return false
}

// relocationReplyWords are the closed set of reply tokens that mark a
// GEO_INTENT clarification as "yes, I moved", reusing confirmRelocationTurn's
// confirmation vocabulary plus a few relocation-specific stems.
var relocationReplyWords = map[string]bool{
	"moved": true, "move": true, "relocated": true, "here": true,
	"переехал": true, "переехала": true, "теперь": true, "тут": true, "здесь": true,
}

func looksLikeRelocationReply(text string) bool {
	norm := normalizeReply(text)
	if isConfirmation(text) {
		return true
	}
	for _, word := range strings.Fields(norm) {
		if relocationReplyWords[word] {
			return true
		}
	}
	return false
}

// geoIntentTurn handles GEO_INTENT: the pipeline spotted a city mention it
// couldn't otherwise classify and asked the user directly whether it was a
// time reference or a relocation. A relocation reply saves the candidate
// city/tz carried in the session's seed context (from the original
// geo-mention trigger) or, if the reply itself names a city, geocodes that
// instead.
func (m *Manager) geoIntentTurn(ctx context.Context, sess *model.Session, platform model.Platform, userID, chatID, text string, now time.Time) (TurnResult, error) {
	switch {
	case looksLikeRelocationReply(text):
		tz := sess.Context.ResolvedTz
		city := sess.Context.ResolvedCity
		if match, ok := m.Geocoder.Lookup(text); ok {
			tz = match.TzIANA
			city = match.CanonicalName
		}
		if tz == "" {
			if m.attemptLimitReached(sess) {
				return m.failTurn(sess, platform, userID, chatID, "I still couldn't place that city.", now), nil
			}
			return TurnResult{Reply: "What city did you move to?"}, nil
		}
		if err := m.Identity.Update(ctx, platform, userID, chatID, tz, model.SourceRelocationConfirmed, now); err != nil {
			return TurnResult{}, fmt.Errorf("save relocation from geo intent: %w", err)
		}
		reply := fmt.Sprintf("Saved: %s", tz)
		if city != "" {
			reply = fmt.Sprintf("Saved: %s (%s)", city, tz)
		}
		return TurnResult{Reply: reply, Terminal: true, Status: model.SessionCompleted}, nil

	case looksLikeTimeQuery(text):
		return TurnResult{Reply: "Got it, just a time reference — no changes needed.", Terminal: true, Status: model.SessionCompleted}, nil

	default:
		if m.attemptLimitReached(sess) {
			return m.failTurn(sess, platform, userID, chatID, "Let's leave it there.", now), nil
		}
		return TurnResult{Reply: "Just to be sure — are you sharing a time, or did you move?"}, nil
	}
}
