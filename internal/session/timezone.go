package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/basket/tzwatch/internal/model"
	"github.com/basket/tzwatch/internal/timeparse"
)

// timezoneTurn handles both AWAITING_TIMEZONE and REVERIFY_TIMEZONE, whose
// terminal semantics are identical ("Same as above" in spec's table): save
// with source=city_pick, confidence 1.0, update the chat projection, reply
// "Saved: <tz>". Resolution tries, in order: an explicit IANA zone name, a
// recognized abbreviation or city hint, and the free-text geocoder.
func (m *Manager) timezoneTurn(ctx context.Context, sess *model.Session, platform model.Platform, userID, chatID, text string, now time.Time) (TurnResult, error) {
	tz := m.resolveTimezoneFromReply(text, sess.Context.OriginalText)
	if tz == "" {
		if m.attemptLimitReached(sess) {
			return m.failTurn(sess, platform, userID, chatID, "I still couldn't place your timezone.", now), nil
		}
		return TurnResult{Reply: "Sorry, I didn't catch that — what city are you in? (e.g. Berlin, Tokyo, Europe/Moscow)"}, nil
	}

	if err := m.Identity.Update(ctx, platform, userID, chatID, tz, model.SourceCityPick, now); err != nil {
		return TurnResult{}, fmt.Errorf("save timezone: %w", err)
	}
	return TurnResult{Reply: fmt.Sprintf("Saved: %s", tz), Terminal: true, Status: model.SessionCompleted}, nil
}

// resolveTimezoneFromReply tries direct IANA validation, then the
// abbreviation/city-hint table, then the free-text geocoder against the
// reply itself, falling back to a relocation-style "moved to X" mention in
// the session's own originally-recorded text if the reply alone resolves
// nothing.
func (m *Manager) resolveTimezoneFromReply(reply, originalText string) string {
	if iana := validIANAToken(reply); iana != "" {
		return iana
	}
	if hint := timeparse.TimezoneHint(reply); hint != "" {
		return hint
	}
	if match, ok := m.Geocoder.Lookup(reply); ok {
		return match.TzIANA
	}
	if originalText != "" {
		if matches := m.Geocoder.FindInText(originalText); len(matches) > 0 {
			return matches[0].TzIANA
		}
	}
	return ""
}

// validIANAToken reports whether text, trimmed, looks like and resolves to
// a real IANA zone name (e.g. "Europe/Moscow"). Uses time.LoadLocation as
// the authority rather than a hand-maintained zone list.
func validIANAToken(text string) string {
	candidate := strings.TrimSpace(text)
	if !strings.Contains(candidate, "/") {
		return ""
	}
	if _, err := time.LoadLocation(candidate); err != nil {
		return ""
	}
	return candidate
}
