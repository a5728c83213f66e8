package detect

import (
	"context"
	"regexp"
	"unicode/utf8"

	"github.com/basket/tzwatch/internal/geocoder"
	"github.com/basket/tzwatch/internal/model"
	"github.com/basket/tzwatch/internal/timeparse"
)

// poCityPattern extracts a city from the Russian "по <city>" construction
// ("по Москве", "по Берлину"), used when no explicit abbreviation or city
// hint was found by the regex parser itself.
var poCityPattern = regexp.MustCompile(`(?i)по\s+([а-яёА-ЯЁ][а-яёА-ЯЁ\-]+)`)

// TimeDetector turns parsed time mentions into triggers, resolving each
// one's source timezone through a three-step fallback: the parser's own
// hint, then a "по <city>" geocode (no LLM in this hot path), then the
// caller-supplied effective user timezone.
type TimeDetector struct {
	Geocoder *geocoder.Geocoder
}

// Detect parses event.Text for time mentions and emits one trigger per
// match. userTz is the caller's already-resolved effective timezone,
// consulted only when neither the parser nor the "по <city>" pattern
// yields a hint.
func (d TimeDetector) Detect(_ context.Context, event model.NormalizedEvent, userTz string) []model.DetectedTrigger {
	parsed := timeparse.ParseTimes(event.Text)
	if len(parsed) == 0 {
		return nil
	}

	geocodedOnce := ""
	geocodedTried := false

	triggers := make([]model.DetectedTrigger, 0, len(parsed))
	for _, pt := range parsed {
		sourceTz := pt.TimezoneHint
		isExplicit := sourceTz != ""

		if sourceTz == "" {
			if !geocodedTried {
				geocodedOnce = d.geocodeFromText(event.Text)
				geocodedTried = true
			}
			if geocodedOnce != "" {
				sourceTz = geocodedOnce
				isExplicit = true
			}
		}

		if sourceTz == "" {
			sourceTz = userTz
		}

		triggers = append(triggers, model.DetectedTrigger{
			TriggerType:  model.TriggerTime,
			Confidence:   pt.Confidence,
			OriginalText: pt.OriginalText,
			Data: map[string]any{
				"hour":          pt.Hour,
				"minute":        pt.Minute,
				"timezone_hint": pt.TimezoneHint,
				"source_tz":     sourceTz,
				"is_explicit_tz": isExplicit,
				"is_user_tz":    !isExplicit,
				"is_tomorrow":   pt.IsTomorrow,
			},
		})
	}
	return triggers
}

func (d TimeDetector) geocodeFromText(text string) string {
	if d.Geocoder == nil {
		return ""
	}
	m := poCityPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	city := m[1]
	if utf8.RuneCountInString(city) < 3 {
		return ""
	}
	match, ok := d.Geocoder.Lookup(city)
	if !ok {
		return ""
	}
	return match.TzIANA
}
