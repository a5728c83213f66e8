package detect

import (
	"context"
	"regexp"
	"strings"

	"github.com/basket/tzwatch/internal/model"
)

const relocationConfidence = 0.9

type relocationPattern struct {
	re   *regexp.Regexp
	name string
}

// relocationPatterns covers past/present/future tense, English and
// Russian, each with a capturing group for the candidate city. The
// Russian stems here (переехал/переехала/теперь в/сейчас в/приехал) are
// spec.md §4.4's own closed list.
var relocationPatterns = []relocationPattern{
	{regexp.MustCompile(`(?i)(?:i\s+)?(?:just\s+)?moved?\s+to\s+(\w+(?:\s+\w+)?)`), "moved_to"},
	{regexp.MustCompile(`(?i)(?:i(?:'ve)?\s+)?relocated?\s+to\s+(\w+(?:\s+\w+)?)`), "relocated_to"},
	{regexp.MustCompile(`(?i)(?:i(?:'m)?\s+)?now\s+(?:in|living\s+in)\s+(\w+(?:\s+\w+)?)`), "now_in"},
	{regexp.MustCompile(`(?i)(?:i(?:'m)?\s+)?moving\s+to\s+(\w+(?:\s+\w+)?)`), "moving_to"},
	{regexp.MustCompile(`(?i)приехал[а]?\s+(?:в\s+)?(\w+(?:\s+\w+)?)`), "arrived_ru"},
	{regexp.MustCompile(`(?i)переехал[а]?\s+(?:в\s+)?(\w+(?:\s+\w+)?)`), "relocated_ru"},
	{regexp.MustCompile(`(?i)теперь\s+в\s+(\w+(?:\s+\w+)?)`), "now_in_ru"},
	{regexp.MustCompile(`(?i)сейчас\s+в\s+(\w+(?:\s+\w+)?)`), "currently_in_ru"},
}

// trailingNonCityWords are stripped from a captured city string because
// the greedy two-word capture group can pull in a following word.
var trailingNonCityWords = map[string]bool{
	"last": true, "next": true, "yesterday": true, "today": true,
	"tomorrow": true, "soon": true, "week": true, "month": true, "year": true, "ago": true,
	"живу": true, "жить": true, "буду": true, "работаю": true, "теперь": true,
}

func cleanCity(raw string) string {
	words := strings.Fields(raw)
	if len(words) > 1 && trailingNonCityWords[strings.ToLower(words[len(words)-1])] {
		return strings.Join(words[:len(words)-1], " ")
	}
	return raw
}

// RelocationDetector fires on an explicit statement that the speaker has
// moved, is moving, or is now living somewhere. The candidate city string
// is cleaned here; resolving it to an IANA timezone happens downstream,
// post-detection, via internal/geocoder.
type RelocationDetector struct{}

func (RelocationDetector) Detect(_ context.Context, event model.NormalizedEvent) []model.DetectedTrigger {
	for _, p := range relocationPatterns {
		m := p.re.FindStringSubmatchIndex(event.Text)
		if m == nil {
			continue
		}
		city := cleanCity(strings.TrimSpace(event.Text[m[2]:m[3]]))
		return []model.DetectedTrigger{{
			TriggerType:  model.TriggerRelocation,
			Confidence:   relocationConfidence,
			OriginalText: event.Text[m[0]:m[1]],
			Data:         map[string]any{"city": city, "pattern": p.name},
		}}
	}
	return nil
}
