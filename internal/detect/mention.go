// Package detect implements the trigger detectors that turn one normalized
// inbound event into zero or more model.DetectedTrigger values: a bot
// mention/help request, a time reference, or a relocation statement.
package detect

import (
	"context"
	"regexp"

	"github.com/basket/tzwatch/internal/model"
)

const mentionConfidence = 0.95

type mentionPattern struct {
	re   *regexp.Regexp
	name string
}

var mentionPatterns = []mentionPattern{
	{regexp.MustCompile(`(?i)@\w*bot\b`), "at_bot"},
	{regexp.MustCompile(`(?i)\bбот\b`), "bot_ru"},
	{regexp.MustCompile(`(?i)\bbot\b`), "bot_en"},
	{regexp.MustCompile(`(?i)\bпомощь\b`), "help_ru"},
	{regexp.MustCompile(`(?i)\bhelp\b`), "help_en"},
}

// MentionDetector fires on bot invocations and help requests.
type MentionDetector struct{}

// Detect returns at most one trigger: the first pattern in priority order
// that matches.
func (MentionDetector) Detect(_ context.Context, event model.NormalizedEvent) []model.DetectedTrigger {
	for _, p := range mentionPatterns {
		loc := p.re.FindStringIndex(event.Text)
		if loc == nil {
			continue
		}
		return []model.DetectedTrigger{{
			TriggerType:  model.TriggerMention,
			Confidence:   mentionConfidence,
			OriginalText: event.Text[loc[0]:loc[1]],
			Data:         map[string]any{"pattern": p.name},
		}}
	}
	return nil
}
