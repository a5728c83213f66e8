package llm

import (
	"context"
	"fmt"
	"strings"
)

// GeoIntent classifies why a city name appeared in a message, for the case
// where a city was detected but no explicit relocation or time pattern
// matched it.
type GeoIntent string

const (
	GeoIntentTimeQuery     GeoIntent = "time_query"
	GeoIntentRelocation    GeoIntent = "relocation"
	GeoIntentFalsePositive GeoIntent = "false_positive"
	GeoIntentUncertain     GeoIntent = "uncertain"
)

const geoIntentSystemPrompt = `You classify why a city name appears in a chat message.
Respond with exactly one word, no punctuation, one of:
time_query relocation false_positive uncertain`

// ClassifyGeoIntent asks the model to disambiguate a detected city mention.
// Any failure or unrecognized response degrades to GeoIntentUncertain rather
// than erroring, since the pipeline treats "uncertain" as a safe default.
func (c *Client) ClassifyGeoIntent(ctx context.Context, text, city string) (GeoIntent, error) {
	userPrompt := fmt.Sprintf("Message: %q\nDetected city: %q", text, city)

	out, err := c.call(ctx, OpGeoIntent, func(ctx context.Context) (string, error) {
		return c.creator.CreateMessage(ctx, geoIntentSystemPrompt, userPrompt, c.maxTokens)
	})
	if err != nil {
		return GeoIntentUncertain, err
	}
	return parseGeoIntent(out), nil
}

func parseGeoIntent(raw string) GeoIntent {
	word := strings.ToLower(strings.TrimSpace(raw))
	switch GeoIntent(word) {
	case GeoIntentTimeQuery, GeoIntentRelocation, GeoIntentFalsePositive:
		return GeoIntent(word)
	default:
		return GeoIntentUncertain
	}
}
