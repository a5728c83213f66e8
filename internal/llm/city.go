package llm

import (
	"context"
	"fmt"
	"strings"
)

const cityNormalizationSystemPrompt = `You normalize a free-form location string to one canonical English city name.
Respond with the city name only, no country, no punctuation, no explanation.
If the location cannot be resolved to a real city, respond with exactly: UNKNOWN`

// NormalizeCity asks the model to canonicalize a location string (an
// inflected form, a misspelling, a colloquial name) to one English city
// name. Returns UnknownCity if the model can't resolve it, or if the call
// itself fails.
func (c *Client) NormalizeCity(ctx context.Context, location string) (string, error) {
	userPrompt := fmt.Sprintf("Location: %q", location)

	out, err := c.call(ctx, OpCityNormalization, func(ctx context.Context) (string, error) {
		return c.creator.CreateMessage(ctx, cityNormalizationSystemPrompt, userPrompt, c.maxTokens)
	})
	if err != nil {
		return UnknownCity, err
	}
	return parseCityNormalization(out), nil
}

func parseCityNormalization(raw string) string {
	city := strings.TrimSpace(raw)
	if city == "" || strings.EqualFold(city, UnknownCity) {
		return UnknownCity
	}
	return city
}
