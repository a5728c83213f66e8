package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/basket/tzwatch/internal/model"
)

// fallbackTimeConfidence is the confidence stamped on every ParsedTime this
// package produces, since the model is never asked to self-report one.
const fallbackTimeConfidence = 0.8

const timeExtractionSystemPrompt = `You extract clock times mentioned in a chat message.
Respond with a JSON array only, no prose. Each element has the shape:
{"hour": <0-23>, "minute": <0-59>, "timezone_hint": "<IANA name or empty string>", "is_tomorrow": <bool>}
If the message contains no time reference, respond with [].`

type wireParsedTime struct {
	Hour         int    `json:"hour"`
	Minute       int    `json:"minute"`
	TimezoneHint string `json:"timezone_hint"`
	IsTomorrow   bool   `json:"is_tomorrow"`
}

// ExtractTime asks the model to find clock times in text when the regex
// layer and the ML classifier both came up empty. tzHint, if non-empty, is
// passed along as context the model may echo back in its own hint field.
func (c *Client) ExtractTime(ctx context.Context, text, tzHint string) ([]model.ParsedTime, error) {
	userPrompt := fmt.Sprintf("Message: %q\nKnown sender timezone hint (may be empty): %q", text, tzHint)

	out, err := c.call(ctx, OpTimeExtraction, func(ctx context.Context) (string, error) {
		return c.creator.CreateMessage(ctx, timeExtractionSystemPrompt, userPrompt, c.maxTokens)
	})
	if err != nil {
		return nil, err
	}
	return parseTimeExtractionResponse(out, text)
}

func parseTimeExtractionResponse(raw, originalText string) ([]model.ParsedTime, error) {
	payload, err := extractJSONObject(raw)
	if err != nil {
		return nil, err
	}
	var wire []wireParsedTime
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, fmt.Errorf("llm: decode time extraction response: %w", err)
	}

	results := make([]model.ParsedTime, 0, len(wire))
	for _, w := range wire {
		if w.Hour < 0 || w.Hour > 23 || w.Minute < 0 || w.Minute > 59 {
			continue
		}
		results = append(results, model.ParsedTime{
			OriginalText: originalText,
			Hour:         w.Hour,
			Minute:       w.Minute,
			TimezoneHint: w.TimezoneHint,
			IsTomorrow:   w.IsTomorrow,
			Confidence:   fallbackTimeConfidence,
		})
	}
	return results, nil
}
