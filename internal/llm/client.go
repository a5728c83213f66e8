// Package llm wraps the three LLM fallback operations the pipeline falls
// back to when regex and the ML classifiers can't decide: time extraction,
// geo intent classification, and city normalization. Every call goes
// through a per-operation circuit breaker and a bounded timeout; any
// failure degrades to "no result" rather than propagating out of the
// pipeline.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/basket/tzwatch/internal/config"
	"github.com/basket/tzwatch/internal/limits"
)

// Logical operation names, each with its own circuit breaker.
const (
	OpTimeExtraction    = "time_extraction"
	OpGeoIntent         = "geo_intent"
	OpCityNormalization = "city_normalization"
)

// UnknownCity is the sentinel NormalizeCity returns when the model can't
// resolve a location string to a canonical city name.
const UnknownCity = "UNKNOWN"

// messageCreator is the seam between Client's operation methods and the
// Anthropic wire call, so tests can substitute a stub instead of hitting
// the network.
type messageCreator interface {
	CreateMessage(ctx context.Context, system, user string, maxTokens int) (string, error)
}

// anthropicCreator is the production messageCreator, backed by the real
// Anthropic SDK client.
type anthropicCreator struct {
	client *anthropic.Client
	model  string
}

func (a *anthropicCreator) CreateMessage(ctx context.Context, system, user string, maxTokens int) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic messages.new: %w", err)
	}
	for _, block := range msg.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			return text.Text, nil
		}
	}
	return "", fmt.Errorf("anthropic response contained no text block")
}

// Client bounds and breaker-gates the three LLM fallback operations.
type Client struct {
	creator   messageCreator
	model     string
	maxTokens int
	timeout   time.Duration
	margin    time.Duration
	breakers  *limits.Breakers
}

// NewClient builds a Client from the app's LLM configuration, wiring an
// anthropic.Client configured from cfg.APIKey. breakers supplies one
// CircuitBreaker per logical operation via Breakers.For.
func NewClient(cfg config.LLMConfig, breakers *limits.Breakers) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: api_key is required")
	}
	apiClient := anthropic.NewClient(option.WithAPIKey(cfg.APIKey))
	return newClient(&anthropicCreator{client: &apiClient, model: cfg.Model}, cfg, breakers), nil
}

func newClient(creator messageCreator, cfg config.LLMConfig, breakers *limits.Breakers) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 512
	}
	return &Client{
		creator:   creator,
		model:     cfg.Model,
		maxTokens: maxTokens,
		timeout:   timeout,
		margin:    2 * time.Second,
		breakers:  breakers,
	}
}

// call runs fn under operation's circuit breaker and a bounded timeout. The
// inner context is cancelled after c.timeout; an outer goroutine guard adds
// c.margin on top so a call that ignores context cancellation still returns
// control to the caller instead of hanging the pipeline indefinitely.
func (c *Client) call(ctx context.Context, operation string, fn func(ctx context.Context) (string, error)) (string, error) {
	breaker := c.breakers.For(operation)
	now := time.Now()
	if !breaker.Allow(now) {
		return "", fmt.Errorf("llm: circuit breaker open for %s", operation)
	}

	innerCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type outcome struct {
		text string
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		text, err := fn(innerCtx)
		done <- outcome{text: text, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			breaker.RecordFailure(time.Now())
			return "", out.err
		}
		breaker.RecordSuccess()
		return out.text, nil
	case <-time.After(c.timeout + c.margin):
		breaker.RecordFailure(time.Now())
		return "", fmt.Errorf("llm: %s timed out after %s", operation, c.timeout+c.margin)
	}
}

func extractJSONObject(text string) (json.RawMessage, error) {
	start, end := -1, -1
	depth := 0
	for i, r := range text {
		switch r {
		case '{', '[':
			if start == -1 {
				start = i
			}
			depth++
		case '}', ']':
			depth--
			if depth == 0 && start != -1 {
				end = i + 1
			}
		}
		if end != -1 {
			break
		}
	}
	if start == -1 || end == -1 {
		return nil, fmt.Errorf("llm: no JSON payload found in model output")
	}
	return json.RawMessage(text[start:end]), nil
}
