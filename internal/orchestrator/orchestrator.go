// Package orchestrator is the top-level entry point every inbound event
// reaches after a channel adapter normalizes it. It decides, in order:
// whether the sender has an active session and the message should be
// routed there instead of the trigger pipeline; whether the event is a
// duplicate redelivery or the chat is being throttled/rate-limited; and,
// once the pipeline has run, whether a new session needs to be opened to
// collect missing state before anything else can be said.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/basket/tzwatch/internal/limits"
	"github.com/basket/tzwatch/internal/model"
	"github.com/basket/tzwatch/internal/persistence"
	"github.com/basket/tzwatch/internal/pipeline"
	"github.com/basket/tzwatch/internal/session"
)

// Result is what Route produces: the replies to send, and whether the
// event was considered handled (as opposed to silently dropped by a
// dedup/throttle/rate-limit gate).
type Result struct {
	Messages []model.OutboundMessage
	Handled  bool
}

// Orchestrator wires the session machine, the trigger pipeline, and the
// defensive gates (dedup, throttle, rate limit) in front of it.
type Orchestrator struct {
	Store       *persistence.Store
	Session     *session.Manager
	Pipeline    *pipeline.Pipeline
	Throttle    *limits.Throttle
	RateLimiter *limits.RateLimiter
	Logger      *slog.Logger
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Route is the single entry point for a normalized inbound event.
func (o *Orchestrator) Route(ctx context.Context, event model.NormalizedEvent, now time.Time) (Result, error) {
	sess, err := o.Store.GetActiveSession(ctx, event.Platform, event.ChatID, event.UserID)
	switch {
	case err == nil:
		// An active session owns every message from this user in this
		// chat until it closes — no dedup or throttle check applies here,
		// matching the "session-first" dispatch the rest of the pipeline
		// is bypassed for.
		return o.routeToSession(ctx, sess, event, now)
	case errors.Is(err, persistence.ErrNotFound):
		// no active session, fall through to the ordinary gates
	default:
		return Result{}, fmt.Errorf("load active session: %w", err)
	}

	// A read-only check here, not an insert: marking the event processed is
	// deferred until a user-visible action is actually decided below, so a
	// crash or cancellation mid-pipeline leaves the event eligible for
	// webhook retry instead of silently dropping it.
	seen, err := o.Store.WasProcessed(ctx, event.Platform, event.EventID)
	if err != nil {
		return Result{}, fmt.Errorf("dedup check: %w", err)
	}
	if seen {
		return Result{}, nil
	}

	if o.Throttle != nil && o.Throttle.IsThrottled(string(event.Platform), event.ChatID, now) {
		return Result{}, nil
	}

	if o.RateLimiter != nil {
		if allowed, reason, _ := o.RateLimiter.CheckRateLimit(string(event.Platform), event.UserID, event.ChatID, now); !allowed {
			o.logger().Debug("rate limited", "platform", event.Platform, "chat_id", event.ChatID, "reason", reason)
			return Result{}, nil
		}
	}

	pr := o.Pipeline.Process(ctx, event, now)
	for _, procErr := range pr.Errors {
		o.logger().Error("pipeline trigger error", "error", procErr)
	}

	if pr.NeedsStateCollection && pr.StateCollectionTrigger != nil {
		msgs, err := o.startStateCollection(ctx, event, *pr.StateCollectionTrigger, now)
		if err != nil {
			return Result{}, err
		}
		if len(msgs) > 0 {
			if err := o.markProcessed(ctx, event, now); err != nil {
				return Result{}, err
			}
		}
		o.recordIfAny(event, msgs, now)
		return Result{Messages: msgs, Handled: len(msgs) > 0}, nil
	}

	if len(pr.Messages) > 0 {
		if err := o.markProcessed(ctx, event, now); err != nil {
			return Result{}, err
		}
	}
	o.recordIfAny(event, pr.Messages, now)
	return Result{Messages: pr.Messages, Handled: len(pr.Messages) > 0}, nil
}

// markProcessed records the event as admitted past the dedup gate. Called
// only once a reply or a new session has actually been produced, per the
// session-creation-then-mark-processed ordering the goal state machine
// relies on for at-most-once delivery under webhook retry.
func (o *Orchestrator) markProcessed(ctx context.Context, event model.NormalizedEvent, now time.Time) error {
	if _, err := o.Store.MarkProcessed(ctx, model.DedupEvent{
		Platform:  event.Platform,
		EventID:   event.EventID,
		ChatID:    event.ChatID,
		CreatedAt: now,
	}); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}

func (o *Orchestrator) recordIfAny(event model.NormalizedEvent, msgs []model.OutboundMessage, now time.Time) {
	if len(msgs) > 0 && o.Throttle != nil {
		o.Throttle.RecordResponse(string(event.Platform), event.ChatID, now)
	}
}

func (o *Orchestrator) routeToSession(ctx context.Context, sess *model.Session, event model.NormalizedEvent, now time.Time) (Result, error) {
	turn, err := o.Session.HandleTurn(ctx, sess, event.Platform, event.ChatID, event.UserID, event.Text, now)
	if err != nil {
		return Result{}, fmt.Errorf("handle session turn: %w", err)
	}
	msg := model.OutboundMessage{
		Platform:         event.Platform,
		ChatID:           event.ChatID,
		Text:             turn.Reply,
		ReplyToMessageID: event.MessageID,
	}
	return Result{Messages: []model.OutboundMessage{msg}, Handled: true}, nil
}

// startStateCollection opens the session the pipeline's trigger calls for,
// seeding it with whatever the trigger already resolved, and returns the
// opening prompt as the reply to send.
func (o *Orchestrator) startStateCollection(ctx context.Context, event model.NormalizedEvent, trig model.DetectedTrigger, now time.Time) ([]model.OutboundMessage, error) {
	existingTz := ""
	user, err := o.Store.GetUser(ctx, event.Platform, event.UserID)
	switch {
	case err == nil:
		existingTz = user.TzIANA
	case errors.Is(err, persistence.ErrNotFound):
		// never set, AWAITING_TIMEZONE applies
	default:
		return nil, fmt.Errorf("load existing user state: %w", err)
	}

	goal, seed, prompt := planSession(trig, existingTz)
	seed.ExistingTz = existingTz
	seed.OriginalTrigger = trig.Data

	if _, err := o.Session.Create(ctx, event.Platform, event.ChatID, event.UserID, goal, seed, now); err != nil {
		if errors.Is(err, persistence.ErrSessionAlreadyActive) {
			// Lost the race with another event for this user in this
			// chat; whichever session won handles the next reply.
			return nil, nil
		}
		return nil, fmt.Errorf("create session: %w", err)
	}

	return []model.OutboundMessage{{
		Platform:         event.Platform,
		ChatID:           event.ChatID,
		Text:             prompt,
		ReplyToMessageID: event.MessageID,
	}}, nil
}

// planSession picks the session goal, seed context, and opening prompt for
// a trigger that needs more state than the pipeline alone could resolve.
func planSession(trig model.DetectedTrigger, existingTz string) (model.SessionGoal, model.SessionContext, string) {
	switch trig.TriggerType {
	case model.TriggerRelocation, model.TriggerGeoMention:
		if tz, _ := trig.Data["resolved_tz"].(string); tz != "" {
			city, _ := trig.Data["resolved_city"].(string)
			if city == "" {
				city, _ = trig.Data["city"].(string)
			}
			return model.GoalConfirmRelocation,
				model.SessionContext{ResolvedCity: city, ResolvedTz: tz, OriginalText: trig.OriginalText},
				fmt.Sprintf("You're now in %s (%s)?", city, tz)
		}
		if trig.TriggerType == model.TriggerGeoMention {
			city, _ := trig.Data["city"].(string)
			tz, _ := trig.Data["tz_iana"].(string)
			return model.GoalGeoIntent,
				model.SessionContext{ResolvedCity: city, ResolvedTz: tz, OriginalText: trig.OriginalText},
				"Just to be sure — are you sharing a time, or did you move?"
		}
		city, _ := trig.Data["city"].(string)
		return model.GoalConfirmRelocation,
			model.SessionContext{ResolvedCity: city, OriginalText: trig.OriginalText},
			fmt.Sprintf("Sorry, I couldn't place %q — what city are you in now?", city)
	default:
		if existingTz != "" {
			return model.GoalReverifyTimezone,
				model.SessionContext{OriginalText: trig.OriginalText},
				fmt.Sprintf("Still in %s? Reply yes, or tell me your new city.", existingTz)
		}
		return model.GoalAwaitingTimezone,
			model.SessionContext{OriginalText: trig.OriginalText},
			"What city are you in? (e.g. Berlin, Tokyo, Europe/Moscow)"
	}
}
