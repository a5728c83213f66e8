// Package pipeline runs every trigger detector over one normalized inbound
// event, resolves the context each action handler needs (the sender's
// effective timezone, the chat's conversion targets), and dispatches each
// detected trigger to its registered handler. It has no idea which
// platform an event came from or how a session gets created — those are
// the orchestrator's job, one layer up.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/basket/tzwatch/internal/config"
	"github.com/basket/tzwatch/internal/detect"
	"github.com/basket/tzwatch/internal/llm"
	"github.com/basket/tzwatch/internal/model"
	"github.com/basket/tzwatch/internal/persistence"
	"github.com/basket/tzwatch/internal/tzidentity"
)

// TargetTimezone is one entry in a ResolvedContext's conversion target set,
// tagged with which configured source contributed it so replies can
// annotate each conversion line accordingly.
type TargetTimezone struct {
	Tz     string
	Source string // "team" or "chat"
}

// ResolvedContext is what every ActionHandler gets alongside the trigger it
// is asked to act on: the sender's already-resolved effective timezone and
// the set of timezones replies should convert into.
type ResolvedContext struct {
	Platform        model.Platform
	ChatID          string
	UserID          string
	UserTz          string // effective resolved tz, "" if unresolved
	TargetTimezones []TargetTimezone
}

// ActionHandler reacts to one detected trigger, returning zero or more
// outbound messages. A handler that needs no reply (e.g. a relocation that
// only mutates state) returns (nil, nil).
type ActionHandler interface {
	Handle(ctx context.Context, trig model.DetectedTrigger, rc ResolvedContext) ([]model.OutboundMessage, error)
}

// Result aggregates one Process call's output: the replies to send, how
// many triggers fired versus were actually handled, any per-trigger
// errors (logged, not fatal), and whether a session needs to be opened to
// collect missing state.
type Result struct {
	Messages               []model.OutboundMessage
	TriggersDetected        int
	TriggersHandled         int
	Errors                  []error
	NeedsStateCollection    bool
	StateCollectionTrigger  *model.DetectedTrigger
}

// Pipeline wires the three structural detectors, the optional ambiguous
// geo-mention detector, and the per-trigger-type handler registry over a
// resolved identity/chat context.
type Pipeline struct {
	Store      *persistence.Store
	Identity   *tzidentity.Manager
	Mention    detect.MentionDetector
	Relocation detect.RelocationDetector
	Time       detect.TimeDetector
	GeoMention detect.GeoMentionDetector
	Handlers   map[model.TriggerType]ActionHandler
	Timezone   config.TimezoneConfig

	MentionEnabled bool
}

// Process runs every detector over event, resolves the acting context, and
// dispatches each trigger to its handler. Detector and handler failures are
// collected in Result.Errors rather than aborting the rest of the batch —
// one bad trigger should never suppress another trigger's reply.
func (p *Pipeline) Process(ctx context.Context, event model.NormalizedEvent, now time.Time) Result {
	var result Result
	var triggers []model.DetectedTrigger

	if p.MentionEnabled {
		triggers = append(triggers, p.Mention.Detect(ctx, event)...)
	}

	relocationTriggers := p.Relocation.Detect(ctx, event)
	triggers = append(triggers, relocationTriggers...)

	userTz := p.resolveUserTz(ctx, event, now)
	timeTriggers := p.Time.Detect(ctx, event, userTz)
	triggers = append(triggers, timeTriggers...)

	// The ambiguous geo-mention path only runs when neither structural
	// detector already explained the city mention — running it
	// unconditionally would double-fire on every relocation statement,
	// since those also name a city.
	if len(relocationTriggers) == 0 && len(timeTriggers) == 0 {
		triggers = append(triggers, p.GeoMention.Detect(ctx, event)...)
	}

	result.TriggersDetected = len(triggers)

	rc := ResolvedContext{
		Platform:        event.Platform,
		ChatID:          event.ChatID,
		UserID:          event.UserID,
		UserTz:          userTz,
		TargetTimezones: p.targetTimezones(ctx, event),
	}

	for i := range triggers {
		trig := triggers[i]
		handler, ok := p.Handlers[trig.TriggerType]
		if !ok {
			continue
		}

		msgs, err := handler.Handle(ctx, trig, rc)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("handle %s trigger: %w", trig.TriggerType, err))
			continue
		}
		result.TriggersHandled++
		result.Messages = append(result.Messages, msgs...)

		if !result.NeedsStateCollection && p.needsStateCollection(trig) {
			result.NeedsStateCollection = true
			copyTrig := trig
			result.StateCollectionTrigger = &copyTrig
		}
	}

	return result
}

// resolveUserTz resolves the sender's effective timezone with no explicit
// message hint, so TimeDetector has a fallback to fill in source_tz when
// neither the parser nor a "по <city>" mention supplies one. Any storage
// error degrades to "unresolved" rather than failing the whole event.
func (p *Pipeline) resolveUserTz(ctx context.Context, event model.NormalizedEvent, now time.Time) string {
	if p.Identity == nil {
		return ""
	}
	res, err := p.Identity.Resolve(ctx, event.Platform, event.UserID, event.ChatID, "", now)
	if err != nil {
		return ""
	}
	return res.TzIANA
}

// targetTimezones merges the configured team timezone list with the chat's
// own live projection of participants' active timezones, config first,
// duplicates removed — the chat's roster still contributes even when a
// static team list is configured, and a chat with no static roster still
// gets useful conversions once its members have set a timezone. Each
// surviving timezone is tagged with whichever set it came from so replies
// can annotate "team" versus "chat".
func (p *Pipeline) targetTimezones(ctx context.Context, event model.NormalizedEvent) []TargetTimezone {
	seen := make(map[string]bool, len(p.Timezone.TeamTimezones))
	out := make([]TargetTimezone, 0, len(p.Timezone.TeamTimezones))
	for _, tz := range p.Timezone.TeamTimezones {
		if tz == "" || seen[tz] {
			continue
		}
		seen[tz] = true
		out = append(out, TargetTimezone{Tz: tz, Source: "team"})
	}

	if p.Store == nil {
		return out
	}
	chat, err := p.Store.GetChat(ctx, event.Platform, event.ChatID)
	if err != nil {
		return out
	}
	for _, tz := range chat.ActiveTimezones {
		if tz == "" || seen[tz] {
			continue
		}
		seen[tz] = true
		out = append(out, TargetTimezone{Tz: tz, Source: "chat"})
	}
	return out
}

// needsStateCollection decides whether a successfully-handled trigger still
// leaves the orchestrator needing to open a session: an unresolved time
// mention, any relocation statement, or a geo-mention classified as a
// relocation or left uncertain.
func (p *Pipeline) needsStateCollection(trig model.DetectedTrigger) bool {
	switch trig.TriggerType {
	case model.TriggerRelocation:
		return true
	case model.TriggerGeoMention:
		intent, _ := trig.Data["geo_intent"].(string)
		return intent == string(llm.GeoIntentRelocation) || intent == string(llm.GeoIntentUncertain)
	case model.TriggerTime:
		sourceTz, _ := trig.Data["source_tz"].(string)
		return sourceTz == ""
	default:
		return false
	}
}
