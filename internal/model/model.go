// Package model holds the immutable value types and mutable state records
// shared across the ingest pipeline: normalized inbound events, outbound
// replies, parsed time mentions, timezone identity records, and session
// state.
package model

import "time"

// Platform enumerates the supported messaging networks.
type Platform string

const (
	PlatformTelegram Platform = "telegram"
	PlatformSlack    Platform = "slack"
	PlatformDiscord  Platform = "discord"
	PlatformWhatsApp Platform = "whatsapp"
)

// ParseMode controls how an OutboundMessage's text is rendered by the
// target platform adapter.
type ParseMode string

const (
	ParseModePlain    ParseMode = "plain"
	ParseModeMarkdown ParseMode = "markdown"
	ParseModeHTML     ParseMode = "html"
)

// NormalizedEvent is the platform-agnostic shape every wire adapter
// produces. It is immutable once constructed. (platform, event_id) is
// unique across the dedup window.
type NormalizedEvent struct {
	Platform          Platform
	EventID           string
	MessageID         string
	ChatID            string
	UserID            string
	Username          string
	DisplayName       string
	Text              string
	Timestamp         time.Time
	ReplyToMessageID  string
	RawPayload        []byte
}

// OutboundMessage is a reply to be sent through a platform adapter.
type OutboundMessage struct {
	Platform         Platform
	ChatID           string
	Text             string
	ReplyToMessageID string
	ParseMode        ParseMode
}

// ParsedTime is the normalized result of the regex/ML/LLM time-extraction
// layers: a wall-clock hour/minute with an optional timezone hint.
type ParsedTime struct {
	OriginalText string
	Hour         int
	Minute       int
	TimezoneHint string // IANA, empty if none
	IsTomorrow   bool
	Confidence   float64
}

// TzSource identifies how a UserTzState's tz_iana/confidence pair was set.
type TzSource string

const (
	SourceWebVerified         TzSource = "web_verified"
	SourceCityPick            TzSource = "city_pick"
	SourceMessageExplicit     TzSource = "message_explicit"
	SourceInferred            TzSource = "inferred"
	SourceRelocationConfirmed TzSource = "relocation_confirmed"
	SourceChatDefault         TzSource = "chat_default"
	SourceDefault             TzSource = "default"
)

// InitialConfidence returns the seed confidence assigned when a
// UserTzState is first set from the given source.
func InitialConfidence(source TzSource) float64 {
	switch source {
	case SourceWebVerified, SourceCityPick, SourceRelocationConfirmed:
		return 1.0
	case SourceMessageExplicit:
		return 0.9
	case SourceInferred:
		return 0.6
	case SourceChatDefault:
		return 0.5
	default:
		return 0.0
	}
}

// UserTzState is the mutable per-(platform,user) timezone identity record.
type UserTzState struct {
	Platform       Platform
	UserID         string
	TzIANA         string // empty means unknown; Confidence must be 0 then
	Confidence     float64
	Source         TzSource
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastVerifiedAt *time.Time
}

// ChatState is the mutable per-(platform,chat) record tracking the
// deduplicated set of timezones currently held by known participants.
type ChatState struct {
	Platform         Platform
	ChatID           string
	DefaultTz        string
	UserTimezones    map[string]string // user_id -> tz_iana
	ActiveTimezones  []string          // sorted, deduplicated projection
}

// RecomputeActiveTimezones rebuilds ActiveTimezones from UserTimezones as
// a sorted, deduplicated projection.
func (c *ChatState) RecomputeActiveTimezones() {
	seen := make(map[string]struct{}, len(c.UserTimezones))
	out := make([]string, 0, len(c.UserTimezones))
	for _, tz := range c.UserTimezones {
		if tz == "" {
			continue
		}
		if _, ok := seen[tz]; ok {
			continue
		}
		seen[tz] = struct{}{}
		out = append(out, tz)
	}
	sortStrings(out)
	c.ActiveTimezones = out
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// TriggerType names what kind of signal a DetectedTrigger carries.
type TriggerType string

const (
	TriggerTime       TriggerType = "time"
	TriggerRelocation TriggerType = "relocation"
	TriggerMention    TriggerType = "mention"
	// TriggerGeoMention fires when a message names a known city but matches
	// neither an explicit relocation phrase nor a parseable time mention —
	// the ambiguous case geo-intent classification exists to resolve.
	TriggerGeoMention TriggerType = "geo_mention"
)

// DetectedTrigger is the uniform output shape of every trigger detector.
// Data carries trigger-specific fields (e.g. a time trigger's
// hour/minute/source_tz, a relocation trigger's candidate city).
type DetectedTrigger struct {
	TriggerType  TriggerType
	Confidence   float64
	OriginalText string
	Data         map[string]any
}

// DedupEvent marks that (platform, event_id) was admitted past the dedup
// gate at some point in the past.
type DedupEvent struct {
	Platform  Platform
	EventID   string
	ChatID    string
	CreatedAt time.Time
}

// SessionGoal names what state a Session is collecting.
type SessionGoal string

const (
	GoalAwaitingTimezone  SessionGoal = "AWAITING_TIMEZONE"
	GoalReverifyTimezone  SessionGoal = "REVERIFY_TIMEZONE"
	GoalConfirmRelocation SessionGoal = "CONFIRM_RELOCATION"
	GoalGeoIntent         SessionGoal = "GEO_INTENT"
)

// SessionStatus is the lifecycle state of a Session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "ACTIVE"
	SessionCompleted SessionStatus = "COMPLETED"
	SessionFailed    SessionStatus = "FAILED"
	SessionExpired   SessionStatus = "EXPIRED"
)

// MaxSessionAttempts bounds the number of non-terminal turns a session may
// take before it is marked FAILED.
const MaxSessionAttempts = 3

// SessionContext is the free-form state bag a session accumulates across
// turns: attempt counter, resolved candidates, original trigger data.
type SessionContext struct {
	Attempts       int
	History        []SessionTurn
	ResolvedCity   string
	ResolvedTz     string
	ExistingTz     string
	VerifyURL      string
	OriginalText   string
	OriginalTrigger map[string]any
}

// SessionTurn is one role-tagged message in a session's history.
type SessionTurn struct {
	Role string // "user" or "assistant"
	Text string
	At   time.Time
}

// Session is a bounded multi-turn interaction acquiring missing state.
type Session struct {
	ID        string
	Platform  Platform
	ChatID    string
	UserID    string
	Goal      SessionGoal
	Status    SessionStatus
	Context   SessionContext
	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt time.Time
}
