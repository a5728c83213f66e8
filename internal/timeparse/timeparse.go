// Package timeparse implements the regex layer of the time-extraction
// pipeline: a fixed, priority-ordered set of clock-time patterns, 12h->24h
// conversion, a tomorrow flag, and timezone-hint extraction. It is the
// first (cheapest, highest-precision) layer; the ML classifier and LLM
// fallback layers live in internal/classify and internal/llm.
package timeparse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/basket/tzwatch/internal/model"
)

// pattern pairs a compiled regex with the confidence its matches carry and
// a handler that turns a match into zero or more ParsedTime entries.
type pattern struct {
	re      *regexp.Regexp
	confidence float64
	extract func(match []string) []model.ParsedTime
}

var patterns []pattern

func init() {
	patterns = []pattern{
		{ // 1: H[H]:MM am|pm|a.m.|p.m.
			re:         regexp.MustCompile(`(?i)\b(\d{1,2}):(\d{2})\s*(a\.?m\.?|p\.?m\.?)\b`),
			confidence: 0.95,
			extract: func(m []string) []model.ParsedTime {
				hour := atoi(m[1])
				minute := atoi(m[2])
				hour = to24Hour(hour, isPM(m[3]))
				return []model.ParsedTime{{Hour: hour, Minute: minute}}
			},
		},
		{ // 2: HhMM / Hh
			re:         regexp.MustCompile(`\b(\d{1,2})h(\d{2})?\b`),
			confidence: 0.90,
			extract: func(m []string) []model.ParsedTime {
				hour := atoi(m[1])
				minute := 0
				if m[2] != "" {
					minute = atoi(m[2])
				}
				return []model.ParsedTime{{Hour: hour, Minute: minute}}
			},
		},
		{ // 3: 4-digit military HHMM[Z]
			re:         regexp.MustCompile(`\b([01]\d|2[0-3])([0-5]\d)(Z)?\b`),
			confidence: 0.90,
			extract: func(m []string) []model.ParsedTime {
				return []model.ParsedTime{{Hour: atoi(m[1]), Minute: atoi(m[2])}}
			},
		},
		{ // 4: HH:MM (24h)
			re:         regexp.MustCompile(`\b([01]\d|2[0-3]):([0-5]\d)\b`),
			confidence: 0.95,
			extract: func(m []string) []model.ParsedTime {
				return []model.ParsedTime{{Hour: atoi(m[1]), Minute: atoi(m[2])}}
			},
		},
		{ // 5: H[H] am|pm
			re:         regexp.MustCompile(`(?i)\b(\d{1,2})\s*(am|pm)\b`),
			confidence: 0.90,
			extract: func(m []string) []model.ParsedTime {
				hour := to24Hour(atoi(m[1]), isPM(m[2]))
				return []model.ParsedTime{{Hour: hour, Minute: 0}}
			},
		},
		{ // 6: H-H am|pm range, two entries
			re:         regexp.MustCompile(`(?i)\b(\d{1,2})-(\d{1,2})\s*(am|pm)\b`),
			confidence: 0.85,
			extract: func(m []string) []model.ParsedTime {
				pm := isPM(m[3])
				return []model.ParsedTime{
					{Hour: to24Hour(atoi(m[1]), pm), Minute: 0},
					{Hour: to24Hour(atoi(m[2]), pm), Minute: 0},
				}
			},
		},
		{ // 7: at H, only applied if nothing else matched
			re:         regexp.MustCompile(`(?i)\bat\s+(\d{1,2})\b`),
			confidence: 0.70,
			extract: func(m []string) []model.ParsedTime {
				return []model.ParsedTime{{Hour: atoi(m[1]) % 24, Minute: 0}}
			},
		},
	}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func isPM(suffix string) bool {
	normalized := strings.ToLower(strings.ReplaceAll(suffix, ".", ""))
	return normalized == "pm"
}

// to24Hour converts a 12-hour clock hour to 24-hour: 12am -> 0, 12pm -> 12,
// Xam (X<12) -> X, Xpm (X<12) -> X+12.
func to24Hour(hour int, pm bool) int {
	if hour == 12 {
		if pm {
			return 12
		}
		return 0
	}
	if pm {
		return hour + 12
	}
	return hour
}

var tomorrowRe = regexp.MustCompile(`(?i)\btomorrow\b`)

// tzAbbreviations maps a closed set of recognized abbreviations to IANA
// zones. Ambiguous/DST-paired abbreviations map to one representative zone;
// this is a hint, not an authoritative offset.
var tzAbbreviations = map[string]string{
	"PST": "America/Los_Angeles", "PDT": "America/Los_Angeles",
	"MST": "America/Denver", "MDT": "America/Denver",
	"CST": "America/Chicago", "CDT": "America/Chicago",
	"EST": "America/New_York", "EDT": "America/New_York",
	"GMT": "Europe/London", "BST": "Europe/London",
	"CET": "Europe/Berlin", "CEST": "Europe/Berlin",
	"JST": "Asia/Tokyo", "AEST": "Australia/Sydney", "AEDT": "Australia/Sydney",
	"UTC": "UTC", "MSK": "Europe/Moscow", "МСК": "Europe/Moscow",
}

// tzCityHints maps a closed set of city name hints to IANA zones, used when
// no abbreviation is present.
var tzCityHints = map[string]string{
	"la": "America/Los_Angeles", "nyc": "America/New_York",
	"london": "Europe/London", "paris": "Europe/Paris",
	"berlin": "Europe/Berlin", "tokyo": "Asia/Tokyo", "sydney": "Australia/Sydney",
}

var wordRe = regexp.MustCompile(`[\p{L}\p{N}]+`)

// TimezoneHint exposes extractTimezoneHint for callers outside this package
// that need the same abbreviation/city-hint lookup without a full parse
// (e.g. the session machine reading a free-text reply for a tz hint).
func TimezoneHint(text string) string {
	return extractTimezoneHint(text)
}

// extractTimezoneHint scans text for the first recognized abbreviation,
// then (if none found) the first recognized city hint, in the order they
// appear.
func extractTimezoneHint(text string) string {
	for _, word := range wordRe.FindAllString(text, -1) {
		if tz, ok := tzAbbreviations[strings.ToUpper(word)]; ok {
			return tz
		}
	}
	for _, word := range wordRe.FindAllString(text, -1) {
		if tz, ok := tzCityHints[strings.ToLower(word)]; ok {
			return tz
		}
	}
	return ""
}

// ParseTimes scans text left to right. At each unclaimed byte position it
// tries patterns 1-6 in priority order, anchored at that exact position, so
// a higher-priority pattern that starts at the same position as a
// lower-priority one always wins (e.g. the "H-H am|pm" range claims the
// whole range before the bare "H am|pm" pattern can claim just its second
// number). Pattern 7 ("at H") is tried in a separate pass over the text,
// and only if patterns 1-6 produced nothing anywhere.
func ParseTimes(text string) []model.ParsedTime {
	tzHint := extractTimezoneHint(text)
	isTomorrow := tomorrowRe.MatchString(text)

	results := scanWithPatterns(text, patterns[:len(patterns)-1], tzHint, isTomorrow)
	if len(results) == 0 {
		results = scanWithPatterns(text, patterns[len(patterns)-1:], tzHint, isTomorrow)
	}
	return results
}

func scanWithPatterns(text string, pats []pattern, tzHint string, isTomorrow bool) []model.ParsedTime {
	var results []model.ParsedTime
	pos := 0
	for pos < len(text) {
		advanced := false
		for _, p := range pats {
			loc := p.re.FindStringSubmatchIndex(text[pos:])
			if loc == nil || loc[0] != 0 {
				continue
			}
			groups := submatchStrings(text[pos:], loc)
			matchText := text[pos+loc[0] : pos+loc[1]]
			for _, pt := range p.extract(groups) {
				pt.OriginalText = matchText
				pt.TimezoneHint = tzHint
				pt.IsTomorrow = isTomorrow
				pt.Confidence = p.confidence
				results = append(results, pt)
			}
			pos += loc[1]
			advanced = true
			break
		}
		if !advanced {
			pos++
		}
	}
	return results
}

func submatchStrings(text string, loc []int) []string {
	groups := make([]string, len(loc)/2)
	for i := range groups {
		lo, hi := loc[2*i], loc[2*i+1]
		if lo < 0 || hi < 0 {
			groups[i] = ""
			continue
		}
		groups[i] = text[lo:hi]
	}
	return groups
}
