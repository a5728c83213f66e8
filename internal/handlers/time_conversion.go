// Package handlers implements the pipeline.ActionHandler for each trigger
// type: converting a time mention across the chat's timezones, reacting to
// a confirmed relocation, answering a bot mention, and disambiguating an
// otherwise-unexplained city mention.
package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/basket/tzwatch/internal/model"
	"github.com/basket/tzwatch/internal/pipeline"
)

// tzAbbreviations is the closed set of friendly display names for the
// zones common enough to warrant one instead of their raw IANA tail.
var tzAbbreviations = map[string]string{
	"America/Los_Angeles": "PT",
	"America/New_York":    "ET",
	"America/Chicago":     "CT",
	"America/Denver":      "MT",
	"Europe/London":       "UK",
	"Europe/Berlin":       "CET",
	"Europe/Paris":        "CET",
	"Asia/Tokyo":          "JST",
	"Australia/Sydney":    "AEST",
	"UTC":                 "UTC",
}

func tzAbbreviation(tz string) string {
	if abbr, ok := tzAbbreviations[tz]; ok {
		return abbr
	}
	parts := strings.Split(tz, "/")
	return strings.ReplaceAll(parts[len(parts)-1], "_", " ")
}

// utcOffset formats tz's offset at the given instant as "UTC+H" or
// "UTC+H:MM".
func utcOffset(tz string, at time.Time) (string, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "", fmt.Errorf("load location %s: %w", tz, err)
	}
	_, offsetSeconds := at.In(loc).Zone()
	sign := "+"
	if offsetSeconds < 0 {
		sign = "-"
		offsetSeconds = -offsetSeconds
	}
	hours := offsetSeconds / 3600
	minutes := (offsetSeconds % 3600) / 60
	if minutes == 0 {
		return fmt.Sprintf("UTC%s%d", sign, hours), nil
	}
	return fmt.Sprintf("UTC%s%d:%02d", sign, hours, minutes), nil
}

// dayNumber gives a date a comparable ordinal independent of timezone, so
// two calendar dates from different locations can be diffed in whole days.
func dayNumber(y int, m time.Month, d int) int64 {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}

// dayOffsetLabel reports how the target zone's calendar date, for the same
// instant sourceDT represents, differs from sourceDT's own calendar date.
// Comparing the two Time values directly with After/Before would never
// show a difference — the same instant is never "after" itself — so this
// compares each one's own Date() components instead.
func dayOffsetLabel(sourceDT, targetDT time.Time) string {
	sy, sm, sd := sourceDT.Date()
	ty, tm, td := targetDT.Date()
	switch dayNumber(ty, tm, td) - dayNumber(sy, sm, sd) {
	case 1:
		return " +1 day"
	case -1:
		return " -1 day"
	default:
		return ""
	}
}

// TimeConversionHandler answers a parsed time mention with its equivalent
// across the chat's target timezones.
type TimeConversionHandler struct {
	Now func() time.Time
}

func (h TimeConversionHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h TimeConversionHandler) Handle(_ context.Context, trig model.DetectedTrigger, rc pipeline.ResolvedContext) ([]model.OutboundMessage, error) {
	sourceTz, _ := trig.Data["source_tz"].(string)
	if sourceTz == "" {
		// No timezone to convert from yet — the pipeline already flagged
		// this trigger for state collection.
		return nil, nil
	}
	hour, _ := trig.Data["hour"].(int)
	minute, _ := trig.Data["minute"].(int)
	isTomorrow, _ := trig.Data["is_tomorrow"].(bool)

	sourceLoc, err := time.LoadLocation(sourceTz)
	if err != nil {
		return nil, fmt.Errorf("load source location %s: %w", sourceTz, err)
	}
	base := h.now().In(sourceLoc)
	if isTomorrow {
		base = base.AddDate(0, 0, 1)
	}
	y, m, d := base.Date()
	sourceDT := time.Date(y, m, d, hour, minute, 0, 0, sourceLoc)

	sourceAbbrev := tzAbbreviation(sourceTz)
	sourceOffset, err := utcOffset(sourceTz, sourceDT)
	if err != nil {
		return nil, err
	}

	var lines []string
	for _, target := range rc.TargetTimezones {
		if target.Tz == "" || target.Tz == sourceTz {
			continue
		}
		loc, err := time.LoadLocation(target.Tz)
		if err != nil {
			continue
		}
		targetDT := sourceDT.In(loc)
		abbrev := tzAbbreviation(target.Tz)
		offset, err := utcOffset(target.Tz, targetDT)
		if err != nil {
			continue
		}
		info := offset
		if target.Source != "" {
			info = offset + ", " + target.Source
		}
		label := dayOffsetLabel(sourceDT, targetDT)
		lines = append(lines, fmt.Sprintf("  → %02d:%02d %s (%s)%s", targetDT.Hour(), targetDT.Minute(), abbrev, info, label))
	}
	if len(lines) == 0 {
		return nil, nil
	}

	header := fmt.Sprintf("🕐 %s (%s, %s):", trig.OriginalText, sourceAbbrev, sourceOffset)
	text := header + "\n" + strings.Join(lines, "\n")

	return []model.OutboundMessage{{
		Platform: rc.Platform,
		ChatID:   rc.ChatID,
		Text:     text,
	}}, nil
}
