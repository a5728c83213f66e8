package handlers_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/basket/tzwatch/internal/handlers"
	"github.com/basket/tzwatch/internal/model"
	"github.com/basket/tzwatch/internal/pipeline"
)

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestTimeConversionHandler_AnnotatesSourceOfEachTarget(t *testing.T) {
	h := handlers.TimeConversionHandler{Now: fixedNow(time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC))}

	trig := model.DetectedTrigger{
		TriggerType:  model.TriggerTime,
		OriginalText: "9am",
		Data: map[string]any{
			"source_tz": "America/Los_Angeles",
			"hour":      9,
			"minute":    0,
		},
	}
	rc := pipeline.ResolvedContext{
		Platform: model.PlatformSlack,
		ChatID:   "chat-1",
		TargetTimezones: []pipeline.TargetTimezone{
			{Tz: "America/New_York", Source: "team"},
			{Tz: "Asia/Tokyo", Source: "chat"},
		},
	}

	msgs, err := h.Handle(context.Background(), trig, rc)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 outbound message, got %d", len(msgs))
	}
	text := msgs[0].Text
	if !strings.Contains(text, "ET (UTC-4, team)") {
		t.Fatalf("expected team-annotated ET line, got %q", text)
	}
	if !strings.Contains(text, "JST (UTC+9, chat)") {
		t.Fatalf("expected chat-annotated JST line, got %q", text)
	}
}

func TestTimeConversionHandler_SkipsSourceTimezoneAndUnresolved(t *testing.T) {
	h := handlers.TimeConversionHandler{Now: fixedNow(time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC))}

	trig := model.DetectedTrigger{
		TriggerType:  model.TriggerTime,
		OriginalText: "9am",
		Data: map[string]any{
			"source_tz": "America/Los_Angeles",
			"hour":      9,
			"minute":    0,
		},
	}
	rc := pipeline.ResolvedContext{
		Platform: model.PlatformSlack,
		ChatID:   "chat-1",
		TargetTimezones: []pipeline.TargetTimezone{
			{Tz: "America/Los_Angeles", Source: "team"},
		},
	}

	msgs, err := h.Handle(context.Background(), trig, rc)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if msgs != nil {
		t.Fatalf("expected no reply when every target is the source itself, got %+v", msgs)
	}
}
