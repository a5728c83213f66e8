package detect_test

import (
	"context"
	"testing"

	"github.com/basket/tzwatch/internal/detect"
	"github.com/basket/tzwatch/internal/model"
)

func TestMentionDetector_AtBotMatches(t *testing.T) {
	d := detect.MentionDetector{}
	triggers := d.Detect(context.Background(), model.NormalizedEvent{Text: "hey @tzwatchbot what time is it"})
	if len(triggers) != 1 {
		t.Fatalf("expected 1 trigger, got %d", len(triggers))
	}
	if triggers[0].TriggerType != model.TriggerMention || triggers[0].Confidence != 0.95 {
		t.Fatalf("unexpected trigger: %+v", triggers[0])
	}
}

func TestMentionDetector_RussianHelpMatches(t *testing.T) {
	d := detect.MentionDetector{}
	triggers := d.Detect(context.Background(), model.NormalizedEvent{Text: "нужна помощь"})
	if len(triggers) != 1 {
		t.Fatalf("expected 1 trigger, got %d", len(triggers))
	}
}

func TestMentionDetector_NoMatchReturnsEmpty(t *testing.T) {
	d := detect.MentionDetector{}
	triggers := d.Detect(context.Background(), model.NormalizedEvent{Text: "just chatting"})
	if len(triggers) != 0 {
		t.Fatalf("expected no triggers, got %+v", triggers)
	}
}
