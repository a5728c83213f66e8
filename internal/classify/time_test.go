package classify

import (
	"reflect"
	"testing"
)

func TestHasTimeTrigger_DigitTriggers(t *testing.T) {
	if !hasTimeTrigger("call me at 5") {
		t.Fatalf("expected digit to trigger")
	}
}

func TestHasTimeTrigger_TimeWordWithoutDigitTriggers(t *testing.T) {
	if !hasTimeTrigger("let's meet at noon") {
		t.Fatalf("expected time word to trigger")
	}
	if !hasTimeTrigger("встретимся в полдень") {
		t.Fatalf("expected Russian time word to trigger")
	}
}

func TestHasTimeTrigger_NeitherDoesNotTrigger(t *testing.T) {
	if hasTimeTrigger("just chatting about nothing") {
		t.Fatalf("expected no trigger")
	}
}

func TestContainsTimeReference_NoTriggerSkipsModelEntirely(t *testing.T) {
	// The model here would always say "triggered" (bias +inf-ish); a
	// correct trigger guard must never reach it.
	tc := &TimeClassifier{
		Classifier:        &Classifier{Models: confidentModel(100), Low: 0.4, High: 0.6},
		LongTextThreshold: 100,
		WindowSize:        5,
	}
	if tc.ContainsTimeReference("no numbers or time words here") {
		t.Fatalf("expected trigger guard to short-circuit to false")
	}
}

func TestContainsTimeReference_ShortTextUsesWholeTextDirectly(t *testing.T) {
	tc := &TimeClassifier{
		Classifier:        &Classifier{Models: confidentModel(100), Low: 0.4, High: 0.6},
		LongTextThreshold: 100,
		WindowSize:        5,
	}
	if !tc.ContainsTimeReference("call at 5") {
		t.Fatalf("expected positive classifier bias to trigger on short text")
	}
}

func TestExtractWindows_DedupesOverlappingBounds(t *testing.T) {
	text := "a b c 5 d e f"
	windows := extractWindows(text, 2)
	if len(windows) != 1 {
		t.Fatalf("expected 1 window for a single trigger token, got %d: %v", len(windows), windows)
	}
	if windows[0] != "a b c 5 d e f" {
		t.Fatalf("expected full-range window, got %q", windows[0])
	}
}

func TestExtractWindows_MultipleTriggersProduceDistinctWindows(t *testing.T) {
	text := "5 words apart from 9 another trigger far away token padding filler"
	windows := extractWindows(text, 1)
	if len(windows) != 2 {
		t.Fatalf("expected 2 distinct windows, got %d: %v", len(windows), windows)
	}
}

func TestExtractWindows_NoTriggersReturnsEmpty(t *testing.T) {
	windows := extractWindows("no digits or time words at all", 3)
	if !reflect.DeepEqual(windows, []string(nil)) {
		t.Fatalf("expected nil windows, got %v", windows)
	}
}
