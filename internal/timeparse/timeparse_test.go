package timeparse_test

import (
	"testing"

	"github.com/basket/tzwatch/internal/timeparse"
)

func TestParseTimes_ColonAmPm(t *testing.T) {
	results := timeparse.ParseTimes("let's meet at 7:30pm tonight")
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d: %+v", len(results), results)
	}
	if results[0].Hour != 19 || results[0].Minute != 30 {
		t.Fatalf("expected 19:30, got %d:%d", results[0].Hour, results[0].Minute)
	}
}

func TestParseTimes_24HourColon(t *testing.T) {
	results := timeparse.ParseTimes("call starts 14:30 sharp")
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Hour != 14 || results[0].Minute != 30 {
		t.Fatalf("expected 14:30, got %d:%d", results[0].Hour, results[0].Minute)
	}
	if results[0].Confidence != 0.95 {
		t.Fatalf("expected confidence 0.95, got %v", results[0].Confidence)
	}
}

func TestParseTimes_HhMM(t *testing.T) {
	results := timeparse.ParseTimes("rdv a 14h30")
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Hour != 14 || results[0].Minute != 30 {
		t.Fatalf("expected 14:30, got %d:%d", results[0].Hour, results[0].Minute)
	}
}

func TestParseTimes_MilitaryWithZulu(t *testing.T) {
	results := timeparse.ParseTimes("ETA 1500Z")
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Hour != 15 || results[0].Minute != 0 {
		t.Fatalf("expected 15:00, got %d:%d", results[0].Hour, results[0].Minute)
	}
}

func TestParseTimes_TwelveHourConversions(t *testing.T) {
	cases := []struct {
		text string
		hour int
	}{
		{"see you at 12am", 0},
		{"see you at 12pm", 12},
		{"see you at 9am", 9},
		{"see you at 9pm", 21},
	}
	for _, tc := range cases {
		results := timeparse.ParseTimes(tc.text)
		if len(results) != 1 {
			t.Fatalf("%q: expected 1 result, got %d", tc.text, len(results))
		}
		if results[0].Hour != tc.hour {
			t.Fatalf("%q: expected hour %d, got %d", tc.text, tc.hour, results[0].Hour)
		}
	}
}

func TestParseTimes_RangeProducesTwoEntries(t *testing.T) {
	results := timeparse.ParseTimes("open 9-11am")
	if len(results) != 2 {
		t.Fatalf("expected 2 results for a range, got %d: %+v", len(results), results)
	}
}

func TestParseTimes_AtHOnlyWhenNothingElseMatched(t *testing.T) {
	results := timeparse.ParseTimes("let's talk at 10")
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Confidence != 0.70 {
		t.Fatalf("expected fallback confidence 0.70, got %v", results[0].Confidence)
	}
}

func TestParseTimes_AtHSuppressedWhenEarlierPatternMatched(t *testing.T) {
	results := timeparse.ParseTimes("meet at 10 then call at 14:30")
	for _, r := range results {
		if r.Confidence == 0.70 {
			t.Fatalf("expected 'at H' fallback suppressed once 14:30 matched, got %+v", results)
		}
	}
}

func TestParseTimes_TomorrowFlag(t *testing.T) {
	results := timeparse.ParseTimes("see you tomorrow at 14:30")
	if len(results) != 1 || !results[0].IsTomorrow {
		t.Fatalf("expected tomorrow flag set, got %+v", results)
	}
}

func TestParseTimes_TimezoneAbbreviationHint(t *testing.T) {
	results := timeparse.ParseTimes("call at 14:30 EST")
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].TimezoneHint != "America/New_York" {
		t.Fatalf("expected America/New_York hint, got %q", results[0].TimezoneHint)
	}
}

func TestParseTimes_CityHintWhenNoAbbreviation(t *testing.T) {
	results := timeparse.ParseTimes("call at 14:30 London time")
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].TimezoneHint != "Europe/London" {
		t.Fatalf("expected Europe/London hint, got %q", results[0].TimezoneHint)
	}
}

func TestParseTimes_NoTimeReferenceReturnsEmpty(t *testing.T) {
	results := timeparse.ParseTimes("just chatting about nothing in particular")
	if len(results) != 0 {
		t.Fatalf("expected no results, got %+v", results)
	}
}
