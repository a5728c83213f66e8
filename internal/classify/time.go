package classify

import (
	"regexp"
	"strings"
)

var triggerDigit = regexp.MustCompile(`\d`)

// triggerTimeWords are recognized even without a digit present.
var triggerTimeWords = map[string]bool{
	"noon": true, "midnight": true, "midday": true,
	"полдень": true, "полночь": true,
	"midi": true, "minuit": true,
}

// TimeClassifier answers "does this text contain a time reference?" with a
// digit/word trigger guard ahead of the model, and windowing for long text.
type TimeClassifier struct {
	Classifier        *Classifier
	LongTextThreshold int
	WindowSize        int
}

// ContainsTimeReference runs the trigger guard, then the threshold rule,
// windowing the text around trigger tokens when it exceeds
// LongTextThreshold.
func (t *TimeClassifier) ContainsTimeReference(text string) bool {
	if !hasTimeTrigger(text) {
		return false
	}
	if len(text) <= t.LongTextThreshold {
		return t.Classifier.Predict(text).Triggered
	}

	windows := extractWindows(text, t.WindowSize)
	if len(windows) == 0 {
		return false
	}
	for _, w := range windows {
		if t.Classifier.Predict(w).Triggered {
			return true
		}
	}
	return false
}

func hasTimeTrigger(text string) bool {
	if triggerDigit.MatchString(text) {
		return true
	}
	lower := strings.ToLower(text)
	for word := range triggerTimeWords {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

// extractWindows returns a ±windowSize-token context window around every
// token that itself looks like a trigger (digit or time word), deduplicated
// by token-index range.
func extractWindows(text string, windowSize int) []string {
	tokens := strings.Fields(text)
	var windows []string
	seen := make(map[[2]int]bool)

	for i, tok := range tokens {
		if !triggerDigit.MatchString(tok) && !triggerTimeWords[strings.ToLower(tok)] {
			continue
		}
		start := i - windowSize
		if start < 0 {
			start = 0
		}
		end := i + windowSize + 1
		if end > len(tokens) {
			end = len(tokens)
		}
		bounds := [2]int{start, end}
		if seen[bounds] {
			continue
		}
		seen[bounds] = true
		windows = append(windows, strings.Join(tokens[start:end], " "))
	}
	return windows
}
