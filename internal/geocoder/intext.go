package geocoder

import "unicode"

// minNameLenASCII / minNameLenCJK bound which gazetteer entries the in-text
// finder considers, avoiding spurious matches on very short names.
const (
	minNameLenASCII = 3
	minNameLenCJK   = 2
)

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Hangul, r)
}

func containsCJK(s string) bool {
	for _, r := range s {
		if isCJK(r) {
			return true
		}
	}
	return false
}

func eligibleForInText(name string) bool {
	runes := []rune(name)
	if containsCJK(name) {
		return len(runes) >= minNameLenCJK
	}
	return len(runes) >= minNameLenASCII
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// splitWords tokenizes text on Unicode word boundaries, returning the
// non-empty word tokens in order.
func splitWords(text string) []string {
	var words []string
	var current []rune
	flush := func() {
		if len(current) > 0 {
			words = append(words, string(current))
			current = nil
		}
	}
	for _, r := range text {
		if isWordRune(r) {
			current = append(current, r)
		} else {
			flush()
		}
	}
	flush()
	return words
}

// FindInText scans text for city mentions using 1-, 2-, and 3-word sliding
// windows (longer windows take precedence over shorter at the same
// position), plus, for CJK text, every 2-4 character substring. Matches are
// deduplicated by resolved timezone, first occurrence wins.
func (g *Geocoder) FindInText(text string) []Match {
	words := splitWords(text)
	claimed := make([]bool, len(words))
	var ordered []Match
	seenTz := make(map[string]bool)

	for windowSize := 3; windowSize >= 1; windowSize-- {
		for start := 0; start+windowSize <= len(words); start++ {
			alreadyClaimed := false
			for i := start; i < start+windowSize; i++ {
				if claimed[i] {
					alreadyClaimed = true
					break
				}
			}
			if alreadyClaimed {
				continue
			}
			candidate := joinWithSpace(words[start : start+windowSize])
			if !eligibleForInText(candidate) {
				continue
			}
			if m, ok := g.exactLookup(candidate); ok {
				for i := start; i < start+windowSize; i++ {
					claimed[i] = true
				}
				if !seenTz[m.TzIANA] {
					seenTz[m.TzIANA] = true
					ordered = append(ordered, m)
				}
			}
		}
	}

	if containsCJK(text) {
		ordered = append(ordered, g.findCJKSubstrings(text, seenTz)...)
	}

	return ordered
}

func (g *Geocoder) findCJKSubstrings(text string, seenTz map[string]bool) []Match {
	runes := []rune(text)
	var out []Match
	for length := 4; length >= 2; length-- {
		for start := 0; start+length <= len(runes); start++ {
			window := runes[start : start+length]
			if !allCJK(window) {
				continue
			}
			candidate := string(window)
			if m, ok := g.exactLookup(candidate); ok {
				if !seenTz[m.TzIANA] {
					seenTz[m.TzIANA] = true
					out = append(out, m)
				}
			}
		}
	}
	return out
}

func allCJK(runes []rune) bool {
	for _, r := range runes {
		if !isCJK(r) {
			return false
		}
	}
	return true
}

func joinWithSpace(words []string) string {
	out := words[0]
	for _, w := range words[1:] {
		out += " " + w
	}
	return out
}
