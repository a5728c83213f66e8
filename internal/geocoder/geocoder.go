// Package geocoder resolves free-text city mentions to canonical names and
// IANA timezones. It has no home in any pack repository: nothing in the
// retrieved Go ecosystem ships a gazetteer or city-to-timezone lookup, so
// this is a hand-rolled in-memory table and matcher, the way the
// specification's own design notes sanction for components the ecosystem
// simply doesn't provide.
package geocoder

import (
	"strings"
	"unicode"
)

// Match is one resolved geocoder hit.
type Match struct {
	CanonicalName string
	TzIANA        string
	Population    int
}

// Geocoder answers free-text city lookups against the preloaded gazetteer.
// It has no mutable state after construction, so a single instance is safe
// for concurrent use.
type Geocoder struct {
	byName map[string][]Match // lowercased name/alternate -> candidates
}

// New builds a Geocoder from the built-in city table, indexing every
// name and alternate name (lowercased) to its match.
func New() *Geocoder {
	g := &Geocoder{byName: make(map[string][]Match)}
	for _, c := range cities {
		m := Match{CanonicalName: c.name, TzIANA: c.tz, Population: c.population}
		g.index(c.name, m)
		for _, alt := range c.alternates {
			g.index(alt, m)
		}
	}
	return g
}

func (g *Geocoder) index(name string, m Match) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return
	}
	g.byName[key] = append(g.byName[key], m)
}

func highestPopulation(matches []Match) Match {
	best := matches[0]
	for _, m := range matches[1:] {
		if m.Population > best.Population {
			best = m
		}
	}
	return best
}

// trailingNounsToStrip are common trailing English words that a generic
// "moved to X Y?" capture pattern can accidentally include.
var trailingNounsToStrip = []string{"last", "week", "tomorrow", "today", "yesterday", "now", "recently", "city"}

func stripTrailingNoise(s string) string {
	words := strings.Fields(s)
	for len(words) > 1 {
		last := strings.ToLower(words[len(words)-1])
		stripped := false
		for _, noise := range trailingNounsToStrip {
			if last == noise {
				words = words[:len(words)-1]
				stripped = true
				break
			}
		}
		if !stripped {
			break
		}
	}
	return strings.Join(words, " ")
}

// Lookup resolves free text to a single best match, or ok=false if nothing
// in the gazetteer matches after the full chain (exact, alternate, Russian
// normalization, each re-run after LLM-assisted normalization by the
// caller when allowed).
func (g *Geocoder) Lookup(text string) (Match, bool) {
	trimmed := strings.TrimSpace(text)
	if len([]rune(trimmed)) <= 1 {
		return Match{}, false
	}
	trimmed = stripTrailingNoise(trimmed)

	if m, ok := g.exactLookup(trimmed); ok {
		return m, true
	}

	if normalized, changed := normalizeRussianSuffix(trimmed); changed {
		if m, ok := g.exactLookup(normalized); ok {
			return m, true
		}
	}

	return Match{}, false
}

// exactLookup runs lookup-chain steps 1-2: exact case-insensitive match on
// name, then on alternate names, tie-broken by population.
func (g *Geocoder) exactLookup(text string) (Match, bool) {
	key := strings.ToLower(strings.TrimSpace(text))
	matches, ok := g.byName[key]
	if !ok || len(matches) == 0 {
		return Match{}, false
	}
	return highestPopulation(matches), true
}

// LookupNormalized re-runs exact lookup (steps 1-2 only) against an
// LLM-normalized English city name, for callers implementing step 4 of the
// lookup chain themselves (the LLM call is owned by internal/llm, not this
// package).
func (g *Geocoder) LookupNormalized(englishName string) (Match, bool) {
	return g.exactLookup(englishName)
}

// russianSuffixRules are deterministic suffix rewrites applied to recover a
// city's dictionary form from an inflected (prepositional/locative) one,
// e.g. "в Москве" style captures of "Москве" -> "Москва".
var russianSuffixRules = []struct {
	from, to string
}{
	{"ску", "ск"},
	{"ву", "ва"},
	{"ве", "ва"},
	{"ине", "ин"},
	{"ни", "нь"},
	{"ну", "н"},
	{"не", "на"},
	{"те", "т"},
	{"ту", "т"},
}

func normalizeRussianSuffix(s string) (string, bool) {
	runes := []rune(s)
	if len(runes) < 3 {
		return s, false
	}
	for _, rule := range russianSuffixRules {
		fromRunes := []rune(rule.from)
		if len(runes) < len(fromRunes) {
			continue
		}
		suffix := string(runes[len(runes)-len(fromRunes):])
		if suffix == rule.from {
			return string(runes[:len(runes)-len(fromRunes)]) + rule.to, true
		}
	}
	// Final "-е" drop when the preceding letter is a consonant.
	last := runes[len(runes)-1]
	if last == 'е' && len(runes) >= 2 && isRussianConsonant(runes[len(runes)-2]) {
		return string(runes[:len(runes)-1]), true
	}
	return s, false
}

func isRussianConsonant(r rune) bool {
	const vowels = "аеёиоуыэюя"
	if !unicode.Is(unicode.Cyrillic, r) {
		return false
	}
	return !strings.ContainsRune(vowels, unicode.ToLower(r))
}
