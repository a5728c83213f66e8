package shared

import (
	"regexp"
	"strings"
)

const redactedPlaceholder = "[REDACTED]"

// secretPatterns matches common secret-bearing substrings that show up in
// webhook headers, config dumps, and error strings: bot tokens, webhook
// signing secrets, and bearer/HMAC material.
var secretPatterns = []*regexp.Regexp{
	// Telegram bot tokens: "123456:ABC-DEF..." digits-colon-token shape.
	regexp.MustCompile(`\d{6,}:[A-Za-z0-9_-]{30,}`),
	// Generic key=value / key: value secrets.
	regexp.MustCompile(`(?i)(api[_-]?key|apikey|secret[_-]?key|signing[_-]?secret|verify[_-]?token|auth[_-]?token|bot[_-]?token|bearer)\s*[:=]\s*"?([A-Za-z0-9_\-./+=]{8,})"?`),
	// Authorization: Bearer <token>
	regexp.MustCompile(`(?i)(Bearer\s+)([A-Za-z0-9_\-./+=]{8,})`),
	// HMAC signature headers, e.g. "v0=<hex>" or "sha256=<hex>".
	regexp.MustCompile(`(?i)(v0=|sha256=)([a-f0-9]{16,})`),
	// Anthropic API keys.
	regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{20,}`),
}

// Redact replaces secret-bearing patterns in the input string with
// [REDACTED], preserving any literal key/prefix so the log line stays
// readable.
func Redact(input string) string {
	if input == "" {
		return input
	}
	result := input
	for _, pat := range secretPatterns {
		result = pat.ReplaceAllStringFunc(result, func(match string) string {
			submatch := pat.FindStringSubmatch(match)
			if len(submatch) >= 3 {
				return submatch[1] + redactedPlaceholder
			}
			return redactedPlaceholder
		})
	}
	return result
}

// RedactEnvValue checks if a key name looks secret and returns a redacted
// value if so; used when logging resolved configuration at startup.
func RedactEnvValue(key, value string) string {
	keyLower := strings.ToLower(key)
	sensitiveKeys := []string{"token", "secret", "api_key", "apikey", "password", "credential"}
	for _, sensitive := range sensitiveKeys {
		if strings.Contains(keyLower, sensitive) {
			return redactedPlaceholder
		}
	}
	return value
}
