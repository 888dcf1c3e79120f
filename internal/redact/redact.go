package redact

import (
	"regexp"
	"strings"
)

var (
	// Matches "Bearer <token>". Tokens leak into upstream HTTP error bodies.
	bearerTokenRe = regexp.MustCompile(`(?i)\bBearer\s+[^\s"']+`)

	// key=value / key: value pairs for the provider keys this binary reads.
	apiKeyKVRe = regexp.MustCompile(`(?i)\b(api[_-]?key|gemini[_-]?api[_-]?key|openai[_-]?api[_-]?key|key)\b\s*[:=]\s*[^\s"'&]+`)

	// OpenAI-style secret keys embedded in free text.
	skKeyRe = regexp.MustCompile(`\bsk-[A-Za-z0-9_\-]{16,}`)
)

// Secrets removes obvious secret-bearing substrings from error and log strings.
//
// Safe to call on any message, including model output and upstream errors.
func Secrets(s string) string {
	if s == "" {
		return ""
	}
	out := s
	out = bearerTokenRe.ReplaceAllString(out, "Bearer <redacted>")
	out = apiKeyKVRe.ReplaceAllString(out, "<redacted_kv>")
	out = skKeyRe.ReplaceAllString(out, "<redacted_key>")
	return strings.TrimSpace(out)
}
