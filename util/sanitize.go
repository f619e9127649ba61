package util

import (
	"regexp"
	"unicode/utf8"
)

// MaxSanitizeLength bounds the input scanned by SanitizeString
const MaxSanitizeLength = 64 * 1024

var redactions = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`(?i)(password|passwd|pwd)[\s:=]+[^\s]+`), "$1=REDACTED"},
	{regexp.MustCompile(`(?i)"(password|token|secret|api_?key)"\s*:\s*"[^"]+"`), `"$1":"REDACTED"`},
	{regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9_\-\.]+`), "bearer REDACTED"},
	{regexp.MustCompile(`(?i)(api[_-]?key|apikey|secret|token)[\s:=]+[^\s]+`), "$1=REDACTED"},
	// OpenAI style keys
	{regexp.MustCompile(`sk-[A-Za-z0-9_\-]{8,}`), "sk-REDACTED"},
	// Telegram bot tokens appear in request URLs: /bot123456:ABC-DEF/sendMessage
	{regexp.MustCompile(`bot\d{5,}:[A-Za-z0-9_\-]{20,}`), "botREDACTED"},
	{regexp.MustCompile(`eyJ[a-zA-Z0-9_\-]+\.eyJ[a-zA-Z0-9_\-]+\.[a-zA-Z0-9_\-]+`), "REDACTED_JWT"},
}

// SanitizeError returns err's message with credentials redacted
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error())
}

// SanitizeString redacts passwords, tokens and API keys from s
func SanitizeString(s string) string {
	if s == "" {
		return ""
	}
	if len(s) > MaxSanitizeLength {
		s = Truncate(s, MaxSanitizeLength) + "... [truncated]"
	}

	for _, r := range redactions {
		s = r.pattern.ReplaceAllString(s, r.replacement)
	}
	return s
}

// Truncate shortens s to at most max bytes without splitting a UTF-8 sequence
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
