package chatbot

import (
	"net"
	"strconv"
	"strings"
	"time"

	"socdash/core"
	"socdash/mcp"

	"github.com/dlclark/regexp2"
)

// DefaultMatchTimeout bounds every regex evaluation on user text
const DefaultMatchTimeout = 100 * time.Millisecond

// ToolCall is a tool invocation inferred from a chat message
type ToolCall struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// IntentDetector maps free text to one of the MCP tools by keyword. Rules
// are checked in order and the first match wins:
//  1. an IP address anywhere in the message
//  2. top attacker phrases
//  3. statistics phrases
//  4. recent alert phrases
type IntentDetector struct {
	ipv4      *regexp2.Regexp
	attackers *regexp2.Regexp
	stats     *regexp2.Regexp
	recent    *regexp2.Regexp
	limit     *regexp2.Regexp
	hours     *regexp2.Regexp
	days      *regexp2.Regexp
	weeks     *regexp2.Regexp
	severity  *regexp2.Regexp
}

// NewIntentDetector compiles the keyword patterns with the given match timeout
func NewIntentDetector(timeout time.Duration) *IntentDetector {
	if timeout <= 0 {
		timeout = DefaultMatchTimeout
	}
	compile := func(pattern string) *regexp2.Regexp {
		re := regexp2.MustCompile(pattern, regexp2.IgnoreCase)
		re.MatchTimeout = timeout
		return re
	}

	return &IntentDetector{
		ipv4:      compile(`\b(?:(?:25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)\.){3}(?:25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)\b`),
		attackers: compile(`\b(?:top\s+attackers?|attackers?|top\s+sources?|most\s+active|top\s+ips?|offenders?)\b`),
		stats:     compile(`\b(?:statistics?|stats|summary|summari[sz]e|how\s+many|count|overview|breakdown)\b`),
		recent:    compile(`\b(?:recent|latest|last|newest|show\s+(?:me\s+)?(?:the\s+)?(?:\w+\s+)?alerts|list\s+(?:the\s+)?(?:\w+\s+)?alerts|new\s+alerts)\b`),
		limit: compile(`\b(?:top|last|latest|first|newest)\s+(\d{1,4})\b(?!\s*(?:h|hrs?|hours?|d|days?|weeks?|minutes?)\b)` +
			`|\b(\d{1,4})\s+(?:(?!(?:hours?|days?|weeks?|minutes?)\b)[a-z]+\s+){0,2}?(?:alerts?|attackers?|results?|ips?|sources?|events?|entries)\b`),
		hours:    compile(`\b(\d{1,4})\s*(?:h|hrs?|hours?)\b`),
		days:     compile(`\b(\d{1,3})\s*(?:d|days?)\b`),
		weeks:    compile(`\b(\d{1,2})\s*weeks?\b`),
		severity: compile(`\b(critical|high|medium|low)\b`),
	}
}

var defaultDetector = NewIntentDetector(DefaultMatchTimeout)

// DetectToolUsage runs the default detector over message
func DetectToolUsage(message string) *ToolCall {
	return defaultDetector.Detect(message)
}

// Detect returns the tool implied by message, or nil when none applies
func (d *IntentDetector) Detect(message string) *ToolCall {
	msg := strings.TrimSpace(message)
	if msg == "" {
		return nil
	}

	if ip := d.findIP(msg); ip != "" {
		return &ToolCall{Name: mcp.ToolSearchAlertsByIP, Arguments: map[string]interface{}{"ip": ip}}
	}

	if d.matches(d.attackers, msg) {
		args := map[string]interface{}{}
		if n, ok := d.extractLimit(msg); ok {
			args["limit"] = n
		}
		if h, ok := d.extractHours(msg); ok {
			args["hours"] = h
		}
		return &ToolCall{Name: mcp.ToolGetTopAttackers, Arguments: args}
	}

	if d.matches(d.stats, msg) {
		args := map[string]interface{}{}
		if h, ok := d.extractHours(msg); ok {
			args["hours"] = h
		}
		return &ToolCall{Name: mcp.ToolGetAlertStatistics, Arguments: args}
	}

	if d.matches(d.recent, msg) {
		args := map[string]interface{}{}
		if n, ok := d.extractLimit(msg); ok {
			args["limit"] = n
		}
		if sev := d.firstGroup(d.severity, msg); sev != "" {
			if s, ok := core.NormalizeSeverity(sev); ok {
				args["severity"] = s
			}
		}
		return &ToolCall{Name: mcp.ToolGetRecentAlerts, Arguments: args}
	}

	return nil
}

// findIP returns the first IPv4 address, or failing that the first token
// that parses as an IPv6 address
func (d *IntentDetector) findIP(msg string) string {
	if ip := d.firstMatch(d.ipv4, msg); ip != "" {
		return ip
	}
	for _, tok := range strings.Fields(msg) {
		tok = strings.Trim(tok, ".,;:!?()[]{}\"'")
		if strings.Count(tok, ":") < 2 {
			continue
		}
		if parsed := net.ParseIP(tok); parsed != nil {
			return parsed.String()
		}
	}
	return ""
}

func (d *IntentDetector) extractLimit(msg string) (int, bool) {
	m, err := d.limit.FindStringMatch(msg)
	if err != nil || m == nil {
		return 0, false
	}
	for _, idx := range []int{1, 2} {
		if g := m.GroupByNumber(idx); g != nil && g.Length > 0 {
			if n, err := strconv.Atoi(g.String()); err == nil {
				return clamp(n, 1, mcp.MaxLimit), true
			}
		}
	}
	return 0, false
}

func (d *IntentDetector) extractHours(msg string) (int, bool) {
	if n, ok := d.number(d.hours, msg); ok {
		return clamp(n, 1, mcp.MaxHours), true
	}
	if n, ok := d.number(d.days, msg); ok {
		return clamp(n*24, 1, mcp.MaxHours), true
	}
	if n, ok := d.number(d.weeks, msg); ok {
		return clamp(n*168, 1, mcp.MaxHours), true
	}

	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "today"), strings.Contains(lower, "past day"),
		strings.Contains(lower, "last day"), strings.Contains(lower, "yesterday"):
		return 24, true
	case strings.Contains(lower, "week"):
		return 168, true
	case strings.Contains(lower, "month"):
		return mcp.MaxHours, true
	}
	return 0, false
}

func (d *IntentDetector) number(re *regexp2.Regexp, msg string) (int, bool) {
	s := d.firstGroup(re, msg)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// matches treats a regex timeout as no match
func (d *IntentDetector) matches(re *regexp2.Regexp, msg string) bool {
	ok, err := re.MatchString(msg)
	return err == nil && ok
}

func (d *IntentDetector) firstMatch(re *regexp2.Regexp, msg string) string {
	m, err := re.FindStringMatch(msg)
	if err != nil || m == nil {
		return ""
	}
	return m.String()
}

func (d *IntentDetector) firstGroup(re *regexp2.Regexp, msg string) string {
	m, err := re.FindStringMatch(msg)
	if err != nil || m == nil {
		return ""
	}
	if g := m.GroupByNumber(1); g != nil {
		return g.String()
	}
	return ""
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
