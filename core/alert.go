package core

import (
	"strings"
	"time"
)

// Severity levels as stored in the alerts table
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Severities lists valid severities from least to most severe
var Severities = []string{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// Alert is one row of the alerts table
type Alert struct {
	AlertID     string    `json:"alert_id" ch:"alert_id"`
	Timestamp   time.Time `json:"timestamp" ch:"timestamp"`
	RuleID      string    `json:"rule_id" ch:"rule_id"`
	RuleName    string    `json:"rule_name" ch:"rule_name"`
	Severity    string    `json:"severity" ch:"severity"`
	SrcIP       string    `json:"src_ip" ch:"src_ip"`
	DstIP       string    `json:"dst_ip" ch:"dst_ip"`
	AgentName   string    `json:"agent_name" ch:"agent_name"`
	Description string    `json:"description" ch:"description"`
	Status      string    `json:"status" ch:"status"`
}

// AlertFilter narrows alert listings. Zero values mean "no constraint".
type AlertFilter struct {
	Severity string
	Query    string // substring match on rule_name and description
	From     time.Time
	To       time.Time
	Limit    int
	Offset   int
}

// AlertStats aggregates alerts over a time window
type AlertStats struct {
	Total      uint64            `json:"total"`
	BySeverity map[string]uint64 `json:"by_severity"`
	ByStatus   map[string]uint64 `json:"by_status"`
	Since      time.Time         `json:"since"`
}

// Attacker is a source IP ranked by alert volume
type Attacker struct {
	IP         string    `json:"ip" ch:"ip"`
	AlertCount uint64    `json:"alert_count" ch:"alert_count"`
	LastSeen   time.Time `json:"last_seen" ch:"last_seen"`
}

// NormalizeSeverity lowercases s and reports whether it is a known severity
func NormalizeSeverity(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, sev := range Severities {
		if s == sev {
			return s, true
		}
	}
	return s, false
}
