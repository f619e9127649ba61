package mcp

import "encoding/json"

// Tool names
const (
	ToolGetRecentAlerts    = "get_recent_alerts"
	ToolGetAlertStatistics = "get_alert_statistics"
	ToolSearchAlertsByIP   = "search_alerts_by_ip"
	ToolGetTopAttackers    = "get_top_attackers"
)

// Argument bounds shared by the schemas and by callers that build arguments
const (
	DefaultRecentLimit   = 10
	DefaultIPSearchLimit = 20
	DefaultTopLimit      = 10
	DefaultHours         = 24
	MaxLimit             = 100
	MaxHours             = 720
)

// Tool describes one entry of the tool manifest
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

var manifest = []Tool{
	{
		Name:        ToolGetRecentAlerts,
		Description: "Get the most recent security alerts, optionally filtered by severity",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"limit": {"type": "integer", "minimum": 1, "maximum": 100, "default": 10, "description": "Number of alerts to return"},
				"severity": {"type": "string", "enum": ["low", "medium", "high", "critical"], "description": "Only return alerts of this severity"}
			},
			"additionalProperties": false
		}`),
	},
	{
		Name:        ToolGetAlertStatistics,
		Description: "Get alert counts by severity and status for a time window",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"hours": {"type": "integer", "minimum": 1, "maximum": 720, "default": 24, "description": "Size of the time window in hours"}
			},
			"additionalProperties": false
		}`),
	},
	{
		Name:        ToolSearchAlertsByIP,
		Description: "Search alerts where an IP address is the source or the destination",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"ip": {"type": "string", "anyOf": [{"format": "ipv4"}, {"format": "ipv6"}], "description": "IPv4 or IPv6 address"},
				"limit": {"type": "integer", "minimum": 1, "maximum": 100, "default": 20, "description": "Number of alerts to return"}
			},
			"required": ["ip"],
			"additionalProperties": false
		}`),
	},
	{
		Name:        ToolGetTopAttackers,
		Description: "Rank source IP addresses by number of alerts in a time window",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"limit": {"type": "integer", "minimum": 1, "maximum": 100, "default": 10, "description": "Number of attackers to return"},
				"hours": {"type": "integer", "minimum": 1, "maximum": 720, "default": 24, "description": "Size of the time window in hours"}
			},
			"additionalProperties": false
		}`),
	},
}

// Tools returns the static tool manifest
func Tools() []Tool {
	out := make([]Tool, len(manifest))
	copy(out, manifest)
	return out
}

// Lookup returns the manifest entry for name
func Lookup(name string) (Tool, bool) {
	for _, t := range manifest {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}
