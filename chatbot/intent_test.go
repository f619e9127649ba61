package chatbot

import (
	"testing"

	"socdash/mcp"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectToolUsage(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		wantTool string
		wantArgs map[string]interface{}
	}{
		{
			name:     "ipv4 lookup",
			message:  "any alerts for 192.168.1.10?",
			wantTool: mcp.ToolSearchAlertsByIP,
			wantArgs: map[string]interface{}{"ip": "192.168.1.10"},
		},
		{
			name:     "ipv6 lookup",
			message:  "what did 2001:db8::1 do",
			wantTool: mcp.ToolSearchAlertsByIP,
			wantArgs: map[string]interface{}{"ip": "2001:db8::1"},
		},
		{
			name:     "ip wins over attackers",
			message:  "is 10.0.0.5 one of the top attackers",
			wantTool: mcp.ToolSearchAlertsByIP,
			wantArgs: map[string]interface{}{"ip": "10.0.0.5"},
		},
		{
			name:     "top attackers with count and today",
			message:  "Show me the top 5 attackers today",
			wantTool: mcp.ToolGetTopAttackers,
			wantArgs: map[string]interface{}{"limit": 5, "hours": 24},
		},
		{
			name:     "attackers over weeks has no limit",
			message:  "top attackers in the last 2 weeks",
			wantTool: mcp.ToolGetTopAttackers,
			wantArgs: map[string]interface{}{"hours": 336},
		},
		{
			name:     "statistics in hours",
			message:  "How many alerts in the last 6 hours?",
			wantTool: mcp.ToolGetAlertStatistics,
			wantArgs: map[string]interface{}{"hours": 6},
		},
		{
			name:     "statistics in days",
			message:  "give me a summary for the last 3 days",
			wantTool: mcp.ToolGetAlertStatistics,
			wantArgs: map[string]interface{}{"hours": 72},
		},
		{
			name:     "statistics this week",
			message:  "stats for this week",
			wantTool: mcp.ToolGetAlertStatistics,
			wantArgs: map[string]interface{}{"hours": 168},
		},
		{
			name:     "statistics window is clamped",
			message:  "stats for the last 90 days",
			wantTool: mcp.ToolGetAlertStatistics,
			wantArgs: map[string]interface{}{"hours": mcp.MaxHours},
		},
		{
			name:     "statistics default window",
			message:  "alert statistics please",
			wantTool: mcp.ToolGetAlertStatistics,
			wantArgs: map[string]interface{}{},
		},
		{
			name:     "recent with limit and severity",
			message:  "show me the last 5 critical alerts",
			wantTool: mcp.ToolGetRecentAlerts,
			wantArgs: map[string]interface{}{"limit": 5, "severity": "critical"},
		},
		{
			name:     "recent limit is clamped",
			message:  "latest 500 alerts",
			wantTool: mcp.ToolGetRecentAlerts,
			wantArgs: map[string]interface{}{"limit": mcp.MaxLimit},
		},
		{
			name:     "recent without arguments",
			message:  "What are the latest alerts?",
			wantTool: mcp.ToolGetRecentAlerts,
			wantArgs: map[string]interface{}{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call := DetectToolUsage(tt.message)
			require.NotNil(t, call)
			assert.Equal(t, tt.wantTool, call.Name)
			assert.Equal(t, tt.wantArgs, call.Arguments)
		})
	}
}

func TestDetectToolUsage_NoTool(t *testing.T) {
	for _, msg := range []string{
		"",
		"   ",
		"hello there",
		"what is a SIEM?",
		"explain lateral movement",
	} {
		assert.Nil(t, DetectToolUsage(msg), "message %q", msg)
	}
}

func TestDetectToolUsage_InvalidIPIgnored(t *testing.T) {
	call := DetectToolUsage("what about 999.1.1.1")
	assert.Nil(t, call)
}

func TestNewIntentDetector_DefaultTimeout(t *testing.T) {
	d := NewIntentDetector(0)
	assert.Equal(t, DefaultMatchTimeout, d.ipv4.MatchTimeout)
}
