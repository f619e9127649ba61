package chatbot

import (
	"strings"
	"testing"
	"time"

	"socdash/core"
	"socdash/mcp"

	"github.com/stretchr/testify/assert"
)

var fixedTime = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func TestFormatToolResult_RecentAlerts(t *testing.T) {
	res := &mcp.ToolResult{
		Tool:      mcp.ToolGetRecentAlerts,
		Arguments: map[string]interface{}{"limit": 10, "severity": "critical"},
		Data: []core.Alert{
			{RuleName: "SSH brute force", Severity: "critical", SrcIP: "10.0.0.1", DstIP: "10.0.0.2", Timestamp: fixedTime, AgentName: "web-01"},
			{RuleName: "Port scan", Severity: "critical"},
		},
		Count: 2,
	}

	out := FormatToolResult(res)
	assert.True(t, strings.HasPrefix(out, "Here are the 2 most recent critical severity alerts:"))
	assert.Contains(t, out, "1. [CRITICAL] SSH brute force (10.0.0.1 → 10.0.0.2) at 2026-03-14 09:30 UTC on web-01")
	assert.Contains(t, out, "2. [CRITICAL] Port scan")
	assert.False(t, strings.HasSuffix(out, "\n"))
}

func TestFormatToolResult_Empty(t *testing.T) {
	assert.Equal(t, "No alerts found.", FormatToolResult(&mcp.ToolResult{
		Tool:      mcp.ToolGetRecentAlerts,
		Arguments: map[string]interface{}{"limit": 10},
		Data:      []core.Alert{},
	}))
	assert.Equal(t, "No alerts found involving 1.2.3.4.", FormatToolResult(&mcp.ToolResult{
		Tool:      mcp.ToolSearchAlertsByIP,
		Arguments: map[string]interface{}{"ip": "1.2.3.4", "limit": 20},
		Data:      []core.Alert{},
	}))
	assert.Equal(t, "No attacking IPs found in the last week.", FormatToolResult(&mcp.ToolResult{
		Tool:      mcp.ToolGetTopAttackers,
		Arguments: map[string]interface{}{"limit": 10, "hours": 168},
		Data:      []core.Attacker{},
	}))
	assert.Equal(t, "No results.", FormatToolResult(nil))
}

func TestFormatToolResult_IPAlerts(t *testing.T) {
	out := FormatToolResult(&mcp.ToolResult{
		Tool:      mcp.ToolSearchAlertsByIP,
		Arguments: map[string]interface{}{"ip": "1.2.3.4", "limit": 20},
		Data:      []core.Alert{{RuleName: "Malware beacon", Severity: "high", SrcIP: "1.2.3.4"}},
		Count:     1,
	})
	assert.Contains(t, out, "Found 1 alerts involving 1.2.3.4:")
	assert.Contains(t, out, "1. [HIGH] Malware beacon (1.2.3.4 → -)")
}

func TestFormatToolResult_Statistics(t *testing.T) {
	out := FormatToolResult(&mcp.ToolResult{
		Tool:      mcp.ToolGetAlertStatistics,
		Arguments: map[string]interface{}{"hours": 72},
		Data: &core.AlertStats{
			Total:      6,
			BySeverity: map[string]uint64{"low": 1, "critical": 3, "info": 2},
			ByStatus:   map[string]uint64{"open": 4, "closed": 2},
		},
		Count: 6,
	})

	assert.Contains(t, out, "Alert statistics for the last 3 days:")
	assert.Contains(t, out, "Total alerts: 6")
	// known severities first, most severe first, then anything else
	assert.Less(t, strings.Index(out, "critical: 3"), strings.Index(out, "low: 1"))
	assert.Less(t, strings.Index(out, "low: 1"), strings.Index(out, "info: 2"))
	assert.Less(t, strings.Index(out, "closed: 2"), strings.Index(out, "open: 4"))
}

func TestFormatToolResult_StatisticsEmpty(t *testing.T) {
	out := FormatToolResult(&mcp.ToolResult{
		Tool:      mcp.ToolGetAlertStatistics,
		Arguments: map[string]interface{}{"hours": 24},
		Data:      &core.AlertStats{},
	})
	assert.Equal(t, "Alert statistics for the last 24 hours:\n\nTotal alerts: 0", out)
}

func TestFormatToolResult_Attackers(t *testing.T) {
	out := FormatToolResult(&mcp.ToolResult{
		Tool:      mcp.ToolGetTopAttackers,
		Arguments: map[string]interface{}{"limit": 2, "hours": 6},
		Data: []core.Attacker{
			{IP: "10.1.1.1", AlertCount: 42, LastSeen: fixedTime},
			{IP: "10.1.1.2", AlertCount: 7},
		},
		Count: 2,
	})
	assert.Contains(t, out, "Top 2 attackers in the last 6 hours:")
	assert.Contains(t, out, "1. 10.1.1.1: 42 alerts (last seen 2026-03-14 09:30 UTC)")
	assert.Contains(t, out, "2. 10.1.1.2: 7 alerts")
}

func TestWindowLabel(t *testing.T) {
	assert.Equal(t, "last hour", windowLabel(1))
	assert.Equal(t, "last 24 hours", windowLabel(24))
	assert.Equal(t, "last 2 days", windowLabel(48))
	assert.Equal(t, "last week", windowLabel(168))
	assert.Equal(t, "last 30 days", windowLabel(720))
}
