package chatbot

import (
	"fmt"
	"sort"
	"strings"

	"socdash/core"
	"socdash/mcp"
)

const timeLayout = "2006-01-02 15:04 UTC"

// FormatToolResult renders a tool result as plain text for the chat window.
// It is used whenever no LLM is available to summarize the result.
func FormatToolResult(res *mcp.ToolResult) string {
	if res == nil {
		return "No results."
	}

	switch data := res.Data.(type) {
	case []core.Alert:
		if res.Tool == mcp.ToolSearchAlertsByIP {
			return formatIPAlerts(fmt.Sprint(res.Arguments["ip"]), data)
		}
		severity, _ := res.Arguments["severity"].(string)
		return formatRecentAlerts(severity, data)
	case *core.AlertStats:
		return formatStats(hoursArg(res), data)
	case []core.Attacker:
		return formatAttackers(hoursArg(res), data)
	}
	return fmt.Sprintf("%s returned %d results.", res.Tool, res.Count)
}

func hoursArg(res *mcp.ToolResult) int {
	if h, ok := res.Arguments["hours"].(int); ok {
		return h
	}
	return mcp.DefaultHours
}

func formatRecentAlerts(severity string, alerts []core.Alert) string {
	label := "alerts"
	if severity != "" {
		label = severity + " severity alerts"
	}
	if len(alerts) == 0 {
		return fmt.Sprintf("No %s found.", label)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Here are the %d most recent %s:\n", len(alerts), label)
	writeAlertList(&b, alerts)
	return strings.TrimRight(b.String(), "\n")
}

func formatIPAlerts(ip string, alerts []core.Alert) string {
	if len(alerts) == 0 {
		return fmt.Sprintf("No alerts found involving %s.", ip)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d alerts involving %s:\n", len(alerts), ip)
	writeAlertList(&b, alerts)
	return strings.TrimRight(b.String(), "\n")
}

func writeAlertList(b *strings.Builder, alerts []core.Alert) {
	for i, a := range alerts {
		fmt.Fprintf(b, "\n%d. [%s] %s", i+1, strings.ToUpper(orDash(a.Severity)), orDash(a.RuleName))
		if a.SrcIP != "" || a.DstIP != "" {
			fmt.Fprintf(b, " (%s → %s)", orDash(a.SrcIP), orDash(a.DstIP))
		}
		if !a.Timestamp.IsZero() {
			fmt.Fprintf(b, " at %s", a.Timestamp.UTC().Format(timeLayout))
		}
		if a.AgentName != "" {
			fmt.Fprintf(b, " on %s", a.AgentName)
		}
	}
}

func formatStats(hours int, stats *core.AlertStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Alert statistics for the %s:\n\nTotal alerts: %d", windowLabel(hours), stats.Total)
	if stats.Total == 0 {
		return b.String()
	}

	b.WriteString("\n\nBy severity:")
	seen := make(map[string]bool)
	for i := len(core.Severities) - 1; i >= 0; i-- {
		sev := core.Severities[i]
		seen[sev] = true
		if n := stats.BySeverity[sev]; n > 0 {
			fmt.Fprintf(&b, "\n• %s: %d", sev, n)
		}
	}
	for _, sev := range sortedKeys(stats.BySeverity) {
		if !seen[sev] && stats.BySeverity[sev] > 0 {
			fmt.Fprintf(&b, "\n• %s: %d", orDash(sev), stats.BySeverity[sev])
		}
	}

	if len(stats.ByStatus) > 0 {
		b.WriteString("\n\nBy status:")
		for _, status := range sortedKeys(stats.ByStatus) {
			fmt.Fprintf(&b, "\n• %s: %d", orDash(status), stats.ByStatus[status])
		}
	}
	return b.String()
}

func formatAttackers(hours int, attackers []core.Attacker) string {
	if len(attackers) == 0 {
		return fmt.Sprintf("No attacking IPs found in the %s.", windowLabel(hours))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Top %d attackers in the %s:\n", len(attackers), windowLabel(hours))
	for i, a := range attackers {
		fmt.Fprintf(&b, "\n%d. %s: %d alerts", i+1, a.IP, a.AlertCount)
		if !a.LastSeen.IsZero() {
			fmt.Fprintf(&b, " (last seen %s)", a.LastSeen.UTC().Format(timeLayout))
		}
	}
	return b.String()
}

func windowLabel(hours int) string {
	switch {
	case hours == 24:
		return "last 24 hours"
	case hours%168 == 0:
		return pluralize(hours/168, "week")
	case hours%24 == 0:
		return pluralize(hours/24, "day")
	default:
		return pluralize(hours, "hour")
	}
}

func pluralize(n int, unit string) string {
	if n == 1 {
		return "last " + unit
	}
	return fmt.Sprintf("last %d %ss", n, unit)
}

func sortedKeys(m map[string]uint64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
