package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"socdash/core"
	"socdash/mcp"

	"github.com/gorilla/mux"
)

const (
	defaultAlertPageSize = 50
	maxAlertPageSize     = 500
	summaryListSize      = 10
	maxAlertIDLength     = 128
)

type summaryReport struct {
	Hours          int              `json:"hours"`
	GeneratedAt    time.Time        `json:"generatedAt"`
	Stats          *core.AlertStats `json:"stats"`
	TopAttackers   []core.Attacker  `json:"topAttackers"`
	RecentCritical []core.Alert     `json:"recentCritical"`
}

// parseHours reads the hours query parameter, defaulting to 24 and
// rejecting values outside 1..720
func parseHours(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("hours")
	if raw == "" {
		return mcp.DefaultHours, true
	}
	hours, err := strconv.Atoi(raw)
	if err != nil || hours < 1 || hours > mcp.MaxHours {
		return 0, false
	}
	return hours, true
}

func parseTimeParam(r *http.Request, name string) (time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// getAlerts lists alerts page by page with optional severity, text and time filters
func (a *API) getAlerts(w http.ResponseWriter, r *http.Request) {
	params := ParsePaginationParams(r, defaultAlertPageSize, maxAlertPageSize)
	q := r.URL.Query()

	filter := core.AlertFilter{
		Query:  strings.TrimSpace(q.Get("q")),
		Limit:  params.Limit,
		Offset: params.CalculateOffset(),
	}

	if sev := q.Get("severity"); sev != "" {
		normalized, ok := core.NormalizeSeverity(sev)
		if !ok {
			writeError(w, http.StatusBadRequest, "severity must be one of low, medium, high, critical", nil, a.logger)
			return
		}
		filter.Severity = normalized
	}

	var ok bool
	if filter.From, ok = parseTimeParam(r, "from"); !ok {
		writeError(w, http.StatusBadRequest, "from must be an RFC3339 timestamp", nil, a.logger)
		return
	}
	if filter.To, ok = parseTimeParam(r, "to"); !ok {
		writeError(w, http.StatusBadRequest, "to must be an RFC3339 timestamp", nil, a.logger)
		return
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.From.After(filter.To) {
		writeError(w, http.StatusBadRequest, "from must not be after to", nil, a.logger)
		return
	}

	total, err := a.alerts.GetAlertCount(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count alerts", err, a.logger)
		return
	}

	alerts := []core.Alert{}
	if int64(filter.Offset) < total {
		alerts, err = a.alerts.GetAlerts(r.Context(), filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to get alerts", err, a.logger)
			return
		}
	}

	a.respondJSON(w, NewPaginationResponse(alerts, total, params.Page, params.Limit), http.StatusOK)
}

// getAlertStats returns alert counts for the last hours
func (a *API) getAlertStats(w http.ResponseWriter, r *http.Request) {
	hours, ok := parseHours(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "hours must be an integer between 1 and 720", nil, a.logger)
		return
	}

	stats, err := a.alerts.GetAlertStatistics(r.Context(), time.Now().Add(-time.Duration(hours)*time.Hour))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get alert statistics", err, a.logger)
		return
	}
	a.respondJSON(w, stats, http.StatusOK)
}

// getAlert returns a single alert
func (a *API) getAlert(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(mux.Vars(r)["id"])
	if id == "" || len(id) > maxAlertIDLength {
		writeError(w, http.StatusBadRequest, "Invalid alert ID", nil, a.logger)
		return
	}

	alert, err := a.alerts.GetAlertByID(r.Context(), id)
	if err != nil {
		a.writeServiceError(w, "Failed to get alert", err)
		return
	}
	a.respondJSON(w, alert, http.StatusOK)
}

// getSummaryReport combines statistics, top attackers and the latest
// critical alerts for the dashboard overview
func (a *API) getSummaryReport(w http.ResponseWriter, r *http.Request) {
	hours, ok := parseHours(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "hours must be an integer between 1 and 720", nil, a.logger)
		return
	}

	now := time.Now()
	since := now.Add(-time.Duration(hours) * time.Hour)
	ctx := r.Context()

	stats, err := a.alerts.GetAlertStatistics(ctx, since)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get alert statistics", err, a.logger)
		return
	}
	attackers, err := a.alerts.GetTopAttackers(ctx, since, summaryListSize)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get top attackers", err, a.logger)
		return
	}
	critical, err := a.alerts.GetRecentAlerts(ctx, summaryListSize, core.SeverityCritical)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get critical alerts", err, a.logger)
		return
	}

	a.respondJSON(w, summaryReport{
		Hours:          hours,
		GeneratedAt:    now.UTC(),
		Stats:          stats,
		TopAttackers:   attackers,
		RecentCritical: critical,
	}, http.StatusOK)
}
