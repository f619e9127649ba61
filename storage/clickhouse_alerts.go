package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"socdash/core"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

const (
	defaultAlertLimit = 100
	maxAlertLimit     = 1000

	alertColumns = `alert_id, timestamp, rule_id, rule_name, severity, src_ip, dst_ip, agent_name, description, status`
)

// ClickHouseAlertStorage reads alerts from the ClickHouse alerts table.
// Every value that can come from a user is bound with ? placeholders; only
// the table name, validated at construction, is formatted into SQL text.
type ClickHouseAlertStorage struct {
	clickhouse *ClickHouse
	table      string
	timeout    time.Duration
	logger     *zap.SugaredLogger
}

// NewClickHouseAlertStorage creates alert storage on top of an open connection
func NewClickHouseAlertStorage(ch *ClickHouse, logger *zap.SugaredLogger) (*ClickHouseAlertStorage, error) {
	table := ch.Config.ClickHouse.AlertsTable
	if err := validateIdentifier(table); err != nil {
		return nil, fmt.Errorf("invalid alerts table name: %w", err)
	}

	timeout := ch.Config.ClickHouse.QueryTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &ClickHouseAlertStorage{
		clickhouse: ch,
		table:      table,
		timeout:    timeout,
		logger:     logger,
	}, nil
}

// GetRecentAlerts returns the newest alerts, optionally restricted to one severity
func (cas *ClickHouseAlertStorage) GetRecentAlerts(ctx context.Context, limit int, severity string) ([]core.Alert, error) {
	filter := core.AlertFilter{Severity: severity, Limit: limit}
	return cas.GetAlerts(ctx, filter)
}

// SearchAlertsByIP returns the newest alerts where ip is the source or destination
func (cas *ClickHouseAlertStorage) SearchAlertsByIP(ctx context.Context, ip string, limit int) ([]core.Alert, error) {
	ctx, cancel := context.WithTimeout(ctx, cas.timeout)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE src_ip = ? OR dst_ip = ?
		ORDER BY timestamp DESC
		LIMIT ?`, alertColumns, cas.table)

	rows, err := cas.clickhouse.Conn.Query(ctx, query, ip, ip, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to search alerts by IP: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// GetAlerts lists alerts matching filter, newest first
func (cas *ClickHouseAlertStorage) GetAlerts(ctx context.Context, filter core.AlertFilter) ([]core.Alert, error) {
	ctx, cancel := context.WithTimeout(ctx, cas.timeout)
	defer cancel()

	where, args := buildAlertConditions(filter)
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, clampLimit(filter.Limit), offset)

	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s
		ORDER BY timestamp DESC
		LIMIT ? OFFSET ?`, alertColumns, cas.table, where)

	rows, err := cas.clickhouse.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// GetAlertCount counts alerts matching filter, ignoring Limit and Offset
func (cas *ClickHouseAlertStorage) GetAlertCount(ctx context.Context, filter core.AlertFilter) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, cas.timeout)
	defer cancel()

	where, args := buildAlertConditions(filter)
	query := fmt.Sprintf("SELECT count() FROM %s WHERE %s", cas.table, where)

	var count uint64
	if err := cas.clickhouse.Conn.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count alerts: %w", err)
	}
	return int64(count), nil
}

// GetAlertByID returns a single alert
func (cas *ClickHouseAlertStorage) GetAlertByID(ctx context.Context, alertID string) (*core.Alert, error) {
	ctx, cancel := context.WithTimeout(ctx, cas.timeout)
	defer cancel()

	query := fmt.Sprintf("SELECT %s FROM %s WHERE alert_id = ? LIMIT 1", alertColumns, cas.table)

	var alert core.Alert
	err := cas.clickhouse.Conn.QueryRow(ctx, query, alertID).Scan(alertScanTargets(&alert)...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAlertNotFound
		}
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return &alert, nil
}

// GetAlertStatistics counts alerts since the given time by severity and status
func (cas *ClickHouseAlertStorage) GetAlertStatistics(ctx context.Context, since time.Time) (*core.AlertStats, error) {
	ctx, cancel := context.WithTimeout(ctx, cas.timeout)
	defer cancel()

	stats := &core.AlertStats{
		BySeverity: make(map[string]uint64),
		ByStatus:   make(map[string]uint64),
		Since:      since.UTC(),
	}

	query := fmt.Sprintf(`
		SELECT lower(severity) AS severity, status, count() AS count
		FROM %s
		WHERE timestamp >= ?
		GROUP BY severity, status`, cas.table)

	rows, err := cas.clickhouse.Conn.Query(ctx, query, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query alert statistics: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var severity, status string
		var count uint64
		if err := rows.Scan(&severity, &status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan alert statistics: %w", err)
		}
		stats.Total += count
		stats.BySeverity[severity] += count
		stats.ByStatus[status] += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alert statistics: %w", err)
	}

	return stats, nil
}

// GetTopAttackers ranks source IPs by alert count since the given time
func (cas *ClickHouseAlertStorage) GetTopAttackers(ctx context.Context, since time.Time, limit int) ([]core.Attacker, error) {
	ctx, cancel := context.WithTimeout(ctx, cas.timeout)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT src_ip AS ip, count() AS alert_count, max(timestamp) AS last_seen
		FROM %s
		WHERE timestamp >= ? AND src_ip != ''
		GROUP BY src_ip
		ORDER BY alert_count DESC, last_seen DESC
		LIMIT ?`, cas.table)

	rows, err := cas.clickhouse.Conn.Query(ctx, query, since.UTC(), clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query top attackers: %w", err)
	}
	defer rows.Close()

	attackers := make([]core.Attacker, 0)
	for rows.Next() {
		var a core.Attacker
		if err := rows.Scan(&a.IP, &a.AlertCount, &a.LastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan attacker: %w", err)
		}
		attackers = append(attackers, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attackers: %w", err)
	}
	return attackers, nil
}

// InsertAlerts writes alerts in a single batch
func (cas *ClickHouseAlertStorage) InsertAlerts(ctx context.Context, alerts []core.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, cas.timeout)
	defer cancel()

	batch, err := cas.clickhouse.Conn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s (%s)", cas.table, alertColumns))
	if err != nil {
		return fmt.Errorf("failed to prepare alert batch: %w", err)
	}

	for i, a := range alerts {
		if err := batch.Append(
			a.AlertID, a.Timestamp.UTC(), a.RuleID, a.RuleName, strings.ToLower(a.Severity),
			a.SrcIP, a.DstIP, a.AgentName, a.Description, a.Status,
		); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("failed to append alert %d to batch: %w", i, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send alert batch: %w", err)
	}

	cas.logger.Debugw("Inserted alerts", "count", len(alerts), "table", cas.table)
	return nil
}

// buildAlertConditions turns a filter into a WHERE clause and its bound arguments
func buildAlertConditions(filter core.AlertFilter) (string, []interface{}) {
	conditions := []string{"1=1"}
	args := make([]interface{}, 0, 5)

	if filter.Severity != "" {
		conditions = append(conditions, "lower(severity) = ?")
		args = append(args, strings.ToLower(filter.Severity))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		conditions = append(conditions, "(positionCaseInsensitive(rule_name, ?) > 0 OR positionCaseInsensitive(description, ?) > 0)")
		args = append(args, q, q)
	}
	if !filter.From.IsZero() {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, filter.From.UTC())
	}
	if !filter.To.IsZero() {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, filter.To.UTC())
	}

	return strings.Join(conditions, " AND "), args
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultAlertLimit
	}
	if limit > maxAlertLimit {
		return maxAlertLimit
	}
	return limit
}

func alertScanTargets(a *core.Alert) []interface{} {
	return []interface{}{
		&a.AlertID, &a.Timestamp, &a.RuleID, &a.RuleName, &a.Severity,
		&a.SrcIP, &a.DstIP, &a.AgentName, &a.Description, &a.Status,
	}
}

func scanAlerts(rows driver.Rows) ([]core.Alert, error) {
	alerts := make([]core.Alert, 0)
	for rows.Next() {
		var a core.Alert
		if err := rows.Scan(alertScanTargets(&a)...); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alerts: %w", err)
	}
	return alerts, nil
}
