package storage

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"socdash/config"
	"socdash/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Set CLICKHOUSE_ADDR to run these tests against a running ClickHouse
// instance, or SOCDASH_TESTCONTAINERS=1 to start one in Docker
const (
	testClickHouseAddr     = "localhost:9000"
	testClickHouseDatabase = "socdash_test"
	testClickHouseUser     = "default"
	testAlertsTable        = "alerts_test"
)

func newTestClickHouseConfig() *config.Config {
	cfg := &config.Config{}
	cfg.ClickHouse.Addr = testClickHouseAddr
	cfg.ClickHouse.Database = testClickHouseDatabase
	cfg.ClickHouse.Username = testClickHouseUser
	cfg.ClickHouse.MaxPoolSize = 4
	cfg.ClickHouse.AlertsTable = testAlertsTable
	cfg.ClickHouse.QueryTimeout = 10 * time.Second
	return cfg
}

// setupTestClickHouse creates a connection with a fresh alerts table
func setupTestClickHouse(t *testing.T) *ClickHouse {
	t.Helper()

	cfg := newTestClickHouseConfig()
	switch {
	case os.Getenv("CLICKHOUSE_ADDR") != "":
		cfg.ClickHouse.Addr = os.Getenv("CLICKHOUSE_ADDR")
		cfg.ClickHouse.Password = os.Getenv("CLICKHOUSE_PASSWORD")
	case os.Getenv("SOCDASH_TESTCONTAINERS") != "":
		if testing.Short() {
			t.Skip("Skipping ClickHouse container test in short mode")
		}
		cfg.ClickHouse.Addr, cfg.ClickHouse.Password = startClickHouseContainer(t)
	default:
		t.Skip("Skipping ClickHouse integration test (set CLICKHOUSE_ADDR or SOCDASH_TESTCONTAINERS to enable)")
	}

	ch, err := NewClickHouse(context.Background(), cfg, zap.NewNop().Sugar())
	require.NoError(t, err, "Failed to create ClickHouse connection")

	ctx := context.Background()
	require.NoError(t, ch.Conn.Exec(ctx, "DROP TABLE IF EXISTS "+testAlertsTable))
	require.NoError(t, ch.CreateTablesIfNotExist(ctx))

	t.Cleanup(func() {
		_ = ch.Conn.Exec(context.Background(), "DROP TABLE IF EXISTS "+testAlertsTable)
		if err := ch.Close(); err != nil {
			t.Logf("Warning: failed to close ClickHouse connection: %v", err)
		}
	})
	return ch
}

func seedAlerts(t *testing.T, store *ClickHouseAlertStorage, now time.Time) {
	t.Helper()
	alerts := []core.Alert{
		{AlertID: "a1", Timestamp: now.Add(-1 * time.Hour), RuleID: "r1", RuleName: "SSH brute force", Severity: "high", SrcIP: "10.0.0.5", DstIP: "10.0.0.1", AgentName: "web-01", Description: "Multiple failed logins", Status: "new"},
		{AlertID: "a2", Timestamp: now.Add(-2 * time.Hour), RuleID: "r2", RuleName: "Port scan", Severity: "medium", SrcIP: "10.0.0.5", DstIP: "10.0.0.2", AgentName: "web-02", Description: "SYN scan detected", Status: "new"},
		{AlertID: "a3", Timestamp: now.Add(-3 * time.Hour), RuleID: "r3", RuleName: "Malware beacon", Severity: "critical", SrcIP: "192.168.1.9", DstIP: "10.0.0.5", AgentName: "db-01", Description: "C2 traffic", Status: "acknowledged"},
		{AlertID: "a4", Timestamp: now.Add(-72 * time.Hour), RuleID: "r1", RuleName: "SSH brute force", Severity: "high", SrcIP: "172.16.0.3", DstIP: "10.0.0.1", AgentName: "web-01", Description: "Old event", Status: "closed"},
	}
	require.NoError(t, store.InsertAlerts(context.Background(), alerts))
}

func TestNewClickHouse_InvalidAddress(t *testing.T) {
	cfg := newTestClickHouseConfig()
	cfg.ClickHouse.Addr = "invalid-host:9999"

	ch, err := NewClickHouse(context.Background(), cfg, zap.NewNop().Sugar())
	assert.Error(t, err, "Should fail with invalid address")
	assert.Nil(t, ch)
}

func TestClickHouse_HealthCheckAndVersion(t *testing.T) {
	ch := setupTestClickHouse(t)
	ctx := context.Background()

	assert.NoError(t, ch.HealthCheck(ctx))

	version, err := ch.GetVersion(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, version)
}

func TestClickHouse_CreateTablesIfNotExist(t *testing.T) {
	ch := setupTestClickHouse(t)
	ctx := context.Background()

	// idempotent
	require.NoError(t, ch.CreateTablesIfNotExist(ctx))

	var count uint64
	err := ch.Conn.QueryRow(ctx, "SELECT count() FROM system.tables WHERE database = ? AND name = ?",
		testClickHouseDatabase, testAlertsTable).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestClickHouse_CreateTablesRejectsBadName(t *testing.T) {
	ch := &ClickHouse{Config: &config.Config{}, Logger: zap.NewNop().Sugar()}
	ch.Config.ClickHouse.AlertsTable = "alerts`; DROP"

	err := ch.CreateTablesIfNotExist(context.Background())
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
}

func TestClickHouseAlertStorage_Queries(t *testing.T) {
	ch := setupTestClickHouse(t)
	store, err := NewClickHouseAlertStorage(ch, zap.NewNop().Sugar())
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Millisecond)
	seedAlerts(t, store, now)
	ctx := context.Background()

	t.Run("recent", func(t *testing.T) {
		alerts, err := store.GetRecentAlerts(ctx, 2, "")
		require.NoError(t, err)
		require.Len(t, alerts, 2)
		assert.Equal(t, "a1", alerts[0].AlertID)
		assert.Equal(t, "a2", alerts[1].AlertID)
	})

	t.Run("recent by severity", func(t *testing.T) {
		alerts, err := store.GetRecentAlerts(ctx, 10, "HIGH")
		require.NoError(t, err)
		require.Len(t, alerts, 2)
		for _, a := range alerts {
			assert.Equal(t, "high", a.Severity)
		}
	})

	t.Run("by ip matches source and destination", func(t *testing.T) {
		alerts, err := store.SearchAlertsByIP(ctx, "10.0.0.5", 20)
		require.NoError(t, err)
		ids := []string{}
		for _, a := range alerts {
			ids = append(ids, a.AlertID)
		}
		assert.ElementsMatch(t, []string{"a1", "a2", "a3"}, ids)
	})

	t.Run("injection attempt is just a value", func(t *testing.T) {
		alerts, err := store.SearchAlertsByIP(ctx, "' OR 1=1 --", 20)
		require.NoError(t, err)
		assert.Empty(t, alerts)
	})

	t.Run("statistics", func(t *testing.T) {
		stats, err := store.GetAlertStatistics(ctx, now.Add(-24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, uint64(3), stats.Total)
		assert.Equal(t, uint64(1), stats.BySeverity["high"])
		assert.Equal(t, uint64(1), stats.BySeverity["critical"])
		assert.Equal(t, uint64(2), stats.ByStatus["new"])
	})

	t.Run("top attackers", func(t *testing.T) {
		attackers, err := store.GetTopAttackers(ctx, now.Add(-24*time.Hour), 10)
		require.NoError(t, err)
		require.Len(t, attackers, 2)
		assert.Equal(t, "10.0.0.5", attackers[0].IP)
		assert.Equal(t, uint64(2), attackers[0].AlertCount)
	})

	t.Run("filter and count", func(t *testing.T) {
		filter := core.AlertFilter{Query: "ssh", Limit: 1}
		alerts, err := store.GetAlerts(ctx, filter)
		require.NoError(t, err)
		assert.Len(t, alerts, 1)

		total, err := store.GetAlertCount(ctx, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
	})

	t.Run("by id", func(t *testing.T) {
		alert, err := store.GetAlertByID(ctx, "a3")
		require.NoError(t, err)
		assert.Equal(t, "Malware beacon", alert.RuleName)

		_, err = store.GetAlertByID(ctx, fmt.Sprintf("missing-%d", now.UnixNano()))
		assert.ErrorIs(t, err, ErrAlertNotFound)
	})
}
