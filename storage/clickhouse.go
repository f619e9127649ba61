package storage

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"regexp"
	"time"

	"socdash/config"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

// validIdentifierRegex ensures identifiers are safe to place in SQL text
var validIdentifierRegex = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// ClickHouse holds the ClickHouse connection
type ClickHouse struct {
	Conn   driver.Conn
	Config *config.Config
	Logger *zap.SugaredLogger
}

// NewClickHouse creates a new ClickHouse connection
func NewClickHouse(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (*ClickHouse, error) {
	maxOpen := cfg.ClickHouse.MaxPoolSize
	if maxOpen <= 0 {
		maxOpen = 10
	}

	options := &clickhouse.Options{
		Addr: []string{cfg.ClickHouse.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.ClickHouse.Database,
			Username: cfg.ClickHouse.Username,
			Password: cfg.ClickHouse.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 10 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		MaxOpenConns:     maxOpen,
		MaxIdleConns:     maxOpen / 2,
		ConnMaxLifetime:  1 * time.Hour,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
		DialContext: func(ctx context.Context, addr string) (net.Conn, error) {
			var d net.Dialer
			d.Timeout = 10 * time.Second
			d.KeepAlive = 30 * time.Second
			return d.DialContext(ctx, "tcp", addr)
		},
	}

	if cfg.ClickHouse.TLS {
		options.TLS = &tls.Config{
			MinVersion: tls.VersionTLS13,
		}
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := conn.Ping(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	logger.Infow("Connected to ClickHouse", "addr", cfg.ClickHouse.Addr, "database", cfg.ClickHouse.Database)

	if err := ensureDatabase(ctx, conn, cfg.ClickHouse.Database, logger); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ensure database exists: %w", err)
	}

	return &ClickHouse{
		Conn:   conn,
		Config: cfg,
		Logger: logger,
	}, nil
}

// validateIdentifier ensures a database or table name is safe from SQL injection
func validateIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidIdentifier)
	}
	if len(name) > 64 {
		return fmt.Errorf("%w: name too long (max 64 characters)", ErrInvalidIdentifier)
	}
	if !validIdentifierRegex.MatchString(name) {
		return fmt.Errorf("%w: %q contains invalid characters (only alphanumeric and underscore allowed)", ErrInvalidIdentifier, name)
	}
	return nil
}

// ensureDatabase creates the database if it doesn't exist
func ensureDatabase(ctx context.Context, conn driver.Conn, database string, logger *zap.SugaredLogger) error {
	if err := validateIdentifier(database); err != nil {
		return fmt.Errorf("invalid database name: %w", err)
	}

	query := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", database)
	if err := conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	logger.Debugf("Database '%s' is ready", database)
	return nil
}

// HealthCheck performs a health check on the ClickHouse connection
func (ch *ClickHouse) HealthCheck(ctx context.Context) error {
	return ch.Conn.Ping(ctx)
}

// Close closes the ClickHouse connection
func (ch *ClickHouse) Close() error {
	return ch.Conn.Close()
}

// GetVersion returns the ClickHouse server version
func (ch *ClickHouse) GetVersion(ctx context.Context) (string, error) {
	var version string
	err := ch.Conn.QueryRow(ctx, "SELECT version()").Scan(&version)
	if err != nil {
		return "", fmt.Errorf("failed to get version: %w", err)
	}
	return version, nil
}

// alertsTableDDL is the layout the alert queries expect. Deployments that
// already ship alerts into ClickHouse only need matching column names.
const alertsTableDDL = `
	CREATE TABLE IF NOT EXISTS %s (
		alert_id String,
		timestamp DateTime64(3, 'UTC'),
		rule_id String,
		rule_name String,
		severity LowCardinality(String),
		src_ip String,
		dst_ip String,
		agent_name LowCardinality(String),
		description String,
		status LowCardinality(String),
		INDEX idx_alert_id alert_id TYPE bloom_filter(0.01) GRANULARITY 1,
		INDEX idx_src_ip src_ip TYPE bloom_filter(0.01) GRANULARITY 1,
		INDEX idx_dst_ip dst_ip TYPE bloom_filter(0.01) GRANULARITY 1,
		INDEX idx_severity severity TYPE set(0) GRANULARITY 1
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMM(timestamp)
	ORDER BY (timestamp, severity, rule_id)
	SETTINGS index_granularity = 8192
	`

// CreateTablesIfNotExist creates the alerts table if it doesn't exist
func (ch *ClickHouse) CreateTablesIfNotExist(ctx context.Context) error {
	table := ch.Config.ClickHouse.AlertsTable
	if err := validateIdentifier(table); err != nil {
		return fmt.Errorf("invalid alerts table name: %w", err)
	}

	if err := ch.Conn.Exec(ctx, fmt.Sprintf(alertsTableDDL, table)); err != nil {
		return fmt.Errorf("failed to create %s table: %w", table, err)
	}

	ch.Logger.Infow("Alerts table created/verified", "table", table)
	return nil
}
