package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"socdash/core"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// purgeEvery is the number of appends between sweeps for expired sessions
const purgeEvery = 100

const sqliteHistorySchema = `
CREATE TABLE IF NOT EXISTS chat_history (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT    NOT NULL,
	created_at INTEGER NOT NULL,
	turn       BLOB    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_history_session ON chat_history(session_id, id);
`

// SQLiteHistory keeps conversation transcripts in a local SQLite file so a
// single node survives restarts without Redis. A session expires ttl after
// its last turn, like a Redis key with a refreshed TTL.
type SQLiteHistory struct {
	db       *sql.DB
	path     string
	maxTurns int
	ttl      time.Duration
	logger   *zap.SugaredLogger
	appends  atomic.Int64
	now      func() time.Time
}

// NewSQLiteHistory opens (creating if needed) the history database at path.
// ":memory:" gives a private in-memory database.
func NewSQLiteHistory(ctx context.Context, path string, maxTurns int, ttl time.Duration, logger *zap.SugaredLogger) (*SQLiteHistory, error) {
	if maxTurns < 1 {
		return nil, fmt.Errorf("max turns must be positive, got %d", maxTurns)
	}
	if err := validateDatabasePath(path); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// one connection serializes writers and keeps an in-memory database alive
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	h := &SQLiteHistory{
		db:       db,
		path:     path,
		maxTurns: maxTurns,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}

	if err := h.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Infow("SQLite history ready", "path", path, "max_turns", maxTurns, "ttl", ttl)
	return h, nil
}

func (h *SQLiteHistory) init(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	if h.path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, pragma := range pragmas {
		if _, err := h.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if _, err := h.db.ExecContext(ctx, sqliteHistorySchema); err != nil {
		return fmt.Errorf("failed to create chat_history table: %w", err)
	}
	return nil
}

// Append records a turn and drops the oldest turns beyond maxTurns
func (h *SQLiteHistory) Append(ctx context.Context, sessionID string, turn core.ChatTurn) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}

	data, err := msgpack.Marshal(&turn)
	if err != nil {
		return fmt.Errorf("failed to encode chat turn: %w", err)
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO chat_history (session_id, created_at, turn) VALUES (?, ?, ?)",
		sessionID, h.now().UnixNano(), data); err != nil {
		return fmt.Errorf("failed to append chat turn: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM chat_history
		WHERE session_id = ? AND id NOT IN (
			SELECT id FROM chat_history WHERE session_id = ? ORDER BY id DESC LIMIT ?
		)`, sessionID, sessionID, h.maxTurns); err != nil {
		return fmt.Errorf("failed to trim chat history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chat turn: %w", err)
	}

	if h.ttl > 0 && h.appends.Add(1)%purgeEvery == 0 {
		if n, err := h.purgeExpired(ctx); err != nil {
			h.logger.Warnw("Failed to purge expired chat sessions", "error", err)
		} else if n > 0 {
			h.logger.Debugw("Purged expired chat turns", "rows", n)
		}
	}
	return nil
}

// Get returns the session transcript, oldest first. An expired session
// reads as empty.
func (h *SQLiteHistory) Get(ctx context.Context, sessionID string) ([]core.ChatTurn, error) {
	rows, err := h.db.QueryContext(ctx,
		"SELECT created_at, turn FROM chat_history WHERE session_id = ? ORDER BY id ASC", sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to read chat history: %w", err)
	}
	defer rows.Close()

	var (
		turns  []core.ChatTurn
		latest int64
	)
	for rows.Next() {
		var (
			createdAt int64
			data      []byte
		)
		if err := rows.Scan(&createdAt, &data); err != nil {
			return nil, fmt.Errorf("failed to scan chat turn: %w", err)
		}
		if createdAt > latest {
			latest = createdAt
		}

		var turn core.ChatTurn
		if err := msgpack.Unmarshal(data, &turn); err != nil {
			h.logger.Warnw("Skipping undecodable chat turn", "session_id", sessionID, "error", err)
			continue
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read chat history: %w", err)
	}

	if h.expired(latest) {
		return []core.ChatTurn{}, nil
	}
	if turns == nil {
		turns = []core.ChatTurn{}
	}
	return turns, nil
}

func (h *SQLiteHistory) expired(lastActivity int64) bool {
	if h.ttl <= 0 || lastActivity == 0 {
		return false
	}
	return h.now().Add(-h.ttl).UnixNano() > lastActivity
}

// purgeExpired deletes every session whose last turn is older than ttl
func (h *SQLiteHistory) purgeExpired(ctx context.Context) (int64, error) {
	cutoff := h.now().Add(-h.ttl).UnixNano()
	res, err := h.db.ExecContext(ctx, `
		DELETE FROM chat_history WHERE session_id IN (
			SELECT session_id FROM chat_history GROUP BY session_id HAVING MAX(created_at) < ?
		)`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Delete removes the session transcript
func (h *SQLiteHistory) Delete(ctx context.Context, sessionID string) error {
	if _, err := h.db.ExecContext(ctx, "DELETE FROM chat_history WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to delete chat history: %w", err)
	}
	return nil
}

// Ping checks the database connection
func (h *SQLiteHistory) Ping(ctx context.Context) error {
	return h.db.PingContext(ctx)
}

// Close closes the database
func (h *SQLiteHistory) Close() error {
	return h.db.Close()
}

func validateDatabasePath(path string) error {
	switch {
	case path == "":
		return fmt.Errorf("database path cannot be empty")
	case len(path) > 512:
		return fmt.Errorf("database path exceeds maximum length of 512 characters")
	case strings.Contains(path, "\x00"):
		return fmt.Errorf("null bytes not allowed in path")
	case strings.Contains(path, ".."):
		return fmt.Errorf("path traversal not allowed (..): %s", path)
	}
	return nil
}
