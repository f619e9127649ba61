package storage

import (
	"context"
	"fmt"
	"sync"

	"socdash/core"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// MemoryHistory keeps conversation transcripts in process memory. The number
// of sessions is bounded by an LRU; each session keeps at most maxTurns turns
// and drops the oldest first.
type MemoryHistory struct {
	mu       sync.Mutex
	sessions *lru.Cache[string, []core.ChatTurn]
	maxTurns int
	logger   *zap.SugaredLogger
}

// NewMemoryHistory creates an in-memory history store
func NewMemoryHistory(maxSessions, maxTurns int, logger *zap.SugaredLogger) (*MemoryHistory, error) {
	if maxTurns < 1 {
		return nil, fmt.Errorf("max turns must be positive, got %d", maxTurns)
	}

	cache, err := lru.NewWithEvict[string, []core.ChatTurn](maxSessions, func(sessionID string, _ []core.ChatTurn) {
		logger.Debugw("Evicted least recently used chat session", "session_id", sessionID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session cache: %w", err)
	}

	return &MemoryHistory{
		sessions: cache,
		maxTurns: maxTurns,
		logger:   logger,
	}, nil
}

// Append records a turn for the session
func (h *MemoryHistory) Append(_ context.Context, sessionID string, turn core.ChatTurn) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	turns, _ := h.sessions.Get(sessionID)
	turns = append(turns, turn)
	if over := len(turns) - h.maxTurns; over > 0 {
		// copy so the dropped turns can be collected
		turns = append([]core.ChatTurn(nil), turns[over:]...)
	}
	h.sessions.Add(sessionID, turns)
	return nil
}

// Get returns a copy of the session transcript, oldest first. Unknown
// sessions yield an empty transcript.
func (h *MemoryHistory) Get(_ context.Context, sessionID string) ([]core.ChatTurn, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	turns, ok := h.sessions.Get(sessionID)
	if !ok {
		return []core.ChatTurn{}, nil
	}
	out := make([]core.ChatTurn, len(turns))
	copy(out, turns)
	return out, nil
}

// Delete removes the session transcript
func (h *MemoryHistory) Delete(_ context.Context, sessionID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sessions.Remove(sessionID)
	return nil
}

// Sessions returns the number of sessions currently held
func (h *MemoryHistory) Sessions() int {
	return h.sessions.Len()
}

// Ping always succeeds for the in-memory store
func (h *MemoryHistory) Ping(context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store
func (h *MemoryHistory) Close() error {
	return nil
}
