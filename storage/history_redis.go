package storage

import (
	"context"
	"fmt"
	"time"

	"socdash/config"
	"socdash/core"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

const historyKeyPrefix = "socdash:history:"

// RedisHistory keeps conversation transcripts in Redis lists so that several
// API replicas share them. Each turn is one msgpack encoded list element.
type RedisHistory struct {
	client   *redis.Client
	maxTurns int
	ttl      time.Duration
	logger   *zap.SugaredLogger
}

// NewRedisClient opens a Redis client from configuration and verifies it
func NewRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Redis.Addr, err)
	}
	return client, nil
}

// NewRedisHistory creates a Redis backed history store
func NewRedisHistory(client *redis.Client, maxTurns int, ttl time.Duration, logger *zap.SugaredLogger) (*RedisHistory, error) {
	if maxTurns < 1 {
		return nil, fmt.Errorf("max turns must be positive, got %d", maxTurns)
	}
	return &RedisHistory{
		client:   client,
		maxTurns: maxTurns,
		ttl:      ttl,
		logger:   logger,
	}, nil
}

func historyKey(sessionID string) string {
	return historyKeyPrefix + sessionID
}

// Append records a turn and trims the list to the newest maxTurns entries
func (h *RedisHistory) Append(ctx context.Context, sessionID string, turn core.ChatTurn) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}

	data, err := msgpack.Marshal(&turn)
	if err != nil {
		return fmt.Errorf("failed to encode chat turn: %w", err)
	}

	key := historyKey(sessionID)
	_, err = h.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		pipe.LTrim(ctx, key, int64(-h.maxTurns), -1)
		if h.ttl > 0 {
			pipe.Expire(ctx, key, h.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append chat turn: %w", err)
	}
	return nil
}

// Get returns the session transcript, oldest first
func (h *RedisHistory) Get(ctx context.Context, sessionID string) ([]core.ChatTurn, error) {
	items, err := h.client.LRange(ctx, historyKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read chat history: %w", err)
	}

	turns := make([]core.ChatTurn, 0, len(items))
	for _, item := range items {
		var turn core.ChatTurn
		if err := msgpack.Unmarshal([]byte(item), &turn); err != nil {
			// one corrupt entry should not hide the rest of the transcript
			h.logger.Warnw("Skipping undecodable chat turn", "session_id", sessionID, "error", err)
			continue
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// Delete removes the session transcript
func (h *RedisHistory) Delete(ctx context.Context, sessionID string) error {
	if err := h.client.Del(ctx, historyKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete chat history: %w", err)
	}
	return nil
}

// Ping checks the Redis connection
func (h *RedisHistory) Ping(ctx context.Context) error {
	return h.client.Ping(ctx).Err()
}

// Close is a no-op: the client belongs to the caller, which may share it
// with the rate limiter
func (h *RedisHistory) Close() error {
	return nil
}
