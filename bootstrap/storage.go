package bootstrap

import (
	"context"
	"fmt"
	"time"

	"socdash/chatbot"
	"socdash/config"
	"socdash/storage"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// HistoryBackend is a transcript store that can report its health and be closed
type HistoryBackend interface {
	chatbot.HistoryStore
	Ping(ctx context.Context) error
	Close() error
}

// StorageComponents holds all storage-related components.
type StorageComponents struct {
	ClickHouse   *storage.ClickHouse
	AlertStorage *storage.ClickHouseAlertStorage
	Redis        *redis.Client // nil unless history or rate limiting uses Redis
	History      HistoryBackend
}

// Close releases every connection held by the components
func (s *StorageComponents) Close(sugar *zap.SugaredLogger) {
	if s.History != nil {
		if err := s.History.Close(); err != nil {
			sugar.Warnw("Failed to close history store", "error", err)
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			sugar.Warnw("Failed to close Redis client", "error", err)
		}
	}
	if s.ClickHouse != nil {
		if err := s.ClickHouse.Close(); err != nil {
			sugar.Warnw("Failed to close ClickHouse connection", "error", err)
		}
	}
}

// InitClickHouse connects to ClickHouse with retries and creates the alerts
// table when configured to.
func InitClickHouse(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger) (*storage.ClickHouse, error) {
	return initClickHouse(ctx, cfg, sugar, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second})
}

func initClickHouse(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger, retryDelays []time.Duration) (*storage.ClickHouse, error) {
	maxRetries := len(retryDelays)

	var clickhouse *storage.ClickHouse
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			sugar.Infow("Retrying ClickHouse connection",
				"attempt", attempt,
				"max_retries", maxRetries,
				"delay", retryDelays[attempt-1])
			select {
			case <-time.After(retryDelays[attempt-1]):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		clickhouse, lastErr = storage.NewClickHouse(ctx, cfg, sugar)
		if lastErr == nil {
			break
		}

		sugar.Warnw("ClickHouse connection attempt failed",
			"attempt", attempt+1,
			"error", lastErr)
	}

	if lastErr != nil {
		sugar.Error(ClassifyConnectionError(lastErr, "ClickHouse", cfg.ClickHouse.Addr))
		return nil, fmt.Errorf("failed to connect to ClickHouse after %d attempts: %w", maxRetries+1, lastErr)
	}

	if cfg.ClickHouse.CreateTables {
		if err := clickhouse.CreateTablesIfNotExist(ctx); err != nil {
			_ = clickhouse.Close()
			return nil, fmt.Errorf("failed to create ClickHouse tables: %w", err)
		}
	}

	return clickhouse, nil
}

// InitRedis opens the shared Redis client when the history backend or the
// rate limiter needs it. It returns nil otherwise.
func InitRedis(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger) (*redis.Client, error) {
	if cfg.History.Backend != config.HistoryBackendRedis && !cfg.API.RateLimit.Redis {
		return nil, nil
	}

	client, err := storage.NewRedisClient(ctx, cfg)
	if err != nil {
		sugar.Error(ClassifyConnectionError(err, "Redis", cfg.Redis.Addr))
		return nil, err
	}

	sugar.Infow("Connected to Redis", "addr", cfg.Redis.Addr, "db", cfg.Redis.DB)
	return client, nil
}

// InitHistory creates the configured transcript store
func InitHistory(ctx context.Context, cfg *config.Config, redisClient *redis.Client, sugar *zap.SugaredLogger) (HistoryBackend, error) {
	switch cfg.History.Backend {
	case config.HistoryBackendRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("redis history backend requires a Redis client")
		}
		history, err := storage.NewRedisHistory(redisClient, cfg.History.MaxTurns, cfg.History.TTL, sugar)
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis history: %w", err)
		}
		sugar.Infow("Chat history stored in Redis", "max_turns", cfg.History.MaxTurns, "ttl", cfg.History.TTL)
		return history, nil

	case config.HistoryBackendSQLite:
		history, err := storage.NewSQLiteHistory(ctx, cfg.History.SQLitePath, cfg.History.MaxTurns, cfg.History.TTL, sugar)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite history: %w", err)
		}
		return history, nil

	case config.HistoryBackendMemory, "":
		history, err := storage.NewMemoryHistory(cfg.History.MaxSessions, cfg.History.MaxTurns, sugar)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory history: %w", err)
		}
		sugar.Infow("Chat history kept in memory",
			"max_sessions", cfg.History.MaxSessions,
			"max_turns", cfg.History.MaxTurns)
		return history, nil

	default:
		return nil, fmt.Errorf("unknown history backend %q", cfg.History.Backend)
	}
}

// InitStorage connects ClickHouse and Redis and builds the stores on top of them
func InitStorage(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger) (*StorageComponents, error) {
	clickhouse, err := InitClickHouse(ctx, cfg, sugar)
	if err != nil {
		return nil, err
	}
	components := &StorageComponents{ClickHouse: clickhouse}

	components.AlertStorage, err = storage.NewClickHouseAlertStorage(clickhouse, sugar)
	if err != nil {
		components.Close(sugar)
		return nil, fmt.Errorf("failed to create alert storage: %w", err)
	}

	components.Redis, err = InitRedis(ctx, cfg, sugar)
	if err != nil {
		components.Close(sugar)
		return nil, err
	}

	components.History, err = InitHistory(ctx, cfg, components.Redis, sugar)
	if err != nil {
		components.Close(sugar)
		return nil, err
	}

	return components, nil
}
