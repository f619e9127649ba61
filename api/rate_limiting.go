package api

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"socdash/util/goroutine"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	rateLimitKeyPrefix = "socdash:ratelimit:"
	limiterIdleTimeout = 10 * time.Minute
	limiterSweepPeriod = time.Minute
)

// RateLimiterConfig holds the token bucket parameters
type RateLimiterConfig struct {
	RequestsPerSecond float64
	Burst             int
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter limits requests per key (client IP). With a Redis client it
// keeps one-second fixed windows in Redis so replicas share the budget, and
// falls back to the in-process token buckets when Redis is unreachable.
type RateLimiter struct {
	config   RateLimiterConfig
	limiters map[string]*limiterEntry
	mu       sync.Mutex
	redis    *redis.Client
	logger   *zap.SugaredLogger
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRateLimiter creates a rate limiter. redisClient may be nil.
func NewRateLimiter(config RateLimiterConfig, redisClient *redis.Client, logger *zap.SugaredLogger) *RateLimiter {
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = 10
	}
	if config.Burst <= 0 {
		config.Burst = int(math.Ceil(config.RequestsPerSecond))
	}

	rl := &RateLimiter{
		config:   config,
		limiters: make(map[string]*limiterEntry),
		redis:    redisClient,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}

	rl.wg.Add(1)
	goroutine.Go("rate-limiter-cleanup", logger, func() {
		defer rl.wg.Done()
		rl.cleanup()
	})
	return rl
}

// Limit returns the number of requests allowed in a one second burst
func (rl *RateLimiter) Limit() int {
	return rl.config.Burst
}

// Allow reports whether a request for key may proceed
func (rl *RateLimiter) Allow(ctx context.Context, key string) bool {
	if rl.redis != nil {
		allowed, err := rl.allowRedis(ctx, key)
		if err == nil {
			return allowed
		}
		rl.logger.Warnw("Redis rate limit check failed, falling back to memory", "error", err)
	}
	return rl.allowMemory(key)
}

func (rl *RateLimiter) allowMemory(key string) bool {
	rl.mu.Lock()
	entry, exists := rl.limiters[key]
	if !exists {
		entry = &limiterEntry{
			limiter: rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.Burst),
		}
		rl.limiters[key] = entry
	}
	entry.lastSeen = time.Now()
	limiter := entry.limiter
	rl.mu.Unlock()

	return limiter.Allow()
}

// allowRedis counts requests in the current one second window
func (rl *RateLimiter) allowRedis(ctx context.Context, key string) (bool, error) {
	window := time.Now().Unix()
	redisKey := fmt.Sprintf("%s%s:%d", rateLimitKeyPrefix, key, window)

	var incr *redis.IntCmd
	_, err := rl.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.Expire(ctx, redisKey, 2*time.Second)
		return nil
	})
	if err != nil {
		return false, err
	}
	return incr.Val() <= int64(rl.Limit()), nil
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(limiterSweepPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.sweep(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

// sweep drops limiters idle for longer than limiterIdleTimeout
func (rl *RateLimiter) sweep(now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for key, entry := range rl.limiters {
		if now.Sub(entry.lastSeen) > limiterIdleTimeout {
			delete(rl.limiters, key)
			removed++
		}
	}
	return removed
}

// Close stops the cleanup goroutine
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
	rl.wg.Wait()
}

// rateLimitMiddleware limits requests per client IP
func (a *API) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := a.clientIP(r)
		if !a.rateLimiter.Allow(r.Context(), ip) {
			a.logger.Warnw("Rate limit exceeded",
				"ip", ip,
				"request_id", GetRequestIDOrDefault(r.Context()))
			a.writeRateLimitResponse(w, a.rateLimiter.Limit())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeRateLimitResponse writes a 429 Too Many Requests response with rate limit headers
func (a *API) writeRateLimitResponse(w http.ResponseWriter, limit int) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", "0")
	w.Header().Set("Retry-After", "1")
	writeError(w, http.StatusTooManyRequests, "Too many requests", nil, nil)
}
