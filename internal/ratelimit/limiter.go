package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"golang.org/x/time/rate"

	"github.com/zscore-fintech/zscore-engine/internal/monitoring"
)

// Config holds rate limiter configuration
type Config struct {
	IPLimitPerMin     int // global IP-based rate limit per minute
	AssessLimitPerMin int // per-IP limit for the assessment endpoint
	ActionLimitPerMin int // per-IP limit for gamification actions
	BurstMultiplier   int // burst capacity multiplier for the fallback bucket
}

// DefaultConfig returns default rate limiting configuration
func DefaultConfig() Config {
	return Config{
		IPLimitPerMin:     60,
		AssessLimitPerMin: 20,
		ActionLimitPerMin: 30,
		BurstMultiplier:   2,
	}
}

// Result represents the result of a rate limit check
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// RateLimiter provides distributed rate limiting with Redis and in-memory fallback
type RateLimiter struct {
	redisLimiter *redis_rate.Limiter
	redisClient  *RedisClient
	config       Config
	metrics      *monitoring.Metrics

	// In-memory fallback rate limiters
	fallbackLimiters map[string]*rate.Limiter
	fallbackMutex    sync.RWMutex
}

// NewRateLimiter creates a new rate limiter with Redis and in-memory fallback
func NewRateLimiter(redisClient *RedisClient, config Config, metrics *monitoring.Metrics) *RateLimiter {
	rl := &RateLimiter{
		redisClient:      redisClient,
		config:           config,
		metrics:          metrics,
		fallbackLimiters: make(map[string]*rate.Limiter),
	}

	if redisClient.IsEnabled() {
		rl.redisLimiter = redis_rate.NewLimiter(redisClient.GetClient())
		slog.Info("Redis rate limiter initialized")
	} else {
		slog.Warn("Redis unavailable, using in-memory rate limiting only")
	}

	go rl.cleanupFallbackLimiters()

	return rl
}

// AllowIP checks if an IP address is allowed to make a request (per-minute limit)
func (rl *RateLimiter) AllowIP(ctx context.Context, ip string) (*Result, error) {
	key := fmt.Sprintf("%s:ratelimit:ip:%s", keyNamespace, ip)
	return rl.allow(ctx, key, rl.config.IPLimitPerMin, time.Minute)
}

// AllowEndpoint checks a per-IP limit scoped to one endpoint.
func (rl *RateLimiter) AllowEndpoint(ctx context.Context, endpoint, ip string, limit int) (*Result, error) {
	key := fmt.Sprintf("%s:ratelimit:endpoint:%s:%s", keyNamespace, endpoint, ip)
	return rl.allow(ctx, key, limit, time.Minute)
}

// allow performs the actual rate limit check using Redis or fallback
func (rl *RateLimiter) allow(ctx context.Context, key string, limit int, period time.Duration) (*Result, error) {
	if rl.redisClient.IsEnabled() && rl.redisLimiter != nil {
		result, err := rl.allowRedis(ctx, key, limit, period)
		if err != nil {
			// Redis error - fall back to in-memory
			slog.Warn("Redis rate limit check failed, using fallback", "key", key, "error", err)
			if rl.metrics != nil {
				rl.metrics.IncrementRateLimitRedisError()
			}
			return rl.allowFallback(key, limit, period)
		}
		return result, nil
	}

	if rl.metrics != nil {
		rl.metrics.IncrementRateLimitFallback()
	}
	return rl.allowFallback(key, limit, period)
}

// allowRedis performs rate limiting using Redis sliding window
func (rl *RateLimiter) allowRedis(ctx context.Context, key string, limit int, period time.Duration) (*Result, error) {
	rateLimit := redis_rate.Limit{
		Rate:   limit,
		Burst:  limit,
		Period: period,
	}

	res, err := rl.redisLimiter.Allow(ctx, key, rateLimit)
	if err != nil {
		return nil, fmt.Errorf("redis rate limit check failed: %w", err)
	}

	allowed := res.Allowed > 0

	result := &Result{
		Allowed:    allowed,
		Limit:      res.Limit.Rate,
		Remaining:  res.Remaining,
		ResetAt:    time.Now().Add(res.ResetAfter),
		RetryAfter: res.RetryAfter,
	}

	return result, nil
}

// allowFallback performs rate limiting using in-memory token bucket
func (rl *RateLimiter) allowFallback(key string, limit int, period time.Duration) (*Result, error) {
	rl.fallbackMutex.Lock()
	limiter, exists := rl.fallbackLimiters[key]
	if !exists {
		rps := rate.Limit(float64(limit) / period.Seconds())
		burst := limit * rl.config.BurstMultiplier
		if burst < 5 {
			burst = 5
		}
		limiter = rate.NewLimiter(rps, burst)
		rl.fallbackLimiters[key] = limiter
	}
	rl.fallbackMutex.Unlock()

	allowed := limiter.Allow()

	tokens := limiter.Tokens()
	remaining := int(tokens)
	if remaining < 0 {
		remaining = 0
	}

	result := &Result{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   time.Now().Add(period),
	}

	if !allowed {
		result.RetryAfter = time.Until(result.ResetAt)
	}

	return result, nil
}

// cleanupFallbackLimiters periodically removes old fallback limiters
func (rl *RateLimiter) cleanupFallbackLimiters() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		rl.fallbackMutex.Lock()
		// Simple cleanup: clear all limiters when the map grows too large
		if len(rl.fallbackLimiters) > 1000 {
			slog.Info("Cleaning up fallback rate limiters", "count", len(rl.fallbackLimiters))
			rl.fallbackLimiters = make(map[string]*rate.Limiter)
		}
		rl.fallbackMutex.Unlock()
	}
}

// GetStats returns rate limiter statistics
func (rl *RateLimiter) GetStats() map[string]interface{} {
	rl.fallbackMutex.RLock()
	fallbackCount := len(rl.fallbackLimiters)
	rl.fallbackMutex.RUnlock()

	stats := map[string]interface{}{
		"redis_enabled":     rl.redisClient.IsEnabled(),
		"fallback_limiters": fallbackCount,
	}

	if rl.redisClient.IsEnabled() {
		stats["redis_pool"] = rl.redisClient.GetPoolStats()
	}

	return stats
}
