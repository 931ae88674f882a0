package ratelimit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// InvalidateIP removes all rate limit keys for a specific IP address.
// Used for manual limit resets by operators.
func (rl *RateLimiter) InvalidateIP(ctx context.Context, ip string) error {
	if !rl.redisClient.IsEnabled() {
		rl.fallbackMutex.Lock()
		defer rl.fallbackMutex.Unlock()

		delete(rl.fallbackLimiters, fmt.Sprintf("%s:ratelimit:ip:%s", keyNamespace, ip))
		for key := range rl.fallbackLimiters {
			if len(key) > len(ip) && key[len(key)-len(ip):] == ip {
				delete(rl.fallbackLimiters, key)
			}
		}

		slog.Info("Invalidated IP rate limits (in-memory)", "ip", ip)
		return nil
	}

	if err := rl.deleteByPattern(ctx, fmt.Sprintf("%s:ratelimit:ip:%s*", keyNamespace, ip)); err != nil {
		return err
	}
	return rl.deleteByPattern(ctx, fmt.Sprintf("%s:ratelimit:endpoint:*:%s", keyNamespace, ip))
}

// Reset clears all rate limit state, in Redis and in memory.
func (rl *RateLimiter) Reset(ctx context.Context) error {
	rl.fallbackMutex.Lock()
	rl.fallbackLimiters = make(map[string]*rate.Limiter)
	rl.fallbackMutex.Unlock()

	if !rl.redisClient.IsEnabled() {
		return nil
	}
	return rl.deleteByPattern(ctx, keyNamespace+":ratelimit:*")
}

// deleteByPattern scans and deletes Redis keys matching the pattern. SCAN is
// used instead of KEYS so the operation does not block the server.
func (rl *RateLimiter) deleteByPattern(ctx context.Context, pattern string) error {
	client := rl.redisClient.GetClient()

	var cursor uint64
	deleted := 0
	for {
		keys, next, err := client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("redis scan failed for pattern %s: %w", pattern, err)
		}

		if len(keys) > 0 {
			if err := client.Del(ctx, keys...).Err(); err != nil && err != redis.Nil {
				return fmt.Errorf("redis delete failed: %w", err)
			}
			deleted += len(keys)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	slog.Info("Invalidated rate limit keys", "pattern", pattern, "deleted", deleted)
	return nil
}
