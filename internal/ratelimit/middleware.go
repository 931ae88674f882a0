package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/zscore-fintech/zscore-engine/internal/errors"
)

// IPRateLimitMiddleware creates middleware for IP-based rate limiting
func (rl *RateLimiter) IPRateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		ip := c.ClientIP()

		result, err := rl.AllowIP(ctx, ip)
		if err != nil {
			// Log error but don't block request on rate limiter failure
			slog.Error("Rate limit check failed", "ip", ip, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			if rl.metrics != nil {
				rl.metrics.IncrementRateLimitIPBlock()
			}

			c.Header("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())))

			appErr := apperrors.NewRateLimitError(result.RetryAfter.Round(time.Second).String())
			c.JSON(appErr.HTTPStatus, appErr)
			c.Abort()
			return
		}

		c.Next()
	}
}

// EndpointRateLimitMiddleware creates middleware for endpoint-specific rate limiting
func (rl *RateLimiter) EndpointRateLimitMiddleware(endpoint string, limit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		ip := c.ClientIP()

		result, err := rl.AllowEndpoint(ctx, endpoint, ip, limit)
		if err != nil {
			slog.Error("Endpoint rate limit check failed", "endpoint", endpoint, "ip", ip, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Endpoint-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Endpoint-Remaining", strconv.Itoa(result.Remaining))

		if !result.Allowed {
			if rl.metrics != nil {
				rl.metrics.IncrementRateLimitEndpoint(endpoint)
			}

			c.Header("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())))

			appErr := apperrors.NewRateLimitError(result.RetryAfter.Round(time.Second).String())
			c.JSON(appErr.HTTPStatus, appErr)
			c.Abort()
			return
		}

		c.Next()
	}
}

// HandleRateLimitStatus returns the current limits for the requesting IP
func (rl *RateLimiter) HandleRateLimitStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ip": c.ClientIP(),
			"limits": gin.H{
				"ip_per_minute":     rl.config.IPLimitPerMin,
				"assess_per_minute": rl.config.AssessLimitPerMin,
				"action_per_minute": rl.config.ActionLimitPerMin,
			},
			"stats":     rl.GetStats(),
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}

// HandleRateLimitReset clears all rate limit state, for operator use after a
// deploy or a limit change.
func (rl *RateLimiter) HandleRateLimitReset() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := rl.Reset(c.Request.Context()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "failed to reset rate limits",
				"details": err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":   "rate limits reset",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}

// HandleInvalidateIP clears all rate limit state for one IP address.
func (rl *RateLimiter) HandleInvalidateIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.Param("ip")
		if ip == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "IP address is required"})
			return
		}

		if err := rl.InvalidateIP(c.Request.Context(), ip); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "failed to invalidate IP rate limits",
				"details": err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":   "IP rate limits invalidated",
			"ip":        ip,
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}
