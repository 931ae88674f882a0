package security

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
)

// SecurityConfig holds security configuration
type SecurityConfig struct {
	MaxBodyBytes   int64         `json:"max_body_bytes"`
	AllowedOrigins []string      `json:"allowed_origins"`
	TrustedProxies []string      `json:"trusted_proxies"`
	RequestTimeout time.Duration `json:"request_timeout"`
}

// DefaultSecurityConfig returns secure defaults
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		MaxBodyBytes:   1 << 20, // 1 MiB of JSON is plenty for a single applicant record
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		TrustedProxies: []string{"127.0.0.1", "::1", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"},
		RequestTimeout: 30 * time.Second,
	}
}

// SecurityMiddleware provides request hardening for the scoring API
type SecurityMiddleware struct {
	config SecurityConfig
}

// NewSecurityMiddleware creates a new security middleware instance
func NewSecurityMiddleware(config SecurityConfig) *SecurityMiddleware {
	return &SecurityMiddleware{config: config}
}

// applicantIDPattern restricts applicant identifiers to safe URL-path material.
var applicantIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,63}$`)

// ValidateApplicantID validates an applicant identifier taken from a URL path.
func (sm *SecurityMiddleware) ValidateApplicantID(id string) error {
	if id == "" {
		return fmt.Errorf("applicant id is required")
	}
	if strings.Contains(id, "\x00") {
		return fmt.Errorf("applicant id contains invalid characters")
	}
	if !utf8.ValidString(id) {
		return fmt.Errorf("applicant id contains invalid UTF-8 encoding")
	}
	if strings.Contains(id, "..") || strings.Contains(id, "--") {
		return fmt.Errorf("invalid applicant id format")
	}
	if !applicantIDPattern.MatchString(id) {
		return fmt.Errorf("invalid applicant id format")
	}
	return nil
}

// RequireApplicantID validates the :id path parameter before the handler runs
func (sm *SecurityMiddleware) RequireApplicantID(c *gin.Context) {
	if err := sm.ValidateApplicantID(c.Param("id")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		c.Abort()
		return
	}
	c.Next()
}

// SecurityHeaders adds security headers to responses
func (sm *SecurityMiddleware) SecurityHeaders(c *gin.Context) {
	// Prevent MIME type sniffing
	c.Header("X-Content-Type-Options", "nosniff")

	// Prevent clickjacking
	c.Header("X-Frame-Options", "DENY")

	// XSS protection
	c.Header("X-XSS-Protection", "1; mode=block")

	// HSTS (HTTP Strict Transport Security) - only in production
	if c.Request.TLS != nil {
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	}

	// API responses only, no inline anything
	c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

	// Referrer Policy
	c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

	// Permissions Policy for camera/microphone (not needed)
	c.Header("Permissions-Policy", "camera=(), microphone=()")

	c.Next()
}

// ValidateContentType validates request content type
func (sm *SecurityMiddleware) ValidateContentType(c *gin.Context) {
	if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut {
		c.Next()
		return
	}

	contentType := c.GetHeader("Content-Type")
	if contentType != "" && !strings.Contains(strings.ToLower(contentType), "application/json") {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{
			"error": "unsupported content type",
		})
		c.Abort()
		return
	}

	c.Next()
}

// LimitBodySize caps the request body to protect the JSON decoder
func (sm *SecurityMiddleware) LimitBodySize(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, sm.config.MaxBodyBytes)
	c.Next()
}

// RequestTimeout enforces request timeout
func (sm *SecurityMiddleware) RequestTimeout(c *gin.Context) {
	// Create a timeout context
	ctx, cancel := context.WithTimeout(c.Request.Context(), sm.config.RequestTimeout)
	defer cancel()

	// Replace request context
	c.Request = c.Request.WithContext(ctx)

	// Set timeout header for client
	c.Header("X-Timeout", strconv.Itoa(int(sm.config.RequestTimeout.Seconds())))

	c.Next()
}
