package monitoring

import (
	"log/slog"
	"os"
	"time"
)

// Logger provides enhanced structured logging with context
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new enhanced logger
func NewLogger() *Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     slog.LevelInfo,
		AddSource: true,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Add timestamp in RFC3339 format
			if a.Key == slog.TimeKey {
				return slog.Attr{
					Key:   "timestamp",
					Value: slog.StringValue(a.Value.Time().Format(time.RFC3339)),
				}
			}
			return a
		},
	})

	return &Logger{
		Logger: slog.New(handler),
	}
}

// RequestLogger logs HTTP request details
func (l *Logger) RequestLogger(method, path, ip, userAgent string, statusCode int, duration time.Duration) {
	l.Info("HTTP Request",
		"method", method,
		"path", path,
		"ip", ip,
		"user_agent", userAgent,
		"status_code", statusCode,
		"duration_ms", duration.Milliseconds(),
	)
}

// AssessmentLogger logs one completed assessment
func (l *Logger) AssessmentLogger(applicantID, category string, pd, trust, obscurity float64, fallback bool, duration time.Duration) {
	l.Info("Assessment Completed",
		"applicant_id", applicantID,
		"category", category,
		"probability_of_default", pd,
		"overall_trust", trust,
		"obscurity_index", obscurity,
		"fallback", fallback,
		"duration_ms", duration.Milliseconds(),
	)
}

// ActionLogger logs a recorded gamification action
func (l *Logger) ActionLogger(applicantID, action string, credits int64, trustBar float64, level int) {
	l.Info("Action Recorded",
		"applicant_id", applicantID,
		"action", action,
		"credits", credits,
		"trust_bar", trustBar,
		"level", level,
	)
}

// RetrainLogger logs a model retrain
func (l *Logger) RetrainLogger(version string, auc, accuracy float64, duration time.Duration) {
	l.Info("Model Retrained",
		"version", version,
		"auc", auc,
		"accuracy", accuracy,
		"duration_ms", duration.Milliseconds(),
	)
}

// APIErrorLogger logs API errors with context
func (l *Logger) APIErrorLogger(err error, method, path, ip string, statusCode int) {
	l.Error("API Error",
		"error", err.Error(),
		"method", method,
		"path", path,
		"ip", ip,
		"status_code", statusCode,
	)
}

// CacheLogger logs cache operations
func (l *Logger) CacheLogger(operation, key string, hit bool, itemCount int) {
	l.Debug("Cache Operation",
		"operation", operation,
		"key_hash", key[:8]+"...",
		"hit", hit,
		"cache_size", itemCount,
	)
}

// SystemLogger logs system-level events
func (l *Logger) SystemLogger(event, details string) {
	l.Info("System Event",
		"event", event,
		"details", details,
		"uptime", time.Since(startTime).String(),
	)
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level slog.Level) {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
	})
	l.Logger = slog.New(handler)
}

var startTime = time.Now()
