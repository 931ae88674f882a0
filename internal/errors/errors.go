package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/gin-gonic/gin"
)

// ErrorCategory defines the type of error for proper handling
type ErrorCategory string

const (
	CategoryValidation       ErrorCategory = "validation"
	CategoryInsufficientData ErrorCategory = "insufficient_data"
	CategoryModel            ErrorCategory = "model"
	CategoryExplanation      ErrorCategory = "explanation"
	CategoryConfiguration    ErrorCategory = "configuration"
	CategoryStorage          ErrorCategory = "storage"
	CategoryTimeout          ErrorCategory = "timeout"
	CategoryRateLimit        ErrorCategory = "rate_limit"
	CategoryInternal         ErrorCategory = "internal"
)

// AppError wraps errbuilder error with category and transport context.
// Only validation errors cross the engine boundary as hard failures; model
// and explanation failures are caught internally and degrade to flagged
// fallback results.
type AppError struct {
	*errbuilder.ErrBuilder
	Category   ErrorCategory `json:"category"`
	HTTPStatus int           `json:"http_status"`
	Timestamp  time.Time     `json:"timestamp"`
	StackTrace string        `json:"stack_trace,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	codeStr := "UNKNOWN_ERROR"
	switch e.ErrBuilder.ErrCode() {
	case errbuilder.CodeInvalidArgument:
		codeStr = "VALIDATION_ERROR"
	case errbuilder.CodeFailedPrecondition:
		codeStr = "CONFIGURATION_ERROR"
	case errbuilder.CodeInternal:
		codeStr = "INTERNAL_ERROR"
	case errbuilder.CodeDeadlineExceeded:
		codeStr = "TIMEOUT_ERROR"
	case errbuilder.CodeResourceExhausted:
		codeStr = "RATE_LIMIT_EXCEEDED"
	case errbuilder.CodeUnavailable:
		codeStr = "STORAGE_ERROR"
	}
	return fmt.Sprintf("[%s] %s", codeStr, e.ErrBuilder.Msg)
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.ErrBuilder.Unwrap()
}

// MarshalJSON serializes the error for transport. The embedded builder's own
// marshaler dereferences Cause unconditionally, but validation errors usually
// carry none, and embedding would also hide Category and HTTPStatus from the
// response body.
func (e *AppError) MarshalJSON() ([]byte, error) {
	payload := map[string]interface{}{
		"code":        e.ErrBuilder.Code,
		"message":     e.ErrBuilder.Msg,
		"details":     e.ErrBuilder.Details,
		"category":    e.Category,
		"http_status": e.HTTPStatus,
		"timestamp":   e.Timestamp,
	}

	if e.ErrBuilder.Cause != nil {
		payload["cause"] = e.ErrBuilder.Cause.Error()
	}
	if e.StackTrace != "" {
		payload["stack_trace"] = e.StackTrace
	}

	return json.Marshal(payload)
}

// NewAppError creates an AppError from errbuilder with additional context
func NewAppError(builder *errbuilder.ErrBuilder, category ErrorCategory, httpStatus int) *AppError {
	return &AppError{
		ErrBuilder: builder,
		Category:   category,
		HTTPStatus: httpStatus,
		Timestamp:  time.Now(),
	}
}

// NewValidationError creates a validation error using errbuilder
func NewValidationError(message string, details ...interface{}) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(message)

	if len(details) > 0 {
		errorMap := errbuilder.ErrorMap{}
		errorMap.Set("validation_details", fmt.Errorf("%v", details[0]))
		builder = builder.WithDetails(errbuilder.NewErrDetails(errorMap))
	}

	return NewAppError(builder, CategoryValidation, http.StatusBadRequest)
}

// NewModelError creates an inference-layer error. It never propagates raw to
// the caller; the engine catches it and falls back to rule-based scoring.
func NewModelError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg(message)

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return NewAppError(builder, CategoryModel, http.StatusInternalServerError)
}

// NewExplanationError creates an attribution-layer error. The engine catches
// it and emits the heuristic fallback explanation with a degraded flag.
func NewExplanationError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg(message)

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return NewAppError(builder, CategoryExplanation, http.StatusInternalServerError)
}

// NewConfigurationError creates a configuration error using errbuilder
func NewConfigurationError(message string, cause error) *AppError {
	errorMap := errbuilder.ErrorMap{}
	errorMap.Set("config_details", errors.New(message))

	builder := errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg("Configuration error").
		WithDetails(errbuilder.NewErrDetails(errorMap))

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return NewAppError(builder, CategoryConfiguration, http.StatusInternalServerError)
}

// NewStorageError creates a persistence-layer error
func NewStorageError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeUnavailable).
		WithMsg(message)

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return NewAppError(builder, CategoryStorage, http.StatusServiceUnavailable)
}

// NewRateLimitError creates a rate limit error using errbuilder
func NewRateLimitError(retryAfter string) *AppError {
	errorMap := errbuilder.ErrorMap{}
	errorMap.Set("retry_after", errors.New(retryAfter))

	builder := errbuilder.New().
		WithCode(errbuilder.CodeResourceExhausted).
		WithMsg("Rate limit exceeded").
		WithDetails(errbuilder.NewErrDetails(errorMap))

	return NewAppError(builder, CategoryRateLimit, http.StatusTooManyRequests)
}

// NewInternalError creates an internal server error using errbuilder
func NewInternalError(message string, cause error) *AppError {
	errorMap := errbuilder.ErrorMap{}
	errorMap.Set("internal_details", errors.New(message))

	builder := errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg("Internal server error").
		WithDetails(errbuilder.NewErrDetails(errorMap))

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	appErr := NewAppError(builder, CategoryInternal, http.StatusInternalServerError)

	if gin.Mode() == gin.DebugMode || gin.Mode() == gin.TestMode {
		appErr.StackTrace = captureStackTrace()
	}

	return appErr
}

// IsCategory reports whether err is an AppError of the given category.
func IsCategory(err error, category ErrorCategory) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Category == category
	}
	return false
}

// captureStackTrace captures a stack trace for debugging
func captureStackTrace() string {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// ErrorHandler is a Gin middleware that provides centralized error handling
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last().Err
			appErr := ToAppError(err)
			LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}
	}
}

// RecoveryHandler provides panic recovery with structured error responses
func RecoveryHandler() gin.HandlerFunc {
	return gin.RecoveryWithWriter(nil, func(c *gin.Context, err interface{}) {
		appErr := NewInternalError(
			fmt.Sprintf("Panic recovered: %v", err),
			fmt.Errorf("%v", err),
		)
		appErr.StackTrace = captureStackTrace()

		LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
	})
}

// ToAppError converts any error to an AppError
func ToAppError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	if ebErr, ok := err.(*errbuilder.ErrBuilder); ok {
		return NewAppError(ebErr, CategoryInternal, http.StatusInternalServerError)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		builder := errbuilder.New().
			WithCode(errbuilder.CodeDeadlineExceeded).
			WithMsg("Request deadline exceeded").
			WithCause(err)
		return NewAppError(builder, CategoryTimeout, http.StatusGatewayTimeout)
	}

	return NewInternalError("An unexpected error occurred", err)
}

// LogError logs an error with appropriate level and context
func LogError(c *gin.Context, err *AppError) {
	ip := c.ClientIP()
	method := c.Request.Method
	path := c.Request.URL.Path
	requestID := c.GetHeader("X-Request-ID")

	errorCode := err.ErrBuilder.ErrCode()
	errorMsg := err.ErrBuilder.Msg
	errorDetails := err.ErrBuilder.Details

	logEntry := slog.With(
		"error_category", err.Category,
		"error_code", errorCode,
		"http_status", err.HTTPStatus,
		"ip", ip,
		"method", method,
		"path", path,
		"request_id", requestID,
	)

	switch err.Category {
	case CategoryValidation, CategoryRateLimit, CategoryInsufficientData:
		if len(errorDetails.Errors) > 0 {
			logEntry.Warn(errorMsg, "details", errorDetails.Errors)
		} else {
			logEntry.Warn(errorMsg)
		}
	case CategoryModel, CategoryExplanation:
		// degraded-path errors: logged, result falls back, caller still
		// receives a complete response
		if cause := err.ErrBuilder.Unwrap(); cause != nil {
			logEntry.Warn(errorMsg, "cause", cause)
		} else {
			logEntry.Warn(errorMsg)
		}
	default:
		if cause := err.ErrBuilder.Unwrap(); cause != nil {
			logEntry.Error(errorMsg, "cause", cause)
		} else {
			logEntry.Error(errorMsg)
		}
	}

	if err.StackTrace != "" && (gin.Mode() == gin.DebugMode || gin.Mode() == gin.TestMode) {
		logEntry.Debug("stack_trace", "trace", err.StackTrace)
	}
}

// WrapError wraps an error with additional context
func WrapError(err error, message string, args ...interface{}) error {
	if err == nil {
		return nil
	}

	contextMsg := fmt.Sprintf(message, args...)
	return fmt.Errorf("%s: %w", contextMsg, err)
}

// SafeClose safely closes a resource and logs any errors
func SafeClose(closer interface{ Close() error }, resourceName string) {
	if closer == nil {
		return
	}

	if err := closer.Close(); err != nil {
		slog.Warn("Failed to close resource",
			"resource", resourceName,
			"error", err)
	}
}
