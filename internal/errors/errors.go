package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/gin-gonic/gin"
)

// ErrorCategory groups errors by how the service reacts to them
type ErrorCategory string

const (
	CategoryValidation    ErrorCategory = "validation"
	CategoryNotFound      ErrorCategory = "not_found"
	CategoryNetwork       ErrorCategory = "network"
	CategoryTimeout       ErrorCategory = "timeout"
	CategoryRateLimit     ErrorCategory = "rate_limit"
	CategoryInternal      ErrorCategory = "internal"
	CategoryExternalAPI   ErrorCategory = "external_api"
	CategoryConfiguration ErrorCategory = "configuration"
)

// AppError is an errbuilder error plus the transport details the API renders
type AppError struct {
	*errbuilder.ErrBuilder
	Category   ErrorCategory `json:"category"`
	HTTPStatus int           `json:"http_status"`
	Timestamp  time.Time     `json:"timestamp"`
	RequestID  string        `json:"request_id,omitempty"`
	StackTrace string        `json:"stack_trace,omitempty"`

	details map[string]string
}

type errorBody struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Category   ErrorCategory     `json:"category"`
	HTTPStatus int               `json:"http_status"`
	Timestamp  time.Time         `json:"timestamp"`
	RequestID  string            `json:"request_id,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
	Cause      string            `json:"cause,omitempty"`
	StackTrace string            `json:"stack_trace,omitempty"`
}

// MarshalJSON renders the client-facing error body. Stack traces, and the
// details and cause of internal and configuration errors, are only shown in
// debug and test modes.
func (e AppError) MarshalJSON() ([]byte, error) {
	body := errorBody{
		Category:   e.Category,
		HTTPStatus: e.HTTPStatus,
		Timestamp:  e.Timestamp,
		RequestID:  e.RequestID,
	}
	if verbose() {
		body.StackTrace = e.StackTrace
	}
	if e.ErrBuilder != nil {
		body.Code = e.codeName()
		body.Message = e.ErrBuilder.Msg
	}

	public := e.Category != CategoryInternal && e.Category != CategoryConfiguration
	if public || verbose() {
		body.Details = e.details
		if cause := e.cause(); cause != nil {
			body.Cause = cause.Error()
		}
	}
	return json.Marshal(body)
}

func (e *AppError) cause() error {
	if e.ErrBuilder == nil {
		return nil
	}
	return e.ErrBuilder.Unwrap()
}

func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.codeName(), e.ErrBuilder.Msg)
}

func (e *AppError) codeName() string {
	switch e.ErrBuilder.ErrCode() {
	case errbuilder.CodeInvalidArgument:
		return "VALIDATION_ERROR"
	case errbuilder.CodeNotFound:
		return "NOT_FOUND"
	case errbuilder.CodeUnavailable:
		return "NETWORK_ERROR"
	case errbuilder.CodeDeadlineExceeded:
		return "TIMEOUT_ERROR"
	case errbuilder.CodeResourceExhausted:
		return "RATE_LIMIT_EXCEEDED"
	case errbuilder.CodeInternal:
		return "INTERNAL_ERROR"
	case errbuilder.CodeFailedPrecondition:
		return "CONFIGURATION_ERROR"
	default:
		return "UNKNOWN_ERROR"
	}
}

func (e *AppError) Unwrap() error {
	return e.cause()
}

// NewAppError attaches category and status to an errbuilder error
func NewAppError(builder *errbuilder.ErrBuilder, category ErrorCategory, httpStatus int) *AppError {
	return &AppError{
		ErrBuilder: builder,
		Category:   category,
		HTTPStatus: httpStatus,
		Timestamp:  time.Now(),
	}
}

// detail is one key/value attached to the errbuilder details map
type detail struct{ key, value string }

// newError builds the errbuilder error and keeps a plain copy of the details
// for rendering.
func newError(b *errbuilder.ErrBuilder, category ErrorCategory, status int, cause error, details ...detail) *AppError {
	var rendered map[string]string
	if len(details) > 0 {
		m := errbuilder.ErrorMap{}
		rendered = make(map[string]string, len(details))
		for _, d := range details {
			m.Set(d.key, errors.New(d.value))
			rendered[d.key] = d.value
		}
		b = b.WithDetails(errbuilder.NewErrDetails(m))
	}
	if cause != nil {
		b = b.WithCause(cause)
	}
	appErr := NewAppError(b, category, status)
	appErr.details = rendered
	return appErr
}

// NewValidationError reports bad client input. The first detail, if any, is
// attached under validation_details.
func NewValidationError(message string, details ...interface{}) *AppError {
	var ds []detail
	if len(details) > 0 {
		if s := fmt.Sprint(details[0]); s != "" {
			ds = append(ds, detail{"validation_details", s})
		}
	}
	return newError(errbuilder.New().WithCode(errbuilder.CodeInvalidArgument).WithMsg(message),
		CategoryValidation, http.StatusBadRequest, nil, ds...)
}

// NewNotFoundError reports a missing resource
func NewNotFoundError(resource, id string) *AppError {
	return newError(errbuilder.New().WithCode(errbuilder.CodeNotFound).WithMsg(resource+" not found"),
		CategoryNotFound, http.StatusNotFound, nil, detail{"id", id})
}

func NewNetworkError(message string, cause error) *AppError {
	return newError(errbuilder.New().WithCode(errbuilder.CodeUnavailable).WithMsg(message),
		CategoryNetwork, http.StatusBadGateway, cause)
}

func NewTimeoutError(message string, cause error) *AppError {
	return newError(errbuilder.New().WithCode(errbuilder.CodeDeadlineExceeded).WithMsg(message),
		CategoryTimeout, http.StatusGatewayTimeout, cause)
}

// NewRateLimitError tells the client when it may retry
func NewRateLimitError(retryAfter string) *AppError {
	return newError(errbuilder.New().WithCode(errbuilder.CodeResourceExhausted).WithMsg("Rate limit exceeded"),
		CategoryRateLimit, http.StatusTooManyRequests, nil, detail{"retry_after", retryAfter})
}

// NewExternalAPIError wraps a failed collaborator call
func NewExternalAPIError(apiName string, cause error) *AppError {
	return newError(errbuilder.New().WithCode(errbuilder.CodeUnavailable).WithMsg(apiName+" API error"),
		CategoryExternalAPI, http.StatusBadGateway, cause, detail{"api_name", apiName})
}

// NewInternalError hides the message from clients behind a generic one and
// keeps it in the details. Debug and test modes capture a stack trace.
func NewInternalError(message string, cause error) *AppError {
	appErr := newError(errbuilder.New().WithCode(errbuilder.CodeInternal).WithMsg("Internal server error"),
		CategoryInternal, http.StatusInternalServerError, cause, detail{"internal_details", message})
	if verbose() {
		appErr.StackTrace = captureStackTrace()
	}
	return appErr
}

func NewConfigurationError(message string, cause error) *AppError {
	return newError(errbuilder.New().WithCode(errbuilder.CodeFailedPrecondition).WithMsg("Configuration error"),
		CategoryConfiguration, http.StatusInternalServerError, cause, detail{"config_details", message})
}

func verbose() bool {
	return gin.Mode() == gin.DebugMode || gin.Mode() == gin.TestMode
}

func captureStackTrace() string {
	buf := make([]byte, 4096)
	return string(buf[:runtime.Stack(buf, false)])
}

// ErrorHandler renders the last error a handler attached to the context
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		appErr := ToAppError(c.Errors.Last().Err)
		if appErr.RequestID == "" {
			appErr.RequestID = c.GetString("request_id")
		}
		LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
	}
}

// RecoveryHandler turns panics into internal AppErrors
func RecoveryHandler() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		cause := fmt.Errorf("%v", recovered)
		appErr := NewInternalError("panic recovered: "+cause.Error(), cause)
		appErr.StackTrace = captureStackTrace()
		appErr.RequestID = c.GetString("request_id")

		LogError(c, appErr)
		c.AbortWithStatusJSON(appErr.HTTPStatus, appErr)
	})
}

var networkFailures = []string{"connection refused", "no such host", "network is unreachable", "connection reset"}

// ToAppError classifies any error. Plain errors are matched on context
// sentinels first, then on well-known network failure text.
func ToAppError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var eb *errbuilder.ErrBuilder
	if errors.As(err, &eb) {
		return NewAppError(eb, CategoryInternal, http.StatusInternalServerError)
	}

	switch {
	case errors.Is(err, context.Canceled):
		return NewTimeoutError("Request cancelled", err)
	case errors.Is(err, context.DeadlineExceeded):
		return NewTimeoutError("Request deadline exceeded", err)
	}

	msg := err.Error()
	for _, s := range networkFailures {
		if strings.Contains(msg, s) {
			return NewNetworkError("Network connection failed", err)
		}
	}
	if strings.Contains(msg, "timeout") {
		return NewTimeoutError("Request timeout", err)
	}
	return NewInternalError("An unexpected error occurred", err)
}

// LogError logs client-caused errors at warn, upstream failures at info and
// everything else at error.
func LogError(c *gin.Context, err *AppError) {
	logger := slog.With(
		"error_category", err.Category,
		"error_code", err.ErrBuilder.ErrCode(),
		"http_status", err.HTTPStatus,
		"ip", c.ClientIP(),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"request_id", c.GetString("request_id"),
	)

	var extra []any
	if cause := err.cause(); cause != nil {
		extra = append(extra, "cause", cause)
	}
	if len(err.details) > 0 {
		extra = append(extra, "details", err.details)
	}

	msg := err.ErrBuilder.Msg
	switch err.Category {
	case CategoryValidation, CategoryRateLimit, CategoryNotFound:
		logger.Warn(msg, extra...)
	case CategoryNetwork, CategoryTimeout, CategoryExternalAPI:
		logger.Info(msg, extra...)
	default:
		logger.Error(msg, extra...)
	}

	if err.StackTrace != "" && verbose() {
		logger.Debug("stack_trace", "trace", err.StackTrace)
	}
}

// IsRetryableError reports whether a retry could succeed
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	switch ToAppError(err).Category {
	case CategoryNetwork, CategoryTimeout, CategoryExternalAPI, CategoryRateLimit:
		return true
	default:
		return false
	}
}

// SafeClose closes a resource and logs any error
func SafeClose(closer interface{ Close() error }, resourceName string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		slog.Warn("Failed to close resource", "resource", resourceName, "error", err)
	}
}
