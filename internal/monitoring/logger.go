package monitoring

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger provides structured logging with domain helpers
type Logger struct {
	*slog.Logger
}

// NewLogger creates a JSON logger on stdout
func NewLogger(level slog.Level) *Logger {
	return NewLoggerWithWriter(os.Stdout, level)
}

// NewLoggerWithWriter creates a JSON logger writing to w
func NewLoggerWithWriter(w io.Writer, level slog.Level) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
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

// ParseLevel maps a config string to a slog level, defaulting to info
func ParseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// RequestLog is one served HTTP request
type RequestLog struct {
	Method    string
	Route     string
	Path      string
	IP        string
	UserAgent string
	RequestID string
	Status    int
	Duration  time.Duration
	Errors    []string
}

// LogRequest logs a served request. Server errors log at error level and
// client errors at warn.
func (l *Logger) LogRequest(ctx context.Context, r RequestLog) {
	level := slog.LevelInfo
	switch {
	case r.Status >= 500:
		level = slog.LevelError
	case r.Status >= 400:
		level = slog.LevelWarn
	}

	attrs := []slog.Attr{
		slog.String("method", r.Method),
		slog.String("route", r.Route),
		slog.String("path", r.Path),
		slog.String("ip", r.IP),
		slog.String("user_agent", r.UserAgent),
		slog.String("request_id", r.RequestID),
		slog.Int("status_code", r.Status),
		slog.Int64("duration_ms", r.Duration.Milliseconds()),
	}
	if len(r.Errors) > 0 {
		attrs = append(attrs, slog.Any("errors", r.Errors))
	}
	l.LogAttrs(ctx, level, "HTTP Request", attrs...)
}

// AnalysisLogger logs a completed decision
func (l *Logger) AnalysisLogger(requestID, dataSource string, riskScore float64, riskLevel, recommendation, method string, duration time.Duration) {
	l.Info("Analysis Completed",
		"request_id", requestID,
		"data_source", dataSource,
		"risk_score", riskScore,
		"risk_level", riskLevel,
		"recommendation", recommendation,
		"explanation_method", method,
		"duration_ms", duration.Milliseconds(),
	)
}

// ExternalAPILogger logs a collaborator call
func (l *Logger) ExternalAPILogger(apiName, operation string, duration time.Duration, err error) {
	level := slog.LevelInfo
	attrs := []any{
		"api_name", apiName,
		"operation", operation,
		"duration_ms", duration.Milliseconds(),
		"success", err == nil,
	}
	if err != nil {
		level = slog.LevelWarn
		attrs = append(attrs, "error", err.Error())
	}

	l.Log(context.Background(), level, "External API Call", attrs...)
}

// FallbackLogger logs a degraded path taken instead of a failed collaborator
func (l *Logger) FallbackLogger(component, fallback, reason string) {
	l.Warn("Fallback Engaged",
		"component", component,
		"fallback", fallback,
		"reason", reason,
	)
}

// PerformanceLogger logs performance metrics
func (l *Logger) PerformanceLogger(metric string, value float64, unit string) {
	l.Info("Performance Metric",
		"metric", metric,
		"value", value,
		"unit", unit,
	)
}
