// Package audit writes audit-trail log lines. Each line carries the event name,
// log_type=audit and the request id so security reviews can grep one stream.
package audit

import (
	"context"
	"log/slog"

	"streak/pkg/requestcontext"
)

// Logger tags slog records as audit entries.
type Logger struct {
	logger *slog.Logger
}

// NewLogger wraps logger. A nil logger makes every call a no-op.
func NewLogger(logger *slog.Logger) *Logger {
	return &Logger{logger: logger}
}

// Log records a routine audit event at INFO.
//
//	audit.Log(ctx, "challenge_created", "tenant_id", tenantID, "challenge_id", challengeID)
func (l *Logger) Log(ctx context.Context, event string, attributes ...any) {
	l.log(ctx, slog.LevelInfo, event, attributes)
}

// Warn records an audit event that needs operator attention, such as an
// identity moving between tenants.
func (l *Logger) Warn(ctx context.Context, event string, attributes ...any) {
	l.log(ctx, slog.LevelWarn, event, attributes)
}

func (l *Logger) log(ctx context.Context, level slog.Level, event string, attributes []any) {
	if l == nil || l.logger == nil {
		return
	}
	args := make([]any, 0, len(attributes)+6)
	args = append(args, attributes...)
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		args = append(args, "request_id", requestID)
	}
	args = append(args, "event", event, "log_type", "audit")
	l.logger.Log(ctx, level, event, args...)
}
