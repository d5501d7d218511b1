// Package logging carries request-scoped values (trace ID, user, role) and a
// request logger that folds them into every entry.
package logging

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/flexcrow/escrowctl/pkg/logger"
)

type contextKey string

const (
	TraceIDKey contextKey = "trace_id"
	UserIDKey  contextKey = "user_id"
	RoleKey    contextKey = "role"
)

// TraceHeader is the header used to propagate trace IDs.
const TraceHeader = "X-Trace-ID"

// Logger is a request-aware logger.
type Logger struct {
	*logger.Logger
}

// New creates a request logger for a named component.
func New(component, level, format string) *Logger {
	base, err := logger.New(logger.LoggingConfig{Level: level, Format: format})
	if err != nil {
		base = logger.NewDefault(component)
	}
	return &Logger{Logger: base.Named(component)}
}

// Wrap adapts an existing component logger.
func Wrap(l *logger.Logger) *Logger {
	if l == nil {
		l = logger.NewDefault("http")
	}
	return &Logger{Logger: l}
}

// WithContext returns an entry populated from context values.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	fields := logrus.Fields{}
	if id := GetTraceID(ctx); id != "" {
		fields["trace_id"] = id
	}
	if id := GetUserID(ctx); id != "" {
		fields["user_id"] = id
	}
	if role := GetRole(ctx); role != "" {
		fields["role"] = role
	}
	return l.WithFields(fields)
}

// LogRequest logs one served request.
func (l *Logger) LogRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"method":      method,
		"path":        path,
		"status":      status,
		"duration_ms": duration.Milliseconds(),
	})
	if status >= 500 {
		entry.Warn("request failed")
		return
	}
	entry.Debug("request served")
}

// LogSecurityEvent records auth and throttling events.
func (l *Logger) LogSecurityEvent(ctx context.Context, event string, fields map[string]interface{}) {
	l.WithContext(ctx).WithFields(fields).WithField("event", event).Warn("security event")
}

func NewTraceID() string { return uuid.NewString() }

func WithTraceID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, TraceIDKey, id)
}

func GetTraceID(ctx context.Context) string {
	v, _ := ctx.Value(TraceIDKey).(string)
	return v
}

func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, UserIDKey, id)
}

func GetUserID(ctx context.Context) string {
	v, _ := ctx.Value(UserIDKey).(string)
	return v
}

func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, RoleKey, role)
}

func GetRole(ctx context.Context) string {
	v, _ := ctx.Value(RoleKey).(string)
	return v
}
