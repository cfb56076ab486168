package utils

import (
	"context"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey string

const requestIDKey ctxKey = "request_id"

var logger atomic.Pointer[zap.Logger]

func init() {
	logger.Store(zap.NewNop())
}

// NewLogger builds the process logger: JSON to stdout, ISO8601 "timestamp" key.
func NewLogger(app, level string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.InitialFields = map[string]interface{}{"app": app}
	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if lvl, err := zapcore.ParseLevel(strings.TrimSpace(level)); err == nil && level != "" {
		config.Level = zap.NewAtomicLevelAt(lvl)
	}
	return config.Build()
}

// SetLogger replaces the logger used by LogEvent. nil restores the no-op logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger.Store(l)
}

func Logger() *zap.Logger {
	return logger.Load()
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func RequestIDFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// LogEvent writes a standardized line with module/action/request_id.
// Avoid logging sensitive payload; kv should be summarized ids and counters.
func LogEvent(ctx context.Context, module, action, message string, kv ...any) {
	fields := []any{
		"module", strings.ToLower(module),
		"action", action,
	}
	if req := strings.TrimSpace(RequestIDFrom(ctx)); req != "" {
		fields = append(fields, "request_id", req)
	}
	Logger().Sugar().Infow(message, append(fields, kv...)...)
}

// LogError is LogEvent at error level.
func LogError(ctx context.Context, module, action string, err error, kv ...any) {
	fields := []any{
		"module", strings.ToLower(module),
		"action", action,
		"error", err,
	}
	if req := strings.TrimSpace(RequestIDFrom(ctx)); req != "" {
		fields = append(fields, "request_id", req)
	}
	Logger().Sugar().Errorw("operation failed", append(fields, kv...)...)
}
