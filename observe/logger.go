package observe

import (
	"context"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ParseLevel parses a string log level, defaulting to info.
func ParseLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// zapLogger adapts a zap logger to the Logger interface.
type zapLogger struct {
	base *zap.Logger
}

// NewLogger creates a JSON structured logger at the given level, writing to
// stderr.
func NewLogger(level string) Logger {
	return NewLoggerWithWriter(level, os.Stderr)
}

// NewLoggerWithWriter creates a structured logger with a custom writer.
func NewLoggerWithWriter(level string, w io.Writer) Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.AddSync(w),
		ParseLevel(level),
	)
	return &zapLogger{base: zap.New(core)}
}

// NopLogger returns a logger that discards everything.
func NopLogger() Logger {
	return &zapLogger{base: zap.NewNop()}
}

func (l *zapLogger) Info(_ context.Context, msg string, fields ...Field) {
	l.base.Info(msg, zapFields(fields)...)
}

func (l *zapLogger) Warn(_ context.Context, msg string, fields ...Field) {
	l.base.Warn(msg, zapFields(fields)...)
}

func (l *zapLogger) Error(_ context.Context, msg string, fields ...Field) {
	l.base.Error(msg, zapFields(fields)...)
}

func (l *zapLogger) Debug(_ context.Context, msg string, fields ...Field) {
	l.base.Debug(msg, zapFields(fields)...)
}

// WithScope returns a logger that attaches the owning scope to every entry.
// Scope values are identifiers, not secrets, so they are safe to log.
func (l *zapLogger) WithScope(scope string) Logger {
	return &zapLogger{base: l.base.With(zap.String("scope", scope))}
}

func zapFields(fields []Field) []zap.Field {
	zf := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		if redactedFieldKeys[f.Key] {
			zf = append(zf, zap.String(f.Key, "[REDACTED]"))
			continue
		}
		zf = append(zf, zap.Any(f.Key, f.Value))
	}
	return zf
}

// redactedFieldKeys lists field keys that are automatically redacted in
// logs. These may carry credentials or raw user payloads.
var redactedFieldKeys = map[string]bool{
	"password":   true,
	"secret":     true,
	"token":      true,
	"api_key":    true,
	"apiKey":     true,
	"credential": true,
	"payload":    true,
}

// Ensure zapLogger implements Logger
var _ Logger = (*zapLogger)(nil)
