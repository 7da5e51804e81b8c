package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a thin key/value wrapper over a zap SugaredLogger.
type Logger struct {
	sugar *zap.SugaredLogger
}

// New builds a logger for the given mode ("production" or anything else for
// development) and level ("debug", "info", "warn", "error").
func New(mode, level string) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}

	lvl := zapcore.InfoLevel
	if strings.TrimSpace(level) != "" {
		if err := lvl.Set(strings.ToLower(level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{sugar: z.Sugar()}, nil
}

// Nop returns a logger that discards everything. Used by tests.
func Nop() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar()}
}

// FromZap wraps an existing zap logger.
func FromZap(z *zap.Logger) *Logger {
	return &Logger{sugar: z.Sugar()}
}

func (l *Logger) Sync() {
	_ = l.sugar.Sync()
}

func (l *Logger) Debug(msg string, kv ...interface{}) { l.sugar.Debugw(msg, redact(kv)...) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.sugar.Infow(msg, redact(kv)...) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.sugar.Warnw(msg, redact(kv)...) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.sugar.Errorw(msg, redact(kv)...) }
func (l *Logger) Fatal(msg string, kv ...interface{}) { l.sugar.Fatalw(msg, redact(kv)...) }

// With returns a child logger carrying the given fields on every entry.
func (l *Logger) With(kv ...interface{}) *Logger {
	return &Logger{sugar: l.sugar.With(redact(kv)...)}
}

// Zap exposes the underlying structured logger.
func (l *Logger) Zap() *zap.Logger {
	return l.sugar.Desugar()
}

// redact masks values whose key names a credential.
func redact(kv []interface{}) []interface{} {
	if len(kv) < 2 {
		return kv
	}
	out := make([]interface{}, len(kv))
	copy(out, kv)
	for i := 0; i+1 < len(out); i += 2 {
		key, ok := out[i].(string)
		if !ok {
			continue
		}
		if isSecretKey(key) {
			out[i+1] = "[REDACTED]"
		}
	}
	return out
}

func isSecretKey(key string) bool {
	k := strings.ToLower(key)
	for _, needle := range []string{"api_key", "apikey", "secret", "password", "token", "authorization"} {
		if strings.Contains(k, needle) {
			return true
		}
	}
	return false
}
