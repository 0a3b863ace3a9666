package logger

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tastyware/tastytrade/src/models"
)

// -----------------------------------------------------------------------------

// Logger provides component-scoped logging on a shared zap core.
type Logger struct {
	name  string
	sugar *zap.SugaredLogger
}

var (
	mu    sync.Mutex
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	root  = newRoot("")
)

// -----------------------------------------------------------------------------

// NewLogger creates a new Logger instance scoped to a component name. The
// first caller to pass a non-nil config applies its logging section (level,
// optional JSON file sink) to the shared core.
func NewLogger(config *models.MConfig, name string) *Logger {
	if config != nil {
		Configure(config.Logging)
	}
	mu.Lock()
	defer mu.Unlock()
	return &Logger{
		name:  name,
		sugar: root.Named(name).Sugar(),
	}
}

// -----------------------------------------------------------------------------

// Configure rebuilds the shared core from the logging config. Idempotent;
// safe to call at any time.
func Configure(cfg models.MLoggingConfig) {
	mu.Lock()
	defer mu.Unlock()
	if cfg.Level != "" {
		level.SetLevel(parseLevel(cfg.Level))
	}
	if cfg.File != "" {
		root = newRoot(cfg.File)
	}
}

// -----------------------------------------------------------------------------

// SetLevel changes the minimum level at runtime ("debug", "info", "warning",
// "error").
func SetLevel(name string) {
	level.SetLevel(parseLevel(name))
}

// -----------------------------------------------------------------------------

// Zap exposes the underlying zap logger for middleware that wants it
// directly (the relay's HTTP logging).
func (l *Logger) Zap() *zap.Logger {
	return l.sugar.Desugar()
}

// -----------------------------------------------------------------------------

// Debug logs debug messages
func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// -----------------------------------------------------------------------------

// Warning logs warning messages
func (l *Logger) Warning(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// -----------------------------------------------------------------------------

// Info logs informational messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// -----------------------------------------------------------------------------

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// -----------------------------------------------------------------------------

// Critical logs critical errors and exits the application
func (l *Logger) Critical(format string, args ...interface{}) {
	l.sugar.Fatalf(format, args...)
}

// -----------------------------------------------------------------------------

func newRoot(file string) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stdout), level),
	}
	if file != "" {
		if f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
			cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.Lock(f), level))
		}
	}
	return zap.New(zapcore.NewTee(cores...))
}

// -----------------------------------------------------------------------------

func parseLevel(name string) zapcore.Level {
	switch strings.ToLower(name) {
	case "debug":
		return zapcore.DebugLevel
	case "warning", "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
