// Package log provides the process-wide structured logger for ota.
//
// Call sites use a key/value style:
//
//	holonlog.Info("ensured branch", "branch", name, "created", created)
//
// Output goes to stderr so that stdout stays reserved for command results
// (human summaries and --json payloads).
package log

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

var (
	mu    sync.RWMutex
	base  *zap.Logger
	sugar *zap.SugaredLogger
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

func init() {
	base = newLogger(level)
	sugar = base.Sugar()
}

// ParseLevel maps a user-facing level name to a zap level.
func ParseLevel(name string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case LevelDebug:
		return zapcore.DebugLevel, nil
	case "", LevelInfo:
		return zapcore.InfoLevel, nil
	case LevelWarn, "warning":
		return zapcore.WarnLevel, nil
	case LevelError:
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q (expected debug, info, warn or error)", name)
	}
}

// Init sets the global log level. It may be called more than once; the last
// call wins.
func Init(levelName string) error {
	lvl, err := ParseLevel(levelName)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	level.SetLevel(lvl)
	return nil
}

// Level returns the currently configured level name.
func Level() string {
	return level.Level().String()
}

// Replace swaps the underlying zap logger and returns a function restoring the
// previous one. Intended for tests using zaptest/observer.
func Replace(l *zap.Logger) func() {
	mu.Lock()
	prevBase, prevSugar := base, sugar
	base = l
	sugar = l.Sugar()
	mu.Unlock()

	return func() {
		mu.Lock()
		base, sugar = prevBase, prevSugar
		mu.Unlock()
	}
}

// Sync flushes buffered log entries.
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	err := base.Sync()
	// Syncing stderr fails with EINVAL on some terminals; that is not actionable.
	if err != nil && strings.Contains(err.Error(), "invalid argument") {
		return nil
	}
	return err
}

func Debug(msg string, keysAndValues ...interface{}) {
	current().Debugw(msg, keysAndValues...)
}

func Info(msg string, keysAndValues ...interface{}) {
	current().Infow(msg, keysAndValues...)
}

func Warn(msg string, keysAndValues ...interface{}) {
	current().Warnw(msg, keysAndValues...)
}

func Error(msg string, keysAndValues ...interface{}) {
	current().Errorw(msg, keysAndValues...)
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

func newLogger(lvl zap.AtomicLevel) *zap.Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	encCfg.CallerKey = ""
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if os.Getenv("NO_COLOR") != "" {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		lvl,
	)
	return zap.New(core)
}
