package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/YuminosukeSato/opgrid/pkg/errors"
)

// ZerologLogger implements Logger on top of zerolog. Loggers derived through
// With share the level of the logger they were derived from, so SetLevel on a
// provider affects every logger it has handed out.
type ZerologLogger struct {
	zl    zerolog.Logger
	level *atomic.Int64
}

// NewZerologLogger creates a JSON logger writing to w at the given level.
func NewZerologLogger(w io.Writer, level Level) *ZerologLogger {
	lv := &atomic.Int64{}
	lv.Store(int64(level))
	return &ZerologLogger{
		zl:    zerolog.New(w).With().Timestamp().Logger(),
		level: lv,
	}
}

// Debug implements Logger.Debug.
func (l *ZerologLogger) Debug(msg string, fields ...any) {
	l.emit(LevelDebug, msg, fields)
}

// Info implements Logger.Info.
func (l *ZerologLogger) Info(msg string, fields ...any) {
	l.emit(LevelInfo, msg, fields)
}

// Warn implements Logger.Warn.
func (l *ZerologLogger) Warn(msg string, fields ...any) {
	l.emit(LevelWarn, msg, fields)
}

// Error implements Logger.Error.
func (l *ZerologLogger) Error(msg string, fields ...any) {
	l.emit(LevelError, msg, fields)
}

// With implements Logger.With.
func (l *ZerologLogger) With(fields ...any) Logger {
	return &ZerologLogger{
		zl:    l.zl.With().Fields(normalizeFields(fields)).Logger(),
		level: l.level,
	}
}

// Enabled implements Logger.Enabled.
func (l *ZerologLogger) Enabled(_ context.Context, level Level) bool {
	return level >= Level(l.level.Load())
}

func (l *ZerologLogger) emit(level Level, msg string, fields []any) {
	if !l.Enabled(context.Background(), level) {
		return
	}
	l.zl.WithLevel(toZerologLevel(level)).Fields(normalizeFields(fields)).Msg(msg)
}

func toZerologLevel(level Level) zerolog.Level {
	switch {
	case level >= LevelError:
		return zerolog.ErrorLevel
	case level >= LevelWarn:
		return zerolog.WarnLevel
	case level >= LevelInfo:
		return zerolog.InfoLevel
	default:
		return zerolog.DebugLevel
	}
}

// ParseLevel converts "debug", "info", "warn" or "error" into a Level.
func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, errors.NewValidationError("log_level", "must be one of debug, info, warn, error", level)
	}
}

// ZerologProvider is the default LoggerProvider.
type ZerologProvider struct {
	root *ZerologLogger
}

// NewZerologProvider creates a provider whose loggers write JSON lines to w.
func NewZerologProvider(w io.Writer, level Level) *ZerologProvider {
	return &ZerologProvider{root: NewZerologLogger(w, level)}
}

// GetLogger implements LoggerProvider.GetLogger.
func (p *ZerologProvider) GetLogger() Logger {
	return p.root
}

// GetLoggerWithName implements LoggerProvider.GetLoggerWithName.
func (p *ZerologProvider) GetLoggerWithName(name string) Logger {
	return p.root.With(ComponentKey, name)
}

// SetLevel implements LoggerProvider.SetLevel.
func (p *ZerologProvider) SetLevel(level Level) {
	p.root.level.Store(int64(level))
}

var (
	providerMu      sync.RWMutex
	defaultProvider LoggerProvider = NewZerologProvider(os.Stderr, LevelWarn)
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}

// SetProvider replaces the process-wide provider. Loggers obtained before the
// call keep writing through the previous provider.
func SetProvider(p LoggerProvider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	defaultProvider = p
}

// Provider returns the process-wide provider.
func Provider() LoggerProvider {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return defaultProvider
}

// GetLogger returns the default logger.
func GetLogger() Logger {
	return Provider().GetLogger()
}

// GetLoggerWithName returns a logger tagged with the component name.
func GetLoggerWithName(name string) Logger {
	return Provider().GetLoggerWithName(name)
}

// SetLevel sets the minimum level of the process-wide provider.
func SetLevel(level Level) {
	Provider().SetLevel(level)
}

// SetupLogger installs a zerolog provider writing to w at the named level and
// routes errors.Warn through it.
func SetupLogger(level string, w io.Writer) error {
	lv, err := ParseLevel(level)
	if err != nil {
		return err
	}
	if w == nil {
		w = os.Stderr
	}
	p := NewZerologProvider(w, lv)
	SetProvider(p)

	warnLogger := p.GetLoggerWithName("warnings")
	errors.SetZerologWarnFunc(func(warning error) {
		warnLogger.Warn("warning", ErrAttrKey, warning, ErrorTypeKey, fmt.Sprintf("%T", warning))
	})
	return nil
}
