// Package log provides the logger used across ragchat, backed by
// kataras/golog. Components take a Logger so tests can silence them.
package log

import (
	"io"
	"os"

	"github.com/kataras/golog"
)

// Logger is the logging interface consumed by ragchat components.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// GologLogger implements Logger on top of a golog.Logger.
type GologLogger struct {
	logger *golog.Logger
}

var _ Logger = (*GologLogger)(nil)

// New creates a logger writing to w at the given level
// ("debug", "info", "warn", "error" or "disable").
func New(w io.Writer, level string) *GologLogger {
	l := golog.New()
	l.SetOutput(w)
	l.SetLevel(level)
	l.SetTimeFormat("2006/01/02 15:04:05")
	return &GologLogger{logger: l}
}

// SetLevel changes the logging level.
func (l *GologLogger) SetLevel(level string) {
	l.logger.SetLevel(level)
}

func (l *GologLogger) Debugf(format string, args ...any) {
	l.logger.Debugf(format, args...)
}

func (l *GologLogger) Infof(format string, args ...any) {
	l.logger.Infof(format, args...)
}

func (l *GologLogger) Warnf(format string, args ...any) {
	l.logger.Warnf(format, args...)
}

func (l *GologLogger) Errorf(format string, args ...any) {
	l.logger.Errorf(format, args...)
}

// NopLogger discards everything. Handy in tests.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any) {}
func (NopLogger) Infof(string, ...any)  {}
func (NopLogger) Warnf(string, ...any)  {}
func (NopLogger) Errorf(string, ...any) {}

// Package-level default so call sites without an injected logger still log.
var defaultLogger Logger = New(os.Stderr, "info")

// Default returns the package-level logger.
func Default() Logger { return defaultLogger }

// SetDefault replaces the package-level logger.
func SetDefault(l Logger) {
	if l != nil {
		defaultLogger = l
	}
}
