// Package pionlog routes pion's internal logging into log/slog.
//
// Pion components log under a scope ("ice", "pc", "dtls", "sctp", ...).
// A filter string picks a level per scope, with an optional bare level as
// the default for scopes not named:
//
//	warn,ice=off,mdns=off,pc=debug
package pionlog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pion/logging"
)

// Level is a pion log level; LevelOff silences a scope.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelOff
)

// slog has no trace level
const slogLevelTrace = slog.LevelDebug - 4

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "trace"
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "off"
	}
}

func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "off", "none":
		return LevelOff, nil
	}
	return LevelOff, fmt.Errorf("unknown log level %q", s)
}

// Filter holds the default level and per-scope overrides.
type Filter struct {
	Default Level
	Scopes  map[string]Level
}

// ParseFilter reads "level,scope=level,...". Scopes are case-insensitive.
// An empty filter keeps warnings and errors from every scope.
func ParseFilter(filter string) (Filter, error) {
	f := Filter{Default: LevelWarn, Scopes: make(map[string]Level)}
	for _, part := range strings.Split(filter, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		scope, level, found := strings.Cut(part, "=")
		if !found {
			lvl, err := ParseLevel(part)
			if err != nil {
				return Filter{}, err
			}
			f.Default = lvl
			continue
		}
		scope = strings.ToLower(strings.TrimSpace(scope))
		if scope == "" {
			return Filter{}, fmt.Errorf("empty scope in %q", part)
		}
		lvl, err := ParseLevel(level)
		if err != nil {
			return Filter{}, fmt.Errorf("scope %s: %w", scope, err)
		}
		f.Scopes[scope] = lvl
	}
	return f, nil
}

// LevelFor returns the effective level of scope.
func (f Filter) LevelFor(scope string) Level {
	if lvl, ok := f.Scopes[strings.ToLower(scope)]; ok {
		return lvl
	}
	return f.Default
}

// Factory implements logging.LoggerFactory
type Factory struct {
	logger *slog.Logger
	filter Filter
}

var _ logging.LoggerFactory = (*Factory)(nil)

// NewFactory parses filter and returns a factory writing to logger.
func NewFactory(logger *slog.Logger, filter string) (*Factory, error) {
	if logger == nil {
		logger = slog.Default()
	}
	f, err := ParseFilter(filter)
	if err != nil {
		return nil, err
	}
	return &Factory{logger: logger, filter: f}, nil
}

func (f *Factory) NewLogger(scope string) logging.LeveledLogger {
	return &scopedLogger{
		logger: f.logger.With("component", "pion", "scope", scope),
		min:    f.filter.LevelFor(scope),
	}
}

type scopedLogger struct {
	logger *slog.Logger
	min    Level
}

func (l *scopedLogger) log(level Level, msg string) {
	if level < l.min || l.min == LevelOff {
		return
	}
	var sl slog.Level
	switch level {
	case LevelTrace:
		sl = slogLevelTrace
	case LevelDebug:
		sl = slog.LevelDebug
	case LevelInfo:
		sl = slog.LevelInfo
	case LevelWarn:
		sl = slog.LevelWarn
	default:
		sl = slog.LevelError
	}
	l.logger.Log(context.Background(), sl, msg)
}

func (l *scopedLogger) Trace(msg string) { l.log(LevelTrace, msg) }
func (l *scopedLogger) Tracef(format string, args ...interface{}) {
	l.log(LevelTrace, fmt.Sprintf(format, args...))
}
func (l *scopedLogger) Debug(msg string) { l.log(LevelDebug, msg) }
func (l *scopedLogger) Debugf(format string, args ...interface{}) {
	l.log(LevelDebug, fmt.Sprintf(format, args...))
}
func (l *scopedLogger) Info(msg string) { l.log(LevelInfo, msg) }
func (l *scopedLogger) Infof(format string, args ...interface{}) {
	l.log(LevelInfo, fmt.Sprintf(format, args...))
}
func (l *scopedLogger) Warn(msg string) { l.log(LevelWarn, msg) }
func (l *scopedLogger) Warnf(format string, args ...interface{}) {
	l.log(LevelWarn, fmt.Sprintf(format, args...))
}
func (l *scopedLogger) Error(msg string) { l.log(LevelError, msg) }
func (l *scopedLogger) Errorf(format string, args ...interface{}) {
	l.log(LevelError, fmt.Sprintf(format, args...))
}
