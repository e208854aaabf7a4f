package util

import (
	"fmt"

	"github.com/pion/logging"
	"github.com/pterm/pterm"
)

const appScope = "app"

// Scopes owned by this module. Anything else handed to NewLogger comes from
// pion internals (ice, dtls, sctp, pc, ...) and is held at warn level.
var ownScopes = map[string]bool{
	appScope:      true,
	"signal":      true,
	"relay":       true,
	"peer":        true,
	"negotiation": true,
}

// LoggerFactory implements logging.LoggerFactory on top of pterm, so pion's
// internal logs and our own component loggers share one output.
type LoggerFactory struct {
	// Floor is the lowest level printed for pion's own scopes.
	Floor pterm.LogLevel
}

// NewLoggerFactory returns a factory that keeps pion's internal scopes at
// warn level and lets our scopes follow the global pterm level.
func NewLoggerFactory() *LoggerFactory {
	return &LoggerFactory{Floor: pterm.LogLevelWarn}
}

// NewLogger implements logging.LoggerFactory.
func (f *LoggerFactory) NewLogger(scope string) logging.LeveledLogger {
	floor := pterm.LogLevelTrace
	if !ownScopes[scope] {
		floor = f.Floor
	}
	return &scopedLogger{scope: scope, floor: floor}
}

// scopedLogger is a logging.LeveledLogger writing through pterm.DefaultLogger
// with the scope attached as an argument.
type scopedLogger struct {
	scope string
	floor pterm.LogLevel
}

func (l *scopedLogger) print(level pterm.LogLevel, msg string) {
	if level < l.floor {
		return
	}
	lg := &pterm.DefaultLogger
	args := lg.Args("scope", l.scope)
	switch level {
	case pterm.LogLevelTrace:
		lg.Trace(msg, args)
	case pterm.LogLevelDebug:
		lg.Debug(msg, args)
	case pterm.LogLevelInfo:
		lg.Info(msg, args)
	case pterm.LogLevelWarn:
		lg.Warn(msg, args)
	default:
		lg.Error(msg, args)
	}
}

func (l *scopedLogger) Trace(msg string) { l.print(pterm.LogLevelTrace, msg) }
func (l *scopedLogger) Tracef(format string, args ...interface{}) {
	l.print(pterm.LogLevelTrace, fmt.Sprintf(format, args...))
}
func (l *scopedLogger) Debug(msg string) { l.print(pterm.LogLevelDebug, msg) }
func (l *scopedLogger) Debugf(format string, args ...interface{}) {
	l.print(pterm.LogLevelDebug, fmt.Sprintf(format, args...))
}
func (l *scopedLogger) Info(msg string) { l.print(pterm.LogLevelInfo, msg) }
func (l *scopedLogger) Infof(format string, args ...interface{}) {
	l.print(pterm.LogLevelInfo, fmt.Sprintf(format, args...))
}
func (l *scopedLogger) Warn(msg string) { l.print(pterm.LogLevelWarn, msg) }
func (l *scopedLogger) Warnf(format string, args ...interface{}) {
	l.print(pterm.LogLevelWarn, fmt.Sprintf(format, args...))
}
func (l *scopedLogger) Error(msg string) { l.print(pterm.LogLevelError, msg) }
func (l *scopedLogger) Errorf(format string, args ...interface{}) {
	l.print(pterm.LogLevelError, fmt.Sprintf(format, args...))
}
