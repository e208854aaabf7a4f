// Package util provides shared logging and statistics helpers.
package util

import (
	"github.com/pterm/pterm"
)

func init() {
	pterm.DefaultLogger.ShowTime = true
	pterm.DefaultLogger.TimeFormat = "02 Jan 15:04:05"
	pterm.DefaultLogger.MaxWidth = 1000
}

// appLog carries the CLI's own messages. It is a scoped logger like the ones
// handed to the components and pion, so every line takes the same path to
// pterm's default logger (stderr).
var appLog = NewLoggerFactory().NewLogger(appScope)

func LogDebug(format string, args ...interface{})   { appLog.Debugf(format, args...) }
func LogInfo(format string, args ...interface{})    { appLog.Infof(format, args...) }
func LogSuccess(format string, args ...interface{}) { appLog.Infof(format, args...) }
func LogWarning(format string, args ...interface{}) { appLog.Warnf(format, args...) }
func LogError(format string, args ...interface{})   { appLog.Errorf(format, args...) }

// EnableDebug configures the logger to show debug messages, including the
// debug output of the scoped loggers handed to pion.
func EnableDebug() {
	pterm.DefaultLogger.Level = pterm.LogLevelDebug
}

// EnableTrace lowers the level further so pion's trace output is printed too.
func EnableTrace() {
	pterm.DefaultLogger.Level = pterm.LogLevelTrace
}
