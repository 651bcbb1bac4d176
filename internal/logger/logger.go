package logger

import (
	"sync"
)

// Log levels accepted in configuration.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

var (
	globalLogger *Logger
	once         sync.Once
)

// Get returns the process logger. The first call fixes the level; later
// calls return the same instance.
func Get(level string) *Logger {
	once.Do(func() {
		globalLogger = newZapLogger(level)
	})
	return globalLogger
}

// SetLevel changes the level of loggers built by Get. Unknown levels are ignored.
func (l *Logger) SetLevel(level string) {
	if l == nil || l.level == nil {
		return
	}
	if lvl, ok := parseLevel(level); ok {
		l.level.SetLevel(lvl)
	}
}
