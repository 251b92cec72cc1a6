// Package logs records leveled log entries so callers can show them to users
// after an operation finishes. Every entry is also forwarded to slog.
package logs

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Level is the severity of a log entry.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// Log is a single recorded entry.
type Log struct {
	Message string
	Level   Level
}

type Logger struct {
	mu   sync.Mutex
	logs []*Log
}

func NewLogger() *Logger {
	return &Logger{
		logs: []*Log{},
	}
}

func (l *Logger) Debug(message string) {
	slog.Debug(message)
	l.log(LevelDebug, message)
}

func (l *Logger) Info(message string) {
	slog.Info(message)
	l.log(LevelInfo, message)
}

func (l *Logger) Warn(message string) {
	slog.Warn(message)
	l.log(LevelWarn, message)
}

func (l *Logger) Error(message string, err error) {
	slog.Error(message, "error", err)
	l.log(LevelError, message)
}

func (l *Logger) log(level Level, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logs = append(l.logs, &Log{
		Message: message,
		Level:   level,
	})
}

// Logs returns the recorded entries in order.
func (l *Logger) Logs() []*Log {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Log(nil), l.logs...)
}

// HasErrors reports whether any entry is at error level.
func (l *Logger) HasErrors() bool {
	return len(l.Errors()) > 0
}

// Errors returns the messages of the error level entries.
func (l *Logger) Errors() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var messages []string
	for _, log := range l.logs {
		if log.Level == LevelError {
			messages = append(messages, log.Message)
		}
	}
	return messages
}

// Format renders entries one per line as "level: message".
func Format(entries []*Log) string {
	var b strings.Builder
	for _, log := range entries {
		fmt.Fprintf(&b, "%s: %s\n", log.Level, log.Message)
	}
	return b.String()
}
