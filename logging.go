// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// Field is a structured logging key-value pair.
type Field struct {
	Key   string
	Value interface{}
}

// Logger is the structured logging interface used by sessions.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a logger that prefixes every entry with fields.
	With(fields ...Field) Logger
}

// Level is the severity of a log entry.
type Level int

// Log levels in increasing severity.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the bracketed tag written in front of each entry.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "[DEBUG]"
	case LevelInfo:
		return "[INFO]"
	case LevelWarn:
		return "[WARN]"
	case LevelError:
		return "[ERROR]"
	default:
		return "[UNKNOWN]"
	}
}

// NoOpLogger discards all log messages. It is the session default.
type NoOpLogger struct{}

// Debug discards the message.
func (l *NoOpLogger) Debug(msg string, fields ...Field) {}

// Info discards the message.
func (l *NoOpLogger) Info(msg string, fields ...Field) {}

// Warn discards the message.
func (l *NoOpLogger) Warn(msg string, fields ...Field) {}

// Error discards the message.
func (l *NoOpLogger) Error(msg string, fields ...Field) {}

// With returns the receiver; there is nothing to annotate.
func (l *NoOpLogger) With(fields ...Field) Logger {
	return l
}

// StandardLogger writes entries through the standard library log package
// as "[LEVEL] msg key=value ...".
type StandardLogger struct {
	// Logger is the destination. A nil Logger writes to stderr.
	Logger *log.Logger

	// MinLevel drops entries below this severity.
	MinLevel Level

	contextFields []Field
}

func (l *StandardLogger) output() *log.Logger {
	if l.Logger == nil {
		l.Logger = log.New(os.Stderr, "RFB: ", log.LstdFlags|log.Lshortfile)
	}
	return l.Logger
}

func (l *StandardLogger) log(level Level, msg string, fields []Field) {
	if level < l.MinLevel {
		return
	}

	var b strings.Builder
	b.WriteString(level.String())
	b.WriteByte(' ')
	b.WriteString(msg)
	for _, f := range l.contextFields {
		writeField(&b, f)
	}
	for _, f := range fields {
		writeField(&b, f)
	}
	// calldepth 3 reports the session code that called Debug/Info/...
	_ = l.output().Output(3, b.String())
}

func writeField(b *strings.Builder, f Field) {
	b.WriteByte(' ')
	b.WriteString(f.Key)
	b.WriteByte('=')
	b.WriteString(formatFieldValue(f.Value))
}

// formatFieldValue quotes strings containing whitespace and all errors.
func formatFieldValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		if strings.ContainsAny(v, " \t\r\n") {
			return `"` + v + `"`
		}
		return v
	case error:
		return `"` + v.Error() + `"`
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Debug logs a debug-level message.
func (l *StandardLogger) Debug(msg string, fields ...Field) { l.log(LevelDebug, msg, fields) }

// Info logs an info-level message.
func (l *StandardLogger) Info(msg string, fields ...Field) { l.log(LevelInfo, msg, fields) }

// Warn logs a warning-level message.
func (l *StandardLogger) Warn(msg string, fields ...Field) { l.log(LevelWarn, msg, fields) }

// Error logs an error-level message.
func (l *StandardLogger) Error(msg string, fields ...Field) { l.log(LevelError, msg, fields) }

// With returns a StandardLogger sharing the destination and level whose
// entries also carry fields.
func (l *StandardLogger) With(fields ...Field) Logger {
	merged := make([]Field, 0, len(l.contextFields)+len(fields))
	merged = append(merged, l.contextFields...)
	merged = append(merged, fields...)

	return &StandardLogger{
		Logger:        l.output(),
		MinLevel:      l.MinLevel,
		contextFields: merged,
	}
}
