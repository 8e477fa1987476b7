// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogging_NoOpLogger(t *testing.T) {
	logger := &NoOpLogger{}

	logger.Debug("debug message", Field{Key: "key", Value: "value"})
	logger.Info("info message", Field{Key: "key", Value: "value"})
	logger.Warn("warn message", Field{Key: "key", Value: "value"})
	logger.Error("error message", Field{Key: "key", Value: "value"})

	contextLogger := logger.With(Field{Key: "context", Value: "test"})
	assert.IsType(t, &NoOpLogger{}, contextLogger)
}

func TestLogging_StandardLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := &StandardLogger{Logger: log.New(&buf, "", 0)}

	tests := []struct {
		name     string
		logFunc  func(string, ...Field)
		message  string
		fields   []Field
		expected string
	}{
		{
			name:     "debug message",
			logFunc:  logger.Debug,
			message:  "debug test",
			expected: "[DEBUG] debug test",
		},
		{
			name:     "info with fields",
			logFunc:  logger.Info,
			message:  "info test",
			fields:   []Field{{Key: "key1", Value: "value1"}, {Key: "key2", Value: 42}},
			expected: "[INFO] info test key1=value1 key2=42",
		},
		{
			name:     "warn with string containing spaces",
			logFunc:  logger.Warn,
			message:  "warn test",
			fields:   []Field{{Key: "desktop_name", Value: "my desktop"}},
			expected: `[WARN] warn test desktop_name="my desktop"`,
		},
		{
			name:     "error with error field",
			logFunc:  logger.Error,
			message:  "error test",
			fields:   []Field{{Key: "error", Value: NewError("readExact", ErrShortRead, "transport closed", nil)}},
			expected: `[ERROR] error test error="rfb short read: readExact: transport closed"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.logFunc(tt.message, tt.fields...)
			assert.Equal(t, tt.expected, strings.TrimSpace(buf.String()))
		})
	}
}

func TestLogging_MinLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := &StandardLogger{Logger: log.New(&buf, "", 0), MinLevel: LevelWarn}

	logger.Debug("dropped")
	logger.Info("dropped")
	assert.Empty(t, buf.String())

	logger.Warn("kept")
	logger.Error("kept too")
	assert.Equal(t, "[WARN] kept\n[ERROR] kept too\n", buf.String())
}

func TestLogging_StandardLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	logger := &StandardLogger{Logger: log.New(&buf, "", 0)}

	sessionLogger := logger.With(
		Field{Key: "remote_addr", Value: "192.168.1.100:5900"},
		Field{Key: "state", Value: StateInitialized},
	)
	sessionLogger.Info("Setting encodings", Field{Key: "count", Value: 1})
	assert.Equal(t,
		"[INFO] Setting encodings remote_addr=192.168.1.100:5900 state=Initialized count=1",
		strings.TrimSpace(buf.String()))

	buf.Reset()
	logger.Info("original logger")
	assert.Equal(t, "[INFO] original logger", strings.TrimSpace(buf.String()))
}

func TestLogging_WithKeepsMinLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := &StandardLogger{Logger: log.New(&buf, "", 0), MinLevel: LevelError}

	child := logger.With(Field{Key: "k", Value: "v"})
	child.Warn("dropped")
	assert.Empty(t, buf.String())
}

func TestLogging_StandardLoggerDefault(t *testing.T) {
	logger := &StandardLogger{MinLevel: LevelError}
	logger.Error("written to stderr")
	require.NotNil(t, logger.Logger)
}

func TestLogging_FormatFieldValue(t *testing.T) {
	tests := []struct {
		name     string
		value    interface{}
		expected string
	}{
		{"simple string", "hello", "hello"},
		{"string with spaces", "hello world", `"hello world"`},
		{"string with tab", "a\tb", "\"a\tb\""},
		{"integer", 42, "42"},
		{"boolean", true, "true"},
		{"state", StateAwaitingUpdate, "AwaitingUpdate"},
		{"error", NewError("test", ErrNetwork, "test error", nil), `"rfb network: test: test error"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatFieldValue(tt.value))
		})
	}
}

func TestLogging_LevelString(t *testing.T) {
	assert.Equal(t, "[DEBUG]", LevelDebug.String())
	assert.Equal(t, "[ERROR]", LevelError.String())
	assert.Equal(t, "[UNKNOWN]", Level(42).String())
}
