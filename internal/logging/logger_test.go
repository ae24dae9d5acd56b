package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerDefaultConfig(t *testing.T) {
	logger := NewLogger(nil)
	require.NotNil(t, logger)
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelWarn, Output: &buf})

	logger.Debug("debug message")
	logger.Info("info message")
	assert.Empty(t, buf.String(), "debug/info should be filtered below LevelWarn")

	logger.Warn("warn message")
	assert.Contains(t, buf.String(), "warn message")
}

func TestLoggerFormatArgs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Output: &buf})

	logger.Info("mutex acquired", "pid", 7, "name", "data_lock")
	output := buf.String()
	require.Contains(t, output, "[INFO]")
	assert.Contains(t, output, "mutex acquired")
	assert.Contains(t, output, "pid=7")
	assert.Contains(t, output, "name=data_lock")
}

func TestLoggerPrintfCompat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelInfo, Output: &buf})

	logger.Printf("queue %d created with depth %d", 3, 64)
	assert.Contains(t, buf.String(), "queue 3 created with depth 64")
}

func TestGlobalLoggerFunctions(t *testing.T) {
	var buf bytes.Buffer
	SetDefault(NewLogger(&Config{Level: LevelDebug, Output: &buf}))
	t.Cleanup(func() { SetDefault(NewLogger(nil)) })

	Debug("debug message", "key", "value")
	require.True(t, strings.Contains(buf.String(), "debug message"))
	assert.Contains(t, buf.String(), "key=value")

	buf.Reset()
	Warn("warning message")
	assert.Contains(t, buf.String(), "warning message")

	buf.Reset()
	Error("error message")
	assert.Contains(t, buf.String(), "error message")
}
