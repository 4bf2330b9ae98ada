package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleking/report-engine/internal/config"
)

func newBufferLogger(level LogLevel, format string) (*Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	logger := &Logger{
		level:  level,
		format: format,
		output: buf,
		fields: make(map[string]interface{}),
	}

	return logger, buf
}

func TestNewLoggerValidatesOutput(t *testing.T) {
	_, err := NewLogger(config.LoggingConfig{Level: "info", Format: "text", Output: "pigeon"})
	assert.Error(t, err)

	logger, err := NewLogger(config.LoggingConfig{Level: "info", Format: "text", Output: "stderr"})
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestLogLevelFiltering(t *testing.T) {
	logger, buf := newBufferLogger(WarnLevel, "text")

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	output := buf.String()
	assert.NotContains(t, output, "debug message")
	assert.NotContains(t, output, "info message")
	assert.Contains(t, output, "warn message")
	assert.Contains(t, output, "error message")
}

func TestJSONFormat(t *testing.T) {
	logger, buf := newBufferLogger(InfoLevel, "json")

	logger.WithField("table", "orders").Info("query executed")

	var entry LogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "INFO", entry.Level)
	assert.Equal(t, "query executed", entry.Message)
	assert.Equal(t, "orders", entry.Fields["table"])
}

func TestWithFieldsDoesNotMutateParent(t *testing.T) {
	logger, _ := newBufferLogger(InfoLevel, "text")

	child := logger.WithFields(map[string]interface{}{"tenant": "acme"})

	assert.Empty(t, logger.fields)
	assert.Equal(t, "acme", child.fields["tenant"])
}

func TestWithErrorNil(t *testing.T) {
	logger, _ := newBufferLogger(InfoLevel, "text")
	assert.Same(t, logger, logger.WithError(nil))
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, parseLogLevel("debug"))
	assert.Equal(t, WarnLevel, parseLogLevel("warning"))
	assert.Equal(t, InfoLevel, parseLogLevel("unknown"))
}
