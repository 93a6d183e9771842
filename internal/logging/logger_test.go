package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLoggerDefaultsToStderr(t *testing.T) {
	logger := NewLogger(nil)
	require.NotNil(t, logger)
}

func TestLoggerLevelGating(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelWarn, Output: &buf})

	logger.Debug("should not appear")
	logger.Info("should not appear either")
	require.Empty(t, buf.String())

	logger.Warn("warn message")
	require.Contains(t, buf.String(), "warn message")

	buf.Reset()
	logger.Error("error message", "command", "CONTINUE")
	output := buf.String()
	require.Contains(t, output, "[ERROR]")
	require.Contains(t, output, "error message")
	require.Contains(t, output, "command=CONTINUE")
}

func TestLoggerPrintfStyle(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Output: &buf})

	logger.Debugf("received request command=%d len=%d", 3, 12)
	require.True(t, strings.Contains(buf.String(), "received request command=3 len=12"))
}

func TestGlobalLoggerFunctions(t *testing.T) {
	var buf bytes.Buffer
	SetDefault(NewLogger(&Config{Level: LevelDebug, Output: &buf}))
	t.Cleanup(func() { SetDefault(NewLogger(nil)) })

	Info("receiver ready", "transport", "pipe")
	require.Contains(t, buf.String(), "receiver ready")
	require.Contains(t, buf.String(), "transport=pipe")
}
