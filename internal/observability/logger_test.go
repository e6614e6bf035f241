// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/chatprobe-cli/internal/config"
)

// newCapturedLogger initializes the global logger against an in-memory
// console writer. ResetForTest is registered so the singleton does not leak
// between tests.
func newCapturedLogger(t *testing.T, cfg config.LoggerConfig) *bytes.Buffer {
	t.Helper()
	ResetForTest()
	t.Cleanup(ResetForTest)

	var buf bytes.Buffer
	Initialize(cfg, zapcore.AddSync(&buf))
	return &buf
}

func TestInitialize(t *testing.T) {
	t.Run("console format produces readable output", func(t *testing.T) {
		buf := newCapturedLogger(t, config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "TestService",
		})

		GetLogger().Info("This is a test message.")

		output := buf.String()
		assert.Contains(t, output, "INFO", "output should contain the log level")
		assert.Contains(t, output, "This is a test message.", "output should contain the message")
		assert.Contains(t, output, "TestService", "output should contain the service name")
	})

	t.Run("json format produces structured entries", func(t *testing.T) {
		buf := newCapturedLogger(t, config.LoggerConfig{
			Level:       "info",
			Format:      "json",
			ServiceName: "JSONTest",
		})

		GetLogger().Warn("This is a JSON message.", zap.String("key", "value"))

		var logEntry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry), "log output should be valid JSON")
		assert.Equal(t, "WARN", logEntry["level"])
		assert.Equal(t, "JSONTest", logEntry["logger"])
		assert.Equal(t, "This is a JSON message.", logEntry["msg"])
		assert.Equal(t, "value", logEntry["key"])
	})

	t.Run("debug entries respect the configured level", func(t *testing.T) {
		buf := newCapturedLogger(t, config.LoggerConfig{
			Level:  "info",
			Format: "json",
		})

		GetLogger().Debug("too quiet to show")
		assert.Empty(t, buf.String())
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		buf := newCapturedLogger(t, config.LoggerConfig{
			Level:  "extremely-loud",
			Format: "json",
		})

		GetLogger().Info("still works")
		assert.Contains(t, buf.String(), "still works")
	})

	t.Run("writes to a log file when configured", func(t *testing.T) {
		logPath := filepath.Join(t.TempDir(), "chatprobe.log")
		_ = newCapturedLogger(t, config.LoggerConfig{
			Level:   "debug",
			Format:  "json",
			LogFile: logPath,
			MaxSize: 1,
		})

		GetLogger().Error("This should go to the file.")
		Sync()

		content, err := os.ReadFile(logPath)
		require.NoError(t, err)
		assert.Contains(t, string(content), "This should go to the file.")
	})

	t.Run("only initializes once", func(t *testing.T) {
		buf := newCapturedLogger(t, config.LoggerConfig{Level: "info", Format: "json", ServiceName: "First"})

		logger1 := GetLogger()
		Initialize(config.LoggerConfig{Level: "debug", Format: "json", ServiceName: "Second"}, zapcore.AddSync(&bytes.Buffer{}))
		logger2 := GetLogger()

		assert.Same(t, logger1, logger2)
		logger2.Info("test")
		assert.True(t, strings.Contains(buf.String(), "First"))
		assert.False(t, strings.Contains(buf.String(), "Second"))
	})
}

func TestGetLogger(t *testing.T) {
	t.Run("returns a fallback logger if not initialized", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)

		logger := GetLogger()
		require.NotNil(t, logger)
	})

	t.Run("returns the global logger after initialization", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)

		Initialize(config.LoggerConfig{Level: "info", Format: "json"}, zapcore.AddSync(&bytes.Buffer{}))
		assert.Same(t, globalLogger.Load(), GetLogger())
	})
}
