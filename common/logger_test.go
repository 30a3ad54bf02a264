package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useTestLogger(t *testing.T, level string) string {
	t.Helper()
	loggerMu.Lock()
	previous := Logger
	loggerMu.Unlock()
	t.Cleanup(func() {
		loggerMu.Lock()
		Logger = previous
		loggerMu.Unlock()
	})

	path := filepath.Join(t.TempDir(), "logs", "server.log")
	require.NoError(t, InitLogger(&LogConfig{Level: level, Format: "text", Output: "file", FilePath: path}))
	return path
}

func TestLogHelpersWriteAtTheirLevel(t *testing.T) {
	path := useTestLogger(t, "debug")

	Debug("dataset selected")
	Info("server ready")
	Infof("model: %s", "gemini-test")
	Warn(".env file not found")
	Error("server stopped: ", "stdin closed")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "level=debug msg=\"dataset selected\"")
	assert.Contains(t, out, "level=info msg=\"server ready\"")
	assert.Contains(t, out, "level=info msg=\"model: gemini-test\"")
	assert.Contains(t, out, "level=warning msg=\".env file not found\"")
	assert.Contains(t, out, "level=error msg=\"server stopped: stdin closed\"")
}

func TestLogHelpersRespectLevel(t *testing.T) {
	path := useTestLogger(t, "warn")

	Debug("hidden")
	Infof("hidden %d", 1)
	Warn("shown")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")
}

func TestGetLoggerDefaultsToStderr(t *testing.T) {
	loggerMu.Lock()
	previous := Logger
	Logger = nil
	loggerMu.Unlock()
	t.Cleanup(func() {
		loggerMu.Lock()
		Logger = previous
		loggerMu.Unlock()
	})

	assert.Equal(t, os.Stderr, GetLogger().Out)
}
