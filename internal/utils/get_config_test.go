package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigFrom(t *testing.T) {
	t.Cleanup(func() { config = Config{} })
	path := writeConfig(t, `
APP_PORT: "9090"
REDIS_ADDR: "localhost:6380"
REDIS_DB: 2
GEMINI_MODEL: "gemini-2.0-flash"
RECOVERY_GRACE_HOURS: 36
AI_MAX_ATTEMPTS: 3
AI_RETRY_BACKOFF_MS: -1
IDLE_EVICT_MINUTES: 15
`)
	require.NoError(t, LoadConfigFrom(path))

	assert.Equal(t, "9090", GetConfig("APP_PORT"))
	assert.Equal(t, "localhost:6380", GetConfig("REDIS_ADDR"))
	assert.Equal(t, "2", GetConfig("REDIS_DB"))
	assert.Equal(t, "gemini-2.0-flash", GetConfig("GEMINI_MODEL"))
	assert.Equal(t, "", GetConfig("NO_SUCH_KEY"))

	assert.Equal(t, 3, GetConfigInt("AI_MAX_ATTEMPTS", 2))
	assert.Equal(t, 250, GetConfigInt("AI_RETRY_BACKOFF_MS", 250), "non-positive values fall back")
	assert.Equal(t, 10, GetConfigInt("SYNC_TIMEOUT_SECONDS", 10), "unset values fall back")
	assert.Equal(t, 5, GetConfigInt("GEMINI_MODEL", 5), "non-numeric values fall back")

	assert.Equal(t, 36*time.Hour, GetConfigDuration("RECOVERY_GRACE_HOURS", time.Hour, 24*time.Hour))
	assert.Equal(t, 30*time.Second, GetConfigDuration("AI_TIMEOUT_SECONDS", time.Second, 30*time.Second))
	assert.Equal(t, 15*time.Minute, GetConfigDuration("IDLE_EVICT_MINUTES", time.Minute, time.Hour))
}

func TestLoadConfigFrom_Errors(t *testing.T) {
	t.Cleanup(func() { config = Config{} })
	config = Config{AppPort: "8080"}

	assert.Error(t, LoadConfigFrom(filepath.Join(t.TempDir(), "missing.yaml")))
	assert.Error(t, LoadConfigFrom(writeConfig(t, "APP_PORT: [unterminated")))
	assert.Equal(t, "8080", GetConfig("APP_PORT"), "a failed load keeps the previous config")
}

func TestNewLogger_Levels(t *testing.T) {
	logger, err := NewLogger("debug")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = NewLogger("")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))

	logger, err = NewLogger("shouting")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
}
