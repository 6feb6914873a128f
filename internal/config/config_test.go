package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	// act
	cfg := Load(filepath.Join(t.TempDir(), "missing.env"))

	// assert
	assert.Equal(t, 10, cfg.Workers)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 3, cfg.MaxIdlePasses)
	assert.Equal(t, "all", cfg.ChatFormat)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
}

func TestLoad_EnvOverrides(t *testing.T) {
	// arrange
	t.Setenv("TARGET_COUNT", "250")
	t.Setenv("RANDOM_SEED", "42")
	t.Setenv("NATS_ENABLED", "true")
	t.Setenv("SERVER_READ_TIMEOUT", "5s")
	t.Setenv("WORKERS", "not-a-number")

	// act
	cfg := Load(filepath.Join(t.TempDir(), "missing.env"))

	// assert
	assert.Equal(t, 250, cfg.TargetCount)
	assert.Equal(t, int64(42), cfg.RandomSeed)
	assert.True(t, cfg.NATSEnabled)
	assert.Equal(t, 5*time.Second, cfg.ServerReadTimeout)
	assert.Equal(t, 10, cfg.Workers)
}

func TestLoad_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	// arrange
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("OUTPUT_DIR=from-file\nLLM_PROVIDER=openai\n"), 0o600))
	t.Setenv("OUTPUT_DIR", "from-env")
	t.Cleanup(func() { os.Unsetenv("LLM_PROVIDER") })

	// act
	cfg := Load(path)

	// assert
	assert.Equal(t, "from-env", cfg.OutputDir)
	assert.Equal(t, "openai", cfg.Provider)
}
