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
	// Run from a directory without a config file so defaults apply.
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(cwd) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 8*time.Second, cfg.Chain.FastTimeout())
	assert.Equal(t, 30*time.Second, cfg.Chain.QualityTimeout())
	assert.Equal(t, 20*time.Second, cfg.Chain.AltTimeout())
	assert.Equal(t, 5, cfg.Chain.MaxConcurrentCalls)
	assert.Equal(t, 3, cfg.Chain.RateLimitRetries)
	assert.True(t, cfg.Chain.CacheEnabled)
	assert.Equal(t, "sonar-pro", cfg.Perplexity.Model)
	assert.Equal(t, 5, cfg.Research.MaxReferences)
	assert.Equal(t, 180, cfg.Orchestrator.TaskTimeoutSecs)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`
store:
  driver: sqlite
  sqlite_path: /tmp/test.db
chain:
  fast_timeout_secs: 3
  max_concurrent_calls: 2
log:
  level: debug
  format: console
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o644))

	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(cwd) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "/tmp/test.db", cfg.Store.SQLitePath)
	assert.Equal(t, 3*time.Second, cfg.Chain.FastTimeout())
	assert.Equal(t, 2, cfg.Chain.MaxConcurrentCalls)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestInitLogger_InvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "nope", Format: "json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}

func TestInitLogger_Console(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "warn", Format: "console"}))
}
