package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(configDirEnv, dir)
	return dir
}

func TestLoadConfigDefaultsWhenMissing(t *testing.T) {
	useConfigDir(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, DefaultConfig(), cfg)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 5*time.Second, cfg.CancelGrace())
	assert.Zero(t, cfg.RequestTimeout())
}

func TestSaveAndLoadConfig(t *testing.T) {
	dir := useConfigDir(t)

	cfg := DefaultConfig()
	cfg.PoolWidth = 4
	cfg.CacheBackend = CacheBackendMemory
	cfg.FileTypes = []string{"djvu"}
	require.NoError(t, SaveConfig(cfg))
	assert.FileExists(t, filepath.Join(dir, configFileName))

	loaded, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestEnvOverridesConfigFile(t *testing.T) {
	useConfigDir(t)
	require.NoError(t, SaveConfig(DefaultConfig()))

	t.Setenv("ARCHIVE_SCOUT_ORIGIN", "http://localhost:8080")
	t.Setenv("ARCHIVE_SCOUT_POOL_WIDTH", "3")
	t.Setenv("ARCHIVE_SCOUT_ROWS", "not-a-number")
	t.Setenv("ARCHIVE_SCOUT_CACHE_BACKEND", "Redis")
	t.Setenv("ARCHIVE_SCOUT_REDIS_ADDR", "localhost:6379")
	t.Setenv("ARCHIVE_SCOUT_VERBOSE", "true")
	t.Setenv("ARCHIVE_SCOUT_REQUEST_TIMEOUT", "30")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.Origin)
	assert.Equal(t, 3, cfg.PoolWidth)
	assert.Equal(t, defaultRows, cfg.Rows)
	assert.Equal(t, CacheBackendRedis, cfg.CacheBackend)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout())
	assert.NoError(t, cfg.Validate())
}

func TestLoadEnvFileDoesNotOverrideEnvironment(t *testing.T) {
	dir := useConfigDir(t)
	envFile := "ARCHIVE_SCOUT_LOG_LEVEL=debug\nARCHIVE_SCOUT_DOWNLOAD_DIR=/from/file\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, envFileName), []byte(envFile), 0o600))

	t.Setenv("ARCHIVE_SCOUT_DOWNLOAD_DIR", "/from/env")
	// Registered so t restores it after LoadEnv sets it.
	t.Setenv("ARCHIVE_SCOUT_LOG_LEVEL", "")
	require.NoError(t, os.Unsetenv("ARCHIVE_SCOUT_LOG_LEVEL"))

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/from/env", cfg.DownloadDir)
}

func TestLoadConfigRejectsBadJSON(t *testing.T) {
	dir := useConfigDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), []byte("{"), 0o600))

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "unable to parse config")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "bad scheme", mutate: func(cfg *Config) { cfg.Origin = "ftp://archive.org" }, errMsg: "http or https"},
		{name: "missing host", mutate: func(cfg *Config) { cfg.Origin = "https://" }, errMsg: "missing host"},
		{name: "zero pool", mutate: func(cfg *Config) { cfg.PoolWidth = 0 }, errMsg: "pool width"},
		{name: "zero rows", mutate: func(cfg *Config) { cfg.Rows = 0 }, errMsg: "rows"},
		{name: "negative timeout", mutate: func(cfg *Config) { cfg.RequestTimeoutSeconds = -1 }, errMsg: "timeout"},
		{name: "unknown backend", mutate: func(cfg *Config) { cfg.CacheBackend = "disk" }, errMsg: "unknown cache backend"},
		{name: "redis without addr", mutate: func(cfg *Config) { cfg.CacheBackend = CacheBackendRedis }, errMsg: "redis_addr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestResolveDownloadDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DownloadDir = "/tmp/books"
	dir, err := cfg.ResolveDownloadDir()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/books", dir)

	t.Setenv("HOME", "/home/reader")
	dir, err = DefaultConfig().ResolveDownloadDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/reader", "Downloads", "archive-scout"), dir)
}
