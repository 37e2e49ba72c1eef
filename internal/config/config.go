package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	configDirName  = "archive-scout"
	configFileName = "config.json"
	envFileName    = ".env"

	defaultOrigin      = "https://archive.org"
	defaultPoolWidth   = 10
	defaultRows        = 100
	defaultCancelGrace = 5
	defaultLogLevel    = "info"

	// configDirEnv relocates the config directory, mostly for tests.
	configDirEnv = "ARCHIVE_SCOUT_CONFIG_DIR"
)

const (
	CacheBackendBolt   = "bolt"
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

var DefaultFileTypes = []string{"pdf", "epub"}

type Config struct {
	Origin                string   `json:"origin"`
	PoolWidth             int      `json:"pool_width"`
	Rows                  int      `json:"rows"`
	CancelGraceSeconds    int      `json:"cancel_grace_seconds"`
	RequestTimeoutSeconds int      `json:"request_timeout_seconds"`
	CacheBackend          string   `json:"cache_backend"`
	CachePath             string   `json:"cache_path,omitempty"`
	RedisAddr             string   `json:"redis_addr,omitempty"`
	RedisPassword         string   `json:"redis_password,omitempty"`
	DownloadDir           string   `json:"download_dir,omitempty"`
	FileTypes             []string `json:"file_types"`
	LogLevel              string   `json:"log_level"`
	Verbose               bool     `json:"verbose"`
}

func DefaultConfig() Config {
	return Config{
		Origin:             defaultOrigin,
		PoolWidth:          defaultPoolWidth,
		Rows:               defaultRows,
		CancelGraceSeconds: defaultCancelGrace,
		CacheBackend:       CacheBackendBolt,
		FileTypes:          append([]string(nil), DefaultFileTypes...),
		LogLevel:           defaultLogLevel,
	}
}

func ConfigDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(configDirEnv)); dir != "" {
		return dir, nil
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("unable to resolve config dir: %w", err)
	}

	return filepath.Join(configDir, configDirName), nil
}

func ConfigPath() (string, error) {
	configDir, err := ConfigDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, configFileName), nil
}

func EnvPath() (string, error) {
	configDir, err := ConfigDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, envFileName), nil
}

// LoadEnv loads the .env file next to the config. Variables already set in
// the environment win.
func LoadEnv() error {
	envPath, err := EnvPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(envPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("unable to read env file: %w", err)
	}

	if err := godotenv.Load(envPath); err != nil {
		return fmt.Errorf("unable to parse env file: %w", err)
	}

	return nil
}

func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if err := LoadEnv(); err != nil {
		return cfg, err
	}

	configPath, err := ConfigPath()
	if err != nil {
		return cfg, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return ApplyEnv(cfg), nil
		}
		return cfg, fmt.Errorf("unable to read config: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("unable to parse config: %w", err)
	}

	return ApplyEnv(cfg), nil
}

func SaveConfig(cfg Config) error {
	configPath, err := ConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("unable to create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("unable to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("unable to write config: %w", err)
	}

	return nil
}

// ApplyEnv overrides cfg with any ARCHIVE_SCOUT_* variables that are set.
// Unparseable numbers are ignored.
func ApplyEnv(cfg Config) Config {
	if value := env("ARCHIVE_SCOUT_ORIGIN"); value != "" {
		cfg.Origin = value
	}
	if value, ok := envInt("ARCHIVE_SCOUT_POOL_WIDTH"); ok {
		cfg.PoolWidth = value
	}
	if value, ok := envInt("ARCHIVE_SCOUT_ROWS"); ok {
		cfg.Rows = value
	}
	if value := env("ARCHIVE_SCOUT_CACHE_BACKEND"); value != "" {
		cfg.CacheBackend = strings.ToLower(value)
	}
	if value := env("ARCHIVE_SCOUT_CACHE_PATH"); value != "" {
		cfg.CachePath = value
	}
	if value := env("ARCHIVE_SCOUT_REDIS_ADDR"); value != "" {
		cfg.RedisAddr = value
	}
	if value := env("ARCHIVE_SCOUT_REDIS_PASSWORD"); value != "" {
		cfg.RedisPassword = value
	}
	if value := env("ARCHIVE_SCOUT_DOWNLOAD_DIR"); value != "" {
		cfg.DownloadDir = value
	}
	if value := env("ARCHIVE_SCOUT_LOG_LEVEL"); value != "" {
		cfg.LogLevel = value
	}
	if value := env("ARCHIVE_SCOUT_VERBOSE"); value != "" {
		cfg.Verbose = value == "1" || strings.EqualFold(value, "true")
	}
	if value, ok := envInt("ARCHIVE_SCOUT_REQUEST_TIMEOUT"); ok {
		cfg.RequestTimeoutSeconds = value
	}

	return cfg
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envInt(key string) (int, bool) {
	value := env(key)
	if value == "" {
		return 0, false
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

func (cfg Config) CancelGrace() time.Duration {
	return time.Duration(cfg.CancelGraceSeconds) * time.Second
}

// RequestTimeout is zero, meaning no timeout, unless configured.
func (cfg Config) RequestTimeout() time.Duration {
	return time.Duration(cfg.RequestTimeoutSeconds) * time.Second
}

// ResolveDownloadDir falls back to ~/Downloads/archive-scout.
func (cfg Config) ResolveDownloadDir() (string, error) {
	if cfg.DownloadDir != "" {
		return cfg.DownloadDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("unable to resolve home dir: %w", err)
	}
	return filepath.Join(home, "Downloads", configDirName), nil
}

func (cfg Config) Validate() error {
	parsed, err := url.Parse(cfg.Origin)
	if err != nil {
		return fmt.Errorf("invalid origin: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("origin must be an http or https url")
	}
	if parsed.Host == "" {
		return errors.New("origin missing host")
	}
	if cfg.PoolWidth <= 0 {
		return errors.New("pool width must be positive")
	}
	if cfg.Rows <= 0 {
		return errors.New("rows per page must be positive")
	}
	if cfg.RequestTimeoutSeconds < 0 {
		return errors.New("request timeout cannot be negative")
	}

	switch cfg.CacheBackend {
	case CacheBackendBolt, CacheBackendMemory:
	case CacheBackendRedis:
		if cfg.RedisAddr == "" {
			return errors.New("redis cache backend requires redis_addr")
		}
	default:
		return fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}

	return nil
}
