package main

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/ssh-vom/archive-scout/internal/app"
	"github.com/ssh-vom/archive-scout/internal/cache"
	"github.com/ssh-vom/archive-scout/internal/config"
	"github.com/ssh-vom/archive-scout/internal/fetch"
	"github.com/ssh-vom/archive-scout/internal/history"
	"github.com/ssh-vom/archive-scout/internal/logger"
	"github.com/ssh-vom/archive-scout/internal/metrics"
	"github.com/ssh-vom/archive-scout/internal/providers/archive"
)

type dependencies struct {
	config       config.Config
	log          logger.Logger
	registry     *prometheus.Registry
	store        cache.Cache
	orchestrator *fetch.Orchestrator
	downloader   *app.Downloader
	history      *history.Store
}

func loadConfig(flags *globalFlags) (config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return cfg, fmt.Errorf("error loading config: %w", err)
	}
	if flags.verbose {
		cfg.Verbose = true
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	} else if cfg.Verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg config.Config, output io.Writer) logger.Logger {
	if output == nil {
		output = os.Stderr
	}
	return logger.New(logger.Config{Level: cfg.LogLevel, Console: true, Output: output})
}

func buildDependencies(cfg config.Config, log logger.Logger) (*dependencies, error) {
	store, err := openCache(cfg, log)
	if err != nil {
		return nil, err
	}

	downloadDir, err := cfg.ResolveDownloadDir()
	if err != nil {
		store.Close()
		return nil, err
	}

	historyPath, err := history.DefaultPath()
	if err != nil {
		store.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	instruments := metrics.New(registry)
	httpClient := &http.Client{Timeout: cfg.RequestTimeout()}

	provider := archive.New(httpClient, cfg.Origin,
		archive.WithRows(cfg.Rows),
		archive.WithLogger(log),
		archive.WithMetrics(instruments),
	)

	orchestrator := fetch.New(provider, provider, store,
		fetch.WithPoolWidth(cfg.PoolWidth),
		fetch.WithCancelGrace(cfg.CancelGrace()),
		fetch.WithLogger(log),
		fetch.WithMetrics(instruments),
	)

	return &dependencies{
		config:       cfg,
		log:          log,
		registry:     registry,
		store:        store,
		orchestrator: orchestrator,
		downloader:   app.NewDownloader(&http.Client{}, downloadDir, log),
		history:      history.NewStore(historyPath),
	}, nil
}

func openCache(cfg config.Config, log logger.Logger) (cache.Cache, error) {
	switch cfg.CacheBackend {
	case config.CacheBackendMemory:
		return cache.NewMemory(), nil
	case config.CacheBackendRedis:
		client, err := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, 0)
		if err != nil {
			return nil, err
		}
		return cache.NewRedis(client, cache.DefaultRedisPrefix, log), nil
	default:
		path := cfg.CachePath
		if path == "" {
			defaultPath, err := cache.DefaultPath()
			if err != nil {
				return nil, err
			}
			path = defaultPath
		}
		return cache.OpenBolt(path, log)
	}
}

func (deps *dependencies) Close() {
	if err := deps.store.Close(); err != nil {
		deps.log.Warn("Unable to close cache", logger.Error(err))
	}
	_ = deps.log.Sync()
}
