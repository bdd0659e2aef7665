package main

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/headline-dev/headline/pkg/cache"
	"github.com/headline-dev/headline/pkg/category"
	"github.com/headline-dev/headline/pkg/config"
	"github.com/headline-dev/headline/pkg/content"
	"github.com/headline-dev/headline/pkg/fetchlog"
	"github.com/headline-dev/headline/pkg/upstream"
)

// loadConfig reads the config file and applies its logging settings.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := configureLogging(cfg.Log); err != nil {
		return nil, err
	}
	return cfg, nil
}

func configureLogging(cfg config.LogConfig) error {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	logrus.SetLevel(level)
	if cfg.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}

// openService builds the content service and, when enabled, the fetch log.
// The returned cleanup closes both, service first.
func openService(cfg *config.Config) (*content.Service, *fetchlog.Logger, func(), error) {
	pool := upstream.NewPool(upstream.PoolConfig{
		Timeout:            cfg.Upstream.Timeout,
		MaxConnections:     cfg.Upstream.MaxConnections,
		MaxIdleConnections: cfg.Upstream.MaxIdleConnections,
	})

	opts := content.Options{
		APIKey:   cfg.Upstream.APIKey,
		Language: cfg.Upstream.Language,
		Coalesce: cfg.Cache.Coalesce,
		Closer:   pool,
	}

	var fl *fetchlog.Logger
	if cfg.FetchLog.Enabled {
		var err error
		fl, err = fetchlog.New(cfg.FetchLog.DBPath, cfg.FetchLog.RetentionDays)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("init fetch log: %w", err)
		}
		opts.Recorder = fl
	}

	svc := content.New(
		cache.New(cfg.Cache.Freshness),
		category.New(cfg.Categories),
		upstream.NewClient(pool, cfg.Upstream.URL),
		opts,
	)

	cleanup := func() {
		if err := svc.Close(); err != nil {
			logrus.WithError(err).Warn("close content service")
		}
		if fl != nil {
			if err := fl.Close(); err != nil {
				logrus.WithError(err).Warn("close fetch log")
			}
		}
	}
	return svc, fl, cleanup, nil
}
