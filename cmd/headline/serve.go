package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/headline-dev/headline/pkg/server"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		listen     string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the news HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}

			svc, _, cleanup, err := openService(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logrus.WithFields(logrus.Fields{
				"config":    configPath,
				"freshness": cfg.Cache.Freshness,
				"coalesce":  cfg.Cache.Coalesce,
				"fetch_log": cfg.FetchLog.Enabled,
			}).Info("starting headline")
			return server.New(cfg.Listen, svc).ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (defaults only when empty)")
	cmd.Flags().StringVar(&listen, "listen", "", "override the listen address")
	return cmd
}
