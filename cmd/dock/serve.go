// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/luxfi/dock"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the demo requests",
	Long: `Serve /ping and /log_likelihood.

Schemas are read from <schema_dir>/<name>.schema.json. The server stops
after the first failed request unless failure_policy is keep_serving, and
always stops when a client presents a different version.

Examples:
  dock serve
  dock serve --config /etc/dock/dock.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	d, err := dock.NewFromConfig(cfg, dock.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := registerHandlers(d, logger); err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return serve(ctx, d)
}

func serve(ctx context.Context, d *dock.Dock) error {
	defer d.Close()
	return d.StartServer(ctx)
}
