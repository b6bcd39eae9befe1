// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/luxfi/dock"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	sendCount    int
	sendInterval time.Duration
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Send the demo requests in a loop",
	Long: `Check the version against the server, then send /ping and
/log_likelihood every --interval. Any failed request ends the process.

Examples:
  dock client
  dock client --count 3 --interval 100ms`,
	RunE: runClient,
}

func init() {
	rootCmd.AddCommand(clientCmd)

	clientCmd.Flags().IntVar(&sendCount, "count", 0, "number of rounds to send (0 sends until interrupted)")
	clientCmd.Flags().DurationVar(&sendInterval, "interval", time.Second, "pause between rounds")
}

func runClient(cmd *cobra.Command, args []string) error {
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
	defer d.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := d.StartClient(ctx); err != nil {
		return err
	}
	return sendLoop(ctx, d, logger, sendCount, sendInterval)
}

// sendLoop sends one ping and one likelihood query per round. count <= 0
// loops until ctx is done.
func sendLoop(ctx context.Context, d *dock.Dock, logger zerolog.Logger, count int, interval time.Duration) error {
	query := demoLikelihoodRequest()
	for round := 0; count <= 0 || round < count; round++ {
		var pong PingResponse
		if err := d.SendInto(ctx, pingName, Greeting("Hello! :)"), &pong); err != nil {
			return err
		}
		var result LikelihoodResponse
		if err := d.SendInto(ctx, logLikelihoodName, query, &result); err != nil {
			return err
		}
		logger.Info().
			Str("ping", pong.Message).
			Float64("log_likelihood", result.LogLikelihood).
			Uint64("request_counter", d.Count()).
			Msg("round complete")

		if count > 0 && round == count-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
	return nil
}
