// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"os"

	"github.com/luxfi/dock"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dock",
	Short: "Paired JSON request/response server and client",
	Long: `dock pairs two processes over named JSON messages.

The server validates every request and response against a JSON-Schema
contract and stops on the first failure. The client checks its version
against the server once, then sends messages and blocks on each reply.

Quick start:
  dock serve        # Serve /ping and /log_likelihood on localhost:8080
  dock client       # Send both requests in a loop
  dock schema       # Write schema files for the demo requests`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "dock.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")
}

// loadConfig reads the config file when it exists and falls back to
// defaults otherwise.
func loadConfig() (*dock.Config, error) {
	cfg := dock.DefaultConfig()
	if _, err := os.Stat(cfgFile); err == nil {
		if cfg, err = dock.LoadConfig(cfgFile); err != nil {
			return nil, err
		}
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func newLogger(cfg *dock.Config) (zerolog.Logger, error) {
	return dock.NewLogger(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
}
