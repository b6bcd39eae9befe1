// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"strings"

	"github.com/luxfi/dock"
	"github.com/spf13/cobra"
)

var (
	// Set via ldflags at build time
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "dock %s\n", version)
		fmt.Fprintf(cmd.OutOrStdout(), "  commit:     %s\n", commit)
		fmt.Fprintf(cmd.OutOrStdout(), "  built:      %s\n", buildDate)
		fmt.Fprintf(cmd.OutOrStdout(), "  protocol:   %s\n", dock.DefaultVersion)
		fmt.Fprintf(cmd.OutOrStdout(), "  transports: %s\n", strings.Join(dock.AvailableTransports(), ", "))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
