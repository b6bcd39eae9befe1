// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/luxfi/dock"
	"github.com/spf13/cobra"
)

var schemaOut string

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Write schema files for the demo requests",
	Long: `Generate <name>.schema.json for every demo request from its Go types.

Examples:
  dock schema
  dock schema --out ./schemas`,
	RunE: runSchema,
}

func init() {
	rootCmd.AddCommand(schemaCmd)

	schemaCmd.Flags().StringVarP(&schemaOut, "out", "o", "", "output directory (default: schema_dir from config)")
}

// demoSchemas pairs each demo request with the Go values its schema
// document is reflected from.
var demoSchemas = []struct {
	name     string
	request  interface{}
	response interface{}
}{
	{pingName, Greeting(""), PingResponse{}},
	{logLikelihoodName, LikelihoodRequest{}, LikelihoodResponse{}},
}

func runSchema(cmd *cobra.Command, args []string) error {
	out := schemaOut
	if out == "" {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}
		out = cfg.SchemaDir
	}
	return writeSchemas(out, func(path string) {
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	})
}

func writeSchemas(dir string, written func(path string)) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create schema dir: %w", err)
	}
	for _, s := range demoSchemas {
		doc, err := dock.SchemaDocumentFor(s.request, s.response)
		if err != nil {
			return fmt.Errorf("generate schema for %s: %w", s.name, err)
		}
		path := filepath.Join(dir, strings.TrimPrefix(s.name, "/")+dock.SchemaSuffix)
		if err := os.WriteFile(path, append(doc, '\n'), 0o644); err != nil {
			return fmt.Errorf("write schema: %w", err)
		}
		written(path)
	}
	return nil
}
