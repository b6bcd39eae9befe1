// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dock

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dock.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("DOCK_TEST_PORT", "9090")
	path := writeConfig(t, `
version: "0.1.0"
address: "127.0.0.1:${DOCK_TEST_PORT}"
transport: jsonrpc
failure_policy: keep_serving
logging:
  level: debug
  format: json
metrics:
  enabled: true
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "0.1.0", cfg.Version)
	assert.Equal(t, "127.0.0.1:9090", cfg.Address)
	assert.Equal(t, TransportJSONRPC, cfg.Transport)
	assert.Equal(t, "keep_serving", cfg.FailurePolicy)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Metrics.Enabled)

	// Unset keys keep their defaults.
	assert.Equal(t, "schemas", cfg.SchemaDir)
	assert.Equal(t, DefaultMetricsPath, cfg.Metrics.Path)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config")

	_, err = LoadConfig(writeConfig(t, "version: [unterminated"))
	assert.ErrorContains(t, err, "parse config")

	_, err = LoadConfig(writeConfig(t, "failure_policy: retry\nlogging:\n  level: loud\n"))
	require.ErrorContains(t, err, "validate config")
	assert.ErrorContains(t, err, "unknown failure policy")
	assert.ErrorContains(t, err, "logging level")
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty version", func(c *Config) { c.Version = "" }},
		{"empty address", func(c *Config) { c.Address = "" }},
		{"unknown transport", func(c *Config) { c.Transport = "smoke" }},
		{"bad policy", func(c *Config) { c.FailurePolicy = "sometimes" }},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "warn", "json")
	require.NoError(t, err)

	logger.Info().Msg("hidden")
	logger.Warn().Str("request", "/ping").Msg("shown")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["message"])
	assert.Equal(t, "/ping", entry["request"])
	assert.Contains(t, entry, zerolog.TimestampFieldName)

	buf.Reset()
	logger, err = NewLogger(&buf, "", "console")
	require.NoError(t, err)
	logger.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.False(t, json.Valid(buf.Bytes()))

	_, err = NewLogger(&buf, "loud", "json")
	assert.Error(t, err)
}
