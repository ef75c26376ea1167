// Copyright 2025 The Terroir Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Chdir(dir)

	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "data/wines.json", cfg.Input)
	assert.Equal(t, "data/geocoded_locations.json", cfg.Output)
	assert.InDelta(t, 50.0, cfg.ThresholdKm, 0)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, "https://nominatim.openstreetmap.org", cfg.Nominatim.BaseURL)
	assert.Equal(t, 1100*time.Millisecond, cfg.Nominatim.MinInterval)
	assert.Equal(t, 10*time.Second, cfg.Nominatim.Timeout)
	assert.Equal(t, 3, cfg.Nominatim.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Nominatim.Backoff)
	assert.Equal(t, "https://en.wikipedia.org", cfg.Wikipedia.BaseURL)
	assert.Equal(t, 200*time.Millisecond, cfg.Wikipedia.MinInterval)
	assert.Equal(t, 20*time.Second, cfg.Wikipedia.Timeout)
	assert.True(t, cfg.Wikipedia.Memoize)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
threshold_km: 25
workers: 4
nominatim:
  base_url: http://localhost:7070
  min_interval: 2s
wikipedia:
  memoize: false
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "terroir.yaml"), []byte(yaml), 0o600))

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.InDelta(t, 25.0, cfg.ThresholdKm, 0)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "http://localhost:7070", cfg.Nominatim.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.Nominatim.MinInterval)
	assert.False(t, cfg.Wikipedia.Memoize)
	assert.Equal(t, "json", cfg.Log.Format)
	// untouched keys keep their defaults
	assert.Equal(t, 3, cfg.Nominatim.MaxAttempts)
}

func TestLoadExplicitFileMissing(t *testing.T) {
	dir := chdirTemp(t)

	_, err := Load(filepath.Join(dir, "nope.yaml"), nil)
	require.Error(t, err)
}

func TestLoadEnvOverride(t *testing.T) {
	chdirTemp(t)

	t.Setenv("TERROIR_THRESHOLD_KM", "75")
	t.Setenv("TERROIR_NOMINATIM_BASE_URL", "http://nominatim.local")
	t.Setenv("TERROIR_LOG_LEVEL", "warn")

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.InDelta(t, 75.0, cfg.ThresholdKm, 0)
	assert.Equal(t, "http://nominatim.local", cfg.Nominatim.BaseURL)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadFlagsWin(t *testing.T) {
	chdirTemp(t)

	t.Setenv("TERROIR_WORKERS", "3")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("workers", 1, "")
	flags.Float64("threshold", 50, "")
	flags.String("db", "", "")
	require.NoError(t, flags.Parse([]string{"--workers", "8", "--db", "x.duckdb"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "x.duckdb", cfg.DBPath)
	// an unset flag doesn't shadow the default
	assert.InDelta(t, 50.0, cfg.ThresholdKm, 0)
}

func TestValidate(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load("", nil)
	require.NoError(t, err)

	cfg.ThresholdKm = 0
	cfg.Workers = 0
	cfg.UserAgent = " "
	cfg.Nominatim.MinInterval = 0
	cfg.Log.Format = "xml"

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "threshold_km")
	assert.Contains(t, err.Error(), "workers")
	assert.Contains(t, err.Error(), "user_agent")
	assert.Contains(t, err.Error(), "nominatim.min_interval")
	assert.Contains(t, err.Error(), "log.format")
}

func TestInitLogger(t *testing.T) {
	logger, err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.Same(t, logger, zap.L())

	_, err = InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)

	_, err = InitLogger(LogConfig{Level: "loud", Format: "json"})
	require.Error(t, err)

	t.Cleanup(func() { zap.ReplaceGlobals(zap.NewNop()) })
}
