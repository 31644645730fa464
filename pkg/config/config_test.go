package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalsync/vitalsync/pkg/types"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// TestLoadDefaults tests that an empty path yields pure defaults
func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "bolt", cfg.Storage)
	assert.Equal(t, 2*time.Second, cfg.Drainer.Interval.Std())
	assert.Equal(t, 10, cfg.Drainer.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Drainer.MinCallInterval.Std())
	assert.Equal(t, 8, cfg.Drainer.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Reconciler.TieTolerance.Std())
	assert.Equal(t, ":9464", cfg.Listen)
}

// TestLoadFile tests YAML overlay on defaults
func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
dataDir: /tmp/vitalsync-test
storage: memory
remote:
  baseURL: https://api.example.com
  timeout: 10s
drainer:
  batchSize: 25
  minCallInterval: 250ms
log:
  level: debug
  json: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/vitalsync-test", cfg.DataDir)
	assert.Equal(t, "memory", cfg.Storage)
	assert.Equal(t, "https://api.example.com", cfg.Remote.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Remote.Timeout.Std())
	assert.Equal(t, 25, cfg.Drainer.BatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Drainer.MinCallInterval.Std())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.Log.JSON)

	// Untouched fields keep their defaults
	assert.Equal(t, 2*time.Second, cfg.Drainer.Interval.Std())
	require.NoError(t, cfg.Validate())
}

// TestLoadMissingFile tests the error path
func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/does/not/exist.yaml")
	assert.Error(t, err)
}

// TestValidate tests rejection of unusable configurations
func TestValidate(t *testing.T) {
	valid := Default()
	valid.Remote.BaseURL = "https://api.example.com"
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "missing base url", mutate: func(c *Config) { c.Remote.BaseURL = "" }},
		{name: "missing data dir", mutate: func(c *Config) { c.DataDir = "" }},
		{name: "unknown storage", mutate: func(c *Config) { c.Storage = "cassandra" }},
		{name: "zero batch size", mutate: func(c *Config) { c.Drainer.BatchSize = 0 }},
		{name: "zero max attempts", mutate: func(c *Config) { c.Drainer.MaxAttempts = 0 }},
		{name: "bad metric class", mutate: func(c *Config) {
			c.Reconciler.Classes = map[string]string{"water": "sometimes"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Remote.BaseURL = "https://api.example.com"
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

// TestMetricClasses tests overlaying class overrides on the defaults
func TestMetricClasses(t *testing.T) {
	path := writeConfig(t, `
dataDir: /tmp/vitalsync-test
remote:
  baseURL: https://api.example.com
reconciler:
  classes:
    water: current_state
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	classes := cfg.MetricClasses()
	assert.Equal(t, types.ClassCurrentState, classes[types.MetricWater])
	// Defaults survive for kinds not overridden
	assert.Equal(t, types.ClassCurrentState, classes[types.MetricWeight])
	assert.Equal(t, types.ClassTimeSeries, classes[types.MetricSteps])
}
