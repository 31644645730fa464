package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vitalsync/vitalsync/pkg/types"
)

// Duration wraps time.Duration so YAML accepts "500ms"-style strings
type Duration time.Duration

// Std returns the wrapped time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// UnmarshalYAML parses a Go duration string
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %v", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration as a string
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Config is the top-level agent configuration loaded from YAML
type Config struct {
	// DataDir holds the local database and the persisted session
	DataDir string `yaml:"dataDir"`

	// Storage selects the store backend: "bolt" (default) or "memory"
	Storage string `yaml:"storage"`

	// Remote configures the backend API
	Remote RemoteConfig `yaml:"remote"`

	// Drainer configures outbox delivery
	Drainer DrainerConfig `yaml:"drainer"`

	// Health configures remote reachability probing
	Health HealthConfig `yaml:"health"`

	// Log configures structured logging
	Log LogConfig `yaml:"log"`

	// Listen is the address for the metrics and health HTTP endpoints
	Listen string `yaml:"listen"`

	// Reconciler configures read-time source merging
	Reconciler ReconcilerConfig `yaml:"reconciler"`
}

// RemoteConfig configures the backend API connection
type RemoteConfig struct {
	BaseURL   string   `yaml:"baseURL"`
	Timeout   Duration `yaml:"timeout"`
	UserAgent string   `yaml:"userAgent"`
}

// DrainerConfig configures outbox delivery pacing and retry behavior
type DrainerConfig struct {
	Interval        Duration `yaml:"interval"`
	BatchSize       int      `yaml:"batchSize"`
	MinCallInterval Duration `yaml:"minCallInterval"`
	MaxAttempts     int      `yaml:"maxAttempts"`
	BackoffBase     Duration `yaml:"backoffBase"`
	BackoffCap      Duration `yaml:"backoffCap"`
	Lease           Duration `yaml:"lease"`
}

// HealthConfig configures the remote reachability monitor
type HealthConfig struct {
	Interval Duration `yaml:"interval"`
	Timeout  Duration `yaml:"timeout"`
	Retries  int      `yaml:"retries"`
	// Path is probed relative to the remote base URL
	Path string `yaml:"path"`
}

// LogConfig configures structured logging output
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// ReconcilerConfig configures read-time merging
type ReconcilerConfig struct {
	TieTolerance Duration `yaml:"tieTolerance"`

	// Classes overrides the built-in kind classification, mapping a
	// metric kind to "current_state" or "time_series"
	Classes map[string]string `yaml:"classes"`
}

// Default returns a Config with sensible defaults
func Default() Config {
	return Config{
		DataDir: "/var/lib/vitalsync",
		Storage: "bolt",
		Remote: RemoteConfig{
			Timeout:   Duration(30 * time.Second),
			UserAgent: "vitalsync-agent",
		},
		Drainer: DrainerConfig{
			Interval:        Duration(2 * time.Second),
			BatchSize:       10,
			MinCallInterval: Duration(500 * time.Millisecond),
			MaxAttempts:     8,
			BackoffBase:     Duration(time.Second),
			BackoffCap:      Duration(5 * time.Minute),
			Lease:           Duration(time.Minute),
		},
		Health: HealthConfig{
			Interval: Duration(30 * time.Second),
			Timeout:  Duration(10 * time.Second),
			Retries:  3,
			Path:     "/health",
		},
		Log: LogConfig{
			Level: "info",
			JSON:  true,
		},
		Listen: ":9464",
		Reconciler: ReconcilerConfig{
			TieTolerance: Duration(2 * time.Second),
		},
	}
}

// Load reads a YAML config file and merges it over the defaults. An
// empty path returns the defaults unchanged. Callers validate after
// applying their own overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %v", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %v", err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the agent cannot run with
func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("dataDir is required")
	}
	switch c.Storage {
	case "bolt", "memory":
	default:
		return fmt.Errorf("unsupported storage backend: %s", c.Storage)
	}
	if c.Remote.BaseURL == "" {
		return fmt.Errorf("remote.baseURL is required")
	}
	if c.Drainer.BatchSize <= 0 {
		return fmt.Errorf("drainer.batchSize must be positive")
	}
	if c.Drainer.MaxAttempts <= 0 {
		return fmt.Errorf("drainer.maxAttempts must be positive")
	}
	for kind, class := range c.Reconciler.Classes {
		switch types.MetricClass(class) {
		case types.ClassCurrentState, types.ClassTimeSeries:
		default:
			return fmt.Errorf("unsupported class %q for kind %q", class, kind)
		}
	}
	return nil
}

// MetricClasses returns the effective kind classification: the built-in
// defaults overlaid with any configured overrides
func (c Config) MetricClasses() map[types.MetricKind]types.MetricClass {
	classes := types.DefaultClasses()
	for kind, class := range c.Reconciler.Classes {
		classes[types.MetricKind(kind)] = types.MetricClass(class)
	}
	return classes
}
