package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"gdlmap/internal/analogy"
)

// Config holds all gdlmap configuration.
type Config struct {
	// Scoring model and search limits
	Mapper MapperConfig `yaml:"mapper"`

	// GDL parsing
	Parser ParserConfig `yaml:"parser"`

	// Parallel jobs (sweeps, manifests)
	Batch BatchConfig `yaml:"batch"`

	// Mangle dependency analysis
	Analysis AnalysisConfig `yaml:"analysis"`

	// Run history database
	Store StoreConfig `yaml:"store"`

	// File watching
	Watch WatchConfig `yaml:"watch"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// StoreConfig configures the run history database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// WatchConfig configures the watch command.
type WatchConfig struct {
	Debounce string `yaml:"debounce"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Mapper: DefaultMapperConfig(),

		Parser: ParserConfig{
			MaxDepth:   256,
			AllowEmpty: true,
			Grammar:    "extended",
		},

		Batch: DefaultBatchConfig(),

		Analysis: AnalysisConfig{
			DerivedFactLimit: 100000,
			QueryTimeout:     "10s",
		},

		Store: StoreConfig{
			Path: ".gdlmap/history.db",
		},

		Watch: WatchConfig{
			Debounce: "300ms",
		},

		Logging: LoggingConfig{
			Level:     "info",
			Format:    "text",
			Dir:       ".gdlmap/logs",
			DebugMode: false,
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides. Unparseable
// numeric values are ignored.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GDLMAP_NUM_BINS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Mapper.NumBins = n
		}
	}
	if v := os.Getenv("GDLMAP_NUM_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Mapper.Weights.NumRetries = n
		}
	}
	if v := os.Getenv("GDLMAP_ALLOW_PARTIAL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Mapper.Weights.AllowPartialMaps = b
		}
	}
	if v := os.Getenv("GDLMAP_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Batch.Workers = n
		}
	}

	// Database path from environment
	if path := os.Getenv("GDLMAP_DB"); path != "" {
		c.Store.Path = path
	}

	if level := os.Getenv("GDLMAP_LOG_LEVEL"); level != "" {
		c.Logging.Level = strings.ToLower(level)
	}
}

// GetQueryTimeout returns the Mangle evaluation timeout as a duration.
func (c *Config) GetQueryTimeout() time.Duration {
	d, err := time.ParseDuration(c.Analysis.QueryTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// GetWatchDebounce returns the watch debounce as a duration.
func (c *Config) GetWatchDebounce() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil || d <= 0 {
		return 300 * time.Millisecond
	}
	return d
}

// GetJobTimeout returns the per-job batch timeout, or 0 for none.
func (c *Config) GetJobTimeout() time.Duration {
	if c.Batch.JobTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Batch.JobTimeout)
	if err != nil {
		return 0
	}
	return d
}

// ValidLogLevels lists the accepted logging levels.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// Validate validates the configuration. Scoring problems are reported as
// *analogy.ConfigError.
func (c *Config) Validate() error {
	if _, err := c.MapperOptions(); err != nil {
		return err
	}
	if c.Parser.MaxDepth < 1 {
		return &analogy.ConfigError{Field: "parser.max_depth", Value: c.Parser.MaxDepth, Reason: "must be at least 1"}
	}
	if _, err := c.Parser.grammar(); err != nil {
		return err
	}
	if c.Batch.Workers < 1 {
		return &analogy.ConfigError{Field: "batch.workers", Value: c.Batch.Workers, Reason: "must be at least 1"}
	}
	if c.Analysis.DerivedFactLimit < 1 {
		return &analogy.ConfigError{Field: "analysis.derived_fact_limit", Value: c.Analysis.DerivedFactLimit, Reason: "must be at least 1"}
	}

	validLevel := false
	for _, l := range ValidLogLevels {
		if c.Logging.Level == l {
			validLevel = true
			break
		}
	}
	if !validLevel {
		return fmt.Errorf("invalid log level: %s (valid: %v)", c.Logging.Level, ValidLogLevels)
	}

	return nil
}
