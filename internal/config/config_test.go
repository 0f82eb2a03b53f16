package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gdlmap/internal/analogy"
	"gdlmap/internal/gdl"
)

// =============================================================================
// UNIFIED CONFIG TESTS
// =============================================================================

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"GDLMAP_NUM_BINS", "GDLMAP_NUM_RETRIES", "GDLMAP_ALLOW_PARTIAL", "GDLMAP_WORKERS", "GDLMAP_DB", "GDLMAP_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Mapper.NumBins != 2 {
		t.Errorf("expected NumBins=2, got %d", cfg.Mapper.NumBins)
	}
	if cfg.Mapper.Weights != analogy.DefaultWeights() {
		t.Errorf("expected default weights, got %+v", cfg.Mapper.Weights)
	}
	if cfg.Batch.Workers < 2 || cfg.Batch.Workers > 8 {
		t.Errorf("expected 2..8 workers, got %d", cfg.Batch.Workers)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "nested", "gdlmap.yaml")

	cfg := DefaultConfig()
	cfg.Mapper.NumBins = 5
	cfg.Mapper.Weights.AllowPartialMaps = true
	cfg.Mapper.Weights.HeadScoreFactor = 3.5
	cfg.Mapper.BodyMatcher = "positional"
	cfg.Store.Path = "/tmp/runs.db"

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "gdlmap.yaml")
	yaml := `
mapper:
  num_bins: 4
  weights:
    matched_rule_mult: 1.5
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Mapper.NumBins)
	assert.Equal(t, 1.5, cfg.Mapper.Weights.MatchedRuleMult)
	assert.Equal(t, 2.0, cfg.Mapper.Weights.HeadScoreFactor, "unset weights keep their defaults")
	assert.Equal(t, "300ms", cfg.Watch.Debounce)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mapper: [unclosed"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("GDLMAP_NUM_BINS", "6")
	t.Setenv("GDLMAP_NUM_RETRIES", "3")
	t.Setenv("GDLMAP_ALLOW_PARTIAL", "true")
	t.Setenv("GDLMAP_WORKERS", "12")
	t.Setenv("GDLMAP_DB", "/data/history.db")
	t.Setenv("GDLMAP_LOG_LEVEL", "DEBUG")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, 6, cfg.Mapper.NumBins)
	assert.Equal(t, 3, cfg.Mapper.Weights.NumRetries)
	assert.True(t, cfg.Mapper.Weights.AllowPartialMaps)
	assert.Equal(t, 12, cfg.Batch.Workers)
	assert.Equal(t, "/data/history.db", cfg.Store.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestConfig_EnvOverridesIgnoreGarbage(t *testing.T) {
	clearEnv(t)
	t.Setenv("GDLMAP_NUM_BINS", "many")
	t.Setenv("GDLMAP_ALLOW_PARTIAL", "perhaps")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, 2, cfg.Mapper.NumBins)
	assert.False(t, cfg.Mapper.Weights.AllowPartialMaps)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Config)
		field string
	}{
		{"zero bins", func(c *Config) { c.Mapper.NumBins = 0 }, "num_bins"},
		{"negative retries", func(c *Config) { c.Mapper.Weights.NumRetries = -1 }, "num_retries"},
		{"negative weight", func(c *Config) { c.Mapper.Weights.BinMismatchMult = -0.5 }, "bin_mismatch_mult"},
		{"unknown matcher", func(c *Config) { c.Mapper.BodyMatcher = "optimal" }, "body_matcher"},
		{"zero depth", func(c *Config) { c.Parser.MaxDepth = 0 }, "parser.max_depth"},
		{"unknown grammar", func(c *Config) { c.Parser.Grammar = "kif" }, "parser.grammar"},
		{"zero workers", func(c *Config) { c.Batch.Workers = 0 }, "batch.workers"},
		{"zero fact limit", func(c *Config) { c.Analysis.DerivedFactLimit = 0 }, "analysis.derived_fact_limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.edit(cfg)
			err := cfg.Validate()

			var ce *analogy.ConfigError
			require.True(t, errors.As(err, &ce), "want *ConfigError, got %v", err)
			assert.Equal(t, tt.field, ce.Field)
		})
	}

	cfg := DefaultConfig()
	cfg.Logging.Level = "verbose"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestConfig_MapperOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mapper.MaxEvaluationsPerPass = 500
	cfg.Mapper.BodyMatcher = "positional"

	opts, err := cfg.MapperOptions()
	require.NoError(t, err)
	assert.Equal(t, 2, opts.NumBins)
	assert.Equal(t, 500, opts.MaxEvaluationsPerPass)
	assert.IsType(t, analogy.PositionalMatcher{}, opts.Matcher)

	opts, err = cfg.MapperOptionsFor(7)
	require.NoError(t, err)
	assert.Equal(t, 7, opts.NumBins)

	_, err = cfg.MapperOptionsFor(0)
	var ce *analogy.ConfigError
	require.ErrorAs(t, err, &ce)
}

func TestConfig_Durations(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "300ms", cfg.GetWatchDebounce().String())
	assert.Zero(t, cfg.GetJobTimeout())

	cfg.Watch.Debounce = "nonsense"
	cfg.Batch.JobTimeout = "2s"
	cfg.Analysis.QueryTimeout = ""
	assert.Equal(t, "300ms", cfg.GetWatchDebounce().String())
	assert.Equal(t, "2s", cfg.GetJobTimeout().String())
	assert.Equal(t, "10s", cfg.GetQueryTimeout().String())
}

func TestParserConfig_ParseOptions(t *testing.T) {
	p := ParserConfig{MaxDepth: 3, AllowEmpty: true, Grammar: "basic"}

	ir, err := gdl.ParseString("; nothing", p.ParseOptions()...)
	require.NoError(t, err)
	assert.True(t, ir.Empty())

	_, err = gdl.ParseString("(a (b (c (d))))", p.ParseOptions()...)
	assert.ErrorIs(t, err, gdl.ErrMaxDepth)

	ir, err = gdl.ParseString("(a x.y)", p.ParseOptions()...)
	require.NoError(t, err)
	require.Len(t, ir.Diagnostics, 1, "'.' is not a name character in the basic grammar")
}

func TestLoggingConfig_Options(t *testing.T) {
	c := LoggingConfig{Dir: "logs", Format: "json", DebugMode: true, Level: "debug"}
	o := c.Options("/work")
	assert.Equal(t, filepath.Join("/work", "logs"), o.Dir)
	assert.True(t, o.JSONFormat)
	assert.True(t, o.DebugMode)

	c.Dir = "/abs/logs"
	assert.Equal(t, "/abs/logs", c.Options("/work").Dir)
}

func TestLoggingConfig_CategoriesFromYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "gdlmap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logging:
  debug_mode: true
  categories:
    mapper: false
    parser: true
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	o := cfg.Logging.Options("/work")
	assert.Equal(t, map[string]bool{"mapper": false, "parser": true}, o.Categories)
	assert.True(t, o.DebugMode)
}
