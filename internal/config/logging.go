package config

import (
	"path/filepath"

	"gdlmap/internal/logging"
)

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level" json:"level,omitempty"`                     // debug, info, warn, error
	Format     string          `yaml:"format" json:"format,omitempty"`                   // json, text
	Dir        string          `yaml:"dir" json:"dir,omitempty"`                         // category log directory
	DebugMode  bool            `yaml:"debug_mode" json:"debug_mode,omitempty"`           // Master toggle - false = no file logging
	Categories map[string]bool `yaml:"categories,omitempty" json:"categories,omitempty"` // Per-category toggles
}

// Options converts the section into logging options. A relative Dir is
// resolved against workspace.
func (c *LoggingConfig) Options(workspace string) logging.Options {
	dir := c.Dir
	if dir != "" && !filepath.IsAbs(dir) && workspace != "" {
		dir = filepath.Join(workspace, dir)
	}
	return logging.Options{
		Dir:        dir,
		DebugMode:  c.DebugMode,
		Level:      c.Level,
		JSONFormat: c.Format == "json",
		Categories: c.Categories,
	}
}
