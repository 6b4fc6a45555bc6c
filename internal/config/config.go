// Package config loads axis configuration from YAML with environment
// overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file read when --config is not given.
const DefaultPath = "axis.yaml"

// Valid log levels and formats.
var (
	ValidLogLevels  = []string{"debug", "info", "warn", "error"}
	ValidLogFormats = []string{"text", "json"}
)

// Config holds all axis configuration.
type Config struct {
	Programs ProgramsConfig `yaml:"programs"`
	Store    StoreConfig    `yaml:"store"`
	Engine   EngineConfig   `yaml:"engine"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ProgramsConfig locates the program catalogue.
type ProgramsConfig struct {
	// Dir holds the CUE program definitions. Empty means the catalogue
	// compiled into the binary.
	Dir string `yaml:"dir"`

	// Debounce is how long Watch waits for edits to settle before reloading.
	Debounce string `yaml:"debounce"`
}

// StoreConfig configures the answer store.
type StoreConfig struct {
	Path string `yaml:"path"` // SQLite file, ":memory:" for a throwaway store
}

// EngineConfig configures activation.
type EngineConfig struct {
	MaxSweeps int `yaml:"max_sweeps"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Programs: ProgramsConfig{
			Debounce: "100ms",
		},
		Store: StoreConfig{
			Path: "axis.db",
		},
		Engine: EngineConfig{
			MaxSweeps: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides apply in both cases.
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

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("AXIS_PROGRAMS_DIR"); dir != "" {
		c.Programs.Dir = dir
	}
	if path := os.Getenv("AXIS_DB"); path != "" {
		c.Store.Path = path
	}
	if v := os.Getenv("AXIS_MAX_SWEEPS"); v != "" {
		// An unparsable value is left for Validate to report.
		if n, err := strconv.Atoi(v); err == nil {
			c.Engine.MaxSweeps = n
		} else {
			c.Engine.MaxSweeps = -1
		}
	}
	if level := os.Getenv("AXIS_LOG_LEVEL"); level != "" {
		c.Logging.Level = strings.ToLower(level)
	}
	if format := os.Getenv("AXIS_LOG_FORMAT"); format != "" {
		c.Logging.Format = strings.ToLower(format)
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Engine.MaxSweeps <= 0 {
		return fmt.Errorf("engine.max_sweeps must be positive, got %d", c.Engine.MaxSweeps)
	}
	if !slices.Contains(ValidLogLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: %v)", c.Logging.Level, ValidLogLevels)
	}
	if !slices.Contains(ValidLogFormats, c.Logging.Format) {
		return fmt.Errorf("invalid log format: %s (valid: %v)", c.Logging.Format, ValidLogFormats)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	if _, err := c.DebounceDuration(); err != nil {
		return err
	}
	return nil
}

// DebounceDuration parses Programs.Debounce. Empty means zero.
func (c *Config) DebounceDuration() (time.Duration, error) {
	if c.Programs.Debounce == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Programs.Debounce)
	if err != nil {
		return 0, fmt.Errorf("invalid programs.debounce %q: %w", c.Programs.Debounce, err)
	}
	return d, nil
}

// SlogLevel maps Logging.Level to a slog level. Unknown levels map to info.
func (c *Config) SlogLevel() slog.Level {
	switch c.Logging.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
