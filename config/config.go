// Package config provides configuration loading and management for archspec.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/c360studio/archspec/guard"
)

// Config represents the complete archspec configuration
type Config struct {
	DSL    DSLConfig    `yaml:"dsl"`
	Source SourceConfig `yaml:"source"`
	Guard  GuardConfig  `yaml:"guard"`
	Watch  WatchConfig  `yaml:"watch"`
	Log    LogConfig    `yaml:"log"`
}

// DSLConfig locates the architecture description
type DSLConfig struct {
	// Path is the architecture file, relative to the repo root
	Path string `yaml:"path"`
}

// SourceConfig configures source file discovery
type SourceConfig struct {
	// RepoRoot is the repository root path (auto-detected if empty)
	RepoRoot string `yaml:"repo_root"`
	// Roots are the directories to scan. Empty means the source sets declared
	// in the architecture file, or the repo root.
	Roots []string `yaml:"roots"`
	// Include are doublestar globs a file must match (empty = all)
	Include []string `yaml:"include"`
	// Exclude are doublestar globs of files to skip
	Exclude []string `yaml:"exclude"`
	// Parallelism bounds concurrent file parses (0 = GOMAXPROCS)
	Parallelism int `yaml:"parallelism"`
}

// GuardConfig configures the conformance check
type GuardConfig struct {
	// IgnorePackages are package patterns (`*` and `..`) never checked
	IgnorePackages []string `yaml:"ignore_packages"`
}

// WatchConfig configures watch mode
type WatchConfig struct {
	// Debounce is how long to wait for more changes before re-checking
	Debounce time.Duration `yaml:"debounce"`
}

// LogConfig configures logging
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level"`
	// Format is text or json
	Format string `yaml:"format"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		DSL: DSLConfig{
			Path: "architecture.fkl",
		},
		Source: SourceConfig{
			RepoRoot: "", // Auto-detect
			Exclude:  []string{"**/generated/**"},
		},
		Watch: WatchConfig{
			Debounce: 200 * time.Millisecond,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.DSL.Path == "" {
		return fmt.Errorf("dsl.path is required")
	}
	if c.Source.Parallelism < 0 {
		return fmt.Errorf("source.parallelism must not be negative")
	}
	for _, p := range c.Source.Include {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("source.include: invalid glob %q", p)
		}
	}
	for _, p := range c.Source.Exclude {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("source.exclude: invalid glob %q", p)
		}
	}
	if _, err := c.IgnoredPackages(); err != nil {
		return err
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json")
	}
	return nil
}

// IgnoredPackages compiles guard.ignore_packages.
func (c *Config) IgnoredPackages() ([]*guard.PackagePattern, error) {
	patterns := make([]*guard.PackagePattern, 0, len(c.Guard.IgnorePackages))
	for _, raw := range c.Guard.IgnorePackages {
		p, err := guard.CompilePattern(raw)
		if err != nil {
			return nil, fmt.Errorf("guard.ignore_packages: %w", err)
		}
		patterns = append(patterns, p)
	}
	return patterns, nil
}

// DSLPath returns the architecture file path resolved against the repo root.
func (c *Config) DSLPath() string {
	if filepath.IsAbs(c.DSL.Path) || c.Source.RepoRoot == "" {
		return c.DSL.Path
	}
	return filepath.Join(c.Source.RepoRoot, c.DSL.Path)
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// loadOverlay reads a config file without applying defaults, so that only
// the keys it sets take part in a Merge.
func loadOverlay(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// DSL
	if other.DSL.Path != "" {
		c.DSL.Path = other.DSL.Path
	}

	// Source
	if other.Source.RepoRoot != "" {
		c.Source.RepoRoot = other.Source.RepoRoot
	}
	if len(other.Source.Roots) > 0 {
		c.Source.Roots = other.Source.Roots
	}
	if len(other.Source.Include) > 0 {
		c.Source.Include = other.Source.Include
	}
	if len(other.Source.Exclude) > 0 {
		c.Source.Exclude = other.Source.Exclude
	}
	if other.Source.Parallelism != 0 {
		c.Source.Parallelism = other.Source.Parallelism
	}

	// Guard
	if len(other.Guard.IgnorePackages) > 0 {
		c.Guard.IgnorePackages = other.Guard.IgnorePackages
	}

	// Watch
	if other.Watch.Debounce != 0 {
		c.Watch.Debounce = other.Watch.Debounce
	}

	// Log
	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
	if other.Log.Format != "" {
		c.Log.Format = other.Log.Format
	}
}
