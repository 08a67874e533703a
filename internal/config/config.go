// Package config loads the engine configuration file.
//
// A config file names the rule library, the SQLite database holding
// project-level sources and turn logs, and the engine's tunables:
//
//	library: lore/            # CUE package directory, .cue or .json file
//	database: loregate.db
//	scan_depth: 4
//	fields: [personality, scenario]
//	persistent: [field.scenario]
//	seed: 42                  # omit for non-reproducible draws
//	log_level: info
//	static_sources:
//	  active_actors: "Mira"
//	  field.scenario: "A rainy evening."
//
// Relative paths are resolved against the directory holding the file.
// Unknown keys are rejected so typos surface at load time.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/loregate/internal/engine"
	"github.com/roach88/loregate/internal/ir"
)

// DefaultDatabase is the database path used when a config names none.
const DefaultDatabase = "loregate.db"

// Config is the decoded configuration file.
type Config struct {
	Library    string         `yaml:"library"`
	Database   string         `yaml:"database,omitempty"`
	ScanDepth  int            `yaml:"scan_depth,omitempty"`
	Fields     []string       `yaml:"fields,omitempty"`
	Persistent []string       `yaml:"persistent,omitempty"`
	Seed       *uint64        `yaml:"seed,omitempty"`
	Session    string         `yaml:"session,omitempty"`
	LogLevel   string         `yaml:"log_level,omitempty"`
	Static     map[string]any `yaml:"static_sources,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Database:  DefaultDatabase,
		ScanDepth: engine.DefaultScanDepth,
		Fields:    slices.Clone(engine.DefaultFields),
		LogLevel:  "info",
	}
}

// Load reads and validates a config file. Missing keys keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.resolvePaths(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) resolvePaths(base string) {
	if c.Library != "" && !filepath.IsAbs(c.Library) {
		c.Library = filepath.Join(base, c.Library)
	}
	if c.Database != "" && c.Database != ":memory:" && !filepath.IsAbs(c.Database) {
		c.Database = filepath.Join(base, c.Database)
	}
}

// Validate checks field values. All problems are reported together.
func (c *Config) Validate() error {
	var errs []error
	if c.ScanDepth < 0 {
		errs = append(errs, fmt.Errorf("scan_depth must not be negative, got %d", c.ScanDepth))
	}
	if len(c.Fields) == 0 {
		errs = append(errs, fmt.Errorf("fields must name at least one field"))
	}
	seen := make(map[string]bool, len(c.Fields))
	for i, f := range c.Fields {
		switch {
		case f == "":
			errs = append(errs, fmt.Errorf("fields[%d]: name is required", i))
		case seen[f]:
			errs = append(errs, fmt.Errorf("fields[%d]: duplicate field %q", i, f))
		}
		seen[f] = true
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.StaticSources(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Level parses the configured log level. Empty means info.
func (c *Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: %w", err)
	}
	return lvl, nil
}

// StaticSources converts the static_sources table into source values.
// Floats, nulls and nested values are rejected.
func (c *Config) StaticSources() (ir.Values, error) {
	out := make(ir.Values, len(c.Static))
	keys := make([]string, 0, len(c.Static))
	for k := range c.Static {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v, err := ir.ValueFromAny(c.Static[k])
		if err != nil {
			return nil, fmt.Errorf("static_sources.%s: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// EngineOptions translates the config into engine options. The project
// store, trace logger and session generator are wired by the caller.
func (c *Config) EngineOptions() ([]engine.EngineOption, error) {
	static, err := c.StaticSources()
	if err != nil {
		return nil, err
	}
	opts := []engine.EngineOption{
		engine.WithStaticSources(static),
		engine.WithScanDepth(c.ScanDepth),
	}
	if len(c.Fields) > 0 {
		opts = append(opts, engine.WithFields(c.Fields...))
	}
	if len(c.Persistent) > 0 {
		opts = append(opts, engine.WithPersistent(c.Persistent...))
	}
	if c.Seed != nil {
		opts = append(opts, engine.WithRand(engine.NewSeededRand(*c.Seed)))
	}
	return opts, nil
}
