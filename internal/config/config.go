// Package config loads the runner's YAML configuration file.
//
// The file configures the CLI run, not individual tests - per-test timeout
// policy lives in the CUE manifest. Parsing is strict: unknown fields are
// rejected so a typo fails loudly instead of configuring nothing.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Valid output formats.
var validFormats = map[string]bool{"text": true, "json": true}

// Config is the runner configuration.
type Config struct {
	// Format selects outcome output: "text" (default) or "json".
	Format string `yaml:"format,omitempty"`

	// Verbose enables debug logging.
	Verbose bool `yaml:"verbose,omitempty"`

	// EnvFile is an optional dotenv file loaded before suites run.
	// Variables already present in the environment win.
	EnvFile string `yaml:"env_file,omitempty"`

	// Manifest is an optional path to a CUE suite manifest.
	Manifest string `yaml:"manifest,omitempty"`

	// Suites restricts the run to the named registered suites.
	// Empty means all.
	Suites []string `yaml:"suites,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{Format: "text"}
}

// Load reads and parses a configuration file. Unknown fields (typos like
// "manifests:") and invalid values are errors.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks field values and fills defaults.
func (c *Config) Validate() error {
	if c.Format == "" {
		c.Format = "text"
	}
	if !validFormats[c.Format] {
		return fmt.Errorf("format %q: must be \"text\" or \"json\"", c.Format)
	}
	return nil
}
