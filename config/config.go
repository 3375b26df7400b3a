// Package config loads the optional weftend.yaml file of CLI flag
// defaults: library root, default profile, enabled plugins, and the
// adapter maintenance policy path. The CLI commands in this module do
// not call Load; their flags are the only source of these settings.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the optional on-disk defaults file.
type Config struct {
	LibraryRoot      string   `yaml:"library_root"`
	Profile          string   `yaml:"profile"`
	EnabledPlugins   []string `yaml:"enabled_plugins"`
	AdapterMaintPath string   `yaml:"adapter_maintenance_policy"`
}

// Load reads a YAML config file, expands environment variables, and
// unmarshals into a Config. Unknown keys are rejected to catch typos
// early.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("cannot read config file %q: %w", path, err)
	}

	expanded := ExpandEnv(string(data))

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}

	return &cfg, nil
}
