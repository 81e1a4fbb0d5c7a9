package style

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/streetlevel/mapraster-go/internal/osmbuild"
)

// Config overrides the builder's road filtering from a YAML file.
// Fields left empty fall back to the builder defaults.
type Config struct {
	// Highway lists the highway tag values accepted as roads
	Highway []string `yaml:"highway,omitempty"`
	// Retain lists the tag keys copied from a way onto its edges
	Retain []string `yaml:"retain,omitempty"`
}

// LoadConfig loads a road style configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read style file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse style YAML: %w", err)
	}

	return &cfg, nil
}

// Options translates the configuration into builder options
func (c *Config) Options() []osmbuild.Option {
	var opts []osmbuild.Option
	if len(c.Highway) > 0 {
		opts = append(opts, osmbuild.WithFilter(osmbuild.NewHighwayFilter(c.Highway)))
	}
	if len(c.Retain) > 0 {
		opts = append(opts, osmbuild.WithRetainedKeys(c.Retain))
	}
	return opts
}
