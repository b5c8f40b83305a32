// Package config loads the optional YAML run configuration.
package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config holds the settings a report run can read from a YAML file.
// Command-line flags take precedence over every field.
type Config struct {
	URL            string   `yaml:"url"`
	Token          string   `yaml:"token"`
	Days           int      `yaml:"days"`
	Projects       []int    `yaml:"projects"`
	ProjectPaths   []string `yaml:"project_paths"`
	ExcludeAuthors []string `yaml:"exclude_authors"`
	Out            string   `yaml:"out"`
	SummaryOut     string   `yaml:"summary_out"`
}

// envVarPattern matches ${VAR_NAME} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads and parses the config file at path, expanding ${VAR}
// references from the environment first.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := envVarPattern.ReplaceAllFunc(data, func(m []byte) []byte {
		name := envVarPattern.FindSubmatch(m)[1]
		return []byte(os.Getenv(string(name)))
	})

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return &cfg, nil
}
