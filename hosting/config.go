package hosting

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the connection configuration for the code-hosting API.
//
// WARNING: Token is a secret and must not be logged or written to file
// configuration checked into version control.
type Config struct {
	BaseURL    string `mapstructure:"base_url" yaml:"base_url"`
	Repository string `mapstructure:"repository" yaml:"repository"` // owner/name
	Token      string `mapstructure:"token" yaml:"token"`           // Secret: API token
}

// Validate checks that the config is usable.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("hosting config: base_url is required")
	}
	if c.Repository == "" {
		return errors.New("hosting config: repository is required")
	}

	return nil
}

// LoadConfig reads a hosting config from a YAML file. The token may be left
// out of the file and injected from the environment by the caller.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read hosting config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse hosting config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
