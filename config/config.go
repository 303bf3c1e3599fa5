// Package config loads the shipstream configuration: which repository to
// operate on, how to reach the hosting API and the provisioning binary, and
// the engine limits. Values come from a YAML file with environment-variable
// overrides, so secrets stay out of checked-in files.
package config

import (
	"errors"
	"io/fs"
	"os"
	"slices"
	"time"

	"github.com/spf13/viper"

	"github.com/shipstream/shipstream/hosting"
)

// GitConfig locates the working tree and remote the workflows operate on.
type GitConfig struct {
	Dir    string `mapstructure:"dir" yaml:"dir"`       // The working tree root
	Remote string `mapstructure:"remote" yaml:"remote"` // The remote pushed to, defaults to origin
}

// ProvisionConfig locates the infrastructure-provisioning binary and its
// configuration directory.
type ProvisionConfig struct {
	Binary string `mapstructure:"binary" yaml:"binary"` // The provisioning binary name, e.g. terraform
	Dir    string `mapstructure:"dir" yaml:"dir"`       // The configuration directory
}

// EngineConfig bounds the transaction engine.
type EngineConfig struct {
	MaxOperations int           `mapstructure:"max_operations" yaml:"max_operations"` // Per-transaction operation ceiling
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`               // Advisory transaction timeout
	EnvAllowList  []string      `mapstructure:"env_allow_list" yaml:"env_allow_list"` // Environment variables recorded in snapshots
	HistoryDir    string        `mapstructure:"history_dir" yaml:"history_dir"`       // Where terminal transaction records are written
}

// Config wraps the entire shipstream configuration.
//
// WARNING: the hosting section contains a secret token and should not be
// logged or set in file configuration checked into version control.
type Config struct {
	Git       GitConfig       `mapstructure:"git" yaml:"git"`
	Hosting   hosting.Config  `mapstructure:"hosting" yaml:"hosting"`
	Provision ProvisionConfig `mapstructure:"provision" yaml:"provision"`
	Engine    EngineConfig    `mapstructure:"engine" yaml:"engine"`
}

// Load loads the config from the file path, falling back to env vars if the
// file does not exist. If the file exists, any env vars that are set
// override the values loaded from the file.
func Load(filePath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(filePath)

	if err := bindEnvs(v); err != nil {
		return nil, err
	}

	// If the config file exists, we continue to read it, otherwise we
	// fall back to using environment variables.
	if _, err := os.Stat(filePath); !errors.Is(err, fs.ErrNotExist) {
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	err := v.Unmarshal(cfg)

	return cfg, err
}

// LoadEnv loads the config from the environment variables alone.
func LoadEnv() (*Config, error) {
	v := newViper()

	if err := bindEnvs(v); err != nil {
		return nil, err
	}

	cfg := &Config{}
	err := v.Unmarshal(cfg)

	return cfg, err
}

// LoadFile loads the config from a file with no environment overrides.
func LoadFile(filePath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(filePath)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	err := v.Unmarshal(cfg)

	return cfg, err
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("git.remote", "origin")
	v.SetDefault("provision.binary", "terraform")
	v.SetDefault("engine.max_operations", 100)
	v.SetDefault("engine.timeout", 30*time.Minute)
	v.SetDefault("engine.env_allow_list", []string{"USER", "CI", "SHIPSTREAM_ENV"})
	v.SetDefault("engine.history_dir", ".shipstream/history")

	return v
}

// envBindings defines how environment variables map to configuration keys
// used by Viper. Each entry maps a config key to the environment variable
// that can provide its value; the secret token is expected to arrive this
// way rather than through the file.
var envBindings = map[string][]string{
	"git.dir":               {"SHIPSTREAM_GIT_DIR"},
	"git.remote":            {"SHIPSTREAM_GIT_REMOTE"},
	"hosting.base_url":      {"SHIPSTREAM_HOSTING_BASE_URL"},
	"hosting.repository":    {"SHIPSTREAM_HOSTING_REPOSITORY"},
	"hosting.token":         {"SHIPSTREAM_HOSTING_TOKEN"},
	"provision.binary":      {"SHIPSTREAM_PROVISION_BINARY"},
	"provision.dir":         {"SHIPSTREAM_PROVISION_DIR"},
	"engine.max_operations": {"SHIPSTREAM_ENGINE_MAX_OPERATIONS"},
	"engine.timeout":        {"SHIPSTREAM_ENGINE_TIMEOUT"},
	"engine.history_dir":    {"SHIPSTREAM_ENGINE_HISTORY_DIR"},
}

// bindEnvs binds the environment variable mappings to the viper instance.
func bindEnvs(v *viper.Viper) error {
	for key, envs := range envBindings {
		inputs := slices.Insert(envs, 0, key)

		if err := v.BindEnv(inputs...); err != nil {
			return err
		}
	}

	return nil
}
