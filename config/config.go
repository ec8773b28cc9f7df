// Package config persists the panel's local state: a single credential
// string and the service base URL, stored in one YAML file under the user
// config directory. Environment variables with the CTXOS_ prefix override
// the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultAPIBase is the enhancement service endpoint used when no override
// is configured.
const DefaultAPIBase = "https://uycbruvaxgawpmdddqry.supabase.co"

// Config is the persisted local state.
type Config struct {
	APIBase string `mapstructure:"api_base" yaml:"api_base"`
	APIKey  string `mapstructure:"api_key" yaml:"api_key,omitempty"`
}

// Default returns a config with no credential.
func Default() *Config {
	return &Config{APIBase: DefaultAPIBase}
}

// Dir returns the ctxos config directory, creating nothing.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(base, "ctxos"), nil
}

// Path returns the config file location.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the default config file plus CTXOS_* environment overrides.
// A missing file is not an error; defaults apply.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads the given config file plus environment overrides.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()
	defaults := Default()
	v.SetDefault("api_base", defaults.APIBase)
	v.SetDefault("api_key", "")

	v.SetEnvPrefix("CTXOS")
	v.AutomaticEnv()

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.APIBase == "" {
		cfg.APIBase = defaults.APIBase
	}
	return &cfg, nil
}

// Save writes the config to the default location with owner-only
// permissions, since it holds a credential.
func Save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	return SaveTo(path, cfg)
}

// SaveTo writes the config to the given path.
func SaveTo(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
