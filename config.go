package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the file configuration, loaded from the XDG config directory
// and overlaid with command line flags.
type Config struct {
	Database string `yaml:"database"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`

	Listen         string `yaml:"listen"`
	MaxRows        int    `yaml:"max_rows"`
	AddressPattern string `yaml:"address_pattern"`
	SentryDSN      string `yaml:"sentry_dsn"`

	// Databases holds named connection presets selectable by the
	// positional dbname argument.
	Databases map[string]DatabasePreset `yaml:"databases"`
}

// DatabasePreset is a named connection in the config file.
type DatabasePreset struct {
	Type     string `yaml:"type"`
	Database string `yaml:"database"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

func defaultConfig() *Config {
	return &Config{
		Listen:         ":8000",
		MaxRows:        500,
		AddressPattern: "%",
	}
}

// getConfigDir returns the configuration directory following the XDG Base
// Directory spec.
func getConfigDir() (string, error) {
	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		return filepath.Join(xdgHome, "dbdash"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "dbdash"), nil
}

func getConfigPath() (string, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

// loadConfig reads config.yaml, returning defaults when the file does not
// exist.
func loadConfig() (*Config, error) {
	cfg := defaultConfig()

	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("could not read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("could not parse %s: %w", configPath, err)
	}
	if cfg.Listen == "" {
		cfg.Listen = ":8000"
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 500
	}
	if cfg.AddressPattern == "" {
		cfg.AddressPattern = "%"
	}
	return cfg, nil
}

// GetPreset looks up a named connection preset.
func (c *Config) GetPreset(name string) (DatabasePreset, bool) {
	preset, ok := c.Databases[name]
	return preset, ok
}
