package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"healthdash/pkg/logging"
)

const (
	userConfigDir  = ".config/healthdash"
	configFileName = "config.yaml"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "HEALTHDASH_"
)

// osUserHomeDir is replaced in tests.
var osUserHomeDir = os.UserHomeDir

func GetDefaultConfigPathOrPanic() string {
	homeDir, err := osUserHomeDir()
	if err != nil {
		panic(fmt.Errorf("could not determine user config directory: %w", err))
	}

	return filepath.Join(homeDir, userConfigDir)
}

// LoadConfig loads config.yaml from configPath over the defaults, applies
// HEALTHDASH_* environment overrides and validates the result.
func LoadConfig(configPath string) (Config, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logging.Debug("Config", "No config.yaml found at %s, using defaults", configFilePath)
	case err != nil:
		return Config{}, fmt.Errorf("error reading config from %s: %w", configFilePath, err)
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return Config{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
		}
		logging.Debug("Config", "Loaded configuration from %s", configFilePath)
	}

	if err := ApplyEnv(&config); err != nil {
		return Config{}, err
	}

	if config.Session.Dir == "" {
		config.Session.Dir = filepath.Join(configPath, "session")
	}

	if err := Validate(config); err != nil {
		return Config{}, err
	}
	return config, nil
}

// ApplyEnv overrides config with HEALTHDASH_* environment variables. Unset
// variables leave the current values in place.
func ApplyEnv(config *Config) error {
	if err := env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
