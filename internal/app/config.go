package app

import (
	"io"

	"healthdash/internal/config"
)

// Config holds the application configuration
type Config struct {
	// LogLevel overrides log.level from the config file when non-empty.
	LogLevel string

	// Quiet suppresses log output below errors.
	Quiet bool

	// Ephemeral keeps the session in memory for this process only.
	Ephemeral bool

	// Custom configuration path (optional)
	ConfigPath string

	// Out receives navigation lines. Nil means stdout.
	Out io.Writer

	// OpenBrowser opens provider pages in the default browser.
	OpenBrowser bool

	// Settings is the loaded configuration file.
	Settings *config.Config
}

// NewConfig creates a new application configuration
func NewConfig(logLevel string, quiet, ephemeral bool, configPath string) *Config {
	return &Config{
		LogLevel:    logLevel,
		Quiet:       quiet,
		Ephemeral:   ephemeral,
		ConfigPath:  configPath,
		OpenBrowser: true,
	}
}
