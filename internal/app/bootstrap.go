package app

import (
	"fmt"
	"io"
	"os"

	"healthdash/internal/config"
	"healthdash/pkg/logging"
)

// Application is the composition root of the session bootstrap. It owns the
// loaded configuration and every component built from it.
//
// The Application follows a two-phase initialization pattern:
//  1. Bootstrap phase: load configuration, initialize logging, build services
//  2. Execution phase: a command uses the services (sign in, resolve a
//     callback, call the API) and then calls Close
//
// Example usage:
//
//	cfg := app.NewConfig("", false, false, "")
//	application, err := app.NewApplication(cfg)
//	if err != nil {
//	    return fmt.Errorf("failed to create application: %w", err)
//	}
//	defer application.Close()
type Application struct {
	config   *Config
	services *Services
}

// NewApplication loads configuration, initializes logging and builds all
// services.
//
// Configuration Loading Behavior:
//   - If cfg.ConfigPath is set: loads config.yaml from that directory
//   - If cfg.ConfigPath is empty: uses ~/.config/healthdash
//
// HEALTHDASH_* environment variables override the file in both cases.
func NewApplication(cfg *Config) (*Application, error) {
	// Bootstrap logging so config loading can report what it does.
	initLogging(cfg, "", "")

	configPath := cfg.ConfigPath
	if configPath == "" {
		configPath = config.GetDefaultConfigPathOrPanic()
	}

	settings, err := config.LoadConfig(configPath)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to load configuration from path: %s", configPath)
		return nil, fmt.Errorf("failed to load configuration from path %s: %w", configPath, err)
	}
	cfg.Settings = &settings

	initLogging(cfg, settings.Log.Level, settings.Log.Format)
	logging.Debug("Bootstrap", "Loaded configuration from %s (backend %s)", configPath, settings.API.BaseURL)

	services, err := InitializeServices(cfg)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		services: services,
	}, nil
}

// initLogging configures the global logger. The --log-level flag wins over
// the configured level.
func initLogging(cfg *Config, configLevel, format string) {
	levelName := configLevel
	if cfg.LogLevel != "" {
		levelName = cfg.LogLevel
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		level = logging.LevelInfo
	}

	// Logs go to stderr so command output stays pipeable.
	var logOutput io.Writer = os.Stderr
	if cfg.Quiet {
		logOutput = io.Discard
	}

	if format == "" {
		logging.InitForCLI(level, logOutput)
		return
	}
	logging.Init(level, logging.Format(format), logOutput)
}

// Settings returns the loaded configuration.
func (a *Application) Settings() *config.Config { return a.config.Settings }

// Services returns the initialized components.
func (a *Application) Services() *Services { return a.services }

// Close releases resources held by the services.
func (a *Application) Close() error {
	return a.services.Close()
}
