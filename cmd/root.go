package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"healthdash/internal/app"
	"healthdash/internal/cli"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates a session is required but missing or expired.
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed indicates the sign-in flow failed.
	ExitCodeAuthFailed = 3
)

// Global flags shared by every command.
var (
	configPath string
	logLevel   string
	quiet      bool
	ephemeral  bool
	noBrowser  bool
)

// rootCmd represents the base command for the healthdash application.
var rootCmd = &cobra.Command{
	Use:   "healthdash",
	Short: "Sign in to the health dashboard and call its API",
	Long: `healthdash establishes and maintains an authenticated session with the
health dashboard backend.

It signs you in with Google (or a username and password), keeps the session
token on disk, attaches it to API requests together with the CSRF token the
backend requires, and clears the session when the backend rejects it.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "healthdash version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	var authRequired *cli.AuthRequiredError
	if errors.As(err, &authRequired) {
		return ExitCodeAuthRequired
	}

	var authExpired *cli.AuthExpiredError
	if errors.As(err, &authExpired) {
		return ExitCodeAuthRequired
	}

	var authFailed *cli.AuthFailedError
	if errors.As(err, &authFailed) {
		return ExitCodeAuthFailed
	}

	return ExitCodeError
}

// newApplication bootstraps the application for one command invocation.
// The caller must Close it.
func newApplication(cmd *cobra.Command) (*app.Application, error) {
	cfg := app.NewConfig(logLevel, quiet, ephemeral, configPath)
	cfg.Out = cmd.OutOrStdout()
	cfg.OpenBrowser = !noBrowser
	return app.NewApplication(cfg)
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())

	rootCmd.PersistentFlags().StringVar(&configPath, "config-path", "", "Configuration directory (default ~/.config/healthdash)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error (overrides log.level)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress logs and non-essential output")
	rootCmd.PersistentFlags().BoolVar(&ephemeral, "ephemeral", false, "Keep the session in memory for this invocation only")
	rootCmd.PersistentFlags().BoolVar(&noBrowser, "no-browser", false, "Print URLs instead of opening them in a browser")
}
