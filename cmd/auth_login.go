package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"healthdash/internal/app"
	"healthdash/internal/authinit"
	"healthdash/internal/callback"
	"healthdash/internal/cli"
	"healthdash/internal/gateway"
	"healthdash/internal/navigation"
)

// navigationPollInterval is how often the CLI checks whether the resolver
// has performed its post-resolution navigation.
const navigationPollInterval = 25 * time.Millisecond

// Login-specific flags
var (
	loginMode     string
	username      string
	passwordStdin bool
)

// authLoginCmd represents the auth login command
var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with Google",
	Long: `Start the Google sign-in flow.

In redirect mode (default) the consent page is opened in your browser and
the provider redirects to the dashboard's callback page. Hand that URL to
"healthdash auth callback" to complete the sign-in.

In popup mode a local listener receives the callback and the sign-in
completes without further input. Popup mode requires oauth.clientID.

Examples:
  healthdash auth login
  healthdash auth login --mode popup`,
	Args: cobra.NoArgs,
	RunE: runAuthLogin,
}

// authCallbackCmd represents the auth callback command
var authCallbackCmd = &cobra.Command{
	Use:   "callback <url>",
	Short: "Complete a sign-in from a callback URL",
	Long: `Complete a redirect-mode sign-in.

The URL is the address of the callback page the provider redirected to. It
carries either a session token directly or an authorization code that is
exchanged with the backend.

Examples:
  healthdash auth callback 'http://localhost:5173/auth/callback?code=4/0Ab...'`,
	Args: cobra.ExactArgs(1),
	RunE: runAuthCallback,
}

// authSigninCmd represents the auth signin command
var authSigninCmd = &cobra.Command{
	Use:   "signin",
	Short: "Sign in with a username and password",
	Long: `Sign in with a username and password.

The password is prompted for with input masked. Use --password-stdin to read
it from standard input instead.

Examples:
  healthdash auth signin
  healthdash auth signin --username ada@example.com
  echo "$PASSWORD" | healthdash auth signin --username ada@example.com --password-stdin`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBasicAuth(cmd, false)
	},
}

// authSignupCmd represents the auth signup command
var authSignupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account with a username and password",
	Long: `Create an account and sign in to it.

Examples:
  healthdash auth signup --username ada@example.com`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBasicAuth(cmd, true)
	},
}

func init() {
	authLoginCmd.Flags().StringVar(&loginMode, "mode", "", "Sign-in mode: redirect or popup (default oauth.mode)")

	for _, c := range []*cobra.Command{authSigninCmd, authSignupCmd} {
		c.Flags().StringVarP(&username, "username", "u", "", "Username (prompted when empty)")
		c.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	}
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	var mode authinit.Mode
	if loginMode != "" {
		m, err := authinit.ParseMode(loginMode)
		if err != nil {
			return err
		}
		mode = m
	}

	application, err := newApplication(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	endpoint := application.Settings().API.BaseURL
	ctx := cmd.Context()

	initiator := application.NewInitiator(mode)
	defer initiator.Close()

	if err := initiator.Begin(ctx); err != nil {
		return &cli.AuthFailedError{Endpoint: endpoint, Reason: cli.TranslateError(err, endpoint)}
	}

	out := cmd.OutOrStdout()
	if initiator.Mode() == authinit.ModeRedirect {
		authPrintln(out, "\nAfter signing in, copy the address of the callback page and run:")
		authPrintln(out, "  healthdash auth callback '<url>'")
		return nil
	}

	authPrintln(out, "Waiting for the Google sign-in to complete in your browser...")
	cb, err := initiator.Await(ctx)
	if err != nil {
		return &cli.AuthFailedError{Endpoint: endpoint, Reason: err}
	}

	return resolveCallback(cmd, application, func(r *callback.Resolver) callback.Result {
		return r.Resolve(ctx, cb)
	})
}

func runAuthCallback(cmd *cobra.Command, args []string) error {
	application, err := newApplication(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	raw := args[0]
	return resolveCallback(cmd, application, func(r *callback.Resolver) callback.Result {
		return r.ResolveURL(cmd.Context(), raw)
	})
}

// resolveCallback runs one resolution and waits for the navigation that
// follows it, so the user sees where the dashboard would go next.
func resolveCallback(cmd *cobra.Command, application *app.Application, resolve func(*callback.Resolver) callback.Result) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	settings := application.Settings()
	endpoint := settings.API.BaseURL
	nav := application.Services().Navigator

	resolver := application.NewResolver(cli.NewSpinnerView(out, quiet), nil)
	defer resolver.Dispose()

	before := len(nav.Visits())
	result := resolve(resolver)

	switch result.Kind {
	case callback.ResultProviderRedirect:
		authPrintln(out, "The backend requested another provider step. Continue in your browser, then run")
		authPrintln(out, "  healthdash auth callback '<url>'")
		return nil
	case callback.ResultSuccess:
		waitForNavigation(ctx, nav, before, settings.OAuth.SuccessDelay)
		if id := application.Services().Store.Identity(ctx); id != nil {
			authPrint(out, "Signed in as %s\n", id.DisplayName())
		}
		return nil
	default:
		if errors.Is(result.Err, callback.ErrDisposed) {
			return result.Err
		}
		waitForNavigation(ctx, nav, before, settings.OAuth.FailureDelay)
		return &cli.AuthFailedError{Endpoint: endpoint, Reason: cli.TranslateError(result.Err, endpoint)}
	}
}

// waitForNavigation blocks until nav records a visit beyond before, the
// grace period plus a margin elapses, or ctx is cancelled.
func waitForNavigation(ctx context.Context, nav *navigation.Terminal, before int, grace time.Duration) {
	deadline := time.NewTimer(grace + time.Second)
	defer deadline.Stop()
	ticker := time.NewTicker(navigationPollInterval)
	defer ticker.Stop()

	for len(nav.Visits()) <= before {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			return
		case <-ticker.C:
		}
	}
}

func runBasicAuth(cmd *cobra.Command, signup bool) error {
	user, password, err := readCredentials(cmd)
	if err != nil {
		return err
	}

	application, err := newApplication(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	ctx := cmd.Context()
	endpoint := application.Settings().API.BaseURL
	auth := application.Services().Auth

	var result *gateway.LoginResult
	if signup {
		result, err = auth.Signup(ctx, user, password)
	} else {
		result, err = auth.Login(ctx, user, password)
	}
	if err != nil {
		return &cli.AuthFailedError{Endpoint: endpoint, Reason: cli.TranslateError(err, endpoint)}
	}

	out := cmd.OutOrStdout()
	if result.Message != "" {
		authPrintln(out, result.Message)
	}
	name := user
	if result.Identity != nil {
		name = result.Identity.DisplayName()
	}
	authPrint(out, "Signed in as %s\n", name)

	application.Services().Navigator.Navigate(application.Settings().Routes.Home)
	return nil
}

func readCredentials(cmd *cobra.Command) (string, string, error) {
	if !passwordStdin {
		return cli.PromptCredentials(io.NopCloser(cmd.InOrStdin()), cmd.OutOrStdout(), username)
	}

	if strings.TrimSpace(username) == "" {
		return "", "", fmt.Errorf("--password-stdin requires --username")
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", "", fmt.Errorf("failed to read password from stdin: %w", err)
	}
	return cli.ValidateCredentials(username, strings.TrimRight(line, "\r\n"))
}
