package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"healthdash/internal/cli"
	"healthdash/internal/gateway"
	"healthdash/internal/session"
)

// authCmd represents the auth command group
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the dashboard session",
	Long: `Manage the session with the health dashboard backend.

Examples:
  healthdash auth login                      # Sign in with Google
  healthdash auth callback '<url>'           # Complete a redirect sign-in
  healthdash auth signin                     # Sign in with username and password
  healthdash auth signup                     # Create an account
  healthdash auth status                     # Show the stored session
  healthdash auth whoami                     # Show the profile from the backend
  healthdash auth logout                     # End the session
  healthdash auth watch                      # Report session changes from other processes`,
}

// authLogoutCmd represents the auth logout command
var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the session",
	Long: `End the session on the backend and clear the stored tokens.

The local session is cleared even when the backend cannot be reached.`,
	Args: cobra.NoArgs,
	RunE: runAuthLogout,
}

// authStatusCmd represents the auth status command
var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored session",
	Long: `Show the stored session: who is signed in, whether a refresh token is
available, the access token expiry when the token is a JWT, whether the
backend still accepts the token, and whether Google Fit is linked.

A token the backend rejects is cleared and the command exits with code 2.`,
	Args: cobra.NoArgs,
	RunE: runAuthStatus,
}

// authWhoamiCmd represents the auth whoami command
var authWhoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in profile",
	Long: `Fetch the profile of the signed-in user from the backend and refresh the
cached identity.`,
	Args: cobra.NoArgs,
	RunE: runAuthWhoami,
}

// authWatchCmd represents the auth watch command
var authWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Report session changes made by other processes",
	Long: `Watch the stored session and print a line whenever another process signs
in or out. Requires the file backend with session.watch enabled, or any
backend for changes made by this process.`,
	Args: cobra.NoArgs,
	RunE: runAuthWatch,
}

// authPrint prints output only if the --quiet flag is not set.
func authPrint(out io.Writer, format string, args ...interface{}) {
	if !quiet {
		fmt.Fprintf(out, format, args...)
	}
}

// authPrintln prints a line only if the --quiet flag is not set.
func authPrintln(out io.Writer, a ...interface{}) {
	if !quiet {
		fmt.Fprintln(out, a...)
	}
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authCallbackCmd)
	authCmd.AddCommand(authSigninCmd)
	authCmd.AddCommand(authSignupCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authWhoamiCmd)
	authCmd.AddCommand(authWatchCmd)
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	application, err := newApplication(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	ctx := cmd.Context()
	services := application.Services()
	if services.Store.Read(ctx) == nil {
		authPrintln(cmd.OutOrStdout(), "Not signed in.")
		return nil
	}

	if err := services.Auth.Logout(ctx); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	authPrintln(cmd.OutOrStdout(), "Signed out.")
	services.Navigator.Navigate(application.Settings().Routes.Landing)
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	application, err := newApplication(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	services := application.Services()
	settings := application.Settings()

	fields := []cli.Field{
		{Key: "Backend", Value: settings.API.BaseURL},
		{Key: "Storage", Value: services.BackendName},
	}

	tok := services.Store.Read(ctx)
	if tok == nil {
		fields = append(fields, cli.Field{Key: "Status", Value: cli.StatusLabel(false, "", "Not signed in")})
		cli.RenderFields(out, "Session", fields)
		authPrintln(out, "\nRun: healthdash auth login")
		return nil
	}

	fields = append(fields, cli.Field{Key: "Status", Value: cli.StatusLabel(true, "Signed in", "")})
	if id := services.Store.Identity(ctx); id != nil {
		fields = append(fields,
			cli.Field{Key: "User", Value: id.DisplayName()},
			cli.Field{Key: "Email", Value: id.Email},
		)
	}
	fields = append(fields, cli.Field{Key: "Refresh", Value: cli.StatusLabel(tok.HasRefresh(), "Available", "Not available")})
	fields = append(fields, tokenFields(tok.AccessToken, time.Now())...)

	_, verifyErr := services.Auth.VerifySession(ctx)
	switch {
	case errors.Is(verifyErr, gateway.ErrAuthorizationExpired), errors.Is(verifyErr, session.ErrNoSession):
		return &cli.AuthExpiredError{Endpoint: settings.API.BaseURL}
	case verifyErr != nil:
		fields = append(fields, cli.Field{Key: "Verified", Value: cli.StatusLabel(false, "", "Unknown: "+verifyErr.Error())})
	default:
		fields = append(fields, cli.Field{Key: "Verified", Value: cli.StatusLabel(true, "Accepted by backend", "")})
	}

	status := services.Auth.GoogleStatus(ctx)
	if services.Store.Read(ctx) == nil {
		// The status call found the session rejected and cleared it.
		return &cli.AuthExpiredError{Endpoint: settings.API.BaseURL}
	}
	fields = append(fields, cli.Field{Key: "Google Fit", Value: cli.StatusLabel(status.Connected, "Connected", "Not connected")})

	cli.RenderFields(out, "Session", fields)
	return nil
}

// tokenFields describes the access token without verifying it.
func tokenFields(accessToken string, now time.Time) []cli.Field {
	claims, err := session.InspectClaims(accessToken)
	if err != nil {
		return []cli.Field{{Key: "Token", Value: "opaque"}}
	}

	fields := []cli.Field{{Key: "Token", Value: "JWT"}}
	if claims.Issuer != "" {
		fields = append(fields, cli.Field{Key: "Issuer", Value: claims.Issuer})
	}
	if !claims.ExpiresAt.IsZero() {
		expiry := claims.ExpiresAt.Local().Format(time.RFC1123)
		if claims.Expired(now) {
			expiry = cli.StatusLabel(false, "", "expired "+expiry)
		}
		fields = append(fields, cli.Field{Key: "Expires", Value: expiry})
	}
	return fields
}

func runAuthWhoami(cmd *cobra.Command, args []string) error {
	application, err := newApplication(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	ctx := cmd.Context()
	endpoint := application.Settings().API.BaseURL
	services := application.Services()
	if services.Store.Read(ctx) == nil {
		return &cli.AuthRequiredError{Endpoint: endpoint}
	}

	id, err := services.Auth.Profile(ctx)
	if err != nil {
		return cli.TranslateError(err, endpoint)
	}

	cli.RenderFields(cmd.OutOrStdout(), "Profile", []cli.Field{
		{Key: "Name", Value: id.Name},
		{Key: "Email", Value: id.Email},
		{Key: "Username", Value: id.Username},
	})
	return nil
}

func runAuthWatch(cmd *cobra.Command, args []string) error {
	application, err := newApplication(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	out := cmd.OutOrStdout()
	store := application.Services().Store
	ctx := cmd.Context()

	return application.WatchSession(ctx, func(ev session.Event) {
		signedIn := "signed out"
		if store.Read(ctx) != nil {
			signedIn = "signed in"
		}
		fmt.Fprintf(out, "%s  %s (%s)\n", time.Now().Format(time.TimeOnly), ev.Type, signedIn)
	})
}
