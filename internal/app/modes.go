package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"healthdash/internal/authinit"
	"healthdash/internal/callback"
	"healthdash/internal/clock"
	"healthdash/internal/navigation"
	"healthdash/internal/session"
	"healthdash/pkg/logging"
)

// NewResolver builds a callback resolver over the configured routes and
// grace periods. view and clk may be nil.
func (a *Application) NewResolver(view callback.View, clk clock.Clock) *callback.Resolver {
	s := a.config.Settings
	return callback.NewResolver(callback.Config{
		HomeRoute:    s.Routes.Home,
		SignInRoute:  s.Routes.SignIn,
		SuccessDelay: s.OAuth.SuccessDelay,
		FailureDelay: s.OAuth.FailureDelay,
	}, a.services.Store, a.services.Auth, a.services.Navigator, clk, view, a.services.Metrics)
}

// NewInitiator builds a sign-in initiator. An empty mode uses the
// configured one.
func (a *Application) NewInitiator(mode authinit.Mode) *authinit.Initiator {
	s := a.config.Settings
	if mode == "" {
		mode = authinit.Mode(s.OAuth.Mode)
	}
	return authinit.New(authinit.Config{
		Mode:         mode,
		ClientID:     s.OAuth.ClientID,
		RedirectURL:  navigation.JoinRoute(s.API.AppURL, s.Routes.Callback),
		CallbackPort: s.OAuth.CallbackPort,
		CallbackPath: s.Routes.Callback,
		AwaitTimeout: s.OAuth.AwaitTimeout,
		AppName:      "healthdash",
	}, a.services.Auth, a.services.Navigator)
}

// WatchSession reports session changes made by other processes until ctx
// is cancelled or the process receives SIGINT or SIGTERM.
//
// Signal Handling:
//   - SIGINT (Ctrl+C): stops watching
//   - SIGTERM: stops watching
func (a *Application) WatchSession(ctx context.Context, onEvent func(session.Event)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	unsubscribe := a.services.Store.Subscribe(onEvent)
	defer unsubscribe()

	if err := a.services.Store.Watch(ctx); err != nil {
		logging.Error("Watch", err, "Failed to watch session")
		return err
	}
	logging.Info("Watch", "Watching %s session. Press Ctrl+C to stop.", a.services.BackendName)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-sigChan:
	case <-ctx.Done():
	}
	return nil
}
