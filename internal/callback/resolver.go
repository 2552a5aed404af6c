package callback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"healthdash/internal/clock"
	"healthdash/internal/gateway"
	"healthdash/internal/metrics"
	"healthdash/internal/navigation"
	"healthdash/internal/session"
	"healthdash/pkg/logging"
)

// Default grace periods before navigating away from the callback.
const (
	DefaultSuccessDelay = 500 * time.Millisecond
	DefaultFailureDelay = 5 * time.Second
)

const reasonMissingParameters = "missing callback parameters"

// Exchanger trades an authorization code for a session token.
type Exchanger interface {
	ExchangeCodeGet(ctx context.Context, code string) (*gateway.ExchangeResponse, error)
	ExchangeCodePost(ctx context.Context, code string) (*gateway.ExchangeResponse, error)
}

// SessionWriter persists the session obtained by the resolver.
type SessionWriter interface {
	Write(ctx context.Context, tok session.Token, id *session.Identity) error
}

// View renders the progress of a resolution.
type View interface {
	Pending(message string)
	Failed(reason string)
	Succeeded()
}

// NopView discards all progress updates.
type NopView struct{}

func (NopView) Pending(string) {}
func (NopView) Failed(string)  {}
func (NopView) Succeeded()     {}

// Config holds the routes and grace periods of the resolver.
type Config struct {
	HomeRoute    string
	SignInRoute  string
	SuccessDelay time.Duration
	FailureDelay time.Duration
}

func (c *Config) applyDefaults() {
	if c.HomeRoute == "" {
		c.HomeRoute = "/dashboard"
	}
	if c.SignInRoute == "" {
		c.SignInRoute = "/auth?mode=signin"
	}
	if c.SuccessDelay <= 0 {
		c.SuccessDelay = DefaultSuccessDelay
	}
	if c.FailureDelay <= 0 {
		c.FailureDelay = DefaultFailureDelay
	}
}

// Resolver turns one callback into a persisted session, a provider
// redirect, or a reported failure. A Resolver handles exactly one callback:
// only the first Resolve call has side effects, later calls return the
// first result.
type Resolver struct {
	cfg       Config
	store     SessionWriter
	exchanger Exchanger
	nav       navigation.Navigator
	clock     clock.Clock
	view      View
	metrics   *metrics.Metrics

	once   sync.Once
	result Result

	mu       sync.Mutex
	state    State
	disposed bool
	timer    clock.Timer
}

// NewResolver creates a Resolver. view and m may be nil.
func NewResolver(cfg Config, store SessionWriter, exchanger Exchanger, nav navigation.Navigator, clk clock.Clock, view View, m *metrics.Metrics) *Resolver {
	cfg.applyDefaults()
	if clk == nil {
		clk = clock.Real{}
	}
	if view == nil {
		view = NopView{}
	}
	return &Resolver{
		cfg:       cfg,
		store:     store,
		exchanger: exchanger,
		nav:       nav,
		clock:     clk,
		view:      view,
		metrics:   m,
	}
}

// State returns the current state.
func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Resolve runs the resolution for cb. Concurrent and repeated calls wait for
// and return the result of the first call.
func (r *Resolver) Resolve(ctx context.Context, cb Context) Result {
	r.once.Do(func() {
		r.result = r.resolve(ctx, cb)
	})
	return r.result
}

// ResolveURL parses a full callback URL and resolves it. An unparseable URL
// resolves as a callback without parameters.
func (r *Resolver) ResolveURL(ctx context.Context, raw string) Result {
	cb, err := ParseURL(raw)
	if err != nil {
		logging.Warn("Callback", "unparseable callback URL: %v", err)
	}
	return r.Resolve(ctx, cb)
}

// Dispose cancels the pending navigation and discards the result of any
// request still in flight. The session is not written after Dispose
// returns.
func (r *Resolver) Dispose() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed {
		return
	}
	r.disposed = true
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	logging.Debug("Callback", "resolver disposed in state %s", r.state)
}

func (r *Resolver) resolve(ctx context.Context, cb Context) Result {
	var storageErr error

	if cb.HasDirectTokens() {
		r.transition(StateCheckingDirectTokens)
		r.view.Pending("Completing sign-in...")

		tok := session.Token{AccessToken: cb.Token, RefreshToken: cb.Refresh}
		err := r.persist(ctx, tok, nil)
		switch {
		case err == nil:
			return r.succeed(tok)
		case errors.Is(err, ErrDisposed):
			return abandoned()
		}

		logging.Error("Callback", err, "failed to store tokens from callback URL")
		if !cb.HasCode() {
			return r.fail("Could not save your session. Check that storage is available and try again.", FlagStorageFailed, err)
		}
		storageErr = err
	}

	if !cb.HasCode() {
		if msg := cb.ProviderError(); msg != "" {
			return r.fail(msg, FlagLoginFailed, fmt.Errorf("%w: %s", ErrProviderDenied, cb.Error))
		}
		return r.fail(reasonMissingParameters, FlagLoginFailed, ErrMissingParameters)
	}

	if storageErr != nil {
		logging.Info("Callback", "falling back to code exchange after storage failure")
	}

	r.transition(StateExchangingCodeGet)
	r.view.Pending("Exchanging authorization code...")
	logging.Debug("Callback", "exchanging code %s via GET", logging.Redact(cb.Code, 10))

	resp, getErr := r.exchanger.ExchangeCodeGet(ctx, cb.Code)
	if r.isDisposed() {
		return abandoned()
	}
	if getErr == nil {
		return r.complete(ctx, resp)
	}
	logging.Warn("Callback", "GET code exchange failed, retrying with POST: %v", getErr)

	r.transition(StateExchangingCodePost)
	resp, postErr := r.exchanger.ExchangeCodePost(ctx, cb.Code)
	if r.isDisposed() {
		return abandoned()
	}
	if postErr == nil {
		return r.complete(ctx, resp)
	}

	logging.Error("Callback", postErr, "POST code exchange failed")
	return r.fail(failureReason(postErr, getErr), FlagLoginFailed, fmt.Errorf("%w: %w", ErrExchangeFailed, postErr))
}

// complete applies a successful exchange response.
func (r *Resolver) complete(ctx context.Context, resp *gateway.ExchangeResponse) Result {
	if loc, ok := resp.Redirect(); ok {
		return r.redirect(loc)
	}

	if msg := resp.Failure(); msg != "" {
		return r.fail(msg, FlagLoginFailed, fmt.Errorf("%w: %s", ErrExchangeFailed, msg))
	}
	if resp.Token == "" {
		return r.fail("The server response did not include a session token.", FlagLoginFailed,
			fmt.Errorf("%w: response carried neither token nor redirect", ErrExchangeFailed))
	}

	tok := session.Token{AccessToken: resp.Token, RefreshToken: resp.Refresh}
	var id *session.Identity
	if resp.User != nil {
		ident := resp.User.Identity()
		id = &ident
	}

	err := r.persist(ctx, tok, id)
	switch {
	case err == nil:
		return r.succeed(tok)
	case errors.Is(err, ErrDisposed):
		return abandoned()
	default:
		logging.Error("Callback", err, "failed to store exchanged session")
		return r.fail("Could not save your session. Check that storage is available and try again.", FlagStorageFailed, err)
	}
}

// persist writes the session unless the resolver has been disposed. The
// lock is held across the write so that Dispose either precedes it or
// waits for it.
func (r *Resolver) persist(ctx context.Context, tok session.Token, id *session.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed {
		return ErrDisposed
	}
	return r.store.Write(ctx, tok, id)
}

func (r *Resolver) succeed(tok session.Token) Result {
	r.transition(StateSucceeded)
	r.view.Succeeded()

	home := r.cfg.HomeRoute
	r.schedule(r.cfg.SuccessDelay, func() { r.nav.Navigate(home) })
	logging.Info("Callback", "sign-in completed")
	return Result{Kind: ResultSuccess, Token: tok, RedirectTarget: home}
}

func (r *Resolver) redirect(location string) Result {
	r.mu.Lock()
	disposed := r.disposed
	r.mu.Unlock()
	if disposed {
		return abandoned()
	}

	r.transition(StateRedirected)
	logging.Info("Callback", "backend requested a provider redirect")
	r.nav.Assign(location)
	return Result{Kind: ResultProviderRedirect, Location: location}
}

func (r *Resolver) fail(reason, flag string, err error) Result {
	r.transition(StateFailed)
	r.view.Failed(reason)

	target := navigation.WithQuery(r.cfg.SignInRoute, "error", flag)
	r.schedule(r.cfg.FailureDelay, func() { r.nav.Navigate(target) })
	return Result{Kind: ResultFailure, Reason: reason, RedirectTarget: target, Err: err}
}

// schedule runs fn after d unless the resolver is disposed first.
func (r *Resolver) schedule(d time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed {
		return
	}
	r.timer = r.clock.AfterFunc(d, func() {
		r.mu.Lock()
		if r.disposed {
			r.mu.Unlock()
			return
		}
		r.timer = nil
		r.mu.Unlock()
		fn()
	})
}

func (r *Resolver) transition(next State) {
	r.mu.Lock()
	prev := r.state
	r.state = next
	r.mu.Unlock()

	logging.Debug("Callback", "%s -> %s", prev, next)
	if next.Terminal() {
		r.metrics.ObserveResolution(next.String())
	}
}

func (r *Resolver) isDisposed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disposed
}

func abandoned() Result {
	return Result{Kind: ResultFailure, Reason: "sign-in was cancelled", Err: ErrDisposed}
}

// failureReason picks the most specific message: server-supplied text from
// the POST, then from the GET, then the transport error.
func failureReason(postErr, getErr error) string {
	for _, err := range []error{postErr, getErr} {
		if apiErr, ok := gateway.AsAPIError(err); ok && apiErr.Status != 0 && apiErr.Message != "" {
			return apiErr.Message
		}
	}
	if apiErr, ok := gateway.AsAPIError(postErr); ok && apiErr.Message != "" {
		return "Network error: " + apiErr.Message
	}
	return postErr.Error()
}
