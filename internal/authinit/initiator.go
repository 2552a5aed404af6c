package authinit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"healthdash/internal/callback"
	"healthdash/internal/navigation"
	"healthdash/pkg/logging"
)

// Scopes is the fixed consent scope set: identity plus read access to the
// Google Fit data the dashboard displays.
var Scopes = []string{
	"openid",
	"email",
	"profile",
	"https://www.googleapis.com/auth/fitness.activity.read",
	"https://www.googleapis.com/auth/fitness.heart_rate.read",
	"https://www.googleapis.com/auth/fitness.sleep.read",
	"https://www.googleapis.com/auth/fitness.body.read",
}

// DefaultAwaitTimeout bounds how long Await waits for the popup callback.
const DefaultAwaitTimeout = 10 * time.Minute

// Mode selects how the consent page is shown.
type Mode string

const (
	// ModeRedirect navigates away to the consent page; the provider later
	// redirects back to the dashboard's callback route.
	ModeRedirect Mode = "redirect"

	// ModePopup opens the consent page separately and receives the code on
	// a local listener.
	ModePopup Mode = "popup"
)

// ParseMode validates a mode name. Empty means ModeRedirect.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeRedirect:
		return ModeRedirect, nil
	case ModePopup:
		return ModePopup, nil
	default:
		return "", fmt.Errorf("unknown login mode %q (want %q or %q)", s, ModeRedirect, ModePopup)
	}
}

var (
	// ErrClientIDRequired is returned when the consent URL must be built
	// locally but no client ID is configured.
	ErrClientIDRequired = errors.New("google client ID is not configured")

	// ErrStateMismatch is returned when the popup callback carries a state
	// that does not match the request.
	ErrStateMismatch = errors.New("callback state does not match the sign-in request")

	// ErrNotStarted is returned by Await before a popup Begin.
	ErrNotStarted = errors.New("popup sign-in has not been started")
)

// LoginURLSource asks the backend for the provider consent URL.
type LoginURLSource interface {
	GoogleLoginURL(ctx context.Context) (string, error)
}

// Config configures an Initiator.
type Config struct {
	Mode Mode

	// ClientID is the Google OAuth client. Required for popup mode and for
	// the redirect-mode fallback when the backend supplies no URL.
	ClientID string

	// RedirectURL is the dashboard callback used by the redirect-mode
	// fallback.
	RedirectURL string

	// CallbackPort and CallbackPath locate the popup-mode listener.
	CallbackPort int
	CallbackPath string

	AwaitTimeout time.Duration

	AppName string
}

// Initiator starts the provider consent flow. It never touches the
// session store.
type Initiator struct {
	cfg     Config
	backend LoginURLSource
	nav     navigation.Navigator

	mu       sync.Mutex
	listener *Listener
	state    string
}

// New creates an Initiator. backend may be nil in popup mode.
func New(cfg Config, backend LoginURLSource, nav navigation.Navigator) *Initiator {
	if cfg.Mode == "" {
		cfg.Mode = ModeRedirect
	}
	if cfg.AwaitTimeout <= 0 {
		cfg.AwaitTimeout = DefaultAwaitTimeout
	}
	return &Initiator{cfg: cfg, backend: backend, nav: nav}
}

// Mode returns the configured mode.
func (i *Initiator) Mode() Mode { return i.cfg.Mode }

// Begin opens the consent page.
func (i *Initiator) Begin(ctx context.Context) error {
	switch i.cfg.Mode {
	case ModePopup:
		return i.beginPopup(ctx)
	default:
		return i.beginRedirect(ctx)
	}
}

func (i *Initiator) beginRedirect(ctx context.Context) error {
	var target string
	if i.backend != nil {
		u, err := i.backend.GoogleLoginURL(ctx)
		if err == nil {
			target = u
		} else {
			logging.Warn("AuthInit", "backend did not provide a consent URL: %v", err)
			if i.cfg.ClientID == "" {
				return fmt.Errorf("failed to initiate Google login: %w", err)
			}
		}
	}

	if target == "" {
		state := uuid.NewString()
		u, err := i.ConsentURL(i.cfg.RedirectURL, state)
		if err != nil {
			return err
		}
		target = u
	}

	logging.Audit("AuthInit", "consent_started", slog.String("mode", string(ModeRedirect)))
	i.nav.Assign(target)
	return nil
}

func (i *Initiator) beginPopup(ctx context.Context) error {
	if i.cfg.ClientID == "" {
		return ErrClientIDRequired
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.listener != nil {
		i.listener.Stop()
	}

	l := NewListener(i.cfg.CallbackPort, i.cfg.CallbackPath, i.cfg.AppName)
	redirectURI, err := l.Start(ctx)
	if err != nil {
		return err
	}

	state := uuid.NewString()
	u, err := i.ConsentURL(redirectURI, state)
	if err != nil {
		l.Stop()
		return err
	}

	i.listener = l
	i.state = state

	logging.Audit("AuthInit", "consent_started",
		slog.String("mode", string(ModePopup)),
		slog.Int("callback_port", l.Port()),
	)
	i.nav.Assign(u)
	return nil
}

// Await waits for the popup callback and returns its parameters for the
// resolver. The state parameter is verified.
func (i *Initiator) Await(ctx context.Context) (callback.Context, error) {
	i.mu.Lock()
	l, state := i.listener, i.state
	i.mu.Unlock()
	if l == nil {
		return callback.Context{}, ErrNotStarted
	}
	defer l.Stop()

	ctx, cancel := context.WithTimeout(ctx, i.cfg.AwaitTimeout)
	defer cancel()

	cb, err := l.Wait(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return callback.Context{}, fmt.Errorf("timed out waiting for the Google sign-in callback: %w", err)
		}
		return callback.Context{}, err
	}

	if cb.Error == "" && cb.State != state {
		logging.Audit("AuthInit", "callback_state_mismatch")
		return callback.Context{}, ErrStateMismatch
	}
	return cb, nil
}

// Close stops a popup listener that is still running.
func (i *Initiator) Close() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.listener != nil {
		i.listener.Stop()
		i.listener = nil
	}
}

// ConsentURL builds the Google consent URL for redirectURI with offline
// access, so that the backend receives a refresh token.
func (i *Initiator) ConsentURL(redirectURI, state string) (string, error) {
	if i.cfg.ClientID == "" {
		return "", ErrClientIDRequired
	}
	conf := &oauth2.Config{
		ClientID:    i.cfg.ClientID,
		RedirectURL: redirectURI,
		Scopes:      Scopes,
		Endpoint:    google.Endpoint,
	}
	return conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}
