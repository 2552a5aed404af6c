package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"os"

	"github.com/redis/go-redis/v9"

	"healthdash/internal/config"
	"healthdash/internal/csrf"
	"healthdash/internal/gateway"
	"healthdash/internal/metrics"
	"healthdash/internal/navigation"
	"healthdash/internal/session"
	"healthdash/pkg/logging"
)

// userAgent identifies the CLI to the backend.
const userAgent = "healthdash-cli"

// Services holds all initialized components of the session bootstrap.
//
// Initialization order:
//  1. Metrics registry
//  2. Session backend and store
//  3. HTTP client with a cookie jar shared by the CSRF manager and gateway
//  4. CSRF manager, gateway client, typed auth API
type Services struct {
	Metrics   *metrics.Metrics
	Store     *session.Store
	CSRF      *csrf.Manager
	Client    *gateway.Client
	Auth      *gateway.AuthAPI
	Navigator *navigation.Terminal

	// BackendName is the session backend in use.
	BackendName string

	redis     redis.UniversalClient
	stopWatch context.CancelFunc
}

// InitializeServices builds the components described by cfg.Settings.
func InitializeServices(cfg *Config) (*Services, error) {
	settings := cfg.Settings
	m := metrics.New()

	backend, backendName, rdb, err := newBackend(cfg)
	if err != nil {
		return nil, err
	}
	store := session.NewStore(backend, m)
	logging.Debug("Bootstrap", "session backend: %s", backendName)

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	httpClient := &http.Client{Jar: jar, Timeout: settings.API.Timeout}

	paths := gatewayPaths(settings.API.Paths).WithDefaults()
	csrfManager := csrf.NewManager(csrf.Config{
		Endpoint:   navigation.JoinRoute(settings.API.BaseURL, paths.CSRFToken),
		BodyField:  settings.CSRF.BodyField,
		CookieName: settings.CSRF.CookieName,
		HeaderName: settings.CSRF.HeaderName,
	}, httpClient, m)

	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}
	nav := &navigation.Terminal{
		AppURL:       settings.API.AppURL,
		Out:          out,
		OpenExternal: cfg.OpenBrowser,
	}

	client := gateway.NewClient(gateway.Config{
		BaseURL:      settings.API.BaseURL,
		LandingRoute: settings.Routes.Landing,
		Timeout:      settings.API.Timeout,
		UserAgent:    userAgent,
	}, httpClient, store, csrfManager, nav, m)

	store.Subscribe(func(ev session.Event) {
		if ev.Type == session.EventCleared || ev.Type == session.EventExternalChange {
			csrfManager.Invalidate()
		}
	})

	services := &Services{
		Metrics:     m,
		Store:       store,
		CSRF:        csrfManager,
		Client:      client,
		Auth:        gateway.NewAuthAPI(client, paths),
		Navigator:   nav,
		BackendName: backendName,
		redis:       rdb,
		stopWatch:   func() {},
	}

	if settings.Session.Watch {
		ctx, cancel := context.WithCancel(context.Background())
		if err := store.Watch(ctx); err != nil {
			logging.Warn("Bootstrap", "session watch unavailable: %v", err)
			cancel()
		} else {
			services.stopWatch = cancel
		}
	}

	return services, nil
}

func newBackend(cfg *Config) (session.Backend, string, redis.UniversalClient, error) {
	if cfg.Ephemeral {
		return session.NewMemoryBackend(), config.SessionBackendMemory, nil, nil
	}

	s := cfg.Settings.Session
	switch s.Backend {
	case config.SessionBackendMemory:
		return session.NewMemoryBackend(), s.Backend, nil, nil
	case config.SessionBackendRedis:
		rdb := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{s.Redis.Addr},
			Password: s.Redis.Password,
			DB:       s.Redis.DB,
		})
		return session.NewRedisBackend(rdb, s.Redis.Prefix, s.Redis.TTL), s.Backend, rdb, nil
	default:
		fb, err := session.NewFileBackend(s.Dir)
		if err != nil {
			return nil, "", nil, err
		}
		return fb, config.SessionBackendFile, nil, nil
	}
}

func gatewayPaths(p config.PathsConfig) gateway.Paths {
	return gateway.Paths{
		CSRFToken:      p.CSRFToken,
		GoogleLogin:    p.GoogleLogin,
		GoogleCallback: p.GoogleCallback,
		Login:          p.Login,
		Signup:         p.Signup,
		Logout:         p.Logout,
		Profile:        p.Profile,
		GoogleStatus:   p.GoogleStatus,
		Verify:         p.Verify,
	}
}

// Close releases network resources.
func (s *Services) Close() error {
	s.stopWatch()
	s.Client.Close()
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}
