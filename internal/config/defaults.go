package config

import "time"

const (
	// DefaultBaseURL is the development backend.
	DefaultBaseURL = "http://127.0.0.1:8000"

	// DefaultAppURL is the development web app.
	DefaultAppURL = "http://localhost:5173"

	DefaultSessionBackend = SessionBackendFile
	DefaultRedisPrefix    = "{healthdash:session}:"
)

// GetDefaultConfig returns the default configuration.
func GetDefaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL: DefaultBaseURL,
			AppURL:  DefaultAppURL,
		},
		CSRF: CSRFConfig{
			BodyField:  "csrfToken",
			CookieName: "csrftoken",
			HeaderName: "X-CSRFToken",
		},
		Session: SessionConfig{
			Backend: DefaultSessionBackend,
			Redis: RedisConfig{
				Prefix: DefaultRedisPrefix,
			},
		},
		Routes: RoutesConfig{
			Landing:  "/",
			Home:     "/dashboard",
			SignIn:   "/auth?mode=signin",
			Callback: "/auth/callback",
		},
		OAuth: OAuthConfig{
			Mode:         "redirect",
			SuccessDelay: 500 * time.Millisecond,
			FailureDelay: 5 * time.Second,
			AwaitTimeout: 10 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
