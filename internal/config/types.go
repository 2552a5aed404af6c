package config

import "time"

// Config is the top-level configuration structure for healthdash.
type Config struct {
	API     APIConfig     `yaml:"api" envPrefix:"API_"`
	CSRF    CSRFConfig    `yaml:"csrf" envPrefix:"CSRF_"`
	Session SessionConfig `yaml:"session" envPrefix:"SESSION_"`
	Routes  RoutesConfig  `yaml:"routes" envPrefix:"ROUTES_"`
	OAuth   OAuthConfig   `yaml:"oauth" envPrefix:"OAUTH_"`
	Log     LogConfig     `yaml:"log" envPrefix:"LOG_"`
}

// APIConfig locates the dashboard backend.
type APIConfig struct {
	BaseURL   string        `yaml:"baseURL" env:"BASE_URL"`          // Backend origin (default: http://127.0.0.1:8000)
	AppURL    string        `yaml:"appURL,omitempty" env:"APP_URL"`  // Web app origin used to print in-app routes
	Timeout   time.Duration `yaml:"timeout,omitempty" env:"TIMEOUT"` // Per-request timeout, 0 for none
	UserAgent string        `yaml:"userAgent,omitempty" env:"USER_AGENT"`
	Paths     PathsConfig   `yaml:"paths,omitempty" envPrefix:"PATH_"`
}

// PathsConfig overrides individual backend endpoint paths.
type PathsConfig struct {
	CSRFToken      string `yaml:"csrfToken,omitempty" env:"CSRF_TOKEN"`
	GoogleLogin    string `yaml:"googleLogin,omitempty" env:"GOOGLE_LOGIN"`
	GoogleCallback string `yaml:"googleCallback,omitempty" env:"GOOGLE_CALLBACK"`
	Login          string `yaml:"login,omitempty" env:"LOGIN"`
	Signup         string `yaml:"signup,omitempty" env:"SIGNUP"`
	Logout         string `yaml:"logout,omitempty" env:"LOGOUT"`
	Profile        string `yaml:"profile,omitempty" env:"PROFILE"`
	GoogleStatus   string `yaml:"googleStatus,omitempty" env:"GOOGLE_STATUS"`
	Verify         string `yaml:"verify,omitempty" env:"VERIFY"`
}

// CSRFConfig names the places the backend publishes its CSRF token.
type CSRFConfig struct {
	BodyField  string `yaml:"bodyField,omitempty" env:"BODY_FIELD"`
	CookieName string `yaml:"cookieName,omitempty" env:"COOKIE_NAME"`
	HeaderName string `yaml:"headerName,omitempty" env:"HEADER_NAME"`
}

// Session backends.
const (
	SessionBackendFile   = "file"
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

// SessionConfig selects where the session is persisted.
type SessionConfig struct {
	Backend string      `yaml:"backend" env:"BACKEND"`       // file (default), memory or redis
	Dir     string      `yaml:"dir,omitempty" env:"DIR"`     // File backend directory (default: <config>/session)
	Watch   bool        `yaml:"watch,omitempty" env:"WATCH"` // Report changes made by other processes
	Redis   RedisConfig `yaml:"redis,omitempty" envPrefix:"REDIS_"`
}

// RedisConfig configures the shared session backend.
type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"ADDR"`
	Password string        `yaml:"password,omitempty" env:"PASSWORD"`
	DB       int           `yaml:"db,omitempty" env:"DB"`
	Prefix   string        `yaml:"prefix,omitempty" env:"PREFIX"` // Key prefix, wrapped in a {hash tag} for Redis Cluster
	TTL      time.Duration `yaml:"ttl,omitempty" env:"TTL"`
}

// RoutesConfig holds the in-app routes the session bootstrap navigates to.
type RoutesConfig struct {
	Landing  string `yaml:"landing" env:"LANDING"`
	Home     string `yaml:"home" env:"HOME"`
	SignIn   string `yaml:"signIn" env:"SIGN_IN"`
	Callback string `yaml:"callback" env:"CALLBACK"`
}

// OAuthConfig configures the Google sign-in flow.
type OAuthConfig struct {
	Mode         string        `yaml:"mode" env:"MODE"`                    // redirect (default) or popup
	ClientID     string        `yaml:"clientID,omitempty" env:"CLIENT_ID"` // Required for popup mode
	CallbackPort int           `yaml:"callbackPort,omitempty" env:"CALLBACK_PORT"`
	SuccessDelay time.Duration `yaml:"successDelay" env:"SUCCESS_DELAY"`
	FailureDelay time.Duration `yaml:"failureDelay" env:"FAILURE_DELAY"`
	AwaitTimeout time.Duration `yaml:"awaitTimeout" env:"AWAIT_TIMEOUT"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"` // text or json
}
