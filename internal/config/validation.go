package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"healthdash/pkg/logging"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// Validate checks the whole configuration and returns every problem found.
func Validate(c Config) error {
	var errs ValidationErrors

	validateURL(&errs, "api.baseURL", c.API.BaseURL, true)
	validateURL(&errs, "api.appURL", c.API.AppURL, false)
	if c.API.Timeout < 0 {
		errs.Add("api.timeout", "must not be negative", c.API.Timeout)
	}

	validateOneOf(&errs, "session.backend", c.Session.Backend,
		[]string{SessionBackendFile, SessionBackendMemory, SessionBackendRedis})
	if c.Session.Backend == SessionBackendRedis && strings.TrimSpace(c.Session.Redis.Addr) == "" {
		errs.Add("session.redis.addr", "is required for the redis backend")
	}
	if c.Session.Redis.TTL < 0 {
		errs.Add("session.redis.ttl", "must not be negative", c.Session.Redis.TTL)
	}

	validateRoute(&errs, "routes.landing", c.Routes.Landing)
	validateRoute(&errs, "routes.home", c.Routes.Home)
	validateRoute(&errs, "routes.signIn", c.Routes.SignIn)
	validateRoute(&errs, "routes.callback", c.Routes.Callback)

	validateOneOf(&errs, "oauth.mode", c.OAuth.Mode, []string{"redirect", "popup"})
	if c.OAuth.Mode == "popup" && c.OAuth.ClientID == "" {
		errs.Add("oauth.clientID", "is required for popup mode")
	}
	if c.OAuth.CallbackPort < 0 || c.OAuth.CallbackPort > 65535 {
		errs.Add("oauth.callbackPort", "must be between 0 and 65535", c.OAuth.CallbackPort)
	}
	validatePositive(&errs, "oauth.successDelay", c.OAuth.SuccessDelay)
	validatePositive(&errs, "oauth.failureDelay", c.OAuth.FailureDelay)
	validatePositive(&errs, "oauth.awaitTimeout", c.OAuth.AwaitTimeout)

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs.Add("log.level", err.Error(), c.Log.Level)
	}
	validateOneOf(&errs, "log.format", c.Log.Format, []string{"text", "json"})

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateURL(errs *ValidationErrors, field, value string, required bool) {
	if value == "" {
		if required {
			errs.Add(field, "is required")
		}
		return
	}
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs.Add(field, "must be an absolute http(s) URL", value)
	}
}

func validateRoute(errs *ValidationErrors, field, value string) {
	if !strings.HasPrefix(value, "/") {
		errs.Add(field, "must start with '/'", value)
	}
}

func validateOneOf(errs *ValidationErrors, field, value string, allowed []string) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	errs.Add(field, fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")), value)
}

func validatePositive(errs *ValidationErrors, field string, d time.Duration) {
	if d <= 0 {
		errs.Add(field, "must be positive", d)
	}
}
