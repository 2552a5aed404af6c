package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	textutil "healthdash/pkg/strings"
)

var (
	// ErrNetworkFailure indicates the request never produced a response.
	ErrNetworkFailure = errors.New("network failure")

	// ErrAuthorizationExpired indicates the backend rejected the session
	// credential. The session has been cleared by the time it is returned.
	ErrAuthorizationExpired = errors.New("authorization expired")
)

// maxMessageLen bounds the raw body used as an error message.
const maxMessageLen = 512

// APIError is the normalized error returned for every failed request.
// Status is 0 when the request never completed.
type APIError struct {
	Message string
	Status  int

	// FromProvider is set when the backend reported the failure in an
	// "error" body field, as opposed to a transport or generic status error.
	FromProvider bool

	// Err is the underlying cause, if any.
	Err error
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

func (e *APIError) Unwrap() error { return e.Err }

// Is matches ErrNetworkFailure for status 0 errors even when Err is unset.
func (e *APIError) Is(target error) bool {
	return target == ErrNetworkFailure && e.Status == 0
}

// AsAPIError extracts an *APIError from err.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func networkError(err error) *APIError {
	return &APIError{
		Message: err.Error(),
		Status:  0,
		Err:     fmt.Errorf("%w: %w", ErrNetworkFailure, err),
	}
}

// statusError builds the APIError for a non-2xx response. The message
// prefers the body's error, message and detail fields, then the raw body,
// then the status text.
func statusError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err == nil {
		if msg := stringField(payload, "error"); msg != "" {
			apiErr.Message = msg
			apiErr.FromProvider = true
			return apiErr
		}
		for _, key := range []string{"message", "detail"} {
			if msg := stringField(payload, key); msg != "" {
				apiErr.Message = msg
				return apiErr
			}
		}
	}

	if raw := strings.TrimSpace(string(body)); raw != "" && !strings.HasPrefix(raw, "{") {
		apiErr.Message = textutil.SingleLine(raw, maxMessageLen)
		return apiErr
	}

	apiErr.Message = http.StatusText(status)
	if apiErr.Message == "" {
		apiErr.Message = "request failed"
	}
	return apiErr
}

func stringField(payload map[string]interface{}, key string) string {
	s, _ := payload[key].(string)
	return strings.TrimSpace(s)
}
