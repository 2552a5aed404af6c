// Package gateway is the single HTTP client used to talk to the dashboard
// backend.
//
// Every request gets freshly built headers: JSON content negotiation, the
// CSRF token on POST, PUT, PATCH and DELETE, and the bearer token of the
// current session. Failures are normalized into *APIError.
//
// A 401 answer to a request that carried the session credential means the
// session is no longer valid. The client then clears the session and sends
// the user to the landing route, once per session: concurrent failures
// observe that the redirect is already under way and only return
// ErrAuthorizationExpired.
package gateway
