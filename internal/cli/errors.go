package cli

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"syscall"
)

// ConnectionErrorType says why the backend could not be reached.
type ConnectionErrorType int

const (
	ConnectionErrorUnknown ConnectionErrorType = iota
	// ConnectionErrorTLS covers certificate failures and plain-HTTP backends
	// addressed over https.
	ConnectionErrorTLS
	// ConnectionErrorUnreachable means nothing accepted the connection,
	// usually a backend that is not running.
	ConnectionErrorUnreachable
	ConnectionErrorTimeout
	ConnectionErrorDNS
	// ConnectionErrorCanceled means the command was interrupted.
	ConnectionErrorCanceled
)

func (t ConnectionErrorType) String() string {
	switch t {
	case ConnectionErrorTLS:
		return "tls"
	case ConnectionErrorUnreachable:
		return "unreachable"
	case ConnectionErrorTimeout:
		return "timeout"
	case ConnectionErrorDNS:
		return "dns"
	case ConnectionErrorCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// ConnectionError reports a request that never got an HTTP response from
// the backend.
type ConnectionError struct {
	Endpoint string
	Type     ConnectionErrorType
	Reason   error
}

// Checked in order; the first match wins.
var connectionClassifiers = []struct {
	typ   ConnectionErrorType
	match func(error) bool
}{
	{ConnectionErrorCanceled, isCanceled},
	{ConnectionErrorTLS, isTLSError},
	{ConnectionErrorDNS, isDNSError},
	{ConnectionErrorTimeout, isTimeoutError},
	{ConnectionErrorUnreachable, isUnreachable},
}

// ClassifyConnectionError wraps a transport failure from the gateway in a
// ConnectionError. It returns nil for a nil err.
func ClassifyConnectionError(err error, endpoint string) *ConnectionError {
	if err == nil {
		return nil
	}
	connErr := &ConnectionError{Endpoint: endpoint, Type: ConnectionErrorUnknown, Reason: err}
	for _, c := range connectionClassifiers {
		if c.match(err) {
			connErr.Type = c.typ
			break
		}
	}
	return connErr
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

func isTLSError(err error) bool {
	var (
		unknownAuthority x509.UnknownAuthorityError
		hostname         x509.HostnameError
		invalid          x509.CertificateInvalidError
		verification     *tls.CertificateVerificationError
		recordHeader     tls.RecordHeaderError
	)
	if errors.As(err, &unknownAuthority) || errors.As(err, &hostname) || errors.As(err, &invalid) ||
		errors.As(err, &verification) || errors.As(err, &recordHeader) {
		return true
	}
	// net/http reports some handshake failures only as text.
	msg := err.Error()
	return strings.Contains(msg, "x509:") || strings.Contains(msg, "tls:") ||
		strings.Contains(msg, "server gave HTTP response to HTTPS client")
}

func isDNSError(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isUnreachable(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ENETUNREACH) || errors.Is(err, syscall.EHOSTUNREACH) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	return strings.Contains(err.Error(), "connection refused")
}

// AuthRequiredError indicates a command needs a session and none is stored.
type AuthRequiredError struct {
	// Endpoint is the backend that requires authentication.
	Endpoint string
}

// Error returns a user-friendly error message with actionable guidance.
func (e *AuthRequiredError) Error() string {
	return fmt.Sprintf(`Authentication required for %s

To sign in with Google, run:
  healthdash auth login

To sign in with a username and password:
  healthdash auth signin`, e.Endpoint)
}

// Is allows errors.Is() to work with wrapped errors.
func (e *AuthRequiredError) Is(target error) bool {
	_, ok := target.(*AuthRequiredError)
	return ok
}

// AuthExpiredError indicates the backend rejected the stored session. The
// session has already been cleared when this is returned.
type AuthExpiredError struct {
	// Endpoint is the backend that rejected the token.
	Endpoint string
}

// Error returns a user-friendly error message with actionable guidance.
func (e *AuthExpiredError) Error() string {
	return fmt.Sprintf(`Authentication expired for %s

Your session was cleared. To sign in again, run:
  healthdash auth login`, e.Endpoint)
}

// Is allows errors.Is() to work with wrapped errors.
func (e *AuthExpiredError) Is(target error) bool {
	_, ok := target.(*AuthExpiredError)
	return ok
}

// AuthFailedError indicates a sign-in attempt failed.
type AuthFailedError struct {
	// Endpoint is the backend where authentication failed.
	Endpoint string
	// Reason is the underlying error.
	Reason error
}

// Error returns a user-friendly error message with actionable guidance.
func (e *AuthFailedError) Error() string {
	return fmt.Sprintf(`Authentication failed for %s: %v

To retry, run:
  healthdash auth login`, e.Endpoint, e.Reason)
}

// Unwrap returns the underlying error.
func (e *AuthFailedError) Unwrap() error {
	return e.Reason
}

// Is allows errors.Is() to work with wrapped errors.
func (e *AuthFailedError) Is(target error) bool {
	_, ok := target.(*AuthFailedError)
	return ok
}

func (e *ConnectionError) Error() string {
	switch e.Type {
	case ConnectionErrorTLS:
		return fmt.Sprintf(`Secure connection to %s failed: %v

Check that api.baseURL uses http:// for a local development backend, or that
the backend's certificate is trusted by this machine.`, e.Endpoint, e.Reason)
	case ConnectionErrorUnreachable:
		return fmt.Sprintf(`Cannot reach the backend at %s: %v

Start the backend, or point api.baseURL (HEALTHDASH_API_BASE_URL) at the
right host and port.`, e.Endpoint, e.Reason)
	case ConnectionErrorTimeout:
		return fmt.Sprintf(`The backend at %s did not answer in time: %v

Raise api.timeout if the backend is slow to respond.`, e.Endpoint, e.Reason)
	case ConnectionErrorDNS:
		return fmt.Sprintf("Cannot resolve the backend host of %s: %v", e.Endpoint, e.Reason)
	case ConnectionErrorCanceled:
		return fmt.Sprintf("Request to %s was interrupted", e.Endpoint)
	default:
		return fmt.Sprintf("Request to %s failed before the backend answered: %v", e.Endpoint, e.Reason)
	}
}

// Unwrap returns the underlying error.
func (e *ConnectionError) Unwrap() error {
	return e.Reason
}

// Is allows errors.Is() to work with wrapped errors.
func (e *ConnectionError) Is(target error) bool {
	_, ok := target.(*ConnectionError)
	return ok
}
