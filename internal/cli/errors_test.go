package cli

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthdash/internal/gateway"
)

func TestAuthRequiredError(t *testing.T) {
	err := &AuthRequiredError{Endpoint: "https://api.healthrec.example"}

	assert.Contains(t, err.Error(), "https://api.healthrec.example")
	assert.Contains(t, err.Error(), "healthdash auth login")
	assert.Contains(t, err.Error(), "healthdash auth signin")

	assert.True(t, errors.Is(fmt.Errorf("wrapped: %w", err), &AuthRequiredError{}))
	assert.False(t, err.Is(errors.New("some error")))
}

func TestAuthExpiredError(t *testing.T) {
	err := &AuthExpiredError{Endpoint: "https://api.healthrec.example"}

	assert.Contains(t, err.Error(), "expired")
	assert.Contains(t, err.Error(), "healthdash auth login")
	assert.True(t, errors.Is(fmt.Errorf("wrapped: %w", err), &AuthExpiredError{}))
	assert.False(t, errors.Is(err, &AuthRequiredError{}))
}

func TestAuthFailedError(t *testing.T) {
	reason := errors.New("invalid_grant")
	err := &AuthFailedError{Endpoint: "https://api.healthrec.example", Reason: reason}

	assert.Contains(t, err.Error(), "invalid_grant")
	assert.ErrorIs(t, err, reason)
	assert.True(t, errors.Is(fmt.Errorf("wrapped: %w", err), &AuthFailedError{}))
}

func TestConnectionError_Messages(t *testing.T) {
	tests := []struct {
		name     string
		typ      ConnectionErrorType
		contains []string
	}{
		{"tls", ConnectionErrorTLS, []string{"Secure connection", "http://"}},
		{"unreachable", ConnectionErrorUnreachable, []string{"Cannot reach the backend", "HEALTHDASH_API_BASE_URL"}},
		{"timeout", ConnectionErrorTimeout, []string{"did not answer in time", "api.timeout"}},
		{"dns", ConnectionErrorDNS, []string{"Cannot resolve"}},
		{"canceled", ConnectionErrorCanceled, []string{"interrupted"}},
		{"unknown", ConnectionErrorUnknown, []string{"before the backend answered", "boom"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &ConnectionError{Endpoint: "https://api.healthrec.example", Type: tt.typ, Reason: errors.New("boom")}
			msg := err.Error()
			assert.Contains(t, msg, "api.healthrec.example")
			for _, want := range tt.contains {
				assert.Contains(t, msg, want)
			}
		})
	}
}

func TestConnectionError_Unwrap(t *testing.T) {
	reason := errors.New("connection refused")
	err := &ConnectionError{Endpoint: "https://example.com", Type: ConnectionErrorUnreachable, Reason: reason}

	assert.Same(t, reason, err.Unwrap())
	assert.True(t, errors.Is(fmt.Errorf("wrapped: %w", err), &ConnectionError{}))
}

func TestClassifyConnectionError(t *testing.T) {
	assert.Nil(t, ClassifyConnectionError(nil, "https://example.com"))

	hostErr := x509.HostnameError{Certificate: &x509.Certificate{}, Host: "example.com"}
	refused := &net.OpError{Op: "dial", Net: "tcp", Err: &os.SyscallError{Syscall: "connect", Err: syscall.ECONNREFUSED}}

	tests := []struct {
		name string
		err  error
		want ConnectionErrorType
	}{
		{"certificate verification", &tls.CertificateVerificationError{Err: hostErr}, ConnectionErrorTLS},
		{"hostname", fmt.Errorf("get: %w", hostErr), ConnectionErrorTLS},
		{"https to plain http", errors.New(`Get "https://127.0.0.1:8000/profile": http: server gave HTTP response to HTTPS client`), ConnectionErrorTLS},
		{"refused", &url.Error{Op: "Get", URL: "http://127.0.0.1:8000/profile", Err: refused}, ConnectionErrorUnreachable},
		{"refused text", errors.New("dial tcp 127.0.0.1:8000: connect: connection refused"), ConnectionErrorUnreachable},
		{"deadline", fmt.Errorf("get: %w", context.DeadlineExceeded), ConnectionErrorTimeout},
		{"canceled", &url.Error{Op: "Get", URL: "http://127.0.0.1:8000/profile", Err: context.Canceled}, ConnectionErrorCanceled},
		{"dns", fmt.Errorf("lookup failed: %w", &net.DNSError{Err: "no such host", Name: "nowhere.example"}), ConnectionErrorDNS},
		{"unknown", errors.New("some random error"), ConnectionErrorUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyConnectionError(tt.err, "https://example.com")
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Type)
		})
	}
}

func TestTranslateError(t *testing.T) {
	const endpoint = "http://127.0.0.1:8000"

	assert.NoError(t, TranslateError(nil, endpoint))

	expired := &gateway.APIError{Status: 401, Message: "Unauthorized", Err: gateway.ErrAuthorizationExpired}
	assert.True(t, errors.Is(TranslateError(expired, endpoint), &AuthExpiredError{}))

	refused := &net.OpError{Op: "dial", Net: "tcp", Err: &os.SyscallError{Syscall: "connect", Err: syscall.ECONNREFUSED}}
	network := &gateway.APIError{Message: "connection refused", Err: fmt.Errorf("%w: %w", gateway.ErrNetworkFailure, refused)}
	var connErr *ConnectionError
	require.ErrorAs(t, TranslateError(network, endpoint), &connErr)
	assert.Equal(t, ConnectionErrorUnreachable, connErr.Type)

	plain := &gateway.APIError{Status: 400, Message: "bad"}
	assert.Same(t, error(plain), TranslateError(plain, endpoint))
}
