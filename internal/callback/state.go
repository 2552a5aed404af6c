package callback

import (
	"errors"

	"healthdash/internal/session"
)

// State is a step of the callback resolution.
type State int

const (
	StateInit State = iota
	StateCheckingDirectTokens
	StateExchangingCodeGet
	StateExchangingCodePost
	StateSucceeded
	StateRedirected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateCheckingDirectTokens:
		return "CHECKING_DIRECT_TOKENS"
	case StateExchangingCodeGet:
		return "EXCHANGING_CODE_GET"
	case StateExchangingCodePost:
		return "EXCHANGING_CODE_POST"
	case StateSucceeded:
		return "SUCCEEDED"
	case StateRedirected:
		return "REDIRECTED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateRedirected || s == StateFailed
}

// ResultKind classifies the outcome of a resolution.
type ResultKind int

const (
	ResultSuccess ResultKind = iota
	ResultProviderRedirect
	ResultFailure
)

func (k ResultKind) String() string {
	switch k {
	case ResultSuccess:
		return "success"
	case ResultProviderRedirect:
		return "provider_redirect"
	case ResultFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Result is the outcome of a resolution.
type Result struct {
	Kind ResultKind

	// Token is the persisted session on success.
	Token session.Token

	// RedirectTarget is the in-app route the user is sent to after the
	// grace period (home on success, sign-in on failure).
	RedirectTarget string

	// Location is the provider URL of a redirect.
	Location string

	// Reason is the user-facing failure text.
	Reason string

	// Err is the failure cause for errors.Is inspection.
	Err error
}

// Error flags appended to the sign-in route after a failure.
const (
	FlagLoginFailed   = "google_login_failed"
	FlagStorageFailed = "storage_failed"
)

var (
	// ErrMissingParameters means the callback carried neither tokens nor a
	// code.
	ErrMissingParameters = errors.New("missing callback parameters")

	// ErrProviderDenied means the provider reported an error on the URL.
	ErrProviderDenied = errors.New("identity provider returned an error")

	// ErrExchangeFailed means the code could not be exchanged for a token.
	ErrExchangeFailed = errors.New("code exchange failed")

	// ErrDisposed means the resolver was disposed before it finished.
	ErrDisposed = errors.New("callback resolution disposed")
)
