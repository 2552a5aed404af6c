package session

import (
	"encoding/json"
	"errors"
	"strings"
)

// Persisted keys. All three are written together and cleared together.
const (
	KeyToken   = "token"
	KeyRefresh = "refresh"
	KeyUser    = "user"
)

var (
	// ErrStorageFailure is wrapped by every error caused by the persistence
	// backend (quota exceeded, read-only directory, unreachable Redis...).
	ErrStorageFailure = errors.New("session storage failure")

	// ErrEmptyAccessToken is returned when writing a token pair without an
	// access token.
	ErrEmptyAccessToken = errors.New("access token is empty")

	// ErrNoSession is returned by operations that require a live session.
	ErrNoSession = errors.New("no active session")
)

// Token is the live session token pair. An empty RefreshToken means the
// backend issued none.
type Token struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// HasRefresh reports whether a refresh token is present.
func (t Token) HasRefresh() bool { return t.RefreshToken != "" }

// Identity is the cached display profile of the signed-in user.
type Identity struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

// NewIdentity fills in the display defaults used across the dashboard: the
// name falls back to the local part of the username, and the email to the
// username when it looks like an address.
func NewIdentity(username, name, email string) Identity {
	if name == "" && username != "" {
		name = strings.SplitN(username, "@", 2)[0]
	}
	if email == "" && strings.Contains(username, "@") {
		email = username
	}
	return Identity{Username: username, Name: name, Email: email}
}

// DisplayName returns the name, falling back to the username.
func (i Identity) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	return i.Username
}

// Record is the raw persisted form: the three keys of the scoped store.
// User holds the JSON-encoded Identity.
type Record struct {
	Token   string `json:"token"`
	Refresh string `json:"refresh,omitempty"`
	User    string `json:"user,omitempty"`
}

func recordFrom(tok Token, id *Identity) (Record, error) {
	rec := Record{Token: tok.AccessToken, Refresh: tok.RefreshToken}
	if id != nil {
		data, err := json.Marshal(id)
		if err != nil {
			return Record{}, err
		}
		rec.User = string(data)
	}
	return rec, nil
}

func (r Record) token() Token {
	return Token{AccessToken: r.Token, RefreshToken: r.Refresh}
}

func (r Record) identity() *Identity {
	if r.User == "" {
		return nil
	}
	var id Identity
	if err := json.Unmarshal([]byte(r.User), &id); err != nil {
		return nil
	}
	return &id
}

// EventType classifies a session change notification.
type EventType int

const (
	// EventWritten follows a successful Write or UpdateIdentity.
	EventWritten EventType = iota
	// EventCleared follows a Clear.
	EventCleared
	// EventExternalChange reports that another process changed the
	// persisted session.
	EventExternalChange
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventWritten:
		return "written"
	case EventCleared:
		return "cleared"
	case EventExternalChange:
		return "external_change"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers after a session change.
type Event struct {
	Type EventType
}
