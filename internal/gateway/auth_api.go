package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"healthdash/internal/session"
	"healthdash/pkg/logging"
)

// Paths locates the backend's authentication endpoints.
type Paths struct {
	CSRFToken      string
	GoogleLogin    string
	GoogleCallback string
	Login          string
	Signup         string
	Logout         string
	Profile        string
	GoogleStatus   string
	Verify         string
}

// DefaultPaths returns the backend's stock endpoint layout.
func DefaultPaths() Paths {
	return Paths{
		CSRFToken:      "/api/csrf-token/",
		GoogleLogin:    "/api/user/google/login/",
		GoogleCallback: "/api/user/google/callback/",
		Login:          "/login",
		Signup:         "/basic_signup/",
		Logout:         "/logout",
		Profile:        "/profile",
		GoogleStatus:   "/api/user/google/status/",
		Verify:         "/api/auth/verify/",
	}
}

// ErrNoAuthURL is returned when the backend does not supply a consent URL.
var ErrNoAuthURL = errors.New("backend returned no authorization URL")

// ErrNoTokenIssued is returned by Login and Signup when the backend accepted
// the credentials but issued no access token.
var ErrNoTokenIssued = errors.New("backend issued no access token")

// UserPayload is the user object embedded in authentication responses.
type UserPayload struct {
	Username  string `json:"username"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Identity converts the payload into the cached identity.
func (u *UserPayload) Identity() session.Identity {
	name := u.Name
	if name == "" {
		name = strings.TrimSpace(u.FirstName + " " + u.LastName)
	}
	return session.NewIdentity(u.Username, name, u.Email)
}

// ExchangeResponse is the backend's answer to a code exchange.
type ExchangeResponse struct {
	Token      string       `json:"token"`
	Refresh    string       `json:"refresh"`
	User       *UserPayload `json:"user"`
	Redirected bool         `json:"redirected"`
	Location   string       `json:"location"`
	Success    *bool        `json:"success"`
	Error      string       `json:"error"`
	Message    string       `json:"message"`
}

// Redirect reports whether the backend asked for a provider redirect.
func (r *ExchangeResponse) Redirect() (string, bool) {
	if r.Redirected && r.Location != "" {
		return r.Location, true
	}
	return "", false
}

// Failure returns the backend-reported failure of a 2xx response, if any.
func (r *ExchangeResponse) Failure() string {
	if r.Error != "" {
		return r.Error
	}
	if r.Success != nil && !*r.Success {
		if r.Message != "" {
			return r.Message
		}
		return "authentication failed"
	}
	return ""
}

// LoginResult is returned by Login and Signup.
type LoginResult struct {
	Identity *session.Identity
	Message  string
}

// GoogleStatus reports whether Google Fit is linked.
type GoogleStatus struct {
	Connected bool `json:"connected"`
}

// SessionCheck is the backend's answer to a session verification.
type SessionCheck struct {
	Message string `json:"message"`
}

// AuthAPI exposes the typed authentication endpoints.
type AuthAPI struct {
	client *Client
	paths  Paths
}

// WithDefaults fills empty paths from DefaultPaths.
func (p Paths) WithDefaults() Paths {
	def := DefaultPaths()
	fill := func(v *string, d string) {
		if *v == "" {
			*v = d
		}
	}
	fill(&p.CSRFToken, def.CSRFToken)
	fill(&p.GoogleLogin, def.GoogleLogin)
	fill(&p.GoogleCallback, def.GoogleCallback)
	fill(&p.Login, def.Login)
	fill(&p.Signup, def.Signup)
	fill(&p.Logout, def.Logout)
	fill(&p.Profile, def.Profile)
	fill(&p.GoogleStatus, def.GoogleStatus)
	fill(&p.Verify, def.Verify)
	return p
}

// NewAuthAPI creates an AuthAPI on client. Empty paths take defaults.
func NewAuthAPI(client *Client, paths Paths) *AuthAPI {
	return &AuthAPI{client: client, paths: paths.WithDefaults()}
}

// Paths returns the endpoint layout in use.
func (a *AuthAPI) Paths() Paths { return a.paths }

// GoogleLoginURL asks the backend for the provider consent URL.
func (a *AuthAPI) GoogleLoginURL(ctx context.Context) (string, error) {
	resp, err := a.client.Do(ctx, Request{Method: http.MethodGet, Path: a.paths.GoogleLogin, Anonymous: true})
	if err != nil {
		return "", err
	}
	var payload struct {
		AuthURL string `json:"authUrl"`
	}
	if err := resp.Decode(&payload); err != nil {
		return "", err
	}
	if payload.AuthURL == "" {
		return "", ErrNoAuthURL
	}
	return payload.AuthURL, nil
}

// ExchangeCodeGet exchanges an authorization code with a GET request. A 3xx
// answer is reported as a redirect.
func (a *AuthAPI) ExchangeCodeGet(ctx context.Context, code string) (*ExchangeResponse, error) {
	resp, err := a.client.Do(ctx, Request{
		Method:    http.MethodGet,
		Path:      a.paths.GoogleCallback,
		Query:     url.Values{"code": {code}},
		Anonymous: true,
	})
	if err != nil {
		return nil, err
	}
	return decodeExchange(resp)
}

// ExchangeCodePost exchanges an authorization code with a POST request.
func (a *AuthAPI) ExchangeCodePost(ctx context.Context, code string) (*ExchangeResponse, error) {
	resp, err := a.client.Do(ctx, Request{
		Method:    http.MethodPost,
		Path:      a.paths.GoogleCallback,
		Body:      map[string]string{"code": code},
		Anonymous: true,
	})
	if err != nil {
		return nil, err
	}
	return decodeExchange(resp)
}

func decodeExchange(resp *Response) (*ExchangeResponse, error) {
	if loc, ok := resp.Redirect(); ok {
		return &ExchangeResponse{Redirected: true, Location: loc}, nil
	}
	var out ExchangeResponse
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	Refresh   string       `json:"refresh"`
	User      *UserPayload `json:"user"`
	CSRFToken string       `json:"csrfToken"`
	Message   string       `json:"message"`
}

// Login authenticates with basic credentials and persists the issued
// session. A csrfToken in the response seeds the CSRF cache.
func (a *AuthAPI) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	return a.authenticate(ctx, a.paths.Login, username, password)
}

// Signup registers a basic-credential account and persists the issued
// session.
func (a *AuthAPI) Signup(ctx context.Context, username, password string) (*LoginResult, error) {
	return a.authenticate(ctx, a.paths.Signup, username, password)
}

func (a *AuthAPI) authenticate(ctx context.Context, path, username, password string) (*LoginResult, error) {
	resp, err := a.client.Do(ctx, Request{
		Method:    http.MethodPost,
		Path:      path,
		Body:      credentials{Username: username, Password: password},
		Anonymous: true,
	})
	if err != nil {
		return nil, err
	}

	var payload loginResponse
	if err := resp.Decode(&payload); err != nil {
		return nil, err
	}

	if csrf := a.client.CSRF(); csrf != nil && payload.CSRFToken != "" {
		csrf.Seed(payload.CSRFToken)
	}

	var id session.Identity
	if payload.User != nil {
		id = payload.User.Identity()
	} else {
		id = session.NewIdentity(username, "", "")
	}
	result := &LoginResult{Identity: &id, Message: payload.Message}

	if payload.Token == "" {
		logging.Warn("Gateway", "backend accepted credentials for %s but issued no access token", path)
		return result, ErrNoTokenIssued
	}

	tok := session.Token{AccessToken: payload.Token, RefreshToken: payload.Refresh}
	if err := a.client.Store().Write(ctx, tok, &id); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}
	return result, nil
}

// Logout ends the session on the backend and clears local state even when
// the backend call fails.
func (a *AuthAPI) Logout(ctx context.Context) error {
	_, reqErr := a.client.Do(ctx, Request{Method: http.MethodPost, Path: a.paths.Logout, Body: struct{}{}})

	if csrf := a.client.CSRF(); csrf != nil {
		csrf.Invalidate()
	}
	if err := a.client.Store().Clear(ctx); err != nil {
		return err
	}
	if reqErr != nil && !errors.Is(reqErr, ErrAuthorizationExpired) {
		logging.Warn("Gateway", "backend logout failed, local session cleared anyway: %v", reqErr)
	}
	return nil
}

// Profile fetches the user profile and refreshes the cached identity.
func (a *AuthAPI) Profile(ctx context.Context) (*session.Identity, error) {
	resp, err := a.client.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   a.paths.Profile,
		Query:  a.usernameQuery(ctx),
	})
	if err != nil {
		return nil, err
	}

	var payload UserPayload
	if err := resp.Decode(&payload); err != nil {
		return nil, err
	}
	if payload.Username == "" {
		if cur := a.client.Store().Identity(ctx); cur != nil {
			payload.Username = cur.Username
		}
	}
	id := payload.Identity()

	if err := a.client.Store().UpdateIdentity(ctx, id); err != nil && !errors.Is(err, session.ErrNoSession) {
		logging.Warn("Gateway", "failed to cache refreshed identity: %v", err)
	}
	return &id, nil
}

// GoogleStatus reports whether Google Fit is linked. Any failure is
// reported as not connected.
func (a *AuthAPI) GoogleStatus(ctx context.Context) GoogleStatus {
	resp, err := a.client.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   a.paths.GoogleStatus,
		Query:  a.usernameQuery(ctx),
	})
	if err != nil {
		logging.Debug("Gateway", "google status check failed: %v", err)
		return GoogleStatus{}
	}
	var status GoogleStatus
	if err := resp.Decode(&status); err != nil {
		logging.Debug("Gateway", "google status response unreadable: %v", err)
		return GoogleStatus{}
	}
	return status
}

// VerifySession asks the backend whether the stored access token is still
// accepted. A rejected token goes through the client's authorization-failure
// handling, so the session is cleared and ErrAuthorizationExpired returned.
func (a *AuthAPI) VerifySession(ctx context.Context) (*SessionCheck, error) {
	if a.client.Store().Read(ctx) == nil {
		return nil, session.ErrNoSession
	}

	resp, err := a.client.Do(ctx, Request{Method: http.MethodGet, Path: a.paths.Verify})
	if err != nil {
		return nil, err
	}

	check := &SessionCheck{}
	if err := resp.Decode(check); err != nil {
		logging.Debug("Gateway", "session verification response unreadable: %v", err)
	}
	return check, nil
}

func (a *AuthAPI) usernameQuery(ctx context.Context) url.Values {
	id := a.client.Store().Identity(ctx)
	if id == nil || id.Username == "" {
		return nil
	}
	return url.Values{"username": {id.Username}}
}
