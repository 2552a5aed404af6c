package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"healthdash/internal/metrics"
	"healthdash/internal/navigation"
	"healthdash/internal/session"
	"healthdash/pkg/logging"
)

// maxResponseBytes bounds how much of a response body is buffered.
const maxResponseBytes = 10 << 20

// CSRFProvider supplies the anti-forgery token for mutating requests.
type CSRFProvider interface {
	// Token returns the token, or ok=false when none is available.
	Token(ctx context.Context) (token string, ok bool)
	HeaderName() string
	Seed(token string)
	Invalidate()
}

// Config configures a Client.
type Config struct {
	// BaseURL is the backend origin, e.g. "http://127.0.0.1:8000".
	BaseURL string

	// LandingRoute is where the user is sent after the backend rejects
	// the session credential.
	LandingRoute string

	// Timeout bounds each request. Zero means no timeout.
	Timeout time.Duration

	UserAgent string
}

// Request describes one call to the backend.
type Request struct {
	Method string

	// Path is resolved against Config.BaseURL unless it is absolute.
	Path  string
	Query url.Values

	// Body is JSON encoded when non-nil.
	Body interface{}

	// Header carries extra per-request headers.
	Header http.Header

	// Anonymous omits the session credential.
	Anonymous bool
}

// Response is a completed 2xx or 3xx response. Redirects are not followed.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v interface{}) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Redirect returns the Location of a 3xx response.
func (r *Response) Redirect() (string, bool) {
	if r.Status < 300 || r.Status >= 400 {
		return "", false
	}
	loc := r.Header.Get("Location")
	return loc, loc != ""
}

// Client wraps every outbound request to the backend. Headers are built
// per request; nothing is stored on shared defaults.
//
// When the backend answers 401 to a request whose bearer is still the
// stored access token, the session is cleared and the user is sent to the
// landing route. This happens at most once until a new session is written, no
// matter how many requests fail concurrently.
type Client struct {
	cfg     Config
	http    *http.Client
	store   *session.Store
	csrf    CSRFProvider
	nav     navigation.Navigator
	metrics *metrics.Metrics

	expired     atomic.Bool
	unsubscribe func()
}

// NewClient creates a Client. httpClient may carry a cookie jar shared with
// the CSRF manager; its redirect policy is replaced so that 3xx responses
// reach the caller. csrf and m may be nil.
func NewClient(cfg Config, httpClient *http.Client, store *session.Store, csrf CSRFProvider, nav navigation.Navigator, m *metrics.Metrics) *Client {
	if cfg.LandingRoute == "" {
		cfg.LandingRoute = "/"
	}

	hc := &http.Client{}
	if httpClient != nil {
		*hc = *httpClient
	}
	hc.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	if cfg.Timeout > 0 {
		hc.Timeout = cfg.Timeout
	}

	c := &Client{
		cfg:     cfg,
		http:    hc,
		store:   store,
		csrf:    csrf,
		nav:     nav,
		metrics: m,
	}
	c.unsubscribe = store.Subscribe(func(ev session.Event) {
		if ev.Type == session.EventWritten && c.expired.CompareAndSwap(true, false) {
			logging.Debug("Gateway", "new session written, authorization-failure handling re-armed")
		}
	})
	return c
}

// Close detaches the client from the session store.
func (c *Client) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
}

// CSRF returns the CSRF provider, which may be nil.
func (c *Client) CSRF() CSRFProvider { return c.csrf }

// Store returns the session store.
func (c *Client) Store() *session.Store { return c.store }

// Do sends req. Non-2xx/3xx responses and transport failures are returned
// as *APIError.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	target, err := c.resolve(req.Path, req.Query)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	sentToken := c.applyHeaders(ctx, httpReq, req)

	logging.Debug("Gateway", "%s %s", method, req.Path)
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.metrics.ObserveRequest(method, 0)
		return nil, networkError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	c.metrics.ObserveRequest(method, resp.StatusCode)
	if err != nil {
		return nil, networkError(err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		return &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
	}

	if resp.StatusCode == http.StatusUnauthorized && sentToken != "" {
		if cur := c.store.Read(ctx); cur != nil && cur.AccessToken == sentToken {
			c.handleExpired(ctx)
		} else {
			logging.Debug("Gateway", "authorization failure for a replaced credential, session kept")
		}
		return nil, &APIError{
			Message: "session expired, please sign in again",
			Status:  http.StatusUnauthorized,
			Err:     ErrAuthorizationExpired,
		}
	}

	if resp.StatusCode == http.StatusForbidden && isMutating(method) && c.csrf != nil {
		// The token may have rotated; refetch on the next mutating call.
		c.csrf.Invalidate()
	}

	return nil, statusError(resp.StatusCode, data)
}

func (c *Client) resolve(path string, query url.Values) (string, error) {
	var raw string
	if navigation.IsAbsolute(path) {
		raw = path
	} else {
		raw = strings.TrimSuffix(c.cfg.BaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid request path %q: %w", path, err)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// applyHeaders builds the headers of one request and returns the access
// token it attached, or "" for an anonymous request.
func (c *Client) applyHeaders(ctx context.Context, httpReq *http.Request, req Request) string {
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.cfg.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	if isMutating(httpReq.Method) && c.csrf != nil && httpReq.Header.Get(c.csrf.HeaderName()) == "" {
		if tok, ok := c.csrf.Token(ctx); ok {
			httpReq.Header.Set(c.csrf.HeaderName(), tok)
		}
	}

	if req.Anonymous {
		return ""
	}
	tok := c.store.Read(ctx)
	if tok == nil {
		return ""
	}
	httpReq.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	return tok.AccessToken
}

func (c *Client) handleExpired(ctx context.Context) {
	if !c.expired.CompareAndSwap(false, true) {
		logging.Debug("Gateway", "authorization failure already being handled")
		return
	}

	c.metrics.IncrementAuthExpirations()
	logging.Audit("Gateway", "authorization_expired", slog.String("landing_route", c.cfg.LandingRoute))

	if err := c.store.Clear(ctx); err != nil {
		logging.Error("Gateway", err, "failed to clear session after authorization failure")
	}
	if c.csrf != nil {
		c.csrf.Invalidate()
	}
	c.nav.Assign(c.cfg.LandingRoute)
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
