// Package csrf caches the backend's anti-forgery token for mutating
// requests.
package csrf

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"healthdash/internal/metrics"
	"healthdash/pkg/logging"
)

// Default names used by the backend.
const (
	DefaultBodyField  = "csrfToken"
	DefaultCookieName = "csrftoken"
	DefaultHeaderName = "X-CSRFToken"
)

// Token sources, also used as metric labels.
const (
	SourceBody   = "body"
	SourceCookie = "cookie"
	SourceHeader = "header"
	SourceNone   = "none"
	SourceError  = "error"
)

// maxBodyBytes bounds how much of the token endpoint response is read.
const maxBodyBytes = 64 << 10

// fetchTimeout bounds a shared fetch, which outlives the caller that
// started it.
const fetchTimeout = 30 * time.Second

// Config describes the token endpoint.
type Config struct {
	// Endpoint is the absolute URL of the token endpoint.
	Endpoint string

	BodyField  string
	CookieName string
	HeaderName string
}

func (c *Config) applyDefaults() {
	if c.BodyField == "" {
		c.BodyField = DefaultBodyField
	}
	if c.CookieName == "" {
		c.CookieName = DefaultCookieName
	}
	if c.HeaderName == "" {
		c.HeaderName = DefaultHeaderName
	}
}

// Manager holds the cached CSRF token. Concurrent callers that find the
// cache empty share one request to the token endpoint.
type Manager struct {
	cfg     Config
	client  *http.Client
	metrics *metrics.Metrics

	fetchGroup singleflight.Group

	mu         sync.RWMutex
	token      string
	generation uint64
}

// NewManager creates a Manager. client should carry the same cookie jar as
// the gateway so that a token set as a cookie is found there. m may be nil.
func NewManager(cfg Config, client *http.Client, m *metrics.Metrics) *Manager {
	cfg.applyDefaults()
	if client == nil {
		client = http.DefaultClient
	}
	return &Manager{cfg: cfg, client: client, metrics: m}
}

// HeaderName is the request header carrying the token.
func (m *Manager) HeaderName() string { return m.cfg.HeaderName }

// Token returns the cached token, fetching it when the cache is empty. ok is
// false when no token could be obtained; callers then proceed without CSRF
// protection. Each caller waits on its own ctx; cancelling one caller does
// not cancel the fetch shared with the others.
func (m *Manager) Token(ctx context.Context) (string, bool) {
	if tok := m.Peek(); tok != "" {
		return tok, true
	}

	ch := m.fetchGroup.DoChan("csrf", func() (interface{}, error) {
		// A caller may have filled the cache while we waited for the group.
		if tok := m.Peek(); tok != "" {
			return tok, nil
		}

		m.mu.RLock()
		gen := m.generation
		m.mu.RUnlock()

		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()

		tok, source, err := m.fetch(fetchCtx)
		m.metrics.ObserveCSRFFetch(source)
		if err != nil {
			logging.Warn("CSRF", "CSRF token request failed, proceeding without CSRF protection: %v", err)
			return "", nil
		}
		if tok == "" {
			logging.Warn("CSRF", "CSRF token endpoint returned no token, proceeding without CSRF protection")
			return "", nil
		}

		m.mu.Lock()
		if m.generation == gen {
			m.token = tok
		}
		m.mu.Unlock()

		logging.Debug("CSRF", "CSRF token cached from %s", source)
		return tok, nil
	})

	select {
	case res := <-ch:
		tok, _ := res.Val.(string)
		return tok, tok != ""
	case <-ctx.Done():
		logging.Debug("CSRF", "gave up waiting for CSRF token: %v", ctx.Err())
		return "", false
	}
}

// Peek returns the cached token without fetching.
func (m *Manager) Peek() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// Seed caches a token obtained elsewhere, such as a login response.
func (m *Manager) Seed(token string) {
	if token == "" {
		return
	}
	m.mu.Lock()
	m.token = token
	m.generation++
	m.mu.Unlock()
}

// Invalidate drops the cached token. A fetch that is in flight when
// Invalidate is called does not repopulate the cache.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.token = ""
	m.generation++
	m.mu.Unlock()
	logging.Debug("CSRF", "CSRF token cache invalidated")
}

func (m *Manager) fetch(ctx context.Context) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.cfg.Endpoint, nil)
	if err != nil {
		return "", SourceError, fmt.Errorf("failed to create CSRF request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", SourceError, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", SourceError, fmt.Errorf("CSRF endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", SourceError, fmt.Errorf("failed to read CSRF response: %w", err)
	}

	tok, source := m.extract(resp, body)
	return tok, source, nil
}

// extract applies the priority order body field, cookie, response header.
func (m *Manager) extract(resp *http.Response, body []byte) (string, string) {
	if tok := bodyField(body, m.cfg.BodyField); tok != "" {
		return tok, SourceBody
	}
	if tok := m.cookieValue(resp); tok != "" {
		return tok, SourceCookie
	}
	if tok := resp.Header.Get(m.cfg.HeaderName); tok != "" {
		return tok, SourceHeader
	}
	return "", SourceNone
}

func bodyField(body []byte, field string) string {
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	s, _ := payload[field].(string)
	return s
}

func (m *Manager) cookieValue(resp *http.Response) string {
	for _, c := range resp.Cookies() {
		if c.Name == m.cfg.CookieName && c.Value != "" {
			return c.Value
		}
	}

	if m.client.Jar == nil {
		return ""
	}
	u, err := url.Parse(m.cfg.Endpoint)
	if err != nil {
		return ""
	}
	for _, c := range m.client.Jar.Cookies(u) {
		if c.Name == m.cfg.CookieName && c.Value != "" {
			return c.Value
		}
	}
	return ""
}
