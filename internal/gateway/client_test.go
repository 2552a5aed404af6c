package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthdash/internal/csrf"
	"healthdash/internal/metrics"
	"healthdash/internal/navigation"
	"healthdash/internal/session"
)

type fixture struct {
	server  *httptest.Server
	mux     *http.ServeMux
	store   *session.Store
	csrf    *csrf.Manager
	nav     *navigation.Recorder
	metrics *metrics.Metrics
	client  *Client

	csrfHits int32
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		mux:     http.NewServeMux(),
		store:   session.NewStore(session.NewMemoryBackend(), nil),
		nav:     &navigation.Recorder{},
		metrics: metrics.New(),
	}
	f.mux.HandleFunc("/api/csrf-token/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.csrfHits, 1)
		_, _ = w.Write([]byte(`{"csrfToken":"csrf-1"}`))
	})
	f.server = httptest.NewServer(f.mux)
	t.Cleanup(f.server.Close)

	f.csrf = csrf.NewManager(csrf.Config{Endpoint: f.server.URL + "/api/csrf-token/"}, nil, f.metrics)
	f.client = NewClient(Config{BaseURL: f.server.URL, LandingRoute: "/"}, nil, f.store, f.csrf, f.nav, f.metrics)
	t.Cleanup(f.client.Close)
	return f
}

func (f *fixture) signIn(t *testing.T, access string) {
	t.Helper()
	require.NoError(t, f.store.Write(context.Background(), session.Token{AccessToken: access, RefreshToken: "r"}, nil))
}

func TestClient_GetCarriesBearerButNoCSRF(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, "T1")

	headers := make(chan http.Header, 1)
	f.mux.HandleFunc("/api/health/facts", func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		_, _ = w.Write([]byte(`{"facts":[]}`))
	})

	resp, err := f.client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/health/facts"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)

	got := <-headers
	assert.Equal(t, "Bearer T1", got.Get("Authorization"))
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Empty(t, got.Get("X-CSRFToken"))
	assert.Equal(t, int32(0), atomic.LoadInt32(&f.csrfHits))
}

func TestClient_MutatingRequestsCarryCSRF(t *testing.T) {
	f := newFixture(t)

	var seen []string
	var mu sync.Mutex
	f.mux.HandleFunc("/api/health/metrics/add", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get("X-CSRFToken"))
		mu.Unlock()
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{}`))
	})

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		_, err := f.client.Do(context.Background(), Request{Method: method, Path: "/api/health/metrics/add", Body: map[string]int{"value": 1}})
		require.NoError(t, err, method)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"csrf-1", "csrf-1", "csrf-1", "csrf-1"}, seen)
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.csrfHits))
}

func TestClient_ConcurrentMutatingRequestsShareOneCSRFFetch(t *testing.T) {
	f := newFixture(t)
	f.mux.HandleFunc("/api/support/contact", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "csrf-1", r.Header.Get("X-CSRFToken"))
		_, _ = w.Write([]byte(`{}`))
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.client.Do(context.Background(), Request{Method: http.MethodPost, Path: "/api/support/contact"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&f.csrfHits))
}

func TestClient_MissingCSRFProceeds(t *testing.T) {
	f := newFixture(t)
	f.csrf = csrf.NewManager(csrf.Config{Endpoint: f.server.URL + "/nope"}, nil, nil)
	f.client = NewClient(Config{BaseURL: f.server.URL}, nil, f.store, f.csrf, f.nav, nil)
	defer f.client.Close()

	var called atomic.Bool
	f.mux.HandleFunc("/logout", func(w http.ResponseWriter, r *http.Request) {
		called.Store(true)
		assert.Empty(t, r.Header.Get("X-CSRFToken"))
	})

	_, err := f.client.Do(context.Background(), Request{Method: http.MethodPost, Path: "/logout"})
	require.NoError(t, err)
	assert.True(t, called.Load())
}

func TestClient_ConcurrentUnauthorizedClearsOnce(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, "T1")

	var cleared int32
	f.store.Subscribe(func(ev session.Event) {
		if ev.Type == session.EventCleared {
			atomic.AddInt32(&cleared, 1)
		}
	})

	const n = 3
	var arrived sync.WaitGroup
	arrived.Add(n)
	f.mux.HandleFunc("/api/health/recommendations", func(w http.ResponseWriter, r *http.Request) {
		arrived.Done()
		arrived.Wait()
		http.Error(w, `{"detail":"token expired"}`, http.StatusUnauthorized)
	})

	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/health/recommendations"})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.ErrorIs(t, err, ErrAuthorizationExpired)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&cleared))
	assert.Equal(t, []navigation.Visit{{Kind: navigation.KindHard, Location: "/"}}, f.nav.Visits())
	assert.Nil(t, f.store.Read(context.Background()))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.AuthExpirations))
}

func TestClient_UnauthorizedRearmsAfterNewSession(t *testing.T) {
	f := newFixture(t)
	f.mux.HandleFunc("/profile", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	for i := 0; i < 2; i++ {
		f.signIn(t, "T")
		_, err := f.client.Do(context.Background(), Request{Path: "/profile"})
		require.ErrorIs(t, err, ErrAuthorizationExpired)
	}
	assert.Len(t, f.nav.Visits(), 2)
}

func TestClient_UnauthorizedForReplacedCredentialKeepsNewSession(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, "OLD")

	inFlight := make(chan struct{})
	release := make(chan struct{})
	f.mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer OLD", r.Header.Get("Authorization"))
		close(inFlight)
		<-release
		w.WriteHeader(http.StatusUnauthorized)
	})

	done := make(chan error, 1)
	go func() {
		_, err := f.client.Do(context.Background(), Request{Path: "/slow"})
		done <- err
	}()

	<-inFlight
	f.signIn(t, "NEW")
	close(release)

	err := <-done
	require.ErrorIs(t, err, ErrAuthorizationExpired)

	got := f.store.Read(context.Background())
	require.NotNil(t, got)
	assert.Equal(t, "NEW", got.AccessToken)
	assert.Empty(t, f.nav.Visits())
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.AuthExpirations))
}

func TestClient_UnauthorizedWithoutCredentialIsPlainError(t *testing.T) {
	f := newFixture(t)
	f.mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"Invalid credentials"}`))
	})

	_, err := f.client.Do(context.Background(), Request{Method: http.MethodPost, Path: "/login", Anonymous: true})

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Invalid credentials", apiErr.Message)
	assert.True(t, apiErr.FromProvider)
	assert.False(t, errors.Is(err, ErrAuthorizationExpired))
	assert.Empty(t, f.nav.Visits())
}

func TestClient_ForbiddenMutationInvalidatesCSRF(t *testing.T) {
	f := newFixture(t)
	f.mux.HandleFunc("/api/user/settings/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := f.client.Do(context.Background(), Request{Method: http.MethodPut, Path: "/api/user/settings/"})
	require.Error(t, err)
	assert.Empty(t, f.csrf.Peek())

	_, _ = f.client.Do(context.Background(), Request{Method: http.MethodPut, Path: "/api/user/settings/"})
	assert.Equal(t, int32(2), atomic.LoadInt32(&f.csrfHits))
}

func TestClient_NetworkFailure(t *testing.T) {
	f := newFixture(t)
	f.server.Close()

	_, err := f.client.Do(context.Background(), Request{Path: "/profile"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetworkFailure)

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, 0, apiErr.Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.GatewayRequests.WithLabelValues("GET", "network_error")))
}

func TestClient_RedirectsAreNotFollowed(t *testing.T) {
	f := newFixture(t)
	f.mux.HandleFunc("/bounce", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "https://accounts.google.com/o/oauth2/auth", http.StatusFound)
	})

	resp, err := f.client.Do(context.Background(), Request{Path: "/bounce"})
	require.NoError(t, err)
	loc, ok := resp.Redirect()
	assert.True(t, ok)
	assert.Equal(t, "https://accounts.google.com/o/oauth2/auth", loc)
}

func TestClient_QueryIsMerged(t *testing.T) {
	f := newFixture(t)
	f.mux.HandleFunc("/api/health/metrics/steps", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "week", r.URL.Query().Get("timeRange"))
		assert.Equal(t, "1", r.URL.Query().Get("page"))
	})

	_, err := f.client.Do(context.Background(), Request{
		Path:  "/api/health/metrics/steps?page=1",
		Query: map[string][]string{"timeRange": {"week"}},
	})
	require.NoError(t, err)
}

func TestStatusError_Message(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		want         string
		fromProvider bool
	}{
		{"error field", 400, `{"error":"No email provided by Google","message":"ignored"}`, "No email provided by Google", true},
		{"message field", 400, `{"message":"Signup failed"}`, "Signup failed", false},
		{"detail field", 403, `{"detail":"CSRF Failed"}`, "CSRF Failed", false},
		{"raw body", 502, "upstream unavailable", "upstream unavailable", false},
		{"empty json", 500, `{}`, "Internal Server Error", false},
		{"empty body", 404, "", "Not Found", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := statusError(tt.status, []byte(tt.body))
			assert.Equal(t, tt.want, err.Message)
			assert.Equal(t, tt.status, err.Status)
			assert.Equal(t, tt.fromProvider, err.FromProvider)
		})
	}
}

func TestClient_HTMLErrorBodyBecomesOneLine(t *testing.T) {
	f := newFixture(t)
	f.mux.HandleFunc("/api/health/facts", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>\n<body>\n  Bad Gateway\n</body>\n</html>"))
	})

	_, err := f.client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/health/facts"})
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "<html> <body> Bad Gateway </body> </html>", apiErr.Message)
}
