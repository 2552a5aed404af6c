package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthdash/internal/navigation"
	"healthdash/internal/session"
)

func TestAuthAPI_LoginPersistsSessionAndSeedsCSRF(t *testing.T) {
	f := newFixture(t)
	api := NewAuthAPI(f.client, Paths{})

	f.mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		var body credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ada@example.com", body.Username)
		assert.Equal(t, "hunter2", body.Password)
		assert.Equal(t, "csrf-1", r.Header.Get("X-CSRFToken"))
		_, _ = w.Write([]byte(`{"token":"T","refresh":"R","csrfToken":"csrf-2","user":{"username":"ada@example.com","email":"ada@example.com"}}`))
	})

	res, err := api.Login(context.Background(), "ada@example.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "ada", res.Identity.Name)

	assert.Equal(t, &session.Token{AccessToken: "T", RefreshToken: "R"}, f.store.Read(context.Background()))
	assert.Equal(t, "ada@example.com", f.store.Identity(context.Background()).Email)
	assert.Equal(t, "csrf-2", f.csrf.Peek())
}

func TestAuthAPI_LoginWithoutToken(t *testing.T) {
	f := newFixture(t)
	api := NewAuthAPI(f.client, Paths{})

	f.mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":"Login successful","user":{"username":"sam"}}`))
	})

	res, err := api.Login(context.Background(), "sam", "pw")
	assert.ErrorIs(t, err, ErrNoTokenIssued)
	require.NotNil(t, res)
	assert.Equal(t, "Login successful", res.Message)
	assert.Nil(t, f.store.Read(context.Background()))
}

func TestAuthAPI_LoginRejected(t *testing.T) {
	f := newFixture(t)
	api := NewAuthAPI(f.client, Paths{})

	f.mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"Invalid credentials"}`))
	})

	_, err := api.Login(context.Background(), "sam", "wrong")
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "Invalid credentials", apiErr.Message)
	assert.Empty(t, f.nav.Visits())
}

func TestAuthAPI_Signup(t *testing.T) {
	f := newFixture(t)
	api := NewAuthAPI(f.client, Paths{})

	f.mux.HandleFunc("/basic_signup/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"token":"S1","message":"Signup successful"}`))
	})

	res, err := api.Signup(context.Background(), "newuser", "pw")
	require.NoError(t, err)
	assert.Equal(t, "newuser", res.Identity.Username)

	tok := f.store.Read(context.Background())
	require.NotNil(t, tok)
	assert.Equal(t, "S1", tok.AccessToken)
	assert.False(t, tok.HasRefresh())
}

func TestAuthAPI_LogoutClearsEvenOnFailure(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, "T")
	f.csrf.Seed("cached")
	api := NewAuthAPI(f.client, Paths{})

	f.mux.HandleFunc("/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	require.NoError(t, api.Logout(context.Background()))
	assert.Nil(t, f.store.Read(context.Background()))
	assert.Empty(t, f.csrf.Peek())
}

func TestAuthAPI_ExchangeCode(t *testing.T) {
	f := newFixture(t)
	api := NewAuthAPI(f.client, Paths{})

	f.mux.HandleFunc("/api/user/google/callback/", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			assert.Equal(t, "ABC", r.URL.Query().Get("code"))
			assert.Empty(t, r.Header.Get("Authorization"))
			http.Redirect(w, r, "https://accounts.google.com/next", http.StatusFound)
		case http.MethodPost:
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "ABC", body["code"])
			_, _ = w.Write([]byte(`{"token":"T3","refresh":"R3","user":{"username":"x@example.com","name":"X Y","email":"x@example.com"}}`))
		}
	})

	got, err := api.ExchangeCodeGet(context.Background(), "ABC")
	require.NoError(t, err)
	loc, ok := got.Redirect()
	assert.True(t, ok)
	assert.Equal(t, "https://accounts.google.com/next", loc)

	got, err = api.ExchangeCodePost(context.Background(), "ABC")
	require.NoError(t, err)
	assert.Equal(t, "T3", got.Token)
	assert.Equal(t, "R3", got.Refresh)
	require.NotNil(t, got.User)
	assert.Equal(t, "X Y", got.User.Identity().Name)
}

func TestExchangeResponse_Failure(t *testing.T) {
	no := false
	assert.Equal(t, "bad code", (&ExchangeResponse{Error: "bad code"}).Failure())
	assert.Equal(t, "authentication failed", (&ExchangeResponse{Success: &no}).Failure())
	assert.Equal(t, "nope", (&ExchangeResponse{Success: &no, Message: "nope"}).Failure())
	assert.Empty(t, (&ExchangeResponse{Token: "T"}).Failure())
}

func TestAuthAPI_GoogleLoginURL(t *testing.T) {
	f := newFixture(t)
	api := NewAuthAPI(f.client, Paths{})

	f.mux.HandleFunc("/api/user/google/login/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"authUrl":"https://accounts.google.com/o/oauth2/auth?client_id=x"}`))
	})

	u, err := api.GoogleLoginURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://accounts.google.com/o/oauth2/auth?client_id=x", u)
}

func TestAuthAPI_GoogleLoginURLMissing(t *testing.T) {
	f := newFixture(t)
	api := NewAuthAPI(f.client, Paths{GoogleLogin: "/custom/login"})

	f.mux.HandleFunc("/custom/login", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := api.GoogleLoginURL(context.Background())
	assert.ErrorIs(t, err, ErrNoAuthURL)
}

func TestAuthAPI_ProfileRefreshesIdentity(t *testing.T) {
	f := newFixture(t)
	id := session.NewIdentity("lee@example.com", "", "")
	require.NoError(t, f.store.Write(context.Background(), session.Token{AccessToken: "T"}, &id))
	api := NewAuthAPI(f.client, Paths{})

	f.mux.HandleFunc("/profile", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "lee@example.com", r.URL.Query().Get("username"))
		_, _ = w.Write([]byte(`{"username":"lee@example.com","email":"lee@example.com","first_name":"Lee","last_name":"Chen"}`))
	})

	got, err := api.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Lee Chen", got.Name)
	assert.Equal(t, "Lee Chen", f.store.Identity(context.Background()).Name)
	assert.Equal(t, "T", f.store.Read(context.Background()).AccessToken)
}

func TestAuthAPI_GoogleStatus(t *testing.T) {
	f := newFixture(t)
	api := NewAuthAPI(f.client, Paths{})

	var connected atomic.Bool
	connected.Store(true)
	f.mux.HandleFunc("/api/user/google/status/", func(w http.ResponseWriter, r *http.Request) {
		if !connected.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"connected":true}`))
	})

	assert.True(t, api.GoogleStatus(context.Background()).Connected)
	connected.Store(false)
	assert.False(t, api.GoogleStatus(context.Background()).Connected)
}

func TestAuthAPI_VerifySession(t *testing.T) {
	f := newFixture(t)
	api := NewAuthAPI(f.client, Paths{})

	var rejected atomic.Bool
	f.mux.HandleFunc("/api/auth/verify/", func(w http.ResponseWriter, r *http.Request) {
		if rejected.Load() || r.Header.Get("Authorization") != "Bearer T" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"message":"Token is valid!"}`))
	})

	_, err := api.VerifySession(context.Background())
	require.ErrorIs(t, err, session.ErrNoSession)

	f.signIn(t, "T")
	check, err := api.VerifySession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Token is valid!", check.Message)

	rejected.Store(true)
	_, err = api.VerifySession(context.Background())
	require.ErrorIs(t, err, ErrAuthorizationExpired)
	assert.Nil(t, f.store.Read(context.Background()))
	assert.Equal(t, []navigation.Visit{{Kind: navigation.KindHard, Location: "/"}}, f.nav.Visits())
}

func TestPaths_WithDefaults(t *testing.T) {
	p := Paths{Login: "/api/login/"}.WithDefaults()
	assert.Equal(t, "/api/login/", p.Login)
	assert.Equal(t, "/api/csrf-token/", p.CSRFToken)
	assert.Equal(t, "/basic_signup/", p.Signup)
	assert.Equal(t, "/api/auth/verify/", p.Verify)
}
