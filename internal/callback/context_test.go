package callback

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Context
	}{
		{
			name: "direct tokens",
			raw:  "http://localhost:5173/auth/callback?token=T1&refresh=R1",
			want: Context{Token: "T1", Refresh: "R1"},
		},
		{
			name: "code and state",
			raw:  "/auth/callback?code=4%2F0Ab&state=xyz",
			want: Context{Code: "4/0Ab", State: "xyz"},
		},
		{
			name: "provider error",
			raw:  "/auth/callback?error=access_denied&error_description=denied+by+user",
			want: Context{Error: "access_denied", ErrorDescription: "denied by user"},
		},
		{
			name: "fragment fills missing values",
			raw:  "/auth/callback?code=ABC#token=T9&code=IGNORED",
			want: Context{Code: "ABC", Token: "T9"},
		},
		{
			name: "empty",
			raw:  "/auth/callback",
			want: Context{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseURL(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseURL_Invalid(t *testing.T) {
	_, err := ParseURL("http://[::1")
	assert.Error(t, err)
}

func TestContext_Predicates(t *testing.T) {
	assert.True(t, Context{Token: "a", Refresh: "b"}.HasDirectTokens())
	assert.False(t, Context{Token: "a"}.HasDirectTokens())
	assert.True(t, ParseQuery(url.Values{"code": {" c "}}).HasCode())
	assert.Equal(t, "access_denied", Context{Error: "access_denied"}.ProviderError())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "EXCHANGING_CODE_POST", StateExchangingCodePost.String())
	assert.True(t, StateRedirected.Terminal())
	assert.False(t, StateExchangingCodeGet.Terminal())
	assert.Equal(t, "UNKNOWN", State(99).String())
	assert.Equal(t, "provider_redirect", ResultProviderRedirect.String())
}
