package callback

import (
	"net/url"
	"strings"
)

// Context holds the parameters the identity provider or backend placed on
// the callback URL. It is parsed once per callback and discarded after
// resolution.
type Context struct {
	Token            string
	Refresh          string
	Code             string
	Error            string
	ErrorDescription string
	State            string
}

// ParseQuery reads the callback parameters from q.
func ParseQuery(q url.Values) Context {
	get := func(key string) string { return strings.TrimSpace(q.Get(key)) }
	return Context{
		Token:            get("token"),
		Refresh:          get("refresh"),
		Code:             get("code"),
		Error:            get("error"),
		ErrorDescription: get("error_description"),
		State:            get("state"),
	}
}

// ParseURL reads the callback parameters from a full callback URL. Values in
// the query take precedence over values in the fragment.
func ParseURL(raw string) (Context, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Context{}, err
	}

	q := u.Query()
	if u.Fragment != "" {
		if frag, err := url.ParseQuery(u.Fragment); err == nil {
			for k, vs := range frag {
				if q.Get(k) == "" && len(vs) > 0 {
					q.Set(k, vs[0])
				}
			}
		}
	}
	return ParseQuery(q), nil
}

// HasDirectTokens reports whether the backend delivered the token pair on
// the URL.
func (c Context) HasDirectTokens() bool {
	return c.Token != "" && c.Refresh != ""
}

// HasCode reports whether an authorization code is present.
func (c Context) HasCode() bool { return c.Code != "" }

// ProviderError returns the provider-reported error text, if any.
func (c Context) ProviderError() string {
	if c.ErrorDescription != "" {
		return c.ErrorDescription
	}
	return c.Error
}
