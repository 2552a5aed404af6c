// Package navigation models the browser-location side effects of the session
// bootstrap as an injectable capability.
package navigation

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"healthdash/pkg/logging"
)

// Navigator performs navigations on behalf of the session bootstrap.
type Navigator interface {
	// Navigate moves to an in-app route such as "/dashboard".
	Navigate(route string)

	// Assign performs a hard navigation, discarding in-memory state. location
	// is either an in-app route or an absolute URL (identity provider pages).
	Assign(location string)
}

// Kind distinguishes soft route changes from hard navigations.
type Kind string

const (
	KindRoute Kind = "route"
	KindHard  Kind = "hard"
)

// Visit is one recorded navigation.
type Visit struct {
	Kind     Kind
	Location string
}

// Recorder is a Navigator that records every navigation. It is safe for
// concurrent use.
type Recorder struct {
	mu     sync.Mutex
	visits []Visit
}

// Navigate records a route change.
func (r *Recorder) Navigate(route string) { r.record(KindRoute, route) }

// Assign records a hard navigation.
func (r *Recorder) Assign(location string) { r.record(KindHard, location) }

func (r *Recorder) record(kind Kind, location string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.visits = append(r.visits, Visit{Kind: kind, Location: location})
}

// Visits returns a copy of the recorded navigations.
func (r *Recorder) Visits() []Visit {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Visit, len(r.visits))
	copy(out, r.visits)
	return out
}

// Last returns the most recent navigation, if any.
func (r *Recorder) Last() (Visit, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.visits) == 0 {
		return Visit{}, false
	}
	return r.visits[len(r.visits)-1], true
}

// Terminal is the Navigator used by the CLI. In-app routes are resolved
// against the web application's base URL and printed; absolute URLs given to
// Assign are opened in the user's browser when OpenExternal is set.
type Terminal struct {
	Recorder

	// AppURL is the base URL of the dashboard web application.
	AppURL string

	// Out receives one line per navigation. Nil disables printing.
	Out io.Writer

	// OpenExternal opens absolute URLs in the default browser.
	OpenExternal bool

	// Opener overrides OpenBrowser, for tests.
	Opener func(string) error
}

// Navigate prints and records an in-app route change. The visit is
// recorded after the line is written.
func (t *Terminal) Navigate(route string) {
	t.print("→ %s\n", t.resolve(route))
	t.Recorder.Navigate(route)
}

// Assign prints and records a hard navigation, opening external URLs.
func (t *Terminal) Assign(location string) {
	defer t.Recorder.Assign(location)
	target := t.resolve(location)
	t.print("⇒ %s\n", target)

	if !t.OpenExternal || !IsAbsolute(location) {
		return
	}
	opener := t.Opener
	if opener == nil {
		opener = OpenBrowser
	}
	if err := opener(target); err != nil {
		logging.Warn("Navigation", "could not open browser, open the URL manually: %v", err)
	}
}

func (t *Terminal) print(format string, args ...interface{}) {
	if t.Out != nil {
		fmt.Fprintf(t.Out, format, args...)
	}
}

func (t *Terminal) resolve(location string) string {
	if IsAbsolute(location) || t.AppURL == "" {
		return location
	}
	return JoinRoute(t.AppURL, location)
}

// IsAbsolute reports whether location is an absolute http(s) URL.
func IsAbsolute(location string) bool {
	u, err := url.Parse(location)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// JoinRoute joins an app base URL and a route that may carry a query string.
func JoinRoute(base, route string) string {
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(route, "/")
}

// WithQuery appends key=value to a route that may already carry a query.
func WithQuery(route, key, value string) string {
	sep := "?"
	if strings.Contains(route, "?") {
		sep = "&"
	}
	return route + sep + url.QueryEscape(key) + "=" + url.QueryEscape(value)
}
