package authinit

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Masterminds/sprig/v3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"healthdash/internal/callback"
	"healthdash/pkg/logging"
)

// DefaultCallbackPath is the route the provider redirects the popup to.
const DefaultCallbackPath = "/auth/callback"

// shutdownDelay leaves time for the result page to reach the browser.
const shutdownDelay = time.Second

//go:embed templates/callback_success.html
var callbackSuccessHTML string

//go:embed templates/callback_error.html
var callbackErrorHTML string

var (
	successTemplate = template.Must(template.New("success").Funcs(sprig.FuncMap()).Parse(callbackSuccessHTML))
	errorTemplate   = template.Must(template.New("error").Funcs(sprig.FuncMap()).Parse(callbackErrorHTML))
)

// ErrListenerClosed is returned by Wait when the listener stopped before a
// callback arrived.
var ErrListenerClosed = errors.New("callback listener closed")

// Listener is a one-shot local HTTP server that receives the provider
// redirect of a popup sign-in.
type Listener struct {
	port    int
	path    string
	appName string

	server      *http.Server
	listener    net.Listener
	redirectURI string

	resultCh chan callback.Context
	errorCh  chan error
	once     sync.Once
	stopOnce sync.Once
}

// NewListener creates a Listener on 127.0.0.1:port. Port 0 picks a free
// port.
func NewListener(port int, path, appName string) *Listener {
	if path == "" {
		path = DefaultCallbackPath
	}
	if appName == "" {
		appName = "healthdash"
	}
	return &Listener{
		port:     port,
		path:     path,
		appName:  appName,
		resultCh: make(chan callback.Context, 1),
		errorCh:  make(chan error, 1),
	}
}

// Start begins listening and returns the redirect URI to register with the
// provider. The listener stops when ctx is cancelled.
func (l *Listener) Start(ctx context.Context) (string, error) {
	addr := fmt.Sprintf("127.0.0.1:%d", l.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to start callback listener on %s: %w", addr, err)
	}
	l.listener = ln
	l.port = ln.Addr().(*net.TCPAddr).Port
	l.redirectURI = fmt.Sprintf("http://localhost:%d%s", l.port, l.path)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.SetHeader("X-Content-Type-Options", "nosniff"))
	r.Use(middleware.SetHeader("X-Frame-Options", "DENY"))
	r.Use(middleware.SetHeader("Content-Security-Policy", "default-src 'self'; style-src 'unsafe-inline'"))
	r.Use(middleware.SetHeader("Referrer-Policy", "no-referrer"))
	r.Use(middleware.NoCache)
	r.Get(l.path, l.handleCallback)

	l.server = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := l.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case l.errorCh <- err:
			default:
			}
		}
	}()

	go func() {
		<-ctx.Done()
		l.Stop()
	}()

	logging.Debug("AuthInit", "callback listener started on %s", l.redirectURI)
	return l.redirectURI, nil
}

// RedirectURI returns the URI handed to the provider.
func (l *Listener) RedirectURI() string { return l.redirectURI }

// Port returns the bound port.
func (l *Listener) Port() int { return l.port }

// Wait blocks until the callback arrives.
func (l *Listener) Wait(ctx context.Context) (callback.Context, error) {
	// A delivered callback wins over the shutdown that follows it.
	select {
	case cb := <-l.resultCh:
		return cb, nil
	default:
	}

	select {
	case cb := <-l.resultCh:
		return cb, nil
	case err := <-l.errorCh:
		return callback.Context{}, err
	case <-ctx.Done():
		return callback.Context{}, ctx.Err()
	}
}

func (l *Listener) handleCallback(w http.ResponseWriter, r *http.Request) {
	handled := false
	l.once.Do(func() {
		handled = true
		l.process(w, r)
	})
	if !handled {
		http.Error(w, "Callback already processed", http.StatusBadRequest)
	}
}

func (l *Listener) process(w http.ResponseWriter, r *http.Request) {
	cb := callback.ParseQuery(r.URL.Query())

	tmpl := successTemplate
	data := map[string]string{"AppName": l.appName}
	status := http.StatusOK
	if cb.Error != "" || (!cb.HasCode() && !cb.HasDirectTokens()) {
		tmpl = errorTemplate
		data["Error"] = cb.Error
		data["Description"] = cb.ErrorDescription
		if cb.Error == "" {
			data["Error"] = "missing_parameters"
		}
		status = http.StatusBadRequest
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.Execute(w, data); err != nil {
		logging.Error("AuthInit", err, "failed to render callback page")
	}

	select {
	case l.resultCh <- cb:
	default:
	}

	go func() {
		time.Sleep(shutdownDelay)
		l.Stop()
	}()
}

// Stop shuts the listener down. It is safe to call more than once.
func (l *Listener) Stop() {
	l.stopOnce.Do(func() {
		if l.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = l.server.Shutdown(ctx)
		}
		if l.listener != nil {
			_ = l.listener.Close()
		}
		select {
		case l.errorCh <- ErrListenerClosed:
		default:
		}
	})
}
