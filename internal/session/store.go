package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"healthdash/internal/metrics"
	"healthdash/pkg/logging"
)

// Backend persists the session record. Implementations must make Replace
// all-or-nothing: after it returns, the stored keys are exactly those of the
// new record.
type Backend interface {
	// Load returns the stored record. ok is false when no session exists.
	Load(ctx context.Context) (rec Record, ok bool, err error)

	// Replace stores rec, removing any key it leaves empty.
	Replace(ctx context.Context, rec Record) error

	// Delete removes all keys. Deleting an absent session is not an error.
	Delete(ctx context.Context) error
}

// Watchable is implemented by backends that can report changes made by
// other processes.
type Watchable interface {
	Watch(ctx context.Context, onChange func()) error
}

// Store is the single owner of the session token pair and cached identity.
type Store struct {
	mu      sync.RWMutex
	backend Backend
	metrics *metrics.Metrics

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(Event)
}

// NewStore creates a Store over backend. m may be nil.
func NewStore(backend Backend, m *metrics.Metrics) *Store {
	return &Store{
		backend: backend,
		metrics: m,
		subs:    make(map[int]func(Event)),
	}
}

// Write replaces the session with tok and id. Fields absent from the new
// value are removed. The write is read back before success is reported, so a
// nil error means the session is durably stored.
func (s *Store) Write(ctx context.Context, tok Token, id *Identity) error {
	if tok.AccessToken == "" {
		return ErrEmptyAccessToken
	}

	rec, err := recordFrom(tok, id)
	if err != nil {
		return fmt.Errorf("failed to encode identity: %w", err)
	}

	s.mu.Lock()
	err = s.replaceLocked(ctx, rec)
	s.mu.Unlock()

	s.metrics.ObserveSessionWrite(err)
	if err != nil {
		logging.Audit("Session", "session_write_failed", slog.String("error", err.Error()))
		return err
	}

	logging.Audit("Session", "session_written",
		slog.Bool("has_refresh_token", tok.HasRefresh()),
		slog.Bool("has_identity", id != nil),
	)
	s.notify(Event{Type: EventWritten})
	return nil
}

func (s *Store) replaceLocked(ctx context.Context, rec Record) error {
	if err := s.backend.Replace(ctx, rec); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageFailure, err)
	}

	stored, ok, err := s.backend.Load(ctx)
	if err != nil {
		return fmt.Errorf("%w: verify: %w", ErrStorageFailure, err)
	}
	if !ok || stored != rec {
		return fmt.Errorf("%w: stored session does not match the written value", ErrStorageFailure)
	}
	return nil
}

// Read returns the current token pair, or nil when there is no session.
// Backend errors are logged and reported as no session.
func (s *Store) Read(ctx context.Context) *Token {
	rec, ok := s.load(ctx)
	if !ok || rec.Token == "" {
		return nil
	}
	tok := rec.token()
	return &tok
}

// Identity returns the cached user identity, or nil.
func (s *Store) Identity(ctx context.Context) *Identity {
	rec, ok := s.load(ctx)
	if !ok || rec.Token == "" {
		return nil
	}
	return rec.identity()
}

func (s *Store) load(ctx context.Context) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok, err := s.backend.Load(ctx)
	if err != nil {
		logging.Warn("Session", "failed to read session, treating as signed out: %v", err)
		return Record{}, false
	}
	return rec, ok
}

// UpdateIdentity replaces the cached identity of the live session, keeping
// the token pair.
func (s *Store) UpdateIdentity(ctx context.Context, id Identity) error {
	s.mu.Lock()
	rec, ok, err := s.backend.Load(ctx)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrStorageFailure, err)
	}
	if !ok || rec.Token == "" {
		s.mu.Unlock()
		return ErrNoSession
	}

	updated, err := recordFrom(rec.token(), &id)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to encode identity: %w", err)
	}
	err = s.replaceLocked(ctx, updated)
	s.mu.Unlock()

	if err != nil {
		return err
	}
	s.notify(Event{Type: EventWritten})
	return nil
}

// Clear removes the token pair and identity together.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	err := s.backend.Delete(ctx)
	s.mu.Unlock()

	if err != nil {
		logging.Audit("Session", "session_clear_failed", slog.String("error", err.Error()))
		return fmt.Errorf("%w: %w", ErrStorageFailure, err)
	}

	logging.Audit("Session", "session_cleared")
	s.notify(Event{Type: EventCleared})
	return nil
}

// Subscribe registers fn for change notifications and returns a function
// that removes it. fn runs synchronously on the goroutine that made the
// change and must not call back into Write or Clear.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextID
	s.nextID++
	s.subs[id] = fn

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) notify(ev Event) {
	s.subMu.Lock()
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Watch forwards changes made by other processes as EventExternalChange
// until ctx is cancelled. Backends that cannot be watched are a no-op.
func (s *Store) Watch(ctx context.Context) error {
	w, ok := s.backend.(Watchable)
	if !ok {
		return nil
	}
	return w.Watch(ctx, func() {
		logging.Debug("Session", "session changed outside this process")
		s.notify(Event{Type: EventExternalChange})
	})
}
