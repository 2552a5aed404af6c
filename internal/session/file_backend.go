package session

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"healthdash/pkg/logging"
)

// DefaultSessionFileName is the file holding the persisted session.
const DefaultSessionFileName = "session.json"

// watchDebounce coalesces the burst of events produced by one rename.
const watchDebounce = 200 * time.Millisecond

// FileBackend stores the session as one JSON document.
//
// SECURITY: the document holds live credentials.
//   - The directory is created with 0700 permissions (owner only)
//   - The file is written with 0600 permissions via temp file + rename, so a
//     reader never observes a partially written session
//   - Token values are never logged
type FileBackend struct {
	dir  string
	path string

	mu         sync.Mutex
	lastDigest [32]byte
}

// NewFileBackend creates the storage directory if needed.
func NewFileBackend(dir string) (*FileBackend, error) {
	if dir == "" {
		return nil, errors.New("session directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	return &FileBackend{
		dir:  dir,
		path: filepath.Join(dir, DefaultSessionFileName),
	}, nil
}

// Path returns the session file location.
func (b *FileBackend) Path() string { return b.path }

func (b *FileBackend) Load(_ context.Context) (Record, bool, error) {
	// #nosec G304 -- path is derived from configuration, not request input
	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Record{}, false, nil
		}
		return Record{}, false, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Record{}, false, nil
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, false, fmt.Errorf("failed to decode session file: %w", err)
	}
	return rec, rec.Token != "", nil
}

func (b *FileBackend) Replace(_ context.Context, rec Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	tmp, err := os.CreateTemp(b.dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp session file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to restrict session file permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close session file: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := os.Rename(tmpName, b.path); err != nil {
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	b.lastDigest = sha256.Sum256(data)
	return nil
}

func (b *FileBackend) Delete(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	err := os.Remove(b.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	b.lastDigest = [32]byte{}
	return nil
}

// Watch reports changes to the session file made by other processes. Our
// own writes are recognised by content digest and not reported.
func (b *FileBackend) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create session watcher: %w", err)
	}
	// Watch the directory: the file itself is replaced by rename.
	if err := watcher.Add(b.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", b.dir, err)
	}

	go b.processEvents(ctx, watcher, onChange)
	return nil
}

func (b *FileBackend) processEvents(ctx context.Context, watcher *fsnotify.Watcher, onChange func()) {
	defer watcher.Close()

	var (
		debounce *time.Timer
		fire     = make(chan struct{}, 1)
	)
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(b.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case <-fire:
			if b.changedExternally() {
				onChange()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logging.Error("Session", err, "session watcher error")
		}
	}
}

func (b *FileBackend) changedExternally() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	var digest [32]byte
	if data, err := os.ReadFile(b.path); err == nil {
		digest = sha256.Sum256(data)
	}
	if digest == b.lastDigest {
		return false
	}
	b.lastDigest = digest
	return true
}
