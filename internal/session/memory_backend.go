package session

import (
	"context"
	"sync"
)

// MemoryBackend keeps the session in process memory. It backs ephemeral CLI
// runs and tests.
type MemoryBackend struct {
	mu       sync.Mutex
	rec      Record
	ok       bool
	writeErr error
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// SetWriteError makes subsequent Replace and Delete calls fail with err,
// emulating disabled or full storage. A nil err restores normal operation.
func (b *MemoryBackend) SetWriteError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writeErr = err
}

func (b *MemoryBackend) Load(_ context.Context) (Record, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rec, b.ok, nil
}

func (b *MemoryBackend) Replace(_ context.Context, rec Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.writeErr != nil {
		return b.writeErr
	}
	b.rec = rec
	b.ok = true
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.writeErr != nil {
		return b.writeErr
	}
	b.rec = Record{}
	b.ok = false
	return nil
}
