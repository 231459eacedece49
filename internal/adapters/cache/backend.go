package cache

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound means the slot has never been written.
var ErrNotFound = errors.New("cache: slot not found")

// Backend is a persistent key/value store holding opaque slot payloads.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Close() error
}

// MemoryBackend keeps slots in process memory. It is NOT persistent and is
// only suitable for tests and local mode.
type MemoryBackend struct {
	mu    sync.RWMutex
	slots map[string][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{slots: make(map[string][]byte)}
}

func (b *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, ok := b.slots[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (b *MemoryBackend) Put(_ context.Context, key string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	stored := make([]byte, len(data))
	copy(stored, data)
	b.slots[key] = stored
	return nil
}

func (b *MemoryBackend) Close() error { return nil }
