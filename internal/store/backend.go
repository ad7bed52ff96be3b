package store

import (
	"context"
	"maps"
	"sync"
)

// Backend is the durable side of a Store. Values are opaque JSON documents
// keyed by their full namespaced key.
type Backend interface {
	Name() string
	// Load returns every entry of the namespace.
	Load(ctx context.Context, namespace string) (map[string][]byte, error)
	Put(ctx context.Context, namespace, key string, value []byte) error
	Delete(ctx context.Context, namespace string, keys []string) error
	// Replace swaps the full contents of the namespace in one step. An error
	// must leave the previous contents in place.
	Replace(ctx context.Context, namespace string, entries map[string][]byte) error
}

type ClosableBackend interface {
	Backend
	Close() error
}

type memoryBackend struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

// NewMemoryBackend keeps everything in process memory. Used for tests and
// for STOREBACKEND=memory.
func NewMemoryBackend() *memoryBackend {
	return &memoryBackend{data: make(map[string]map[string][]byte)}
}

func (b *memoryBackend) Name() string { return "memory" }

func (b *memoryBackend) Load(_ context.Context, namespace string) (map[string][]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string][]byte, len(b.data[namespace]))
	for k, v := range b.data[namespace] {
		out[k] = append([]byte(nil), v...)
	}
	return out, nil
}

func (b *memoryBackend) Put(_ context.Context, namespace, key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	ns, ok := b.data[namespace]
	if !ok {
		ns = make(map[string][]byte)
		b.data[namespace] = ns
	}
	ns[key] = append([]byte(nil), value...)
	return nil
}

func (b *memoryBackend) Delete(_ context.Context, namespace string, keys []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, k := range keys {
		delete(b.data[namespace], k)
	}
	return nil
}

func (b *memoryBackend) Replace(_ context.Context, namespace string, entries map[string][]byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[namespace] = maps.Clone(entries)
	if b.data[namespace] == nil {
		b.data[namespace] = make(map[string][]byte)
	}
	return nil
}
