package cachestore

import (
	"context"
	"sort"
	"sync"

	"github.com/Siddamnandas/Vibely-sub004/errors"
)

// Bucket is the durable tier of a cache namespace. Keys are encoded request
// keys (see EncodeKey); values are JSON-encoded CachedResponses.
type Bucket interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

// Provider creates, opens, and destroys durable buckets. The Manager uses it
// for install-time creation and the activate-time sweep.
type Provider interface {
	OpenBucket(ctx context.Context, name string) (Bucket, error)
	DeleteBucket(ctx context.Context, name string) error
	ListBuckets(ctx context.Context) ([]string, error)
}

// MemoryProvider is an in-process Provider used by tests and by deployments
// that run without a NATS backend.
type MemoryProvider struct {
	mu      sync.RWMutex
	buckets map[string]*memoryBucket
}

// NewMemoryProvider creates an empty in-memory provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{buckets: make(map[string]*memoryBucket)}
}

// OpenBucket returns the named bucket, creating it if absent.
func (p *MemoryProvider) OpenBucket(_ context.Context, name string) (Bucket, error) {
	if name == "" {
		return nil, errors.WrapInvalid(nil, "MemoryProvider", "OpenBucket", "bucket name cannot be empty")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	b, ok := p.buckets[name]
	if !ok {
		b = &memoryBucket{entries: make(map[string][]byte)}
		p.buckets[name] = b
	}
	return b, nil
}

// DeleteBucket removes the named bucket and all its entries. Deleting a
// bucket that does not exist is a no-op.
func (p *MemoryProvider) DeleteBucket(_ context.Context, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.buckets, name)
	return nil
}

// ListBuckets returns all bucket names in sorted order.
func (p *MemoryProvider) ListBuckets(_ context.Context) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, 0, len(p.buckets))
	for name := range p.buckets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

type memoryBucket struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

func (b *memoryBucket) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	v, ok := b.entries[key]
	if !ok {
		return nil, errors.ErrKeyNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (b *memoryBucket) Put(_ context.Context, key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	b.entries[key] = stored
	return nil
}

func (b *memoryBucket) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, key)
	return nil
}

func (b *memoryBucket) Keys(_ context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.entries))
	for k := range b.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
