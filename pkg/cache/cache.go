// Package cache provides a generic, thread-safe in-memory cache used as the
// fast tier in front of durable stores.
//
// Statistics are always enabled for observability; Prometheus metrics are
// optional via functional options.
package cache

import (
	"github.com/Siddamnandas/Vibely-sub004/errors"
)

// Cache represents a generic cache interface parameterized by value type V.
type Cache[V any] interface {
	// Get retrieves a value by key. Returns the value and true if found,
	// zero value and false otherwise.
	Get(key string) (V, bool)

	// Set stores a value with the given key. Returns true if a new entry
	// was created, false if an existing one was updated.
	Set(key string, value V) (bool, error)

	// Delete removes an entry by key. Returns true if the key existed.
	Delete(key string) (bool, error)

	// Clear removes all entries from the cache.
	Clear() error

	// Size returns the current number of entries in the cache.
	Size() int

	// Keys returns a slice of all keys currently in the cache.
	Keys() []string

	// Stats returns cache statistics.
	Stats() *Statistics
}

// EvictCallback is called when an entry is removed from the cache.
type EvictCallback[V any] func(key string, value V)

// Option configures cache construction.
type Option[V any] func(*cacheOptions[V])

type cacheOptions[V any] struct {
	evictCallback EvictCallback[V]
	metricsReg    metricsRegisterer
	metricsPrefix string
}

// WithEvictCallback sets a callback invoked on entry removal.
func WithEvictCallback[V any](fn EvictCallback[V]) Option[V] {
	return func(o *cacheOptions[V]) {
		o.evictCallback = fn
	}
}

// WithMetrics exposes cache statistics as Prometheus metrics under the
// given prefix.
func WithMetrics[V any](reg metricsRegisterer, prefix string) Option[V] {
	return func(o *cacheOptions[V]) {
		o.metricsReg = reg
		o.metricsPrefix = prefix
	}
}

// New creates a new in-memory cache.
func New[V any](opts ...Option[V]) (Cache[V], error) {
	options := &cacheOptions[V]{}
	for _, opt := range opts {
		opt(options)
	}
	return newMemoryCache(options)
}

// validateKey validates a cache key for basic requirements.
func validateKey(key string) error {
	if key == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "cache", "validateKey", "key cannot be empty")
	}
	return nil
}
