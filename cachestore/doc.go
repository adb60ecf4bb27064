// Package cachestore manages the worker's named, versioned content caches.
//
// A cache namespace is a JetStream KV bucket named <app>-<purpose>-<version>,
// fronted by an in-process memory tier. Exactly one namespace per purpose
// (static, dynamic, images) is current at any time; buckets carrying the app
// prefix but a different version are stale and deleted during the activate
// sweep. The sweep is the only eviction mechanism: entries have no TTL and
// live until their namespace version is superseded.
//
// Concurrent fillers of the same key are resolved last-writer-wins. Cached
// content is immutable enough (build assets, cover images) that the race is
// harmless, so no cross-filler locking exists.
package cachestore
