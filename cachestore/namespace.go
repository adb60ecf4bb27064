package cachestore

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/Siddamnandas/Vibely-sub004/errors"
	"github.com/Siddamnandas/Vibely-sub004/metric"
	"github.com/Siddamnandas/Vibely-sub004/pkg/cache"
)

// Namespace is one current cache tier: a memory map over a durable bucket.
// Get fills the memory tier from the bucket on miss; Put writes through both.
type Namespace struct {
	purpose Purpose
	name    string
	memory  cache.Cache[*CachedResponse]
	bucket  Bucket
	metrics *metric.Metrics
}

// NewNamespace creates a namespace over the given durable bucket. A nil
// metrics value disables instrumentation (tests).
func NewNamespace(purpose Purpose, name string, bucket Bucket, metrics *metric.Metrics) (*Namespace, error) {
	if !purpose.Valid() {
		return nil, errors.WrapInvalid(
			fmt.Errorf("unknown purpose %q", purpose),
			"Namespace", "NewNamespace", "invalid cache purpose")
	}
	if name == "" {
		return nil, errors.WrapInvalid(nil, "Namespace", "NewNamespace", "namespace name cannot be empty")
	}
	if bucket == nil {
		return nil, errors.WrapInvalid(nil, "Namespace", "NewNamespace", "bucket cannot be nil")
	}

	memory, err := cache.New[*CachedResponse]()
	if err != nil {
		return nil, errors.WrapFatal(err, "Namespace", "NewNamespace", "create memory tier")
	}

	return &Namespace{
		purpose: purpose,
		name:    name,
		memory:  memory,
		bucket:  bucket,
		metrics: metrics,
	}, nil
}

// Purpose returns the namespace's cache purpose.
func (n *Namespace) Purpose() Purpose { return n.purpose }

// Name returns the versioned bucket name, e.g. "vibely-images-v3".
func (n *Namespace) Name() string { return n.name }

// Get looks up the cached response for a request key. The memory tier is
// checked first; a durable hit repopulates it. Returns errors.ErrCacheMiss
// when neither tier has the key.
func (n *Namespace) Get(ctx context.Context, requestKey string) (*CachedResponse, error) {
	encoded := EncodeKey(requestKey)

	if resp, ok := n.memory.Get(encoded); ok {
		n.recordHit()
		return resp.Clone(), nil
	}

	data, err := n.bucket.Get(ctx, encoded)
	if err != nil {
		if stderrors.Is(err, errors.ErrKeyNotFound) {
			n.recordMiss()
			return nil, errors.ErrCacheMiss
		}
		return nil, errors.WrapTransient(err, "Namespace", "Get", "read durable tier")
	}

	var resp CachedResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, errors.WrapFatal(err, "Namespace", "Get", "decode cached response")
	}

	// Repopulate the memory tier; last writer wins.
	_, _ = n.memory.Set(encoded, &resp)

	n.recordHit()
	return resp.Clone(), nil
}

// Put stores a response under the request key, writing through memory and
// the durable bucket. StoredAt is stamped here.
func (n *Namespace) Put(ctx context.Context, requestKey string, resp *CachedResponse) error {
	if resp == nil {
		return errors.WrapInvalid(nil, "Namespace", "Put", "response cannot be nil")
	}

	stored := resp.Clone()
	stored.RequestKey = requestKey
	stored.StoredAt = time.Now()

	data, err := json.Marshal(stored)
	if err != nil {
		return errors.WrapFatal(err, "Namespace", "Put", "encode cached response")
	}

	encoded := EncodeKey(requestKey)
	if _, err := n.memory.Set(encoded, stored); err != nil {
		return errors.Wrap(err, "Namespace", "Put", "write memory tier")
	}
	if err := n.bucket.Put(ctx, encoded, data); err != nil {
		return errors.WrapTransient(err, "Namespace", "Put", "write durable tier")
	}
	return nil
}

// Delete evicts a single request key from both tiers.
func (n *Namespace) Delete(ctx context.Context, requestKey string) error {
	encoded := EncodeKey(requestKey)
	_, _ = n.memory.Delete(encoded)
	if err := n.bucket.Delete(ctx, encoded); err != nil {
		return errors.WrapTransient(err, "Namespace", "Delete", "delete durable entry")
	}
	return nil
}

// Keys returns every stored request key, decoded.
func (n *Namespace) Keys(ctx context.Context) ([]string, error) {
	encoded, err := n.bucket.Keys(ctx)
	if err != nil {
		return nil, errors.WrapTransient(err, "Namespace", "Keys", "list durable keys")
	}

	keys := make([]string, 0, len(encoded))
	for _, e := range encoded {
		k, err := DecodeKey(e)
		if err != nil {
			// Foreign keys in the bucket are skipped, not fatal.
			continue
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// DeletePrefix evicts every entry whose request URL starts with urlPrefix.
// Used by playlist cache clearing. Returns the number of evicted entries.
func (n *Namespace) DeletePrefix(ctx context.Context, urlPrefix string) (int, error) {
	keys, err := n.Keys(ctx)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, key := range keys {
		// Request keys are "METHOD URL".
		_, url, found := strings.Cut(key, " ")
		if !found || !strings.HasPrefix(url, urlPrefix) {
			continue
		}
		if err := n.Delete(ctx, key); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

func (n *Namespace) recordHit() {
	if n.metrics != nil {
		n.metrics.CacheHits.WithLabelValues(string(n.purpose)).Inc()
	}
}

func (n *Namespace) recordMiss() {
	if n.metrics != nil {
		n.metrics.CacheMisses.WithLabelValues(string(n.purpose)).Inc()
	}
}
