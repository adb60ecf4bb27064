package cachestore

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/Siddamnandas/Vibely-sub004/errors"
	"github.com/Siddamnandas/Vibely-sub004/natsclient"
	"github.com/Siddamnandas/Vibely-sub004/pkg/retry"
)

// NATSProvider backs cache namespaces with JetStream KV buckets. Bucket
// deletion is the namespace sweep primitive.
type NATSProvider struct {
	client *natsclient.Client
}

// NewNATSProvider creates a provider over an established NATS client.
func NewNATSProvider(client *natsclient.Client) (*NATSProvider, error) {
	if client == nil {
		return nil, errors.WrapInvalid(nil, "NATSProvider", "NewNATSProvider", "nats client cannot be nil")
	}
	return &NATSProvider{client: client}, nil
}

// OpenBucket opens the named KV bucket, creating it if absent.
func (p *NATSProvider) OpenBucket(ctx context.Context, name string) (Bucket, error) {
	kv, err := p.client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: fmt.Sprintf("Cache namespace %s", name),
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "NATSProvider", "OpenBucket",
			fmt.Sprintf("create KV bucket %s", name))
	}

	return &natsBucket{kv: p.client.NewKVStore(kv)}, nil
}

// DeleteBucket destroys the named KV bucket and all its entries. A missing
// bucket is treated as already deleted.
func (p *NATSProvider) DeleteBucket(ctx context.Context, name string) error {
	err := p.client.DeleteKeyValueBucket(ctx, name)
	if err != nil {
		if stderrors.Is(err, errors.ErrBucketNotFound) ||
			strings.Contains(err.Error(), "bucket not found") {
			return nil
		}
		return errors.WrapTransient(err, "NATSProvider", "DeleteBucket",
			fmt.Sprintf("delete KV bucket %s", name))
	}
	return nil
}

// ListBuckets returns the names of all KV buckets on the server.
func (p *NATSProvider) ListBuckets(ctx context.Context) ([]string, error) {
	names, err := p.client.ListKeyValueBuckets(ctx)
	if err != nil {
		return nil, errors.WrapTransient(err, "NATSProvider", "ListBuckets", "list KV buckets")
	}
	return names, nil
}

// natsBucket adapts a KVStore to the Bucket interface.
type natsBucket struct {
	kv *natsclient.KVStore
}

func (b *natsBucket) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := b.kv.Get(ctx, key)
	if err != nil {
		if natsclient.IsKVNotFoundError(err) {
			return nil, errors.ErrKeyNotFound
		}
		return nil, errors.WrapTransient(err, "natsBucket", "Get", "get from KV")
	}
	return entry.Value, nil
}

func (b *natsBucket) Put(ctx context.Context, key string, value []byte) error {
	// Transient KV failures are retried briefly; a populated memory tier
	// keeps serving reads meanwhile.
	err := retry.Do(ctx, retry.Quick(), func() error {
		_, putErr := b.kv.Put(ctx, key, value)
		return putErr
	})
	if err != nil {
		return errors.WrapTransient(err, "natsBucket", "Put", "put to KV")
	}
	return nil
}

func (b *natsBucket) Delete(ctx context.Context, key string) error {
	err := b.kv.Delete(ctx, key)
	if err != nil {
		if natsclient.IsKVNotFoundError(err) {
			return nil
		}
		return errors.WrapTransient(err, "natsBucket", "Delete", "delete from KV")
	}
	return nil
}

func (b *natsBucket) Keys(ctx context.Context) ([]string, error) {
	keys, err := b.kv.Keys(ctx)
	if err != nil {
		return nil, errors.WrapTransient(err, "natsBucket", "Keys", "list KV keys")
	}
	return keys, nil
}
