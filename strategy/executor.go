package strategy

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Siddamnandas/Vibely-sub004/cachestore"
	"github.com/Siddamnandas/Vibely-sub004/errors"
	"github.com/Siddamnandas/Vibely-sub004/metric"
)

// Request is an intercepted page request.
type Request struct {
	Method string
	URL    string
	Header http.Header
}

// Key returns the cache key for this request.
func (r *Request) Key() string {
	return cachestore.RequestKey(r.Method, r.URL)
}

// Source identifies where a result came from.
type Source string

// Result sources, in rough order of preference.
const (
	SourceCache    Source = "cache"
	SourceNetwork  Source = "network"
	SourceFallback Source = "fallback" // cached entry served after a network failure
	SourceOffline  Source = "offline_document"
)

// Result is a resolved request: the response plus where it came from.
type Result struct {
	Response *cachestore.CachedResponse
	Source   Source
}

// Executor runs the four strategies against a Fetcher and cache namespaces.
type Executor struct {
	fetcher     Fetcher
	metrics     *metric.Metrics
	logger      *slog.Logger
	offlineHTML []byte
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithOfflineDocument replaces the built-in offline HTML document.
func WithOfflineDocument(html []byte) ExecutorOption {
	return func(e *Executor) { e.offlineHTML = html }
}

// NewExecutor creates an executor. metrics may be nil (tests).
func NewExecutor(fetcher Fetcher, metrics *metric.Metrics, logger *slog.Logger, opts ...ExecutorOption) (*Executor, error) {
	if fetcher == nil {
		return nil, errors.WrapInvalid(nil, "Executor", "NewExecutor", "fetcher cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := &Executor{
		fetcher:     fetcher,
		metrics:     metrics,
		logger:      logger,
		offlineHTML: []byte(defaultOfflineHTML),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// CacheFirst resolves from cache when possible, never touching the network
// on a hit. A miss fetches upstream, storing the response on 2xx. Network
// failure on a miss propagates to the caller. With refreshOnHit (image
// resources), a hit additionally triggers a detached background refresh.
func (e *Executor) CacheFirst(ctx context.Context, req *Request, ns *cachestore.Namespace, refreshOnHit bool) (*Result, error) {
	cached, err := ns.Get(ctx, req.Key())
	if err == nil {
		e.record("cache_first", "cache_hit")
		if refreshOnHit {
			e.refreshDetached(ctx, req, ns)
		}
		return &Result{Response: cached, Source: SourceCache}, nil
	}

	resp, err := e.fetchAndStore(ctx, req, ns)
	if err != nil {
		e.record("cache_first", "error")
		return nil, err
	}
	e.record("cache_first", "network")
	return &Result{Response: resp, Source: SourceNetwork}, nil
}

// OfflineResponse builds the terminal offline payload for a request that
// could not be resolved from network or cache: the offline document for HTML
// consumers, a JSON error body otherwise.
func (e *Executor) OfflineResponse(header http.Header) *cachestore.CachedResponse {
	return offlineResponse(header, e.offlineHTML)
}

// NetworkFirst always attempts the network, with no artificial timeout. On
// success the response is stored and returned. Any transport failure falls
// back to the cached entry; with no entry, the failure propagates for
// offline handling.
func (e *Executor) NetworkFirst(ctx context.Context, req *Request, ns *cachestore.Namespace) (*Result, error) {
	resp, err := e.fetchAndStore(ctx, req, ns)
	if err == nil {
		e.record("network_first", "network")
		return &Result{Response: resp, Source: SourceNetwork}, nil
	}

	cached, cacheErr := ns.Get(ctx, req.Key())
	if cacheErr == nil {
		e.record("network_first", "fallback")
		return &Result{Response: cached, Source: SourceFallback}, nil
	}

	e.record("network_first", "error")
	return nil, err
}

// StaleWhileRevalidate starts exactly one background revalidation, then
// returns the cached entry immediately when present. Without a cached entry
// it awaits the in-flight fetch. The revalidation stores on 2xx and swallows
// failures; it is not canceled when the request context ends.
func (e *Executor) StaleWhileRevalidate(ctx context.Context, req *Request, ns *cachestore.Namespace) (*Result, error) {
	type fetchResult struct {
		resp *cachestore.CachedResponse
		err  error
	}
	inflight := make(chan fetchResult, 1)

	bgCtx := context.WithoutCancel(ctx)
	go func() {
		resp, err := e.fetchAndStore(bgCtx, req, ns)
		if err != nil {
			e.logger.Debug("revalidation failed", "url", req.URL, "error", err)
		}
		inflight <- fetchResult{resp: resp, err: err}
	}()

	cached, err := ns.Get(ctx, req.Key())
	if err == nil {
		e.record("stale_while_revalidate", "cache_hit")
		return &Result{Response: cached, Source: SourceCache}, nil
	}

	r := <-inflight
	if r.err != nil {
		e.record("stale_while_revalidate", "error")
		return nil, r.err
	}
	e.record("stale_while_revalidate", "network")
	return &Result{Response: r.resp, Source: SourceNetwork}, nil
}

// Navigation resolves a top-level document request with NetworkFirst
// semantics, but the terminal fallback is the offline document (or a JSON
// error payload for non-HTML accepts) rather than a propagated failure.
func (e *Executor) Navigation(ctx context.Context, req *Request, ns *cachestore.Namespace) (*Result, error) {
	result, err := e.NetworkFirst(ctx, req, ns)
	if err == nil {
		return result, nil
	}

	e.record("navigation", "offline_document")
	return &Result{
		Response: offlineResponse(req.Header, e.offlineHTML),
		Source:   SourceOffline,
	}, nil
}

// Refresh re-fetches eligible GET entries currently in the namespace,
// storing fresh responses on 2xx and swallowing failures. The connectivity
// monitor runs this after a queue flush on reconnect. Returns the number of
// entries refreshed.
func (e *Executor) Refresh(ctx context.Context, ns *cachestore.Namespace, eligible func(url string) bool) (int, error) {
	keys, err := ns.Keys(ctx)
	if err != nil {
		return 0, errors.WrapTransient(err, "Executor", "Refresh", "list namespace keys")
	}

	refreshed := 0
	for _, key := range keys {
		method, url, found := strings.Cut(key, " ")
		if !found || method != http.MethodGet {
			continue
		}
		if eligible != nil && !eligible(url) {
			continue
		}

		req := &Request{Method: method, URL: url}
		if _, err := e.fetchAndStore(ctx, req, ns); err != nil {
			e.logger.Debug("refresh fetch failed", "url", url, "error", err)
			continue
		}
		refreshed++
	}
	return refreshed, nil
}

// fetchAndStore fetches upstream and stores a clone on 2xx. Store failures
// are logged, not propagated: the response is still good for the caller.
func (e *Executor) fetchAndStore(ctx context.Context, req *Request, ns *cachestore.Namespace) (*cachestore.CachedResponse, error) {
	resp, err := e.fetcher.Fetch(ctx, req.Method, req.URL, req.Header)
	if err != nil {
		return nil, err
	}

	if resp.Status >= 200 && resp.Status < 300 && ns != nil {
		if err := ns.Put(ctx, req.Key(), resp.Clone()); err != nil {
			e.logger.Warn("cache store failed", "url", req.URL, "error", err)
		}
	}
	return resp, nil
}

// refreshDetached updates the cache for a hit key without blocking or being
// canceled by the caller.
func (e *Executor) refreshDetached(ctx context.Context, req *Request, ns *cachestore.Namespace) {
	bgCtx := context.WithoutCancel(ctx)
	go func() {
		if _, err := e.fetchAndStore(bgCtx, req, ns); err != nil {
			e.logger.Debug("background refresh failed", "url", req.URL, "error", err)
		}
	}()
}

func (e *Executor) record(strategy, result string) {
	if e.metrics != nil {
		e.metrics.StrategyResults.WithLabelValues(strategy, result).Inc()
	}
}
