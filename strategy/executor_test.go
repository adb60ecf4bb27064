package strategy

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Siddamnandas/Vibely-sub004/cachestore"
	"github.com/Siddamnandas/Vibely-sub004/errors"
)

// fakeFetcher serves scripted responses and counts calls per URL.
type fakeFetcher struct {
	mu        sync.Mutex
	calls     map[string]int
	responses map[string]*cachestore.CachedResponse
	fail      bool
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		calls:     make(map[string]int),
		responses: make(map[string]*cachestore.CachedResponse),
	}
}

func (f *fakeFetcher) serve(url string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[url] = &cachestore.CachedResponse{Status: status, Body: []byte(body)}
}

func (f *fakeFetcher) setFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

func (f *fakeFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *fakeFetcher) Fetch(_ context.Context, _, url string, _ http.Header) (*cachestore.CachedResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	if f.fail {
		return nil, errors.WrapTransient(errors.ErrNetworkUnavailable, "fakeFetcher", "Fetch", "upstream fetch")
	}
	if resp, ok := f.responses[url]; ok {
		return resp.Clone(), nil
	}
	return &cachestore.CachedResponse{Status: http.StatusNotFound}, nil
}

func testSetup(t *testing.T, purpose cachestore.Purpose) (*Executor, *fakeFetcher, *cachestore.Namespace) {
	t.Helper()
	fetcher := newFakeFetcher()
	exec, err := NewExecutor(fetcher, nil, nil)
	require.NoError(t, err)

	name := cachestore.NamespaceName("vibely", purpose, "v3")
	bucket, err := cachestore.NewMemoryProvider().OpenBucket(context.Background(), name)
	require.NoError(t, err)
	ns, err := cachestore.NewNamespace(purpose, name, bucket, nil)
	require.NoError(t, err)

	return exec, fetcher, ns
}

func TestCacheFirst_SecondFetchSkipsNetwork(t *testing.T) {
	ctx := context.Background()
	exec, fetcher, ns := testSetup(t, cachestore.PurposeImage)

	url := "https://vibely.app/covers/p1.png"
	fetcher.serve(url, http.StatusOK, "png-bytes")
	req := &Request{Method: http.MethodGet, URL: url}

	first, err := exec.CacheFirst(ctx, req, ns, false)
	require.NoError(t, err)
	assert.Equal(t, SourceNetwork, first.Source)
	assert.Equal(t, 1, fetcher.callCount(url))

	second, err := exec.CacheFirst(ctx, req, ns, false)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, second.Source)
	assert.Equal(t, []byte("png-bytes"), second.Response.Body)
	assert.Equal(t, 1, fetcher.callCount(url), "cache hit must not issue a network call")
}

func TestCacheFirst_MissAndNetworkFailurePropagates(t *testing.T) {
	ctx := context.Background()
	exec, fetcher, ns := testSetup(t, cachestore.PurposeStatic)
	fetcher.setFail(true)

	req := &Request{Method: http.MethodGet, URL: "https://vibely.app/app.js"}
	_, err := exec.CacheFirst(ctx, req, ns, false)
	assert.ErrorIs(t, err, errors.ErrNetworkUnavailable)
}

func TestCacheFirst_RefreshOnHit(t *testing.T) {
	ctx := context.Background()
	exec, fetcher, ns := testSetup(t, cachestore.PurposeImage)

	url := "https://vibely.app/covers/p2.png"
	fetcher.serve(url, http.StatusOK, "v1")
	req := &Request{Method: http.MethodGet, URL: url}

	_, err := exec.CacheFirst(ctx, req, ns, true)
	require.NoError(t, err)

	fetcher.serve(url, http.StatusOK, "v2")
	res, err := exec.CacheFirst(ctx, req, ns, true)
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), res.Response.Body, "hit serves the cached copy")

	// The detached refresh eventually replaces the cached copy.
	assert.Eventually(t, func() bool {
		got, err := ns.Get(ctx, req.Key())
		return err == nil && string(got.Body) == "v2"
	}, time.Second, 5*time.Millisecond)
}

func TestNetworkFirst_FallsBackToLastCachedResponse(t *testing.T) {
	ctx := context.Background()
	exec, fetcher, ns := testSetup(t, cachestore.PurposeDynamic)

	url := "https://vibely.app/api/user/profile"
	fetcher.serve(url, http.StatusOK, "profile-v1")
	req := &Request{Method: http.MethodGet, URL: url}

	res, err := exec.NetworkFirst(ctx, req, ns)
	require.NoError(t, err)
	assert.Equal(t, SourceNetwork, res.Source)

	fetcher.setFail(true)
	res, err = exec.NetworkFirst(ctx, req, ns)
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, res.Source)
	assert.Equal(t, []byte("profile-v1"), res.Response.Body)
}

func TestNetworkFirst_NoCacheNoNetworkPropagates(t *testing.T) {
	ctx := context.Background()
	exec, fetcher, ns := testSetup(t, cachestore.PurposeDynamic)
	fetcher.setFail(true)

	req := &Request{Method: http.MethodGet, URL: "https://vibely.app/api/payment"}
	_, err := exec.NetworkFirst(ctx, req, ns)
	assert.ErrorIs(t, err, errors.ErrNetworkUnavailable)
}

func TestNetworkFirst_NonSuccessStatusNotCached(t *testing.T) {
	ctx := context.Background()
	exec, fetcher, ns := testSetup(t, cachestore.PurposeDynamic)

	url := "https://vibely.app/api/covers"
	fetcher.serve(url, http.StatusBadGateway, "upstream down")
	req := &Request{Method: http.MethodGet, URL: url}

	res, err := exec.NetworkFirst(ctx, req, ns)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, res.Response.Status)

	_, err = ns.Get(ctx, req.Key())
	assert.ErrorIs(t, err, errors.ErrCacheMiss)
}

func TestStaleWhileRevalidate_HitReturnsImmediatelyAndRefreshesOnce(t *testing.T) {
	ctx := context.Background()
	exec, fetcher, ns := testSetup(t, cachestore.PurposeDynamic)

	url := "https://vibely.app/api/playlists"
	req := &Request{Method: http.MethodGet, URL: url}
	require.NoError(t, ns.Put(ctx, req.Key(), &cachestore.CachedResponse{
		Status: http.StatusOK, Body: []byte("stale"),
	}))

	fetcher.serve(url, http.StatusOK, "fresh")

	res, err := exec.StaleWhileRevalidate(ctx, req, ns)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, res.Source)
	assert.Equal(t, []byte("stale"), res.Response.Body)

	// Exactly one background refresh per invocation.
	assert.Eventually(t, func() bool {
		return fetcher.callCount(url) == 1
	}, time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		got, err := ns.Get(ctx, req.Key())
		return err == nil && string(got.Body) == "fresh"
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, fetcher.callCount(url))
}

func TestStaleWhileRevalidate_MissAwaitsNetwork(t *testing.T) {
	ctx := context.Background()
	exec, fetcher, ns := testSetup(t, cachestore.PurposeDynamic)

	url := "https://vibely.app/api/playlists"
	fetcher.serve(url, http.StatusOK, "fresh")
	req := &Request{Method: http.MethodGet, URL: url}

	res, err := exec.StaleWhileRevalidate(ctx, req, ns)
	require.NoError(t, err)
	assert.Equal(t, SourceNetwork, res.Source)
	assert.Equal(t, []byte("fresh"), res.Response.Body)
	assert.Equal(t, 1, fetcher.callCount(url))
}

func TestStaleWhileRevalidate_RevalidationFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	exec, fetcher, ns := testSetup(t, cachestore.PurposeDynamic)

	url := "https://vibely.app/api/playlists"
	req := &Request{Method: http.MethodGet, URL: url}
	require.NoError(t, ns.Put(ctx, req.Key(), &cachestore.CachedResponse{
		Status: http.StatusOK, Body: []byte("stale"),
	}))
	fetcher.setFail(true)

	res, err := exec.StaleWhileRevalidate(ctx, req, ns)
	require.NoError(t, err)
	assert.Equal(t, []byte("stale"), res.Response.Body)
}

func TestNavigation_OfflineDocumentForHTML(t *testing.T) {
	ctx := context.Background()
	exec, fetcher, ns := testSetup(t, cachestore.PurposeDynamic)
	fetcher.setFail(true)

	req := &Request{
		Method: http.MethodGet,
		URL:    "https://vibely.app/playlist/p1",
		Header: http.Header{"Accept": []string{"text/html,application/xhtml+xml"}},
	}

	res, err := exec.Navigation(ctx, req, ns)
	require.NoError(t, err, "navigation never propagates a failure")
	assert.Equal(t, SourceOffline, res.Source)
	assert.Equal(t, http.StatusServiceUnavailable, res.Response.Status)
	assert.Contains(t, res.Response.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(res.Response.Body), "offline")
}

func TestNavigation_OfflineJSONForWildcardAccept(t *testing.T) {
	ctx := context.Background()
	exec, fetcher, ns := testSetup(t, cachestore.PurposeDynamic)
	fetcher.setFail(true)

	// fetch() sends "*/*" by default; that is an API call, not a page load.
	req := &Request{
		Method: http.MethodGet,
		URL:    "https://vibely.app/api/covers/c1",
		Header: http.Header{"Accept": []string{"*/*"}},
	}

	res, err := exec.Navigation(ctx, req, ns)
	require.NoError(t, err)
	assert.Equal(t, "application/json", res.Response.Header.Get("Content-Type"))
	assert.Contains(t, string(res.Response.Body), `"offline"`)
}

func TestNavigation_OfflineJSONForNonHTML(t *testing.T) {
	ctx := context.Background()
	exec, fetcher, ns := testSetup(t, cachestore.PurposeDynamic)
	fetcher.setFail(true)

	req := &Request{
		Method: http.MethodGet,
		URL:    "https://vibely.app/api/playlists",
		Header: http.Header{"Accept": []string{"application/json"}},
	}

	res, err := exec.Navigation(ctx, req, ns)
	require.NoError(t, err)
	assert.Equal(t, "application/json", res.Response.Header.Get("Content-Type"))
	assert.Contains(t, string(res.Response.Body), `"offline"`)
}

func TestNavigation_UsesCachedFallbackBeforeOfflineDocument(t *testing.T) {
	ctx := context.Background()
	exec, fetcher, ns := testSetup(t, cachestore.PurposeDynamic)

	url := "https://vibely.app/playlist/p1"
	fetcher.serve(url, http.StatusOK, "<html>playlist</html>")
	req := &Request{Method: http.MethodGet, URL: url, Header: http.Header{"Accept": []string{"text/html"}}}

	_, err := exec.Navigation(ctx, req, ns)
	require.NoError(t, err)

	fetcher.setFail(true)
	res, err := exec.Navigation(ctx, req, ns)
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, res.Source)
	assert.Equal(t, []byte("<html>playlist</html>"), res.Response.Body)
}

func TestRefresh_RefetchesStoredEntries(t *testing.T) {
	ctx := context.Background()
	exec, fetcher, ns := testSetup(t, cachestore.PurposeDynamic)

	urls := []string{
		"https://vibely.app/api/playlists",
		"https://vibely.app/api/covers",
	}
	for _, u := range urls {
		require.NoError(t, ns.Put(ctx, cachestore.RequestKey(http.MethodGet, u), &cachestore.CachedResponse{
			Status: http.StatusOK, Body: []byte("stale"),
		}))
		fetcher.serve(u, http.StatusOK, "fresh")
	}

	refreshed, err := exec.Refresh(ctx, ns, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, refreshed)

	for _, u := range urls {
		got, err := ns.Get(ctx, cachestore.RequestKey(http.MethodGet, u))
		require.NoError(t, err)
		assert.Equal(t, []byte("fresh"), got.Body)
	}
}

func TestRefresh_EligibilityFilter(t *testing.T) {
	ctx := context.Background()
	exec, fetcher, ns := testSetup(t, cachestore.PurposeDynamic)

	require.NoError(t, ns.Put(ctx, cachestore.RequestKey(http.MethodGet, "https://vibely.app/api/playlists"),
		&cachestore.CachedResponse{Status: http.StatusOK}))
	require.NoError(t, ns.Put(ctx, cachestore.RequestKey(http.MethodGet, "https://vibely.app/api/payment"),
		&cachestore.CachedResponse{Status: http.StatusOK}))

	refreshed, err := exec.Refresh(ctx, ns, func(url string) bool {
		return url == "https://vibely.app/api/playlists"
	})
	require.NoError(t, err)
	assert.Equal(t, 1, refreshed)
	assert.Equal(t, 0, fetcher.callCount("https://vibely.app/api/payment"))
}
