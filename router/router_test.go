package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Siddamnandas/Vibely-sub004/cachestore"
	"github.com/Siddamnandas/Vibely-sub004/config"
)

func testRouter(t *testing.T) *Router {
	t.Helper()
	r, err := New(config.NewSafeConfig(config.Default()))
	require.NoError(t, err)
	return r
}

func request(method, target string, headers map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

func TestClassify_ImageByExtension(t *testing.T) {
	r := testRouter(t)

	d := r.Classify(request(http.MethodGet, "https://vibely.app/covers/p1.png", nil))
	assert.Equal(t, KindCacheFirst, d.Strategy)
	assert.Equal(t, cachestore.PurposeImage, d.Purpose)
	assert.True(t, d.RefreshOnHit)
}

func TestClassify_ImageByDestinationHeader(t *testing.T) {
	r := testRouter(t)

	d := r.Classify(request(http.MethodGet, "https://vibely.app/api/covers/p1/art",
		map[string]string{"Sec-Fetch-Dest": "image"}))
	assert.Equal(t, KindCacheFirst, d.Strategy)
	assert.Equal(t, cachestore.PurposeImage, d.Purpose)
}

func TestClassify_NetworkFirstAllowList(t *testing.T) {
	r := testRouter(t)

	for _, path := range []string{"/api/payment/charge", "/api/auth/refresh", "/api/analytics/event"} {
		d := r.Classify(request(http.MethodPost, "https://vibely.app"+path, nil))
		assert.Equal(t, KindNetworkFirst, d.Strategy, path)
		assert.Equal(t, cachestore.PurposeDynamic, d.Purpose, path)
	}
}

func TestClassify_CacheFirstAllowList(t *testing.T) {
	r := testRouter(t)

	d := r.Classify(request(http.MethodGet, "https://vibely.app/_next/static/chunks/main.js", nil))
	assert.Equal(t, KindCacheFirst, d.Strategy)
	assert.Equal(t, cachestore.PurposeStatic, d.Purpose)
	assert.False(t, d.RefreshOnHit)
}

func TestClassify_StaleWhileRevalidateRoutes(t *testing.T) {
	r := testRouter(t)

	d := r.Classify(request(http.MethodGet, "https://vibely.app/api/playlists?page=2", nil))
	assert.Equal(t, KindStaleWhileRevalidate, d.Strategy)
	assert.Equal(t, cachestore.PurposeDynamic, d.Purpose)
}

func TestClassify_OrderImageBeatsCacheFirstPrefix(t *testing.T) {
	r := testRouter(t)

	// An image under a cache-first prefix still classifies as image.
	d := r.Classify(request(http.MethodGet, "https://vibely.app/static/icons/icon-192.png", nil))
	assert.Equal(t, cachestore.PurposeImage, d.Purpose)
	assert.True(t, d.RefreshOnHit)
}

func TestClassify_Navigation(t *testing.T) {
	r := testRouter(t)

	d := r.Classify(request(http.MethodGet, "https://vibely.app/playlist/p1",
		map[string]string{"Accept": "text/html,application/xhtml+xml", "Sec-Fetch-Mode": "navigate"}))
	assert.Equal(t, KindNavigation, d.Strategy)
}

func TestClassify_DefaultNetworkFirst(t *testing.T) {
	r := testRouter(t)

	d := r.Classify(request(http.MethodPost, "https://vibely.app/api/tracks/played", nil))
	assert.Equal(t, KindNetworkFirst, d.Strategy)
	assert.Equal(t, cachestore.PurposeDynamic, d.Purpose)
}

func TestClassify_CrossOriginPassThrough(t *testing.T) {
	r := testRouter(t)

	// A foreign-origin API call is not intercepted.
	d := r.Classify(request(http.MethodGet, "https://api.spotify.com/v1/me", nil))
	assert.Equal(t, KindPassThrough, d.Strategy)
}

func TestClassify_CrossOriginImageStillCached(t *testing.T) {
	r := testRouter(t)

	// Cross-origin requests hitting a cacheable rule are intercepted.
	d := r.Classify(request(http.MethodGet, "https://cdn.vibely.app/covers/p1.webp", nil))
	assert.Equal(t, KindCacheFirst, d.Strategy)
	assert.Equal(t, cachestore.PurposeImage, d.Purpose)
}

func TestClassify_CrossOriginNavigationPassThrough(t *testing.T) {
	r := testRouter(t)

	d := r.Classify(request(http.MethodGet, "https://example.com/",
		map[string]string{"Accept": "text/html"}))
	assert.Equal(t, KindPassThrough, d.Strategy)
}

func TestIsSWREligible(t *testing.T) {
	r := testRouter(t)

	assert.True(t, r.IsSWREligible("https://vibely.app/api/playlists"))
	assert.True(t, r.IsSWREligible("https://vibely.app/api/user/profile"))
	assert.False(t, r.IsSWREligible("https://vibely.app/api/payment"))
	assert.False(t, r.IsSWREligible("https://vibely.app/static/js/app.js"))
}

func TestClassify_AllowListUpdateTakesEffect(t *testing.T) {
	safe := config.NewSafeConfig(config.Default())
	r, err := New(safe)
	require.NoError(t, err)

	d := r.Classify(request(http.MethodGet, "https://vibely.app/api/friends", nil))
	assert.Equal(t, KindNetworkFirst, d.Strategy)

	cfg := safe.Get()
	cfg.Routing.StaleWhileRevalidate = append(cfg.Routing.StaleWhileRevalidate, "/api/friends")
	require.NoError(t, safe.Update(cfg))

	d = r.Classify(request(http.MethodGet, "https://vibely.app/api/friends", nil))
	assert.Equal(t, KindStaleWhileRevalidate, d.Strategy)
}
