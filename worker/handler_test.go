package worker

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Siddamnandas/Vibely-sub004/actionqueue"
	"github.com/Siddamnandas/Vibely-sub004/cachestore"
	"github.com/Siddamnandas/Vibely-sub004/config"
	"github.com/Siddamnandas/Vibely-sub004/connectivity"
	"github.com/Siddamnandas/Vibely-sub004/router"
	"github.com/Siddamnandas/Vibely-sub004/strategy"
)

// okReplayer confirms every action.
type okReplayer struct{}

func (okReplayer) Replay(context.Context, *actionqueue.QueuedAction) error { return nil }

type handlerFixture struct {
	handler *FetchHandler
	fetcher *stubFetcher
	queue   *actionqueue.Queue
	monitor *connectivity.Monitor
	cfg     *config.SafeConfig
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	logger := slog.Default()
	cfg := config.NewSafeConfig(config.Default())

	fetcher := &stubFetcher{fail: map[string]bool{}}
	executor, err := strategy.NewExecutor(fetcher, nil, logger)
	require.NoError(t, err)

	manager, err := cachestore.NewManager("vibely", "v3", nil,
		cachestore.NewMemoryProvider(), nil, logger)
	require.NoError(t, err)
	require.NoError(t, manager.Install(context.Background(), nil))

	queue, err := actionqueue.New(actionqueue.NewMemoryStore(), okReplayer{}, nil, logger)
	require.NoError(t, err)

	rt, err := router.New(cfg)
	require.NoError(t, err)

	monitor := connectivity.NewMonitor(connectivity.Hooks{}, nil, logger)

	return &handlerFixture{
		handler: NewFetchHandler(cfg, rt, manager, executor, queue, monitor, nil, logger),
		fetcher: fetcher,
		queue:   queue,
		monitor: monitor,
		cfg:     cfg,
	}
}

func TestHandlerCacheFirstServesSecondRequestFromCache(t *testing.T) {
	f := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/_next/static/app.js", nil)

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "network", rec.Header().Get("X-Vibely-Source"))

	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/_next/static/app.js", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cache", rec.Header().Get("X-Vibely-Source"))
	assert.Equal(t, 1, f.fetcher.callCount())
}

func TestHandlerNetworkFirstFallsBackToCache(t *testing.T) {
	f := newHandlerFixture(t)

	// Prime the cache while the network works.
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/session", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "network", rec.Header().Get("X-Vibely-Source"))

	f.fetcher.fail["https://vibely.app/api/auth/session"] = true

	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/session", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fallback", rec.Header().Get("X-Vibely-Source"))
}

func TestHandlerNavigationServesOfflineDocument(t *testing.T) {
	f := newHandlerFixture(t)
	f.fetcher.fail["https://vibely.app/library"] = true

	req := httptest.NewRequest(http.MethodGet, "/library", nil)
	req.Header.Set("Accept", "text/html")
	req.Header.Set("Sec-Fetch-Mode", "navigate")

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "offline")
}

func TestHandlerAPIFailureReturnsStructuredJSON(t *testing.T) {
	f := newHandlerFixture(t)
	f.fetcher.fail["https://vibely.app/api/auth/me"] = true

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Accept", "application/json")

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	assert.Contains(t, rec.Body.String(), `"offline"`)
}

func TestHandlerOfflineMutationIsQueued(t *testing.T) {
	f := newHandlerFixture(t)
	// Monitor starts offline; the mutation must not touch the network.

	body := strings.NewReader(`{"trackId":"t-42","durationMs":215000}`)
	req := httptest.NewRequest(http.MethodPost, "/api/tracks/played", body)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"queued":true`)
	assert.Contains(t, rec.Body.String(), `"track_played"`)

	depth, err := f.queue.Depth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
	assert.Equal(t, 0, f.fetcher.callCount())
}

func TestHandlerOnlineMutationProxiesUpstream(t *testing.T) {
	f := newHandlerFixture(t)

	var gotBody string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"pl-9"}`))
	}))
	defer upstream.Close()

	cfg := f.cfg.Get()
	cfg.App.Origin = upstream.URL
	require.NoError(t, f.cfg.Update(cfg))
	f.monitor.SetOnline(context.Background())

	body := strings.NewReader(`{"name":"road trip"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/playlists", body)

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, `{"id":"pl-9"}`, rec.Body.String())
	assert.Equal(t, `{"name":"road trip"}`, gotBody)

	depth, err := f.queue.Depth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, depth)
}

func TestHandlerProxyForwardsLargeBodyIntact(t *testing.T) {
	f := newHandlerFixture(t)

	var gotLen int
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotLen = len(b)
		w.WriteHeader(http.StatusCreated)
	}))
	defer upstream.Close()

	cfg := f.cfg.Get()
	cfg.App.Origin = upstream.URL
	require.NoError(t, f.cfg.Update(cfg))
	f.monitor.SetOnline(context.Background())

	// A photo upload well past the queue capture cap. Not a deferrable
	// mutation, so it streams through untouched.
	payload := bytes.Repeat([]byte("p"), 2<<20)
	req := httptest.NewRequest(http.MethodPost, "/api/photos", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "image/jpeg")

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, len(payload), gotLen)
}

func TestHandlerOversizedDeferrableMutationRejected(t *testing.T) {
	f := newHandlerFixture(t)

	payload := bytes.Repeat([]byte("x"), (1<<20)+1)
	req := httptest.NewRequest(http.MethodPost, "/api/playlists", bytes.NewReader(payload))

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "payload too large")

	depth, err := f.queue.Depth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, depth, "a refused mutation must never be queued")
}

func TestHandlerOnlineMutationDefersOnTransportFailure(t *testing.T) {
	f := newHandlerFixture(t)

	cfg := f.cfg.Get()
	cfg.App.Origin = "http://127.0.0.1:1" // nothing listens here
	require.NoError(t, f.cfg.Update(cfg))
	f.monitor.SetOnline(context.Background())

	req := httptest.NewRequest(http.MethodPost, "/api/covers/regenerate",
		strings.NewReader(`{"playlistId":"pl-1"}`))

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cover_regen_requested"`)

	depth, err := f.queue.Depth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
}

func TestMatchMutation(t *testing.T) {
	cases := []struct {
		method, path string
		wantType     string
		wantOK       bool
	}{
		{http.MethodPost, "/api/tracks/played", actionqueue.TypeTrackPlayed, true},
		{http.MethodPost, "/api/playlists", actionqueue.TypePlaylistCreated, true},
		{http.MethodPut, "/api/playlists/pl-1", actionqueue.TypePlaylistUpdated, true},
		{http.MethodPatch, "/api/playlists/pl-1", actionqueue.TypePlaylistUpdated, true},
		{http.MethodPost, "/api/covers/regenerate", actionqueue.TypeCoverRegenRequest, true},
		{http.MethodPost, "/api/favorites", actionqueue.TypeFavoriteToggled, true},
		{http.MethodDelete, "/api/playlists/pl-1", "", false},
		{http.MethodPost, "/api/auth/login", "", false},
	}
	for _, tc := range cases {
		got, ok := matchMutation(tc.method, tc.path)
		assert.Equal(t, tc.wantOK, ok, "%s %s", tc.method, tc.path)
		assert.Equal(t, tc.wantType, got, "%s %s", tc.method, tc.path)
	}
}
