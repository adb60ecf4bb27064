package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Siddamnandas/Vibely-sub004/config"
	"github.com/Siddamnandas/Vibely-sub004/pushbridge"
)

func newTestWorker(t *testing.T) (*Worker, *stubFetcher) {
	t.Helper()
	cfg := config.Default()
	cfg.Serve.Addr = "127.0.0.1:0"
	cfg.Serve.MetricsAddr = ""
	cfg.Cache.Precache = []string{"/", "/offline"}

	fetcher := &stubFetcher{fail: map[string]bool{}}
	w, err := New(Options{
		Config:   config.NewSafeConfig(cfg),
		Fetcher:  fetcher,
		Replayer: okReplayer{},
		Tray:     pushbridge.NewMemoryTray(),
	})
	require.NoError(t, err)
	return w, fetcher
}

func TestWorkerLifecycle(t *testing.T) {
	w, _ := newTestWorker(t)

	assert.False(t, w.Health().Healthy)
	assert.Equal(t, "created", w.Health().State)

	require.NoError(t, w.Initialize())
	assert.Equal(t, "initialized", w.Health().State)

	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Stop(2 * time.Second) })

	health := w.Health()
	assert.True(t, health.Healthy)
	assert.Equal(t, "started", health.State)

	// Memory mode assumes connectivity.
	assert.True(t, w.Monitor().Online())

	require.NoError(t, w.Stop(2*time.Second))
	assert.Equal(t, "stopped", w.Health().State)
}

func TestWorkerStartRequiresInitialize(t *testing.T) {
	w, _ := newTestWorker(t)
	assert.Error(t, w.Start(context.Background()))
}

func TestWorkerInitializePrecachesStaticAssets(t *testing.T) {
	w, fetcher := newTestWorker(t)

	require.NoError(t, w.Initialize())

	// Both precache assets were fetched against the app origin.
	assert.Equal(t, 2, fetcher.callCount())
}

func TestWorkerReconnectFlushesBeforeRefresh(t *testing.T) {
	w, _ := newTestWorker(t)
	require.NoError(t, w.Initialize())
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Stop(2 * time.Second) })

	ctx := context.Background()

	// Queue a mutation while "offline", then reconnect.
	w.Monitor().SetOffline()
	_, err := w.Queue().Enqueue(ctx, "track_played", []byte(`{"trackId":"t-1"}`))
	require.NoError(t, err)

	w.Monitor().SetOnline(ctx)

	depth, err := w.Queue().Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, depth, "reconnect must drain the queue")
}

func TestAbsolutize(t *testing.T) {
	got := absolutize("https://vibely.app", []string{
		"/",
		"/static/css/app.css",
		"https://cdn.vibely.app/fonts/main.woff2",
	})
	assert.Equal(t, []string{
		"https://vibely.app/",
		"https://vibely.app/static/css/app.css",
		"https://cdn.vibely.app/fonts/main.woff2",
	}, got)
}

func TestStreamSubjectPrefix(t *testing.T) {
	assert.Equal(t, "vibely.actions", streamSubjectPrefix("VIBELY_ACTIONS"))
}
