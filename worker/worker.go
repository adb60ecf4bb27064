package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Siddamnandas/Vibely-sub004/actionqueue"
	"github.com/Siddamnandas/Vibely-sub004/cachestore"
	"github.com/Siddamnandas/Vibely-sub004/component"
	"github.com/Siddamnandas/Vibely-sub004/config"
	"github.com/Siddamnandas/Vibely-sub004/connectivity"
	"github.com/Siddamnandas/Vibely-sub004/errors"
	"github.com/Siddamnandas/Vibely-sub004/metric"
	"github.com/Siddamnandas/Vibely-sub004/natsclient"
	"github.com/Siddamnandas/Vibely-sub004/protocol"
	"github.com/Siddamnandas/Vibely-sub004/pushbridge"
	"github.com/Siddamnandas/Vibely-sub004/router"
	"github.com/Siddamnandas/Vibely-sub004/strategy"
)

// Options configures a Worker. Config is required; a nil NATS client runs
// the worker on in-memory storage (tests, local development).
type Options struct {
	Config   *config.SafeConfig
	NATS     *natsclient.Client
	Registry *metric.MetricsRegistry
	Logger   *slog.Logger

	// Fetcher overrides the upstream HTTP fetcher (tests).
	Fetcher strategy.Fetcher
	// Replayer overrides the queue replay transport (tests).
	Replayer actionqueue.Replayer
	// Tray overrides the notification surface (tests).
	Tray pushbridge.Tray
	// OpenWindow opens a browser window at a URL when no session is
	// connected to receive a notification click.
	OpenWindow pushbridge.WindowOpener
}

// Worker is the offline sync worker: it intercepts app requests through the
// configured cache strategies, captures mutations while offline, and bridges
// server pushes to the notification tray. It follows the standard component
// lifecycle: Initialize performs install-time work (bucket creation,
// precache), Start performs activate-time work (stale namespace sweep) and
// serving.
type Worker struct {
	cfg     *config.SafeConfig
	nats    *natsclient.Client
	metrics *metric.Metrics
	logger  *slog.Logger
	clog    *component.Logger

	fetcher   strategy.Fetcher
	replayer  actionqueue.Replayer
	manager   *cachestore.Manager
	executor  *strategy.Executor
	router    *router.Router
	queue     *actionqueue.Queue
	hub       *SessionHub
	bridge    *pushbridge.Bridge
	monitor   *connectivity.Monitor
	precacher *Precacher
	handler   *FetchHandler

	httpServer    *http.Server
	metricsServer *metric.Server

	mu        sync.RWMutex
	state     component.State
	startedAt time.Time
	stopCtx   context.CancelFunc
}

// New assembles a worker from options. Nothing touches the network or the
// durable store until Initialize.
func New(opts Options) (*Worker, error) {
	if opts.Config == nil {
		return nil, errors.WrapInvalid(nil, "Worker", "New", "config cannot be nil")
	}
	cfg := opts.Config.Get()

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var metrics *metric.Metrics
	if opts.Registry != nil {
		metrics = opts.Registry.CoreMetrics()
	}

	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = strategy.NewHTTPFetcher(nil)
	}

	var provider cachestore.Provider
	if opts.NATS != nil {
		p, err := cachestore.NewNATSProvider(opts.NATS)
		if err != nil {
			return nil, err
		}
		provider = p
	} else {
		provider = cachestore.NewMemoryProvider()
	}

	manager, err := cachestore.NewManager(
		cfg.App.Name, cfg.Version,
		absolutize(cfg.App.Origin, cfg.Cache.Precache),
		provider, metrics, logger)
	if err != nil {
		return nil, err
	}

	executor, err := strategy.NewExecutor(fetcher, metrics, logger)
	if err != nil {
		return nil, err
	}

	rt, err := router.New(opts.Config)
	if err != nil {
		return nil, err
	}

	tray := opts.Tray
	if tray == nil {
		tray = pushbridge.NewMemoryTray()
	}

	w := &Worker{
		cfg:      opts.Config,
		nats:     opts.NATS,
		metrics:  metrics,
		logger:   logger,
		fetcher:  fetcher,
		replayer: opts.Replayer,
		manager:  manager,
		executor: executor,
		router:   rt,
		state:    component.StateCreated,
	}

	w.hub = NewSessionHub(logger, w.handleSessionMessage)

	openWindow := opts.OpenWindow
	if openWindow == nil {
		openWindow = func(u string) error {
			logger.Info("window open requested", "url", u)
			return nil
		}
	}

	bridge, err := pushbridge.New(tray, w.hub, openWindow, metrics, logger,
		pushbridge.WithDefaultIcon(cfg.Push.DefaultIcon))
	if err != nil {
		return nil, err
	}
	w.bridge = bridge
	if cfg.Push.Disabled {
		w.bridge.Disable()
	}

	w.monitor = connectivity.NewMonitor(connectivity.Hooks{
		Flush:   w.flushQueue,
		Refresh: w.refreshAndNotify,
		Offline: w.notifyOffline,
	}, metrics, logger)

	if opts.Registry != nil && cfg.Serve.MetricsAddr != "" {
		w.metricsServer = metric.NewServer(cfg.Serve.MetricsAddr, "/metrics", opts.Registry)
	}

	return w, nil
}

// Initialize performs install-time work: opens the versioned cache buckets,
// populates the static precache best-effort, and creates the durable action
// queue. It does not sweep older versions; that happens at Start.
func (w *Worker) Initialize() error {
	ctx := context.Background()
	cfg := w.cfg.Get()

	if err := w.manager.Install(ctx, w.precacheFetch); err != nil {
		w.setState(component.StateFailed)
		return errors.Wrap(err, "Worker", "Initialize", "install cache namespaces")
	}

	var store actionqueue.Store
	if w.nats != nil {
		s, err := actionqueue.NewNATSStore(ctx, w.nats, cfg.Queue.Stream, streamSubjectPrefix(cfg.Queue.Stream))
		if err != nil {
			w.setState(component.StateFailed)
			return errors.Wrap(err, "Worker", "Initialize", "create durable action queue")
		}
		store = s
	} else {
		store = actionqueue.NewMemoryStore()
	}

	replayer := w.replayer
	if replayer == nil {
		r, err := actionqueue.NewHTTPReplayer(cfg.Queue.SyncEndpoint, cfg.Queue.Endpoints, cfg.Queue.ReplayTimeout)
		if err != nil {
			w.setState(component.StateFailed)
			return errors.Wrap(err, "Worker", "Initialize", "create queue replayer")
		}
		replayer = r
	}

	queue, err := actionqueue.New(store, replayer, w.metrics, w.logger)
	if err != nil {
		w.setState(component.StateFailed)
		return errors.Wrap(err, "Worker", "Initialize", "create action queue")
	}
	w.queue = queue

	dynamic, err := w.manager.Namespace(cachestore.PurposeDynamic)
	if err != nil {
		w.setState(component.StateFailed)
		return errors.Wrap(err, "Worker", "Initialize", "resolve dynamic namespace")
	}
	w.precacher, err = NewPrecacher(w.executor, dynamic, w.logger)
	if err != nil {
		w.setState(component.StateFailed)
		return err
	}

	w.handler = NewFetchHandler(w.cfg, w.router, w.manager, w.executor,
		w.queue, w.monitor, w.metrics, w.logger)

	w.setState(component.StateInitialized)
	return nil
}

// Start performs activate-time work and begins serving: sweeps stale cache
// versions, binds connectivity to the NATS connection, subscribes to server
// pushes, and opens the interception and metrics listeners.
func (w *Worker) Start(ctx context.Context) error {
	if w.getState() != component.StateInitialized {
		return errors.ErrNotStarted
	}
	cfg := w.cfg.Get()

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w.mu.Lock()
	w.stopCtx = cancel
	w.mu.Unlock()

	swept, err := w.manager.Activate(ctx)
	if err != nil {
		w.setState(component.StateFailed)
		return errors.Wrap(err, "Worker", "Start", "sweep stale cache versions")
	}
	if swept > 0 {
		w.logger.Info("stale cache versions swept", "count", swept)
	}

	if err := w.precacher.Start(runCtx); err != nil {
		w.setState(component.StateFailed)
		return err
	}

	if w.nats != nil {
		// Lifecycle announcements also stream over NATS for live tailing.
		w.clog = component.NewLogger("worker", cfg.App.Name, w.nats.GetConnection(), w.logger)
		w.clog.Info("sync worker activating")

		if !cfg.Push.Disabled && cfg.Push.Subject != "" {
			if err := w.nats.Subscribe(runCtx, cfg.Push.Subject, w.bridge.HandlePush); err != nil {
				w.setState(component.StateFailed)
				return errors.Wrap(err, "Worker", "Start", "subscribe to push subject")
			}
		}
		if err := w.monitor.Bind(runCtx, w.nats); err != nil {
			w.setState(component.StateFailed)
			return errors.Wrap(err, "Worker", "Start", "bind connectivity monitor")
		}
		if w.nats.IsHealthy() {
			w.monitor.SetOnline(runCtx)
		}
	} else {
		// Memory mode has no broker to watch; assume online.
		w.monitor.SetOnline(runCtx)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", w.hub.HandleWS)
	mux.HandleFunc("/healthz", w.handleHealthz)
	mux.HandleFunc("/notifications/click", w.handleNotificationClick)
	mux.Handle("/", w.handler)

	w.httpServer = &http.Server{
		Addr:              cfg.Serve.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		w.logger.Info("sync worker listening", "addr", cfg.Serve.Addr)
		if err := w.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			w.logger.Error("interception listener failed", "error", err)
		}
	}()

	if w.metricsServer != nil {
		if err := w.metricsServer.Start(); err != nil {
			w.logger.Error("metrics listener failed", "error", err)
		}
	}

	w.mu.Lock()
	w.state = component.StateStarted
	w.startedAt = time.Now()
	w.mu.Unlock()
	return nil
}

// Stop shuts the worker down: listeners first, then sessions and the
// precache pool.
func (w *Worker) Stop(timeout time.Duration) error {
	if w.getState() != component.StateStarted {
		return errors.ErrNotStarted
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if w.httpServer != nil {
		if err := w.httpServer.Shutdown(ctx); err != nil {
			w.logger.Warn("interception listener shutdown", "error", err)
		}
	}
	if w.metricsServer != nil {
		if err := w.metricsServer.Stop(); err != nil {
			w.logger.Warn("metrics listener shutdown", "error", err)
		}
	}
	_ = w.hub.Close(timeout)
	if w.precacher != nil {
		_ = w.precacher.Stop(timeout)
	}

	w.mu.Lock()
	if w.stopCtx != nil {
		w.stopCtx()
	}
	w.state = component.StateStopped
	w.mu.Unlock()

	if w.clog != nil {
		w.clog.Info("sync worker stopped")
	}
	return nil
}

// Health reports the worker's runtime health.
func (w *Worker) Health() component.HealthStatus {
	w.mu.RLock()
	state := w.state
	started := w.startedAt
	w.mu.RUnlock()

	var uptime time.Duration
	if !started.IsZero() {
		uptime = time.Since(started)
	}
	return component.HealthStatus{
		Healthy:   state == component.StateStarted,
		State:     state.String(),
		LastCheck: time.Now(),
		Uptime:    uptime,
	}
}

// Monitor exposes the connectivity monitor so callers can report transitions
// observed outside the NATS connection.
func (w *Worker) Monitor() *connectivity.Monitor { return w.monitor }

// Queue exposes the offline action queue.
func (w *Worker) Queue() *actionqueue.Queue { return w.queue }

// Bridge exposes the push notification bridge.
func (w *Worker) Bridge() *pushbridge.Bridge { return w.bridge }

// Sessions exposes the page session hub.
func (w *Worker) Sessions() *SessionHub { return w.hub }

// Handler exposes the fetch interception handler (tests serve it directly).
func (w *Worker) Handler() http.Handler { return w.handler }

func (w *Worker) handleSessionMessage(ctx context.Context, msg protocol.Message, reply func(protocol.Message)) {
	switch m := msg.(type) {
	case protocol.CachePlaylistAudio:
		w.precacher.CachePlaylist(m, reply)
	case protocol.ClearPlaylistCache:
		w.precacher.ClearPlaylist(ctx, m, reply)
	default:
		w.logger.Debug("unhandled session message", "type", string(msg.MessageType()))
	}
}

// handleNotificationClick routes a tray click through the push bridge. The
// desktop shell reports clicks here because the tray surface has no direct
// callback into this process.
func (w *Worker) handleNotificationClick(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tag := r.FormValue("tag")
	if tag == "" {
		http.Error(rw, "missing tag", http.StatusBadRequest)
		return
	}
	action := pushbridge.Action(r.FormValue("action"))
	if action == "" {
		// A body click carries no action button; treat it as view.
		action = pushbridge.ActionView
	}
	if err := w.bridge.HandleClick(r.Context(), tag, action); err != nil {
		w.logger.Warn("notification click failed", "tag", tag, "error", err)
		http.Error(rw, "click handling failed", http.StatusInternalServerError)
		return
	}
	rw.WriteHeader(http.StatusNoContent)
}

func (w *Worker) handleHealthz(rw http.ResponseWriter, r *http.Request) {
	depth := 0
	if w.queue != nil {
		if d, err := w.queue.Depth(r.Context()); err == nil {
			depth = d
		}
	}
	status := struct {
		component.HealthStatus
		Online     bool     `json:"online"`
		QueueDepth int      `json:"queue_depth"`
		Sessions   int      `json:"sessions"`
		Namespaces []string `json:"namespaces"`
	}{
		HealthStatus: w.Health(),
		Online:       w.monitor.Online(),
		QueueDepth:   depth,
		Sessions:     w.hub.SessionCount(),
		Namespaces:   w.manager.CurrentNames(),
	}

	rw.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		rw.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(rw).Encode(status)
}

// precacheFetch adapts the fetcher to the cache manager's install hook.
func (w *Worker) precacheFetch(ctx context.Context, method, rawURL string) (*cachestore.CachedResponse, error) {
	return w.fetcher.Fetch(ctx, method, rawURL, nil)
}

// flushQueue replays the offline action queue on reconnect.
func (w *Worker) flushQueue(ctx context.Context) {
	if w.queue == nil {
		return
	}
	replayed, err := w.queue.Flush(ctx)
	if err != nil {
		w.logger.Warn("reconnect flush halted", "replayed", replayed, "error", err)
		return
	}
	if replayed > 0 {
		w.logger.Info("reconnect flush drained", "replayed", replayed)
	}
}

// refreshAndNotify re-fetches revalidating entries after the queue flush,
// then tells open pages connectivity is back.
func (w *Worker) refreshAndNotify(ctx context.Context) {
	if dynamic, err := w.manager.Namespace(cachestore.PurposeDynamic); err == nil {
		if n, err := w.executor.Refresh(ctx, dynamic, w.router.IsSWREligible); err == nil && n > 0 {
			w.logger.Info("reconnect refresh complete", "refreshed", n)
		}
	}
	_ = w.hub.Post(protocol.ConnectivityChanged{Online: true})
}

func (w *Worker) notifyOffline() {
	_ = w.hub.Post(protocol.ConnectivityChanged{Online: false})
}

func (w *Worker) getState() component.State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

func (w *Worker) setState(s component.State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// streamSubjectPrefix derives the queue's subject prefix from its stream
// name, e.g. "VIBELY_ACTIONS" publishes under "vibely.actions.<type>".
func streamSubjectPrefix(stream string) string {
	return strings.ReplaceAll(strings.ToLower(stream), "_", ".")
}

// absolutize resolves relative precache paths against the app origin.
func absolutize(origin string, paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if u, err := url.Parse(p); err == nil && u.IsAbs() {
			out = append(out, p)
			continue
		}
		out = append(out, fmt.Sprintf("%s%s", strings.TrimSuffix(origin, "/"), p))
	}
	return out
}
