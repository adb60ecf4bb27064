package worker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Siddamnandas/Vibely-sub004/actionqueue"
	"github.com/Siddamnandas/Vibely-sub004/cachestore"
	"github.com/Siddamnandas/Vibely-sub004/config"
	"github.com/Siddamnandas/Vibely-sub004/connectivity"
	"github.com/Siddamnandas/Vibely-sub004/metric"
	"github.com/Siddamnandas/Vibely-sub004/router"
	"github.com/Siddamnandas/Vibely-sub004/strategy"
)

// maxQueuedBody caps the payload captured for a deferred mutation. Larger
// deferrable bodies are refused outright; truncating them would replay a
// corrupt action later.
const maxQueuedBody = 1 << 20

// mutationRule maps an app mutation endpoint to its queued action type.
type mutationRule struct {
	method     string
	pathPrefix string
	actionType string
}

// Mutations that survive offline: failed sends are captured in the action
// queue instead of erroring at the page.
var mutationRules = []mutationRule{
	{http.MethodPost, "/api/tracks/played", actionqueue.TypeTrackPlayed},
	{http.MethodPost, "/api/covers/regenerate", actionqueue.TypeCoverRegenRequest},
	{http.MethodPost, "/api/playlists", actionqueue.TypePlaylistCreated},
	{http.MethodPut, "/api/playlists/", actionqueue.TypePlaylistUpdated},
	{http.MethodPatch, "/api/playlists/", actionqueue.TypePlaylistUpdated},
	{http.MethodPost, "/api/favorites", actionqueue.TypeFavoriteToggled},
}

func matchMutation(method, path string) (string, bool) {
	for _, r := range mutationRules {
		if r.method == method && strings.HasPrefix(path, r.pathPrefix) {
			return r.actionType, true
		}
	}
	return "", false
}

// FetchHandler intercepts app requests: reads route the configured cache
// strategies, mutations proxy upstream and fall back to the action queue
// when the network is gone.
type FetchHandler struct {
	cfg      *config.SafeConfig
	router   *router.Router
	manager  *cachestore.Manager
	executor *strategy.Executor
	queue    *actionqueue.Queue
	monitor  *connectivity.Monitor
	client   *http.Client
	metrics  *metric.Metrics
	logger   *slog.Logger
}

// NewFetchHandler wires the interception pipeline. queue and monitor may be
// nil, which disables offline mutation capture.
func NewFetchHandler(
	cfg *config.SafeConfig,
	rt *router.Router,
	manager *cachestore.Manager,
	executor *strategy.Executor,
	queue *actionqueue.Queue,
	monitor *connectivity.Monitor,
	metrics *metric.Metrics,
	logger *slog.Logger,
) *FetchHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FetchHandler{
		cfg:      cfg,
		router:   rt,
		manager:  manager,
		executor: executor,
		queue:    queue,
		monitor:  monitor,
		client:   &http.Client{},
		metrics:  metrics,
		logger:   logger,
	}
}

func (h *FetchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cfg := h.cfg.Get()
	target := router.TargetURL(cfg.App.Origin, r)

	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		h.serveMutation(w, r, target)
		return
	}

	d := h.router.Classify(r)
	if d.Strategy == router.KindPassThrough {
		h.proxy(w, r, target)
		return
	}

	ns, err := h.manager.Namespace(d.Purpose)
	if err != nil {
		// Namespaces missing before install; fall back to a plain proxy.
		h.proxy(w, r, target)
		return
	}

	h.recordFetch(d.Strategy, ns.Name())

	req := &strategy.Request{Method: r.Method, URL: target, Header: r.Header}

	var res *strategy.Result
	switch d.Strategy {
	case router.KindCacheFirst:
		res, err = h.executor.CacheFirst(r.Context(), req, ns, d.RefreshOnHit)
	case router.KindNetworkFirst:
		res, err = h.executor.NetworkFirst(r.Context(), req, ns)
	case router.KindStaleWhileRevalidate:
		res, err = h.executor.StaleWhileRevalidate(r.Context(), req, ns)
	case router.KindNavigation:
		res, err = h.executor.Navigation(r.Context(), req, ns)
	default:
		h.proxy(w, r, target)
		return
	}
	if err != nil {
		// No network and nothing cached: a structured offline response,
		// never a raw failure at the page.
		h.logger.Debug("fetch unresolved", "url", target, "strategy", string(d.Strategy), "error", err)
		h.writeResponse(w, h.executor.OfflineResponse(r.Header), string(strategy.SourceOffline))
		return
	}

	h.writeResponse(w, res.Response, string(res.Source))
}

// serveMutation proxies a write upstream. A transport failure (or known
// offline state) captures the mutation in the action queue and acknowledges
// it with 202 so the page can proceed optimistically.
func (h *FetchHandler) serveMutation(w http.ResponseWriter, r *http.Request, target string) {
	actionType, deferrable := matchMutation(r.Method, r.URL.Path)
	if !deferrable || h.queue == nil {
		h.proxy(w, r, target)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxQueuedBody+1))
	if err != nil {
		http.Error(w, "read request body", http.StatusBadRequest)
		return
	}
	if len(body) > maxQueuedBody {
		h.logger.Warn("deferrable mutation too large", "url", target, "type", actionType, "bytes", len(body))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		fmt.Fprintf(w, `{"error":"payload too large","max_bytes":%d}`, maxQueuedBody)
		return
	}

	if h.monitor == nil || h.monitor.Online() {
		resp, err := h.send(r, target, body)
		if err == nil {
			defer resp.Body.Close()
			copyResponse(w, resp)
			return
		}
		h.logger.Info("mutation send failed, deferring", "url", target, "type", actionType, "error", err)
	}

	h.enqueueMutation(w, r, actionType, body)
}

func (h *FetchHandler) enqueueMutation(w http.ResponseWriter, r *http.Request, actionType string, body []byte) {
	payload := body
	if len(payload) == 0 || !json.Valid(payload) {
		// Queue replay posts JSON; wrap opaque bodies.
		wrapped, _ := json.Marshal(map[string]string{"raw": string(body), "path": r.URL.Path})
		payload = wrapped
	}

	action, err := h.queue.Enqueue(r.Context(), actionType, payload)
	if err != nil {
		h.logger.Error("mutation capture failed", "type", actionType, "error", err)
		http.Error(w, `{"error":"offline","queued":false}`, http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	fmt.Fprintf(w, `{"queued":true,"id":%d,"type":%q}`, action.ID, actionType)
}

// proxy forwards a request upstream untouched. The body streams straight
// through, so uploads of any size arrive intact.
func (h *FetchHandler) proxy(w http.ResponseWriter, r *http.Request, target string) {
	req, err := http.NewRequestWithContext(r.Context(), r.Method, target, r.Body)
	if err != nil {
		http.Error(w, "build upstream request", http.StatusBadGateway)
		return
	}
	req.Header = r.Header.Clone()
	req.ContentLength = r.ContentLength

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Debug("proxy failed", "url", target, "error", err)
		h.writeResponse(w, h.executor.OfflineResponse(r.Header), string(strategy.SourceOffline))
		return
	}
	defer resp.Body.Close()
	copyResponse(w, resp)
}

func (h *FetchHandler) send(r *http.Request, target string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(r.Context(), r.Method, target, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header = r.Header.Clone()
	return h.client.Do(req)
}

func (h *FetchHandler) writeResponse(w http.ResponseWriter, resp *cachestore.CachedResponse, source string) {
	w.Header().Set("X-Vibely-Source", source)
	if err := resp.Write(w); err != nil {
		h.logger.Debug("response write failed", "error", err)
	}
}

func (h *FetchHandler) recordFetch(strategyKind router.Kind, namespace string) {
	if h.metrics != nil {
		h.metrics.FetchesIntercepted.WithLabelValues(string(strategyKind), namespace).Inc()
	}
}

func copyResponse(w http.ResponseWriter, resp *http.Response) {
	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}
