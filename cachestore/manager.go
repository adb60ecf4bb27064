package cachestore

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Siddamnandas/Vibely-sub004/errors"
	"github.com/Siddamnandas/Vibely-sub004/metric"
)

// Fetch retrieves a URL from the upstream network. Precaching uses it to
// populate the static namespace at install time.
type Fetch func(ctx context.Context, method, url string) (*CachedResponse, error)

// Manager owns the current namespace set and its lifecycle: install-time
// creation and precache, activate-time sweep of stale versions.
type Manager struct {
	app      string
	version  string
	precache []string
	provider Provider
	metrics  *metric.Metrics
	logger   *slog.Logger

	namespaces map[Purpose]*Namespace
}

// NewManager creates a manager for the given app identity and version.
// Namespaces do not exist until Install runs.
func NewManager(app, version string, precache []string, provider Provider, metrics *metric.Metrics, logger *slog.Logger) (*Manager, error) {
	if app == "" {
		return nil, errors.WrapInvalid(nil, "Manager", "NewManager", "app name cannot be empty")
	}
	if version == "" {
		return nil, errors.WrapInvalid(nil, "Manager", "NewManager", "version cannot be empty")
	}
	if provider == nil {
		return nil, errors.WrapInvalid(nil, "Manager", "NewManager", "provider cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		app:        app,
		version:    version,
		precache:   precache,
		provider:   provider,
		metrics:    metrics,
		logger:     logger,
		namespaces: make(map[Purpose]*Namespace),
	}, nil
}

// CurrentNames returns the three current namespace names for this version.
func (m *Manager) CurrentNames() []string {
	names := make([]string, 0, 3)
	for _, p := range Purposes() {
		names = append(names, NamespaceName(m.app, p, m.version))
	}
	return names
}

// Namespace returns the current namespace for a purpose. Returns
// errors.ErrNamespaceNotFound before Install, or when install failed for
// this purpose.
func (m *Manager) Namespace(purpose Purpose) (*Namespace, error) {
	ns, ok := m.namespaces[purpose]
	if !ok || ns == nil {
		return nil, errors.ErrNamespaceNotFound
	}
	return ns, nil
}

// Install opens the current-version buckets and pre-populates the static
// namespace from the precache manifest. Population is best-effort: an asset
// that fails to fetch or store is logged and skipped, never aborting the
// install. Install fails only when no namespace could be opened at all.
func (m *Manager) Install(ctx context.Context, fetch Fetch) error {
	opened := 0
	for _, purpose := range Purposes() {
		name := NamespaceName(m.app, purpose, m.version)

		bucket, err := m.provider.OpenBucket(ctx, name)
		if err != nil {
			m.logger.Error("open cache namespace failed",
				"namespace", name, "error", err)
			continue
		}

		ns, err := NewNamespace(purpose, name, bucket, m.metrics)
		if err != nil {
			m.logger.Error("create cache namespace failed",
				"namespace", name, "error", err)
			continue
		}

		m.namespaces[purpose] = ns
		opened++
	}

	if opened == 0 {
		return errors.WrapTransient(errors.ErrDurableStore,
			"Manager", "Install", "no cache namespace could be opened")
	}

	if fetch != nil {
		m.precacheStatic(ctx, fetch)
	}
	return nil
}

// precacheStatic fetches the always-needed assets into the static namespace.
func (m *Manager) precacheStatic(ctx context.Context, fetch Fetch) {
	static, err := m.Namespace(PurposeStatic)
	if err != nil {
		m.logger.Warn("precache skipped: static namespace unavailable")
		return
	}

	cached, failed := 0, 0
	for _, url := range m.precache {
		resp, err := fetch(ctx, http.MethodGet, url)
		if err != nil {
			m.logger.Warn("precache fetch failed", "url", url, "error", err)
			failed++
			continue
		}
		if resp.Status < 200 || resp.Status >= 300 {
			m.logger.Warn("precache asset unavailable", "url", url, "status", resp.Status)
			failed++
			continue
		}
		if err := static.Put(ctx, RequestKey(http.MethodGet, url), resp); err != nil {
			m.logger.Warn("precache store failed", "url", url, "error", err)
			failed++
			continue
		}
		cached++
	}

	m.logger.Info("precache complete", "cached", cached, "failed", failed,
		"namespace", static.Name())
}

// Activate sweeps stale namespaces: every bucket carrying the app prefix
// whose name is not in the current set is deleted. Individual delete
// failures are logged and skipped. Returns the number of buckets swept.
func (m *Manager) Activate(ctx context.Context) (int, error) {
	buckets, err := m.provider.ListBuckets(ctx)
	if err != nil {
		return 0, errors.WrapTransient(err, "Manager", "Activate", "list buckets")
	}

	current := make(map[string]bool, 3)
	for _, name := range m.CurrentNames() {
		current[name] = true
	}

	prefix := m.app + "-"
	swept := 0
	for _, name := range buckets {
		if !strings.HasPrefix(name, prefix) || current[name] {
			continue
		}
		if err := m.provider.DeleteBucket(ctx, name); err != nil {
			m.logger.Warn("sweep delete failed", "namespace", name, "error", err)
			continue
		}
		m.logger.Info("swept stale cache namespace", "namespace", name)
		swept++
	}

	if m.metrics != nil && swept > 0 {
		m.metrics.NamespacesSwept.Add(float64(swept))
	}
	return swept, nil
}
