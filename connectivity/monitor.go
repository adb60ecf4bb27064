// Package connectivity tracks the worker's online/offline state and drives
// the reconnect sequence: one queue flush, then one cache refresh pass, in
// that order, per offline-to-online transition. Going offline is purely
// observational and mutates nothing.
package connectivity

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Siddamnandas/Vibely-sub004/errors"
	"github.com/Siddamnandas/Vibely-sub004/metric"
	"github.com/Siddamnandas/Vibely-sub004/natsclient"
)

// State is a snapshot of the monitor.
type State struct {
	Online           bool
	LastTransitionAt time.Time
}

// Hooks are the effects a transition fires. All fields are optional.
type Hooks struct {
	// Flush replays the offline action queue. Runs first on reconnect.
	Flush func(ctx context.Context)
	// Refresh re-fetches stale-while-revalidate entries. Runs after Flush.
	Refresh func(ctx context.Context)
	// Offline is notified on online-to-offline (UI banner). No cache or
	// queue mutation happens on this path.
	Offline func()
}

// Monitor is the two-state connectivity machine.
type Monitor struct {
	hooks   Hooks
	metrics *metric.Metrics
	logger  *slog.Logger

	mu             sync.Mutex
	online         bool
	lastTransition time.Time
}

// NewMonitor creates a monitor that starts offline; the first SetOnline (or
// NATS reconnect) runs the reconnect sequence. metrics may be nil.
func NewMonitor(hooks Hooks, metrics *metric.Metrics, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Monitor{
		hooks:   hooks,
		metrics: metrics,
		logger:  logger,
	}
	m.gaugeState(false)
	return m
}

// State returns the current connectivity snapshot.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State{Online: m.online, LastTransitionAt: m.lastTransition}
}

// Online reports whether the monitor currently considers the worker online.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// SetOnline records an offline-to-online transition and fires exactly one
// flush cycle followed by one refresh pass. Calling it while already online
// is a no-op, so a callback storm cannot double-fire the sequence.
func (m *Monitor) SetOnline(ctx context.Context) {
	m.mu.Lock()
	if m.online {
		m.mu.Unlock()
		return
	}
	m.online = true
	m.lastTransition = time.Now()
	m.mu.Unlock()

	m.logger.Info("connectivity online")
	m.gaugeState(true)
	m.recordTransition("online")

	if m.hooks.Flush != nil {
		m.hooks.Flush(ctx)
	}
	if m.hooks.Refresh != nil {
		m.hooks.Refresh(ctx)
	}
}

// SetOffline records an online-to-offline transition. Observational only.
func (m *Monitor) SetOffline() {
	m.mu.Lock()
	if !m.online {
		m.mu.Unlock()
		return
	}
	m.online = false
	m.lastTransition = time.Now()
	m.mu.Unlock()

	m.logger.Info("connectivity offline")
	m.gaugeState(false)
	m.recordTransition("offline")

	if m.hooks.Offline != nil {
		m.hooks.Offline()
	}
}

// Bind wires the monitor to a NATS client's health callbacks. The given
// context is used for reconnect-driven flush and refresh work; it should
// outlive the client connection.
func (m *Monitor) Bind(ctx context.Context, client *natsclient.Client) error {
	if client == nil {
		return errors.WrapInvalid(nil, "Monitor", "Bind", "nats client cannot be nil")
	}

	client.OnHealthChange(func(healthy bool) {
		m.gaugeBroker(healthy)
		if healthy {
			m.SetOnline(ctx)
		} else {
			m.SetOffline()
		}
	})
	m.gaugeBroker(client.IsHealthy())
	return nil
}

// Probe performs one HTTP reachability check against the given URL and
// feeds the outcome into the state machine. A 2xx-5xx answer counts as
// online (the network path works even if the endpoint is unhappy); only a
// transport failure counts as offline. Returns the resulting online state.
func (m *Monitor) Probe(ctx context.Context, probeURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, probeURL, nil)
	if err != nil {
		m.logger.Warn("connectivity probe rejected", "url", probeURL, "error", err)
		return m.Online()
	}

	resp, err := probeClient.Do(req)
	if err != nil {
		m.SetOffline()
		return false
	}
	_ = resp.Body.Close()

	m.SetOnline(ctx)
	return true
}

// probeClient carries a short timeout so a black-holed probe resolves as
// offline instead of hanging.
var probeClient = &http.Client{Timeout: 5 * time.Second}

func (m *Monitor) gaugeState(online bool) {
	if m.metrics == nil {
		return
	}
	v := 0.0
	if online {
		v = 1.0
	}
	m.metrics.ConnectivityState.Set(v)
}

func (m *Monitor) gaugeBroker(connected bool) {
	if m.metrics == nil {
		return
	}
	v := 0.0
	if connected {
		v = 1.0
	}
	m.metrics.NATSConnected.Set(v)
}

func (m *Monitor) recordTransition(direction string) {
	if m.metrics != nil {
		m.metrics.ConnectivityTransitions.WithLabelValues(direction).Inc()
	}
}
