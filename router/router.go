// Package router classifies intercepted requests: each request maps to a
// resolution strategy and a target cache purpose. The allow-lists driving
// classification are versioned configuration, not code.
package router

import (
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/Siddamnandas/Vibely-sub004/cachestore"
	"github.com/Siddamnandas/Vibely-sub004/config"
	"github.com/Siddamnandas/Vibely-sub004/errors"
)

// Kind names a resolution strategy.
type Kind string

// The strategies a request can classify to. PassThrough means the worker
// does not intercept at all.
const (
	KindCacheFirst           Kind = "cache_first"
	KindNetworkFirst         Kind = "network_first"
	KindStaleWhileRevalidate Kind = "stale_while_revalidate"
	KindNavigation           Kind = "navigation"
	KindPassThrough          Kind = "pass_through"
)

// Decision is the routing outcome for one request.
type Decision struct {
	Strategy     Kind
	Purpose      cachestore.Purpose
	RefreshOnHit bool // image hits also refresh in the background
}

// Router inspects requests and picks a strategy plus target namespace. It
// reads the live allow-lists from SafeConfig so configuration updates take
// effect without a restart.
type Router struct {
	cfg *config.SafeConfig
}

// New creates a router over the given configuration.
func New(cfg *config.SafeConfig) (*Router, error) {
	if cfg == nil {
		return nil, errors.WrapInvalid(nil, "Router", "New", "config cannot be nil")
	}
	return &Router{cfg: cfg}, nil
}

// Classify maps a request to a routing decision. Rules are evaluated in
// order: image resource, network-first allow-list, cache-first allow-list,
// stale-while-revalidate allow-list, navigation, then network-first default.
// Cross-origin requests not hitting a cacheable rule pass through untouched.
func (r *Router) Classify(req *http.Request) Decision {
	cfg := r.cfg.Get()

	u, err := url.Parse(TargetURL(cfg.App.Origin, req))
	if err != nil {
		return Decision{Strategy: KindPassThrough}
	}

	d := r.classify(cfg, req, u)

	if crossOrigin(cfg.App.Origin, u) && !cacheable(d.Strategy) {
		return Decision{Strategy: KindPassThrough}
	}
	return d
}

func (r *Router) classify(cfg *config.Config, req *http.Request, u *url.URL) Decision {
	if isImage(cfg, req, u) {
		return Decision{Strategy: KindCacheFirst, Purpose: cachestore.PurposeImage, RefreshOnHit: true}
	}
	if matchPrefix(cfg.Routing.NetworkFirst, u.Path) {
		return Decision{Strategy: KindNetworkFirst, Purpose: cachestore.PurposeDynamic}
	}
	if matchPrefix(cfg.Routing.CacheFirst, u.Path) {
		return Decision{Strategy: KindCacheFirst, Purpose: cachestore.PurposeStatic}
	}
	if matchPrefix(cfg.Routing.StaleWhileRevalidate, u.Path) {
		return Decision{Strategy: KindStaleWhileRevalidate, Purpose: cachestore.PurposeDynamic}
	}
	if isNavigation(req) {
		return Decision{Strategy: KindNavigation, Purpose: cachestore.PurposeDynamic}
	}
	return Decision{Strategy: KindNetworkFirst, Purpose: cachestore.PurposeDynamic}
}

// IsSWREligible reports whether a URL belongs to the stale-while-revalidate
// allow-list. The connectivity monitor's reconnect refresh pass uses this to
// pick which cached entries to re-fetch.
func (r *Router) IsSWREligible(rawURL string) bool {
	cfg := r.cfg.Get()
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return matchPrefix(cfg.Routing.StaleWhileRevalidate, u.Path)
}

// TargetURL resolves the absolute upstream URL of an intercepted request.
// Relative requests are page-origin traffic routed through the worker, so
// they resolve against the app origin; only absolute-form requests can be
// cross-origin.
func TargetURL(appOrigin string, req *http.Request) string {
	if req.URL.IsAbs() {
		return req.URL.String()
	}
	return appOrigin + req.URL.RequestURI()
}

func matchPrefix(prefixes []string, p string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

func crossOrigin(appOrigin string, u *url.URL) bool {
	if appOrigin == "" {
		return false
	}
	origin := u.Scheme + "://" + u.Host
	return !strings.EqualFold(origin, appOrigin)
}

func cacheable(k Kind) bool {
	switch k {
	case KindCacheFirst, KindStaleWhileRevalidate:
		return true
	}
	return false
}

func isImage(cfg *config.Config, req *http.Request, u *url.URL) bool {
	if req.Header.Get("Sec-Fetch-Dest") == "image" {
		return true
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if ext == "" {
		return false
	}
	for _, e := range cfg.Routing.ImageExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// isNavigation detects a top-level document request: an explicit navigate
// fetch mode, or a GET that prefers HTML.
func isNavigation(req *http.Request) bool {
	if req.Method != http.MethodGet {
		return false
	}
	if req.Header.Get("Sec-Fetch-Mode") == "navigate" {
		return true
	}
	return strings.Contains(req.Header.Get("Accept"), "text/html")
}
