// Package config defines the sync worker configuration: app identity, the
// cache namespace version, routing allow-lists, the precache manifest, NATS
// connection settings, and push/sync endpoints.
//
// Allow-lists are data, not code: they ship alongside the namespace version
// and bumping Version is the supported invalidation primitive.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
	"unicode"
)

// Config represents the complete sync worker configuration
type Config struct {
	Version string        `json:"version"` // Cache namespace + allow-list version (e.g. "v3")
	App     AppConfig     `json:"app"`
	NATS    NATSConfig    `json:"nats"`
	Routing RoutingConfig `json:"routing"`
	Cache   CacheConfig   `json:"cache"`
	Queue   QueueConfig   `json:"queue"`
	Push    PushConfig    `json:"push"`
	Serve   ServeConfig   `json:"serve"`
}

// AppConfig defines app identity
type AppConfig struct {
	Name   string `json:"name"`   // Namespace prefix (e.g. "vibely")
	Origin string `json:"origin"` // App origin; foreign-origin requests pass through
}

// NATSConfig defines NATS connection settings
type NATSConfig struct {
	URL           string        `json:"url"`
	MaxReconnects int           `json:"max_reconnects,omitempty"`
	ReconnectWait time.Duration `json:"reconnect_wait,omitempty"`
	Username      string        `json:"username,omitempty"`
	Password      string        `json:"password,omitempty"`
	Token         string        `json:"token,omitempty"`
}

// RoutingConfig carries the Router's allow-lists. Path prefixes are matched
// in classification order; see router.Classify.
type RoutingConfig struct {
	NetworkFirst         []string `json:"network_first"`           // payment, auth, analytics endpoints
	CacheFirst           []string `json:"cache_first"`             // static build assets, vendor fonts
	StaleWhileRevalidate []string `json:"stale_while_revalidate"`  // cacheable read-only API routes
	ImageExtensions      []string `json:"image_extensions,omitempty"`
}

// CacheConfig defines cache store behavior
type CacheConfig struct {
	Precache []string `json:"precache"` // Always-needed assets populated at install
}

// QueueConfig defines the offline action queue
type QueueConfig struct {
	Stream       string            `json:"stream,omitempty"`        // JetStream stream name
	SyncEndpoint string            `json:"sync_endpoint"`           // Default replay target
	Endpoints    map[string]string `json:"endpoints,omitempty"`     // Per-action-type overrides
	ReplayTimeout time.Duration    `json:"replay_timeout,omitempty"`
}

// PushConfig defines the push bridge
type PushConfig struct {
	Subject     string `json:"subject,omitempty"`      // NATS subject carrying server pushes
	DefaultIcon string `json:"default_icon,omitempty"` // Used when a payload omits its icon
	Disabled    bool   `json:"disabled,omitempty"`     // Set after permission denial
}

// ServeConfig defines the worker's listen addresses
type ServeConfig struct {
	Addr        string `json:"addr"`                   // Fetch interception + session endpoint
	MetricsAddr string `json:"metrics_addr,omitempty"` // Prometheus /metrics
}

// SafeConfig provides thread-safe access to configuration
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig creates a new thread-safe config wrapper
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = &Config{}
	}
	return &SafeConfig{
		config: cfg,
	}
}

// Get returns a deep copy of the current configuration
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.Clone()
}

// Update atomically updates the configuration after validation
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.config = cfg
	return nil
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}

	// Use JSON marshaling/unmarshaling for deep copy
	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}

	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}

	return &clone
}

// Default returns a configuration with the current production allow-lists.
func Default() *Config {
	return &Config{
		Version: "v1",
		App: AppConfig{
			Name:   "vibely",
			Origin: "https://vibely.app",
		},
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		},
		Routing: RoutingConfig{
			NetworkFirst: []string{
				"/api/payment",
				"/api/auth",
				"/api/analytics",
			},
			CacheFirst: []string{
				"/_next/static/",
				"/static/",
				"/fonts/",
			},
			StaleWhileRevalidate: []string{
				"/api/playlists",
				"/api/covers",
				"/api/user/profile",
			},
			ImageExtensions: []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg", ".ico", ".avif"},
		},
		Cache: CacheConfig{
			Precache: []string{
				"/",
				"/offline",
				"/manifest.json",
				"/static/css/app.css",
				"/static/js/app.js",
				"/static/icons/icon-192.png",
				"/static/icons/icon-512.png",
			},
		},
		Queue: QueueConfig{
			Stream:        "VIBELY_ACTIONS",
			SyncEndpoint:  "https://vibely.app/api/sync",
			ReplayTimeout: 30 * time.Second,
		},
		Push: PushConfig{
			Subject:     "push.vibely",
			DefaultIcon: "/static/icons/icon-192.png",
		},
		Serve: ServeConfig{
			Addr:        ":8080",
			MetricsAddr: ":9090",
		},
	}
}

// Load reads a configuration file, expands ${ENV_VAR} references, and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := expandEnv(string(data))

	cfg := Default()
	if err := json.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// expandEnv replaces ${VAR} references with environment values. Unset
// variables expand to the empty string.
func expandEnv(s string) string {
	return os.Expand(s, func(key string) string {
		return os.Getenv(key)
	})
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return errors.New("app.name is required")
	}

	// Normalize app name to lowercase; it prefixes bucket and stream names
	c.App.Name = strings.ToLower(c.App.Name)

	if !isValidNamePart(c.App.Name) {
		return fmt.Errorf(
			"app.name '%s' is not valid for namespace names (must be alphanumeric with dashes or underscores)",
			c.App.Name,
		)
	}

	if c.Version == "" {
		return errors.New("version is required")
	}
	if !isValidNamePart(c.Version) {
		return fmt.Errorf("version '%s' is not valid for namespace names", c.Version)
	}

	if c.App.Origin != "" {
		if _, err := url.Parse(c.App.Origin); err != nil {
			return fmt.Errorf("app.origin: %w", err)
		}
	}

	if c.NATS.URL == "" {
		return errors.New("nats.url is required")
	}

	if c.Queue.SyncEndpoint == "" {
		return errors.New("queue.sync_endpoint is required")
	}
	if _, err := url.Parse(c.Queue.SyncEndpoint); err != nil {
		return fmt.Errorf("queue.sync_endpoint: %w", err)
	}

	for prefix, list := range map[string][]string{
		"routing.network_first":          c.Routing.NetworkFirst,
		"routing.cache_first":            c.Routing.CacheFirst,
		"routing.stale_while_revalidate": c.Routing.StaleWhileRevalidate,
	} {
		for i, p := range list {
			if !strings.HasPrefix(p, "/") {
				return fmt.Errorf("%s[%d]: path prefix %q must start with /", prefix, i, p)
			}
		}
	}

	for i, ext := range c.Routing.ImageExtensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("routing.image_extensions[%d]: extension %q must start with a dot", i, ext)
		}
	}

	return nil
}

// isValidNamePart checks if a string is valid for use in bucket and stream
// names. Valid characters are alphanumeric, dashes, and underscores.
func isValidNamePart(s string) bool {
	if len(s) == 0 {
		return false
	}

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) &&
			r != '-' && r != '_' {
			return false
		}
	}
	return true
}
