package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "vibely", cfg.App.Name)
	assert.NotEmpty(t, cfg.Version)
	assert.NotEmpty(t, cfg.Routing.NetworkFirst)
	assert.NotEmpty(t, cfg.Routing.CacheFirst)
	assert.NotEmpty(t, cfg.Routing.StaleWhileRevalidate)
	assert.NotEmpty(t, cfg.Cache.Precache)
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing app name", func(c *Config) { c.App.Name = "" }},
		{"invalid app name", func(c *Config) { c.App.Name = "bad name!" }},
		{"missing version", func(c *Config) { c.Version = "" }},
		{"invalid version", func(c *Config) { c.Version = "v 3" }},
		{"missing nats url", func(c *Config) { c.NATS.URL = "" }},
		{"missing sync endpoint", func(c *Config) { c.Queue.SyncEndpoint = "" }},
		{"relative allow-list entry", func(c *Config) { c.Routing.NetworkFirst = []string{"api/payment"} }},
		{"extension without dot", func(c *Config) { c.Routing.ImageExtensions = []string{"png"} }},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := Default()
			test.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_NormalizesAppName(t *testing.T) {
	cfg := Default()
	cfg.App.Name = "Vibely"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "vibely", cfg.App.Name)
}

func TestLoad_FileWithEnvExpansion(t *testing.T) {
	t.Setenv("TEST_NATS_URL", "nats://test-host:4222")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
		"version": "v7",
		"app": {"name": "vibely", "origin": "https://vibely.app"},
		"nats": {"url": "${TEST_NATS_URL}"},
		"queue": {"sync_endpoint": "https://vibely.app/api/sync"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "v7", cfg.Version)
	assert.Equal(t, "nats://test-host:4222", cfg.NATS.URL)
	// Fields omitted from the file keep defaults
	assert.NotEmpty(t, cfg.Routing.NetworkFirst)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestSafeConfig(t *testing.T) {
	sc := NewSafeConfig(Default())

	got := sc.Get()
	require.NotNil(t, got)

	// Mutating the copy does not affect the stored config
	got.Version = "v99"
	assert.NotEqual(t, "v99", sc.Get().Version)

	// Update validates
	bad := Default()
	bad.App.Name = ""
	assert.Error(t, sc.Update(bad))
	assert.Error(t, sc.Update(nil))

	good := Default()
	good.Version = "v2"
	good.NATS.ReconnectWait = 5 * time.Second
	require.NoError(t, sc.Update(good))
	assert.Equal(t, "v2", sc.Get().Version)
}
