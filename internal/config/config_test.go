package config

import (
	"errors"
	"flag"
	"log/slog"
	"testing"
	"time"

	"github.com/poyrazK/zonewriter/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(envMap(map[string]string{"ZONES_DIR": "/var/lib/zones"}))
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/zones", cfg.ZonesDir)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, SourcePostgres, cfg.Source)
	assert.Equal(t, "default", cfg.KubeNamespace)
	assert.Equal(t, "tenant", cfg.ServiceRole)
	assert.Equal(t, "cdn:domains:changed", cfg.TriggerChannel)
	assert.Equal(t, "cdn:zones:updated", cfg.NotifyChannel)
	assert.Equal(t, ":9153", cfg.HTTPAddr)
	assert.Equal(t, 4, cfg.RenderWorkers)
	assert.Equal(t, "tenant.%s.svc.cluster.local.", cfg.ServiceNameTemplate())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := Load(envMap(map[string]string{
		"ZONES_DIR":      "/zones",
		"POLL_INTERVAL":  "250ms",
		"SOURCE":         "kube",
		"KUBE_NAMESPACE": "cdn",
		"SERVICE_ROLE":   "front",
		"REDIS_ADDR":     "redis:6379",
		"REDIS_DB":       "3",
		"HTTP_ADDR":      "",
		"RENDER_WORKERS": "8",
		"LOG_LEVEL":      "debug",
	}))
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, SourceKube, cfg.Source)
	assert.Equal(t, "cdn", cfg.KubeNamespace)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Empty(t, cfg.HTTPAddr, "explicit empty HTTP_ADDR disables the ops server")
	assert.Equal(t, 8, cfg.RenderWorkers)
	assert.Equal(t, "front.%s.svc.cluster.local.", cfg.ServiceNameTemplate())

	lvl, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Malformed(t *testing.T) {
	for _, key := range []string{"POLL_INTERVAL", "REDIS_DB", "RENDER_WORKERS"} {
		t.Run(key, func(t *testing.T) {
			_, err := Load(envMap(map[string]string{key: "not-a-number"}))
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrInvalidConfig))
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestRegisterFlags(t *testing.T) {
	cfg, err := Load(envMap(map[string]string{"ZONES_DIR": "/from-env"}))
	require.NoError(t, err)

	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	cfg.RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"-zones-dir", "/from-flag", "-interval", "5s", "-role", "front"}))

	assert.Equal(t, "/from-flag", cfg.ZonesDir)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, "front", cfg.ServiceRole)
	assert.Equal(t, SourcePostgres, cfg.Source, "unset flags keep the env value")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load(envMap(map[string]string{"ZONES_DIR": "/zones"}))
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"missing zones dir", func(c *Config) { c.ZonesDir = " " }},
		{"zero interval", func(c *Config) { c.PollInterval = 0 }},
		{"unknown source", func(c *Config) { c.Source = "etcd" }},
		{"postgres without url", func(c *Config) { c.DatabaseURL = "" }},
		{"kube without namespace", func(c *Config) { c.Source = SourceKube; c.KubeNamespace = "" }},
		{"unknown role", func(c *Config) { c.ServiceRole = "edge" }},
		{"template without verb", func(c *Config) { c.ServiceTemplate = "static.svc.cluster.local." }},
		{"template not fqdn", func(c *Config) { c.ServiceTemplate = "edge.%s.svc" }},
		{"no render workers", func(c *Config) { c.RenderWorkers = 0 }},
		{"empty redis channel", func(c *Config) { c.RedisAddr = "redis:6379"; c.NotifyChannel = "" }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !errors.Is(err, domain.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestValidate_CustomTemplateOverridesRole(t *testing.T) {
	cfg, err := Load(envMap(map[string]string{
		"ZONES_DIR":        "/zones",
		"SERVICE_ROLE":     "whatever",
		"SERVICE_TEMPLATE": "edge.%s.cdn.internal.",
	}))
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "edge.%s.cdn.internal.", cfg.ServiceNameTemplate())
}
