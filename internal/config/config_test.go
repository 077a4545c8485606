package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/callflow/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, "airline", cfg.Catalog)
	assert.Equal(t, "Polly.Aditi", cfg.Voice)
	assert.Equal(t, "+911234567890", cfg.AgentNumber)
	assert.NoError(t, cfg.Validate())
	assert.False(t, cfg.DialingEnabled())
}

func TestLoad_MissingFileIsDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().Listen, cfg.Listen)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "callflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: ":9090"
catalog: railway
idle_timeout: 2m
redis:
  addr: localhost:6379
  ttl: 1h
lookup:
  url: http://records.local
  timeout: 750ms
privacy:
  pii_patterns: ["\\d{4}"]
`), 0o644))

	t.Setenv(config.EnvListen, ":7070")
	t.Setenv(config.EnvRedisDB, "3")
	t.Setenv(config.EnvMaskPII, "true")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Listen, "env overrides file")
	assert.Equal(t, "railway", cfg.Catalog)
	assert.Equal(t, 2*time.Minute, cfg.IdleTimeout)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "callflow:", cfg.Redis.Prefix, "unset keys keep defaults")
	assert.Equal(t, time.Hour, cfg.Redis.TTL)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, 750*time.Millisecond, cfg.Lookup.Timeout)
	assert.True(t, cfg.Privacy.MaskPII)
	assert.Equal(t, []string{`\d{4}`}, cfg.Privacy.PIIPatterns)
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv(config.EnvIdleTimeout, "soon")
	_, err := config.Load("")
	assert.ErrorContains(t, err, config.EnvIdleTimeout)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unclosed"), 0o644))
	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"negative idle", func(c *config.Config) { c.IdleTimeout = -time.Second }, "idle_timeout"},
		{"negative reap", func(c *config.Config) { c.ReapInterval = -time.Second }, "reap_interval"},
		{"idle without reap", func(c *config.Config) { c.ReapInterval = 0 }, "reap_interval is required"},
		{"partial twilio", func(c *config.Config) { c.Twilio.AccountSID = "AC123" }, "twilio"},
		{"no catalog", func(c *config.Config) { c.Catalog = "" }, "catalog"},
		{"bad pii pattern", func(c *config.Config) { c.Privacy.PIIPatterns = []string{"("} }, "pii_patterns"},
		{"fallback without key", func(c *config.Config) { c.Privacy.FallbackKeys = []string{"k"} }, "fallback_keys"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}

	t.Run("idle disabled", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.IdleTimeout = 0
		cfg.ReapInterval = 0
		assert.NoError(t, cfg.Validate())
	})
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := config.DefaultConfig()
	cfg.Twilio = config.TwilioConfig{AccountSID: "AC1", AuthToken: "tok", From: "+1555"}
	require.NoError(t, cfg.Save(path))

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
	assert.True(t, loaded.DialingEnabled())
}
