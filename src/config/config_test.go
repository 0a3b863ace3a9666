package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tastyware/tastytrade/src/models"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

const minimalYAML = `
name: relay
session:
  login: trader@example.com
  password: hunter2
`

// -----------------------------------------------------------------------------

func TestNewConfigAppliesDefaults(t *testing.T) {
	cfg, err := NewConfig(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "relay", cfg.Name)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "prod", cfg.Streamer.Environment)
	assert.Equal(t, 30, cfg.Streamer.KeepaliveInterval)
	assert.Equal(t, 60, cfg.Streamer.KeepaliveTimeout)
	assert.Equal(t, 1.0, cfg.Backoff.BaseDelay)
	assert.Equal(t, 60.0, cfg.Backoff.MaxDelay)
	assert.Equal(t, 512, cfg.Dispatcher.QueueSize)
	assert.Equal(t, "NYSE", cfg.Feed.Exchange)
}

// -----------------------------------------------------------------------------

func TestNewConfigFullDocument(t *testing.T) {
	cfg, err := NewConfig(writeConfig(t, `
name: relay
logging:
  level: debug
session:
  login: trader@example.com
  remember_token: tok-123
streamer:
  environment: cert
  keepalive_interval: 10
  keepalive_timeout: 25
backoff:
  base_delay: 0.5
  max_delay: 30
  jitter_fraction: 0.1
feed:
  sources:
    - name: dxlink
      kinds: [Quote, Trade]
      symbols: [SPY, QQQ]
      candles:
        - symbol: SPY
          interval: 5m
storage:
  enabled: true
  db_type: sqlite
  db_path: events.db
publish:
  enabled: true
  nats_url: nats://127.0.0.1:4222
  subject_prefix: md
server:
  enabled: true
  host: 127.0.0.1
  port: 8089
windows_aggregation: [1m, 5m]
`))
	require.NoError(t, err)

	assert.Equal(t, "cert", cfg.Streamer.Environment)
	assert.Equal(t, 10, cfg.Streamer.KeepaliveInterval)
	require.Len(t, cfg.Feed.Sources, 1)
	assert.Equal(t, []string{"SPY", "QQQ"}, cfg.Feed.Sources[0].Symbols)
	assert.Equal(t, "5m", cfg.Feed.Sources[0].Candles[0].Interval)
	assert.True(t, cfg.Publish.Enabled)
	assert.Equal(t, 8089, cfg.Server.Port)
}

// -----------------------------------------------------------------------------

func TestValidateRejections(t *testing.T) {
	base := func() *Config {
		c := &Config{MConfig: &models.MConfig{
			Name: "relay",
			Session: models.MSessionConfig{
				Login:    "trader@example.com",
				Password: "hunter2",
			},
		}}
		c.ApplyDefaults()
		return c
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty name", func(c *Config) { c.Name = "" }, "application name"},
		{"no login", func(c *Config) { c.Session.Login = "" }, "session login"},
		{"no credentials", func(c *Config) { c.Session.Password = "" }, "password or a remember token"},
		{"bad environment", func(c *Config) { c.Streamer.Environment = "staging" }, "streamer environment"},
		{"timeout below interval", func(c *Config) { c.Streamer.KeepaliveTimeout = 5 }, "keepalive timeout"},
		{"max below base", func(c *Config) { c.Backoff.MaxDelay = 0.1 }, "max delay"},
		{"negative retries", func(c *Config) { c.Backoff.MaxRetries = -1 }, "max retries"},
		{"jitter out of range", func(c *Config) { c.Backoff.JitterFraction = 1.5 }, "jitter fraction"},
		{"zero queue", func(c *Config) { c.Dispatcher.QueueSize = 0 }, "queue size"},
		{"unknown kind", func(c *Config) {
			c.Feed.Sources = []models.MFeedSourceConfig{{Name: "dxlink", Kinds: []string{"Quotez"}}}
		}, "unknown event kind"},
		{"sqlite without path", func(c *Config) {
			c.Storage = models.MStorageConfig{Enabled: true, DBType: "sqlite"}
		}, "database path"},
		{"publish without url", func(c *Config) {
			c.Publish = models.MPublishConfig{Enabled: true}
		}, "nats url"},
		{"privileged port", func(c *Config) {
			c.Server = models.MServerConfig{Enabled: true, Host: "127.0.0.1", Port: 80}
		}, "port number"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := base()
			tc.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

// -----------------------------------------------------------------------------

func TestSaveRoundTrip(t *testing.T) {
	cfg, err := NewConfig(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, cfg.Save(path))

	reloaded, err := NewConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.MConfig, reloaded.MConfig)
}
