package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	config, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "production", config.Env)
	assert.Equal(t, ":443", config.Server.HTTPSAddr)
	assert.Equal(t, ":80", config.Server.RedirectAddr)
	assert.Equal(t, ":3000", config.Server.DevAddr)
	assert.Equal(t, 60, config.RateLimit.Limit)
	assert.Equal(t, time.Minute, config.RateLimit.Window)
	assert.Equal(t, 24*time.Hour, config.Game.RoundDuration)
	assert.Equal(t, "/etc/letsencrypt/live/band4band.wtf", config.CertDirectory())
	assert.Equal(t, []string{"https://band4band.wtf"}, config.Origins())
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
env: development
server:
  domain: example.com
  cert_dir: /certs
  static_dir: /srv/app
rate_limit:
  limit: 120
  window: 30s
  whitelist: ["127.0.0.1"]
nats:
  url: nats://nats:4222
game:
  round_duration: 1h
  buy_extension: 15s
  buy_price: "2.50"
  restart_delay: 0s
`), 0o600))

	config, err := loadConfig(path)
	require.NoError(t, err)

	assert.True(t, config.IsDevelopment())
	assert.Equal(t, "example.com", config.Server.Domain)
	assert.Equal(t, "/certs", config.CertDirectory())
	assert.Equal(t, "/srv/app", config.Server.StaticDir)
	assert.Equal(t, 120, config.RateLimit.Limit)
	assert.Equal(t, 30*time.Second, config.RateLimit.Window)
	assert.Equal(t, []string{"127.0.0.1"}, config.RateLimit.Whitelist)
	assert.Equal(t, "nats://nats:4222", config.NATS.URL)
	assert.Equal(t, "game.events", config.NATS.SubjectPrefix)

	assert.Equal(t, time.Hour, config.Game.RoundDuration)
	assert.Equal(t, 15*time.Second, config.Game.BuyExtension)
	assert.Equal(t, "2.50", config.Game.BuyPrice.String())
	assert.Zero(t, config.Game.RestartDelay)
	// untouched fields keep their defaults
	assert.Equal(t, 24*time.Hour, config.Game.MaxCountdown)
	assert.Equal(t, 280, config.Game.ChatMaxLength)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: ["), 0o600))

	_, err := loadConfig(path)
	assert.Error(t, err)
}

func TestConfig_ApplyEnv(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("PORT", "8080")
	t.Setenv("DOMAIN", "example.org")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("RATE_LIMIT", "10")
	t.Setenv("RATE_WINDOW", "5s")
	t.Setenv("RATE_WHITELIST", "10.0.0.1,10.0.0.2")
	t.Setenv("TRUST_PROXY", "true")
	t.Setenv("NATS_URL", "nats://localhost:4222")

	config := defaultConfig()
	config.applyEnv()

	assert.True(t, config.IsDevelopment())
	assert.Equal(t, ":8080", config.Server.DevAddr)
	assert.Equal(t, "example.org", config.Server.Domain)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, config.Origins())
	assert.Equal(t, 10, config.RateLimit.Limit)
	assert.Equal(t, 5*time.Second, config.RateLimit.Window)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, config.RateLimit.Whitelist)
	assert.True(t, config.Server.TrustProxy)
	assert.Equal(t, "nats://localhost:4222", config.NATS.URL)
}

func TestConfig_ApplyEnvIgnoresGarbage(t *testing.T) {
	t.Setenv("RATE_LIMIT", "lots")
	t.Setenv("RATE_WINDOW", "soon")
	t.Setenv("TRUST_PROXY", "maybe")

	config := defaultConfig()
	config.applyEnv()

	assert.Equal(t, 60, config.RateLimit.Limit)
	assert.Equal(t, time.Minute, config.RateLimit.Window)
	assert.False(t, config.Server.TrustProxy)
}
