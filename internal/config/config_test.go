package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = strings.Repeat("s", 32)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "8081", cfg.ChatPort)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 20, cfg.AuthRateLimit)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Origins())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("TOKEN_TTL", "2h")
	t.Setenv("AUTH_RATE_LIMIT", "5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://letscrap.in, https://admin.letscrap.in,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.HTTPPort)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 5, cfg.AuthRateLimit)
	assert.Equal(t, []string{"https://letscrap.in", "https://admin.letscrap.in"}, cfg.Origins())
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chat_port: \"7070\"\nlog_level: debug\njwt_secret: "+testSecret+"\n"), 0o600))
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.ChatPort)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, testSecret, cfg.JWTSecret)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		c := defaultConfig()
		c.JWTSecret = testSecret
		return c
	}

	require.NoError(t, base().Validate())

	c := base()
	c.JWTSecret = ""
	assert.ErrorContains(t, c.Validate(), "not set")

	c = base()
	c.JWTSecret = "short"
	assert.ErrorContains(t, c.Validate(), "at least 32")

	c = base()
	c.ChatPort = c.HTTPPort
	assert.Error(t, c.Validate())
}
