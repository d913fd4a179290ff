package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "chatrelay", cfg.AppName)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTPAddr())
	assert.Equal(t, 60*24, cfg.AccessTokenMinutes)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:30000"}, cfg.CORSOrigins)
	assert.False(t, cfg.Debug)
	assert.False(t, cfg.IsPostgres())
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("APP_ENV", "production")
	t.Setenv("HTTP_HOST", "127.0.0.1")
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "30")
	t.Setenv("DEBUG", "true")
	t.Setenv("CORS_ORIGINS", "https://app.example.com , https://admin.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, "127.0.0.1:9000", cfg.HTTPAddr())
	assert.Equal(t, 30, cfg.AccessTokenMinutes)
	assert.True(t, cfg.Debug)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.CORSOrigins)
}

func TestLoadBadNumbersFallBack(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("HTTP_PORT", "not-a-number")
	t.Setenv("DEBUG", "not-a-bool")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.False(t, cfg.Debug)
}

func TestIsPostgres(t *testing.T) {
	cases := map[string]bool{
		"postgres://user:pw@localhost:5432/chat":   true,
		"postgresql://user:pw@localhost:5432/chat": true,
		"file:chatrelay.db":                        false,
		":memory:":                                 false,
	}
	for dsn, want := range cases {
		cfg := &Config{DatabaseURL: dsn}
		assert.Equal(t, want, cfg.IsPostgres(), dsn)
	}
}
