package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DB_USER", "app")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "affiliates")
	t.Setenv("JWT_SECRET", "jwt-secret")
	t.Setenv("CREDENTIALS_ENCRYPTION_KEY", "000102030405060708090a0b0c0d0e0f000102030405060708090a0b0c0d0e0f")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, 5*time.Minute, cfg.Redis.ConnectionTTL)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenExpiry)
	assert.True(t, cfg.App.IsDevelopment())
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("CONNECTION_CACHE_TTL", "30s")
	t.Setenv("JWT_EXPIRY", "1h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.App.Env)
	assert.Equal(t, 9090, cfg.App.Port)
	assert.Equal(t, 30*time.Second, cfg.Redis.ConnectionTTL)
	assert.Equal(t, time.Hour, cfg.Auth.TokenExpiry)
	assert.False(t, cfg.App.IsDevelopment())
}

func TestLoadMissingRequired(t *testing.T) {
	setRequired(t)
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestDatabaseDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host: "db", Port: 5433, User: "app", Password: "pw", Name: "affiliates", SSLMode: "require",
	}
	assert.Equal(t,
		"host=db port=5433 user=app password=pw dbname=affiliates sslmode=require",
		cfg.DSN())
	assert.Equal(t,
		"postgresql://app:pw@db:5433/affiliates?sslmode=require",
		cfg.URL())
}
