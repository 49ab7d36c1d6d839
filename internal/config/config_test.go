package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("TOKEN_PEPPER", "")

	cfg := Load()

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "shuttle", cfg.Database.DBName)
	assert.True(t, cfg.Database.RunMigrations)
	assert.Equal(t, 30*time.Second, cfg.Redis.TripTTL)
	assert.Equal(t, 20, cfg.Redis.PoolSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Redis.OpTimeout)
	assert.False(t, cfg.Geofence.Enabled)
	assert.Equal(t, 150.0, cfg.Geofence.DefaultRadiusMeters)
	assert.Equal(t, 10, cfg.RateLimit.Requests)
	assert.Equal(t, time.Minute, cfg.RateLimit.Interval)
	assert.Equal(t, "America/Sao_Paulo", cfg.TimeZone)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("TOKEN_PEPPER", "s3cret")
	t.Setenv("GEOFENCE_ENABLED", "true")
	t.Setenv("GEOFENCE_DEFAULT_RADIUS_METERS", "75.5")
	t.Setenv("RATE_LIMIT_REQUESTS", "3")
	t.Setenv("RATE_LIMIT_INTERVAL", "10s")
	t.Setenv("TZ_LOCATION", "UTC")
	t.Setenv("REDIS_DB", "2")

	cfg := Load()

	assert.Equal(t, "s3cret", cfg.Token.Pepper)
	assert.True(t, cfg.Geofence.Enabled)
	assert.Equal(t, 75.5, cfg.Geofence.DefaultRadiusMeters)
	assert.Equal(t, 3, cfg.RateLimit.Requests)
	assert.Equal(t, 10*time.Second, cfg.RateLimit.Interval)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, time.UTC, cfg.Location())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("REDIS_DB", "two")
	t.Setenv("GEOFENCE_DEFAULT_RADIUS_METERS", "far")
	t.Setenv("RATE_LIMIT_INTERVAL", "soon")

	cfg := Load()

	assert.Equal(t, 0, cfg.Redis.DB)
	assert.Equal(t, 150.0, cfg.Geofence.DefaultRadiusMeters)
	assert.Equal(t, time.Minute, cfg.RateLimit.Interval)
}

func TestValidate(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("TOKEN_PEPPER", "")
	t.Setenv("TZ_LOCATION", "Mars/Olympus_Mons")
	t.Setenv("GEOFENCE_ENABLED", "true")
	t.Setenv("GEOFENCE_DEFAULT_RADIUS_METERS", "0")

	cfg := Load()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TOKEN_PEPPER")
	assert.Contains(t, err.Error(), "TZ_LOCATION")
	assert.Contains(t, err.Error(), "GEOFENCE_DEFAULT_RADIUS_METERS")
	assert.Equal(t, time.UTC, cfg.Location())
}
