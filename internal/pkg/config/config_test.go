package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET": "s3cret",
	}))
	require.NoError(t, err)

	assert.Equal(t, "3001", cfg.Port)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, DriverFile, cfg.Store.Driver)
	assert.Equal(t, "db.json", cfg.Store.DataFile)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSAllowedOrigins)
	assert.Empty(t, cfg.Redis.Addr, "redis is disabled unless configured")
	assert.Equal(t, 24*time.Hour, cfg.Redis.IdempotencyTTL)
	assert.Equal(t, 2*time.Second, cfg.Redis.IdempotencyWait)
	assert.Equal(t, 5*time.Second, cfg.Redis.Timeout)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET":           "s3cret",
		"ENV":                  "production",
		"TOKEN_TTL":            "15m",
		"STORE_DRIVER":         "mongo",
		"MONGO_DB":             "todo",
		"REDIS_ADDR":           "redis:6379",
		"REDIS_PASSWORD":       "hunter2",
		"IDEMPOTENCY_WAIT":     "500ms",
		"CORS_ALLOWED_ORIGINS": "http://a.example,http://b.example",
	}))
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.TokenTTL)
	assert.Equal(t, DriverMongo, cfg.Store.Driver)
	assert.Equal(t, "todo", cfg.Mongo.Database)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "hunter2", cfg.Redis.Password)
	assert.Equal(t, 500*time.Millisecond, cfg.Redis.IdempotencyWait)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoadFrom_RequiresSecret(t *testing.T) {
	_, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{}))
	require.Error(t, err)
}

func TestLoadFrom_RejectsUnknownDriver(t *testing.T) {
	_, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET":   "s3cret",
		"STORE_DRIVER": "postgres",
	}))
	require.ErrorContains(t, err, "STORE_DRIVER")
}

func TestLoadFrom_RejectsBadCost(t *testing.T) {
	_, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET":  "s3cret",
		"BCRYPT_COST": "2",
	}))
	require.ErrorContains(t, err, "BCRYPT_COST")
}
