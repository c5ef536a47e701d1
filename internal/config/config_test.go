package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DB_DSN", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Empty(t, cfg.Database.DSN)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.False(t, cfg.Auth.IssuerEnabled)
	assert.Equal(t, int64(1), cfg.Checkin.CreditsPerCheckin)
	assert.Equal(t, "booking.checkins", cfg.Kafka.CheckinTopic)
	assert.Nil(t, cfg.Kafka.Brokers)
	assert.Empty(t, cfg.SeedFile)
}

func TestLoadFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DB_DSN", " postgres://localhost/agendafit ")
	t.Setenv("KAFKA_BROKERS", "k1:9092, ,k2:9092")
	t.Setenv("AUTH_TOKEN_TTL", "not-a-duration")
	t.Setenv("CREDITS_PER_CHECKIN", "-3")
	t.Setenv("RATE_LIMIT_BURST", "7")
	t.Setenv("SEED_FILE", " dev/seed.json ")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/agendafit", cfg.Database.DSN)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, int64(0), cfg.Checkin.CreditsPerCheckin)
	assert.Equal(t, 7, cfg.RateLimit.Burst)
	assert.Equal(t, "dev/seed.json", cfg.SeedFile)
}

func TestLoadRejectsUnsafeProduction(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ENV", EnvProduction)
	t.Setenv("AUTH_SECRET", "real-secret")
	t.Setenv("AUTH_TOKEN_ISSUER_ENABLED", "true")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("AUTH_TOKEN_ISSUER_ENABLED", "false")
	t.Setenv("SEED_FILE", "seed.json")
	_, err = Load()
	require.Error(t, err)

	t.Setenv("SEED_FILE", "")
	t.Setenv("AUTH_SECRET", defaultSecret)
	_, err = Load()
	require.Error(t, err)
}
