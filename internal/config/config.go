package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env      string
	HTTPAddr string
	GRPCAddr string

	Database  DatabaseConfig
	Auth      AuthConfig
	Kafka     KafkaConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Log       LogConfig
	Checkin   CheckinConfig

	MigrateOnStart bool
	// SeedFile is a JSON fixture loaded into the in-memory store on start.
	// Development only; ignored when a DSN is set.
	SeedFile string
}

// DatabaseConfig is empty-DSN safe: no DSN means the in-memory store.
type DatabaseConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

type AuthConfig struct {
	Secret        string
	TokenTTL      time.Duration
	IssuerEnabled bool
}

type KafkaConfig struct {
	Brokers      []string
	CheckinTopic string
}

type RateLimitConfig struct {
	PerSecond float64
	Burst     int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CheckinConfig tunes the credit side of a granted check-in.
type CheckinConfig struct {
	CreditsPerCheckin int64
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{
		Env:            v.GetString("ENV"),
		HTTPAddr:       v.GetString("HTTP_ADDR"),
		GRPCAddr:       v.GetString("GRPC_ADDR"),
		MigrateOnStart: v.GetBool("MIGRATE_ON_START"),
		SeedFile:       strings.TrimSpace(v.GetString("SEED_FILE")),
	}

	cfg.Database = DatabaseConfig{
		DSN:          strings.TrimSpace(v.GetString("DB_DSN")),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Auth = AuthConfig{
		Secret:        v.GetString("AUTH_SECRET"),
		TokenTTL:      parseDuration(v.GetString("AUTH_TOKEN_TTL"), time.Hour),
		IssuerEnabled: v.GetBool("AUTH_TOKEN_ISSUER_ENABLED"),
	}

	cfg.Kafka = KafkaConfig{
		Brokers:      splitAndTrim(v.GetString("KAFKA_BROKERS")),
		CheckinTopic: v.GetString("KAFKA_CHECKIN_TOPIC"),
	}

	cfg.RateLimit = RateLimitConfig{
		PerSecond: v.GetFloat64("RATE_LIMIT_PER_SEC"),
		Burst:     v.GetInt("RATE_LIMIT_BURST"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	credits := v.GetInt64("CREDITS_PER_CHECKIN")
	if credits < 0 {
		credits = 0
	}
	cfg.Checkin = CheckinConfig{CreditsPerCheckin: credits}

	if cfg.Env == EnvProduction && cfg.Auth.IssuerEnabled {
		return nil, errors.New("AUTH_TOKEN_ISSUER_ENABLED must be off in production")
	}
	if cfg.Env == EnvProduction && cfg.SeedFile != "" {
		return nil, errors.New("SEED_FILE must not be set in production")
	}
	if cfg.Env == EnvProduction && cfg.Auth.Secret == defaultSecret {
		return nil, errors.New("AUTH_SECRET must be set in production")
	}

	return cfg, nil
}

const defaultSecret = "dev_secret"

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("GRPC_ADDR", ":9090")

	v.SetDefault("DB_DSN", "")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("AUTH_SECRET", defaultSecret)
	v.SetDefault("AUTH_TOKEN_TTL", "1h")
	v.SetDefault("AUTH_TOKEN_ISSUER_ENABLED", false)

	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_CHECKIN_TOPIC", "booking.checkins")

	v.SetDefault("RATE_LIMIT_PER_SEC", 10)
	v.SetDefault("RATE_LIMIT_BURST", 20)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CREDITS_PER_CHECKIN", 1)
	v.SetDefault("MIGRATE_ON_START", false)
	v.SetDefault("SEED_FILE", "")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
