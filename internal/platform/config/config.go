package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures process-level configuration so main stays lean. Every
// field has a development default; production overrides come from the
// environment.
type Config struct {
	Addr          string
	JWTSigningKey string

	// PostgresDSN enables the postgres-backed stores and command log when
	// set; otherwise the in-memory backend is used.
	PostgresDSN string

	Redis RedisConfig
	Kafka KafkaConfig

	// Registrars are principals allowed to perform privileged operations
	// (action type registration, relayer authorization, estate trigger,
	// poison pill).
	Registrars []string

	// MinValidatorStake is the stake floor for validator registration.
	MinValidatorStake float64
	// ValidatorStaleness is how long a validator may go without a health
	// check before it degrades to unhealthy.
	ValidatorStaleness time.Duration
}

// RedisConfig configures the optional read-model cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	ProfileTTL   time.Duration
}

// KafkaConfig configures the audit entry stream.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:               envOr("CUSTODIA_ADDR", ":8080"),
		JWTSigningKey:      envOr("CUSTODIA_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		PostgresDSN:        os.Getenv("CUSTODIA_POSTGRES_DSN"),
		MinValidatorStake:  envFloat("CUSTODIA_MIN_VALIDATOR_STAKE", 1.0),
		ValidatorStaleness: envDuration("CUSTODIA_VALIDATOR_STALENESS", 5*time.Minute),
	}

	if v := os.Getenv("CUSTODIA_REGISTRARS"); v != "" {
		cfg.Registrars = strings.Split(v, ",")
	}

	cfg.Redis = RedisConfig{
		URL:          os.Getenv("CUSTODIA_REDIS_URL"),
		PoolSize:     envInt("CUSTODIA_REDIS_POOL_SIZE", 10),
		MinIdleConns: envInt("CUSTODIA_REDIS_MIN_IDLE", 2),
		DialTimeout:  envDuration("CUSTODIA_REDIS_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout:  envDuration("CUSTODIA_REDIS_READ_TIMEOUT", 3*time.Second),
		WriteTimeout: envDuration("CUSTODIA_REDIS_WRITE_TIMEOUT", 3*time.Second),
		ProfileTTL:   envDuration("CUSTODIA_REDIS_PROFILE_TTL", 30*time.Second),
	}

	if v := os.Getenv("CUSTODIA_KAFKA_BROKERS"); v != "" {
		cfg.Kafka = KafkaConfig{
			Brokers:    strings.Split(v, ","),
			AuditTopic: envOr("CUSTODIA_KAFKA_AUDIT_TOPIC", "custodia.audit.entries"),
		}
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
