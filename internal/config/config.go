// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP API listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address of the gRPC health endpoint; empty disables it.
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN. When empty the server runs on in-memory storage.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// JWTSecret is the HS256 shared secret. Ignored when a PEM key pair is configured.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; used with JWT_PUBLIC_KEY for RS256/ES256.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; used with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	JWTIssuer    string `mapstructure:"JWT_ISSUER"`
	JWTAudience  string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// RevocationGrace is added to "now" when an account is blacklisted (e.g. "6h"). Must exceed JWTAccessTTL.
	RevocationGrace string `mapstructure:"REVOCATION_GRACE"`
	// RevocationPruneInterval is how often expired revocation cutoffs are dropped.
	RevocationPruneInterval string `mapstructure:"REVOCATION_PRUNE_INTERVAL"`
	// AccountStateCacheTTL bounds how long a cached account state is trusted; "0" caches until invalidated.
	AccountStateCacheTTL string `mapstructure:"ACCOUNT_STATE_CACHE_TTL"`

	// Argon2 parameters for new password hashes.
	Argon2MemoryKiB   uint32 `mapstructure:"ARGON2_MEMORY_KIB"`
	Argon2Iterations  uint32 `mapstructure:"ARGON2_ITERATIONS"`
	Argon2Parallelism uint8  `mapstructure:"ARGON2_PARALLELISM"`

	// Redis (optional). When RedisAddr is set the revocation tracker is shared across instances.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// KafkaBrokers is a comma-separated list of broker addresses; when set, security events are published.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// SecurityEventsTopic is the Kafka topic for security events (default cardgame-security-events).
	SecurityEventsTopic string `mapstructure:"SECURITY_EVENTS_TOPIC"`
	// Worker-only: Loki URL for the security event worker (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the security event worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint; empty disables export.
	OTLPEndpoint    string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure    bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	OTELServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// Seed-only: credentials of the initial admin account.
	SeedAdminEmail    string `mapstructure:"SEED_ADMIN_EMAIL"`
	SeedAdminPassword string `mapstructure:"SEED_ADMIN_PASSWORD"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("GRPC_ADDR", ":9090")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "cardgame-auth")
	v.SetDefault("JWT_AUDIENCE", "cardgame-api")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("REVOCATION_GRACE", "6h")
	v.SetDefault("REVOCATION_PRUNE_INTERVAL", "10m")
	v.SetDefault("ACCOUNT_STATE_CACHE_TTL", "1m")
	v.SetDefault("ARGON2_MEMORY_KIB", 64*1024)
	v.SetDefault("ARGON2_ITERATIONS", 3)
	v.SetDefault("ARGON2_PARALLELISM", 2)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("SECURITY_EVENTS_TOPIC", "cardgame-security-events")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "cardgame-security-worker")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "cardgame-backend")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("SEED_ADMIN_EMAIL", "admin@cardgame.local")
	v.SetDefault("SEED_ADMIN_PASSWORD", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if _, err := parsePositive(cfg.JWTAccessTTL); err != nil {
		return nil, errors.New("config: JWT_ACCESS_TTL must be a positive duration")
	}
	if _, err := parsePositive(cfg.RevocationGrace); err != nil {
		return nil, errors.New("config: REVOCATION_GRACE must be a positive duration")
	}
	if cfg.RevocationGraceDuration() <= cfg.AccessTTL() {
		return nil, errors.New("config: REVOCATION_GRACE must be greater than JWT_ACCESS_TTL")
	}
	if (cfg.JWTPrivateKey == "") != (cfg.JWTPublicKey == "") {
		return nil, errors.New("config: JWT_PRIVATE_KEY and JWT_PUBLIC_KEY must be set together")
	}
	if cfg.Env == "production" && cfg.JWTSecret == "" && cfg.JWTPrivateKey == "" {
		return nil, errors.New("config: JWT_SECRET or a JWT key pair is required when APP_ENV=production")
	}
	if cfg.Argon2Parallelism == 0 {
		cfg.Argon2Parallelism = 1
	}

	return &cfg, nil
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := parsePositive(c.JWTAccessTTL)
	if err != nil {
		return 15 * time.Minute
	}
	return d
}

// RevocationGraceDuration parses RevocationGrace. Returns 6h if unset or invalid.
func (c *Config) RevocationGraceDuration() time.Duration {
	d, err := parsePositive(c.RevocationGrace)
	if err != nil {
		return 6 * time.Hour
	}
	return d
}

// PruneInterval parses RevocationPruneInterval. Returns 10m if unset or invalid.
func (c *Config) PruneInterval() time.Duration {
	d, err := parsePositive(c.RevocationPruneInterval)
	if err != nil {
		return 10 * time.Minute
	}
	return d
}

// StateCacheTTL parses AccountStateCacheTTL. Zero means entries live until invalidated.
func (c *Config) StateCacheTTL() time.Duration {
	d, err := time.ParseDuration(c.AccountStateCacheTTL)
	if err != nil || d < 0 {
		return time.Minute
	}
	return d
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// An empty list disables the security event producer.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parsePositive(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, errors.New("duration must be positive")
	}
	return d, nil
}
