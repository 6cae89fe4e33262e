package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config captures everything the server binary needs from its environment.
type Config struct {
	Env  string
	Addr string

	DatabaseURL string
	Redis       RedisConfig

	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
	JWTTTL        time.Duration

	// AdminTokenHash is the bcrypt hash of the X-Admin-Token regulators
	// present; the plaintext never reaches configuration.
	AdminTokenHash string

	AuditBufferSize   int
	BlacklistCacheTTL time.Duration
}

// RedisConfig carries connection settings for the shared Redis instance.
// An empty URL disables Redis; the blacklist cache then degrades to
// store-only reads.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

const devJWTSigningKey = "dev-secret-key-change-in-production"

// FromEnv builds a Config from environment variables so main stays lean.
// Development gets permissive defaults; production refuses to start without
// real secrets.
func FromEnv() (Config, error) {
	cfg := Config{
		Env:           getenv("CUSTOS_ENV", "development"),
		Addr:          getenv("CUSTOS_ADDR", ":8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		JWTSigningKey: getenv("JWT_SIGNING_KEY", devJWTSigningKey),
		JWTIssuer:     getenv("JWT_ISSUER", "custos"),
		JWTAudience:   getenv("JWT_AUDIENCE", "custos-api"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getenvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getenvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getenvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getenvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getenvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		AdminTokenHash:    os.Getenv("ADMIN_TOKEN_HASH"),
		AuditBufferSize:   getenvInt("AUDIT_BUFFER_SIZE", 256),
		BlacklistCacheTTL: getenvDuration("BLACKLIST_CACHE_TTL", 5*time.Minute),
	}

	var err error
	cfg.JWTTTL, err = time.ParseDuration(getenv("JWT_TTL", "1h"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid JWT_TTL: %w", err)
	}

	if cfg.Env == "production" {
		if cfg.JWTSigningKey == devJWTSigningKey {
			return Config{}, fmt.Errorf("JWT_SIGNING_KEY must be set in production")
		}
		if cfg.AdminTokenHash == "" {
			return Config{}, fmt.Errorf("ADMIN_TOKEN_HASH must be set in production")
		}
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set in production")
		}
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
