package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	DatabaseURL     string
	ServerPort      string
	FrontendURL     string
	EnableHSTS      bool
	ServerDebugMode bool
	RequestTimeout  time.Duration
	MigrateOnStart  bool

	Auth AuthConfig

	RedisURL     string
	RabbitMQURL  string
	OTELEnabled  bool
	OTELEndpoint string
}

// AuthConfig describes the token issuer the API trusts
type AuthConfig struct {
	Issuer       string
	Audience     string
	JWKSURL      string
	JWKSFile     string
	Algorithm    string
	JWKSRefresh  time.Duration
	ClockSkew    time.Duration
	ClientID     string
	ClientSecret string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return load(os.Getenv)
}

// AuthFromEnv reads only the token issuer settings, without validating them.
// The configure CLI layers its flags on top and calls Validate itself.
func AuthFromEnv() AuthConfig {
	return loadAuth(os.Getenv)
}

// DatabaseURL returns DATABASE_URL for commands that need nothing else
func DatabaseURL() (string, error) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		return "", fmt.Errorf("DATABASE_URL is required")
	}
	return url, nil
}

func load(getenv func(string) string) (*Config, error) {
	env := lookup(getenv)
	cfg := &Config{
		DatabaseURL:     env.getEnv("DATABASE_URL", ""),
		ServerPort:      env.getEnv("SERVER_PORT", "8080"),
		FrontendURL:     env.getEnv("FRONTEND_URL", "http://localhost:3000"),
		EnableHSTS:      env.getEnvBool("ENABLE_HSTS", false),
		ServerDebugMode: env.getEnvBool("SERVER_DEBUG_MODE", false),
		RequestTimeout:  env.getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		MigrateOnStart:  env.getEnvBool("MIGRATE_ON_START", true),
		Auth:            loadAuth(getenv),
		RedisURL:        env.getEnv("REDIS_URL", ""),
		RabbitMQURL:     env.getEnv("RABBITMQ_URL", ""),
		OTELEnabled:     env.getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:    env.getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if err := cfg.Auth.Validate(); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout <= 0 {
		return nil, fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	return cfg, nil
}

func loadAuth(getenv func(string) string) AuthConfig {
	env := lookup(getenv)
	auth := AuthConfig{
		Issuer:       env.getEnv("AUTH_ISSUER", ""),
		Audience:     env.getEnv("AUTH_AUDIENCE", ""),
		JWKSURL:      env.getEnv("AUTH_JWKS_URL", ""),
		JWKSFile:     env.getEnv("AUTH_JWKS_FILE", ""),
		Algorithm:    env.getEnv("AUTH_ALGORITHM", "RS256"),
		JWKSRefresh:  env.getEnvDuration("AUTH_JWKS_REFRESH", time.Hour),
		ClockSkew:    env.getEnvDuration("AUTH_CLOCK_SKEW", 30*time.Second),
		ClientID:     env.getEnv("AUTH_CLIENT_ID", ""),
		ClientSecret: env.getEnv("AUTH_CLIENT_SECRET", ""),
	}
	auth.DeriveJWKSURL()
	return auth
}

// DeriveJWKSURL fills in <issuer>/.well-known/jwks.json when no key source is set
func (a *AuthConfig) DeriveJWKSURL() {
	if a.JWKSURL == "" && a.JWKSFile == "" && a.Issuer != "" {
		a.JWKSURL = strings.TrimRight(a.Issuer, "/") + "/.well-known/jwks.json"
	}
}

// Validate checks the settings needed to verify tokens
func (a AuthConfig) Validate() error {
	if a.Issuer == "" {
		return fmt.Errorf("AUTH_ISSUER is required")
	}
	if a.Audience == "" {
		return fmt.Errorf("AUTH_AUDIENCE is required")
	}
	if strings.EqualFold(a.Algorithm, "none") {
		return fmt.Errorf("AUTH_ALGORITHM must name a signature algorithm")
	}
	if a.JWKSRefresh <= 0 {
		return fmt.Errorf("AUTH_JWKS_REFRESH must be positive")
	}
	if a.ClockSkew < 0 {
		return fmt.Errorf("AUTH_CLOCK_SKEW must not be negative")
	}
	return nil
}

type lookup func(string) string

func (l lookup) getEnv(key, defaultValue string) string {
	if value := l(key); value != "" {
		return value
	}
	return defaultValue
}

func (l lookup) getEnvBool(key string, defaultValue bool) bool {
	if value := l(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func (l lookup) getEnvInt(key string, defaultValue int) int {
	if value := l(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings ("90s") or a bare number of seconds
func (l lookup) getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := l(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if seconds := l.getEnvInt(key, -1); seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
