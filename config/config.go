// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-gallery/images"
	"github.com/goliatone/go-gallery/storage"
)

// DefaultBodyLimit leaves a MiB of multipart framing headroom above the
// upload cap so a file at the cap still fits in one request.
const DefaultBodyLimit = images.MaxUploadSize + 1<<20

// Config holds all application configuration
type Config struct {
	Server  ServerConfig
	Auth    AuthConfig
	DB      DBConfig
	Storage storage.Config
}

// ServerConfig holds HTTP server configuration. BodyLimit caps request
// bodies and must leave headroom above the upload cap for multipart
// framing.
type ServerConfig struct {
	Host            string
	Port            string
	Debug           bool
	BodyLimit       int
	ShutdownTimeout time.Duration
}

// AuthConfig holds token signing settings. It satisfies the auth
// package's Config interface.
type AuthConfig struct {
	SigningKey      string
	TokenExpiration time.Duration
	Issuer          string
	Audience        []string
	ContextKey      string
	AuthScheme      string
}

// DBConfig holds database settings
type DBConfig struct {
	DSN string
}

func (c AuthConfig) GetSigningKey() string             { return c.SigningKey }
func (c AuthConfig) GetTokenExpiration() time.Duration { return c.TokenExpiration }
func (c AuthConfig) GetIssuer() string                 { return c.Issuer }
func (c AuthConfig) GetAudience() []string             { return c.Audience }
func (c AuthConfig) GetContextKey() string             { return c.ContextKey }
func (c AuthConfig) GetAuthScheme() string             { return c.AuthScheme }

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server:  loadServerConfig(),
		Auth:    loadAuthConfig(),
		DB:      loadDBConfig(),
		Storage: loadStorageConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("GALLERY_HOST", "0.0.0.0"),
		Port:            getEnv("GALLERY_PORT", "8080"),
		Debug:           getEnvBool("GALLERY_DEBUG", false),
		BodyLimit:       getEnvInt("GALLERY_BODY_LIMIT", DefaultBodyLimit),
		ShutdownTimeout: getEnvDuration("GALLERY_SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func loadAuthConfig() AuthConfig {
	audience := []string{}
	if raw := getEnv("GALLERY_JWT_AUDIENCE", ""); raw != "" {
		for _, aud := range strings.Split(raw, ",") {
			if aud = strings.TrimSpace(aud); aud != "" {
				audience = append(audience, aud)
			}
		}
	}

	return AuthConfig{
		SigningKey:      getEnv("GALLERY_JWT_SECRET", ""),
		TokenExpiration: getEnvDuration("GALLERY_JWT_TTL", 5*time.Minute),
		Issuer:          getEnv("GALLERY_JWT_ISSUER", "go-gallery"),
		Audience:        audience,
		ContextKey:      getEnv("GALLERY_JWT_CONTEXT_KEY", "user"),
		AuthScheme:      getEnv("GALLERY_JWT_SCHEME", "Bearer"),
	}
}

func loadDBConfig() DBConfig {
	return DBConfig{
		DSN: getEnv("GALLERY_DB_DSN", "file:gallery.db?cache=shared&_pragma=foreign_keys(1)"),
	}
}

func loadStorageConfig() storage.Config {
	return storage.Config{
		Bucket:        getEnv("GALLERY_S3_BUCKET", ""),
		Region:        getEnv("GALLERY_S3_REGION", "us-east-1"),
		AccessKey:     getEnv("GALLERY_S3_ACCESS_KEY", ""),
		SecretKey:     getEnv("GALLERY_S3_SECRET_KEY", ""),
		BaseEndpoint:  getEnv("GALLERY_S3_ENDPOINT", ""),
		PublicBaseURL: getEnv("GALLERY_S3_PUBLIC_URL", ""),
	}
}

// Validate checks required settings
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if c.Auth.SigningKey == "" {
		return fmt.Errorf("JWT signing key is required (GALLERY_JWT_SECRET)")
	}

	if c.Auth.TokenExpiration <= 0 {
		return fmt.Errorf("token expiration must be positive")
	}

	if c.DB.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}

	if c.Storage.Bucket == "" {
		return fmt.Errorf("storage bucket is required (GALLERY_S3_BUCKET)")
	}

	return nil
}

// getEnv returns an environment variable or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
