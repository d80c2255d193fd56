package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the service.
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NATS     NATSConfig
	Auth     AuthConfig
	Email    EmailConfig
	Storage  StorageConfig
	Crypto   CryptoConfig
}

type AppConfig struct {
	Env             string
	LogLevel        string
	Port            int
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host          string
	Port          int
	User          string
	Password      string
	Name          string
	SSLMode       string
	MaxConns      int
	MinConns      int
	MigrationPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// ConnectionTTL bounds how long decrypted partner credentials are served
	// from cache before being re-read from the database.
	ConnectionTTL time.Duration
}

type NATSConfig struct {
	URL string
}

type AuthConfig struct {
	JWTSecret   string
	TokenExpiry time.Duration
	BcryptCost  int
}

type EmailConfig struct {
	SendGridAPIKey string
	FromEmail      string
	FromName       string
	FrontendURL    string
}

type StorageConfig struct {
	UploadDir string
}

type CryptoConfig struct {
	// EncryptionKey is the hex-encoded 32-byte AES key protecting partner
	// credentials at rest.
	EncryptionKey string
}

// Load reads configuration from the environment, honouring a local .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.App.Env = getEnvDefault("APP_ENV", "development")
	cfg.App.LogLevel = getEnvDefault("LOG_LEVEL", "info")
	cfg.App.Port = getEnvIntDefault("APP_PORT", 8080)
	cfg.App.ShutdownTimeout = getEnvDurationDefault("SHUTDOWN_TIMEOUT", 15*time.Second)

	cfg.Database.Host = getEnvDefault("DB_HOST", "localhost")
	cfg.Database.Port = getEnvIntDefault("DB_PORT", 5432)
	cfg.Database.User = os.Getenv("DB_USER")
	cfg.Database.Password = os.Getenv("DB_PASSWORD")
	cfg.Database.Name = os.Getenv("DB_NAME")
	cfg.Database.SSLMode = getEnvDefault("DB_SSL_MODE", "disable")
	cfg.Database.MaxConns = getEnvIntDefault("DB_MAX_CONNS", 10)
	cfg.Database.MinConns = getEnvIntDefault("DB_MIN_CONNS", 2)
	cfg.Database.MigrationPath = getEnvDefault("MIGRATION_PATH", "migrations")

	cfg.Redis.Addr = getEnvDefault("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	cfg.Redis.DB = getEnvIntDefault("REDIS_DB", 0)
	cfg.Redis.ConnectionTTL = getEnvDurationDefault("CONNECTION_CACHE_TTL", 5*time.Minute)

	cfg.NATS.URL = getEnvDefault("NATS_URL", "nats://localhost:4222")

	cfg.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.Auth.TokenExpiry = getEnvDurationDefault("JWT_EXPIRY", 24*time.Hour)
	cfg.Auth.BcryptCost = getEnvIntDefault("BCRYPT_COST", 12)

	cfg.Email.SendGridAPIKey = os.Getenv("SENDGRID_API_KEY")
	cfg.Email.FromEmail = getEnvDefault("EMAIL_FROM", "noreply@vellko.com")
	cfg.Email.FromName = getEnvDefault("EMAIL_FROM_NAME", "Vellko Affiliates")
	cfg.Email.FrontendURL = getEnvDefault("FRONTEND_URL", "http://localhost:3000")

	cfg.Storage.UploadDir = getEnvDefault("UPLOAD_DIR", "uploads")

	cfg.Crypto.EncryptionKey = os.Getenv("CREDENTIALS_ENCRYPTION_KEY")

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Database.User == "" {
		return fmt.Errorf("DB_USER is not set")
	}
	if cfg.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is not set")
	}
	if cfg.Database.Name == "" {
		return fmt.Errorf("DB_NAME is not set")
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is not set")
	}
	if cfg.Crypto.EncryptionKey == "" {
		return fmt.Errorf("CREDENTIALS_ENCRYPTION_KEY is not set")
	}
	return nil
}

// DSN returns the Postgres connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// URL returns the Postgres connection URL used by goose.
func (c *DatabaseConfig) URL() string {
	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

func (c *AppConfig) IsDevelopment() bool { return c.Env == "development" }

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getEnvDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
