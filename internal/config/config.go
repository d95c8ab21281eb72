package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// MinSecretBytes is the HS256 key size floor.
const MinSecretBytes = 32

// Store backends.
const (
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendRedis    = "redis"
)

// Config holds all service configuration. Values come from defaults, then
// an optional YAML file, then environment variables.
type Config struct {
	Port           string   `yaml:"port"`
	StoreBackend   string   `yaml:"store_backend"`
	PostgresDSN    string   `yaml:"postgres_dsn"`
	MongoURI       string   `yaml:"mongo_uri"`
	MongoDB        string   `yaml:"mongo_db"`
	RedisAddr      string   `yaml:"redis_addr"`
	RedisPassword  string   `yaml:"redis_password"`
	RedisDB        int      `yaml:"redis_db"`
	JWTSecret      string   `yaml:"jwt_secret"` // base64
	JWTExpiration  int64    `yaml:"jwt_expiration_ms"`
	BcryptCost     int      `yaml:"bcrypt_cost"`
	EmailDomain    string   `yaml:"email_domain"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	LogLevel       string   `yaml:"log_level"`
	Admin          Admin    `yaml:"admin"`
}

// Admin describes the account created at startup when none exists.
type Admin struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// Enabled reports whether all bootstrap admin fields are set.
func (a Admin) Enabled() bool {
	return a.Username != "" && a.Email != "" && a.Password != ""
}

func defaults() *Config {
	return &Config{
		Port:           "8080",
		StoreBackend:   BackendPostgres,
		MongoDB:        "todo_auth",
		RedisAddr:      "redis:6379",
		JWTExpiration:  int64(24 * time.Hour / time.Millisecond),
		BcryptCost:     bcrypt.DefaultCost,
		EmailDomain:    "example.com",
		AllowedOrigins: []string{"http://localhost:5173", "http://localhost:3000"},
		LogLevel:       "info",
	}
}

// Load builds the configuration. path may be empty, in which case
// CONFIG_FILE is consulted.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.Port = getenv("PORT", cfg.Port)
	cfg.StoreBackend = getenv("STORE_BACKEND", cfg.StoreBackend)
	cfg.PostgresDSN = getenv("POSTGRES_DSN", cfg.PostgresDSN)
	cfg.MongoURI = getenv("MONGO_URI", cfg.MongoURI)
	cfg.MongoDB = getenv("MONGO_DB", cfg.MongoDB)
	cfg.RedisAddr = getenv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getenv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.JWTSecret = getenv("JWT_SECRET", cfg.JWTSecret)
	cfg.EmailDomain = getenv("EMAIL_DOMAIN", cfg.EmailDomain)
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = parseCSV(v)
	}
	cfg.LogLevel = getenv("LOG_LEVEL", cfg.LogLevel)
	cfg.Admin.Username = getenv("ADMIN_USERNAME", cfg.Admin.Username)
	cfg.Admin.Email = getenv("ADMIN_EMAIL", cfg.Admin.Email)
	cfg.Admin.Password = getenv("ADMIN_PASSWORD", cfg.Admin.Password)

	var errs []error
	var err error
	if cfg.RedisDB, err = intFromEnv("REDIS_DB", cfg.RedisDB); err != nil {
		errs = append(errs, err)
	}
	if cfg.JWTExpiration, err = int64FromEnv("JWT_EXPIRATION_MS", cfg.JWTExpiration); err != nil {
		errs = append(errs, err)
	}
	if cfg.BcryptCost, err = intFromEnv("BCRYPT_COST", cfg.BcryptCost); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	if _, err := c.SigningKey(); err != nil {
		return err
	}
	if c.JWTExpiration <= 0 {
		return errors.New("config: JWT_EXPIRATION_MS must be positive")
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("config: BCRYPT_COST must be within [%d, %d]", bcrypt.MinCost, bcrypt.MaxCost)
	}
	switch c.StoreBackend {
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return errors.New("config: POSTGRES_DSN is required for the postgres backend")
		}
	case BackendMongo:
		if c.MongoURI == "" {
			return errors.New("config: MONGO_URI is required for the mongo backend")
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			return errors.New("config: REDIS_ADDR is required for the redis backend")
		}
	default:
		return fmt.Errorf("config: unknown STORE_BACKEND %q", c.StoreBackend)
	}
	return nil
}

// SigningKey decodes the base64 JWT secret.
func (c *Config) SigningKey() ([]byte, error) {
	if c.JWTSecret == "" {
		return nil, errors.New("config: JWT_SECRET is required")
	}
	key, err := base64.StdEncoding.DecodeString(c.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("config: JWT_SECRET is not valid base64: %w", err)
	}
	if len(key) < MinSecretBytes {
		return nil, fmt.Errorf("config: JWT_SECRET decodes to %d bytes, need at least %d", len(key), MinSecretBytes)
	}
	return key, nil
}

// TokenTTL is the configured token lifetime.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.JWTExpiration) * time.Millisecond
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// intFromEnv returns fallback when key is unset and an error when it is
// set but not an integer.
func intFromEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback, fmt.Errorf("config: %s must be an integer, got %q", key, v)
	}
	return i, nil
}

func int64FromEnv(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return fallback, fmt.Errorf("config: %s must be an integer, got %q", key, v)
	}
	return i, nil
}

func parseCSV(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}
