package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var testSecret = base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("JWT_EXPIRATION_MS", "60000")
	t.Setenv("POSTGRES_DSN", "postgres://localhost/todo")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TokenTTL() != time.Minute {
		t.Errorf("TokenTTL = %v, want 1m", cfg.TokenTTL())
	}
	if cfg.StoreBackend != BackendPostgres {
		t.Errorf("StoreBackend = %q, want postgres", cfg.StoreBackend)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example.com" {
		t.Errorf("AllowedOrigins = %q", cfg.AllowedOrigins)
	}
}

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "store_backend: redis\n" +
		"redis_addr: cache:6379\n" +
		"jwt_secret: " + testSecret + "\n" +
		"email_domain: corp.test\n" +
		"admin:\n  username: root\n  email: root@corp.test\n  password: R00t@pass\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("REDIS_ADDR", "override:6379")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StoreBackend != BackendRedis || cfg.EmailDomain != "corp.test" {
		t.Errorf("yaml values not applied: %+v", cfg)
	}
	if cfg.RedisAddr != "override:6379" {
		t.Errorf("RedisAddr = %q, env should win", cfg.RedisAddr)
	}
	if !cfg.Admin.Enabled() {
		t.Error("admin bootstrap should be enabled")
	}
}

func TestValidateRejects(t *testing.T) {
	short := base64.StdEncoding.EncodeToString([]byte("too-short"))
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing secret", func(c *Config) { c.JWTSecret = "" }, "JWT_SECRET is required"},
		{"not base64", func(c *Config) { c.JWTSecret = "!!!" }, "not valid base64"},
		{"short secret", func(c *Config) { c.JWTSecret = short }, "need at least 32"},
		{"zero ttl", func(c *Config) { c.JWTExpiration = 0 }, "JWT_EXPIRATION_MS"},
		{"unknown backend", func(c *Config) { c.StoreBackend = "sqlite" }, "unknown STORE_BACKEND"},
		{"missing dsn", func(c *Config) { c.PostgresDSN = "" }, "POSTGRES_DSN"},
		{"bad cost", func(c *Config) { c.BcryptCost = 99 }, "BCRYPT_COST"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaults()
			cfg.JWTSecret = testSecret
			cfg.PostgresDSN = "postgres://localhost/todo"
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tc.want)
			}
		})
	}
}

func TestLoadRejectsNonIntegerEnv(t *testing.T) {
	for _, key := range []string{"JWT_EXPIRATION_MS", "BCRYPT_COST", "REDIS_DB"} {
		t.Run(key, func(t *testing.T) {
			t.Setenv("CONFIG_FILE", "")
			t.Setenv("JWT_SECRET", testSecret)
			t.Setenv("POSTGRES_DSN", "postgres://localhost/todo")
			t.Setenv(key, "abc")

			cfg, err := Load("")
			if err == nil {
				t.Fatalf("Load() = %+v, want error for %s=abc", cfg, key)
			}
			if !strings.Contains(err.Error(), key) {
				t.Fatalf("error %q does not name %s", err, key)
			}
		})
	}
}
