package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "PORTAL_API_URL", "PORTAL_STORAGE", "PORTAL_STORAGE_KEY", "PORTAL_CACHE_TTL"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8082" || cfg.APIURL != "https://putx.cn/api" || cfg.StorageDriver != "memory" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.CacheTTL != 5*time.Minute || cfg.RedirectDelay != 2*time.Second {
		t.Fatalf("durations = %s %s", cfg.CacheTTL, cfg.RedirectDelay)
	}
}

func TestLoadDotEnvFile(t *testing.T) {
	os.Unsetenv("PORTAL_API_URL")
	t.Setenv("PORT", "9000")
	path := filepath.Join(t.TempDir(), ".env")
	content := "PORTAL_API_URL=http://localhost:8000/api///\nPORT=1111\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("PORTAL_API_URL") })

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIURL != "http://localhost:8000/api" {
		t.Fatalf("APIURL = %q", cfg.APIURL)
	}
	if cfg.Port != "9000" {
		t.Fatalf("Port = %q, environment should win over .env", cfg.Port)
	}
}

func TestValidate(t *testing.T) {
	base := Config{
		APIURL:           "https://putx.cn/api",
		StorageDriver:    "memory",
		CacheTTL:         time.Minute,
		ValidateInterval: time.Minute,
		RequestTimeout:   time.Second,
		LoginRate:        10,
	}
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"ok", func(*Config) {}, false},
		{"bad url", func(c *Config) { c.APIURL = "ftp://x" }, true},
		{"unknown driver", func(c *Config) { c.StorageDriver = "sqlite" }, true},
		{"postgres without dsn", func(c *Config) { c.StorageDriver = "postgres" }, true},
		{"postgres with dsn", func(c *Config) { c.StorageDriver = "postgres"; c.DatabaseURL = "postgres://x" }, false},
		{"short key", func(c *Config) { c.StorageKey = "abcd" }, true},
		{"good key", func(c *Config) { c.StorageKey = strings.Repeat("ab", 32) }, false},
		{"zero ttl", func(c *Config) { c.CacheTTL = 0 }, true},
		{"zero rate", func(c *Config) { c.LoginRate = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStringMasksSecrets(t *testing.T) {
	cfg := Config{DatabaseURL: "postgres://user:pw@db/portal", StorageKey: strings.Repeat("ab", 32)}
	s := cfg.String()
	if strings.Contains(s, "pw@db") || strings.Contains(s, "abab") {
		t.Fatalf("String leaks secrets: %s", s)
	}
}
