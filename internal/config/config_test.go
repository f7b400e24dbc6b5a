package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/catalog")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.Upload.Dir != "uploads" {
		t.Errorf("Upload.Dir = %q, want %q", cfg.Upload.Dir, "uploads")
	}
	if cfg.Upload.MaxConcurrent != 4 {
		t.Errorf("Upload.MaxConcurrent = %d, want %d", cfg.Upload.MaxConcurrent, 4)
	}
	if cfg.ERP.Timeout != 30*time.Second {
		t.Errorf("ERP.Timeout = %v, want %v", cfg.ERP.Timeout, 30*time.Second)
	}
	if cfg.ERP.TenantID != "01" {
		t.Errorf("ERP.TenantID = %q, want %q", cfg.ERP.TenantID, "01")
	}
	if cfg.ERP.Enabled() {
		t.Error("ERP.Enabled() = true without ERP_BASE_URL")
	}
	if cfg.Database.Driver() != "postgres" {
		t.Errorf("Database.Driver() = %q, want postgres", cfg.Database.Driver())
	}
}

func TestLoad_OverrideDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "sqlite:/tmp/catalog.db")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("ERP_BASE_URL", "http://protheus.local:8080")
	t.Setenv("ERP_TIMEOUT", "5s")
	t.Setenv("UPLOAD_MAX_CONCURRENT", "2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.ERP.Timeout != 5*time.Second {
		t.Errorf("ERP.Timeout = %v, want 5s", cfg.ERP.Timeout)
	}
	if !cfg.ERP.Enabled() {
		t.Error("ERP.Enabled() = false with ERP_BASE_URL set")
	}
	if cfg.Upload.MaxConcurrent != 2 {
		t.Errorf("Upload.MaxConcurrent = %d, want 2", cfg.Upload.MaxConcurrent)
	}
	if got := cfg.Database.SQLitePath(); got != "/tmp/catalog.db" {
		t.Errorf("Database.SQLitePath() = %q, want /tmp/catalog.db", got)
	}
}

func TestLoad_AlternateEnvName(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_URL", "postgresql://db/catalog")
	t.Setenv("PROTHEUS_URL", "https://erp.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.URL != "postgresql://db/catalog" {
		t.Errorf("Database.URL = %q", cfg.Database.URL)
	}
	if cfg.ERP.BaseURL != "https://erp.example.com" {
		t.Errorf("ERP.BaseURL = %q", cfg.ERP.BaseURL)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing database url",
			env:     map[string]string{"DATABASE_URL": "", "DB_URL": ""},
			wantErr: "DATABASE_URL is not set",
		},
		{
			name:    "unknown database scheme",
			env:     map[string]string{"DATABASE_URL": "mysql://localhost/x"},
			wantErr: "DATABASE_URL must start with",
		},
		{
			name:    "bad duration",
			env:     map[string]string{"DATABASE_URL": "postgres://x/y", "ERP_TIMEOUT": "soon"},
			wantErr: "invalid duration",
		},
		{
			name:    "relative erp url",
			env:     map[string]string{"DATABASE_URL": "postgres://x/y", "ERP_BASE_URL": "protheus"},
			wantErr: "ERP_BASE_URL",
		},
		{
			name:    "bad log level",
			env:     map[string]string{"DATABASE_URL": "postgres://x/y", "LOG_LEVEL": "loud"},
			wantErr: "LOG_LEVEL",
		},
		{
			name: "stale window shorter than timeout",
			env: map[string]string{
				"DATABASE_URL":       "postgres://x/y",
				"UPLOAD_TIMEOUT":     "1h",
				"UPLOAD_STALE_AFTER": "10m",
			},
			wantErr: "UPLOAD_STALE_AFTER",
		},
		{
			name:    "api key required without keys",
			env:     map[string]string{"DATABASE_URL": "postgres://x/y", "REQUIRE_API_KEY": "true"},
			wantErr: "API_KEYS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil {
				t.Fatal("Load() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_StringMasksSecrets(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{URL: "postgres://user:hunter2@db/catalog"},
		ERP:      ERPConfig{Password: "s3cret"},
		Redis:    RedisConfig{URL: "redis://:pw@cache:6379"},
	}
	s := cfg.String()
	for _, secret := range []string{"hunter2", "s3cret", ":pw@"} {
		if strings.Contains(s, secret) {
			t.Errorf("String() leaks %q: %s", secret, s)
		}
	}
}

func TestLoad_Security(t *testing.T) {
	t.Setenv("DATABASE_URL", "sqlite:prodcheck.db")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 127.0.0.1,")
	t.Setenv("REQUIRE_API_KEY", "true")
	t.Setenv("API_KEYS", "alpha,beta")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Security.TrustedProxies) != 2 || cfg.Security.TrustedProxies[1] != "127.0.0.1" {
		t.Errorf("TrustedProxies = %q", cfg.Security.TrustedProxies)
	}
	if !cfg.Security.RequireAPIKey || len(cfg.Security.APIKeys) != 2 {
		t.Errorf("Security = %+v", cfg.Security)
	}
	if strings.Contains(cfg.String(), "alpha") {
		t.Error("String() leaks an API key")
	}
}
