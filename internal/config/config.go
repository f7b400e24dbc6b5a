// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Upload   UploadConfig
	ERP      ERPConfig
	Redis    RedisConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is the maximum duration for writing a response (default: 2m)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"2m"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 2m)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"2m"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL selects the store: postgres:// or postgresql:// for PostgreSQL,
	// sqlite:<path> or file:<path> for an embedded SQLite file.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// UploadConfig holds catalog intake settings.
type UploadConfig struct {
	// Dir is where uploaded files are stored, partitioned by date (default: uploads)
	Dir string `env:"UPLOAD_DIR" default:"uploads"`

	// MaxFileSize is the maximum allowed file size in bytes (default: 50MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"52428800"`

	// MaxConcurrent is the maximum number of intakes processed in parallel (default: 4)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long to wait for an intake slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`

	// Timeout bounds a single intake (default: 10m)
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" default:"10m"`

	// StaleAfter is how long an upload may stay PROCESSING before the sweeper fails it (default: 30m)
	StaleAfter time.Duration `env:"UPLOAD_STALE_AFTER" default:"30m"`

	// SweepInterval is how often the stale upload sweeper runs (default: 5m)
	SweepInterval time.Duration `env:"UPLOAD_SWEEP_INTERVAL" default:"5m"`
}

// ERPConfig holds Protheus REST settings.
type ERPConfig struct {
	// BaseURL is the Protheus REST root, e.g. http://protheus:8080. Empty disables
	// registry checks and order submission.
	BaseURL string `env:"ERP_BASE_URL" envAlt:"PROTHEUS_URL"`

	// TenantID is the branch sent in the tenantid header (default: 01)
	TenantID string `env:"ERP_TENANT_ID" default:"01"`

	// Timeout applies to every ERP request (default: 30s)
	Timeout time.Duration `env:"ERP_TIMEOUT" default:"30s"`

	Username string `env:"ERP_USERNAME"`
	Password string `env:"ERP_PASSWORD"`

	// ProductLookupPath answers 200 when a product code exists in the registry
	ProductLookupPath string `env:"ERP_PRODUCT_LOOKUP_PATH" default:"/rest/PRODCHECK/produto"`

	// SupplierLookupPath answers 200 when a supplier code exists in the registry
	SupplierLookupPath string `env:"ERP_SUPPLIER_LOOKUP_PATH" default:"/rest/PRODCHECK/fornecedor"`
}

// Enabled reports whether an ERP endpoint is configured.
func (c *ERPConfig) Enabled() bool {
	return strings.TrimSpace(c.BaseURL) != ""
}

// RedisConfig holds the optional distributed lock backend.
type RedisConfig struct {
	// URL enables per-upload locking across instances, e.g. redis://localhost:6379/0
	URL string `env:"REDIS_URL"`

	// LockTTL is how long an intake lock is held before it expires (default: 15m)
	LockTTL time.Duration `env:"REDIS_LOCK_TTL" default:"15m"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 120)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"120"`

	// UploadLimit is requests per minute for upload endpoints (default: 10)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// SecurityConfig holds client identification and API access settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of proxy CIDRs whose X-Real-IP
	// and X-Forwarded-For headers are believed
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey rejects /api requests without a valid X-API-Key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Driver returns "postgres" or "sqlite" based on the URL scheme, or "" if unknown.
func (c *DatabaseConfig) Driver() string {
	switch {
	case strings.HasPrefix(c.URL, "postgres://"), strings.HasPrefix(c.URL, "postgresql://"):
		return "postgres"
	case strings.HasPrefix(c.URL, "sqlite:"), strings.HasPrefix(c.URL, "file:"):
		return "sqlite"
	default:
		return ""
	}
}

// SQLitePath returns the file path of a sqlite URL.
func (c *DatabaseConfig) SQLitePath() string {
	p := strings.TrimPrefix(c.URL, "sqlite:")
	p = strings.TrimPrefix(p, "//")
	return p
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
