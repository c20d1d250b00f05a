package config

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration
type Config struct {
	// Environment: development | staging | production
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Database
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Redis (rate limiting and the optional permission cache)
	RedisURL string `env:"REDIS_URL,required"`

	// JWT Configuration
	JWTHS256Secret      string `env:"JWT_HS256_SECRET"`    // Base64-encoded HMAC secret
	JWTAllowedIssuers   string `env:"JWT_ALLOWED_ISSUERS"` // CSV list, e.g. "mebel-erp-web,mebel-erp-mobile"
	JWTAudience         string `env:"JWT_AUDIENCE" envDefault:"mebel-erp-api"`
	JWTClockSkewSeconds int    `env:"JWT_CLOCK_SKEW_SECONDS" envDefault:"60"`

	// TrustUserHeader accepts X-User-Id from an authenticating gateway instead of a bearer token.
	TrustUserHeader bool `env:"TRUST_USER_HEADER" envDefault:"false"`

	// OpenTelemetry
	OTELEnabled          bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELExporterEndpoint string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	OTELServiceName      string  `env:"OTEL_SERVICE_NAME" envDefault:"mebel-erp"`
	OTELSamplingRatio    float64 `env:"OTEL_SAMPLING_RATIO" envDefault:"0.1"`

	// Server
	Port         string `env:"PORT" envDefault:"3002"`
	MetricsToken string `env:"METRICS_TOKEN"`

	// Rate Limiting
	RateLimitPerUserPerMin int `env:"RATE_LIMIT_PER_USER_PER_MIN" envDefault:"300"`

	// PermissionCacheTTL enables the Redis permission-set cache when > 0. It also
	// bounds how long another instance can serve a stale set after a failed
	// invalidation.
	PermissionCacheTTL time.Duration `env:"PERMISSION_CACHE_TTL" envDefault:"0s"`

	// RedactionExtraFields extends the built-in price field deny-list.
	RedactionExtraFields []string `env:"REDACTION_EXTRA_FIELDS" envSeparator:","`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate performs custom validation on the configuration
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	// A bearer token is required unless a gateway supplies the identity.
	if !c.TrustUserHeader {
		if c.JWTHS256Secret == "" {
			return fmt.Errorf("JWT_HS256_SECRET is required")
		}
		if _, err := base64.StdEncoding.DecodeString(c.JWTHS256Secret); err != nil {
			return fmt.Errorf("JWT_HS256_SECRET must be valid base64: %w", err)
		}
		if c.JWTAllowedIssuers == "" {
			c.JWTAllowedIssuers = "mebel-erp-web"
		}
		if len(c.GetAllowedIssuers()) == 0 {
			return fmt.Errorf("JWT_ALLOWED_ISSUERS must contain at least one valid issuer")
		}
		if c.JWTAudience == "" {
			return fmt.Errorf("JWT_AUDIENCE is required")
		}
	}

	if c.TrustUserHeader && c.IsProduction() && c.JWTHS256Secret == "" {
		return fmt.Errorf("TRUST_USER_HEADER without JWT_HS256_SECRET is not allowed in production")
	}

	if c.OTELSamplingRatio < 0 || c.OTELSamplingRatio > 1 {
		return fmt.Errorf("OTEL_SAMPLING_RATIO must be between 0 and 1")
	}

	if c.JWTClockSkewSeconds < 0 {
		return fmt.Errorf("JWT_CLOCK_SKEW_SECONDS must be non-negative")
	}

	if c.RateLimitPerUserPerMin <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_USER_PER_MIN must be positive")
	}

	if c.PermissionCacheTTL < 0 {
		return fmt.Errorf("PERMISSION_CACHE_TTL must be non-negative")
	}

	return nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// TelemetryEnabled reports whether OTLP export is switched on and has somewhere to go.
func (c *Config) TelemetryEnabled() bool {
	return c.OTELEnabled && c.OTELExporterEndpoint != ""
}

// IsDev reports whether debug endpoints may be served.
func (c *Config) IsDev() bool {
	return c.AppEnv == "dev" || c.AppEnv == "development"
}

// GetAllowedIssuers returns the list of allowed JWT issuers
func (c *Config) GetAllowedIssuers() []string {
	return splitCSV(c.JWTAllowedIssuers)
}

// GetRedactionExtraFields returns the configured extra deny-list tokens, trimmed and lowercased.
func (c *Config) GetRedactionExtraFields() []string {
	out := make([]string, 0, len(c.RedactionExtraFields))
	for _, f := range c.RedactionExtraFields {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
