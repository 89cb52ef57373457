package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BackendRPC      = "rpc"
	BackendPostgres = "postgres"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	BackendMode        string        `mapstructure:"BACKEND_MODE"`
	BackendURL         string        `mapstructure:"BACKEND_URL"`
	BackendDatabase    string        `mapstructure:"BACKEND_DATABASE"`
	BackendTokenSecret string        `mapstructure:"BACKEND_TOKEN_SECRET"`
	BackendTimeout     time.Duration `mapstructure:"BACKEND_TIMEOUT"`

	DatabaseURL    string `mapstructure:"DATABASE_URL"`
	DatabaseSchema string `mapstructure:"DATABASE_SCHEMA"`
	DBMaxConns     int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32  `mapstructure:"DB_MIN_CONNS"`

	RedisURL        string        `mapstructure:"REDIS_URL"`
	CatalogCacheTTL time.Duration `mapstructure:"CATALOG_CACHE_TTL"`

	AuthSigningKey string `mapstructure:"AUTH_SIGNING_KEY"`
	AuthIssuer     string `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string `mapstructure:"AUTH_AUDIENCE"`

	OpticalEnabled        bool   `mapstructure:"OPTICAL_ENABLED"`
	InsuranceCompanyLimit int    `mapstructure:"INSURANCE_COMPANY_LIMIT"`
	FrameCatalogLimit     int    `mapstructure:"FRAME_CATALOG_LIMIT"`
	RecentTestsLimit      int    `mapstructure:"RECENT_TESTS_LIMIT"`
	ReportURLTemplate     string `mapstructure:"REPORT_URL_TEMPLATE"`
	MaxDocumentBytes      int64  `mapstructure:"MAX_DOCUMENT_BYTES"`

	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
}

var keys = []string{
	"PORT", "ENV", "CORS_ORIGINS",
	"BACKEND_MODE", "BACKEND_URL", "BACKEND_DATABASE", "BACKEND_TOKEN_SECRET", "BACKEND_TIMEOUT",
	"DATABASE_URL", "DATABASE_SCHEMA", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"REDIS_URL", "CATALOG_CACHE_TTL",
	"AUTH_SIGNING_KEY", "AUTH_ISSUER", "AUTH_AUDIENCE",
	"OPTICAL_ENABLED", "INSURANCE_COMPANY_LIMIT", "FRAME_CATALOG_LIMIT", "RECENT_TESTS_LIMIT",
	"REPORT_URL_TEMPLATE", "MAX_DOCUMENT_BYTES", "REQUEST_TIMEOUT",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("CORS_ORIGINS", "http://localhost:8069")
	v.SetDefault("BACKEND_MODE", BackendRPC)
	v.SetDefault("BACKEND_TIMEOUT", 10*time.Second)
	v.SetDefault("DATABASE_SCHEMA", "public")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CATALOG_CACHE_TTL", 10*time.Minute)
	v.SetDefault("OPTICAL_ENABLED", true)
	v.SetDefault("INSURANCE_COMPANY_LIMIT", 100)
	v.SetDefault("FRAME_CATALOG_LIMIT", 100)
	v.SetDefault("RECENT_TESTS_LIMIT", 10)
	v.SetDefault("REPORT_URL_TEMPLATE", "/report/pdf/bp_optical_core.report_optical_prescription/%d")
	v.SetDefault("MAX_DOCUMENT_BYTES", 5<<20)
	v.SetDefault("REQUEST_TIMEOUT", 30*time.Second)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) <= 1 {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = splitList(origins)
		}
	}
	cfg.BackendMode = strings.ToLower(strings.TrimSpace(cfg.BackendMode))

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that the configuration is complete for the selected backend
// and safe to run outside development.
func (c *Config) Validate() error {
	switch c.BackendMode {
	case BackendRPC:
		if c.BackendURL == "" {
			return fmt.Errorf("BACKEND_URL is required when BACKEND_MODE is %q", BackendRPC)
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when BACKEND_MODE is %q", BackendPostgres)
		}
	default:
		return fmt.Errorf("BACKEND_MODE must be %q or %q, got %q", BackendRPC, BackendPostgres, c.BackendMode)
	}

	if !c.IsDev() && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY is required when ENV=%q", c.Env)
	}
	if c.AuthSigningKey != "" && len(c.AuthSigningKey) < 32 {
		return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 bytes, got %d", len(c.AuthSigningKey))
	}
	if !strings.Contains(c.ReportURLTemplate, "%d") {
		return fmt.Errorf("REPORT_URL_TEMPLATE must contain %%d for the test id")
	}
	if c.MaxDocumentBytes <= 0 {
		return fmt.Errorf("MAX_DOCUMENT_BYTES must be positive")
	}
	if c.InsuranceCompanyLimit < 0 || c.FrameCatalogLimit < 0 || c.RecentTestsLimit < 0 {
		return fmt.Errorf("catalog and listing limits must not be negative")
	}
	return nil
}
