package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"tracker_server/core/domain"
)

// Cookie and field prefixes end up in cookie names and CSS selectors.
var prefixPattern = regexp.MustCompile(`^[A-Za-z0-9_-]*$`)

// Store backends
const (
	StoreBackendCookie = "cookie"
	StoreBackendRedis  = "redis"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	// Site
	SiteHost      string
	UpstreamURL   string
	StaticDir     string
	ExcludedPaths []string

	// Storage
	StoreBackend  string
	RedisURL      string
	CookiePrefix  string
	CookieTTLDays int
	CookieSecure  bool

	// Sinks
	FieldPrefix  string
	AutoFields   bool
	DebugLogging bool

	// Resolution
	CampaignDefault  string
	AttributionModel string
	HostMatch        string
	RulesFile        string

	// CORS
	AllowedOrigins []string

	// Rate limiting (classify endpoint)
	ClassifyRatePerSec float64
	ClassifyBurst      int
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Site
		SiteHost:      getEnv("SITE_HOST", ""),
		UpstreamURL:   getEnv("UPSTREAM_URL", ""),
		StaticDir:     getEnv("STATIC_DIR", "./public"),
		ExcludedPaths: getEnvSlice("EXCLUDED_PATHS", []string{"/admin", "/api/", "/healthz"}),

		// Storage
		StoreBackend:  strings.ToLower(getEnv("STORE_BACKEND", StoreBackendCookie)),
		RedisURL:      getEnv("REDIS_URL", ""),
		CookiePrefix:  getEnv("COOKIE_PREFIX", "rt_"),
		CookieTTLDays: getEnvInt("COOKIE_TTL_DAYS", 30),
		CookieSecure:  getEnvBool("COOKIE_SECURE", false),

		// Sinks
		FieldPrefix:  getEnv("FIELD_PREFIX", "rt_"),
		AutoFields:   getEnvBool("AUTO_FIELDS", true),
		DebugLogging: getEnvBool("DEBUG_LOGGING", false),

		// Resolution
		CampaignDefault:  getEnvAllowEmpty("CAMPAIGN_DEFAULT", domain.CampaignNone),
		AttributionModel: strings.ToLower(getEnv("ATTRIBUTION_MODEL", string(domain.ModelHybrid))),
		HostMatch:        strings.ToLower(getEnv("HOST_MATCH", string(domain.HostMatchSubstring))),
		RulesFile:        getEnv("RULES_FILE", ""),

		// CORS
		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"*"}),

		// Rate limiting
		ClassifyRatePerSec: getEnvFloat("CLASSIFY_RATE_PER_SEC", 5),
		ClassifyBurst:      getEnvInt("CLASSIFY_BURST", 10),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreBackendCookie:
	case StoreBackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when STORE_BACKEND=%s", StoreBackendRedis)
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q (want %s or %s)", c.StoreBackend, StoreBackendCookie, StoreBackendRedis)
	}

	switch domain.AttributionModel(c.AttributionModel) {
	case domain.ModelHybrid, domain.ModelFirstTouch:
	default:
		return fmt.Errorf("unknown ATTRIBUTION_MODEL %q (want %s or %s)", c.AttributionModel, domain.ModelHybrid, domain.ModelFirstTouch)
	}

	switch domain.HostMatchMode(c.HostMatch) {
	case "", domain.HostMatchSubstring, domain.HostMatchLabel:
	default:
		return fmt.Errorf("unknown HOST_MATCH %q (want %s or %s)", c.HostMatch, domain.HostMatchSubstring, domain.HostMatchLabel)
	}

	if c.CookieTTLDays <= 0 {
		return fmt.Errorf("COOKIE_TTL_DAYS must be > 0, got %d", c.CookieTTLDays)
	}
	if c.CookiePrefix == "" {
		return fmt.Errorf("COOKIE_PREFIX must not be empty")
	}
	if !prefixPattern.MatchString(c.CookiePrefix) {
		return fmt.Errorf("COOKIE_PREFIX %q may only contain letters, digits, '_' or '-'", c.CookiePrefix)
	}
	if !prefixPattern.MatchString(c.FieldPrefix) {
		return fmt.Errorf("FIELD_PREFIX %q may only contain letters, digits, '_' or '-'", c.FieldPrefix)
	}
	if c.ClassifyRatePerSec <= 0 || c.ClassifyBurst <= 0 {
		return fmt.Errorf("CLASSIFY_RATE_PER_SEC and CLASSIFY_BURST must be > 0")
	}
	return nil
}

// RecordTTL is the lifetime of persisted attribution state.
func (c *Config) RecordTTL() time.Duration {
	return time.Duration(c.CookieTTLDays) * 24 * time.Hour
}

// Policy returns the resolution policy flags.
func (c *Config) Policy() domain.Policy {
	return domain.Policy{
		EmptyCampaign: c.CampaignDefault,
		Model:         domain.AttributionModel(c.AttributionModel),
		TTL:           c.RecordTTL(),
		HostMatch:     domain.HostMatchMode(c.HostMatch),
	}
}

// Settings returns the configuration surface consumed by the sinks.
func (c *Config) Settings() domain.Settings {
	return domain.Settings{
		FieldPrefix:       c.FieldPrefix,
		AutoFieldsEnabled: c.AutoFields,
		DebugLogging:      c.DebugLogging,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAllowEmpty distinguishes an explicitly empty variable from an unset one.
func getEnvAllowEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := parts[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
