package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Security  SecurityConfig  `json:"security"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Redis     RedisConfig     `json:"redis"`
	Tracing   TracingConfig   `json:"tracing"`
	Kafka     KafkaConfig     `json:"kafka"`
	Catalog   CatalogConfig   `json:"catalog"`
	Pricing   PricingConfig   `json:"pricing"`
	Shipping  ShippingConfig  `json:"shipping"`
	Log       LogConfig       `json:"log"`
	Features  map[string]bool `json:"features"`
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port            string `json:"port"`
	Host            string `json:"host"`
	EnableTLS       bool   `json:"enable_tls"`
	CertFile        string `json:"cert_file"`
	KeyFile         string `json:"key_file"`
	ShutdownTimeout int    `json:"shutdown_timeout"` // in seconds
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	Path string `json:"path"`
}

// SecurityConfig holds security-related configuration.
type SecurityConfig struct {
	// Max request body size in bytes (default: 1MB)
	MaxRequestBodySize int64 `json:"max_request_body_size"`
	// Allowed CORS origins (comma-separated)
	AllowedOrigins string `json:"allowed_origins"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool `json:"enabled"`
	Rate    int  `json:"rate"`
	Window  int  `json:"window"` // in seconds
}

// RedisConfig selects the persistence substrate. An empty Addr keeps
// offers in process memory.
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Prefix   string `json:"prefix"`
}

// TracingConfig holds Jaeger exporter settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	Endpoint    string `json:"endpoint"`
	ServiceName string `json:"service_name"`
	Environment string `json:"environment"`
}

// KafkaConfig enables the offer-change bridge when Brokers is set.
type KafkaConfig struct {
	Brokers string `json:"brokers"` // comma-separated
	Topic   string `json:"topic"`
}

// BrokerList splits Brokers into addresses.
func (k KafkaConfig) BrokerList() []string {
	var out []string
	for _, b := range strings.Split(k.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// CatalogConfig points at an optional YAML offer catalog.
type CatalogConfig struct {
	Path string `json:"path"` // empty uses the built-in catalog
}

// PricingConfig holds amounts in rupees.
type PricingConfig struct {
	KeychainPrice         decimal.Decimal `json:"keychain_price"`
	GiftWrapPrice         decimal.Decimal `json:"gift_wrap_price"`
	CarMirrorPrice        decimal.Decimal `json:"car_mirror_price"`
	FreeShippingThreshold decimal.Decimal `json:"free_shipping_threshold"`
	GroupSize             int             `json:"group_size"` // units per free unit
}

// ShippingConfig holds the quote table and its guards.
type ShippingConfig struct {
	DefaultCharge    decimal.Decimal `json:"default_charge"`
	SlabGrams        int             `json:"slab_grams"`
	PerSlab          decimal.Decimal `json:"per_slab"`
	QuoteCacheTTL    int             `json:"quote_cache_ttl"` // in seconds
	BreakerThreshold uint32          `json:"breaker_threshold"`
	BreakerTimeout   int             `json:"breaker_timeout"` // in seconds
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `json:"level"`
	Pretty bool   `json:"pretty"`
}

// LoadConfig loads configuration from environment variables and/or config file.
// Environment variables take precedence over config file values.
func LoadConfig(configFile string) (*Config, error) {
	cfg := defaults()

	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := overrideFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			ShutdownTimeout: 30,
		},
		Database: DatabaseConfig{
			Path: "./storefront.db",
		},
		Security: SecurityConfig{
			MaxRequestBodySize: 1 << 20,
			AllowedOrigins:     "*",
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Rate:    100,
			Window:  60,
		},
		Redis: RedisConfig{
			Prefix: "storefront:",
		},
		Tracing: TracingConfig{
			Endpoint:    "http://localhost:14268/api/traces",
			ServiceName: "storefront-offers",
			Environment: "development",
		},
		Kafka: KafkaConfig{
			Topic: "offer-changes",
		},
		Pricing: PricingConfig{
			KeychainPrice:         decimal.NewFromInt(50),
			GiftWrapPrice:         decimal.NewFromInt(30),
			CarMirrorPrice:        decimal.NewFromInt(100),
			FreeShippingThreshold: decimal.NewFromInt(1000),
			GroupSize:             3,
		},
		Shipping: ShippingConfig{
			DefaultCharge:    decimal.NewFromInt(50),
			SlabGrams:        500,
			PerSlab:          decimal.NewFromInt(20),
			QuoteCacheTTL:    600,
			BreakerThreshold: 5,
			BreakerTimeout:   30,
		},
		Log: LogConfig{
			Level: "info",
		},
		Features: map[string]bool{},
	}
}

// loadFromFile loads configuration from a JSON file.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, cfg)
}

// overrideFromEnv overrides configuration with environment variables.
func overrideFromEnv(cfg *Config) error {
	envString("SERVER_PORT", &cfg.Server.Port)
	envString("SERVER_HOST", &cfg.Server.Host)
	envBool("SERVER_ENABLE_TLS", &cfg.Server.EnableTLS)
	envString("SERVER_CERT_FILE", &cfg.Server.CertFile)
	envString("SERVER_KEY_FILE", &cfg.Server.KeyFile)
	envInt("SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	envString("DATABASE_PATH", &cfg.Database.Path)

	if size := os.Getenv("MAX_REQUEST_BODY_SIZE"); size != "" {
		if v, err := strconv.ParseInt(size, 10, 64); err == nil {
			cfg.Security.MaxRequestBodySize = v
		}
	}
	envString("ALLOWED_ORIGINS", &cfg.Security.AllowedOrigins)

	envBool("RATE_LIMIT_ENABLED", &cfg.RateLimit.Enabled)
	envInt("RATE_LIMIT_RATE", &cfg.RateLimit.Rate)
	envInt("RATE_LIMIT_WINDOW", &cfg.RateLimit.Window)

	envString("REDIS_ADDR", &cfg.Redis.Addr)
	envString("REDIS_PASSWORD", &cfg.Redis.Password)
	envInt("REDIS_DB", &cfg.Redis.DB)
	envString("REDIS_PREFIX", &cfg.Redis.Prefix)

	envBool("TRACING_ENABLED", &cfg.Tracing.Enabled)
	envString("JAEGER_ENDPOINT", &cfg.Tracing.Endpoint)
	envString("TRACING_SERVICE_NAME", &cfg.Tracing.ServiceName)
	envString("ENVIRONMENT", &cfg.Tracing.Environment)

	envString("KAFKA_BROKERS", &cfg.Kafka.Brokers)
	envString("KAFKA_TOPIC", &cfg.Kafka.Topic)

	envString("CATALOG_PATH", &cfg.Catalog.Path)

	for key, dst := range map[string]*decimal.Decimal{
		"PRICING_KEYCHAIN_PRICE":          &cfg.Pricing.KeychainPrice,
		"PRICING_GIFT_WRAP_PRICE":         &cfg.Pricing.GiftWrapPrice,
		"PRICING_CAR_MIRROR_PRICE":        &cfg.Pricing.CarMirrorPrice,
		"PRICING_FREE_SHIPPING_THRESHOLD": &cfg.Pricing.FreeShippingThreshold,
		"SHIPPING_DEFAULT_CHARGE":         &cfg.Shipping.DefaultCharge,
		"SHIPPING_PER_SLAB":               &cfg.Shipping.PerSlab,
	} {
		if err := envDecimal(key, dst); err != nil {
			return err
		}
	}
	envInt("PRICING_GROUP_SIZE", &cfg.Pricing.GroupSize)
	envInt("SHIPPING_SLAB_GRAMS", &cfg.Shipping.SlabGrams)
	envInt("SHIPPING_QUOTE_CACHE_TTL", &cfg.Shipping.QuoteCacheTTL)
	envInt("SHIPPING_BREAKER_TIMEOUT", &cfg.Shipping.BreakerTimeout)
	if v := os.Getenv("SHIPPING_BREAKER_THRESHOLD"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			cfg.Shipping.BreakerThreshold = uint32(n)
		}
	}

	envString("LOG_LEVEL", &cfg.Log.Level)
	envBool("LOG_PRETTY", &cfg.Log.Pretty)

	// FEATURES=special_trigger_draws,!cache_enabled
	if raw := os.Getenv("FEATURES"); raw != "" {
		if cfg.Features == nil {
			cfg.Features = map[string]bool{}
		}
		for _, name := range strings.Split(raw, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if strings.HasPrefix(name, "!") {
				cfg.Features[name[1:]] = false
			} else {
				cfg.Features[name] = true
			}
		}
	}
	return nil
}

func envString(key string, dst *string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func envBool(key string, dst *bool) {
	if value := os.Getenv(key); value != "" {
		*dst = strings.ToLower(value) == "true" || value == "1"
	}
}

func envInt(key string, dst *int) {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			*dst = i
		}
	}
}

func envDecimal(key string, dst *decimal.Decimal) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

// QuoteCacheTTLDuration returns the quote cache lifetime.
func (s ShippingConfig) QuoteCacheTTLDuration() time.Duration {
	return time.Duration(s.QuoteCacheTTL) * time.Second
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Server.EnableTLS && (c.Server.CertFile == "" || c.Server.KeyFile == "") {
		return fmt.Errorf("cert_file and key_file are required when TLS is enabled")
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.Rate <= 0 {
			return fmt.Errorf("rate limit rate must be positive")
		}
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate limit window must be positive")
		}
	}
	for name, price := range map[string]decimal.Decimal{
		"pricing.keychain_price":   c.Pricing.KeychainPrice,
		"pricing.gift_wrap_price":  c.Pricing.GiftWrapPrice,
		"pricing.car_mirror_price": c.Pricing.CarMirrorPrice,
		"shipping.default_charge":  c.Shipping.DefaultCharge,
		"shipping.per_slab":        c.Shipping.PerSlab,
	} {
		if price.IsNegative() {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if c.Pricing.GroupSize < 2 {
		return fmt.Errorf("pricing group size must be at least 2")
	}
	if c.Shipping.SlabGrams <= 0 {
		return fmt.Errorf("shipping slab grams must be positive")
	}
	return nil
}
