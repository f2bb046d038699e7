package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Gateway  GatewayConfig
	Email    EmailConfig
	Auth     AuthConfig
	Pricing  PricingConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string        `env:"API_PORT" envDefault:"8080"`
	ReadTimeout  time.Duration `env:"API_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout time.Duration `env:"API_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout  time.Duration `env:"API_IDLE_TIMEOUT" envDefault:"120s"`
}

// PostgresConfig stores the relational database parameters.
type PostgresConfig struct {
	Host    string `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port    int    `env:"POSTGRES_PORT" envDefault:"5432"`
	User    string `env:"POSTGRES_USER" envDefault:"cargolink"`
	Pass    string `env:"POSTGRES_PASSWORD" envDefault:"cargolink_secret"`
	DB      string `env:"POSTGRES_DB" envDefault:"cargolink"`
	SSLMode string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
}

// DSN returns the PostgreSQL connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Pass, c.Host, c.Port, c.DB, c.SSLMode,
	)
}

// RedisConfig stores parameters for the local draft store.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// StorageConfig lists bucket and signing parameters for client uploads.
type StorageConfig struct {
	UploadsBucket string        `env:"STORAGE_UPLOADS_BUCKET"`
	SignerKeyFile string        `env:"STORAGE_SIGNER_KEY_FILE"`
	SignedURLTTL  time.Duration `env:"STORAGE_SIGNED_URL_TTL" envDefault:"15m"`
}

// GatewayConfig collects payment gateway credentials and webhook secrets.
type GatewayConfig struct {
	StripeAPIKey  string `env:"GATEWAY_STRIPE_API_KEY"`
	WebhookSecret string `env:"GATEWAY_WEBHOOK_SECRET"`
}

// EmailConfig configures the transactional email provider.
type EmailConfig struct {
	APIBaseURL string `env:"EMAIL_API_BASE_URL" envDefault:"https://api.mailchannel.example"`
	APIKey     string `env:"EMAIL_API_KEY"`
	FromName   string `env:"EMAIL_FROM_NAME" envDefault:"Cargolink"`
	FromAddr   string `env:"EMAIL_FROM_ADDR" envDefault:"noreply@cargolink.example"`
}

// AuthConfig carries the shared secret used to verify bearer tokens issued
// by the external identity provider.
type AuthConfig struct {
	JWTSecret string `env:"AUTH_JWT_SECRET"`
	Issuer    string `env:"AUTH_JWT_ISSUER" envDefault:"cargolink"`
}

// PricingConfig holds the tunable pricing constants.
type PricingConfig struct {
	VolumetricDivisor      int64 `env:"PRICING_VOLUMETRIC_DIVISOR" envDefault:"5000"`
	AddOnUnitPrice         int64 `env:"PRICING_ADDON_UNIT_PRICE" envDefault:"10000"`
	CourierChargeBasisPts  int64 `env:"PRICING_COURIER_CHARGE_BP" envDefault:"200"`
	HandlingChargeBasisPts int64 `env:"PRICING_HANDLING_CHARGE_BP" envDefault:"100"`
	OnlineSurchargeBP      int64 `env:"PRICING_ONLINE_SURCHARGE_BP" envDefault:"350"`
}

// Load reads configuration from the environment, optionally seeded from a
// .env file when one exists alongside the binary.
func Load() (*Config, error) {
	// Missing .env is the normal case outside local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Pricing.VolumetricDivisor <= 0 {
		return fmt.Errorf("config: volumetric divisor must be positive, got %d", c.Pricing.VolumetricDivisor)
	}
	if c.Pricing.AddOnUnitPrice < 0 {
		return fmt.Errorf("config: add-on unit price cannot be negative")
	}
	if c.Pricing.OnlineSurchargeBP < 0 || c.Pricing.OnlineSurchargeBP > 10000 {
		return fmt.Errorf("config: online surcharge must be between 0 and 10000 basis points, got %d", c.Pricing.OnlineSurchargeBP)
	}
	if c.Environment != "development" {
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("config: AUTH_JWT_SECRET must be set in %q mode", c.Environment)
		}
		if len(c.Auth.JWTSecret) < 32 {
			return fmt.Errorf("config: AUTH_JWT_SECRET must be at least 32 characters, got %d", len(c.Auth.JWTSecret))
		}
		if c.Gateway.WebhookSecret == "" {
			return fmt.Errorf("config: GATEWAY_WEBHOOK_SECRET must be set in %q mode", c.Environment)
		}
	}
	return nil
}
