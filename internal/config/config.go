package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config is the full runtime configuration of the API, read from the
// environment (and an optional .env file).
type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer

	Database Database `envPrefix:"DB_"`
	Backend  Backend  `envPrefix:"BACKEND_"`
	Auth     Auth     `envPrefix:"AUTH_"`
	Redis    Redis    `envPrefix:"REDIS_"`
	Orders   Orders   `envPrefix:"ORDER_"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host            string        `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port            string        `env:"HTTP_PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	AllowedOrigin   string        `env:"HTTP_ALLOWED_ORIGIN" envDefault:"*"`
}

// Database selects the store behind the data gateway. "memory" keeps all
// tables in process and is meant for local runs.
type Database struct {
	Driver          string        `env:"DRIVER" envDefault:"mysql"`
	DSN             string        `env:"DSN_PRIMARY"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"25"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"5m"`
	Migrate         bool          `env:"MIGRATE" envDefault:"false"`
}

// Backend points at the hosted functions (payment, email, push).
type Backend struct {
	FunctionsURL    string        `env:"FUNCTIONS_URL"`
	AnonKey         string        `env:"ANON_KEY"`
	PaymentFunction string        `env:"PAYMENT_FUNCTION" envDefault:"smart-handler"`
	EmailFunction   string        `env:"EMAIL_FUNCTION" envDefault:"clever-function"`
	PushFunction    string        `env:"PUSH_FUNCTION" envDefault:"smart-endpoint"`
	Timeout         time.Duration `env:"TIMEOUT" envDefault:"30s"`
}

type Auth struct {
	// JWTSecret enables signature checks on session credentials. When empty
	// credentials are only decoded; production requires it.
	JWTSecret     string `env:"JWT_SECRET"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`
}

// Redis backs the credential store. An empty Addr keeps credentials in memory.
type Redis struct {
	Addr          string        `env:"ADDR"`
	Password      string        `env:"PASSWORD"`
	DB            int           `env:"DB" envDefault:"0"`
	KeyPrefix     string        `env:"KEY_PREFIX" envDefault:"storefront"`
	CredentialTTL time.Duration `env:"CREDENTIAL_TTL" envDefault:"720h"`
}

type Orders struct {
	TrackingAttempts  int           `env:"TRACKING_ATTEMPTS" envDefault:"20"`
	EmailTimeout      time.Duration `env:"EMAIL_TIMEOUT" envDefault:"15s"`
	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL" envDefault:"1h"`
}

// Load reads .env (when present) into the process environment and parses
// the result into a Config.
func Load() (*Config, bool, error) {
	dotenv := godotenv.Load() == nil

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, dotenv, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, dotenv, err
	}
	return cfg, dotenv, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql":
		if c.Database.DSN == "" {
			return errors.New("config: DB_DSN_PRIMARY is required for the mysql driver")
		}
	case "memory":
	default:
		return fmt.Errorf("config: unknown DB_DRIVER %q", c.Database.Driver)
	}
	if c.Backend.FunctionsURL == "" {
		return errors.New("config: BACKEND_FUNCTIONS_URL is required")
	}
	if c.Environment.Name == "production" && c.Auth.JWTSecret == "" {
		return errors.New("config: AUTH_JWT_SECRET is required in production")
	}
	if c.Orders.TrackingAttempts < 1 {
		return errors.New("config: ORDER_TRACKING_ATTEMPTS must be at least 1")
	}
	if c.Orders.ReconcileInterval <= 0 {
		return errors.New("config: ORDER_RECONCILE_INTERVAL must be positive")
	}
	return nil
}

func (c *Config) Addr() string {
	return c.HTTP.Host + ":" + c.HTTP.Port
}
