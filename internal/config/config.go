package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MigrationsPath  string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type StripeConfig struct {
	// SecretKey is the API credential. When empty, checkout session
	// creation is disabled entirely.
	SecretKey string
	// WebhookSecret signs inbound webhook deliveries. When empty,
	// deliveries are rejected unless AllowUnverifiedWebhooks is set.
	WebhookSecret           string
	AllowUnverifiedWebhooks bool
	SuccessURL              string
	CancelURL               string
	Currency                string
}

type OrdersConfig struct {
	NumberPrefix string
}

type Config struct {
	App struct {
		Port string
	}
	Postgres PostgresConfig
	Stripe   StripeConfig
	Orders   OrdersConfig
	Admin    struct {
		Token string
	}
}

func Load(path string) (*Config, error) {
	if path != "" {
		// .env is optional; real deployments set env vars directly.
		_ = godotenv.Load(path)
	}

	cfg := &Config{}
	cfg.App.Port = os.Getenv("APP_PORT")
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}

	cfg.Postgres.Host = os.Getenv("DB_HOST")
	if cfg.Postgres.Host == "" {
		log.Fatalf("DB_HOST is required")
	}
	cfg.Postgres.Port = os.Getenv("DB_PORT")
	if cfg.Postgres.Port == "" {
		log.Fatalf("DB_PORT is required")
	}
	cfg.Postgres.User = os.Getenv("DB_USER")
	if cfg.Postgres.User == "" {
		log.Fatalf("DB_USER is required")
	}
	cfg.Postgres.Password = os.Getenv("DB_PASSWORD")
	if cfg.Postgres.Password == "" {
		log.Fatalf("DB_PASSWORD is required")
	}
	cfg.Postgres.DBName = os.Getenv("DB_NAME")
	if cfg.Postgres.DBName == "" {
		log.Fatalf("DB_NAME is required")
	}
	cfg.Postgres.SSLMode = os.Getenv("DB_SSLMODE")
	if cfg.Postgres.SSLMode == "" {
		cfg.Postgres.SSLMode = "disable"
	}
	cfg.Postgres.MigrationsPath = os.Getenv("DB_MIGRATIONS_PATH")
	if cfg.Postgres.MigrationsPath == "" {
		cfg.Postgres.MigrationsPath = "migrations"
	}
	cfg.Postgres.MaxConns = int32(envInt("DB_MAX_CONNS", 10))
	cfg.Postgres.MinConns = int32(envInt("DB_MIN_CONNS", 2))
	cfg.Postgres.MaxConnLifetime = time.Duration(envInt("DB_MAX_CONN_LIFETIME_MINUTES", 30)) * time.Minute

	cfg.Stripe.SecretKey = os.Getenv("STRIPE_SECRET_KEY")
	cfg.Stripe.WebhookSecret = os.Getenv("STRIPE_WEBHOOK_SECRET")
	cfg.Stripe.AllowUnverifiedWebhooks = os.Getenv("ALLOW_UNVERIFIED_WEBHOOKS") == "true"
	cfg.Stripe.SuccessURL = os.Getenv("CHECKOUT_SUCCESS_URL")
	if cfg.Stripe.SuccessURL == "" {
		cfg.Stripe.SuccessURL = "http://localhost:3000/checkout/success?session_id={CHECKOUT_SESSION_ID}"
	}
	cfg.Stripe.CancelURL = os.Getenv("CHECKOUT_CANCEL_URL")
	if cfg.Stripe.CancelURL == "" {
		cfg.Stripe.CancelURL = "http://localhost:3000/checkout/cancel"
	}
	cfg.Stripe.Currency = os.Getenv("CHECKOUT_CURRENCY")
	if cfg.Stripe.Currency == "" {
		cfg.Stripe.Currency = "eur"
	}

	cfg.Orders.NumberPrefix = os.Getenv("ORDER_NUMBER_PREFIX")
	if cfg.Orders.NumberPrefix == "" {
		cfg.Orders.NumberPrefix = "ORD"
	}

	cfg.Admin.Token = os.Getenv("ADMIN_API_TOKEN")

	return cfg, nil
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Fatalf("%s must be an integer, got %q", key, raw)
	}
	return v
}
