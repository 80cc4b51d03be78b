package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string
	LogLevel    slog.Level
	PostgresURL string
	DBSchema    string
	RedisURL    string
	Brokers     []string
	AdminToken  string
	// TrustedProxies is how many reverse proxies (the gateway counts as one)
	// sit in front of the service and append to X-Forwarded-For.
	TrustedProxies int
	Checkout       CheckoutConfig
	Mail           MailConfig
	Outbox         OutboxConfig
	Sweep          SweepConfig
	Upstreams      UpstreamConfig
	Telemetry      TelemetryConfig
}

type CheckoutConfig struct {
	RateLimitMax    int
	RateLimitWindow time.Duration
	OrderExpiry     time.Duration
	Currency        string
}

type MailConfig struct {
	From                string
	SiteURL             string
	PaymentReceiptEmail string
	EmailServiceURL     string
}

type OutboxConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
}

type SweepConfig struct {
	Schedule         string
	CartAbandonAfter time.Duration
	FollowUpAfter    time.Duration
	BatchSize        int
}

// UpstreamConfig locates sibling services. An empty InventoryURL makes the
// orders service read the catalog tables directly.
type UpstreamConfig struct {
	OrdersURL    string
	InventoryURL string
}

type TelemetryConfig struct {
	Enabled        bool
	ServiceVersion string
}

func setDefaults(v *viper.Viper, defaultPort string) {
	v.SetDefault("port", defaultPort)
	v.SetDefault("log_level", "info")
	v.SetDefault("db_schema", "storefront")
	v.SetDefault("trusted_proxies", 0)
	v.SetDefault("checkout_rate_limit_max", 5)
	v.SetDefault("checkout_rate_limit_window", 5*time.Minute)
	v.SetDefault("order_expiry", 48*time.Hour)
	v.SetDefault("order_currency", "CAD")
	v.SetDefault("mail_from", "orders@example.com")
	v.SetDefault("site_url", "http://localhost:8080")
	v.SetDefault("payment_receipt_email", "payments@example.com")
	v.SetDefault("email_service_url", "http://localhost:8084")
	v.SetDefault("outbox_poll_interval", 2*time.Second)
	v.SetDefault("outbox_batch_size", 20)
	v.SetDefault("outbox_max_attempts", 5)
	v.SetDefault("sweep_schedule", "0 */15 * * * *")
	v.SetDefault("cart_abandon_after", 24*time.Hour)
	v.SetDefault("follow_up_after", 7*24*time.Hour)
	v.SetDefault("sweep_batch_size", 100)
	v.SetDefault("orders_service_url", "")
	v.SetDefault("inventory_service_url", "")
	v.SetDefault("otel_enabled", false)
	v.SetDefault("service_version", "0.1.0")
}

// Load reads configuration from the environment. Every key maps to the
// upper-cased environment variable of the same name (CHECKOUT_RATE_LIMIT_MAX).
func Load(defaultPort string) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v, defaultPort)
	for _, key := range []string{"postgres_url", "redis_url", "kafka_brokers", "admin_token"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(v.GetString("log_level"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	cfg := &Config{
		Port:           v.GetString("port"),
		LogLevel:       level,
		PostgresURL:    v.GetString("postgres_url"),
		DBSchema:       v.GetString("db_schema"),
		RedisURL:       v.GetString("redis_url"),
		Brokers:        splitList(v.GetString("kafka_brokers")),
		AdminToken:     v.GetString("admin_token"),
		TrustedProxies: v.GetInt("trusted_proxies"),
		Checkout: CheckoutConfig{
			RateLimitMax:    v.GetInt("checkout_rate_limit_max"),
			RateLimitWindow: v.GetDuration("checkout_rate_limit_window"),
			OrderExpiry:     v.GetDuration("order_expiry"),
			Currency:        v.GetString("order_currency"),
		},
		Mail: MailConfig{
			From:                v.GetString("mail_from"),
			SiteURL:             strings.TrimRight(v.GetString("site_url"), "/"),
			PaymentReceiptEmail: v.GetString("payment_receipt_email"),
			EmailServiceURL:     strings.TrimRight(v.GetString("email_service_url"), "/"),
		},
		Outbox: OutboxConfig{
			PollInterval: v.GetDuration("outbox_poll_interval"),
			BatchSize:    v.GetInt("outbox_batch_size"),
			MaxAttempts:  v.GetInt("outbox_max_attempts"),
		},
		Sweep: SweepConfig{
			Schedule:         v.GetString("sweep_schedule"),
			CartAbandonAfter: v.GetDuration("cart_abandon_after"),
			FollowUpAfter:    v.GetDuration("follow_up_after"),
			BatchSize:        v.GetInt("sweep_batch_size"),
		},
		Upstreams: UpstreamConfig{
			OrdersURL:    strings.TrimRight(v.GetString("orders_service_url"), "/"),
			InventoryURL: strings.TrimRight(v.GetString("inventory_service_url"), "/"),
		},
		Telemetry: TelemetryConfig{
			Enabled:        v.GetBool("otel_enabled"),
			ServiceVersion: v.GetString("service_version"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Checkout.RateLimitMax < 1 {
		return fmt.Errorf("CHECKOUT_RATE_LIMIT_MAX must be positive, got %d", c.Checkout.RateLimitMax)
	}
	if c.Checkout.RateLimitWindow <= 0 {
		return fmt.Errorf("CHECKOUT_RATE_LIMIT_WINDOW must be positive")
	}
	if c.Checkout.OrderExpiry <= 0 {
		return fmt.Errorf("ORDER_EXPIRY must be positive")
	}
	if c.TrustedProxies < 0 {
		return fmt.Errorf("TRUSTED_PROXIES must not be negative, got %d", c.TrustedProxies)
	}
	if c.Outbox.MaxAttempts < 1 {
		return fmt.Errorf("OUTBOX_MAX_ATTEMPTS must be positive, got %d", c.Outbox.MaxAttempts)
	}
	return nil
}

// RequirePostgres is used by binaries that cannot start without a database.
func (c *Config) RequirePostgres() error {
	if c.PostgresURL == "" {
		return fmt.Errorf("POSTGRES_URL environment variable is required")
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
