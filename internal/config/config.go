package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates application configuration values.
type Config struct {
	HTTP      HTTPConfig
	Database  DatabaseConfig
	Insurance InsuranceConfig
	Payment   PaymentConfig
	VietQR    VietQRConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Logging   LoggingConfig
	Routing   RoutingConfig
}

// HTTPConfig governs HTTP server behaviour.
type HTTPConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig describes Postgres connectivity. DSN wins over the
// individual fields when set.
type DatabaseConfig struct {
	DSN      string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// InsuranceConfig carries the statutory contribution parameters. Both change
// by decree, not by release, so they are deployment configuration.
type InsuranceConfig struct {
	BaseSalaryVND   int64
	RateBasisPoints int64
}

// PaymentConfig governs the payment lifecycle.
type PaymentConfig struct {
	TTL           time.Duration
	CacheTTL      time.Duration
	BankCode      string
	AccountNumber string
	AccountName   string
	QRTemplate    string
}

// VietQRConfig holds api.vietqr.io credentials. The API provider is skipped
// when the client ID is empty; the quick-link fallback needs no credentials.
type VietQRConfig struct {
	APIURL      string
	APIClientID string
	APIKey      string
}

// RedisConfig describes the optional payment status cache.
type RedisConfig struct {
	Addr string
}

// KafkaConfig describes the optional payment event stream.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level  string
	Format string // text|json
}

// RoutingConfig locates the route allowlist.
type RoutingConfig struct {
	AllowlistPath string
	Entrypoint    string
}

const (
	defaultHost            = "0.0.0.0"
	defaultPort            = 8080
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 15 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultLoggingLevel    = "info"
	defaultLoggingFormat   = "text"

	defaultBaseSalaryVND   = 2_340_000
	defaultRateBasisPoints = 450
	defaultPaymentTTL      = 30 * time.Minute
	defaultCacheTTL        = 5 * time.Second
	defaultQRTemplate      = "compact2"
	defaultKafkaTopic      = "payment-status-changed"
	defaultAllowlistPath   = "config/routing/allowlist.yaml"
	defaultEntrypoint      = "server"
)

// Load reads configuration from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		HTTP: HTTPConfig{
			Host:            valueOrDefault("SERVER_HOST", defaultHost),
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			IdleTimeout:     defaultIdleTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Database: DatabaseConfig{
			DSN:      os.Getenv("DATABASE_URL"),
			Host:     valueOrDefault("DB_HOST", "127.0.0.1"),
			Port:     valueOrDefault("DB_PORT", "5432"),
			User:     valueOrDefault("DB_USER", "app"),
			Password: valueOrDefault("DB_PASSWORD", "app"),
			Name:     valueOrDefault("DB_NAME", "bhxh_portal"),
			SSLMode:  valueOrDefault("DB_SSLMODE", "disable"),
		},
		Insurance: InsuranceConfig{
			BaseSalaryVND:   parseInt64WithDefault("BHYT_BASE_SALARY_VND", defaultBaseSalaryVND),
			RateBasisPoints: parseInt64WithDefault("BHYT_RATE_BASIS_POINTS", defaultRateBasisPoints),
		},
		Payment: PaymentConfig{
			TTL:           defaultPaymentTTL,
			CacheTTL:      defaultCacheTTL,
			BankCode:      os.Getenv("PAYMENT_BANK_CODE"),
			AccountNumber: os.Getenv("PAYMENT_ACCOUNT_NUMBER"),
			AccountName:   os.Getenv("PAYMENT_ACCOUNT_NAME"),
			QRTemplate:    valueOrDefault("PAYMENT_QR_TEMPLATE", defaultQRTemplate),
		},
		VietQR: VietQRConfig{
			APIURL:      os.Getenv("VIETQR_API_URL"),
			APIClientID: os.Getenv("VIETQR_CLIENT_ID"),
			APIKey:      os.Getenv("VIETQR_API_KEY"),
		},
		Redis: RedisConfig{
			Addr: os.Getenv("REDIS_ADDR"),
		},
		Kafka: KafkaConfig{
			Brokers: splitCSV(os.Getenv("KAFKA_BROKERS")),
			Topic:   valueOrDefault("KAFKA_TOPIC", defaultKafkaTopic),
		},
		Logging: LoggingConfig{
			Level:  valueOrDefault("LOG_LEVEL", defaultLoggingLevel),
			Format: valueOrDefault("LOG_FORMAT", defaultLoggingFormat),
		},
		Routing: RoutingConfig{
			AllowlistPath: valueOrDefault("ROUTING_ALLOWLIST_PATH", defaultAllowlistPath),
			Entrypoint:    valueOrDefault("ROUTING_ENTRYPOINT", defaultEntrypoint),
		},
	}

	port, err := parsePort("SERVER_PORT", defaultPort)
	if err != nil {
		return Config{}, err
	}
	cfg.HTTP.Port = port

	if v := os.Getenv("PAYMENT_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PAYMENT_TTL: %w", err)
		}
		cfg.Payment.TTL = d
	}
	if v := os.Getenv("PAYMENT_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PAYMENT_CACHE_TTL: %w", err)
		}
		cfg.Payment.CacheTTL = d
	}

	if cfg.Insurance.BaseSalaryVND <= 0 {
		return Config{}, fmt.Errorf("BHYT_BASE_SALARY_VND must be positive, got %d", cfg.Insurance.BaseSalaryVND)
	}
	if cfg.Insurance.RateBasisPoints <= 0 {
		return Config{}, fmt.Errorf("BHYT_RATE_BASIS_POINTS must be positive, got %d", cfg.Insurance.RateBasisPoints)
	}

	return cfg, nil
}

// PostgresDSN returns the explicit DSN, or one assembled from the DB_* parts.
func (c DatabaseConfig) PostgresDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   c.Host + ":" + c.Port,
		Path:   "/" + c.Name,
	}
	q := u.Query()
	q.Set("sslmode", c.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseInt64WithDefault(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if val, err := strconv.ParseInt(v, 10, 64); err == nil {
			return val
		}
	}
	return fallback
}

func parsePort(key string, fallback int) (int, error) {
	if v := os.Getenv(key); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
		}
		if port <= 0 || port > 65535 {
			return 0, fmt.Errorf("port %d is out of range", port)
		}
		return port, nil
	}
	return fallback, nil
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
