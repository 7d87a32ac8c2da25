package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Auth     AuthConfig
	Stripe   StripeConfig
	Notify   NotifyConfig
	QRSecret string
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// StoreTimeout bounds every store and collaborator call; a deadline hit
	// surfaces as a retryable error, never as assumed success.
	StoreTimeout time.Duration
}

type DatabaseConfig struct {
	Host          string
	Port          string
	Username      string
	Password      string
	Database      string
	MaxOpenConns  int
	MaxIdleConns  int
	MaxLifetime   time.Duration
	MigrationsDir string
}

type RedisConfig struct {
	Addr string
}

type KafkaConfig struct {
	Brokers []string
	GroupID string
	Enabled bool
	Topics  TopicConfig
}

type TopicConfig struct {
	PurchaseEvents string
	PaymentEvents  string
}

type AuthConfig struct {
	OIDCIssuer      string
	AdminServiceURL string
	AdminCacheTTL   time.Duration
}

type StripeConfig struct {
	WebhookSecret string
}

type NotifyConfig struct {
	BaseURL string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8080"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
			StoreTimeout: time.Duration(getEnvInt("STORE_TIMEOUT_SECONDS", 5)) * time.Second,
		},
		Database: DatabaseConfig{
			Host:          getEnv("DB_HOST", "localhost"),
			Port:          getEnv("DB_PORT", "5432"),
			Username:      getEnv("DB_USERNAME", "summit_user"),
			Password:      getEnv("DB_PASSWORD", "summit_pass"),
			Database:      getEnv("DB_NAME", "summit_tickets"),
			MaxOpenConns:  getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:   time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
			MigrationsDir: getEnv("MIGRATIONS_DIR", "./migrations"),
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", "localhost:6379"),
		},
		Kafka: KafkaConfig{
			Brokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			GroupID: getEnv("KAFKA_GROUP_ID", "summit-ticketing-group"),
			Enabled: getEnvBool("KAFKA_ENABLED", true),
			Topics: TopicConfig{
				PurchaseEvents: getEnv("KAFKA_TOPIC_PURCHASES", "purchase-events"),
				PaymentEvents:  getEnv("KAFKA_TOPIC_PAYMENTS", "payment-events"),
			},
		},
		Auth: AuthConfig{
			OIDCIssuer:      getEnv("OIDC_ISSUER", ""),
			AdminServiceURL: getEnv("ADMIN_SERVICE_URL", "http://localhost:8090"),
			AdminCacheTTL:   time.Duration(getEnvInt("ADMIN_CACHE_TTL_MINUTES", 5)) * time.Minute,
		},
		Stripe: StripeConfig{
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		},
		Notify: NotifyConfig{
			BaseURL: getEnv("NOTIFY_SERVICE_URL", ""),
		},
		QRSecret: getEnv("QR_SECRET", "summit-dev-secret"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
