package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

var ErrEmptyEnvironmentVariable = errors.New("empty environment variable")

// Config holds all application configuration
type Config struct {
	Database Database
	Gateway  Gateway
	Auth     Auth
	Kafka    Kafka
	Redis    Redis
	Campaign Campaign
	Server   Server
}

// Database holds database connection settings
type Database struct {
	Host     string
	Username string
	Password string
	Name     string
}

// Gateway holds partner gateway settings and the static partner credentials.
type Gateway struct {
	BaseURL            string
	PartnerEmail       string
	PartnerPassword    string
	CredentialKey      string // master secret for encrypting persisted tokens
	WebhookCallbackURL string
	DefaultCountryCode string
}

// Auth holds authentication-related configuration
type Auth struct {
	JWTSecret string
}

// Kafka holds event streaming configuration
type Kafka struct {
	Brokers       string
	Topic         string
	ConsumerGroup string
}

// Redis holds notification channel configuration
type Redis struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Campaign holds bulk dispatch tuning
type Campaign struct {
	Workers         int           // concurrent campaign workers
	MessageInterval time.Duration // delay between messages within one campaign
}

// Server holds HTTP server configuration
type Server struct {
	Port      int
	WebAppURI string
}

// Load reads and validates all required environment variables
func Load() (*Config, error) {
	// Load env.local in non-production environments
	if os.Getenv("GO_ENV") != "production" {
		if err := godotenv.Load("env.local"); err != nil {
			return nil, fmt.Errorf("failed to load env.local: %w", err)
		}
	}

	cfg := &Config{}

	// Database configuration
	var err error
	if cfg.Database.Host, err = requireEnv("DB_HOST"); err != nil {
		return nil, err
	}
	if cfg.Database.Username, err = requireEnv("DB_USERNAME"); err != nil {
		return nil, err
	}
	if cfg.Database.Password, err = requireEnv("DB_PASSWORD"); err != nil {
		return nil, err
	}
	if cfg.Database.Name, err = requireEnv("DB_NAME"); err != nil {
		return nil, err
	}

	// Gateway configuration. The credential key and partner login are hard
	// requirements: every downstream component needs them.
	if cfg.Gateway.BaseURL, err = requireEnv("GATEWAY_BASE_URL"); err != nil {
		return nil, err
	}
	if cfg.Gateway.PartnerEmail, err = requireEnv("GATEWAY_PARTNER_EMAIL"); err != nil {
		return nil, err
	}
	if cfg.Gateway.PartnerPassword, err = requireEnv("GATEWAY_PARTNER_PASSWORD"); err != nil {
		return nil, err
	}
	if cfg.Gateway.CredentialKey, err = requireEnv("CREDENTIAL_MASTER_KEY"); err != nil {
		return nil, err
	}
	if cfg.Gateway.WebhookCallbackURL, err = requireEnv("WEBHOOK_CALLBACK_URL"); err != nil {
		return nil, err
	}
	cfg.Gateway.DefaultCountryCode = getEnvWithDefault("DEFAULT_COUNTRY_CODE", "65")

	// Auth configuration
	if cfg.Auth.JWTSecret, err = requireEnv("JWT_SECRET"); err != nil {
		return nil, err
	}

	// Kafka configuration
	if cfg.Kafka.Brokers, err = requireEnv("KAFKA_BROKERS"); err != nil {
		return nil, err
	}
	cfg.Kafka.Topic = getEnvWithDefault("KAFKA_TOPIC", "campaign-events")
	cfg.Kafka.ConsumerGroup = getEnvWithDefault("KAFKA_CONSUMER_GROUP", "campaign-workers")

	// Redis configuration
	cfg.Redis.Host = getEnvWithDefault("REDIS_HOST", "localhost")
	redisPort := getEnvWithDefault("REDIS_PORT", "6379")
	cfg.Redis.Port, err = strconv.Atoi(redisPort)
	if err != nil {
		return nil, fmt.Errorf("failed to parse REDIS_PORT: %w", err)
	}
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	redisDB := getEnvWithDefault("REDIS_DB", "0")
	cfg.Redis.DB, err = strconv.Atoi(redisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to parse REDIS_DB: %w", err)
	}

	// Campaign configuration
	campaignWorkers := getEnvWithDefault("CAMPAIGN_WORKERS", "4")
	cfg.Campaign.Workers, err = strconv.Atoi(campaignWorkers)
	if err != nil {
		return nil, fmt.Errorf("failed to parse CAMPAIGN_WORKERS: %w", err)
	}
	intervalMS := getEnvWithDefault("MESSAGE_INTERVAL_MS", "1000")
	ms, err := strconv.Atoi(intervalMS)
	if err != nil {
		return nil, fmt.Errorf("failed to parse MESSAGE_INTERVAL_MS: %w", err)
	}
	cfg.Campaign.MessageInterval = time.Duration(ms) * time.Millisecond

	// Server configuration
	serverPort, err := requireEnv("SERVER_PORT")
	if err != nil {
		return nil, err
	}
	cfg.Server.Port, err = strconv.Atoi(serverPort)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SERVER_PORT: %w", err)
	}
	cfg.Server.WebAppURI = getEnvWithDefault("WEBAPP_URI", "http://localhost:3000")

	return cfg, nil
}

// RedisAddr returns the host:port address of the notification Redis.
func (c *Redis) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ConnectionString returns a PostgreSQL connection string
func (c *Database) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s",
		c.Username, c.Password, c.Host, c.Name)
}

// requireEnv retrieves an environment variable or returns an error if empty
func requireEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%s is not set: %w", key, ErrEmptyEnvironmentVariable)
	}
	return value, nil
}

// getEnvWithDefault retrieves an environment variable or returns a default value
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
