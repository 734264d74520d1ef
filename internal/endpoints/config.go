package endpoints

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the endpoint store and broadcaster configuration
type Config struct {
	// Redis connection settings
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int
	DialTimeout   time.Duration
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	PoolSize      int

	// KeyPrefix namespaces stored endpoints, keyed by API key underneath
	KeyPrefix string
	// TTL bounds how long a learned endpoint outlives its last redirect.
	// Zero keeps it forever.
	TTL time.Duration

	// NATS connection settings
	NATSURL      string
	NATSName     string
	NATSUser     string
	NATSPassword string
	Subject      string
}

// DefaultConfig returns a config for a local Redis and NATS
func DefaultConfig() *Config {
	return &Config{
		RedisHost:    "localhost",
		RedisPort:    6379,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		KeyPrefix:    "stackmob:endpoints",
		TTL:          24 * time.Hour,
		NATSURL:      "nats://localhost:4222",
		NATSName:     "stackmob",
		Subject:      "stackmob.endpoints",
	}
}

// NewConfigFromEnv creates a new Config from environment variables
func NewConfigFromEnv() (*Config, error) {
	cfg := DefaultConfig()

	port, err := strconv.Atoi(getEnvOrDefault("STACKMOB_REDIS_PORT", "6379"))
	if err != nil {
		return nil, fmt.Errorf("invalid STACKMOB_REDIS_PORT: %w", err)
	}

	db, err := strconv.Atoi(getEnvOrDefault("STACKMOB_REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid STACKMOB_REDIS_DB: %w", err)
	}

	ttl, err := parseDuration(getEnvOrDefault("STACKMOB_ENDPOINT_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid STACKMOB_ENDPOINT_TTL: %w", err)
	}

	cfg.RedisHost = getEnvOrDefault("STACKMOB_REDIS_HOST", cfg.RedisHost)
	cfg.RedisPort = port
	cfg.RedisPassword = os.Getenv("STACKMOB_REDIS_PASSWORD")
	cfg.RedisDB = db
	cfg.TTL = ttl
	cfg.KeyPrefix = getEnvOrDefault("STACKMOB_ENDPOINT_PREFIX", cfg.KeyPrefix)
	cfg.NATSURL = getEnvOrDefault("STACKMOB_NATS_URL", cfg.NATSURL)
	cfg.NATSUser = os.Getenv("STACKMOB_NATS_USER")
	cfg.NATSPassword = os.Getenv("STACKMOB_NATS_PASSWORD")
	cfg.Subject = getEnvOrDefault("STACKMOB_ENDPOINT_SUBJECT", cfg.Subject)
	return cfg, nil
}

// RedisAddress returns the Redis server address
func (c *Config) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration accepts a Go duration ("1h30m") or whole seconds ("90")
func parseDuration(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	if seconds, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	return 0, fmt.Errorf("invalid duration format: %s", s)
}
