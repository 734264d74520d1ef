package cli

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/birbparty/stackmob/internal/endpoints"
	"github.com/birbparty/stackmob/internal/telemetry"
	"github.com/birbparty/stackmob/sdk"
)

// Config is the CLI configuration loaded from stackmob.yaml and STACKMOB_*
// environment variables
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	API       APIConfig       `mapstructure:"api"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
	Endpoints EndpointsConfig `mapstructure:"endpoints"`
}

// AppConfig identifies the StackMob app
type AppConfig struct {
	Key        string `mapstructure:"key"`
	Secret     string `mapstructure:"secret"`
	Name       string `mapstructure:"name"`
	Version    int    `mapstructure:"version"`
	UserObject string `mapstructure:"user_object"`
}

// APIConfig holds request pipeline settings
type APIConfig struct {
	Host         string        `mapstructure:"host"`
	PushHost     string        `mapstructure:"push_host"`
	Secure       bool          `mapstructure:"secure"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxRedirects int           `mapstructure:"max_redirects"`
	RateLimit    float64       `mapstructure:"rate_limit"`
	Burst        int           `mapstructure:"burst"`
}

// BreakerConfig enables the per-host circuit breaker
type BreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	FailureThreshold int           `mapstructure:"failure_threshold"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// EndpointsConfig enables sharing redirected endpoints through Redis and NATS
type EndpointsConfig struct {
	Sync      bool          `mapstructure:"sync"`
	RedisAddr string        `mapstructure:"redis_addr"`
	RedisDB   int           `mapstructure:"redis_db"`
	TTL       time.Duration `mapstructure:"ttl"`
	NATSURL   string        `mapstructure:"nats_url"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.key", "")
	v.SetDefault("app.secret", "")
	v.SetDefault("app.name", "")
	v.SetDefault("app.version", 0)
	v.SetDefault("app.user_object", sdk.DefaultUserObjectName)
	v.SetDefault("api.host", sdk.DefaultAPIHost)
	v.SetDefault("api.push_host", sdk.DefaultPushHost)
	v.SetDefault("api.secure", false)
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("api.max_redirects", sdk.DefaultMaxRedirects)
	v.SetDefault("api.rate_limit", 0.0)
	v.SetDefault("api.burst", 1)
	v.SetDefault("breaker.enabled", false)
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.timeout", 30*time.Second)
	v.SetDefault("endpoints.sync", false)
	v.SetDefault("endpoints.redis_addr", "localhost:6379")
	v.SetDefault("endpoints.redis_db", 0)
	v.SetDefault("endpoints.ttl", 24*time.Hour)
	v.SetDefault("endpoints.nats_url", "nats://localhost:4222")
	telemetry.SetDefaults(v)
}

// newViper returns a viper reading STACKMOB_* variables, where
// STACKMOB_APP_KEY maps to app.key
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("stackmob")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// loadConfig reads file, or stackmob.yaml from the working directory and
// $HOME/.stackmob when file is empty. A missing default file is not an
// error.
func loadConfig(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("stackmob")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.stackmob")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// SDKConfig builds the client configuration. Validation is left to
// sdk.NewClient.
func (c *Config) SDKConfig() *sdk.Config {
	config := sdk.DefaultConfig().
		WithCredentials(c.App.Key, c.App.Secret).
		WithAppName(c.App.Name).
		WithAPIVersion(c.App.Version).
		WithUserObjectName(c.App.UserObject).
		WithHosts(c.API.Host, c.API.PushHost).
		WithSecure(c.API.Secure).
		WithTimeout(c.API.Timeout).
		WithMaxRedirects(c.API.MaxRedirects)

	if c.API.RateLimit > 0 {
		config.WithRateLimit(c.API.RateLimit, c.API.Burst)
	}
	if c.Breaker.Enabled {
		breaker := sdk.DefaultCircuitBreakerConfig()
		breaker.FailureThreshold = c.Breaker.FailureThreshold
		breaker.Timeout = c.Breaker.Timeout
		config.WithCircuitBreaker(breaker)
	}
	return config
}

// EndpointStoreConfig converts the endpoints section for the endpoints package
func (c *Config) EndpointStoreConfig() (*endpoints.Config, error) {
	cfg := endpoints.DefaultConfig()

	host, port, err := splitHostPort(c.Endpoints.RedisAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoints.redis_addr: %w", err)
	}
	cfg.RedisHost = host
	cfg.RedisPort = port
	cfg.RedisDB = c.Endpoints.RedisDB
	cfg.TTL = c.Endpoints.TTL
	cfg.NATSURL = c.Endpoints.NATSURL
	return cfg, nil
}

func splitHostPort(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port %q", portStr)
	}
	return host, port, nil
}
