package sdk

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// Version is the SDK version reported in the User-Agent header
	Version = "1.0.0"

	// DefaultAPIHost is the platform API endpoint
	DefaultAPIHost = "api.mob1.stackmob.com"

	// DefaultPushHost is the push notification endpoint
	DefaultPushHost = "push.mob1.stackmob.com"

	// DefaultUserObjectName is the schema that holds user accounts
	DefaultUserObjectName = "user"

	// DefaultMaxRedirects bounds how many redirects a single request follows
	DefaultMaxRedirects = 5

	// NoRedirects as Config.MaxRedirects delivers 3xx responses as-is
	// without following them or updating the session's hosts
	NoRedirects = -1
)

// Config holds the configuration for a StackMob client.
// APIKey and APISecret are required; everything else has a default.
//
// Configuration can be built using the fluent builder pattern:
//
//	config := sdk.DefaultConfig().
//	    WithCredentials("public-key", "private-key").
//	    WithAppName("birbs").
//	    WithAPIVersion(1).
//	    WithTimeout(10 * time.Second)
//
//	client, err := sdk.NewClient(config)
type Config struct {
	// APIKey and APISecret are the OAuth consumer key pair of the app.
	APIKey    string
	APISecret string

	// AppName is appended to the User-Agent header when set.
	AppName string

	// APIVersion selects the app version on the platform.
	// 0 is the development version.
	APIVersion int

	// UserObjectName is the schema that stores users.
	// Default: "user"
	UserObjectName string

	// APIHost and PushHost are the initial endpoints. Redirects
	// returned by the platform may rewrite them at runtime.
	APIHost  string
	PushHost string

	// Secure sends regular requests over https. User session
	// requests always use https.
	Secure bool

	// Timeout is the HTTP request timeout applied by the default transport.
	// Default: 30s
	Timeout time.Duration

	// MaxRedirects is the number of redirects one request may follow
	// before failing with ErrRedirectLoop. Zero selects the default;
	// NoRedirects turns following off.
	// Default: 5
	MaxRedirects int

	// TransportConfig holds HTTP connection pool settings for the default transport.
	TransportConfig TransportConfig

	// Transport signs and sends requests. If nil, an OAuth1 signing
	// transport over net/http is created.
	Transport Transport

	// Headers are custom headers to include in all requests.
	Headers map[string]string

	// Observer for monitoring requests, redirects and circuit state.
	// If nil, NoopObserver is used.
	Observer Observer

	// RedirectHandler is called after a redirect changed the API or
	// push endpoint. Use it to persist the new hosts.
	RedirectHandler RedirectHandler

	// CircuitBreakerConfig enables a circuit breaker per host.
	// If nil, circuit breaking is disabled.
	CircuitBreakerConfig *CircuitBreakerConfig

	// RateLimit throttles dispatch on the worker side. If nil, requests
	// are dispatched as fast as they are submitted.
	RateLimit *RateLimitConfig

	// Logger receives pipeline and deserialization logs.
	// Default: logrus.StandardLogger()
	Logger logrus.FieldLogger
}

// TransportConfig holds HTTP transport configuration for connection pooling.
//
// Example:
//
//	config.TransportConfig = sdk.TransportConfig{
//	    MaxIdleConns:    200,
//	    MaxConnsPerHost: 50,
//	    IdleConnTimeout: 120 * time.Second,
//	}
type TransportConfig struct {
	// MaxIdleConns controls the maximum number of idle connections
	// across all hosts. Zero means no limit.
	// Default: 100
	MaxIdleConns int

	// MaxConnsPerHost controls the maximum connections per host.
	// Default: 10
	MaxConnsPerHost int

	// IdleConnTimeout is the maximum time an idle connection will remain idle.
	// Default: 90s
	IdleConnTimeout time.Duration
}

// RateLimitConfig configures the client-side token bucket
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained dispatch rate
	RequestsPerSecond float64
	// Burst is the bucket size. Default: 1
	Burst int
}

// DefaultConfig returns a Config with defaults for everything except the
// credentials, which must be set before NewClient is called.
func DefaultConfig() *Config {
	return &Config{
		UserObjectName: DefaultUserObjectName,
		APIHost:        DefaultAPIHost,
		PushHost:       DefaultPushHost,
		Timeout:        30 * time.Second,
		MaxRedirects:   DefaultMaxRedirects,
		TransportConfig: TransportConfig{
			MaxIdleConns:    100,
			MaxConnsPerHost: 10,
			IdleConnTimeout: 90 * time.Second,
		},
		Headers:  make(map[string]string),
		Observer: &NoopObserver{},
	}
}

// WithCredentials sets the OAuth consumer key and secret
func (c *Config) WithCredentials(key, secret string) *Config {
	c.APIKey = key
	c.APISecret = secret
	return c
}

// WithAppName sets the app name reported in the User-Agent header
func (c *Config) WithAppName(name string) *Config {
	c.AppName = name
	return c
}

// WithAPIVersion selects the app version requested in the Accept header
func (c *Config) WithAPIVersion(version int) *Config {
	c.APIVersion = version
	return c
}

// WithUserObjectName sets the schema used for login and password operations
func (c *Config) WithUserObjectName(name string) *Config {
	c.UserObjectName = name
	return c
}

// WithHosts sets the initial API and push endpoints. Empty values keep the current host.
//
// Example:
//
//	config := sdk.DefaultConfig().
//	    WithHosts("api.staging.example.com", "push.staging.example.com")
func (c *Config) WithHosts(apiHost, pushHost string) *Config {
	if apiHost != "" {
		c.APIHost = apiHost
	}
	if pushHost != "" {
		c.PushHost = pushHost
	}
	return c
}

// WithSecure sends every request over https
func (c *Config) WithSecure(secure bool) *Config {
	c.Secure = secure
	return c
}

// WithTimeout sets the request timeout of the default transport
func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.Timeout = timeout
	return c
}

// WithMaxRedirects bounds the number of redirects a request may follow.
// Pass NoRedirects to receive 3xx responses unfollowed.
func (c *Config) WithMaxRedirects(hops int) *Config {
	c.MaxRedirects = hops
	return c
}

// WithHeader adds a custom header to be sent with all requests.
func (c *Config) WithHeader(key, value string) *Config {
	if c.Headers == nil {
		c.Headers = make(map[string]string)
	}
	c.Headers[key] = value
	return c
}

// WithTransport replaces the signing transport
func (c *Config) WithTransport(transport Transport) *Config {
	c.Transport = transport
	return c
}

// WithObserver sets a custom observer for monitoring SDK operations.
func (c *Config) WithObserver(observer Observer) *Config {
	c.Observer = observer
	return c
}

// WithRedirectHandler registers a callback for endpoint changes caused by redirects.
//
// Example:
//
//	config := sdk.DefaultConfig().
//	    WithRedirectHandler(func(n sdk.RedirectNotice) {
//	        log.Printf("platform moved us to %s", n.NewURL)
//	    })
func (c *Config) WithRedirectHandler(handler RedirectHandler) *Config {
	c.RedirectHandler = handler
	return c
}

// WithCircuitBreaker enables a circuit breaker per host.
//
// Example:
//
//	config := sdk.DefaultConfig().
//	    WithCircuitBreaker(sdk.DefaultCircuitBreakerConfig())
func (c *Config) WithCircuitBreaker(config CircuitBreakerConfig) *Config {
	c.CircuitBreakerConfig = &config
	return c
}

// WithRateLimit throttles dispatch to rps requests per second
func (c *Config) WithRateLimit(rps float64, burst int) *Config {
	c.RateLimit = &RateLimitConfig{RequestsPerSecond: rps, Burst: burst}
	return c
}

// WithLogger sets the logger used by the client
func (c *Config) WithLogger(logger logrus.FieldLogger) *Config {
	c.Logger = logger
	return c
}

// Validate validates the configuration and sets defaults for missing values.
// This is called automatically by NewClient.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("%w: api key is required", ErrInvalidConfig)
	}
	if c.APISecret == "" {
		return fmt.Errorf("%w: api secret is required", ErrInvalidConfig)
	}
	if c.APIVersion < 0 {
		return fmt.Errorf("%w: api version must not be negative", ErrInvalidConfig)
	}
	if c.UserObjectName == "" {
		c.UserObjectName = DefaultUserObjectName
	}
	if !validName(c.UserObjectName) {
		return &ConfigurationError{Subject: "schema", Name: c.UserObjectName, Reason: nameRule}
	}
	if c.APIHost == "" {
		c.APIHost = DefaultAPIHost
	}
	if c.PushHost == "" {
		c.PushHost = DefaultPushHost
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	switch {
	case c.MaxRedirects == 0:
		c.MaxRedirects = DefaultMaxRedirects
	case c.MaxRedirects < 0:
		c.MaxRedirects = NoRedirects
	}
	if c.Observer == nil {
		c.Observer = &NoopObserver{}
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
	if c.CircuitBreakerConfig != nil {
		if c.CircuitBreakerConfig.FailureThreshold <= 0 {
			c.CircuitBreakerConfig.FailureThreshold = 5
		}
		if c.CircuitBreakerConfig.SuccessThreshold <= 0 {
			c.CircuitBreakerConfig.SuccessThreshold = 2
		}
		if c.CircuitBreakerConfig.Timeout <= 0 {
			c.CircuitBreakerConfig.Timeout = 30 * time.Second
		}
		if c.CircuitBreakerConfig.HalfOpenRequests <= 0 {
			c.CircuitBreakerConfig.HalfOpenRequests = 3
		}
	}
	if c.RateLimit != nil {
		if c.RateLimit.RequestsPerSecond <= 0 {
			return fmt.Errorf("%w: rate limit must be positive", ErrInvalidConfig)
		}
		if c.RateLimit.Burst <= 0 {
			c.RateLimit.Burst = 1
		}
	}
	return nil
}
