package telemetry

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds the configuration for telemetry
type Config struct {
	// Production mode - OTLP
	OTLPEndpoint   string
	ServiceName    string
	Environment    string
	ServiceVersion string

	// Testing mode - for local-otel file export
	ExportToFile    bool
	MetricsFilePath string
	TracesFilePath  string
	LogsFilePath    string

	SamplingRate    float64
	LogLevel        string
	LogFormat       string // "json" or "text"
	MetricsInterval int    // seconds

	// MetricsAddr is where the Prometheus handler listens, e.g. ":9464".
	// Empty disables the listener.
	MetricsAddr string

	EnableTracing bool
	EnableMetrics bool
}

// SetDefaults registers the telemetry keys and their defaults on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("telemetry.service_name", "stackmob")
	v.SetDefault("telemetry.environment", "development")
	v.SetDefault("telemetry.service_version", "unknown")
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")
	v.SetDefault("telemetry.export_to_file", false)
	v.SetDefault("telemetry.metrics_file", "/tmp/otel/metrics.json")
	v.SetDefault("telemetry.traces_file", "/tmp/otel/traces.json")
	v.SetDefault("telemetry.logs_file", "/tmp/otel/logs.json")
	v.SetDefault("telemetry.sampling_rate", 1.0)
	v.SetDefault("telemetry.metrics_interval", 10)
	v.SetDefault("telemetry.metrics_addr", "")
	v.SetDefault("telemetry.tracing", false)
	v.SetDefault("telemetry.metrics", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// NewConfig reads the telemetry section of v. Call SetDefaults first.
func NewConfig(v *viper.Viper) *Config {
	cfg := &Config{
		ServiceName:     v.GetString("telemetry.service_name"),
		Environment:     v.GetString("telemetry.environment"),
		ServiceVersion:  v.GetString("telemetry.service_version"),
		ExportToFile:    v.GetBool("telemetry.export_to_file"),
		SamplingRate:    v.GetFloat64("telemetry.sampling_rate"),
		MetricsInterval: v.GetInt("telemetry.metrics_interval"),
		MetricsAddr:     v.GetString("telemetry.metrics_addr"),
		EnableTracing:   v.GetBool("telemetry.tracing"),
		EnableMetrics:   v.GetBool("telemetry.metrics"),
		LogLevel:        v.GetString("log.level"),
		LogFormat:       v.GetString("log.format"),
	}

	if cfg.ExportToFile {
		cfg.MetricsFilePath = v.GetString("telemetry.metrics_file")
		cfg.TracesFilePath = v.GetString("telemetry.traces_file")
		cfg.LogsFilePath = v.GetString("telemetry.logs_file")
	} else {
		cfg.OTLPEndpoint = v.GetString("telemetry.otlp_endpoint")
	}
	if cfg.MetricsInterval <= 0 {
		cfg.MetricsInterval = 10
	}
	return cfg
}

// NewConfigFromEnv creates a config from STACKMOB_* environment variables,
// e.g. STACKMOB_TELEMETRY_TRACING=true or STACKMOB_LOG_LEVEL=debug
func NewConfigFromEnv() *Config {
	v := viper.New()
	v.SetEnvPrefix("stackmob")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return NewConfig(v)
}
