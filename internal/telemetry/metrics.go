package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/birbparty/stackmob/sdk"
)

const meterName = "github.com/birbparty/stackmob"

var (
	metricsMu     sync.Mutex
	meterProvider *sdkmetric.MeterProvider
	fileExporter  *FileMetricsExporter

	commandOnce     sync.Once
	commandDuration *prometheus.HistogramVec
)

// MetricsObserver records the client's request pipeline as Prometheus
// metrics and, when a meter provider is installed, as OTel metrics.
//
//	observer := telemetry.NewMetricsObserver(prometheus.DefaultRegisterer)
//	client, err := sdk.NewClient(config.WithObserver(observer))
type MetricsObserver struct {
	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	errors    *prometheus.CounterVec
	redirects *prometheus.CounterVec
	circuit   *prometheus.GaugeVec
	inflight  prometheus.Gauge

	legs metric.Int64Counter
}

var _ sdk.Observer = (*MetricsObserver)(nil)

// NewMetricsObserver registers the pipeline metrics on reg
func NewMetricsObserver(reg prometheus.Registerer) *MetricsObserver {
	factory := promauto.With(reg)
	m := &MetricsObserver{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stackmob_requests_total",
			Help: "Total number of request legs sent to the platform",
		}, []string{"method", "host", "status"}),

		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stackmob_request_duration_seconds",
			Help:    "Duration of request legs in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "host"}),

		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stackmob_transport_errors_total",
			Help: "Request legs that failed without a response",
		}, []string{"method", "host"}),

		redirects: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stackmob_redirects_total",
			Help: "Redirects followed, by original and new host",
		}, []string{"from", "to"}),

		circuit: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stackmob_circuit_state",
			Help: "Circuit breaker state per host (0 closed, 1 open, 2 half-open)",
		}, []string{"host"}),

		inflight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "stackmob_requests_in_flight",
			Help: "Request legs currently awaiting a response",
		}),
	}

	legs, err := otel.Meter(meterName).Int64Counter("stackmob.client.requests",
		metric.WithDescription("Request legs sent to the platform"))
	if err != nil {
		L().WithError(err).Warn("OTel request counter unavailable")
	} else {
		m.legs = legs
	}
	return m
}

// OnRequestStart tracks the leg as in flight
func (m *MetricsObserver) OnRequestStart(method, rawURL string) {
	m.inflight.Inc()
}

// OnRequestEnd counts the leg by status and records its latency
func (m *MetricsObserver) OnRequestEnd(method, rawURL string, status int, duration time.Duration, err error) {
	m.inflight.Dec()
	host := hostOf(rawURL)

	label := "none"
	if status != 0 {
		label = strconv.Itoa(status)
	}
	m.requests.WithLabelValues(method, host, label).Inc()
	m.duration.WithLabelValues(method, host).Observe(duration.Seconds())
	if err != nil {
		m.errors.WithLabelValues(method, host).Inc()
	}

	if m.legs != nil {
		m.legs.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("server.address", host),
			attribute.Int("http.response.status_code", status),
		))
	}
}

// OnRedirect counts the redirect
func (m *MetricsObserver) OnRedirect(notice sdk.RedirectNotice) {
	m.redirects.WithLabelValues(hostOf(notice.OriginalURL), notice.NewHost()).Inc()
}

// OnCircuitBreakerStateChange exposes the host's new state
func (m *MetricsObserver) OnCircuitBreakerStateChange(host string, oldState, newState sdk.CircuitState) {
	m.circuit.WithLabelValues(host).Set(float64(newState))
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}

// RecordCommand records the duration and outcome of one CLI command
func RecordCommand(command, status string, duration time.Duration) {
	commandOnce.Do(func() {
		commandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stackmob_cli_command_duration_seconds",
			Help:    "Duration of CLI commands in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"command", "status"})
	})
	commandDuration.WithLabelValues(command, status).Observe(duration.Seconds())
}

// InitMetrics starts the metric exporters selected by cfg: a periodic
// JSON dump of the default Prometheus registry in file mode, or an OTLP
// meter provider otherwise.
func InitMetrics(cfg *Config) error {
	if !cfg.EnableMetrics {
		return nil
	}

	if cfg.ExportToFile && cfg.MetricsFilePath != "" {
		fe := NewFileMetricsExporter(cfg.MetricsFilePath, prometheus.DefaultGatherer)
		fe.Start(time.Duration(cfg.MetricsInterval) * time.Second)

		metricsMu.Lock()
		fileExporter = fe
		metricsMu.Unlock()
		return nil
	}
	return initOTELMetrics(cfg)
}

func initOTELMetrics(cfg *Config) error {
	ctx := context.Background()

	res, err := newResource(ctx, cfg)
	if err != nil {
		return err
	}

	exporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return fmt.Errorf("failed to create metrics exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(
				exporter,
				sdkmetric.WithInterval(time.Duration(cfg.MetricsInterval)*time.Second),
			),
		),
	)
	otel.SetMeterProvider(provider)

	metricsMu.Lock()
	meterProvider = provider
	metricsMu.Unlock()
	return nil
}

// CloseMetrics flushes and stops the exporters started by InitMetrics
func CloseMetrics(ctx context.Context) error {
	metricsMu.Lock()
	fe, mp := fileExporter, meterProvider
	fileExporter, meterProvider = nil, nil
	metricsMu.Unlock()

	if fe != nil {
		fe.Stop()
	}
	if mp != nil {
		return mp.Shutdown(ctx)
	}
	return nil
}

// FileMetricsExporter periodically writes a registry's metrics to a JSON
// file for local-otel
type FileMetricsExporter struct {
	filePath string
	gatherer prometheus.Gatherer

	mu       sync.Mutex
	started  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// Sample is one exported metric value
type Sample struct {
	Labels map[string]string `json:"labels,omitempty"`
	Value  float64           `json:"value"`
	Count  uint64            `json:"count,omitempty"`
}

// NewFileMetricsExporter creates an exporter for gatherer. It does not
// write until Export is called or Start runs the periodic loop.
func NewFileMetricsExporter(filePath string, gatherer prometheus.Gatherer) *FileMetricsExporter {
	return &FileMetricsExporter{
		filePath: filePath,
		gatherer: gatherer,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start exports every interval until Stop. Calls after the first are ignored.
func (f *FileMetricsExporter) Start(interval time.Duration) {
	if f.started.CompareAndSwap(false, true) {
		go f.run(interval)
	}
}

func (f *FileMetricsExporter) run(interval time.Duration) {
	defer close(f.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := f.Export(); err != nil {
				L().WithError(err).Error("Failed to export metrics to file")
			}
		case <-f.stop:
			if err := f.Export(); err != nil {
				L().WithError(err).Error("Failed to export metrics to file")
			}
			return
		}
	}
}

// Stop writes a final snapshot and ends the periodic loop
func (f *FileMetricsExporter) Stop() {
	f.stopOnce.Do(func() { close(f.stop) })
	if f.started.Load() {
		<-f.done
	}
}

// Export gathers every metric family and rewrites the file
func (f *FileMetricsExporter) Export() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	snapshot, err := f.snapshot()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(f.filePath), 0755); err != nil {
		return err
	}
	file, err := os.Create(f.filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(snapshot)
}

func (f *FileMetricsExporter) snapshot() (map[string]interface{}, error) {
	families, err := f.gatherer.Gather()
	if err != nil {
		return nil, fmt.Errorf("failed to gather metrics: %w", err)
	}

	out := map[string]interface{}{"timestamp": time.Now().Unix()}
	for _, mf := range families {
		samples := make([]Sample, 0, len(mf.GetMetric()))
		for _, m := range mf.GetMetric() {
			s := Sample{}
			if pairs := m.GetLabel(); len(pairs) > 0 {
				s.Labels = make(map[string]string, len(pairs))
				for _, lp := range pairs {
					s.Labels[lp.GetName()] = lp.GetValue()
				}
			}
			switch {
			case m.GetCounter() != nil:
				s.Value = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				s.Value = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				s.Value = m.GetHistogram().GetSampleSum()
				s.Count = m.GetHistogram().GetSampleCount()
			case m.GetUntyped() != nil:
				s.Value = m.GetUntyped().GetValue()
			}
			samples = append(samples, s)
		}
		out[mf.GetName()] = samples
	}
	return out, nil
}
