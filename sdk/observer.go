package sdk

import (
	"sync"
	"time"
)

// Observer provides hooks for monitoring the request pipeline.
// Observer methods run on pipeline workers and should return quickly.
//
// Example implementation:
//
//	type LogObserver struct {
//	    logger *log.Logger
//	}
//
//	func (o *LogObserver) OnRequestEnd(method, url string, status int, d time.Duration, err error) {
//	    o.logger.Printf("%s %s -> %d (%v) %v", method, url, status, d, err)
//	}
//
//	// ... remaining methods
//
//	config := sdk.DefaultConfig().
//	    WithObserver(&LogObserver{logger: log.Default()})
type Observer interface {
	// OnRequestStart is called before each leg of a request is sent,
	// including legs that follow a redirect.
	OnRequestStart(method, url string)

	// OnRequestEnd is called when a leg completes. status is 0 when no
	// response was received.
	OnRequestEnd(method, url string, status int, duration time.Duration, err error)

	// OnRedirect is called for every redirect followed, before the
	// request is re-signed and resent.
	OnRedirect(notice RedirectNotice)

	// OnCircuitBreakerStateChange is called when a host's breaker changes state
	OnCircuitBreakerStateChange(host string, oldState, newState CircuitState)
}

// NoopObserver is the default observer. It does nothing.
type NoopObserver struct{}

// OnRequestStart does nothing
func (n *NoopObserver) OnRequestStart(method, url string) {}

// OnRequestEnd does nothing
func (n *NoopObserver) OnRequestEnd(method, url string, status int, duration time.Duration, err error) {
}

// OnRedirect does nothing
func (n *NoopObserver) OnRedirect(notice RedirectNotice) {}

// OnCircuitBreakerStateChange does nothing
func (n *NoopObserver) OnCircuitBreakerStateChange(host string, oldState, newState CircuitState) {}

// MetricsCollector is a simple in-memory Observer, intended for debugging
// and tests. Keys are "METHOD host".
//
// Example:
//
//	metrics := sdk.NewMetricsCollector()
//	client, _ := sdk.NewClient(sdk.DefaultConfig().
//	    WithCredentials(key, secret).
//	    WithObserver(metrics))
//
//	snapshot := metrics.Snapshot()
//	fmt.Printf("redirects followed: %d\n", snapshot.Redirects)
type MetricsCollector struct {
	mu             sync.RWMutex
	requests       map[string]int64
	errors         map[string]int64
	statuses       map[int]int64
	latencies      map[string][]time.Duration
	redirects      int64
	circuitChanges map[string]int64
}

// MetricsSnapshot is a copy of the collected metrics
type MetricsSnapshot struct {
	Requests       map[string]int64
	Errors         map[string]int64
	Statuses       map[int]int64
	Latencies      map[string][]time.Duration
	Redirects      int64
	CircuitChanges map[string]int64
}

// NewMetricsCollector creates an empty collector. It is safe for concurrent use.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		requests:       make(map[string]int64),
		errors:         make(map[string]int64),
		statuses:       make(map[int]int64),
		latencies:      make(map[string][]time.Duration),
		circuitChanges: make(map[string]int64),
	}
}

func metricsKey(method, rawURL string) string {
	return method + " " + hostOf(rawURL)
}

// OnRequestStart counts the leg
func (m *MetricsCollector) OnRequestStart(method, url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[metricsKey(method, url)]++
}

// OnRequestEnd records latency, status and errors
func (m *MetricsCollector) OnRequestEnd(method, url string, status int, duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := metricsKey(method, url)
	m.latencies[key] = append(m.latencies[key], duration)
	if status != 0 {
		m.statuses[status]++
	}
	if err != nil {
		m.errors[key]++
	}
}

// OnRedirect counts followed redirects
func (m *MetricsCollector) OnRedirect(notice RedirectNotice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.redirects++
}

// OnCircuitBreakerStateChange counts transitions per host
func (m *MetricsCollector) OnCircuitBreakerStateChange(host string, oldState, newState CircuitState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.circuitChanges[host]++
}

// Snapshot returns a copy of the current metrics
func (m *MetricsCollector) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := MetricsSnapshot{
		Requests:       make(map[string]int64, len(m.requests)),
		Errors:         make(map[string]int64, len(m.errors)),
		Statuses:       make(map[int]int64, len(m.statuses)),
		Latencies:      make(map[string][]time.Duration, len(m.latencies)),
		Redirects:      m.redirects,
		CircuitChanges: make(map[string]int64, len(m.circuitChanges)),
	}
	for k, v := range m.requests {
		s.Requests[k] = v
	}
	for k, v := range m.errors {
		s.Errors[k] = v
	}
	for k, v := range m.statuses {
		s.Statuses[k] = v
	}
	for k, v := range m.latencies {
		s.Latencies[k] = append([]time.Duration(nil), v...)
	}
	for k, v := range m.circuitChanges {
		s.CircuitChanges[k] = v
	}
	return s
}

// CompositeObserver fans every call out to several observers in order.
// A panicking observer does not stop the others.
//
// Example:
//
//	observer := sdk.NewCompositeObserver(
//	    sdk.NewMetricsCollector(),
//	    telemetry.NewMetricsObserver(prometheus.DefaultRegisterer),
//	)
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an observer that delegates to observers
func NewCompositeObserver(observers ...Observer) Observer {
	return &CompositeObserver{observers: observers}
}

func (c *CompositeObserver) each(fn func(Observer)) {
	for _, obs := range c.observers {
		func() {
			defer func() { _ = recover() }()
			fn(obs)
		}()
	}
}

// OnRequestStart notifies all observers
func (c *CompositeObserver) OnRequestStart(method, url string) {
	c.each(func(o Observer) { o.OnRequestStart(method, url) })
}

// OnRequestEnd notifies all observers
func (c *CompositeObserver) OnRequestEnd(method, url string, status int, duration time.Duration, err error) {
	c.each(func(o Observer) { o.OnRequestEnd(method, url, status, duration, err) })
}

// OnRedirect notifies all observers
func (c *CompositeObserver) OnRedirect(notice RedirectNotice) {
	c.each(func(o Observer) { o.OnRedirect(notice) })
}

// OnCircuitBreakerStateChange notifies all observers
func (c *CompositeObserver) OnCircuitBreakerStateChange(host string, oldState, newState CircuitState) {
	c.each(func(o Observer) { o.OnCircuitBreakerStateChange(host, oldState, newState) })
}
