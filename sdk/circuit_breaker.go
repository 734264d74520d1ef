package sdk

import (
	"errors"
	"sync"
	"time"
)

// CircuitState represents the current state of a circuit breaker.
//
// State transitions:
//   - Closed -> Open: When failure threshold is reached
//   - Open -> Half-Open: After timeout period expires
//   - Half-Open -> Closed: When success threshold is reached
//   - Half-Open -> Open: On any failure
type CircuitState int

const (
	// CircuitClosed passes every request and counts failures
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects every request with ErrCircuitOpen
	CircuitOpen
	// CircuitHalfOpen lets a limited number of probe requests through
	CircuitHalfOpen
)

// String returns the string representation of the circuit state
func (cs CircuitState) String() string {
	switch cs {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker fails fast while a host keeps failing.
//
// When Config.CircuitBreakerConfig is set the client keeps one breaker per
// host. Transport errors and 5xx responses count as failures; 4xx
// responses do not, since they say nothing about the host's health.
//
//	config := sdk.DefaultConfig().WithCircuitBreaker(sdk.CircuitBreakerConfig{
//	    FailureThreshold: 5,
//	    SuccessThreshold: 2,
//	    Timeout:          30 * time.Second,
//	})
//
//	_, err := client.Get(ctx, "game", nil).Wait(ctx)
//	if errors.Is(err, sdk.ErrCircuitOpen) {
//	    // The API host is failing, try later
//	}
type CircuitBreaker interface {
	// Execute runs fn if the circuit allows it and records its result.
	// Returns an error matching ErrCircuitOpen when the call was rejected.
	Execute(fn func() error) error

	// State returns the current state
	State() CircuitState

	// Reset closes the circuit and clears its counters
	Reset()
}

// CircuitBreakerConfig holds configuration for circuit breaker behavior.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before
	// the circuit opens.
	// Default: 5
	FailureThreshold int

	// SuccessThreshold is the number of consecutive half-open successes
	// that close the circuit.
	// Default: 2
	SuccessThreshold int

	// Timeout is how long the circuit stays open before probing.
	// Default: 30s
	Timeout time.Duration

	// HalfOpenRequests is the maximum number of probes in half-open state.
	// Default: 3
	HalfOpenRequests int
}

// DefaultCircuitBreakerConfig returns a circuit breaker configuration
// with sensible defaults suitable for most use cases.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
		HalfOpenRequests: 3,
	}
}

type stateChange struct {
	from, to CircuitState
}

type circuitBreaker struct {
	config   CircuitBreakerConfig
	onChange func(from, to CircuitState)
	now      func() time.Time

	mu          sync.Mutex
	state       CircuitState
	failures    int
	successes   int
	probes      int
	lastFailure time.Time
}

// NewCircuitBreaker creates a breaker in the closed state
func NewCircuitBreaker(config CircuitBreakerConfig) CircuitBreaker {
	return newCircuitBreaker(config, nil)
}

func newCircuitBreaker(config CircuitBreakerConfig, onChange func(from, to CircuitState)) *circuitBreaker {
	return &circuitBreaker{config: config, onChange: onChange, now: time.Now, state: CircuitClosed}
}

func (cb *circuitBreaker) Execute(fn func() error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn()
	cb.record(err == nil)
	return err
}

// admit reserves a slot for one call or rejects it
func (cb *circuitBreaker) admit() error {
	cb.mu.Lock()
	change := cb.expire()

	var err error
	switch cb.state {
	case CircuitOpen:
		err = ErrCircuitOpen
	case CircuitHalfOpen:
		if cb.probes >= cb.config.HalfOpenRequests {
			err = ErrCircuitOpen
		} else {
			cb.probes++
		}
	}
	cb.mu.Unlock()

	cb.notify(change)
	return err
}

func (cb *circuitBreaker) record(ok bool) {
	cb.mu.Lock()
	var change *stateChange
	if ok {
		switch cb.state {
		case CircuitClosed:
			cb.failures = 0
		case CircuitHalfOpen:
			cb.successes++
			if cb.successes >= cb.config.SuccessThreshold {
				change = cb.moveTo(CircuitClosed)
			}
		}
	} else {
		cb.lastFailure = cb.now()
		switch cb.state {
		case CircuitClosed:
			cb.failures++
			if cb.failures >= cb.config.FailureThreshold {
				change = cb.moveTo(CircuitOpen)
			}
		case CircuitHalfOpen:
			change = cb.moveTo(CircuitOpen)
		}
	}
	cb.mu.Unlock()

	cb.notify(change)
}

func (cb *circuitBreaker) State() CircuitState {
	cb.mu.Lock()
	change := cb.expire()
	state := cb.state
	cb.mu.Unlock()

	cb.notify(change)
	return state
}

func (cb *circuitBreaker) Reset() {
	cb.mu.Lock()
	change := cb.moveTo(CircuitClosed)
	cb.failures, cb.successes, cb.probes = 0, 0, 0
	cb.mu.Unlock()

	cb.notify(change)
}

// expire moves an open circuit to half-open once the timeout elapsed.
// Callers hold mu.
func (cb *circuitBreaker) expire() *stateChange {
	if cb.state == CircuitOpen && cb.now().Sub(cb.lastFailure) >= cb.config.Timeout {
		return cb.moveTo(CircuitHalfOpen)
	}
	return nil
}

// moveTo switches state and resets counters. Callers hold mu.
func (cb *circuitBreaker) moveTo(state CircuitState) *stateChange {
	if cb.state == state {
		return nil
	}
	change := &stateChange{from: cb.state, to: state}
	cb.state = state
	cb.failures, cb.successes, cb.probes = 0, 0, 0
	return change
}

// notify runs outside mu so observers may call back into the breaker
func (cb *circuitBreaker) notify(change *stateChange) {
	if change != nil && cb.onChange != nil {
		cb.onChange(change.from, change.to)
	}
}

// hostBreakers keeps one circuit breaker per host
type hostBreakers struct {
	config   CircuitBreakerConfig
	observer Observer

	mu       sync.RWMutex
	breakers map[string]*circuitBreaker
}

func newHostBreakers(config CircuitBreakerConfig, observer Observer) *hostBreakers {
	return &hostBreakers{
		config:   config,
		observer: observer,
		breakers: make(map[string]*circuitBreaker),
	}
}

func (h *hostBreakers) Execute(host string, fn func() error) error {
	return h.get(host).Execute(fn)
}

// State returns the state of host's breaker. Hosts never contacted are closed.
func (h *hostBreakers) State(host string) CircuitState {
	h.mu.RLock()
	cb, ok := h.breakers[host]
	h.mu.RUnlock()
	if !ok {
		return CircuitClosed
	}
	return cb.State()
}

func (h *hostBreakers) ResetAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, cb := range h.breakers {
		cb.Reset()
	}
}

func (h *hostBreakers) get(host string) *circuitBreaker {
	h.mu.RLock()
	cb, ok := h.breakers[host]
	h.mu.RUnlock()
	if ok {
		return cb
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if cb, ok := h.breakers[host]; ok {
		return cb
	}
	cb = newCircuitBreaker(h.config, func(from, to CircuitState) {
		h.observer.OnCircuitBreakerStateChange(host, from, to)
	})
	h.breakers[host] = cb
	return cb
}

// errServerStatus marks a 5xx response inside a breaker call. The pipeline
// strips it again and delivers the response as an HTTPResponseError.
var errServerStatus = errors.New("server error status")
