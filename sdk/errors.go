package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Common errors returned by the SDK. These can be used with errors.Is()
// to check for specific error conditions.
//
// Example:
//
//	_, err := client.Fetch(ctx, game).Wait(ctx)
//	if errors.Is(err, sdk.ErrNotFound) {
//	    // The object was deleted on the server
//	} else if errors.Is(err, sdk.ErrRedirectLoop) {
//	    // The platform kept bouncing the request between hosts
//	}
var (
	// ErrInvalidConfig is returned when the client configuration or a model
	// schema is invalid
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNotFound is matched by HTTP 404 responses
	ErrNotFound = errors.New("object not found")

	// ErrCircuitOpen is returned when the circuit breaker for a host is open
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrRedirectLoop is returned when a request exceeds the redirect hop limit
	ErrRedirectLoop = errors.New("too many redirects")

	// ErrUnsavedRelation is returned when a related model without an id is serialized
	ErrUnsavedRelation = errors.New("related model has no id")

	// ErrUnknownField is returned when classifying a field the model does not declare
	ErrUnknownField = errors.New("unknown field")

	// ErrMissingID is returned by operations that address a single object
	// when the model has not been saved yet
	ErrMissingID = errors.New("model has no id")

	// ErrClientClosed is returned by every operation after Close
	ErrClientClosed = errors.New("client is closed")
)

// ErrorType represents the type of error for categorization and handling.
//
// Example:
//
//	switch sdk.TypeOf(err) {
//	case sdk.ErrorTypeConfiguration:
//	    // Fix the model declaration, retrying will not help
//	case sdk.ErrorTypeTransport:
//	    // Network or signing problem
//	case sdk.ErrorTypeClient, sdk.ErrorTypeServer:
//	    // The platform answered with an error status
//	}
type ErrorType int

const (
	// ErrorTypeUnknown represents an unknown or unclassified error
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeConfiguration represents invalid schema or field names and bad client config
	ErrorTypeConfiguration
	// ErrorTypeTransport represents URL, signing and network failures
	ErrorTypeTransport
	// ErrorTypeClient represents 4xx responses
	ErrorTypeClient
	// ErrorTypeServer represents 5xx responses
	ErrorTypeServer
	// ErrorTypeRedirectLoop represents a request that exceeded the redirect limit
	ErrorTypeRedirectLoop
	// ErrorTypeCircuitOpen represents a request rejected by an open circuit
	ErrorTypeCircuitOpen
)

// String returns the string representation of the error type
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeConfiguration:
		return "configuration"
	case ErrorTypeTransport:
		return "transport"
	case ErrorTypeClient:
		return "client"
	case ErrorTypeServer:
		return "server"
	case ErrorTypeRedirectLoop:
		return "redirect_loop"
	case ErrorTypeCircuitOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

// ConfigurationError reports a schema or field name the platform would
// reject. It is raised before any request is built and is never retried.
type ConfigurationError struct {
	// Subject is what was being validated: "schema", "field" or "config"
	Subject string
	// Schema is the schema the field belongs to, empty for schema errors
	Schema string
	// Name is the offending name
	Name string
	// Reason describes the violated rule
	Reason string
}

// Error implements the error interface
func (e *ConfigurationError) Error() string {
	if e.Schema != "" {
		return fmt.Sprintf("invalid %s name %q in schema %q: %s", e.Subject, e.Name, e.Schema, e.Reason)
	}
	return fmt.Sprintf("invalid %s name %q: %s", e.Subject, e.Name, e.Reason)
}

// Is implements errors.Is
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// TransportError represents a failure to build, sign or deliver a request.
// No HTTP response was received.
type TransportError struct {
	// Op is the pipeline step that failed ("build", "sign", "send", "redirect", "rate limit")
	Op string
	// Method is the HTTP method of the request
	Method string
	// URL is the request URL, if it could be built
	URL string
	// Err is the underlying error
	Err error
}

// Error implements the error interface
func (e *TransportError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("transport error during %s %s %s: %v", e.Op, e.Method, e.URL, e.Err)
	}
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *TransportError) Unwrap() error {
	return e.Err
}

// HTTPResponseError is delivered when the platform answers with a status
// outside 100-399. It carries the full response for inspection.
//
// Example:
//
//	var httpErr *sdk.HTTPResponseError
//	if errors.As(err, &httpErr) {
//	    log.Printf("status %d: %s", httpErr.StatusCode, httpErr.Message())
//	}
type HTTPResponseError struct {
	// StatusCode is the HTTP status code from the response
	StatusCode int
	// Header holds the response headers
	Header http.Header
	// Body is the raw response body
	Body []byte
	// Method and URL identify the request leg that failed
	Method string
	URL    string
}

// Error implements the error interface
func (e *HTTPResponseError) Error() string {
	if msg := e.Message(); msg != "" {
		return fmt.Sprintf("HTTP %d from %s %s: %s", e.StatusCode, e.Method, e.URL, msg)
	}
	return fmt.Sprintf("HTTP %d from %s %s", e.StatusCode, e.Method, e.URL)
}

// Message extracts the platform's error message. The platform sends
// {"error": "..."}; other bodies are returned verbatim.
func (e *HTTPResponseError) Message() string {
	if len(e.Body) == 0 {
		return ""
	}
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(e.Body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return string(e.Body)
}

// Is implements errors.Is
func (e *HTTPResponseError) Is(target error) bool {
	return target == ErrNotFound && e.IsNotFound()
}

// IsNotFound returns true for 404 responses
func (e *HTTPResponseError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsServerError returns true for 5xx responses
func (e *HTTPResponseError) IsServerError() bool {
	return e.StatusCode >= 500
}

// IsClientError returns true for 4xx responses
func (e *HTTPResponseError) IsClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// RedirectLoopError is delivered when a request is redirected more times
// than Config.MaxRedirects allows.
type RedirectLoopError struct {
	// URL is the location the next hop would have gone to
	URL string
	// Hops is the number of redirects already followed
	Hops int
}

// Error implements the error interface
func (e *RedirectLoopError) Error() string {
	return fmt.Sprintf("stopped after %d redirects (next location %s)", e.Hops, e.URL)
}

// Is implements errors.Is
func (e *RedirectLoopError) Is(target error) bool {
	return target == ErrRedirectLoop
}

// TypeOf classifies an error returned by the SDK
func TypeOf(err error) ErrorType {
	if err == nil {
		return ErrorTypeUnknown
	}

	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) || errors.Is(err, ErrInvalidConfig) {
		return ErrorTypeConfiguration
	}
	if errors.Is(err, ErrCircuitOpen) {
		return ErrorTypeCircuitOpen
	}
	if errors.Is(err, ErrRedirectLoop) {
		return ErrorTypeRedirectLoop
	}

	var httpErr *HTTPResponseError
	if errors.As(err, &httpErr) {
		if httpErr.IsServerError() {
			return ErrorTypeServer
		}
		return ErrorTypeClient
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return ErrorTypeTransport
	}
	return ErrorTypeUnknown
}

// IsNotFound checks if the error represents a 404 from the platform.
//
// Example:
//
//	if _, err := client.Fetch(ctx, game).Wait(ctx); sdk.IsNotFound(err) {
//	    // Gone
//	}
func IsNotFound(err error) bool {
	return err != nil && errors.Is(err, ErrNotFound)
}

// IsConfigurationError reports whether err was caused by an invalid schema,
// field name or client configuration
func IsConfigurationError(err error) bool {
	return TypeOf(err) == ErrorTypeConfiguration
}

// StatusCode returns the HTTP status carried by err, or 0 when the error
// did not come from an HTTP response
func StatusCode(err error) int {
	var httpErr *HTTPResponseError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}
