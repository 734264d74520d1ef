package sdk

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// RedirectNotice describes one redirect followed by the request pipeline
type RedirectNotice struct {
	// OriginalURL is the URL that answered with the redirect
	OriginalURL string
	// Header and Body are the redirect response's headers and body
	Header http.Header
	Body   []byte
	// NewURL is the resolved Location the request is resent to
	NewURL string
}

// NewHost returns the host of NewURL, port included
func (n RedirectNotice) NewHost() string {
	u, err := url.Parse(n.NewURL)
	if err != nil {
		return ""
	}
	return u.Host
}

// RedirectHandler is notified when a redirect moved the API or push endpoint
type RedirectHandler func(RedirectNotice)

// Session holds the app identity and the current API and push hosts.
// The hosts change when the platform redirects a request; both are
// guarded by one lock so readers always see a consistent pair.
type Session struct {
	apiKey         string
	apiSecret      string
	appName        string
	apiVersion     int
	userObjectName string
	handler        RedirectHandler

	mu       sync.RWMutex
	apiHost  string
	pushHost string
}

// NewSession creates a session from a validated config
func NewSession(config *Config) *Session {
	return &Session{
		apiKey:         config.APIKey,
		apiSecret:      config.APISecret,
		appName:        config.AppName,
		apiVersion:     config.APIVersion,
		userObjectName: config.UserObjectName,
		handler:        config.RedirectHandler,
		apiHost:        config.APIHost,
		pushHost:       config.PushHost,
	}
}

// APIKey returns the OAuth consumer key
func (s *Session) APIKey() string { return s.apiKey }

// AppName returns the app name sent in the User-Agent
func (s *Session) AppName() string { return s.appName }

// APIVersion returns the requested app version
func (s *Session) APIVersion() int { return s.apiVersion }

// UserObjectName returns the schema that stores users
func (s *Session) UserObjectName() string { return s.userObjectName }

// APIHost returns the current API endpoint
func (s *Session) APIHost() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.apiHost
}

// PushHost returns the current push endpoint
func (s *Session) PushHost() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pushHost
}

// Hosts returns both endpoints read under one lock
func (s *Session) Hosts() (apiHost, pushHost string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.apiHost, s.pushHost
}

// SetHosts replaces the endpoints. Empty values keep the current host.
// The redirect handler is not called.
func (s *Session) SetHosts(apiHost, pushHost string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if apiHost != "" {
		s.apiHost = apiHost
	}
	if pushHost != "" {
		s.pushHost = pushHost
	}
}

// HandleRedirect moves the matching endpoint to the redirect's host and,
// when that changed anything, calls the configured RedirectHandler.
// Hosts whose name starts with "push." replace the push endpoint; all
// others replace the API endpoint.
func (s *Session) HandleRedirect(n RedirectNotice) bool {
	changed := s.ApplyRedirect(n)
	if changed && s.handler != nil {
		s.handler(n)
	}
	return changed
}

// ApplyRedirect updates the endpoints like HandleRedirect without
// notifying the handler. It is used for redirects learned from other
// processes.
func (s *Session) ApplyRedirect(n RedirectNotice) bool {
	host := n.NewHost()
	if host == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if isPushHost(host) {
		if host == s.pushHost {
			return false
		}
		s.pushHost = host
		return true
	}
	if host == s.apiHost {
		return false
	}
	s.apiHost = host
	return true
}

func isPushHost(host string) bool {
	return strings.HasPrefix(strings.ToLower(host), "push.")
}
