package sdk

import (
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

type cookie struct {
	value   string
	expires time.Time // zero means no expiry
}

func (c cookie) live(now time.Time) bool {
	return c.expires.IsZero() || !now.After(c.expires)
}

// CookieJar stores the single-valued cookies the platform sets and renders
// them back as a Cookie header. It is safe for concurrent use.
//
// Each Set-Cookie value yields at most one name=value pair and one Expires
// attribute; other attributes are ignored.
type CookieJar struct {
	mu      sync.RWMutex
	cookies map[string]cookie
	now     func() time.Time
}

// NewCookieJar returns an empty jar
func NewCookieJar() *CookieJar {
	return &CookieJar{
		cookies: make(map[string]cookie),
		now:     time.Now,
	}
}

// Ingest stores the cookies from a response's Set-Cookie headers.
// Malformed values are skipped.
func (j *CookieJar) Ingest(header http.Header) {
	values := header.Values("Set-Cookie")
	if len(values) == 0 {
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	for _, v := range values {
		name, c, ok := parseSetCookie(v)
		if ok {
			j.cookies[name] = c
		}
	}
}

func parseSetCookie(value string) (string, cookie, bool) {
	var (
		name string
		c    cookie
		seen bool
	)
	for _, part := range strings.Split(value, ";") {
		k, v, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if strings.EqualFold(k, "expires") {
			if t, ok := parseCookieTime(v); ok && c.expires.IsZero() {
				c.expires = t
			}
			continue
		}
		if !seen && k != "" && !isCookieAttribute(k) {
			name, c.value, seen = k, v, true
		}
	}
	return name, c, seen
}

// netscapeTimeFormat is the dashed date many servlet containers send
const netscapeTimeFormat = "Mon, 02-Jan-2006 15:04:05 MST"

// parseCookieTime reads an Expires value in any HTTP date format or the
// Netscape cookie format. A date that cannot be read is dropped.
func parseCookieTime(v string) (time.Time, bool) {
	if t, err := http.ParseTime(v); err == nil {
		return t, true
	}
	for _, layout := range []string{netscapeTimeFormat, "Mon, 02-Jan-06 15:04:05 MST"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func isCookieAttribute(k string) bool {
	switch strings.ToLower(k) {
	case "path", "domain", "max-age", "samesite", "secure", "httponly", "version", "comment":
		return true
	}
	return false
}

// Lookup returns the value of an unexpired cookie
func (j *CookieJar) Lookup(name string) (string, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	c, ok := j.cookies[name]
	if !ok || !c.live(j.now()) {
		return "", false
	}
	return c.value, true
}

// Render returns the Cookie header for all unexpired cookies, sorted by name:
// "a=1; b=2". It returns "" when the jar holds no live cookie.
func (j *CookieJar) Render() string {
	j.mu.RLock()
	defer j.mu.RUnlock()

	now := j.now()
	pairs := make([]string, 0, len(j.cookies))
	for name, c := range j.cookies {
		if c.live(now) {
			pairs = append(pairs, name+"="+c.value)
		}
	}
	sort.Strings(pairs)
	return strings.Join(pairs, "; ")
}

// Clear removes every cookie
func (j *CookieJar) Clear() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cookies = make(map[string]cookie)
}
