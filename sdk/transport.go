package sdk

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/gomodule/oauth1/oauth"
)

// Transport signs and sends fully built requests. The pipeline calls Sign
// on the caller's goroutine and Send on a worker; Send must not follow
// redirects itself.
//
// The default Transport is NewOAuthTransport. Replace it to route requests
// through a proxy or a test double:
//
//	config := sdk.DefaultConfig().
//	    WithCredentials(key, secret).
//	    WithTransport(myTransport)
type Transport interface {
	Sign(req *http.Request) error
	Send(req *http.Request) (*Response, error)
}

// Response is a fully read HTTP response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OAuthTransport signs requests with two-legged OAuth 1.0a (HMAC-SHA1,
// consumer key and secret, no token) and sends them over net/http.
type OAuthTransport struct {
	oauth  *oauth.Client
	client *http.Client
}

// NewOAuthTransport creates the default transport from the config's
// credentials, timeout and connection pool settings
func NewOAuthTransport(config *Config) *OAuthTransport {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        config.TransportConfig.MaxIdleConns,
		MaxConnsPerHost:     config.TransportConfig.MaxConnsPerHost,
		IdleConnTimeout:     config.TransportConfig.IdleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	t := &OAuthTransport{
		oauth: &oauth.Client{
			Credentials:     oauth.Credentials{Token: config.APIKey, Secret: config.APISecret},
			SignatureMethod: oauth.HMACSHA1,
		},
	}
	return t.WithHTTPClient(&http.Client{Transport: transport, Timeout: config.Timeout})
}

// WithHTTPClient sends through a copy of client. Redirect following is
// disabled on the copy; the pipeline handles redirects.
func (t *OAuthTransport) WithHTTPClient(client *http.Client) *OAuthTransport {
	c := *client
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	t.client = &c
	return t
}

// Sign sets the OAuth Authorization header. Query parameters are part of
// the signature; the JSON body is not.
func (t *OAuthTransport) Sign(req *http.Request) error {
	return t.oauth.SetAuthorizationHeader(req.Header, nil, req.Method, req.URL, nil)
}

// Send performs the request and reads the whole body
func (t *OAuthTransport) Send(req *http.Request) (*Response, error) {
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// CloseIdleConnections releases pooled connections
func (t *OAuthTransport) CloseIdleConnections() {
	t.client.CloseIdleConnections()
}

// escape percent-encodes a path segment or query component. Spaces become
// %20, never '+'.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// buildPath joins escaped segments into an absolute path.
//
//	buildPath("game", "my id") // "/game/my%20id"
func buildPath(segments ...string) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(escape(s))
	}
	return b.String()
}

// encodeQuery renders params as key=value pairs joined by '&', sorted by key
func encodeQuery(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = escape(k) + "=" + escape(params[k])
	}
	return strings.Join(pairs, "&")
}
