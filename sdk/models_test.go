package sdk

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// Simple is the smallest valid model
type Simple struct {
	ModelBase
	Name string
}

func (s *Simple) Fields() []Field {
	return []Field{Primitive("name", &s.Name)}
}

// Bad_Schema_Name has a type name the platform rejects
type Bad_Schema_Name struct {
	ModelBase
	Name string
}

func (b *Bad_Schema_Name) Fields() []Field {
	return []Field{Primitive("name", &b.Name)}
}

// BadField declares a field name with an underscore
type BadField struct {
	ModelBase
	Value string
}

func (b *BadField) Fields() []Field {
	return []Field{Primitive("bad_value", &b.Value)}
}

type Person struct {
	ModelBase
	Name string
	Age  int
}

func (p *Person) Fields() []Field {
	return []Field{
		Primitive("name", &p.Name),
		Primitive("age", &p.Age),
	}
}

// Player inherits Person's fields and shadows "name"
type Player struct {
	Person
	Handle string
	Level  int
}

func (p *Player) Fields() []Field {
	return append([]Field{
		Primitive("name", &p.Handle),
		Primitive("level", &p.Level),
	}, p.Person.Fields()...)
}

type Settings struct {
	Mode   string `json:"mode"`
	Rounds int    `json:"rounds"`
}

// Game declares one field of every kind
type Game struct {
	ModelBase
	Name     string
	Score    float64
	Active   bool
	Settings Settings
	Tags     []string
	Moves    []Settings
	Raw      []byte
	Owner    *Player
	Players  []*Player
	Cover    BinaryFile
}

func (g *Game) Fields() []Field {
	return []Field{
		Primitive("name", &g.Name),
		Primitive("score", &g.Score),
		Primitive("active", &g.Active),
		Object("settings", &g.Settings),
		PrimitiveArray("tags", &g.Tags),
		ObjectArray("moves", &g.Moves),
		PrimitiveArray("raw", &g.Raw),
		Related("owner", &g.Owner),
		RelatedArray("players", &g.Players),
		Attachment("cover", &g.Cover),
	}
}

// OpaqueOwner declares a related model as an opaque object
type OpaqueOwner struct {
	ModelBase
	Owner *Player
}

func (o *OpaqueOwner) Fields() []Field {
	return []Field{Object("owner", &o.Owner)}
}

// OpaquePlayers declares a list of models as opaque objects
type OpaquePlayers struct {
	ModelBase
	Players []Player
}

func (o *OpaquePlayers) Fields() []Field {
	return []Field{ObjectArray("players", &o.Players)}
}

// Renamed overrides the schema and id field names
type Renamed struct {
	ModelBase
	Label string
}

func (r *Renamed) SchemaName() string { return "things" }
func (r *Renamed) IDField() string    { return "thing_key" }

func (r *Renamed) Fields() []Field {
	return []Field{Primitive("label", &r.Label)}
}

var countedFieldCalls atomic.Int32

// Counted records how often its descriptor table is built
type Counted struct {
	ModelBase
	Value string
}

func (c *Counted) Fields() []Field {
	countedFieldCalls.Add(1)
	return []Field{Primitive("value", &c.Value)}
}

const (
	testAPIHost  = "api.test.stackmob.com"
	testPushHost = "push.test.stackmob.com"
)

// recordedRequest is what the fake platform saw
type recordedRequest struct {
	Method string
	Host   string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

// fakePlatform is a TLS test server reachable under any host name
type fakePlatform struct {
	*httptest.Server

	mu       sync.Mutex
	requests []recordedRequest
}

func newFakePlatform(t *testing.T, handler http.HandlerFunc) *fakePlatform {
	t.Helper()
	fp := &fakePlatform{}
	fp.Server = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		fp.mu.Lock()
		fp.requests = append(fp.requests, recordedRequest{
			Method: r.Method,
			Host:   r.Host,
			Path:   r.URL.EscapedPath(),
			Query:  r.URL.RawQuery,
			Header: r.Header.Clone(),
			Body:   body,
		})
		fp.mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(fp.Close)
	return fp
}

func (fp *fakePlatform) Requests() []recordedRequest {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return append([]recordedRequest(nil), fp.requests...)
}

func (fp *fakePlatform) Last(t *testing.T) recordedRequest {
	t.Helper()
	reqs := fp.Requests()
	require.NotEmpty(t, reqs, "platform received no request")
	return reqs[len(reqs)-1]
}

// HTTPClient dials the test server whatever host the request names
func (fp *fakePlatform) HTTPClient() *http.Client {
	tr := fp.Client().Transport.(*http.Transport).Clone()
	addr := fp.Listener.Addr().String()
	tr.DialContext = func(ctx context.Context, network, _ string) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, network, addr)
	}
	tr.DialTLSContext = nil
	tr.TLSClientConfig.InsecureSkipVerify = true
	return &http.Client{Transport: tr}
}

func newTestClient(t *testing.T, fp *fakePlatform, configure ...func(*Config)) *Client {
	t.Helper()
	config := DefaultConfig().
		WithCredentials("test-key", "test-secret").
		WithHosts(testAPIHost, testPushHost).
		WithSecure(true)
	for _, fn := range configure {
		fn(config)
	}
	if config.Transport == nil {
		config.Transport = NewOAuthTransport(config).WithHTTPClient(fp.HTTPClient())
	}

	client, err := NewClient(config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
