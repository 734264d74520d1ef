package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

// Client is a StackMob client. All methods are safe for concurrent use.
//
// Every operation returns immediately with a *Future. Building and signing
// happen on the calling goroutine; the network round trip, redirects and
// response decoding happen on a worker goroutine.
//
// Example:
//
//	client, err := sdk.NewClient(sdk.DefaultConfig().
//	    WithCredentials(os.Getenv("STACKMOB_KEY"), os.Getenv("STACKMOB_SECRET")))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	game := &Game{Name: "chess"}
//	if _, err := client.Save(ctx, game).Wait(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	log.Printf("saved %s", game.ID())
//
// A model passed to Save or Fetch is written by the worker; do not use it
// until the future completes.
type Client struct {
	config   *Config
	session  *Session
	jar      *CookieJar
	pipeline *pipeline

	mu     sync.RWMutex
	closed bool
}

// NewClient validates config and creates a client. If config.Transport is
// nil an OAuthTransport is created from the credentials.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Transport == nil {
		config.Transport = NewOAuthTransport(config)
	}

	session := NewSession(config)
	jar := NewCookieJar()
	return &Client{
		config:   config,
		session:  session,
		jar:      jar,
		pipeline: newPipeline(config, session, jar),
	}, nil
}

// Session returns the client's identity and endpoint state
func (c *Client) Session() *Session { return c.session }

// Cookies returns the client's cookie jar
func (c *Client) Cookies() *CookieJar { return c.jar }

// CircuitState returns the breaker state for host. It is always
// CircuitClosed when circuit breaking is disabled.
func (c *Client) CircuitState(host string) CircuitState {
	if c.pipeline.breakers == nil {
		return CircuitClosed
	}
	return c.pipeline.breakers.State(host)
}

// RequestOption customizes a single request
type RequestOption func(*request)

// WithRequestHeader sets a header on one request, overriding configured headers
func WithRequestHeader(key, value string) RequestOption {
	return func(r *request) {
		if r.header == nil {
			r.header = make(http.Header)
		}
		r.header.Set(key, value)
	}
}

// WithParams adds query arguments to a GET or DELETE request
func WithParams(params map[string]string) RequestOption {
	return func(r *request) {
		if r.params == nil {
			r.params = make(map[string]string, len(params))
		}
		for k, v := range params {
			r.params[k] = v
		}
	}
}

// HeaderCascadeDelete asks the platform to delete related objects too
const HeaderCascadeDelete = "X-StackMob-CascadeDelete"

// WithCascadeDelete deletes the objects referenced by the deleted object's
// relations along with it
func WithCascadeDelete() RequestOption {
	return WithRequestHeader(HeaderCascadeDelete, "true")
}

func newRequest(method string, target target, path string, body []byte, opts []RequestOption) *request {
	r := &request{method: method, target: target, path: path, body: body}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (c *Client) checkClosed() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClientClosed
	}
	return nil
}

func (c *Client) do(ctx context.Context, r *request) *Future[*Response] {
	if err := c.checkClosed(); err != nil {
		return failedFuture[*Response](err)
	}
	return c.pipeline.send(ctx, r)
}

func (c *Client) decoder() *decoder {
	return &decoder{log: c.config.Logger}
}

// Deserialize populates m from data like the package-level Deserialize,
// logging skipped keys to the client's logger
func (c *Client) Deserialize(m Model, data []byte) error {
	return c.decoder().model(m, data)
}

// rawPath escapes each '/'-separated segment of path
func rawPath(path string) string {
	path = strings.Trim(path, "/")
	if path == "" {
		return "/"
	}
	return buildPath(strings.Split(path, "/")...)
}

// Get sends a GET to path on the API host, e.g. "game" or "game/1234"
func (c *Client) Get(ctx context.Context, path string, opts ...RequestOption) *Future[*Response] {
	return c.do(ctx, newRequest(http.MethodGet, apiTarget, rawPath(path), nil, opts))
}

// Post sends body to path on the API host
func (c *Client) Post(ctx context.Context, path string, body []byte, opts ...RequestOption) *Future[*Response] {
	return c.do(ctx, newRequest(http.MethodPost, apiTarget, rawPath(path), body, opts))
}

// Put sends body to path on the API host
func (c *Client) Put(ctx context.Context, path string, body []byte, opts ...RequestOption) *Future[*Response] {
	return c.do(ctx, newRequest(http.MethodPut, apiTarget, rawPath(path), body, opts))
}

// Delete sends a DELETE to path on the API host
func (c *Client) Delete(ctx context.Context, path string, opts ...RequestOption) *Future[*Response] {
	return c.do(ctx, newRequest(http.MethodDelete, apiTarget, rawPath(path), nil, opts))
}

func queryRequest(q *Query, opts []RequestOption) *request {
	r := newRequest(http.MethodGet, apiTarget, buildPath(q.collection), nil, nil)
	r.params = q.Args()
	r.header = make(http.Header, len(q.headers))
	for k, v := range q.headers {
		r.header.Set(k, v)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Query runs q and returns the raw JSON array of matching objects. Use
// Find to decode the result into models.
func (c *Client) Query(ctx context.Context, q *Query, opts ...RequestOption) *Future[[]byte] {
	return bodyOf(c.do(ctx, queryRequest(q, opts)))
}

// Count returns the number of objects matching q. Only the first object is
// transferred; the total comes from the Content-Range header.
func (c *Client) Count(ctx context.Context, q *Query, opts ...RequestOption) *Future[int] {
	counted := Objects(q.collection).Add(q).IsInRange(0, 0)
	return mapFuture(c.do(ctx, queryRequest(counted, opts)), func(resp *Response) (int, error) {
		return countFromResponse(resp)
	})
}

// countFromResponse reads "objects 0-0/42". Without the header the body's
// array length is the count.
func countFromResponse(resp *Response) (int, error) {
	if cr := resp.Header.Get("Content-Range"); cr != "" {
		if i := strings.LastIndex(cr, "/"); i >= 0 {
			if n, err := strconv.Atoi(strings.TrimSpace(cr[i+1:])); err == nil {
				return n, nil
			}
		}
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(resp.Body, &elems); err != nil {
		return 0, fmt.Errorf("failed to count objects: %w", err)
	}
	return len(elems), nil
}

// Save creates m (POST) when it has no id and updates it (PUT) otherwise.
// The response, including a new id, is decoded back into m.
//
// Invalid schema or field names fail without sending anything: the
// returned future has SendStatusFailed and a *ConfigurationError.
func (c *Client) Save(ctx context.Context, m Model, opts ...RequestOption) *Future[Model] {
	s, err := schemaOf(m)
	if err != nil {
		return failedFuture[Model](err)
	}
	body, err := Serialize(m)
	if err != nil {
		return failedFuture[Model](err)
	}

	method, path := http.MethodPost, buildPath(s.name)
	if id := m.ID(); id != "" {
		method, path = http.MethodPut, buildPath(s.name, id)
	}
	return c.intoModel(c.do(ctx, newRequest(method, apiTarget, path, body, opts)), m)
}

// Fetch reloads m by id, inlining m.ExpandDepth() levels of relations
func (c *Client) Fetch(ctx context.Context, m Model, opts ...RequestOption) *Future[Model] {
	s, err := schemaOf(m)
	if err != nil {
		return failedFuture[Model](err)
	}
	if m.ID() == "" {
		return failedFuture[Model](fmt.Errorf("%w: fetch %s", ErrMissingID, s.name))
	}

	r := newRequest(http.MethodGet, apiTarget, buildPath(s.name, m.ID()), nil, nil)
	if depth := m.ExpandDepth(); depth > 0 {
		r.header = http.Header{HeaderExpand: []string{strconv.Itoa(depth)}}
	}
	for _, opt := range opts {
		opt(r)
	}
	return c.intoModel(c.do(ctx, r), m)
}

func (c *Client) intoModel(f *Future[*Response], m Model) *Future[Model] {
	return mapFuture(f, func(resp *Response) (Model, error) {
		if len(bytes.TrimSpace(resp.Body)) == 0 {
			return m, nil
		}
		if err := c.decoder().model(m, resp.Body); err != nil {
			return m, err
		}
		return m, nil
	})
}

// Destroy deletes m on the platform. Pass WithCascadeDelete to delete
// related objects too.
func (c *Client) Destroy(ctx context.Context, m Model, opts ...RequestOption) *Future[struct{}] {
	s, err := schemaOf(m)
	if err != nil {
		return failedFuture[struct{}](err)
	}
	if m.ID() == "" {
		return failedFuture[struct{}](fmt.Errorf("%w: destroy %s", ErrMissingID, s.name))
	}
	return discard(c.do(ctx, newRequest(http.MethodDelete, apiTarget, buildPath(s.name, m.ID()), nil, opts)))
}

func discard(f *Future[*Response]) *Future[struct{}] {
	return mapFuture(f, func(*Response) (struct{}, error) { return struct{}{}, nil })
}

// BulkResult reports which objects a relation operation created
type BulkResult struct {
	Succeeded []string `json:"succeeded"`
	Failed    []string `json:"failed"`
}

// relationPath returns /<schema>/<id>/<field> after checking both exist
func relationPath(parent Model, field string) (string, error) {
	s, err := schemaOf(parent)
	if err != nil {
		return "", err
	}
	if _, ok := s.lookup(field); !ok {
		return "", fmt.Errorf("%w: %q in schema %q", ErrUnknownField, field, s.name)
	}
	if parent.ID() == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingID, s.name)
	}
	return buildPath(s.name, parent.ID(), field), nil
}

// AddRelated creates children and appends them to parent's relation field
// in one request.
func (c *Client) AddRelated(ctx context.Context, parent Model, field string, children ...Model) *Future[BulkResult] {
	path, err := relationPath(parent, field)
	if err != nil {
		return failedFuture[BulkResult](err)
	}

	docs := make([]map[string]any, 0, len(children))
	for _, child := range children {
		doc, err := document(child)
		if err != nil {
			return failedFuture[BulkResult](err)
		}
		docs = append(docs, doc)
	}
	body, err := json.Marshal(docs)
	if err != nil {
		return failedFuture[BulkResult](err)
	}

	return mapFuture(c.do(ctx, newRequest(http.MethodPost, apiTarget, path, body, nil)), func(resp *Response) (BulkResult, error) {
		var result BulkResult
		if len(bytes.TrimSpace(resp.Body)) == 0 {
			return result, nil
		}
		if err := json.Unmarshal(resp.Body, &result); err != nil {
			return result, fmt.Errorf("failed to decode relation result: %w", err)
		}
		return result, nil
	})
}

// AppendToArray adds values to an array or relation field of a saved
// object without rewriting the rest of it.
func (c *Client) AppendToArray(ctx context.Context, m Model, field string, values ...string) *Future[struct{}] {
	path, err := relationPath(m, field)
	if err != nil {
		return failedFuture[struct{}](err)
	}
	body, err := json.Marshal(values)
	if err != nil {
		return failedFuture[struct{}](err)
	}
	return discard(c.do(ctx, newRequest(http.MethodPut, apiTarget, path, body, nil)))
}

// RemoveFromArray removes values from an array or relation field. With
// WithCascadeDelete the referenced objects are deleted as well.
func (c *Client) RemoveFromArray(ctx context.Context, m Model, field string, values []string, opts ...RequestOption) *Future[struct{}] {
	path, err := relationPath(m, field)
	if err != nil {
		return failedFuture[struct{}](err)
	}
	if len(values) == 0 {
		return failedFuture[struct{}](fmt.Errorf("%w: no values to remove from %s", ErrInvalidConfig, field))
	}
	escaped := make([]string, len(values))
	for i, v := range values {
		escaped[i] = escape(v)
	}
	path += "/" + strings.Join(escaped, ",")
	return discard(c.do(ctx, newRequest(http.MethodDelete, apiTarget, path, nil, opts)))
}

// Wait blocks until every dispatched request has completed
func (c *Client) Wait(ctx context.Context) error {
	return c.pipeline.wait(ctx)
}

// Close stops the client from accepting new requests and releases idle
// connections. Requests already dispatched still complete. Close is safe
// to call multiple times.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	if t, ok := c.config.Transport.(interface{ CloseIdleConnections() }); ok {
		t.CloseIdleConnections()
	}
	return nil
}
