package sdk

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	mediaType    = "application/vnd.stackmob+json"
	tracerName   = "github.com/birbparty/stackmob/sdk"
	headerCookie = "Cookie"
)

type target int

const (
	apiTarget target = iota
	pushTarget
)

// request is one logical call before its URL is resolved. The host is
// read from the session when the request is sent.
type request struct {
	method string
	target target
	secure bool
	path   string
	header http.Header
	params map[string]string
	body   []byte
}

// pipeline builds, signs and dispatches requests and follows redirects
type pipeline struct {
	session      *Session
	jar          *CookieJar
	transport    Transport
	observer     Observer
	breakers     *hostBreakers
	limiter      *rate.Limiter
	tracer       trace.Tracer
	log          logrus.FieldLogger
	headers      map[string]string
	secure       bool
	maxRedirects int
	userAgent    string

	inflight inflightTracker
}

func newPipeline(config *Config, session *Session, jar *CookieJar) *pipeline {
	p := &pipeline{
		session:      session,
		jar:          jar,
		transport:    config.Transport,
		observer:     config.Observer,
		tracer:       otel.Tracer(tracerName),
		log:          config.Logger,
		headers:      config.Headers,
		secure:       config.Secure,
		maxRedirects: config.MaxRedirects,
		userAgent:    userAgent(config.AppName),
	}
	if config.CircuitBreakerConfig != nil {
		p.breakers = newHostBreakers(*config.CircuitBreakerConfig, config.Observer)
	}
	if config.RateLimit != nil {
		p.limiter = rate.NewLimiter(rate.Limit(config.RateLimit.RequestsPerSecond), config.RateLimit.Burst)
	}
	return p
}

func userAgent(appName string) string {
	ua := "StackMob (Go; " + Version + ")"
	if appName != "" {
		ua += "/" + appName
	}
	return ua
}

// send builds and signs r on the caller's goroutine and dispatches it on a
// new one. A request that cannot be built or signed is never dispatched;
// its future is already completed with SendStatusFailed.
func (p *pipeline) send(ctx context.Context, r *request) *Future[*Response] {
	u, err := p.resolve(r)
	if err != nil {
		return failedFuture[*Response](&TransportError{Op: "build", Method: r.method, Err: err})
	}
	req, err := p.newHTTPRequest(ctx, r, u)
	if err != nil {
		return failedFuture[*Response](&TransportError{Op: "build", Method: r.method, URL: u.String(), Err: err})
	}
	if err := p.transport.Sign(req); err != nil {
		return failedFuture[*Response](&TransportError{Op: "sign", Method: r.method, URL: u.String(), Err: err})
	}

	log := p.log.WithFields(logrus.Fields{
		"request.id": uuid.NewString(),
		"method":     r.method,
		"url":        u.String(),
	})

	f := newFuture[*Response]()
	p.inflight.add()
	go func() {
		defer p.inflight.done()
		resp, err := p.run(ctx, r, req, log)
		if err != nil {
			log.WithError(err).Debug("Request failed")
		}
		f.complete(resp, err)
	}()
	return f
}

// resolve builds the absolute URL of r against the current session hosts
func (p *pipeline) resolve(r *request) (*url.URL, error) {
	apiHost, pushHost := p.session.Hosts()
	host := apiHost
	if r.target == pushTarget {
		host = pushHost
	}

	scheme := "http"
	if r.secure || p.secure {
		scheme = "https"
	}

	raw := scheme + "://" + host + r.path
	if r.method == http.MethodGet || r.method == http.MethodDelete {
		if q := encodeQuery(r.params); q != "" {
			raw += "?" + q
		}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Host == "" {
		return nil, fmt.Errorf("no host in %q", raw)
	}
	return u, nil
}

// newHTTPRequest creates an unsigned request for r aimed at u
func (p *pipeline) newHTTPRequest(ctx context.Context, r *request, u *url.URL) (*http.Request, error) {
	var body io.Reader
	if len(r.body) > 0 && (r.method == http.MethodPost || r.method == http.MethodPut) {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", mediaType+";")
	req.Header.Set("Accept", mediaType+"; version="+strconv.Itoa(p.session.APIVersion()))
	req.Header.Set("User-Agent", p.userAgent)
	if cookies := p.jar.Render(); cookies != "" {
		req.Header.Set(headerCookie, cookies)
	}
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}
	for k, values := range r.header {
		req.Header.Del(k)
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	return req, nil
}

// run sends req and follows redirects until a terminal outcome
func (p *pipeline) run(ctx context.Context, r *request, req *http.Request, log logrus.FieldLogger) (*Response, error) {
	for hops := 0; ; hops++ {
		resp, err := p.roundTrip(ctx, req)
		if err != nil {
			return nil, err
		}

		next, redirected := redirectTarget(req.URL, resp)
		if !redirected || p.maxRedirects == NoRedirects {
			if resp.StatusCode >= 100 && resp.StatusCode < 400 {
				return resp, nil
			}
			return nil, &HTTPResponseError{
				StatusCode: resp.StatusCode,
				Header:     resp.Header,
				Body:       resp.Body,
				Method:     req.Method,
				URL:        req.URL.String(),
			}
		}

		if hops >= p.maxRedirects {
			return nil, &RedirectLoopError{URL: next.String(), Hops: hops}
		}

		notice := RedirectNotice{
			OriginalURL: req.URL.String(),
			Header:      resp.Header,
			Body:        resp.Body,
			NewURL:      next.String(),
		}
		log.WithField("location", notice.NewURL).Debug("Following redirect")
		p.observer.OnRedirect(notice)
		p.session.HandleRedirect(notice)

		req, err = p.newHTTPRequest(ctx, r, next)
		if err != nil {
			return nil, &TransportError{Op: "redirect", Method: r.method, URL: next.String(), Err: err}
		}
		if err := p.transport.Sign(req); err != nil {
			return nil, &TransportError{Op: "sign", Method: r.method, URL: next.String(), Err: err}
		}
	}
}

// roundTrip performs one leg: rate limit, breaker, transport, cookies.
// Only transport failures are returned as errors; every response,
// whatever its status, is returned as a value.
func (p *pipeline) roundTrip(ctx context.Context, req *http.Request) (*Response, error) {
	ctx, span := p.tracer.Start(ctx, "stackmob "+req.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.full", req.URL.String()),
			attribute.String("server.address", req.URL.Host),
		))
	defer span.End()
	req = req.WithContext(ctx)

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "rate limit")
			return nil, &TransportError{Op: "rate limit", Method: req.Method, URL: req.URL.String(), Err: err}
		}
	}

	rawURL := req.URL.String()
	p.observer.OnRequestStart(req.Method, rawURL)
	start := time.Now()

	var resp *Response
	call := func() error {
		var err error
		resp, err = p.transport.Send(req)
		if err != nil {
			return err
		}
		if resp.StatusCode >= 500 {
			return errServerStatus
		}
		return nil
	}

	var err error
	if p.breakers != nil {
		err = p.breakers.Execute(req.URL.Host, call)
	} else {
		err = call()
	}
	if errors.Is(err, errServerStatus) {
		err = nil
	}

	status := 0
	if err != nil {
		err = &TransportError{Op: "send", Method: req.Method, URL: rawURL, Err: err}
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
	} else {
		status = resp.StatusCode
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if status >= 400 {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
		p.jar.Ingest(resp.Header)
	}

	p.observer.OnRequestEnd(req.Method, rawURL, status, time.Since(start), err)
	return resp, err
}

// redirectTarget returns the resolved Location of a redirect response
func redirectTarget(base *url.URL, resp *Response) (*url.URL, bool) {
	if resp.StatusCode < 300 || resp.StatusCode >= 400 || resp.StatusCode == http.StatusNotModified {
		return nil, false
	}
	location := resp.Header.Get("Location")
	if location == "" {
		return nil, false
	}
	loc, err := url.Parse(location)
	if err != nil {
		return nil, false
	}
	return base.ResolveReference(loc), true
}

// wait blocks until no request is in flight or ctx is done. Sends may
// race a wait; it returns at the first moment the count reaches zero.
func (p *pipeline) wait(ctx context.Context) error {
	select {
	case <-p.inflight.idle():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// inflightTracker counts dispatched requests. Unlike sync.WaitGroup it
// allows add to run concurrently with a waiter on an idle count.
type inflightTracker struct {
	mu     sync.Mutex
	n      int
	idleCh chan struct{} // closed when n drops to zero; nil while idle
}

func (t *inflightTracker) add() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.n == 0 {
		t.idleCh = make(chan struct{})
	}
	t.n++
}

func (t *inflightTracker) done() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.n--
	if t.n == 0 {
		close(t.idleCh)
		t.idleCh = nil
	}
}

// idle returns a channel closed once the current count reaches zero
func (t *inflightTracker) idle() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.n == 0 {
		return closedCh
	}
	return t.idleCh
}

var closedCh = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Host
}
