// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

// Package transport is the engine's only path to the cloud service.
//
// Every request is signed with OAuth 1.0 (dghubble/oauth1), carries the
// device id and realtime session id when known, is paced by a token bucket
// and passes through a circuit breaker. Failures come back as *Error with a
// Kind; the client never retries on its own.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dghubble/oauth1"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/cadence/internal/logging"
	"github.com/tomtom215/cadence/internal/metrics"
	"github.com/tomtom215/cadence/internal/models"
)

const (
	// HeaderSessionID identifies the realtime channel of this client.
	HeaderSessionID = "X-Session-ID"
	// HeaderRequestID is a fresh uuid per request.
	HeaderRequestID = "X-Request-ID"

	maxResponseBytes = 8 << 20
)

// Config configures a Client.
type Config struct {
	Domain         string
	ConsumerKey    string
	ConsumerSecret string
	Timeout        time.Duration
	RateLimit      float64 // requests per second, 0 = unlimited
	Burst          int
	UserAgent      string

	// HTTPClient is the base client requests are sent with. Nil uses a
	// fresh client; tests pass httptest clients here.
	HTTPClient *http.Client
}

// Request is one call to the service. Path is relative to the domain unless
// it is an absolute URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any

	// Expect lists acceptable statuses. Empty accepts any 2xx.
	Expect []int
}

// Result is a normalized response.
type Result struct {
	Status int
	Body   []byte
	Header http.Header
}

// Decode unmarshals the body into v. Decoding failures are Malformed.
func (r *Result) Decode(v any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return &Error{Kind: Malformed, Status: r.Status, Err: errors.New("empty body")}
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &Error{Kind: Malformed, Status: r.Status, Err: err}
	}
	return nil
}

// Client sends signed requests to the service.
type Client struct {
	domain    *url.URL
	oauth     *oauth1.Config
	base      *http.Client
	timeout   time.Duration
	userAgent string
	limiter   *rate.Limiter
	breaker   *breaker
	logger    zerolog.Logger

	mu        sync.RWMutex
	token     *oauth1.Token
	deviceID  int64
	sessionID string

	// sendMu is held from signing until the request is on the wire so
	// header computation and stream writes never interleave.
	sendMu sync.Mutex
}

// New builds a Client. The domain must be an absolute http(s) URL.
func New(cfg Config) (*Client, error) {
	domain, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.Domain), "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid service domain: %w", err)
	}
	if domain.Scheme != "http" && domain.Scheme != "https" {
		return nil, fmt.Errorf("invalid service domain %q: scheme must be http or https", cfg.Domain)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	base := cfg.HTTPClient
	if base == nil {
		base = &http.Client{}
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	ua := cfg.UserAgent
	if ua == "" {
		ua = "Cadence"
	}

	return &Client{
		domain:    domain,
		oauth:     oauth1.NewConfig(cfg.ConsumerKey, cfg.ConsumerSecret),
		base:      base,
		timeout:   timeout,
		userAgent: ua,
		limiter:   limiter,
		breaker:   newBreaker("cloud-service"),
		logger:    logging.Component("transport"),
	}, nil
}

// Domain returns the configured service root.
func (c *Client) Domain() string { return c.domain.String() }

// SetCredentials installs the per-user OAuth token pair.
func (c *Client) SetCredentials(creds models.Credentials) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if creds.Valid() {
		c.token = oauth1.NewToken(creds.Token, creds.Secret)
	} else {
		c.token = nil
	}
}

// HasCredentials reports whether requests are signed with a user token.
func (c *Client) HasCredentials() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != nil
}

// SetDeviceID sets the id appended as device_id. 0 stops appending it.
func (c *Client) SetDeviceID(id int64) {
	c.mu.Lock()
	c.deviceID = id
	c.mu.Unlock()
}

// DeviceID returns the id currently appended to requests.
func (c *Client) DeviceID() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.deviceID
}

// SetSessionID sets the realtime session header. Empty removes it.
func (c *Client) SetSessionID(id string) {
	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
}

// SessionID returns the realtime session id.
func (c *Client) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// Resolve turns a path into an absolute URL. Absolute URLs pass through.
func (c *Client) Resolve(path string) (*url.URL, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return url.Parse(path)
	}
	u := *c.domain
	joined := strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	rel, err := url.Parse(joined)
	if err != nil {
		return nil, err
	}
	u.Path = rel.Path
	u.RawQuery = rel.RawQuery
	return &u, nil
}

// Send performs r and returns the response. A response whose status is not
// acceptable comes back with both the Result and an *Error.
func (c *Client) Send(ctx context.Context, r Request) (*Result, error) {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	op := method + " " + r.Path

	req, err := c.build(ctx, method, r)
	if err != nil {
		return nil, &Error{Kind: Unexpected, Op: op, Err: err}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, c.fail(op, classifyTransport(ctx, err), err)
		}
	}

	start := time.Now()
	res, err := c.breaker.execute(func() (*Result, error) {
		return c.do(req)
	})
	if err != nil {
		metrics.RecordTransportRequest(method, 0, time.Since(start))
		if isBreakerRejection(err) {
			return nil, c.fail(op, Unreachable, err)
		}
		return nil, c.fail(op, classifyTransport(ctx, err), err)
	}
	metrics.RecordTransportRequest(method, res.Status, time.Since(start))

	c.logger.Debug().Str("op", op).Int("status", res.Status).Dur("took", time.Since(start)).Msg("request complete")

	if !acceptable(res.Status, r.Expect) {
		kind := kindForStatus(res.Status)
		metrics.RecordTransportError(kind.String())
		return res, &Error{Kind: kind, Op: op, Status: res.Status}
	}
	return res, nil
}

// Ping probes target with an unsigned GET. Any HTTP response is success.
func (c *Client) Ping(ctx context.Context, target string) error {
	u, err := c.Resolve(target)
	if err != nil {
		return &Error{Kind: Unexpected, Op: "PING " + target, Err: err}
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return &Error{Kind: Unexpected, Op: "PING " + target, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.base.Do(req)
	if err != nil {
		return c.fail("PING "+target, classifyTransport(ctx, err), err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
	_ = resp.Body.Close()
	return nil
}

func (c *Client) build(ctx context.Context, method string, r Request) (*http.Request, error) {
	u, err := c.Resolve(r.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", r.Path, err)
	}

	q := u.Query()
	for k, vs := range r.Query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}

	c.mu.RLock()
	deviceID, sessionID := c.deviceID, c.sessionID
	c.mu.RUnlock()

	if deviceID != 0 {
		q.Set("device_id", strconv.FormatInt(deviceID, 10))
	}
	u.RawQuery = q.Encode()

	var body io.Reader = http.NoBody
	if r.Body != nil {
		data, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(HeaderRequestID, uuid.NewString())
	if r.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sessionID != "" {
		req.Header.Set(HeaderSessionID, sessionID)
	}
	return req, nil
}

// do signs and sends req under the send lock. Only failures to get a
// response are returned as errors so the breaker counts nothing else.
func (c *Client) do(req *http.Request) (*Result, error) {
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()

	client := c.httpClient(req.Context(), token)

	c.sendMu.Lock()
	var once sync.Once
	release := func() { once.Do(c.sendMu.Unlock) }
	trace := &httptrace.ClientTrace{
		WroteRequest: func(httptrace.WroteRequestInfo) { release() },
	}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))

	resp, err := client.Do(req)
	release()
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return &Result{Status: resp.StatusCode, Body: data, Header: resp.Header}, nil
}

// httpClient returns a client that signs with token, or the plain base
// client when no user is linked.
func (c *Client) httpClient(ctx context.Context, token *oauth1.Token) *http.Client {
	if token == nil {
		hc := *c.base
		hc.Timeout = c.timeout
		return &hc
	}
	hc := c.oauth.Client(context.WithValue(ctx, oauth1.HTTPClient, c.base), token)
	hc.Timeout = c.timeout
	return hc
}

func (c *Client) fail(op string, kind Kind, err error) *Error {
	metrics.RecordTransportError(kind.String())
	if kind != Canceled {
		c.logger.Warn().Str("op", op).Str("kind", kind.String()).Err(err).Msg("request failed")
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// classifyTransport maps a no-response failure to Timeout, Canceled or Unreachable.
func classifyTransport(ctx context.Context, err error) Kind {
	if errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled) {
		return Canceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return Timeout
	}
	return Unreachable
}

func acceptable(status int, expect []int) bool {
	if len(expect) == 0 {
		return status >= 200 && status < 300
	}
	for _, s := range expect {
		if s == status {
			return true
		}
	}
	return false
}

// BreakerState returns "closed", "half-open" or "open".
func (c *Client) BreakerState() string { return c.breaker.State() }
