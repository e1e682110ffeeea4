// Package transport sends vendor requests over HTTP and exposes the replies
// as platform raw results.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hpkotak/aiplatform/internal/platform"
)

const errorBodyLimit = 512

// ErrStatus is matched by every *StatusError.
var ErrStatus = errors.New("upstream returned error status")

// StatusError is returned for HTTP responses with status >= 400.
type StatusError struct {
	StatusCode int
	Body       string
	RequestID  string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("upstream status %d: %s", e.StatusCode, e.Body)
	if e.RequestID != "" {
		msg += " (request id " + e.RequestID + ")"
	}
	return msg
}

func (e *StatusError) Is(target error) bool { return target == ErrStatus }

// NewHTTPClient returns an *http.Client tuned for long-lived vendor
// connections. Streaming calls rely on ctx for cancellation, so the client
// sets no overall timeout.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 2 * time.Minute,
			ForceAttemptHTTP2:     true,
		},
	}
}

// HTTP implements platform.Transport.
type HTTP struct {
	client  *http.Client
	baseURL string
	header  http.Header
	logger  *zap.Logger
}

// Option configures an HTTP transport.
type Option func(*HTTP)

// WithClient replaces the default *http.Client.
func WithClient(c *http.Client) Option {
	return func(t *HTTP) {
		if c != nil {
			t.client = c
		}
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) Option {
	return func(t *HTTP) { t.header.Set(key, value) }
}

// WithLogger sets the logger for dispatch diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(t *HTTP) {
		if l != nil {
			t.logger = l
		}
	}
}

// New creates an HTTP transport for baseURL. Request endpoints are joined to it.
func New(baseURL string, opts ...Option) *HTTP {
	t := &HTTP{
		client:  http.DefaultClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		header:  http.Header{},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// BaseURL returns the base URL requests are sent to.
func (t *HTTP) BaseURL() string { return t.baseURL }

// Dispatch POSTs req.Payload as JSON. Response bodies stay open for streamed
// requests and are read lazily by the returned *Response.
func (t *HTTP) Dispatch(ctx context.Context, req platform.Request) (platform.RawResult, error) {
	body, err := json.Marshal(req.Payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request payload: %w", err)
	}

	endpoint := t.baseURL + "/" + strings.TrimLeft(req.Endpoint, "/")
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	for k, vs := range t.header {
		httpReq.Header[k] = vs
	}
	for k, vs := range req.Header {
		httpReq.Header[k] = vs
	}
	httpReq.Header.Set("Content-Type", "application/json")
	switch req.Stream {
	case platform.StreamSSE:
		httpReq.Header.Set("Accept", "text/event-stream")
	case platform.StreamNDJSON:
		httpReq.Header.Set("Accept", "application/x-ndjson")
	default:
		httpReq.Header.Set("Accept", "application/json")
	}

	start := time.Now()
	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request to %s: %w", endpoint, err)
	}

	t.logger.Debug("vendor response",
		zap.String("url", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
		zap.Bool("stream", req.Stream != platform.StreamNone),
	)

	if resp.StatusCode >= http.StatusBadRequest {
		defer func() { _ = resp.Body.Close() }()
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       readErrorBody(resp.Body),
			RequestID:  requestID(resp.Header),
		}
	}
	return newResponse(resp, req.Stream), nil
}

func readErrorBody(r io.Reader) string {
	body, _ := io.ReadAll(io.LimitReader(r, errorBodyLimit))
	text := strings.TrimSpace(string(body))
	if text == "" {
		return "unknown error"
	}
	return text
}

func requestID(h http.Header) string {
	for _, key := range []string{"x-request-id", "request-id", "x-amzn-requestid"} {
		if v := h.Get(key); v != "" {
			return v
		}
	}
	return ""
}

// ResolveBaseURL trims host, falls back to def when empty and checks that
// the result is an absolute URL.
func ResolveBaseURL(host, def string) (string, error) {
	base := strings.TrimSpace(host)
	if base == "" {
		base = def
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return "", err
	}
	return strings.TrimRight(base, "/"), nil
}
