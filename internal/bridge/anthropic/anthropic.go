// Package anthropic connects the platform to the Anthropic Messages API.
package anthropic

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/hpkotak/aiplatform/internal/message"
	"github.com/hpkotak/aiplatform/internal/model"
	"github.com/hpkotak/aiplatform/internal/platform"
	"github.com/hpkotak/aiplatform/internal/transport"
)

const (
	providerName = "anthropic"
	apiVersion   = "2023-06-01"
)

// DefaultHost is the public API base URL.
const DefaultHost = "https://api.anthropic.com/v1"

// Config holds connection settings.
type Config struct {
	Host       string
	APIKey     string
	HTTPClient *http.Client
	Logger     *zap.Logger
	Catalog    *model.Catalog
}

// Client sends requests to /messages.
type Client struct {
	transport platform.Transport
}

func NewClient(t platform.Transport) *Client {
	return &Client{transport: t}
}

func (c *Client) Supports(m model.Model) bool { return m.Class() == Class }

func (c *Client) Request(ctx context.Context, m model.Model, input message.Bag, opts platform.Options) (platform.RawResult, error) {
	payload, err := buildPayload(m, input, opts)
	if err != nil {
		return nil, err
	}
	req := platform.Request{Endpoint: "/messages", Payload: payload}
	if opts.Stream {
		req.Stream = platform.StreamSSE
	}
	return c.transport.Dispatch(ctx, req)
}

// NewPlatform builds a Platform for the Anthropic API.
func NewPlatform(cfg Config) (*platform.Platform, error) {
	host, err := transport.ResolveBaseURL(cfg.Host, DefaultHost)
	if err != nil {
		return nil, fmt.Errorf("parsing anthropic host URL: %w", err)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("anthropic api key is required (set ANTHROPIC_API_KEY)")
	}
	catalog := cfg.Catalog
	if catalog == nil {
		catalog = Catalog()
	}
	tr := transport.New(host,
		transport.WithClient(cfg.HTTPClient),
		transport.WithLogger(cfg.Logger),
		transport.WithHeader("x-api-key", cfg.APIKey),
		transport.WithHeader("anthropic-version", apiVersion),
	)
	return platform.New(providerName, catalog,
		[]platform.ModelClient{NewClient(tr)},
		[]platform.ResultConverter{Converter{}},
		platform.WithLogger(cfg.Logger),
	), nil
}
