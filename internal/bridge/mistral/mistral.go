// Package mistral connects the platform to the Mistral chat API, which
// speaks the Chat Completions wire format.
package mistral

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/hpkotak/aiplatform/internal/bridge/openai"
	"github.com/hpkotak/aiplatform/internal/message"
	"github.com/hpkotak/aiplatform/internal/model"
	"github.com/hpkotak/aiplatform/internal/platform"
	"github.com/hpkotak/aiplatform/internal/transport"
)

const providerName = "mistral"

// Class tags Mistral models.
const Class = "mistral"

// DefaultHost is the public API base URL.
const DefaultHost = "https://api.mistral.ai/v1"

const (
	headerTokensMinute = "x-ratelimit-limit-tokens-minute"
	headerTokensMonth  = "x-ratelimit-limit-tokens-month"
)

var (
	textCaps = []model.Capability{
		model.InputMessages, model.InputText,
		model.OutputText, model.OutputStreaming, model.OutputStructured, model.ToolCalling,
	}
	visionCaps = append(append([]model.Capability{}, textCaps...), model.InputImage)
)

// Catalog returns the Mistral models.
func Catalog() *model.Catalog {
	return model.MustCatalog(
		model.New("mistral-large-latest", Class, visionCaps...),
		model.New("mistral-medium-latest", Class, visionCaps...),
		model.New("mistral-small-latest", Class, visionCaps...),
		model.New("pixtral-large-latest", Class, visionCaps...),
		model.New("codestral-latest", Class, textCaps...),
		model.New("open-mistral-nemo", Class, textCaps...),
	)
}

// Config holds connection settings.
type Config struct {
	Host       string
	APIKey     string
	HTTPClient *http.Client
	Logger     *zap.Logger
	Catalog    *model.Catalog
}

// Client sends requests to /chat/completions.
type Client struct {
	transport platform.Transport
}

func NewClient(t platform.Transport) *Client {
	return &Client{transport: t}
}

func (c *Client) Supports(m model.Model) bool { return m.Class() == Class }

func (c *Client) Request(ctx context.Context, m model.Model, input message.Bag, opts platform.Options) (platform.RawResult, error) {
	req, err := openai.BuildRequest(providerName, m, input, opts)
	if err != nil {
		return nil, err
	}
	return c.transport.Dispatch(ctx, openai.NewRequest(req))
}

// Converter decodes replies with the Chat Completions helpers.
type Converter struct{}

func (Converter) Supports(m model.Model) bool { return m.Class() == Class }

func (Converter) Convert(raw platform.RawResult, opts platform.Options) (platform.Result, error) {
	return openai.ConvertResponse(providerName, raw, opts)
}

// TokenUsageExtractor reads the usage object plus the token quota headers.
func (Converter) TokenUsageExtractor() platform.TokenUsageExtractor {
	return openai.UsageExtractor{
		RemainingMinuteHeader: headerTokensMinute,
		RemainingMonthHeader:  headerTokensMonth,
	}
}

// NewPlatform builds a Platform for the Mistral API.
func NewPlatform(cfg Config) (*platform.Platform, error) {
	host, err := transport.ResolveBaseURL(cfg.Host, DefaultHost)
	if err != nil {
		return nil, fmt.Errorf("parsing mistral host URL: %w", err)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("mistral api key is required (set MISTRAL_API_KEY)")
	}
	catalog := cfg.Catalog
	if catalog == nil {
		catalog = Catalog()
	}
	tr := transport.New(host,
		transport.WithClient(cfg.HTTPClient),
		transport.WithLogger(cfg.Logger),
		transport.WithHeader("Authorization", "Bearer "+cfg.APIKey),
	)
	return platform.New(providerName, catalog,
		[]platform.ModelClient{NewClient(tr)},
		[]platform.ResultConverter{Converter{}},
		platform.WithLogger(cfg.Logger),
	), nil
}
