// Package openai connects the platform to the OpenAI Chat Completions API.
// Its request and response helpers are shared with OpenAI-compatible vendors.
package openai

import (
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/hpkotak/aiplatform/internal/model"
	"github.com/hpkotak/aiplatform/internal/platform"
	"github.com/hpkotak/aiplatform/internal/transport"
)

const providerName = "openai"

// DefaultHost is the public API base URL.
const DefaultHost = "https://api.openai.com/v1"

// Config holds connection settings.
type Config struct {
	Host       string
	APIKey     string
	HTTPClient *http.Client
	Logger     *zap.Logger
	Catalog    *model.Catalog
}

// NewPlatform builds a Platform for the OpenAI API.
func NewPlatform(cfg Config) (*platform.Platform, error) {
	host, err := transport.ResolveBaseURL(cfg.Host, DefaultHost)
	if err != nil {
		return nil, fmt.Errorf("parsing openai host URL: %w", err)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("openai api key is required (set OPENAI_API_KEY)")
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
