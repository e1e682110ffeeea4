// Package ollama connects the platform to a local Ollama server.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"

	"github.com/hpkotak/aiplatform/internal/model"
	"github.com/hpkotak/aiplatform/internal/platform"
	"github.com/hpkotak/aiplatform/internal/transport"
)

// DefaultHost is where a local Ollama listens.
const DefaultHost = "http://localhost:11434"

// Config holds connection settings.
type Config struct {
	Host       string
	HTTPClient *http.Client
	Logger     *zap.Logger
	// Catalog overrides the built-in catalog.
	Catalog *model.Catalog
}

// NewPlatform builds a Platform for an Ollama host.
func NewPlatform(cfg Config) (*platform.Platform, error) {
	host, err := parseHost(cfg.Host)
	if err != nil {
		return nil, err
	}
	catalog := cfg.Catalog
	if catalog == nil {
		catalog = Catalog()
	}
	tr := transport.New(host.String(),
		transport.WithClient(cfg.HTTPClient),
		transport.WithLogger(cfg.Logger),
	)
	return platform.New(providerName, catalog,
		[]platform.ModelClient{NewClient(tr)},
		[]platform.ResultConverter{Converter{}},
		platform.WithLogger(cfg.Logger),
	), nil
}

// ListModels returns the names of models pulled into the Ollama instance.
func ListModels(ctx context.Context, host string, httpClient *http.Client) ([]string, error) {
	base, err := parseHost(host)
	if err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := api.NewClient(base, httpClient).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot reach Ollama at %s: %w", base, err)
	}
	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

func parseHost(host string) (*url.URL, error) {
	if host == "" {
		host = DefaultHost
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("parsing ollama host URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("parsing ollama host URL: %q has no scheme or host", host)
	}
	return u, nil
}
