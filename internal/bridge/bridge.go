// Package bridge builds the configured provider platform.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/hpkotak/aiplatform/internal/bridge/anthropic"
	"github.com/hpkotak/aiplatform/internal/bridge/mistral"
	"github.com/hpkotak/aiplatform/internal/bridge/ollama"
	"github.com/hpkotak/aiplatform/internal/bridge/openai"
	"github.com/hpkotak/aiplatform/internal/config"
	"github.com/hpkotak/aiplatform/internal/model"
	"github.com/hpkotak/aiplatform/internal/platform"
	"github.com/hpkotak/aiplatform/internal/transport"
)

// ErrUnknownProvider is returned for provider names no bridge handles.
var ErrUnknownProvider = errors.New("unsupported provider")

// BuildConfig contains provider settings used by the factory.
type BuildConfig struct {
	Name    string
	Host    string
	APIKey  string
	Logger  *zap.Logger
	Client  *http.Client
	Catalog *model.Catalog
}

// FromConfig derives a BuildConfig for provider from the config file and
// the environment secrets. An empty provider selects cfg.Provider.
func FromConfig(cfg *config.Config, secrets config.Secrets, provider string) BuildConfig {
	if provider == "" {
		provider = cfg.Provider
	}
	return BuildConfig{
		Name:   provider,
		Host:   cfg.Host(provider),
		APIKey: secrets.APIKey(provider),
	}
}

// NewPlatform builds the platform for cfg.Name.
func NewPlatform(cfg BuildConfig) (*platform.Platform, error) {
	client := cfg.Client
	if client == nil {
		client = transport.NewHTTPClient()
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Name)) {
	case "ollama":
		return ollama.NewPlatform(ollama.Config{Host: cfg.Host, HTTPClient: client, Logger: cfg.Logger, Catalog: cfg.Catalog})
	case "openai":
		return openai.NewPlatform(openai.Config{Host: cfg.Host, APIKey: cfg.APIKey, HTTPClient: client, Logger: cfg.Logger, Catalog: cfg.Catalog})
	case "anthropic":
		return anthropic.NewPlatform(anthropic.Config{Host: cfg.Host, APIKey: cfg.APIKey, HTTPClient: client, Logger: cfg.Logger, Catalog: cfg.Catalog})
	case "mistral":
		return mistral.NewPlatform(mistral.Config{Host: cfg.Host, APIKey: cfg.APIKey, HTTPClient: client, Logger: cfg.Logger, Catalog: cfg.Catalog})
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownProvider, cfg.Name)
	}
}

// Catalog returns the built-in catalog of a provider.
func Catalog(provider string) (*model.Catalog, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "ollama":
		return ollama.Catalog(), nil
	case "openai":
		return openai.Catalog(), nil
	case "anthropic":
		return anthropic.Catalog(), nil
	case "mistral":
		return mistral.Catalog(), nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownProvider, provider)
	}
}

// RemoteModels lists models the provider actually serves. Only Ollama
// exposes a listing this tool uses; other providers return their catalog.
func RemoteModels(ctx context.Context, cfg BuildConfig) ([]string, error) {
	if strings.EqualFold(cfg.Name, "ollama") {
		return ollama.ListModels(ctx, cfg.Host, cfg.Client)
	}
	cat, err := Catalog(cfg.Name)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, cat.Len())
	for _, m := range cat.Models() {
		names = append(names, m.Name())
	}
	return names, nil
}
