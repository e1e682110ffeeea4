// Package platform is the provider-agnostic core: raw results, typed results,
// token usage, the converter and extractor contracts, deferred results and
// the Platform façade that ties a catalog, model clients and converters
// together.
package platform

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/hpkotak/aiplatform/internal/message"
	"github.com/hpkotak/aiplatform/internal/model"
)

// Platform resolves models and dispatches calls for one provider.
// It holds no mutable state shared across calls.
type Platform struct {
	name       string
	catalog    *model.Catalog
	clients    []ModelClient
	converters []ResultConverter
	logger     *zap.Logger
}

// Option configures a Platform.
type Option func(*Platform)

// WithLogger sets the logger used for dispatch diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(p *Platform) {
		if l != nil {
			p.logger = l
		}
	}
}

// New builds a Platform from explicit collaborators.
func New(name string, catalog *model.Catalog, clients []ModelClient, converters []ResultConverter, opts ...Option) *Platform {
	p := &Platform{
		name:       name,
		catalog:    catalog,
		clients:    slices.Clone(clients),
		converters: slices.Clone(converters),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(zap.String("platform", name))
	return p
}

// Name returns the provider name.
func (p *Platform) Name() string { return p.name }

// Catalog returns the models this platform can call.
func (p *Platform) Catalog() *model.Catalog { return p.catalog }

// Invoke resolves modelName, checks the request against the model's
// capabilities, dispatches it and returns a result that converts lazily.
// Capability failures are reported before any transport call; transport
// errors are returned unchanged.
func (p *Platform) Invoke(ctx context.Context, modelName string, input message.Bag, opts Options) (*DeferredResult, error) {
	m, err := p.catalog.Resolve(modelName)
	if err != nil {
		return nil, err
	}
	opts = opts.withDefaults(m.Options())

	want := append(opts.Requirements(), ContentRequirements(input)...)
	if err := model.Require(m, want...); err != nil {
		p.logger.Debug("capability check failed", zap.String("model", m.Name()), zap.Error(err))
		return nil, err
	}

	client, err := p.client(m)
	if err != nil {
		return nil, err
	}
	converter, err := p.converter(m)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("dispatching",
		zap.String("model", m.Name()),
		zap.Int("messages", input.Len()),
		zap.Bool("stream", opts.Stream),
		zap.Int("tools", len(opts.Tools)),
	)

	raw, err := client.Request(ctx, m, input, opts)
	if err != nil {
		p.logger.Warn("request failed", zap.String("model", m.Name()), zap.Error(err))
		return nil, err
	}
	return NewDeferredResult(converter, raw, m, opts), nil
}

func (p *Platform) client(m model.Model) (ModelClient, error) {
	for _, c := range p.clients {
		if c.Supports(m) {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w %q (class %q)", ErrNoClient, m.Name(), m.Class())
}

func (p *Platform) converter(m model.Model) (ResultConverter, error) {
	for _, c := range p.converters {
		if c.Supports(m) {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: no result converter for model %q (class %q)", model.ErrUnsupportedModel, m.Name(), m.Class())
}
