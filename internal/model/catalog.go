package model

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Catalog is a read-only table of models keyed by name.
// It is built once at startup and never mutated afterward.
type Catalog struct {
	models map[string]Model
	order  []string
}

// NewCatalog registers models in order. Duplicate names are rejected.
func NewCatalog(models ...Model) (*Catalog, error) {
	c := &Catalog{models: make(map[string]Model, len(models))}
	for _, m := range models {
		if strings.TrimSpace(m.name) == "" {
			return nil, fmt.Errorf("model name must not be empty")
		}
		if _, exists := c.models[m.name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateModel, m.name)
		}
		c.models[m.name] = m
		c.order = append(c.order, m.name)
	}
	return c, nil
}

// MustCatalog is NewCatalog for static tables known to be valid.
func MustCatalog(models ...Model) *Catalog {
	c, err := NewCatalog(models...)
	if err != nil {
		panic(err)
	}
	return c
}

// Merge returns a new catalog holding the models of c followed by others.
func (c *Catalog) Merge(others ...*Catalog) (*Catalog, error) {
	all := c.Models()
	for _, o := range others {
		all = append(all, o.Models()...)
	}
	return NewCatalog(all...)
}

// Resolve looks up name. A query suffix ("gpt-4o?temperature=0.2") is parsed
// into the returned model's default options.
func (c *Catalog) Resolve(name string) (Model, error) {
	base, query, hasQuery := strings.Cut(strings.TrimSpace(name), "?")

	m, ok := c.models[base]
	if !ok {
		return Model{}, fmt.Errorf("%w: %s", ErrUnsupportedModel, base)
	}
	if !hasQuery || query == "" {
		return m, nil
	}

	opts, err := parseOptions(query)
	if err != nil {
		return Model{}, fmt.Errorf("parsing options for model %q: %w", base, err)
	}
	return m.WithOptions(opts), nil
}

// Has reports whether name (without options) is registered.
func (c *Catalog) Has(name string) bool {
	base, _, _ := strings.Cut(name, "?")
	_, ok := c.models[base]
	return ok
}

// Models returns all models in registration order.
func (c *Catalog) Models() []Model {
	out := make([]Model, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.models[name])
	}
	return out
}

// Len returns the number of registered models.
func (c *Catalog) Len() int { return len(c.order) }

func parseOptions(query string) (map[string]any, error) {
	values, err := url.ParseQuery(query)
	if err != nil {
		return nil, err
	}

	opts := make(map[string]any, len(values))
	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		opts[key] = typedValue(vals[len(vals)-1])
	}
	return opts, nil
}

func typedValue(raw string) any {
	if i, err := strconv.Atoi(raw); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}
