// Package model describes callable AI models, the capabilities they declare,
// and the static catalog that resolves model names for a platform.
package model

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

var (
	// ErrUnsupportedModel indicates the requested model is not in the catalog.
	ErrUnsupportedModel = errors.New("unsupported model")

	// ErrDuplicateModel indicates an attempt to register the same model twice.
	ErrDuplicateModel = errors.New("model already registered")

	// ErrUnsupportedCapability indicates a request needs something the model can't do.
	ErrUnsupportedCapability = errors.New("unsupported capability")
)

// Model is an immutable description of a callable model.
type Model struct {
	name    string
	class   string
	caps    []Capability
	options map[string]any
}

// New builds a Model. Duplicate capabilities are collapsed.
func New(name, class string, caps ...Capability) Model {
	set := make([]Capability, 0, len(caps))
	for _, c := range caps {
		if !slices.Contains(set, c) {
			set = append(set, c)
		}
	}
	return Model{name: name, class: class, caps: set}
}

// Name returns the model identifier sent to the vendor.
func (m Model) Name() string { return m.name }

// Class returns the vendor class tag used to select clients and converters.
func (m Model) Class() string { return m.class }

// Capabilities returns a copy of the declared capability set.
func (m Model) Capabilities() []Capability {
	return slices.Clone(m.caps)
}

// Supports reports whether the model declares c.
func (m Model) Supports(c Capability) bool {
	return slices.Contains(m.caps, c)
}

// Missing returns the capabilities in want that the model does not declare.
func (m Model) Missing(want ...Capability) []Capability {
	var missing []Capability
	for _, c := range want {
		if !m.Supports(c) && !slices.Contains(missing, c) {
			missing = append(missing, c)
		}
	}
	return missing
}

// Options returns a copy of the default call options attached at resolve time.
func (m Model) Options() map[string]any {
	return maps.Clone(m.options)
}

// WithOptions returns a copy of m carrying the given default options.
func (m Model) WithOptions(opts map[string]any) Model {
	merged := maps.Clone(m.options)
	if merged == nil {
		merged = make(map[string]any, len(opts))
	}
	maps.Copy(merged, opts)
	m.options = merged
	m.caps = slices.Clone(m.caps)
	return m
}

func (m Model) String() string { return m.name }

// CapabilityError reports the capabilities a request needed but the model lacks.
type CapabilityError struct {
	Model   string
	Missing []Capability
}

func (e *CapabilityError) Error() string {
	names := make([]string, len(e.Missing))
	for i, c := range e.Missing {
		names[i] = string(c)
	}
	return fmt.Sprintf("%s: model %q does not support %s", ErrUnsupportedCapability, e.Model, strings.Join(names, ", "))
}

func (e *CapabilityError) Is(target error) bool {
	return target == ErrUnsupportedCapability
}

// Require returns a *CapabilityError when m lacks any of want.
func Require(m Model, want ...Capability) error {
	if missing := m.Missing(want...); len(missing) > 0 {
		return &CapabilityError{Model: m.name, Missing: missing}
	}
	return nil
}
