package platform

import (
	"maps"

	"github.com/hpkotak/aiplatform/internal/message"
	"github.com/hpkotak/aiplatform/internal/model"
)

// ToolDefinition describes a callable tool to the model.
type ToolDefinition struct {
	Name        string
	Description string
	// Parameters is a JSON schema object.
	Parameters map[string]any
}

// ResponseFormat requests structured output matching a JSON schema.
type ResponseFormat struct {
	Name   string
	Schema map[string]any
}

// Options are per-call settings shared by clients, converters and extractors.
type Options struct {
	Stream         bool
	Tools          []ToolDefinition
	ResponseFormat *ResponseFormat
	Temperature    *float64
	MaxTokens      int
	// Extra is passed through to vendor payloads that support it.
	Extra map[string]any
}

// Requirements returns the capabilities these options need from a model.
func (o Options) Requirements() []model.Capability {
	caps := []model.Capability{model.InputMessages}
	if o.Stream {
		caps = append(caps, model.OutputStreaming)
	}
	if len(o.Tools) > 0 {
		caps = append(caps, model.ToolCalling)
	}
	if o.ResponseFormat != nil {
		caps = append(caps, model.OutputStructured)
	} else {
		caps = append(caps, model.OutputText)
	}
	return caps
}

// withDefaults fills unset options from a resolved model's default options.
func (o Options) withDefaults(defaults map[string]any) Options {
	if o.Temperature == nil {
		if t, ok := number(defaults["temperature"]); ok {
			o.Temperature = &t
		}
	}
	if o.MaxTokens == 0 {
		if n, ok := number(defaults["max_tokens"]); ok {
			o.MaxTokens = int(n)
		}
	}
	if b, ok := defaults["stream"].(bool); ok && b {
		o.Stream = true
	}

	// Options are reused across calls; never write into the caller's map.
	extra := maps.Clone(o.Extra)
	for k, v := range defaults {
		switch k {
		case "temperature", "max_tokens", "stream":
			continue
		}
		if extra == nil {
			extra = make(map[string]any, len(defaults))
		}
		if _, set := extra[k]; !set {
			extra[k] = v
		}
	}
	o.Extra = extra
	return o
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// ContentRequirements maps the content kinds of a bag to input capabilities.
func ContentRequirements(bag message.Bag) []model.Capability {
	var caps []model.Capability
	for _, k := range bag.ContentKinds() {
		switch k {
		case message.KindText:
			caps = append(caps, model.InputText)
		case message.KindImage, message.KindImageURL:
			caps = append(caps, model.InputImage)
		case message.KindAudio:
			caps = append(caps, model.InputAudio)
		case message.KindVideo:
			caps = append(caps, model.InputVideo)
		}
	}
	return caps
}
