package ollama

import (
	"github.com/hpkotak/aiplatform/internal/model"
)

// Class tags models served by this bridge.
const Class = "ollama"

var (
	chatCaps = []model.Capability{
		model.InputMessages, model.InputText,
		model.OutputText, model.OutputStreaming, model.OutputStructured,
	}
	toolCaps   = append(append([]model.Capability{}, chatCaps...), model.ToolCalling)
	visionCaps = append(append([]model.Capability{}, chatCaps...), model.InputImage)
)

// Catalog returns the models known to work with the Ollama chat endpoint.
func Catalog() *model.Catalog {
	return model.MustCatalog(
		model.New("llama3.2", Class, toolCaps...),
		model.New("llama3.1", Class, toolCaps...),
		model.New("qwen2.5", Class, toolCaps...),
		model.New("qwen2.5-coder", Class, toolCaps...),
		model.New("mistral", Class, toolCaps...),
		model.New("gemma3", Class, visionCaps...),
		model.New("llava", Class, visionCaps...),
		model.New("deepseek-r1", Class, chatCaps...),
	)
}

// LocalModel describes a model pulled into a local Ollama that is not part
// of the built-in catalog. Only plain chat capabilities are assumed.
func LocalModel(name string) model.Model {
	return model.New(name, Class, chatCaps...)
}

// WithLocalModels returns base extended by names it does not already hold.
func WithLocalModels(base *model.Catalog, names ...string) (*model.Catalog, error) {
	var extra []model.Model
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if n == "" || seen[n] || base.Has(n) {
			continue
		}
		seen[n] = true
		extra = append(extra, LocalModel(n))
	}
	if len(extra) == 0 {
		return base, nil
	}
	local, err := model.NewCatalog(extra...)
	if err != nil {
		return nil, err
	}
	return base.Merge(local)
}
