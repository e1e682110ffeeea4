package openai

import (
	"github.com/hpkotak/aiplatform/internal/model"
)

// Class tags models served by the Chat Completions API.
const Class = "openai"

var (
	reasoningCaps = []model.Capability{
		model.InputMessages, model.InputText,
		model.OutputText, model.OutputStreaming, model.OutputStructured, model.ToolCalling,
	}
	multimodalCaps = append(append([]model.Capability{}, reasoningCaps...), model.InputImage)
)

// Catalog returns the Chat Completions models.
func Catalog() *model.Catalog {
	return model.MustCatalog(
		model.New("gpt-4o", Class, multimodalCaps...),
		model.New("gpt-4o-mini", Class, multimodalCaps...),
		model.New("gpt-4.1", Class, multimodalCaps...),
		model.New("gpt-4.1-mini", Class, multimodalCaps...),
		model.New("gpt-4.1-nano", Class, multimodalCaps...),
		model.New("o3-mini", Class, reasoningCaps...),
		model.New("o4-mini", Class, multimodalCaps...),
	)
}
