package anthropic

import (
	"github.com/hpkotak/aiplatform/internal/model"
)

// Class tags models served by the Messages API.
const Class = "anthropic"

var claudeCaps = []model.Capability{
	model.InputMessages, model.InputText, model.InputImage,
	model.OutputText, model.OutputStreaming, model.OutputStructured, model.ToolCalling,
}

// Catalog returns the Claude models.
func Catalog() *model.Catalog {
	return model.MustCatalog(
		model.New("claude-opus-4-1", Class, claudeCaps...),
		model.New("claude-sonnet-4-5", Class, claudeCaps...),
		model.New("claude-sonnet-4-0", Class, claudeCaps...),
		model.New("claude-3-7-sonnet-latest", Class, claudeCaps...),
		model.New("claude-3-5-haiku-latest", Class, claudeCaps...),
	)
}
