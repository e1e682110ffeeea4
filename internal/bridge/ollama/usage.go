package ollama

import (
	"github.com/tidwall/gjson"

	"github.com/hpkotak/aiplatform/internal/platform"
)

// UsageExtractor reads prompt_eval_count and eval_count. Streams report them
// on the first chunk with done:true. Ollama sends no total, so TotalTokens
// stays nil.
type UsageExtractor struct{}

func (UsageExtractor) Extract(raw platform.RawResult, opts platform.Options) (*platform.TokenUsage, error) {
	if opts.Stream {
		c, ok, err := platform.ScanTerminal(raw, func(c platform.Chunk) bool {
			return c.Get("done").Bool()
		})
		if err != nil || !ok {
			return nil, err
		}
		return usageFrom(gjson.ParseBytes(c.Raw)), nil
	}

	body, err := raw.Body()
	if err != nil {
		return nil, err
	}
	return usageFrom(gjson.ParseBytes(body)), nil
}

func usageFrom(doc gjson.Result) *platform.TokenUsage {
	usage := &platform.TokenUsage{
		PromptTokens:     platform.UsageCount(doc.Get("prompt_eval_count")),
		CompletionTokens: platform.UsageCount(doc.Get("eval_count")),
	}
	if usage.IsEmpty() {
		return nil
	}
	return usage
}
