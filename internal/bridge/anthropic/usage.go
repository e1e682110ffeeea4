package anthropic

import (
	"github.com/tidwall/gjson"

	"github.com/hpkotak/aiplatform/internal/platform"
)

// UsageExtractor reads the usage object of a message. Streams report final
// usage on the first message_delta event carrying one; counters it omits are
// taken from the message_start usage. The API sends no total, so TotalTokens
// stays nil.
type UsageExtractor struct{}

func (UsageExtractor) Extract(raw platform.RawResult, opts platform.Options) (*platform.TokenUsage, error) {
	if opts.Stream {
		var start *platform.TokenUsage
		c, ok, err := platform.ScanTerminal(raw, func(c platform.Chunk) bool {
			switch c.Get("type").String() {
			case "message_start":
				start = usageFrom(c.Get("message.usage"))
			case "message_delta":
				return c.Get("usage").IsObject()
			}
			return false
		})
		if err != nil {
			return nil, err
		}
		if !ok {
			return start, nil
		}
		return mergeUsage(usageFrom(c.Get("usage")), start), nil
	}

	body, err := raw.Body()
	if err != nil {
		return nil, err
	}
	return usageFrom(gjson.GetBytes(body, "usage")), nil
}

func usageFrom(u gjson.Result) *platform.TokenUsage {
	if !u.IsObject() {
		return nil
	}
	usage := &platform.TokenUsage{
		PromptTokens:     platform.UsageCount(u.Get("input_tokens")),
		CompletionTokens: platform.UsageCount(u.Get("output_tokens")),
		CachedTokens: platform.SumCounts(
			platform.UsageCount(u.Get("cache_creation_input_tokens")),
			platform.UsageCount(u.Get("cache_read_input_tokens")),
		),
		ToolTokens: platform.UsageCount(u.Get("server_tool_use.web_search_requests")),
	}
	if usage.IsEmpty() {
		return nil
	}
	return usage
}

// mergeUsage fills the counters final left unset from start.
func mergeUsage(final, start *platform.TokenUsage) *platform.TokenUsage {
	if final == nil {
		return start
	}
	if start == nil {
		return final
	}
	if final.PromptTokens == nil {
		final.PromptTokens = start.PromptTokens
	}
	if final.CompletionTokens == nil {
		final.CompletionTokens = start.CompletionTokens
	}
	if final.CachedTokens == nil {
		final.CachedTokens = start.CachedTokens
	}
	if final.ToolTokens == nil {
		final.ToolTokens = start.ToolTokens
	}
	return final
}
