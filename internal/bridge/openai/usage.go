package openai

import (
	"github.com/tidwall/gjson"

	"github.com/hpkotak/aiplatform/internal/platform"
)

// UsageExtractor reads the usage object of a Chat Completions reply. In a
// stream it is carried by the first chunk with a usage object, which is sent
// when stream_options.include_usage is set.
type UsageExtractor struct {
	// RemainingMinuteHeader, when set, names a header holding the remaining
	// per-minute token quota.
	RemainingMinuteHeader string
	// RemainingMonthHeader is the monthly counterpart.
	RemainingMonthHeader string
}

func (e UsageExtractor) Extract(raw platform.RawResult, opts platform.Options) (*platform.TokenUsage, error) {
	var doc gjson.Result
	if opts.Stream {
		c, ok, err := platform.ScanTerminal(raw, IsUsageChunk)
		if err != nil {
			return nil, err
		}
		if ok {
			doc = gjson.ParseBytes(c.Raw)
		}
	} else {
		body, err := raw.Body()
		if err != nil {
			return nil, err
		}
		doc = gjson.ParseBytes(body)
	}

	usage := UsageFrom(doc)
	if usage == nil {
		usage = &platform.TokenUsage{}
	}
	if e.RemainingMinuteHeader != "" {
		usage.RemainingTokensMinute = platform.HeaderCount(raw.Header(), e.RemainingMinuteHeader)
	}
	if e.RemainingMonthHeader != "" {
		usage.RemainingTokensMonth = platform.HeaderCount(raw.Header(), e.RemainingMonthHeader)
	}
	if usage.IsEmpty() {
		return nil, nil
	}
	return usage, nil
}

// IsUsageChunk reports whether a stream chunk carries the usage object.
func IsUsageChunk(c platform.Chunk) bool {
	return c.Get("usage").IsObject()
}

// UsageFrom maps the usage object of a response document; nil when absent.
func UsageFrom(doc gjson.Result) *platform.TokenUsage {
	u := doc.Get("usage")
	if !u.IsObject() {
		return nil
	}
	usage := &platform.TokenUsage{
		PromptTokens:     platform.UsageCount(u.Get("prompt_tokens")),
		CompletionTokens: platform.UsageCount(u.Get("completion_tokens")),
		TotalTokens:      platform.UsageCount(u.Get("total_tokens")),
		ThinkingTokens:   platform.UsageCount(u.Get("completion_tokens_details.reasoning_tokens")),
		CachedTokens:     platform.UsageCount(u.Get("prompt_tokens_details.cached_tokens")),
	}
	if usage.IsEmpty() {
		return nil
	}
	return usage
}
