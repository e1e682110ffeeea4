package openai

import (
	"cmp"
	"encoding/json"
	"slices"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/tidwall/gjson"

	"github.com/hpkotak/aiplatform/internal/message"
	"github.com/hpkotak/aiplatform/internal/model"
	"github.com/hpkotak/aiplatform/internal/platform"
)

// Converter maps Chat Completions responses to results.
type Converter struct{}

func (Converter) Supports(m model.Model) bool { return m.Class() == Class }

func (Converter) TokenUsageExtractor() platform.TokenUsageExtractor {
	return UsageExtractor{RemainingMinuteHeader: "x-ratelimit-remaining-tokens"}
}

func (Converter) Convert(raw platform.RawResult, opts platform.Options) (platform.Result, error) {
	return ConvertResponse(providerName, raw, opts)
}

// ConvertResponse decodes a Chat Completions reply. Metadata keys are
// prefixed with provider.
func ConvertResponse(provider string, raw platform.RawResult, opts platform.Options) (platform.Result, error) {
	if opts.Stream {
		return platform.NewStreamResult(raw.Chunks(), NewChunkConverter(provider)), nil
	}

	body, err := raw.Body()
	if err != nil {
		return nil, err
	}
	var resp goopenai.ChatCompletionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &platform.ConversionError{Provider: provider, Reason: "decoding chat completion", Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, platform.NewConversionError(provider, "response has no choices")
	}
	choice := resp.Choices[0]

	var res platform.Result
	switch {
	case len(choice.Message.ToolCalls) > 0:
		calls, err := toolCalls(provider, choice.Message.ToolCalls)
		if err != nil {
			return nil, err
		}
		tc := platform.NewToolCallResult(calls...)
		tc.Content = choice.Message.Content
		res = tc
	case opts.ResponseFormat != nil:
		var data any
		if err := json.Unmarshal([]byte(choice.Message.Content), &data); err != nil {
			return nil, &platform.ConversionError{Provider: provider, Reason: "structured output is not valid JSON", Err: err}
		}
		res = platform.NewStructuredResult(data, choice.Message.Content)
	default:
		text := platform.NewTextResult(choice.Message.Content)
		text.Thinking = gjson.GetBytes(body, "choices.0.message.reasoning_content").String()
		res = text
	}

	meta := res.Metadata()
	meta.Set(provider+".id", resp.ID)
	meta.Set(provider+".model", resp.Model)
	if choice.FinishReason != "" {
		meta.Set(provider+".finish_reason", string(choice.FinishReason))
	}
	return res, nil
}

func toolCalls(provider string, in []goopenai.ToolCall) ([]message.ToolCall, error) {
	out := make([]message.ToolCall, 0, len(in))
	for _, tc := range in {
		call, err := toolCall(provider, tc.ID, tc.Function.Name, tc.Function.Arguments)
		if err != nil {
			return nil, err
		}
		out = append(out, call)
	}
	return out, nil
}

func toolCall(provider, id, name, arguments string) (message.ToolCall, error) {
	if strings.TrimSpace(id) == "" {
		id = message.NewToolCallID()
	}
	call := message.ToolCall{ID: id, Name: name}
	if strings.TrimSpace(arguments) == "" {
		return call, nil
	}
	if err := json.Unmarshal([]byte(arguments), &call.Arguments); err != nil {
		return message.ToolCall{}, &platform.ConversionError{Provider: provider, Reason: "tool call arguments of " + name + " are not a JSON object", Err: err}
	}
	return call, nil
}

type pendingCall struct {
	index int
	id    string
	name  string
	args  strings.Builder
}

// NewChunkConverter returns a stateful converter for one stream. Tool call
// fragments are assembled by index and emitted together once a chunk
// carries a finish reason.
func NewChunkConverter(provider string) platform.ChunkConverter {
	pending := map[int]*pendingCall{}

	return func(c platform.Chunk) ([]platform.Delta, error) {
		var resp goopenai.ChatCompletionStreamResponse
		if err := json.Unmarshal(c.Raw, &resp); err != nil {
			return nil, &platform.ConversionError{Provider: provider, Reason: "decoding stream chunk", Err: err}
		}
		if len(resp.Choices) == 0 {
			return nil, nil
		}
		choice := resp.Choices[0]

		var deltas []platform.Delta
		thinking := c.Get("choices.0.delta.reasoning_content").String()
		if choice.Delta.Content != "" || thinking != "" {
			deltas = append(deltas, platform.Delta{Text: choice.Delta.Content, Thinking: thinking})
		}

		for i, tc := range choice.Delta.ToolCalls {
			idx := i
			if tc.Index != nil {
				idx = *tc.Index
			}
			p, ok := pending[idx]
			if !ok {
				p = &pendingCall{index: idx}
				pending[idx] = p
			}
			if tc.ID != "" {
				p.id = tc.ID
			}
			if tc.Function.Name != "" {
				p.name = tc.Function.Name
			}
			p.args.WriteString(tc.Function.Arguments)
		}

		if choice.FinishReason != "" && len(pending) > 0 {
			calls := make([]*pendingCall, 0, len(pending))
			for _, p := range pending {
				calls = append(calls, p)
			}
			slices.SortFunc(calls, func(a, b *pendingCall) int { return cmp.Compare(a.index, b.index) })
			clear(pending)

			out := make([]message.ToolCall, 0, len(calls))
			for _, p := range calls {
				call, err := toolCall(provider, p.id, p.name, p.args.String())
				if err != nil {
					return nil, err
				}
				out = append(out, call)
			}
			deltas = append(deltas, platform.Delta{ToolCalls: out})
		}
		return deltas, nil
	}
}
