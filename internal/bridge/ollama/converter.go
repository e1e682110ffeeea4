package ollama

import (
	"encoding/json"
	"strings"

	"github.com/hpkotak/aiplatform/internal/message"
	"github.com/hpkotak/aiplatform/internal/model"
	"github.com/hpkotak/aiplatform/internal/platform"
)

// Converter maps /api/chat responses to results.
type Converter struct{}

func (Converter) Supports(m model.Model) bool { return m.Class() == Class }

func (Converter) TokenUsageExtractor() platform.TokenUsageExtractor { return UsageExtractor{} }

func (Converter) Convert(raw platform.RawResult, opts platform.Options) (platform.Result, error) {
	if opts.Stream {
		return platform.NewStreamResult(raw.Chunks(), convertChunk), nil
	}

	body, err := raw.Body()
	if err != nil {
		return nil, err
	}
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &platform.ConversionError{Provider: providerName, Reason: "decoding chat response", Err: err}
	}
	if resp.Message.Role == "" && resp.Message.Content == "" && len(resp.Message.ToolCalls) == 0 {
		return nil, platform.NewConversionError(providerName, "response has no message")
	}

	var res platform.Result
	switch {
	case len(resp.Message.ToolCalls) > 0:
		tc := platform.NewToolCallResult(toolCalls(resp.Message.ToolCalls)...)
		tc.Content = resp.Message.Content
		res = tc
	case opts.ResponseFormat != nil:
		var data any
		if err := json.Unmarshal([]byte(resp.Message.Content), &data); err != nil {
			return nil, &platform.ConversionError{Provider: providerName, Reason: "structured output is not valid JSON", Err: err}
		}
		res = platform.NewStructuredResult(data, resp.Message.Content)
	default:
		text := platform.NewTextResult(resp.Message.Content)
		text.Thinking = resp.Message.Thinking
		res = text
	}

	meta := res.Metadata()
	meta.Set("ollama.model", resp.Model)
	if resp.DoneReason != "" {
		meta.Set("ollama.done_reason", resp.DoneReason)
	}
	if resp.TotalDuration > 0 {
		meta.Set("ollama.total_duration", resp.TotalDuration)
	}
	return res, nil
}

func convertChunk(c platform.Chunk) ([]platform.Delta, error) {
	var resp chatResponse
	if err := json.Unmarshal(c.Raw, &resp); err != nil {
		return nil, &platform.ConversionError{Provider: providerName, Reason: "decoding stream chunk", Err: err}
	}
	if resp.Message.Content == "" && resp.Message.Thinking == "" && len(resp.Message.ToolCalls) == 0 {
		return nil, nil
	}
	return []platform.Delta{{
		Text:      resp.Message.Content,
		Thinking:  resp.Message.Thinking,
		ToolCalls: toolCalls(resp.Message.ToolCalls),
	}}, nil
}

func toolCalls(in []wireToolCall) []message.ToolCall {
	if len(in) == 0 {
		return nil
	}
	out := make([]message.ToolCall, 0, len(in))
	for _, tc := range in {
		id := strings.TrimSpace(tc.ID)
		if id == "" {
			id = message.NewToolCallID()
		}
		out = append(out, message.ToolCall{ID: id, Name: tc.Function.Name, Arguments: tc.Function.Arguments})
	}
	return out
}
