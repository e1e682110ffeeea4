package anthropic

import (
	"encoding/json"
	"strings"

	"github.com/hpkotak/aiplatform/internal/message"
	"github.com/hpkotak/aiplatform/internal/model"
	"github.com/hpkotak/aiplatform/internal/platform"
)

type messagesResponse struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Model      string          `json:"model"`
	Content    []responseBlock `json:"content"`
	StopReason string          `json:"stop_reason"`
}

type responseBlock struct {
	Type     string          `json:"type"`
	Text     string          `json:"text"`
	Thinking string          `json:"thinking"`
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Input    json.RawMessage `json:"input"`
}

// Converter maps Messages API responses to results.
type Converter struct{}

func (Converter) Supports(m model.Model) bool { return m.Class() == Class }

func (Converter) TokenUsageExtractor() platform.TokenUsageExtractor { return UsageExtractor{} }

func (Converter) Convert(raw platform.RawResult, opts platform.Options) (platform.Result, error) {
	if opts.Stream {
		return platform.NewStreamResult(raw.Chunks(), newChunkConverter()), nil
	}

	body, err := raw.Body()
	if err != nil {
		return nil, err
	}
	var resp messagesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &platform.ConversionError{Provider: providerName, Reason: "decoding message", Err: err}
	}
	if resp.Type == "error" {
		return nil, platform.NewConversionError(providerName, "api error: %s", string(body))
	}
	if len(resp.Content) == 0 {
		return nil, platform.NewConversionError(providerName, "message has no content blocks")
	}

	var text, thinking strings.Builder
	var calls []message.ToolCall
	for _, b := range resp.Content {
		switch b.Type {
		case "text":
			text.WriteString(b.Text)
		case "thinking":
			thinking.WriteString(b.Thinking)
		case "tool_use":
			call, err := toolCall(b.ID, b.Name, b.Input)
			if err != nil {
				return nil, err
			}
			calls = append(calls, call)
		}
	}

	var res platform.Result
	switch {
	case opts.ResponseFormat != nil:
		res, err = structured(opts.ResponseFormat, calls)
		if err != nil {
			return nil, err
		}
	case len(calls) > 0:
		tc := platform.NewToolCallResult(calls...)
		tc.Content = text.String()
		res = tc
	default:
		tr := platform.NewTextResult(text.String())
		tr.Thinking = thinking.String()
		res = tr
	}

	meta := res.Metadata()
	meta.Set("anthropic.id", resp.ID)
	meta.Set("anthropic.model", resp.Model)
	if resp.StopReason != "" {
		meta.Set("anthropic.stop_reason", resp.StopReason)
	}
	return res, nil
}

// structured picks the forced tool call carrying the schema-shaped output.
func structured(rf *platform.ResponseFormat, calls []message.ToolCall) (platform.Result, error) {
	name := structuredToolName(rf)
	for _, c := range calls {
		if c.Name != name {
			continue
		}
		raw, err := json.Marshal(c.Arguments)
		if err != nil {
			return nil, &platform.ConversionError{Provider: providerName, Reason: "encoding structured output", Err: err}
		}
		return platform.NewStructuredResult(c.Arguments, string(raw)), nil
	}
	return nil, platform.NewConversionError(providerName, "no %s tool call in structured response", name)
}

func toolCall(id, name string, input []byte) (message.ToolCall, error) {
	if id == "" {
		id = message.NewToolCallID()
	}
	call := message.ToolCall{ID: id, Name: name}
	if len(input) == 0 || string(input) == "null" {
		return call, nil
	}
	if err := json.Unmarshal(input, &call.Arguments); err != nil {
		return message.ToolCall{}, &platform.ConversionError{Provider: providerName, Reason: "tool input of " + name + " is not a JSON object", Err: err}
	}
	return call, nil
}

type streamBlock struct {
	isTool bool
	id     string
	name   string
	input  strings.Builder
}

// newChunkConverter tracks content blocks by index. A tool_use block is
// emitted as a single delta when its content_block_stop arrives.
func newChunkConverter() platform.ChunkConverter {
	blocks := map[int64]*streamBlock{}

	return func(c platform.Chunk) ([]platform.Delta, error) {
		idx := c.Get("index").Int()
		switch c.Get("type").String() {
		case "content_block_start":
			cb := c.Get("content_block")
			b := &streamBlock{isTool: cb.Get("type").String() == "tool_use"}
			if b.isTool {
				b.id = cb.Get("id").String()
				b.name = cb.Get("name").String()
			}
			blocks[idx] = b
			if text := cb.Get("text").String(); text != "" {
				return []platform.Delta{{Text: text}}, nil
			}
		case "content_block_delta":
			d := c.Get("delta")
			switch d.Get("type").String() {
			case "text_delta":
				return []platform.Delta{{Text: d.Get("text").String()}}, nil
			case "thinking_delta":
				return []platform.Delta{{Thinking: d.Get("thinking").String()}}, nil
			case "input_json_delta":
				if b, ok := blocks[idx]; ok {
					b.input.WriteString(d.Get("partial_json").String())
				}
			}
		case "content_block_stop":
			b, ok := blocks[idx]
			delete(blocks, idx)
			if !ok || !b.isTool {
				return nil, nil
			}
			call, err := toolCall(b.id, b.name, []byte(b.input.String()))
			if err != nil {
				return nil, err
			}
			return []platform.Delta{{ToolCalls: []message.ToolCall{call}}}, nil
		case "error":
			return nil, platform.NewConversionError(providerName, "stream error: %s", c.Get("error.message").String())
		}
		return nil, nil
	}
}
