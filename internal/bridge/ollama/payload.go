package ollama

import (
	"encoding/json"
	"fmt"

	"github.com/ollama/ollama/api"

	"github.com/hpkotak/aiplatform/internal/message"
	"github.com/hpkotak/aiplatform/internal/model"
	"github.com/hpkotak/aiplatform/internal/platform"
)

const providerName = "ollama"

// wireMessage mirrors api.Message with tool call arguments kept as plain
// JSON objects.
type wireMessage struct {
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	Thinking  string          `json:"thinking,omitempty"`
	Images    []api.ImageData `json:"images,omitempty"`
	ToolCalls []wireToolCall  `json:"tool_calls,omitempty"`
	ToolName  string          `json:"tool_name,omitempty"`
}

type wireToolCall struct {
	ID       string `json:"id,omitempty"`
	Function struct {
		Index     int            `json:"index,omitempty"`
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"function"`
}

type wireTool struct {
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// chatRequest is api.ChatRequest with our own message and tool encodings.
type chatRequest struct {
	*api.ChatRequest
	Messages []wireMessage `json:"messages"`
	Tools    []wireTool    `json:"tools,omitempty"`
}

// chatResponse is the subset of api.ChatResponse the converter reads.
type chatResponse struct {
	Model      string      `json:"model"`
	Message    wireMessage `json:"message"`
	Done       bool        `json:"done"`
	DoneReason string      `json:"done_reason,omitempty"`
	api.Metrics
}

func buildPayload(m model.Model, input message.Bag, opts platform.Options) (*chatRequest, error) {
	stream := opts.Stream
	req := &chatRequest{
		ChatRequest: &api.ChatRequest{
			Model:  m.Name(),
			Stream: &stream,
		},
	}

	for _, msg := range input.Messages() {
		wm, err := toWireMessage(msg)
		if err != nil {
			return nil, err
		}
		req.Messages = append(req.Messages, wm)
	}

	for _, t := range opts.Tools {
		req.Tools = append(req.Tools, wireTool{
			Type:     "function",
			Function: wireFunction{Name: t.Name, Description: t.Description, Parameters: t.Parameters},
		})
	}

	if opts.ResponseFormat != nil {
		schema, err := json.Marshal(opts.ResponseFormat.Schema)
		if err != nil {
			return nil, platform.NewConversionError(providerName, "encoding response schema: %v", err)
		}
		req.Format = schema
	}

	options := make(map[string]any, len(opts.Extra)+2)
	for k, v := range opts.Extra {
		options[k] = v
	}
	if opts.Temperature != nil {
		options["temperature"] = *opts.Temperature
	}
	if opts.MaxTokens > 0 {
		options["num_predict"] = opts.MaxTokens
	}
	if len(options) > 0 {
		req.Options = options
	}
	return req, nil
}

func toWireMessage(msg message.Message) (wireMessage, error) {
	switch m := msg.(type) {
	case message.SystemMessage:
		return wireMessage{Role: "system", Content: m.Content}, nil
	case message.AssistantMessage:
		return wireMessage{Role: "assistant", Content: m.Content}, nil
	case message.ToolCallMessage:
		wm := wireMessage{Role: "assistant", Content: m.Content}
		for i, c := range m.Calls {
			var tc wireToolCall
			tc.ID = c.ID
			tc.Function.Index = i
			tc.Function.Name = c.Name
			tc.Function.Arguments = c.Arguments
			if tc.Function.Arguments == nil {
				tc.Function.Arguments = map[string]any{}
			}
			wm.ToolCalls = append(wm.ToolCalls, tc)
		}
		return wm, nil
	case message.ToolResultMessage:
		return wireMessage{Role: "tool", Content: m.Content, ToolName: m.Call.Name}, nil
	case message.UserMessage:
		wm := wireMessage{Role: "user", Content: m.Text()}
		for _, p := range m.Parts {
			switch part := p.(type) {
			case message.Text:
			case message.Image:
				data, err := part.Bytes()
				if err != nil {
					return wireMessage{}, err
				}
				wm.Images = append(wm.Images, api.ImageData(data))
			default:
				return wireMessage{}, platform.NewConversionError(providerName, "unsupported content kind %q", p.Kind())
			}
		}
		return wm, nil
	default:
		return wireMessage{}, fmt.Errorf("ollama: unsupported message type %T", msg)
	}
}
