package anthropic

import (
	"fmt"

	"github.com/hpkotak/aiplatform/internal/message"
	"github.com/hpkotak/aiplatform/internal/model"
	"github.com/hpkotak/aiplatform/internal/platform"
)

// defaultMaxTokens is sent when the caller sets no limit; the API requires one.
const defaultMaxTokens = 4096

type messagesRequest struct {
	Model       string         `json:"model"`
	System      string         `json:"system,omitempty"`
	Messages    []wireMessage  `json:"messages"`
	MaxTokens   int            `json:"max_tokens"`
	Temperature *float64       `json:"temperature,omitempty"`
	TopP        *float64       `json:"top_p,omitempty"`
	TopK        *int           `json:"top_k,omitempty"`
	Stop        []string       `json:"stop_sequences,omitempty"`
	Stream      bool           `json:"stream,omitempty"`
	Tools       []wireTool     `json:"tools,omitempty"`
	ToolChoice  *toolChoice    `json:"tool_choice,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type wireMessage struct {
	Role    string      `json:"role"`
	Content []wireBlock `json:"content"`
}

type wireBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`

	Source *wireSource `json:"source,omitempty"`

	// tool_use
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	// Input is an interface so an empty argument object is still sent.
	Input any `json:"input,omitempty"`

	// tool_result
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`

	// thinking
	Thinking string `json:"thinking,omitempty"`
}

type wireSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

type wireTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

type toolChoice struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

// structuredToolName is the forced tool used to obtain schema-shaped output.
func structuredToolName(rf *platform.ResponseFormat) string {
	if rf.Name != "" {
		return rf.Name
	}
	return "structured_response"
}

func buildPayload(m model.Model, input message.Bag, opts platform.Options) (*messagesRequest, error) {
	req := &messagesRequest{
		Model:       m.Name(),
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		Stream:      opts.Stream,
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = defaultMaxTokens
	}
	applyExtra(req, opts.Extra)

	if sys, ok := input.System(); ok {
		req.System = sys.Content
	}
	for _, msg := range input.WithoutSystem().Messages() {
		wm, err := toWireMessage(msg)
		if err != nil {
			return nil, err
		}
		// The API wants alternating roles; consecutive tool results share
		// one user turn.
		if n := len(req.Messages); n > 0 && req.Messages[n-1].Role == wm.Role {
			req.Messages[n-1].Content = append(req.Messages[n-1].Content, wm.Content...)
			continue
		}
		req.Messages = append(req.Messages, wm)
	}

	for _, t := range opts.Tools {
		req.Tools = append(req.Tools, wireTool{Name: t.Name, Description: t.Description, InputSchema: schemaOrEmpty(t.Parameters)})
	}
	if rf := opts.ResponseFormat; rf != nil {
		name := structuredToolName(rf)
		req.Tools = append(req.Tools, wireTool{
			Name:        name,
			Description: "Respond with data matching this schema.",
			InputSchema: schemaOrEmpty(rf.Schema),
		})
		req.ToolChoice = &toolChoice{Type: "tool", Name: name}
	}
	return req, nil
}

func schemaOrEmpty(s map[string]any) map[string]any {
	if s == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return s
}

func applyExtra(req *messagesRequest, extra map[string]any) {
	for k, v := range extra {
		switch k {
		case "top_p":
			if f, ok := v.(float64); ok {
				req.TopP = &f
			}
		case "top_k":
			if n, ok := v.(int); ok {
				req.TopK = &n
			}
		case "stop":
			if s, ok := v.(string); ok {
				req.Stop = []string{s}
			}
		case "user_id":
			req.Metadata = map[string]any{"user_id": v}
		}
	}
}

func toWireMessage(msg message.Message) (wireMessage, error) {
	switch m := msg.(type) {
	case message.AssistantMessage:
		return wireMessage{Role: "assistant", Content: []wireBlock{{Type: "text", Text: m.Content}}}, nil
	case message.ToolCallMessage:
		wm := wireMessage{Role: "assistant"}
		if m.Content != "" {
			wm.Content = append(wm.Content, wireBlock{Type: "text", Text: m.Content})
		}
		for _, c := range m.Calls {
			input := c.Arguments
			if input == nil {
				input = map[string]any{}
			}
			wm.Content = append(wm.Content, wireBlock{Type: "tool_use", ID: c.ID, Name: c.Name, Input: input})
		}
		return wm, nil
	case message.ToolResultMessage:
		return wireMessage{Role: "user", Content: []wireBlock{{Type: "tool_result", ToolUseID: m.Call.ID, Content: m.Content}}}, nil
	case message.UserMessage:
		wm := wireMessage{Role: "user"}
		for _, p := range m.Parts {
			b, err := toBlock(p)
			if err != nil {
				return wireMessage{}, err
			}
			wm.Content = append(wm.Content, b)
		}
		return wm, nil
	case message.SystemMessage:
		return wireMessage{}, platform.NewConversionError(providerName, "system message must lead the conversation")
	default:
		return wireMessage{}, fmt.Errorf("anthropic: unsupported message type %T", msg)
	}
}

func toBlock(p message.Content) (wireBlock, error) {
	switch part := p.(type) {
	case message.Text:
		return wireBlock{Type: "text", Text: part.Text}, nil
	case message.ImageURL:
		return wireBlock{Type: "image", Source: &wireSource{Type: "url", URL: part.URL}}, nil
	case message.DocumentURL:
		return wireBlock{Type: "document", Source: &wireSource{Type: "url", URL: part.URL}}, nil
	case message.Image:
		return fileBlock("image", part.File)
	case message.Document:
		return fileBlock("document", part.File)
	default:
		return wireBlock{}, platform.NewConversionError(providerName, "unsupported content kind %q", p.Kind())
	}
}

func fileBlock(kind string, f message.File) (wireBlock, error) {
	data, err := f.Base64()
	if err != nil {
		return wireBlock{}, err
	}
	return wireBlock{Type: kind, Source: &wireSource{Type: "base64", MediaType: f.Format(), Data: data}}, nil
}
