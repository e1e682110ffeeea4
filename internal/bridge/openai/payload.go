package openai

import (
	"encoding/json"
	"fmt"
	"math"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/hpkotak/aiplatform/internal/message"
	"github.com/hpkotak/aiplatform/internal/model"
	"github.com/hpkotak/aiplatform/internal/platform"
)

// BuildRequest renders a bag as a Chat Completions request. provider names
// the vendor in conversion errors.
func BuildRequest(provider string, m model.Model, input message.Bag, opts platform.Options) (goopenai.ChatCompletionRequest, error) {
	req := goopenai.ChatCompletionRequest{
		Model:     m.Name(),
		Stream:    opts.Stream,
		MaxTokens: opts.MaxTokens,
	}
	if opts.Stream {
		req.StreamOptions = &goopenai.StreamOptions{IncludeUsage: true}
	}
	if opts.Temperature != nil {
		req.Temperature = float32(*opts.Temperature)
		// Zero is dropped by omitempty; the smallest float32 still encodes.
		if req.Temperature == 0 {
			req.Temperature = math.SmallestNonzeroFloat32
		}
	}
	applyExtra(&req, opts.Extra)

	for _, msg := range input.Messages() {
		cm, err := toMessage(provider, msg)
		if err != nil {
			return goopenai.ChatCompletionRequest{}, err
		}
		req.Messages = append(req.Messages, cm)
	}

	for _, t := range opts.Tools {
		params := t.Parameters
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		req.Tools = append(req.Tools, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}

	if rf := opts.ResponseFormat; rf != nil {
		schema, err := json.Marshal(rf.Schema)
		if err != nil {
			return goopenai.ChatCompletionRequest{}, platform.NewConversionError(provider, "encoding response schema: %v", err)
		}
		name := rf.Name
		if name == "" {
			name = "response"
		}
		req.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &goopenai.ChatCompletionResponseFormatJSONSchema{
				Name:   name,
				Schema: json.RawMessage(schema),
				Strict: true,
			},
		}
	}
	return req, nil
}

func applyExtra(req *goopenai.ChatCompletionRequest, extra map[string]any) {
	for k, v := range extra {
		switch k {
		case "top_p":
			if f, ok := toFloat(v); ok {
				req.TopP = float32(f)
			}
		case "presence_penalty":
			if f, ok := toFloat(v); ok {
				req.PresencePenalty = float32(f)
			}
		case "frequency_penalty":
			if f, ok := toFloat(v); ok {
				req.FrequencyPenalty = float32(f)
			}
		case "seed":
			if f, ok := toFloat(v); ok {
				seed := int(f)
				req.Seed = &seed
			}
		case "user":
			if s, ok := v.(string); ok {
				req.User = s
			}
		}
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func toMessage(provider string, msg message.Message) (goopenai.ChatCompletionMessage, error) {
	switch m := msg.(type) {
	case message.SystemMessage:
		return goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: m.Content}, nil
	case message.AssistantMessage:
		return goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleAssistant, Content: m.Content}, nil
	case message.ToolCallMessage:
		cm := goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleAssistant, Content: m.Content}
		for _, c := range m.Calls {
			args, err := json.Marshal(c.Arguments)
			if err != nil {
				return goopenai.ChatCompletionMessage{}, platform.NewConversionError(provider, "encoding arguments of %s: %v", c.Name, err)
			}
			if c.Arguments == nil {
				args = []byte("{}")
			}
			cm.ToolCalls = append(cm.ToolCalls, goopenai.ToolCall{
				ID:       c.ID,
				Type:     goopenai.ToolTypeFunction,
				Function: goopenai.FunctionCall{Name: c.Name, Arguments: string(args)},
			})
		}
		return cm, nil
	case message.ToolResultMessage:
		return goopenai.ChatCompletionMessage{
			Role:       goopenai.ChatMessageRoleTool,
			Content:    m.Content,
			ToolCallID: m.Call.ID,
		}, nil
	case message.UserMessage:
		return userMessage(provider, m)
	default:
		return goopenai.ChatCompletionMessage{}, fmt.Errorf("%s: unsupported message type %T", provider, msg)
	}
}

// userMessage sends text-only messages as plain content and anything else
// as multi-part content.
func userMessage(provider string, m message.UserMessage) (goopenai.ChatCompletionMessage, error) {
	cm := goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser}
	textOnly := true
	for _, p := range m.Parts {
		if p.Kind() != message.KindText {
			textOnly = false
			break
		}
	}
	if textOnly {
		cm.Content = m.Text()
		return cm, nil
	}

	for _, p := range m.Parts {
		switch part := p.(type) {
		case message.Text:
			cm.MultiContent = append(cm.MultiContent, goopenai.ChatMessagePart{
				Type: goopenai.ChatMessagePartTypeText,
				Text: part.Text,
			})
		case message.ImageURL:
			cm.MultiContent = append(cm.MultiContent, imagePart(part.URL))
		case message.Image:
			url, err := part.DataURL()
			if err != nil {
				return goopenai.ChatCompletionMessage{}, err
			}
			cm.MultiContent = append(cm.MultiContent, imagePart(url))
		default:
			return goopenai.ChatCompletionMessage{}, platform.NewConversionError(provider, "unsupported content kind %q", p.Kind())
		}
	}
	return cm, nil
}

func imagePart(url string) goopenai.ChatMessagePart {
	return goopenai.ChatMessagePart{
		Type:     goopenai.ChatMessagePartTypeImageURL,
		ImageURL: &goopenai.ChatMessageImageURL{URL: url, Detail: goopenai.ImageURLDetailAuto},
	}
}
