package message

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

type envelope struct {
	Type    string     `json:"type"`
	ID      uuid.UUID  `json:"id"`
	Content string     `json:"content,omitempty"`
	Parts   []part     `json:"parts,omitempty"`
	Calls   []ToolCall `json:"tool_calls,omitempty"`
	Call    *ToolCall  `json:"tool_call,omitempty"`
}

type part struct {
	Type   Kind   `json:"type"`
	Text   string `json:"text,omitempty"`
	URL    string `json:"url,omitempty"`
	Data   string `json:"data,omitempty"`
	Path   string `json:"path,omitempty"`
	Format string `json:"format,omitempty"`
}

const (
	typeSystem     = "system"
	typeUser       = "user"
	typeAssistant  = "assistant"
	typeToolCall   = "tool_call"
	typeToolResult = "tool_result"
)

// MarshalBag encodes a bag as JSON. In-memory binary parts are stored as
// base64, path-backed parts keep only their path.
func MarshalBag(b Bag) ([]byte, error) {
	envs := make([]envelope, 0, b.Len())
	for _, m := range b.messages {
		env, err := encodeMessage(m)
		if err != nil {
			return nil, err
		}
		envs = append(envs, env)
	}
	return json.Marshal(envs)
}

// UnmarshalBag decodes JSON produced by MarshalBag.
func UnmarshalBag(data []byte) (Bag, error) {
	var envs []envelope
	if err := json.Unmarshal(data, &envs); err != nil {
		return Bag{}, fmt.Errorf("decoding message bag: %w", err)
	}
	msgs := make([]Message, 0, len(envs))
	for i, env := range envs {
		m, err := decodeMessage(env)
		if err != nil {
			return Bag{}, fmt.Errorf("decoding message %d: %w", i, err)
		}
		msgs = append(msgs, m)
	}
	return NewBag(msgs...), nil
}

func encodeMessage(m Message) (envelope, error) {
	env := envelope{ID: m.ID()}
	switch msg := m.(type) {
	case SystemMessage:
		env.Type = typeSystem
		env.Content = msg.Content
	case UserMessage:
		env.Type = typeUser
		for _, p := range msg.Parts {
			encoded, err := encodePart(p)
			if err != nil {
				return envelope{}, err
			}
			env.Parts = append(env.Parts, encoded)
		}
	case AssistantMessage:
		env.Type = typeAssistant
		env.Content = msg.Content
	case ToolCallMessage:
		env.Type = typeToolCall
		env.Content = msg.Content
		env.Calls = msg.Calls
	case ToolResultMessage:
		env.Type = typeToolResult
		env.Content = msg.Content
		call := msg.Call
		env.Call = &call
	default:
		return envelope{}, fmt.Errorf("unsupported message type %T", m)
	}
	return env, nil
}

func decodeMessage(env envelope) (Message, error) {
	switch env.Type {
	case typeSystem:
		return SystemMessage{id: env.ID, Content: env.Content}, nil
	case typeUser:
		parts := make([]Content, 0, len(env.Parts))
		for _, p := range env.Parts {
			c, err := decodePart(p)
			if err != nil {
				return nil, err
			}
			parts = append(parts, c)
		}
		return UserMessage{id: env.ID, Parts: parts}, nil
	case typeAssistant:
		return AssistantMessage{id: env.ID, Content: env.Content}, nil
	case typeToolCall:
		return ToolCallMessage{id: env.ID, Content: env.Content, Calls: env.Calls}, nil
	case typeToolResult:
		if env.Call == nil {
			return nil, fmt.Errorf("tool result without tool call")
		}
		return ToolResultMessage{id: env.ID, Call: *env.Call, Content: env.Content}, nil
	default:
		return nil, fmt.Errorf("unknown message type %q", env.Type)
	}
}

func encodePart(c Content) (part, error) {
	switch p := c.(type) {
	case Text:
		return part{Type: KindText, Text: p.Text}, nil
	case ImageURL:
		return part{Type: KindImageURL, URL: p.URL}, nil
	case DocumentURL:
		return part{Type: KindDocumentURL, URL: p.URL}, nil
	case Image:
		return encodeFile(KindImage, p.File), nil
	case Audio:
		return encodeFile(KindAudio, p.File), nil
	case Video:
		return encodeFile(KindVideo, p.File), nil
	case Document:
		return encodeFile(KindDocument, p.File), nil
	case File:
		return encodeFile(KindFile, p), nil
	default:
		return part{}, fmt.Errorf("unsupported content type %T", c)
	}
}

func encodeFile(kind Kind, f File) part {
	if f.path != "" {
		return part{Type: kind, Path: f.path, Format: f.format}
	}
	return part{Type: kind, Data: base64.StdEncoding.EncodeToString(f.data), Format: f.format}
}

func decodePart(p part) (Content, error) {
	switch p.Type {
	case KindText:
		return Text{Text: p.Text}, nil
	case KindImageURL:
		return ImageURL{URL: p.URL}, nil
	case KindDocumentURL:
		return DocumentURL{URL: p.URL}, nil
	}

	f, err := decodeFile(p)
	if err != nil {
		return nil, err
	}
	switch p.Type {
	case KindImage:
		return Image{f}, nil
	case KindAudio:
		return Audio{f}, nil
	case KindVideo:
		return Video{f}, nil
	case KindDocument:
		return Document{f}, nil
	case KindFile:
		return f, nil
	default:
		return nil, fmt.Errorf("unknown content type %q", p.Type)
	}
}

func decodeFile(p part) (File, error) {
	if p.Path != "" {
		return File{path: p.Path, format: p.Format}, nil
	}
	data, err := base64.StdEncoding.DecodeString(p.Data)
	if err != nil {
		return File{}, fmt.Errorf("decoding %s payload: %w", p.Type, err)
	}
	return File{data: data, format: p.Format}, nil
}
