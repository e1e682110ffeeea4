// Package message holds the immutable conversation model: messages, their
// content parts and the ordered bag passed to a platform call.
package message

import (
	"strings"

	"github.com/google/uuid"
)

// Role is the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of a conversation.
type Message interface {
	ID() uuid.UUID
	Role() Role
}

// ToolCall is a model's request to invoke a named tool.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// NewToolCallID generates an id for vendors that don't assign one.
func NewToolCallID() string {
	return "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}

func newID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}

// SystemMessage carries instructions for the model.
type SystemMessage struct {
	id      uuid.UUID
	Content string
}

func System(content string) SystemMessage {
	return SystemMessage{id: newID(), Content: content}
}

func (m SystemMessage) ID() uuid.UUID { return m.id }
func (SystemMessage) Role() Role      { return RoleSystem }

// UserMessage carries one or more content parts.
type UserMessage struct {
	id    uuid.UUID
	Parts []Content
}

// User builds a user message from parts.
func User(parts ...Content) UserMessage {
	return UserMessage{id: newID(), Parts: parts}
}

// UserText builds a text-only user message.
func UserText(text string) UserMessage {
	return User(Text{Text: text})
}

func (m UserMessage) ID() uuid.UUID { return m.id }
func (UserMessage) Role() Role      { return RoleUser }

// Text joins the text parts of the message.
func (m UserMessage) Text() string {
	var texts []string
	for _, p := range m.Parts {
		if t, ok := p.(Text); ok {
			texts = append(texts, t.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// HasKind reports whether any part is of kind k.
func (m UserMessage) HasKind(k Kind) bool {
	for _, p := range m.Parts {
		if p.Kind() == k {
			return true
		}
	}
	return false
}

// AssistantMessage is a text reply from the model.
type AssistantMessage struct {
	id      uuid.UUID
	Content string
}

func Assistant(content string) AssistantMessage {
	return AssistantMessage{id: newID(), Content: content}
}

func (m AssistantMessage) ID() uuid.UUID { return m.id }
func (AssistantMessage) Role() Role      { return RoleAssistant }

// ToolCallMessage records the model asking for one or more tool invocations.
type ToolCallMessage struct {
	id      uuid.UUID
	Content string
	Calls   []ToolCall
}

func ToolCalls(calls ...ToolCall) ToolCallMessage {
	return ToolCallMessage{id: newID(), Calls: calls}
}

func (m ToolCallMessage) ID() uuid.UUID { return m.id }
func (ToolCallMessage) Role() Role      { return RoleAssistant }

// ToolResultMessage carries a tool's output back to the model.
type ToolResultMessage struct {
	id      uuid.UUID
	Call    ToolCall
	Content string
}

func ToolResult(call ToolCall, content string) ToolResultMessage {
	return ToolResultMessage{id: newID(), Call: call, Content: content}
}

func (m ToolResultMessage) ID() uuid.UUID { return m.id }
func (ToolResultMessage) Role() Role      { return RoleTool }
