package platform

import (
	"maps"
	"sync"

	"github.com/hpkotak/aiplatform/internal/message"
)

// TokenUsageKey is the metadata key token usage is stored under.
const TokenUsageKey = "token_usage"

// Metadata is a mutable key/value map attached to a result after conversion.
// Keys are provider-namespaced ("openai.finish_reason"); the last write wins.
type Metadata struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewMetadata returns empty metadata.
func NewMetadata() *Metadata {
	return &Metadata{values: make(map[string]any)}
}

func (m *Metadata) Set(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

func (m *Metadata) Get(key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *Metadata) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

func (m *Metadata) Remove(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
}

// Merge copies values into m, overwriting existing keys.
func (m *Metadata) Merge(values map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	maps.Copy(m.values, values)
}

// All returns a snapshot copy.
func (m *Metadata) All() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.values)
}

// TokenUsage returns the usage recorded under TokenUsageKey.
func (m *Metadata) TokenUsage() (*TokenUsage, bool) {
	v, ok := m.Get(TokenUsageKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*TokenUsage)
	return u, ok && u != nil
}

// Result is a converted provider response: *TextResult, *ToolCallResult,
// *StructuredResult or *StreamResult.
type Result interface {
	Metadata() *Metadata
	RawResult() RawResult
	setRawResult(RawResult)
}

type resultBase struct {
	meta *Metadata
	raw  RawResult
}

func newResultBase() resultBase {
	return resultBase{meta: NewMetadata()}
}

func (b *resultBase) Metadata() *Metadata       { return b.meta }
func (b *resultBase) RawResult() RawResult      { return b.raw }
func (b *resultBase) setRawResult(r RawResult) { b.raw = r }

// TextResult is a plain assistant reply.
type TextResult struct {
	resultBase
	Text string
	// Thinking holds reasoning content when the vendor returns it separately.
	Thinking string
}

func NewTextResult(text string) *TextResult {
	return &TextResult{resultBase: newResultBase(), Text: text}
}

// ToolCallResult is a request to invoke one or more tools.
type ToolCallResult struct {
	resultBase
	ToolCalls []message.ToolCall
	// Content is text the model sent alongside the calls, if any.
	Content string
}

func NewToolCallResult(calls ...message.ToolCall) *ToolCallResult {
	return &ToolCallResult{resultBase: newResultBase(), ToolCalls: calls}
}

// StructuredResult is decoded output of a JSON schema response format.
type StructuredResult struct {
	resultBase
	// Data is the decoded JSON value.
	Data any
	// JSON is the text the value was decoded from.
	JSON string
}

func NewStructuredResult(data any, raw string) *StructuredResult {
	return &StructuredResult{resultBase: newResultBase(), Data: data, JSON: raw}
}
