// Package tokenizer estimates token counts locally with tiktoken. Estimates
// are for display only; reported usage always comes from the provider.
package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/hpkotak/aiplatform/internal/message"
)

// FallbackEncoding is used for models tiktoken does not know.
const FallbackEncoding = "cl100k_base"

// Per-message framing overhead of the chat format.
const (
	tokensPerMessage = 3
	tokensPerReply   = 3
)

type Counter struct {
	enc *tiktoken.Tiktoken
	// Approximate is true when the model's own encoding was unknown.
	Approximate bool
}

// ForModel returns a counter using the model's encoding, or FallbackEncoding.
func ForModel(modelName string) (*Counter, error) {
	if enc, err := tiktoken.EncodingForModel(modelName); err == nil {
		return &Counter{enc: enc}, nil
	}
	enc, err := tiktoken.GetEncoding(FallbackEncoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get encoding: %w", err)
	}
	return &Counter{enc: enc, Approximate: true}, nil
}

// Count returns the number of tokens in text.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.enc.Encode(text, nil, nil))
}

// CountBag estimates the prompt tokens of a conversation. Binary parts are
// not counted.
func (c *Counter) CountBag(bag message.Bag) int {
	if bag.Len() == 0 {
		return 0
	}
	total := tokensPerReply
	for _, m := range bag.Messages() {
		total += tokensPerMessage + c.Count(string(m.Role()))
		switch msg := m.(type) {
		case message.SystemMessage:
			total += c.Count(msg.Content)
		case message.UserMessage:
			total += c.Count(msg.Text())
		case message.AssistantMessage:
			total += c.Count(msg.Content)
		case message.ToolCallMessage:
			total += c.Count(msg.Content)
			for _, call := range msg.Calls {
				total += c.Count(call.Name) + c.Count(fmt.Sprint(call.Arguments))
			}
		case message.ToolResultMessage:
			total += c.Count(msg.Content)
		}
	}
	return total
}
