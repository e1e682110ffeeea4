// Package chat keeps a conversation in a store and answers new messages with
// an agent.
package chat

import (
	"context"
	"fmt"

	"github.com/hpkotak/aiplatform/internal/agent"
	"github.com/hpkotak/aiplatform/internal/message"
	"github.com/hpkotak/aiplatform/internal/platform"
	"github.com/hpkotak/aiplatform/internal/store"
)

// Caller is satisfied by *agent.Agent.
type Caller interface {
	Call(ctx context.Context, input message.Bag, opts platform.Options) (*agent.Response, error)
}

type Chat struct {
	caller  Caller
	store   store.Store
	options platform.Options
}

// New creates a chat. opts are sent with every submitted message.
func New(caller Caller, s store.Store, opts platform.Options) *Chat {
	return &Chat{caller: caller, store: s, options: opts}
}

// Initiate replaces any stored conversation with bag, usually a system prompt.
func (c *Chat) Initiate(ctx context.Context, bag message.Bag) error {
	if err := c.store.Drop(ctx); err != nil {
		return fmt.Errorf("dropping conversation: %w", err)
	}
	if err := c.store.Save(ctx, bag); err != nil {
		return fmt.Errorf("saving conversation: %w", err)
	}
	return nil
}

// Submit appends msg to the stored conversation, asks the model and saves
// the exchange. Nothing is saved when the call fails.
func (c *Chat) Submit(ctx context.Context, msg message.UserMessage) (*agent.Response, error) {
	bag, err := c.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}
	bag = bag.With(msg)

	resp, err := c.caller.Call(ctx, bag, c.options)
	if err != nil {
		return nil, err
	}

	if err := c.store.Save(ctx, bag.Merge(resp.Messages)); err != nil {
		return nil, fmt.Errorf("saving conversation: %w", err)
	}
	return resp, nil
}

// History returns the stored conversation.
func (c *Chat) History(ctx context.Context) (message.Bag, error) {
	return c.store.Load(ctx)
}
