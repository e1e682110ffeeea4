package openai

import (
	"context"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/hpkotak/aiplatform/internal/message"
	"github.com/hpkotak/aiplatform/internal/model"
	"github.com/hpkotak/aiplatform/internal/platform"
)

// Client sends requests to /chat/completions.
type Client struct {
	transport platform.Transport
}

func NewClient(t platform.Transport) *Client {
	return &Client{transport: t}
}

func (c *Client) Supports(m model.Model) bool { return m.Class() == Class }

func (c *Client) Request(ctx context.Context, m model.Model, input message.Bag, opts platform.Options) (platform.RawResult, error) {
	req, err := BuildRequest(providerName, m, input, opts)
	if err != nil {
		return nil, err
	}
	// max_tokens is deprecated for OpenAI and rejected by reasoning models.
	req.MaxCompletionTokens, req.MaxTokens = req.MaxTokens, 0
	return c.transport.Dispatch(ctx, NewRequest(req))
}

// NewRequest wraps a payload for the /chat/completions endpoint.
func NewRequest(payload goopenai.ChatCompletionRequest) platform.Request {
	req := platform.Request{Endpoint: "/chat/completions", Payload: payload}
	if payload.Stream {
		req.Stream = platform.StreamSSE
	}
	return req
}
