package ollama

import (
	"context"

	"github.com/hpkotak/aiplatform/internal/message"
	"github.com/hpkotak/aiplatform/internal/model"
	"github.com/hpkotak/aiplatform/internal/platform"
)

// Client sends chat requests to /api/chat.
type Client struct {
	transport platform.Transport
}

func NewClient(t platform.Transport) *Client {
	return &Client{transport: t}
}

func (c *Client) Supports(m model.Model) bool { return m.Class() == Class }

func (c *Client) Request(ctx context.Context, m model.Model, input message.Bag, opts platform.Options) (platform.RawResult, error) {
	payload, err := buildPayload(m, input, opts)
	if err != nil {
		return nil, err
	}
	req := platform.Request{Endpoint: "/api/chat", Payload: payload}
	if opts.Stream {
		req.Stream = platform.StreamNDJSON
	}
	return c.transport.Dispatch(ctx, req)
}
