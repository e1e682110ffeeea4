// Package agent runs the tool-calling loop on top of a platform.
package agent

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hpkotak/aiplatform/internal/message"
	"github.com/hpkotak/aiplatform/internal/platform"
)

// DefaultMaxIterations bounds the model round trips of one Call.
const DefaultMaxIterations = 8

var ErrMaxIterations = errors.New("agent exceeded max iterations")

// Invoker is satisfied by *platform.Platform.
type Invoker interface {
	Invoke(ctx context.Context, modelName string, input message.Bag, opts platform.Options) (*platform.DeferredResult, error)
}

// Agent calls a model, runs the tools it asks for and feeds the results back
// until the model answers.
type Agent struct {
	invoker       Invoker
	model         string
	toolbox       *Toolbox
	maxIterations int
	logger        *zap.Logger
}

type Option func(*Agent)

func WithToolbox(tb *Toolbox) Option {
	return func(a *Agent) { a.toolbox = tb }
}

func WithMaxIterations(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxIterations = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

func New(invoker Invoker, modelName string, opts ...Option) *Agent {
	a := &Agent{
		invoker:       invoker,
		model:         modelName,
		maxIterations: DefaultMaxIterations,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.toolbox != nil {
		a.toolbox.logger = a.logger
	}
	return a
}

// Model returns the model name the agent invokes.
func (a *Agent) Model() string { return a.model }

// Tools returns the definitions offered to the model by default.
func (a *Agent) Tools() []platform.ToolDefinition { return a.toolbox.Definitions() }

// Response is the outcome of one Call.
type Response struct {
	// Text is the final answer. For structured output it is the JSON text.
	Text string
	// Structured is the decoded value when a response format was requested.
	Structured any
	// Messages holds what the call added to the conversation: tool call and
	// tool result messages followed by the assistant reply.
	Messages message.Bag
	// Usage sums the usage reported across iterations; nil if none was.
	Usage      *platform.TokenUsage
	Iterations int
}

// Call runs the loop. Streaming is not supported inside the loop; opts.Stream
// is ignored. Toolbox definitions are offered unless opts.Tools is set.
func (a *Agent) Call(ctx context.Context, input message.Bag, opts platform.Options) (*Response, error) {
	opts.Stream = false
	if len(opts.Tools) == 0 {
		opts.Tools = a.toolbox.Definitions()
	}

	conversation := input
	var added []message.Message
	var usages []*platform.TokenUsage

	for i := 1; i <= a.maxIterations; i++ {
		deferred, err := a.invoker.Invoke(ctx, a.model, conversation, opts)
		if err != nil {
			return nil, err
		}
		result, err := deferred.Result()
		if err != nil {
			return nil, err
		}
		if u, ok := result.Metadata().TokenUsage(); ok {
			usages = append(usages, u)
		}

		switch r := result.(type) {
		case *platform.ToolCallResult:
			a.logger.Debug("tool calls requested", zap.Int("iteration", i), zap.Int("calls", len(r.ToolCalls)))
			if a.toolbox.Len() == 0 {
				return nil, fmt.Errorf("model requested %d tool calls but no tools are registered", len(r.ToolCalls))
			}
			callMsg := message.ToolCalls(r.ToolCalls...)
			callMsg.Content = r.Content
			results, err := a.toolbox.ExecuteAll(ctx, r.ToolCalls)
			if err != nil {
				return nil, err
			}
			step := []message.Message{callMsg}
			for _, res := range results {
				step = append(step, res)
			}
			conversation = conversation.With(step...)
			added = append(added, step...)

		case *platform.TextResult:
			return a.finish(r.Text, nil, added, usages, i), nil

		case *platform.StructuredResult:
			return a.finish(r.JSON, r.Data, added, usages, i), nil

		default:
			return nil, fmt.Errorf("%w: %T", platform.ErrUnexpectedResult, result)
		}
	}

	a.logger.Warn("max iterations reached", zap.String("model", a.model), zap.Int("max", a.maxIterations))
	return nil, fmt.Errorf("%w (%d)", ErrMaxIterations, a.maxIterations)
}

func (a *Agent) finish(text string, data any, added []message.Message, usages []*platform.TokenUsage, iterations int) *Response {
	added = append(added, message.Assistant(text))
	return &Response{
		Text:       text,
		Structured: data,
		Messages:   message.NewBag(added...),
		Usage:      platform.Aggregate(usages...),
		Iterations: iterations,
	}
}
