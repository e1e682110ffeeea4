package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hpkotak/aiplatform/internal/message"
	"github.com/hpkotak/aiplatform/internal/platform"
)

var ErrDuplicateTool = errors.New("duplicate tool name")

// Tool is a function the model may call.
type Tool interface {
	Definition() platform.ToolDefinition
	// Execute runs the tool. A returned error is reported to the model as
	// the tool result, not to the caller of the agent.
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// Toolbox is an ordered set of tools keyed by name.
type Toolbox struct {
	tools  []Tool
	byName map[string]Tool
	logger *zap.Logger
}

// NewToolbox registers tools in order. Names must be unique.
func NewToolbox(tools ...Tool) (*Toolbox, error) {
	tb := &Toolbox{byName: make(map[string]Tool, len(tools)), logger: zap.NewNop()}
	for _, t := range tools {
		name := t.Definition().Name
		if _, ok := tb.byName[name]; ok {
			return nil, fmt.Errorf("%w %q", ErrDuplicateTool, name)
		}
		tb.tools = append(tb.tools, t)
		tb.byName[name] = t
	}
	return tb, nil
}

// Len returns the number of registered tools.
func (tb *Toolbox) Len() int {
	if tb == nil {
		return 0
	}
	return len(tb.tools)
}

// Definitions describes every tool in registration order.
func (tb *Toolbox) Definitions() []platform.ToolDefinition {
	if tb == nil {
		return nil
	}
	defs := make([]platform.ToolDefinition, 0, len(tb.tools))
	for _, t := range tb.tools {
		defs = append(defs, t.Definition())
	}
	return defs
}

// Execute runs one call and wraps its output as a tool result.
// Unknown tools and tool failures become error text for the model.
func (tb *Toolbox) Execute(ctx context.Context, call message.ToolCall) message.ToolResultMessage {
	t, ok := tb.byName[call.Name]
	if !ok {
		return message.ToolResult(call, fmt.Sprintf("error: unknown tool %q", call.Name))
	}

	start := time.Now()
	out, err := t.Execute(ctx, call.Arguments)
	tb.logger.Debug("tool executed",
		zap.String("tool", call.Name),
		zap.Duration("latency", time.Since(start)),
		zap.Int("output_len", len(out)),
		zap.Error(err),
	)
	if err != nil {
		return message.ToolResult(call, "error: "+err.Error())
	}
	return message.ToolResult(call, out)
}

// ExecuteAll runs calls concurrently. Results are returned in call order.
// Only context cancellation aborts the batch.
func (tb *Toolbox) ExecuteAll(ctx context.Context, calls []message.ToolCall) ([]message.ToolResultMessage, error) {
	results := make([]message.ToolResultMessage, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		g.Go(func() error {
			results[i] = tb.Execute(gctx, call)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
