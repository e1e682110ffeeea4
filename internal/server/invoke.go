package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/hpkotak/aiplatform/internal/message"
	"github.com/hpkotak/aiplatform/internal/model"
	"github.com/hpkotak/aiplatform/internal/platform"
)

type invokeRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Options  invokeOptions `json:"options"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	// Images are data URLs or http(s) URLs.
	Images []string `json:"images,omitempty"`
}

type invokeOptions struct {
	Stream         bool           `json:"stream,omitempty"`
	Temperature    *float64       `json:"temperature,omitempty"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	Tools          []toolSpec     `json:"tools,omitempty"`
	ResponseFormat *formatSpec    `json:"response_format,omitempty"`
	Extra          map[string]any `json:"extra,omitempty"`
}

type toolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type formatSpec struct {
	Name   string         `json:"name,omitempty"`
	Schema map[string]any `json:"schema"`
}

type invokeResponse struct {
	Model     string               `json:"model"`
	Type      string               `json:"type"`
	Text      string               `json:"text,omitempty"`
	Thinking  string               `json:"thinking,omitempty"`
	ToolCalls []message.ToolCall   `json:"tool_calls,omitempty"`
	Data      any                  `json:"data,omitempty"`
	Usage     *platform.TokenUsage `json:"usage,omitempty"`
	Metadata  map[string]any       `json:"metadata,omitempty"`
}

type modelInfo struct {
	Name         string             `json:"name"`
	Capabilities []model.Capability `json:"capabilities"`
}

func (s *Server) handleModels(c echo.Context) error {
	models := s.platform.Catalog().Models()
	out := make([]modelInfo, 0, len(models))
	for _, m := range models {
		out = append(out, modelInfo{Name: m.Name(), Capabilities: m.Capabilities()})
	}
	return c.JSON(http.StatusOK, map[string]any{"provider": s.platform.Name(), "models": out})
}

func (s *Server) handleInvoke(c echo.Context) error {
	var req invokeRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Model) == "" {
		return badRequest("model is required")
	}
	bag, err := toBag(req.Messages)
	if err != nil {
		return badRequest(err.Error())
	}

	opts := req.Options.toPlatform()
	deferred, err := s.platform.Invoke(c.Request().Context(), req.Model, bag, opts)
	if err != nil {
		return s.toHTTPError(err)
	}
	result, err := deferred.Result()
	if err != nil {
		return s.toHTTPError(err)
	}

	resp := invokeResponse{Model: req.Model}
	switch r := result.(type) {
	case *platform.StreamResult:
		return s.writeStream(c, r)
	case *platform.TextResult:
		resp.Type, resp.Text, resp.Thinking = "text", r.Text, r.Thinking
	case *platform.ToolCallResult:
		resp.Type, resp.Text, resp.ToolCalls = "tool_calls", r.Content, r.ToolCalls
	case *platform.StructuredResult:
		resp.Type, resp.Data = "structured", r.Data
	default:
		return s.toHTTPError(fmt.Errorf("%w: %T", platform.ErrUnexpectedResult, result))
	}
	resp.Usage, resp.Metadata = splitMetadata(result.Metadata())
	return c.JSON(http.StatusOK, resp)
}

func (o invokeOptions) toPlatform() platform.Options {
	opts := platform.Options{
		Stream:      o.Stream,
		Temperature: o.Temperature,
		MaxTokens:   o.MaxTokens,
		Extra:       o.Extra,
	}
	for _, t := range o.Tools {
		opts.Tools = append(opts.Tools, platform.ToolDefinition{Name: t.Name, Description: t.Description, Parameters: t.Parameters})
	}
	if o.ResponseFormat != nil {
		opts.ResponseFormat = &platform.ResponseFormat{Name: o.ResponseFormat.Name, Schema: o.ResponseFormat.Schema}
	}
	return opts
}

func toBag(in []chatMessage) (message.Bag, error) {
	if len(in) == 0 {
		return message.Bag{}, errors.New("messages must not be empty")
	}
	msgs := make([]message.Message, 0, len(in))
	for i, m := range in {
		switch m.Role {
		case "system":
			msgs = append(msgs, message.System(m.Content))
		case "assistant":
			msgs = append(msgs, message.Assistant(m.Content))
		case "user":
			parts := []message.Content{message.Text{Text: m.Content}}
			for _, img := range m.Images {
				part, err := imagePart(img)
				if err != nil {
					return message.Bag{}, fmt.Errorf("messages[%d]: %w", i, err)
				}
				parts = append(parts, part)
			}
			msgs = append(msgs, message.User(parts...))
		default:
			return message.Bag{}, fmt.Errorf("messages[%d]: unsupported role %q", i, m.Role)
		}
	}
	return message.NewBag(msgs...), nil
}

func imagePart(ref string) (message.Content, error) {
	if strings.HasPrefix(ref, "data:") {
		f, err := message.FileFromDataURL(ref)
		if err != nil {
			return nil, err
		}
		return message.Image{File: f}, nil
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return message.ImageURL{URL: ref}, nil
	}
	return nil, fmt.Errorf("image must be a data URL or an http(s) URL")
}

// splitMetadata separates token usage from the provider-namespaced keys.
func splitMetadata(meta *platform.Metadata) (*platform.TokenUsage, map[string]any) {
	usage, _ := meta.TokenUsage()
	rest := meta.All()
	delete(rest, platform.TokenUsageKey)
	if len(rest) == 0 {
		rest = nil
	}
	return usage, rest
}

type streamDelta struct {
	Text      string             `json:"text,omitempty"`
	Thinking  string             `json:"thinking,omitempty"`
	ToolCalls []message.ToolCall `json:"tool_calls,omitempty"`
}

func (s *Server) writeStream(c echo.Context, stream *platform.StreamResult) error {
	writer := c.Response().Writer
	flusher, ok := writer.(http.Flusher)
	if !ok {
		s.logger.Error("http writer does not support flushing")
		// Start the stream and stop at once so the upstream body is closed.
		stream.Deltas()(func(platform.Delta, error) bool { return false })
		return requestError{
			Status:  http.StatusInternalServerError,
			Message: "server does not support streaming responses",
			Type:    "server_error",
		}
	}

	header := c.Response().Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	c.Response().WriteHeader(http.StatusOK)

	for d, err := range stream.Deltas() {
		if err != nil {
			s.logger.Warn("stream failed", zap.Error(err))
			return writeSSEEvent(writer, "error", errorPayload(err))
		}
		if err := writeSSEEvent(writer, "delta", streamDelta{Text: d.Text, Thinking: d.Thinking, ToolCalls: d.ToolCalls}); err != nil {
			s.logger.Error("failed to write SSE event", zap.Error(err))
			return err
		}
		flusher.Flush()
	}

	usage, meta := splitMetadata(stream.Metadata())
	if err := writeSSEEvent(writer, "done", map[string]any{"usage": usage, "metadata": meta}); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func writeSSEEvent(w io.Writer, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal SSE payload: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
		return fmt.Errorf("write SSE event name: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write SSE data: %w", err)
	}
	return nil
}
