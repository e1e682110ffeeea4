package platform

import (
	"context"
	"net/http"

	"github.com/hpkotak/aiplatform/internal/message"
	"github.com/hpkotak/aiplatform/internal/model"
)

// ResultConverter maps raw responses of one vendor into typed results.
type ResultConverter interface {
	// Supports must be consulted before Convert is called for a model.
	Supports(m model.Model) bool
	// Convert is a pure function of its inputs. It returns a *StreamResult
	// when opts.Stream is set and a *ConversionError for malformed payloads.
	Convert(raw RawResult, opts Options) (Result, error)
	// TokenUsageExtractor returns nil when the vendor reports no usage.
	TokenUsageExtractor() TokenUsageExtractor
}

// ModelClient turns a message bag into a vendor request.
type ModelClient interface {
	Supports(m model.Model) bool
	Request(ctx context.Context, m model.Model, input message.Bag, opts Options) (RawResult, error)
}

// StreamFormat selects how a streamed body is split into chunks.
type StreamFormat int

const (
	StreamNone StreamFormat = iota
	StreamSSE
	StreamNDJSON
)

// Request is a single vendor call.
type Request struct {
	Endpoint string
	Payload  any
	Header   http.Header
	Stream   StreamFormat
}

// Transport performs vendor calls. Connection pooling, retries and TLS are
// the transport's concern.
type Transport interface {
	Dispatch(ctx context.Context, req Request) (RawResult, error)
}
