package platform

import (
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"sync/atomic"

	"github.com/tidwall/gjson"
)

// RawResult is the unconverted provider response. Accessor errors are
// transport errors and must be propagated unchanged by callers.
type RawResult interface {
	// Object returns the native transport object, e.g. *http.Response.
	Object() any
	Header() http.Header
	// Body returns the full response body of a non-streaming call.
	Body() ([]byte, error)
	// Data returns the decoded body.
	Data() (map[string]any, error)
	// Chunks returns the streamed chunks. The sequence can be consumed once.
	Chunks() iter.Seq2[Chunk, error]
}

// Chunk is one decoded element of a streamed response.
type Chunk struct {
	// Event is the SSE event name, empty for NDJSON streams.
	Event string
	Raw   []byte
}

// Get looks up a gjson path in the chunk payload.
func (c Chunk) Get(path string) gjson.Result {
	return gjson.GetBytes(c.Raw, path)
}

// Data decodes the chunk payload.
func (c Chunk) Data() (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal(c.Raw, &data); err != nil {
		return nil, fmt.Errorf("decoding chunk: %w", err)
	}
	return data, nil
}

// ChunkStream guards a chunk sequence so it can be iterated at most once.
type ChunkStream struct {
	seq      iter.Seq2[Chunk, error]
	consumed atomic.Bool
}

// NewChunkStream wraps seq.
func NewChunkStream(seq iter.Seq2[Chunk, error]) *ChunkStream {
	return &ChunkStream{seq: seq}
}

// All returns the sequence. Ranging over it a second time yields a single
// ErrStreamExhausted.
func (s *ChunkStream) All() iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		if !s.consumed.CompareAndSwap(false, true) {
			yield(Chunk{}, ErrStreamExhausted)
			return
		}
		for c, err := range s.seq {
			if !yield(c, err) {
				return
			}
		}
	}
}

// StaticResult is an in-memory RawResult.
type StaticResult struct {
	body   []byte
	header http.Header
	stream *ChunkStream
	object any
}

// NewStaticResult wraps a complete response body.
func NewStaticResult(body []byte, header http.Header) *StaticResult {
	if header == nil {
		header = http.Header{}
	}
	return &StaticResult{body: body, header: header, object: body}
}

// NewStaticStream wraps already received chunks as a fresh single-use stream.
func NewStaticStream(header http.Header, chunks ...Chunk) *StaticResult {
	if header == nil {
		header = http.Header{}
	}
	return &StaticResult{
		header: header,
		object: chunks,
		stream: NewChunkStream(func(yield func(Chunk, error) bool) {
			for _, c := range chunks {
				if !yield(c, nil) {
					return
				}
			}
		}),
	}
}

func (r *StaticResult) Object() any         { return r.object }
func (r *StaticResult) Header() http.Header { return r.header }

func (r *StaticResult) Body() ([]byte, error) {
	if r.stream != nil {
		return nil, fmt.Errorf("streamed result has no body")
	}
	return r.body, nil
}

func (r *StaticResult) Data() (map[string]any, error) {
	body, err := r.Body()
	if err != nil {
		return nil, err
	}
	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("decoding body: %w", err)
	}
	return data, nil
}

func (r *StaticResult) Chunks() iter.Seq2[Chunk, error] {
	if r.stream == nil {
		return func(yield func(Chunk, error) bool) {
			yield(Chunk{}, fmt.Errorf("result is not streamed"))
		}
	}
	return r.stream.All()
}
