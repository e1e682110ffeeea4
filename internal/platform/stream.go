package platform

import (
	"iter"
	"strings"
	"sync"

	"github.com/hpkotak/aiplatform/internal/message"
)

// Delta is an incremental piece of a streamed reply.
type Delta struct {
	Text     string
	Thinking string
	// ToolCalls is set once, when the vendor signals the calls are complete.
	ToolCalls []message.ToolCall
}

// ChunkConverter maps one chunk to zero or more deltas. Converters that need
// to assemble fragments across chunks keep that state in the closure.
type ChunkConverter func(Chunk) ([]Delta, error)

// StreamResult lazily converts a chunk sequence into deltas.
type StreamResult struct {
	resultBase
	chunks  iter.Seq2[Chunk, error]
	convert ChunkConverter

	mu         sync.Mutex
	onComplete []func(seen []Chunk)
}

// NewStreamResult wraps chunks. Nothing is read until Deltas is ranged over.
func NewStreamResult(chunks iter.Seq2[Chunk, error], convert ChunkConverter) *StreamResult {
	return &StreamResult{resultBase: newResultBase(), chunks: chunks, convert: convert}
}

// OnComplete registers fn to receive every chunk observed once iteration
// ends, whether the stream ran out or the caller stopped early.
func (s *StreamResult) OnComplete(fn func(seen []Chunk)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onComplete = append(s.onComplete, fn)
}

// Deltas returns the converted sequence. Like the underlying chunk stream it
// can be consumed once; transport errors are yielded unchanged.
func (s *StreamResult) Deltas() iter.Seq2[Delta, error] {
	return func(yield func(Delta, error) bool) {
		var seen []Chunk
		defer func() { s.complete(seen) }()

		for c, err := range s.chunks {
			if err != nil {
				yield(Delta{}, err)
				return
			}
			seen = append(seen, c)

			deltas, err := s.convert(c)
			if err != nil {
				yield(Delta{}, err)
				return
			}
			for _, d := range deltas {
				if !yield(d, nil) {
					return
				}
			}
		}
	}
}

func (s *StreamResult) complete(seen []Chunk) {
	s.mu.Lock()
	hooks := s.onComplete
	s.onComplete = nil
	s.mu.Unlock()

	for _, fn := range hooks {
		fn(seen)
	}
}

// Collect drains the stream into its full text and any tool calls.
func (s *StreamResult) Collect() (string, []message.ToolCall, error) {
	var text strings.Builder
	var calls []message.ToolCall
	for d, err := range s.Deltas() {
		if err != nil {
			return text.String(), calls, err
		}
		text.WriteString(d.Text)
		calls = append(calls, d.ToolCalls...)
	}
	return text.String(), calls, nil
}
