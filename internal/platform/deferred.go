package platform

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hpkotak/aiplatform/internal/message"
	"github.com/hpkotak/aiplatform/internal/model"
)

// DeferredResult converts a raw result the first time it is observed and
// memoizes the outcome. Concurrent readers wait for the in-flight conversion.
type DeferredResult struct {
	converter ResultConverter
	raw       RawResult
	opts      Options

	once   sync.Once
	result Result
	err    error
}

// NewDeferredResult wraps raw. It panics when converter does not support m:
// selecting a converter is the caller's job, so a mismatch is a bug.
func NewDeferredResult(converter ResultConverter, raw RawResult, m model.Model, opts Options) *DeferredResult {
	if !converter.Supports(m) {
		panic(fmt.Sprintf("platform: converter %T does not support model %q (class %q)", converter, m.Name(), m.Class()))
	}
	return &DeferredResult{converter: converter, raw: raw, opts: opts}
}

// RawResult returns the unconverted response.
func (d *DeferredResult) RawResult() RawResult { return d.raw }

// Result converts on first call and returns the memoized result afterwards.
func (d *DeferredResult) Result() (Result, error) {
	d.once.Do(func() {
		d.result, d.err = d.resolve()
	})
	return d.result, d.err
}

func (d *DeferredResult) resolve() (Result, error) {
	res, err := d.converter.Convert(d.raw, d.opts)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, NewConversionError(fmt.Sprintf("%T", d.converter), "converter returned no result")
	}
	res.setRawResult(d.raw)

	extractor := d.converter.TokenUsageExtractor()
	if extractor == nil {
		return res, nil
	}

	if stream, ok := res.(*StreamResult); ok {
		header := d.raw.Header()
		stream.OnComplete(func(seen []Chunk) {
			usage, err := extractor.Extract(NewStaticStream(header, seen...), d.opts)
			if err == nil && usage != nil {
				stream.Metadata().Set(TokenUsageKey, usage)
			}
		})
		return res, nil
	}

	usage, err := extractor.Extract(d.raw, d.opts)
	if err != nil {
		return nil, err
	}
	if usage != nil {
		res.Metadata().Set(TokenUsageKey, usage)
	}
	return res, nil
}

// AsText returns the text of a *TextResult.
func (d *DeferredResult) AsText() (string, error) {
	res, err := d.Result()
	if err != nil {
		return "", err
	}
	t, ok := res.(*TextResult)
	if !ok {
		return "", fmt.Errorf("%w: want text, got %T", ErrUnexpectedResult, res)
	}
	return t.Text, nil
}

// AsToolCalls returns the calls of a *ToolCallResult.
func (d *DeferredResult) AsToolCalls() ([]message.ToolCall, error) {
	res, err := d.Result()
	if err != nil {
		return nil, err
	}
	tc, ok := res.(*ToolCallResult)
	if !ok {
		return nil, fmt.Errorf("%w: want tool calls, got %T", ErrUnexpectedResult, res)
	}
	return tc.ToolCalls, nil
}

// AsStructured returns the decoded value of a *StructuredResult.
func (d *DeferredResult) AsStructured() (any, error) {
	res, err := d.Result()
	if err != nil {
		return nil, err
	}
	s, ok := res.(*StructuredResult)
	if !ok {
		return nil, fmt.Errorf("%w: want structured output, got %T", ErrUnexpectedResult, res)
	}
	return s.Data, nil
}

// Decode unmarshals structured output into v.
func (d *DeferredResult) Decode(v any) error {
	res, err := d.Result()
	if err != nil {
		return err
	}
	s, ok := res.(*StructuredResult)
	if !ok {
		return fmt.Errorf("%w: want structured output, got %T", ErrUnexpectedResult, res)
	}
	if err := json.Unmarshal([]byte(s.JSON), v); err != nil {
		return fmt.Errorf("decoding structured output: %w", err)
	}
	return nil
}

// AsStream returns a *StreamResult.
func (d *DeferredResult) AsStream() (*StreamResult, error) {
	res, err := d.Result()
	if err != nil {
		return nil, err
	}
	s, ok := res.(*StreamResult)
	if !ok {
		return nil, fmt.Errorf("%w: want stream, got %T", ErrUnexpectedResult, res)
	}
	return s, nil
}
