package platform

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpkotak/aiplatform/internal/message"
	"github.com/hpkotak/aiplatform/internal/model"
)

const testClass = "test"

type fakeClient struct {
	calls atomic.Int32
	raw   RawResult
	err   error
	opts  Options
}

func (c *fakeClient) Supports(m model.Model) bool { return m.Class() == testClass }

func (c *fakeClient) Request(_ context.Context, _ model.Model, _ message.Bag, opts Options) (RawResult, error) {
	c.calls.Add(1)
	c.opts = opts
	return c.raw, c.err
}

type fakeConverter struct {
	calls     atomic.Int32
	extractor TokenUsageExtractor
	convert   func(RawResult, Options) (Result, error)
}

func (c *fakeConverter) Supports(m model.Model) bool { return m.Class() == testClass }

func (c *fakeConverter) Convert(raw RawResult, opts Options) (Result, error) {
	c.calls.Add(1)
	if c.convert != nil {
		return c.convert(raw, opts)
	}
	return NewTextResult("hello"), nil
}

func (c *fakeConverter) TokenUsageExtractor() TokenUsageExtractor { return c.extractor }

type extractorFunc func(RawResult, Options) (*TokenUsage, error)

func (f extractorFunc) Extract(raw RawResult, opts Options) (*TokenUsage, error) { return f(raw, opts) }

func newTestPlatform(t *testing.T, client *fakeClient, conv *fakeConverter) *Platform {
	t.Helper()
	catalog := model.MustCatalog(
		model.New("full", testClass, model.InputMessages, model.InputText, model.InputImage,
			model.OutputText, model.OutputStreaming, model.OutputStructured, model.ToolCalling),
		model.New("basic", testClass, model.InputMessages, model.InputText, model.OutputText),
		model.New("orphan", "other", model.InputMessages, model.InputText, model.OutputText),
	)
	return New("test", catalog, []ModelClient{client}, []ResultConverter{conv})
}

func TestInvokeRejectsMissingCapabilityBeforeDispatch(t *testing.T) {
	tests := []struct {
		name string
		bag  message.Bag
		opts Options
		want model.Capability
	}{
		{name: "stream", bag: message.NewBag(message.UserText("hi")), opts: Options{Stream: true}, want: model.OutputStreaming},
		{name: "tools", bag: message.NewBag(message.UserText("hi")), opts: Options{Tools: []ToolDefinition{{Name: "clock"}}}, want: model.ToolCalling},
		{name: "structured", bag: message.NewBag(message.UserText("hi")), opts: Options{ResponseFormat: &ResponseFormat{Name: "x"}}, want: model.OutputStructured},
		{
			name: "image input",
			bag:  message.NewBag(message.User(message.Text{Text: "look"}, message.ImageURL{URL: "https://example.com/a.png"})),
			want: model.InputImage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{raw: NewStaticResult([]byte(`{}`), nil)}
			p := newTestPlatform(t, client, &fakeConverter{})

			_, err := p.Invoke(context.Background(), "basic", tt.bag, tt.opts)
			require.ErrorIs(t, err, model.ErrUnsupportedCapability)

			var capErr *model.CapabilityError
			require.ErrorAs(t, err, &capErr)
			assert.Equal(t, []model.Capability{tt.want}, capErr.Missing)
			assert.Zero(t, client.calls.Load(), "transport must not be called")
		})
	}
}

func TestInvokeUnknownModel(t *testing.T) {
	client := &fakeClient{}
	p := newTestPlatform(t, client, &fakeConverter{})

	_, err := p.Invoke(context.Background(), "missing", message.NewBag(message.UserText("hi")), Options{})
	require.ErrorIs(t, err, model.ErrUnsupportedModel)
	assert.Zero(t, client.calls.Load())
}

func TestInvokeWithoutClientForClass(t *testing.T) {
	client := &fakeClient{}
	p := newTestPlatform(t, client, &fakeConverter{})

	_, err := p.Invoke(context.Background(), "orphan", message.NewBag(message.UserText("hi")), Options{})
	require.ErrorIs(t, err, ErrNoClient)
	assert.Zero(t, client.calls.Load())
}

func TestInvokePassesTransportErrorsThrough(t *testing.T) {
	transportErr := errors.New("connection reset")
	client := &fakeClient{err: transportErr}
	p := newTestPlatform(t, client, &fakeConverter{})

	_, err := p.Invoke(context.Background(), "full", message.NewBag(message.UserText("hi")), Options{})
	assert.Same(t, transportErr, err)
}

func TestInvokeAppliesModelDefaults(t *testing.T) {
	client := &fakeClient{raw: NewStaticResult([]byte(`{}`), nil)}
	p := newTestPlatform(t, client, &fakeConverter{})

	_, err := p.Invoke(context.Background(), "full?temperature=0.3&max_tokens=64&seed=7", message.NewBag(message.UserText("hi")), Options{})
	require.NoError(t, err)

	require.NotNil(t, client.opts.Temperature)
	assert.InDelta(t, 0.3, *client.opts.Temperature, 1e-9)
	assert.Equal(t, 64, client.opts.MaxTokens)
	assert.Equal(t, 7, client.opts.Extra["seed"])
}

func TestInvokeExplicitOptionsWinOverDefaults(t *testing.T) {
	client := &fakeClient{raw: NewStaticResult([]byte(`{}`), nil)}
	p := newTestPlatform(t, client, &fakeConverter{})

	temp := 1.0
	_, err := p.Invoke(context.Background(), "full?temperature=0.3", message.NewBag(message.UserText("hi")), Options{Temperature: &temp})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, *client.opts.Temperature, 1e-9)
}

func TestInvokeLeavesCallerExtraUntouched(t *testing.T) {
	client := &fakeClient{raw: NewStaticResult([]byte(`{}`), nil)}
	p := newTestPlatform(t, client, &fakeConverter{})

	opts := Options{Extra: map[string]any{"user": "bob"}}
	_, err := p.Invoke(context.Background(), "full?top_p=0.5", message.NewBag(message.UserText("hi")), opts)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"user": "bob"}, opts.Extra)
	assert.Equal(t, "bob", client.opts.Extra["user"])
	assert.Contains(t, client.opts.Extra, "top_p")
}

func TestDeferredResultConvertsOnce(t *testing.T) {
	conv := &fakeConverter{}
	client := &fakeClient{raw: NewStaticResult([]byte(`{}`), nil)}
	p := newTestPlatform(t, client, conv)

	deferred, err := p.Invoke(context.Background(), "full", message.NewBag(message.UserText("hi")), Options{})
	require.NoError(t, err)
	assert.Zero(t, conv.calls.Load(), "conversion must be lazy")

	first, err := deferred.Result()
	require.NoError(t, err)
	second, err := deferred.Result()
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), conv.calls.Load())

	text, err := deferred.AsText()
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.Same(t, client.raw, first.RawResult())
}

func TestDeferredResultConcurrentReaders(t *testing.T) {
	release := make(chan struct{})
	conv := &fakeConverter{convert: func(RawResult, Options) (Result, error) {
		<-release
		return NewTextResult("slow"), nil
	}}
	d := NewDeferredResult(conv, NewStaticResult(nil, nil), model.New("m", testClass), Options{})

	var wg sync.WaitGroup
	results := make([]Result, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = d.Result()
		}(i)
	}
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), conv.calls.Load())
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}

func TestDeferredResultMemoizesErrors(t *testing.T) {
	convErr := NewConversionError("test", "missing choices")
	conv := &fakeConverter{convert: func(RawResult, Options) (Result, error) { return nil, convErr }}
	d := NewDeferredResult(conv, NewStaticResult(nil, nil), model.New("m", testClass), Options{})

	_, err := d.Result()
	require.ErrorIs(t, err, ErrConversion)
	_, err = d.AsText()
	require.ErrorIs(t, err, ErrConversion)
	assert.Equal(t, int32(1), conv.calls.Load())
}

func TestNewDeferredResultPanicsForUnsupportedModel(t *testing.T) {
	assert.Panics(t, func() {
		NewDeferredResult(&fakeConverter{}, NewStaticResult(nil, nil), model.New("m", "other"), Options{})
	})
}

func TestDeferredResultAttachesTokenUsage(t *testing.T) {
	conv := &fakeConverter{extractor: extractorFunc(func(RawResult, Options) (*TokenUsage, error) {
		return &TokenUsage{PromptTokens: Count(3)}, nil
	})}
	d := NewDeferredResult(conv, NewStaticResult(nil, nil), model.New("m", testClass), Options{})

	res, err := d.Result()
	require.NoError(t, err)
	usage, ok := res.Metadata().TokenUsage()
	require.True(t, ok)
	assert.Equal(t, 3, *usage.PromptTokens)
}

func TestDeferredResultPropagatesExtractorTransportError(t *testing.T) {
	transportErr := errors.New("body read failed")
	conv := &fakeConverter{extractor: extractorFunc(func(RawResult, Options) (*TokenUsage, error) {
		return nil, transportErr
	})}
	d := NewDeferredResult(conv, NewStaticResult(nil, nil), model.New("m", testClass), Options{})

	_, err := d.Result()
	assert.Same(t, transportErr, err)
}

func TestDeferredResultTypeMismatch(t *testing.T) {
	conv := &fakeConverter{convert: func(RawResult, Options) (Result, error) {
		return NewToolCallResult(message.ToolCall{ID: "1", Name: "clock"}), nil
	}}
	d := NewDeferredResult(conv, NewStaticResult(nil, nil), model.New("m", testClass), Options{})

	_, err := d.AsText()
	require.ErrorIs(t, err, ErrUnexpectedResult)
	_, err = d.AsStream()
	require.ErrorIs(t, err, ErrUnexpectedResult)

	calls, err := d.AsToolCalls()
	require.NoError(t, err)
	assert.Equal(t, "clock", calls[0].Name)
}

func TestDeferredResultDecodesStructuredOutput(t *testing.T) {
	conv := &fakeConverter{convert: func(RawResult, Options) (Result, error) {
		return NewStructuredResult(map[string]any{"city": "Paris"}, `{"city":"Paris"}`), nil
	}}
	d := NewDeferredResult(conv, NewStaticResult(nil, nil), model.New("m", testClass), Options{})

	var out struct {
		City string `json:"city"`
	}
	require.NoError(t, d.Decode(&out))
	assert.Equal(t, "Paris", out.City)

	data, err := d.AsStructured()
	require.NoError(t, err)
	assert.Equal(t, "Paris", data.(map[string]any)["city"])
}

func TestStreamResultUsageAfterIteration(t *testing.T) {
	raw := NewStaticStream(nil,
		Chunk{Raw: []byte(`{"text":"Hel","done":false}`)},
		Chunk{Raw: []byte(`{"text":"lo","done":false}`)},
		Chunk{Raw: []byte(`{"done":true,"n":10}`)},
	)
	conv := &fakeConverter{
		convert: func(raw RawResult, _ Options) (Result, error) {
			return NewStreamResult(raw.Chunks(), func(c Chunk) ([]Delta, error) {
				return []Delta{{Text: c.Get("text").String()}}, nil
			}), nil
		},
		extractor: extractorFunc(func(raw RawResult, _ Options) (*TokenUsage, error) {
			c, ok, err := ScanTerminal(raw, func(c Chunk) bool { return c.Get("done").Bool() })
			if err != nil || !ok {
				return nil, err
			}
			return &TokenUsage{PromptTokens: UsageCount(c.Get("n"))}, nil
		}),
	}
	d := NewDeferredResult(conv, raw, model.New("m", testClass), Options{Stream: true})

	stream, err := d.AsStream()
	require.NoError(t, err)
	_, ok := stream.Metadata().TokenUsage()
	assert.False(t, ok, "usage must not be known before the stream is read")

	text, _, err := stream.Collect()
	require.NoError(t, err)
	assert.Equal(t, "Hello", text)

	usage, ok := stream.Metadata().TokenUsage()
	require.True(t, ok)
	assert.Equal(t, 10, *usage.PromptTokens)

	for _, err := range stream.Deltas() {
		assert.ErrorIs(t, err, ErrStreamExhausted)
	}
}

func TestStreamResultYieldsTransportError(t *testing.T) {
	transportErr := errors.New("unexpected EOF")
	chunks := func(yield func(Chunk, error) bool) {
		if !yield(Chunk{Raw: []byte(`{"text":"a"}`)}, nil) {
			return
		}
		yield(Chunk{}, transportErr)
	}
	stream := NewStreamResult(chunks, func(c Chunk) ([]Delta, error) {
		return []Delta{{Text: c.Get("text").String()}}, nil
	})

	text, _, err := stream.Collect()
	assert.Equal(t, "a", text)
	assert.Same(t, transportErr, err)
}
