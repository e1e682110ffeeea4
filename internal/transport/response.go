package transport

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"sync"

	"github.com/hpkotak/aiplatform/internal/platform"
)

const maxLineSize = 1 << 20

var (
	errNotStreamed = errors.New("response is not streamed")
	errStreamed    = errors.New("response is streamed")
)

// Response is the raw result of an HTTP dispatch.
type Response struct {
	resp   *http.Response
	format platform.StreamFormat
	stream *platform.ChunkStream

	bodyOnce sync.Once
	body     []byte
	bodyErr  error
}

func newResponse(resp *http.Response, format platform.StreamFormat) *Response {
	r := &Response{resp: resp, format: format}
	if format != platform.StreamNone {
		r.stream = platform.NewChunkStream(r.scan)
	}
	return r
}

// Object returns the underlying *http.Response.
func (r *Response) Object() any { return r.resp }

func (r *Response) Header() http.Header { return r.resp.Header }

// Body reads and caches the full body of a non-streamed response.
func (r *Response) Body() ([]byte, error) {
	if r.format != platform.StreamNone {
		return nil, errStreamed
	}
	r.bodyOnce.Do(func() {
		defer func() { _ = r.resp.Body.Close() }()
		r.body, r.bodyErr = io.ReadAll(r.resp.Body)
		if r.bodyErr != nil {
			r.bodyErr = fmt.Errorf("reading response body: %w", r.bodyErr)
		}
	})
	return r.body, r.bodyErr
}

func (r *Response) Data() (map[string]any, error) {
	body, err := r.Body()
	if err != nil {
		return nil, err
	}
	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("decoding response body: %w", err)
	}
	return data, nil
}

// Chunks parses the streamed body lazily. It can be ranged over once.
func (r *Response) Chunks() iter.Seq2[platform.Chunk, error] {
	if r.stream == nil {
		return func(yield func(platform.Chunk, error) bool) {
			yield(platform.Chunk{}, errNotStreamed)
		}
	}
	return r.stream.All()
}

func (r *Response) scan(yield func(platform.Chunk, error) bool) {
	defer func() { _ = r.resp.Body.Close() }()

	scanner := bufio.NewScanner(r.resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var ok bool
	if r.format == platform.StreamNDJSON {
		ok = scanNDJSON(scanner, yield)
	} else {
		ok = scanSSE(scanner, yield)
	}
	if !ok {
		return
	}
	if err := scanner.Err(); err != nil {
		yield(platform.Chunk{}, fmt.Errorf("reading stream: %w", err))
	}
}

func scanNDJSON(scanner *bufio.Scanner, yield func(platform.Chunk, error) bool) bool {
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if !yield(platform.Chunk{Raw: bytes.Clone(line)}, nil) {
			return false
		}
	}
	return true
}

// scanSSE dispatches an event at each blank line. Multiple data lines of one
// event are joined with a newline. A "[DONE]" payload ends the stream.
func scanSSE(scanner *bufio.Scanner, yield func(platform.Chunk, error) bool) bool {
	var event string
	var data [][]byte

	flush := func() (cont, done bool) {
		defer func() { event, data = "", nil }()
		if len(data) == 0 {
			return true, false
		}
		payload := bytes.Join(data, []byte("\n"))
		if string(payload) == "[DONE]" {
			return false, true
		}
		return yield(platform.Chunk{Event: event, Raw: payload}, nil), false
	}

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			if cont, done := flush(); done || !cont {
				return false
			}
			continue
		}

		field, value, _ := bytes.Cut(line, []byte(":"))
		value = bytes.TrimPrefix(value, []byte(" "))
		switch string(field) {
		case "event":
			event = string(value)
		case "data":
			data = append(data, bytes.Clone(value))
		}
	}
	cont, done := flush()
	return cont && !done
}
