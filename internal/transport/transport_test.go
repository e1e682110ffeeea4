package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hpkotak/aiplatform/internal/platform"
)

func TestDispatchPostsJSON(t *testing.T) {
	var gotBody map[string]any
	var gotAuth, gotVersion, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotVersion = r.Header.Get("X-Version")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("x-ratelimit-remaining-tokens", "99")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tr := New(srv.URL+"/v1/", WithHeader("Authorization", "Bearer k"))
	raw, err := tr.Dispatch(context.Background(), platform.Request{
		Endpoint: "/chat/completions",
		Payload:  map[string]any{"model": "m"},
		Header:   http.Header{"X-Version": []string{"2"}},
	})
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}

	if gotPath != "/v1/chat/completions" {
		t.Errorf("path = %q, want /v1/chat/completions", gotPath)
	}
	if gotAuth != "Bearer k" || gotVersion != "2" {
		t.Errorf("headers = %q, %q", gotAuth, gotVersion)
	}
	if gotBody["model"] != "m" {
		t.Errorf("payload = %v", gotBody)
	}

	data, err := raw.Data()
	if err != nil {
		t.Fatalf("Data() error: %v", err)
	}
	if data["ok"] != true {
		t.Errorf("Data() = %v", data)
	}
	body1, _ := raw.Body()
	body2, _ := raw.Body()
	if string(body1) != string(body2) {
		t.Errorf("Body() not cached: %q vs %q", body1, body2)
	}
	if got := raw.Header().Get("x-ratelimit-remaining-tokens"); got != "99" {
		t.Errorf("header = %q", got)
	}
	if _, ok := raw.Object().(*http.Response); !ok {
		t.Errorf("Object() = %T, want *http.Response", raw.Object())
	}
}

func TestDispatchStatusError(t *testing.T) {
	long := make([]byte, 2048)
	for i := range long {
		long[i] = 'x'
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("x-request-id", "req-123")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write(long)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Dispatch(context.Background(), platform.Request{Endpoint: "x", Payload: struct{}{}})
	if !errors.Is(err, ErrStatus) {
		t.Fatalf("error = %v, want ErrStatus", err)
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("error %T is not *StatusError", err)
	}
	if statusErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d", statusErr.StatusCode)
	}
	if len(statusErr.Body) != errorBodyLimit {
		t.Errorf("Body length = %d, want %d", len(statusErr.Body), errorBodyLimit)
	}
	if statusErr.RequestID != "req-123" {
		t.Errorf("RequestID = %q", statusErr.RequestID)
	}
}

func TestDispatchUnencodablePayload(t *testing.T) {
	_, err := New("http://127.0.0.1:1").Dispatch(context.Background(), platform.Request{Payload: make(chan int)})
	if err == nil {
		t.Fatal("expected encoding error")
	}
}

func TestSSEStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "text/event-stream" {
			t.Errorf("Accept = %q", got)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, ": keep-alive\n\n")
		_, _ = io.WriteString(w, "event: message_start\ndata: {\"a\":1}\n\n")
		_, _ = io.WriteString(w, "data: {\"b\":\ndata: 2}\n\n")
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
		_, _ = io.WriteString(w, "data: {\"after\":true}\n\n")
	}))
	defer srv.Close()

	raw, err := New(srv.URL).Dispatch(context.Background(), platform.Request{Payload: struct{}{}, Stream: platform.StreamSSE})
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}

	var got []string
	for c, err := range raw.Chunks() {
		if err != nil {
			t.Fatalf("chunk error: %v", err)
		}
		got = append(got, fmt.Sprintf("%s|%s", c.Event, c.Raw))
	}
	want := []string{"message_start|{\"a\":1}", "|{\"b\":\n2}"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("chunks = %q, want %q", got, want)
	}

	for _, err := range raw.Chunks() {
		if !errors.Is(err, platform.ErrStreamExhausted) {
			t.Errorf("second iteration error = %v, want ErrStreamExhausted", err)
		}
	}
	if _, err := raw.Body(); !errors.Is(err, errStreamed) || errors.Is(err, platform.ErrStreamExhausted) {
		t.Errorf("Body() on a streamed response error = %v, want errStreamed", err)
	}
}

func TestBodyOnUnreadStreamedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "{\"done\":true}\n")
	}))
	defer srv.Close()

	raw, err := New(srv.URL).Dispatch(context.Background(), platform.Request{Payload: struct{}{}, Stream: platform.StreamNDJSON})
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if _, err := raw.Data(); !errors.Is(err, errStreamed) {
		t.Errorf("Data() error = %v, want errStreamed", err)
	}

	n := 0
	for _, err := range raw.Chunks() {
		if err != nil {
			t.Fatalf("chunk error after Body(): %v", err)
		}
		n++
	}
	if n != 1 {
		t.Errorf("chunks read = %d, want 1", n)
	}
}

func TestNDJSONStreamStopsEarly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "{\"done\":false}\n\n{\"done\":false}\n{\"done\":true}\n")
	}))
	defer srv.Close()

	raw, err := New(srv.URL).Dispatch(context.Background(), platform.Request{Payload: struct{}{}, Stream: platform.StreamNDJSON})
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}

	n := 0
	for c, err := range raw.Chunks() {
		if err != nil {
			t.Fatalf("chunk error: %v", err)
		}
		n++
		if c.Get("done").Bool() {
			break
		}
	}
	if n != 3 {
		t.Errorf("chunks read = %d, want 3", n)
	}
}

func TestChunksOnNonStreamedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	raw, err := New(srv.URL).Dispatch(context.Background(), platform.Request{Payload: struct{}{}})
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	for _, err := range raw.Chunks() {
		if err == nil {
			t.Error("expected error ranging over a non-streamed response")
		}
	}
}
