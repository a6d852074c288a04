package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestStreamReturnsStatusErrorOnBackendFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model is down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 2*time.Second)
	_, _, err := c.Stream(context.Background(), map[string]any{"stream": true})
	if err == nil {
		t.Fatal("expected an error for a 500 response")
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %T: %v", err, err)
	}
	if statusErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", statusErr.StatusCode)
	}
	if !strings.Contains(statusErr.Body, "model is down") {
		t.Fatalf("expected response body in error, got %q", statusErr.Body)
	}
}

func TestStreamDeliversChunksAndNilOnEOF(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("Accept"); got != "text/event-stream" {
			t.Errorf("expected SSE accept header, got %q", got)
		}
		fl, _ := w.(http.Flusher)
		fmt.Fprint(w, "data: one\n\n")
		fl.Flush()
		fmt.Fprint(w, "data: two\n\n")
		fl.Flush()
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 2*time.Second)
	chunks, result, err := c.Stream(context.Background(), map[string]any{"stream": true})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}

	var body strings.Builder
	for chunk := range chunks {
		body.Write(chunk)
	}
	if err := <-result; err != nil {
		t.Fatalf("expected nil on a clean close, got %v", err)
	}
	if got := body.String(); got != "data: one\n\ndata: two\n\n" {
		t.Fatalf("unexpected body: %q", got)
	}
}

func TestStreamReportsAbortWhenContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fl, _ := w.(http.Flusher)
		fmt.Fprint(w, "data: first\n\n")
		fl.Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := NewClient(srv.URL, 2*time.Second)
	chunks, result, err := c.Stream(ctx, map[string]any{"stream": true})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}

	select {
	case <-chunks:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the first chunk")
	}

	cancel()

	for range chunks {
		// drain until the reader gives up
	}
	if err := <-result; !errors.Is(err, ErrAborted) {
		t.Fatalf("expected ErrAborted, got %v", err)
	}
}

func TestStreamAbortBeforeConnect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(srv.URL, 2*time.Second)
	_, _, err := c.Stream(ctx, map[string]any{"stream": true})
	if !errors.Is(err, ErrAborted) {
		t.Fatalf("expected ErrAborted for a pre-cancelled context, got %v", err)
	}
}
