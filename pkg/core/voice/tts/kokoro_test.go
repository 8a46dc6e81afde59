package tts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestKokoro_SynthesizeStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/speech" {
			t.Errorf("path=%q", r.URL.Path)
		}
		flusher := w.(http.Flusher)
		for range 3 {
			_, _ = w.Write([]byte{0x01, 0x02, 0x03, 0x04})
			flusher.Flush()
		}
	}))
	defer srv.Close()

	k := NewKokoro(srv.URL)
	stream, err := k.SynthesizeStream(context.Background(), "hello", SynthesizeOptions{Voice: "af_heart"})
	if err != nil {
		t.Fatalf("SynthesizeStream: %v", err)
	}
	defer stream.Close()

	var total int
	for chunk := range stream.Chunks() {
		total += len(chunk)
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("stream err: %v", err)
	}
	if total != 12 {
		t.Fatalf("total=%d, want 12", total)
	}
}

func TestKokoro_EngineError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such voice", http.StatusBadRequest)
	}))
	defer srv.Close()

	k := NewKokoro(srv.URL)
	if _, err := k.SynthesizeStream(context.Background(), "hello", SynthesizeOptions{}); err == nil {
		t.Fatalf("expected error for non-200 response")
	}
}

func TestKokoro_MidStreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.(http.Flusher).Flush()
		_, _ = w.Write([]byte{0x01})
		w.(http.Flusher).Flush()
		// Abort the connection mid-body.
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Errorf("response writer does not support hijack")
			return
		}
		conn, _, err := hj.Hijack()
		if err != nil {
			return
		}
		_ = conn.Close()
	}))
	defer srv.Close()

	k := NewKokoro(srv.URL)
	stream, err := k.SynthesizeStream(context.Background(), "hello", SynthesizeOptions{})
	if err != nil {
		t.Fatalf("SynthesizeStream: %v", err)
	}
	defer stream.Close()

	for range stream.Chunks() {
	}
	if stream.Err() == nil {
		t.Fatalf("expected mid-stream error")
	}
}

func TestKokoro_ContextCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte{0x01})
		w.(http.Flusher).Flush()
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	k := NewKokoro(srv.URL)
	stream, err := k.SynthesizeStream(ctx, "hello", SynthesizeOptions{})
	if err != nil {
		t.Fatalf("SynthesizeStream: %v", err)
	}
	defer stream.Close()

	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-stream.Chunks():
			if !ok {
				if stream.Err() == nil {
					t.Fatalf("expected context error")
				}
				return
			}
		case <-deadline:
			t.Fatalf("stream did not terminate after cancel")
		}
	}
}

func TestKokoro_EmptyTextRejected(t *testing.T) {
	k := NewKokoro("")
	if _, err := k.SynthesizeStream(context.Background(), "  ", SynthesizeOptions{}); err == nil {
		t.Fatalf("expected error for empty text")
	}
}
