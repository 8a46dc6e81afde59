package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type fakeWS struct {
	mu       sync.Mutex
	messages [][]byte
	controls []int
	closed   bool
}

func (f *fakeWS) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeWS) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	f.messages = append(f.messages, buf)
	return nil
}

func (f *fakeWS) WriteControl(messageType int, data []byte, deadline time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.controls = append(f.controls, messageType)
	return nil
}

func (f *fakeWS) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeWS) snapshot() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.messages))
	copy(out, f.messages)
	return out
}

func TestOutboundWriter_DropsOnlyCanceledGenerationAudio(t *testing.T) {
	ws := &fakeWS{}
	frames := make(chan outboundFrame, 8)
	canceled := map[int64]bool{1: true}

	w := outboundWriter{
		ws:         ws,
		ctx:        context.Background(),
		frames:     frames,
		isCanceled: func(gen int64) bool { return canceled[gen] },
	}

	frames <- outboundFrame{dropOnCancel: true, gen: 1, payload: []byte(`{"audio":1}`)}
	// Sentence frames of a canceled generation were already announced
	// to the client; they must still be written.
	frames <- outboundFrame{gen: 1, payload: []byte(`{"sentence":1}`)}
	frames <- outboundFrame{dropOnCancel: true, gen: 2, payload: []byte(`{"audio":2}`)}
	frames <- outboundFrame{payload: []byte(`{"control":true}`)}
	close(frames)

	if err := w.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := ws.snapshot()
	if len(got) != 3 {
		t.Fatalf("wrote %d frames, want 3: %q", len(got), got)
	}
	if string(got[0]) != `{"sentence":1}` || string(got[1]) != `{"audio":2}` || string(got[2]) != `{"control":true}` {
		t.Fatalf("frames=%q", got)
	}
}

func TestOutboundWriter_ClosesSocketOnContextCancel(t *testing.T) {
	ws := &fakeWS{}
	frames := make(chan outboundFrame)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := outboundWriter{ws: ws, ctx: ctx, frames: frames}
	if err := w.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	if !ws.closed {
		t.Fatalf("socket was not closed")
	}
	foundClose := false
	for _, mt := range ws.controls {
		if mt == websocket.CloseMessage {
			foundClose = true
		}
	}
	if !foundClose {
		t.Fatalf("no close control frame sent")
	}
}

func TestOutboundWriter_SendsPings(t *testing.T) {
	ws := &fakeWS{}
	frames := make(chan outboundFrame)
	ctx, cancel := context.WithCancel(context.Background())

	w := outboundWriter{
		ws:     ws,
		ctx:    ctx,
		cfg:    Config{PingInterval: 10 * time.Millisecond},
		frames: frames,
	}

	done := make(chan error, 1)
	go func() { done <- w.Run() }()

	deadline := time.After(2 * time.Second)
	for {
		ws.mu.Lock()
		pinged := false
		for _, mt := range ws.controls {
			if mt == websocket.PingMessage {
				pinged = true
			}
		}
		ws.mu.Unlock()
		if pinged {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("no ping sent")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}
