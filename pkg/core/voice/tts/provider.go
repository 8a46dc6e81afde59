// Package tts provides streaming text-to-speech chunk producers.
package tts

import "context"

// Provider is the interface for text-to-speech engines. One
// SynthesizeStream call covers one unit of text; the returned stream
// yields opaque audio buffers and may fail mid-sequence.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Synthesize converts text to audio in one buffer.
	Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error)

	// SynthesizeStream converts text to streaming audio.
	SynthesizeStream(ctx context.Context, text string, opts SynthesizeOptions) (*SynthesisStream, error)
}

// SynthesizeOptions configures synthesis.
type SynthesizeOptions struct {
	Voice      string  // Voice identifier
	Speed      float64 // Speed multiplier (engine-defined range, 1.0 = normal)
	Format     string  // Output format: "wav", "mp3", or "pcm"
	SampleRate int     // Sample rate, 0 = engine default
}

// Synthesis is the result of non-streaming synthesis.
type Synthesis struct {
	Audio  []byte
	Format string
}

// SynthesisStream provides streaming audio output. The producing side
// uses Send/SetError/FinishSending; consumers range over Chunks and
// check Err once the channel is closed.
type SynthesisStream struct {
	chunks chan []byte
	err    error
	done   chan struct{}
}

// NewSynthesisStream creates a new synthesis stream.
func NewSynthesisStream() *SynthesisStream {
	return &SynthesisStream{
		chunks: make(chan []byte, 64),
		done:   make(chan struct{}),
	}
}

// Chunks returns the channel of audio chunks. It is closed when the
// producer is done, successfully or not.
func (s *SynthesisStream) Chunks() <-chan []byte {
	return s.chunks
}

// Err returns the terminal error, if any. Only valid after Chunks is
// closed.
func (s *SynthesisStream) Err() error {
	return s.err
}

// Close releases the consumer side; the producer stops at its next Send.
func (s *SynthesisStream) Close() error {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	return nil
}

// SetError records the terminal error. Producer side only, before
// FinishSending.
func (s *SynthesisStream) SetError(err error) {
	s.err = err
}

// Send delivers a chunk. Returns false if the stream was closed.
func (s *SynthesisStream) Send(chunk []byte) bool {
	select {
	case s.chunks <- chunk:
		return true
	case <-s.done:
		return false
	}
}

// FinishSending closes the chunks channel to signal completion.
func (s *SynthesisStream) FinishSending() {
	close(s.chunks)
}
