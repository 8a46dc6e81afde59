// Package think separates the reasoning sub-stream from the response
// sub-stream inside a single incrementally delivered text stream. The
// reasoning block is delimited by <think> and </think> markers, which
// may be split arbitrarily across input fragments.
package think

import (
	"unicode/utf8"
)

const (
	startMarker = "<think>"
	endMarker   = "</think>"

	// maxPendingTail is the longest suffix of buffered input that could
	// still turn out to be the prefix of a marker once more input
	// arrives. Everything before it is safe to emit.
	maxPendingTail = len(endMarker) - 1
)

// DefaultSeparator is emitted as a response chunk in place of an orphaned
// end marker, so the response keeps a visible break where the reasoning
// block would have ended. Producers that omit the start marker but still
// emit </think> are common enough that we degrade instead of failing.
const DefaultSeparator = "\n---\n"

// ChunkType classifies parser output.
type ChunkType string

const (
	ChunkThinking ChunkType = "thinking"
	ChunkResponse ChunkType = "response"
	ChunkMetadata ChunkType = "metadata"
)

// Chunk is one typed piece of parser output. Metadata chunks carry no
// content; they bracket the reasoning block so downstream listeners can
// toggle on ThinkingStarted / ThinkingComplete.
type Chunk struct {
	Type             ChunkType
	Content          string
	ThinkingStarted  bool
	ThinkingComplete bool
}

type parserState int

const (
	stateBeforeThink parserState = iota
	stateInsideThink
	stateAfterThink
)

// Parser is a pure state machine: no I/O, no goroutines. Feed it text
// fragments of arbitrary size and boundary alignment; it emits as much
// structurally safe output as the buffered input supports and retains
// only the suffix that might still complete a marker.
//
// The concatenation of all thinking and response content, in order,
// equals the input with the marker tokens removed (plus the separator
// in the orphaned-end-marker case). Feed and Finalize never fail.
//
// A Parser must not be shared between goroutines.
type Parser struct {
	// Separator overrides DefaultSeparator for the orphaned end marker
	// case. Leave empty to use the default.
	Separator string

	state   parserState
	pending string
}

// Feed appends fragment to the internal buffer and returns the chunks
// that are safe to emit. Feeding an empty fragment is a no-op beyond
// the emit pass.
func (p *Parser) Feed(fragment string) []Chunk {
	p.pending += fragment
	return p.drain(false)
}

// Finalize flushes the remaining buffer after the input stream ends.
// The residual is typed thinking if the stream ended inside an unclosed
// reasoning block, response otherwise. Feed must not be called after
// Finalize.
func (p *Parser) Finalize() []Chunk {
	out := p.drain(true)
	if p.pending != "" {
		typ := ChunkResponse
		if p.state == stateInsideThink {
			typ = ChunkThinking
		}
		out = append(out, Chunk{Type: typ, Content: p.pending})
		p.pending = ""
	}
	return out
}

func (p *Parser) separator() string {
	if p.Separator != "" {
		return p.Separator
	}
	return DefaultSeparator
}

// drain greedily emits chunks from the pending buffer. When final is
// false it holds back the minimal suffix that could still be a marker
// prefix; when final is true the leftover stays in pending for the
// caller to flush.
func (p *Parser) drain(final bool) []Chunk {
	var out []Chunk
	for {
		switch p.state {
		case stateBeforeThink:
			start := indexFold(p.pending, startMarker)
			end := indexFold(p.pending, endMarker)

			// An end marker with no preceding start marker is an
			// orphan: emit what precedes it plus a separator and keep
			// scanning, since a legitimate start marker may still
			// follow.
			if end >= 0 && (start < 0 || end < start) {
				out = appendText(out, ChunkResponse, p.pending[:end])
				out = append(out, Chunk{Type: ChunkResponse, Content: p.separator()})
				p.pending = p.pending[end+len(endMarker):]
				continue
			}
			if start >= 0 {
				out = appendText(out, ChunkResponse, p.pending[:start])
				out = append(out, Chunk{Type: ChunkMetadata, ThinkingStarted: true})
				p.pending = p.pending[start+len(startMarker):]
				p.state = stateInsideThink
				continue
			}
			if !final {
				out = p.emitSafePrefix(out, ChunkResponse)
			}
			return out

		case stateInsideThink:
			end := indexFold(p.pending, endMarker)
			if end >= 0 {
				out = appendText(out, ChunkThinking, p.pending[:end])
				out = append(out, Chunk{Type: ChunkMetadata, ThinkingStarted: true, ThinkingComplete: true})
				p.pending = p.pending[end+len(endMarker):]
				p.state = stateAfterThink
				continue
			}
			if !final {
				out = p.emitSafePrefix(out, ChunkThinking)
			}
			return out

		default: // stateAfterThink: at most one marker pair per stream
			out = appendText(out, ChunkResponse, p.pending)
			p.pending = ""
			return out
		}
	}
}

func (p *Parser) emitSafePrefix(out []Chunk, typ ChunkType) []Chunk {
	safe := len(p.pending) - maxPendingTail
	// Never cut a multi-byte rune in half; the markers are ASCII so
	// backing up cannot hide a marker prefix.
	for safe > 0 && !utf8.RuneStart(p.pending[safe]) {
		safe--
	}
	if safe <= 0 {
		return out
	}
	out = appendText(out, typ, p.pending[:safe])
	p.pending = p.pending[safe:]
	return out
}

// indexFold finds the first occurrence of marker in s, matching ASCII
// letters case-insensitively. The markers are pure ASCII, so this keeps
// byte offsets aligned with s; lowering the whole buffer would not,
// since Unicode case mapping can change byte lengths (U+212A KELVIN
// SIGN lowercases to the one-byte "k").
func indexFold(s, marker string) int {
	for i := 0; i+len(marker) <= len(s); i++ {
		if matchFoldASCII(s[i:], marker) {
			return i
		}
	}
	return -1
}

// matchFoldASCII reports whether s starts with marker, ignoring ASCII
// case. marker must be lowercase ASCII.
func matchFoldASCII(s, marker string) bool {
	for j := 0; j < len(marker); j++ {
		c := s[j]
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		if c != marker[j] {
			return false
		}
	}
	return true
}

func appendText(out []Chunk, typ ChunkType, s string) []Chunk {
	if s == "" {
		return out
	}
	return append(out, Chunk{Type: typ, Content: s})
}
