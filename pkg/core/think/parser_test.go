package think

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func collect(p *Parser, fragments ...string) []Chunk {
	var out []Chunk
	for _, f := range fragments {
		out = append(out, p.Feed(f)...)
	}
	return append(out, p.Finalize()...)
}

// concatenated thinking+response content, in emit order.
func textOf(chunks []Chunk) string {
	var sb strings.Builder
	for _, c := range chunks {
		if c.Type != ChunkMetadata {
			sb.WriteString(c.Content)
		}
	}
	return sb.String()
}

func TestParser_SingleFeedSequence(t *testing.T) {
	p := &Parser{}
	got := collect(p, "<think>a</think>b")
	want := []Chunk{
		{Type: ChunkMetadata, ThinkingStarted: true},
		{Type: ChunkThinking, Content: "a"},
		{Type: ChunkMetadata, ThinkingStarted: true, ThinkingComplete: true},
		{Type: ChunkResponse, Content: "b"},
	}
	if len(got) != len(want) {
		t.Fatalf("chunks=%d, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("chunk[%d]=%+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParser_TwoFragmentSplitSweep(t *testing.T) {
	input := "<think>a</think>b"
	single := textOf(collect(&Parser{}, input))
	for cut := 0; cut <= len(input); cut++ {
		got := textOf(collect(&Parser{}, input[:cut], input[cut:]))
		if got != single {
			t.Fatalf("cut=%d: text=%q, want %q", cut, got, single)
		}
	}
}

func TestParser_ByteByByteEqualsSingleFeed(t *testing.T) {
	input := "Sure. <THINK>Let me reason\nabout this.</ThInK> The answer is 42."
	single := collect(&Parser{}, input)

	p := &Parser{}
	var fragments []string
	for i := 0; i < len(input); i++ {
		fragments = append(fragments, input[i:i+1])
	}
	split := collect(p, fragments...)

	if textOf(split) != textOf(single) {
		t.Fatalf("byte-by-byte text=%q, want %q", textOf(split), textOf(single))
	}
	want := "Sure. Let me reason\nabout this. The answer is 42."
	if textOf(single) != want {
		t.Fatalf("text=%q, want %q", textOf(single), want)
	}
}

func TestParser_NoMarkersPassthrough(t *testing.T) {
	input := "plain response with no markers at all"
	chunks := collect(&Parser{}, input)
	for _, c := range chunks {
		if c.Type != ChunkResponse {
			t.Fatalf("unexpected chunk type %q", c.Type)
		}
	}
	if textOf(chunks) != input {
		t.Fatalf("text=%q, want %q", textOf(chunks), input)
	}
}

func TestParser_OrphanEndMarker(t *testing.T) {
	chunks := collect(&Parser{}, "x</think>y")
	if len(chunks) != 3 {
		t.Fatalf("chunks=%+v, want 3", chunks)
	}
	if chunks[0].Type != ChunkResponse || chunks[0].Content != "x" {
		t.Fatalf("chunk[0]=%+v", chunks[0])
	}
	if chunks[1].Type != ChunkResponse || chunks[1].Content != DefaultSeparator {
		t.Fatalf("chunk[1]=%+v", chunks[1])
	}
	if chunks[2].Type != ChunkResponse || chunks[2].Content != "y" {
		t.Fatalf("chunk[2]=%+v", chunks[2])
	}
	for _, c := range chunks {
		if c.Type == ChunkMetadata {
			t.Fatalf("orphan path must not emit metadata: %+v", c)
		}
	}
}

func TestParser_OrphanThenRealBlock(t *testing.T) {
	// The orphan policy keeps scanning: a legitimate pair after the
	// orphan is still recognized.
	chunks := collect(&Parser{}, "a</think>b<think>c</think>d")
	var sawStart, sawComplete bool
	for _, c := range chunks {
		if c.Type == ChunkMetadata {
			if c.ThinkingComplete {
				sawComplete = true
			} else if c.ThinkingStarted {
				sawStart = true
			}
		}
	}
	if !sawStart || !sawComplete {
		t.Fatalf("expected metadata pair after orphan, got %+v", chunks)
	}
	if got, want := textOf(chunks), "a"+DefaultSeparator+"bcd"; got != want {
		t.Fatalf("text=%q, want %q", got, want)
	}
}

func TestParser_CustomSeparator(t *testing.T) {
	p := &Parser{Separator: " | "}
	chunks := collect(p, "a</think>b")
	if chunks[1].Content != " | " {
		t.Fatalf("separator=%q, want %q", chunks[1].Content, " | ")
	}
}

func TestParser_FinalizeInsideThinking(t *testing.T) {
	p := &Parser{}
	fed := p.Feed("<think>partial")
	final := p.Finalize()

	var thinking int
	for _, c := range final {
		if c.Type == ChunkThinking {
			thinking++
			if c.ThinkingComplete {
				t.Fatalf("unterminated block must not be complete: %+v", c)
			}
		}
	}
	if thinking != 1 {
		t.Fatalf("finalize thinking chunks=%d, want 1: %+v", thinking, final)
	}
	if got := textOf(append(fed, final...)); got != "partial" {
		t.Fatalf("text=%q, want %q", got, "partial")
	}
}

func TestParser_EmptyThinkBlock(t *testing.T) {
	chunks := collect(&Parser{}, "<think></think>x")
	for _, c := range chunks {
		if c.Type == ChunkThinking {
			t.Fatalf("empty block emitted thinking chunk: %+v", c)
		}
	}
	var complete bool
	for _, c := range chunks {
		if c.Type == ChunkMetadata && c.ThinkingComplete {
			complete = true
		}
	}
	if !complete {
		t.Fatalf("missing completion metadata: %+v", chunks)
	}
	if textOf(chunks) != "x" {
		t.Fatalf("text=%q, want %q", textOf(chunks), "x")
	}
}

func TestParser_SecondMarkerPairIsLiteral(t *testing.T) {
	// At most one marker pair per stream; later markers pass through.
	input := "<think>a</think>b<think>c</think>"
	chunks := collect(&Parser{}, input)
	if got, want := textOf(chunks), "ab<think>c</think>"; got != want {
		t.Fatalf("text=%q, want %q", got, want)
	}
}

func TestParser_LengthChangingRuneSurvivesMarkerSearch(t *testing.T) {
	// U+212A (KELVIN SIGN) is three bytes but lowercases to the
	// one-byte "k". Marker offsets must stay aligned with the raw
	// buffer so such runes pass through intact.
	kelvin := "\u212a"

	chunks := collect(&Parser{}, kelvin+"<think>a</think>b")
	if got, want := textOf(chunks), kelvin+"ab"; got != want {
		t.Fatalf("text=%q, want %q", got, want)
	}
	if chunks[0].Type != ChunkResponse || chunks[0].Content != kelvin {
		t.Fatalf("chunk[0]=%+v, want response %q", chunks[0], kelvin)
	}

	chunks = collect(&Parser{}, "<think>"+kelvin+"</think>b")
	var thinking string
	for _, c := range chunks {
		if c.Type == ChunkThinking {
			thinking += c.Content
		}
	}
	if thinking != kelvin {
		t.Fatalf("thinking=%q, want %q", thinking, kelvin)
	}
	if !utf8.ValidString(textOf(chunks)) {
		t.Fatalf("output is not valid UTF-8: %q", textOf(chunks))
	}
}

func TestParser_EmptyFeedIsNoop(t *testing.T) {
	p := &Parser{}
	if chunks := p.Feed(""); len(chunks) != 0 {
		t.Fatalf("empty feed emitted %+v", chunks)
	}
}

func TestParser_MultiByteAcrossRetention(t *testing.T) {
	// Multi-byte runes near the retained tail must never be split.
	input := "héllo wörld <think>思考中</think> done ✓"
	p := &Parser{}
	var chunks []Chunk
	for _, r := range input {
		for _, c := range p.Feed(string(r)) {
			if c.Type != ChunkMetadata && !strings.ContainsRune(input, []rune(c.Content)[0]) {
				t.Fatalf("chunk with mangled rune: %q", c.Content)
			}
			chunks = append(chunks, c)
		}
	}
	chunks = append(chunks, p.Finalize()...)
	if got, want := textOf(chunks), "héllo wörld 思考中 done ✓"; got != want {
		t.Fatalf("text=%q, want %q", got, want)
	}
}
