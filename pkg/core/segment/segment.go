// Package segment splits request text into sentence-like units, each
// carrying its rune offsets into the original string. Units are the
// scheduling granularity for speech generation.
package segment

import "unicode"

// Unit is one sentence-or-clause-sized slice of the original text.
// Start and End are rune offsets into the original string, with
// text[Start:End] (in runes) equal to Text.
type Unit struct {
	Text  string
	Start int
	End   int
}

// Segmenter splits text into ordered units.
type Segmenter interface {
	Segment(text string) []Unit
}

const defaultMaxRunesPerUnit = 256

// BoundarySegmenter cuts after sentence boundary runes, covering both
// latin and CJK punctuation. Units longer than MaxRunesPerUnit are
// force-split so a pathological unpunctuated input still yields bounded
// work per unit.
type BoundarySegmenter struct {
	// MaxRunesPerUnit caps the rune length of a single unit.
	// Defaults to 256.
	MaxRunesPerUnit int
}

var _ Segmenter = BoundarySegmenter{}

// Segment splits text into units. Whitespace-only spans are dropped;
// surrounding whitespace is trimmed from each unit with the offsets
// adjusted to match.
func (s BoundarySegmenter) Segment(text string) []Unit {
	maxRunes := s.MaxRunesPerUnit
	if maxRunes <= 0 {
		maxRunes = defaultMaxRunesPerUnit
	}

	runes := []rune(text)
	var units []Unit
	start := 0
	for i := range runes {
		prev := '0'
		if i > 0 {
			prev = runes[i-1]
		}
		next := '0'
		if i < len(runes)-1 {
			next = runes[i+1]
		}
		if isBoundary(runes[i], prev, next) || i-start+1 >= maxRunes {
			if u, ok := trimUnit(runes, start, i+1); ok {
				units = append(units, u)
			}
			start = i + 1
		}
	}
	if u, ok := trimUnit(runes, start, len(runes)); ok {
		units = append(units, u)
	}
	return units
}

// isBoundary reports whether r ends a unit. '.', ':' and ',' between two
// digits do not split, so "9.9" and "10:15" stay intact.
func isBoundary(r, prev, next rune) bool {
	switch r {
	case '.', ':', ',', '：':
		if unicode.IsNumber(prev) && unicode.IsNumber(next) {
			return false
		}
		return true
	case '，', '；', '。', '？', '！', '…', '～',
		'?', '!', '¿', '¡', ';', '~',
		'\r', '\n', '・':
		return true
	}
	return false
}

func trimUnit(runes []rune, start, end int) (Unit, bool) {
	for start < end && unicode.IsSpace(runes[start]) {
		start++
	}
	for end > start && unicode.IsSpace(runes[end-1]) {
		end--
	}
	if end == start {
		return Unit{}, false
	}
	return Unit{Text: string(runes[start:end]), Start: start, End: end}, true
}
