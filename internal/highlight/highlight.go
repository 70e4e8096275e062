// Package highlight renders display-time views of raw book text: whole-word
// occurrence scanning, <mark> tag insertion, and page splitting.
//
// All offsets here are byte offsets into the original text (character-space).
// They are computed fresh from the raw text on every request and are unrelated
// to the token-space positions stored in the inverted index.
package highlight

import (
	"fmt"
	"strings"
)

const (
	openTag  = "<mark>"
	closeTag = "</mark>"

	// tagOverhead is the bytes added per highlighted occurrence.
	tagOverhead = len(openTag) + len(closeTag)
)

// Positions scans text case-insensitively for word and returns the ascending
// byte offsets of whole-word matches: a match counts only when the bytes
// immediately before and after are not alphanumeric.
func Positions(text, word string) []int {
	word = strings.ToLower(word)
	if word == "" {
		return nil
	}
	lower := strings.ToLower(text)

	var positions []int
	start := 0
	for {
		i := strings.Index(lower[start:], word)
		if i < 0 {
			break
		}
		pos := start + i
		if !boundedBefore(lower, pos) || !boundedAfter(lower, pos+len(word)) {
			start = pos + 1
			continue
		}
		positions = append(positions, pos)
		start = pos + 1
	}
	return positions
}

func boundedBefore(text string, pos int) bool {
	return pos == 0 || !isWordByte(text[pos-1])
}

func boundedAfter(text string, end int) bool {
	return end >= len(text) || !isWordByte(text[end])
}

// isWordByte treats ASCII letters and digits as word bytes, plus every
// non-ASCII byte so multi-byte runes never produce a false word boundary.
func isWordByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z':
		return true
	case b >= 'A' && b <= 'Z':
		return true
	case b >= '0' && b <= '9':
		return true
	case b >= 0x80:
		return true
	}
	return false
}

// Mark wraps every occurrence in <mark> tags. Offsets are processed in
// descending order so each insertion leaves the remaining, smaller offsets
// valid. positions must be ascending offsets of non-overlapping matches of
// length wordLen, as produced by Positions.
func Mark(text string, positions []int, wordLen int) string {
	if len(positions) == 0 {
		return text
	}
	var sb strings.Builder
	sb.Grow(len(text) + len(positions)*tagOverhead)

	// Building front-to-back writes the same output the descending insertion
	// produces, without quadratic copying.
	prev := 0
	for _, pos := range positions {
		sb.WriteString(text[prev:pos])
		sb.WriteString(openTag)
		sb.WriteString(text[pos : pos+wordLen])
		sb.WriteString(closeTag)
		prev = pos + wordLen
	}
	sb.WriteString(text[prev:])
	return sb.String()
}

// Page is one rendered page of a highlighted text view.
type Page struct {
	Number    int
	Text      string
	Positions []int // hit offsets relative to the page start, original text
}

// Paginate splits marked text into pages of roughly pageSize bytes of the
// original text. Boundaries are computed against the original text and
// extended to the next whitespace so no word is split; because boundaries can
// never land inside a highlighted occurrence, no <mark> tag is split either.
// Each page carries a "--- PAGE n ---" header and the hit offsets falling
// inside it, relative to the page start.
func Paginate(marked, original string, positions []int, wordLen, pageSize int) []Page {
	if pageSize <= 0 {
		pageSize = 1000
	}

	var pages []Page
	start := 0
	for start < len(original) {
		end := pageEnd(original, positions, wordLen, start, pageSize)
		chunk := marked[markedOffset(positions, wordLen, start):markedOffset(positions, wordLen, end)]

		var pagePositions []int
		for _, pos := range positions {
			if pos >= start && pos < end {
				pagePositions = append(pagePositions, pos-start)
			}
		}

		pages = append(pages, Page{
			Number:    len(pages) + 1,
			Text:      fmt.Sprintf("--- PAGE %d ---\n%s", len(pages)+1, strings.TrimSpace(chunk)),
			Positions: pagePositions,
		})
		start = end
	}
	return pages
}

// pageEnd finds the boundary for a page starting at start: pageSize bytes,
// extended to the next space, then extended past any occurrence the boundary
// would otherwise cut through.
func pageEnd(original string, positions []int, wordLen, start, pageSize int) int {
	end := min(start+pageSize, len(original))
	for end < len(original) && original[end] != ' ' {
		end++
	}
	for _, pos := range positions {
		if pos < end && pos+wordLen > end {
			end = pos + wordLen
			for end < len(original) && original[end] != ' ' {
				end++
			}
		}
	}
	return end
}

// markedOffset translates an original-text offset that does not fall inside
// an occurrence into the corresponding offset in the marked text: every
// occurrence before it contributed one open and one close tag.
func markedOffset(positions []int, wordLen, offset int) int {
	n := 0
	for _, pos := range positions {
		if pos+wordLen <= offset {
			n++
		}
	}
	return offset + n*tagOverhead
}
