package chunker

import (
	"strings"
	"unicode/utf8"
)

// splitOversized breaks text longer than maxSize into pieces of at most
// target bytes, except the last which is at most maxSize. Cut points are
// searched in the window [target/2, target] preferring, in order, a
// paragraph break, a sentence end, a clause break, a word boundary, and
// finally a hard cut on a rune boundary.
func splitOversized(text string, target, maxSize int) []string {
	var pieces []string
	rest := strings.TrimSpace(text)
	for len(rest) > maxSize {
		cut := findCut(rest, target)
		piece := strings.TrimSpace(rest[:cut])
		if piece != "" {
			pieces = append(pieces, piece)
		}
		rest = strings.TrimSpace(rest[cut:])
	}
	if rest != "" {
		pieces = append(pieces, rest)
	}
	return pieces
}

var (
	sentenceEnds = []string{". ", "! ", "? ", ".\n", "!\n", "?\n", ".\" ", ".) "}
	clauseBreaks = []string{"; ", ": ", ", ", " - ", "; \n", ",\n"}
)

// findCut returns the byte offset to cut s at. The result is always in
// (0, len(s)].
func findCut(s string, target int) int {
	if target > len(s) {
		target = len(s)
	}
	lo := target / 2
	window := s[:target]

	if i := strings.LastIndex(window, "\n\n"); i >= lo && i > 0 {
		return i + 2
	}
	if i := lastIndexAny(window, sentenceEnds); i >= lo && i > 0 {
		return i + 1
	}
	if i := lastIndexAny(window, clauseBreaks); i >= lo && i > 0 {
		return i + 1
	}
	if i := strings.LastIndexAny(window, " \t\n"); i >= lo && i > 0 {
		return i
	}

	cut := target
	for cut > 0 && cut < len(s) && !utf8.RuneStart(s[cut]) {
		cut--
	}
	if cut == 0 {
		// A single rune wider than target.
		_, size := utf8.DecodeRuneInString(s)
		cut = size
	}
	return cut
}

// lastIndexAny returns the largest index at which any of seps occurs.
func lastIndexAny(s string, seps []string) int {
	best := -1
	for _, sep := range seps {
		if i := strings.LastIndex(s, sep); i > best {
			best = i
		}
	}
	return best
}
