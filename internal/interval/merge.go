// Package interval finds the atomic regions of a page (tables, images, code,
// formulas) and canonicalizes overlapping detections into disjoint ranges.
package interval

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/dgallion1/pagechunk/internal/doctree"
)

// Merge canonicalizes candidate intervals over text into disjoint blocks
// sorted by Start. Overlapping candidates are combined and keep the kind
// with the highest priority; touching candidates (next.Start == cur.End)
// stay separate. Malformed candidates are dropped with a warning.
func Merge(text string, candidates []doctree.ProtectedBlock, log zerolog.Logger) []doctree.ProtectedBlock {
	valid := make([]doctree.ProtectedBlock, 0, len(candidates))
	for _, c := range candidates {
		if c.Start >= c.End || c.Start < 0 || c.End > len(text) {
			log.Warn().
				Str("error_kind", "MalformedInterval").
				Int("start", c.Start).
				Int("end", c.End).
				Str("kind", c.Kind.String()).
				Msg("dropping malformed protected interval")
			continue
		}
		valid = append(valid, c)
	}
	if len(valid) == 0 {
		return []doctree.ProtectedBlock{}
	}

	sort.SliceStable(valid, func(i, j int) bool {
		if valid[i].Start != valid[j].Start {
			return valid[i].Start < valid[j].Start
		}
		return valid[i].End > valid[j].End
	})

	merged := make([]doctree.ProtectedBlock, 0, len(valid))
	cur := valid[0]
	for _, next := range valid[1:] {
		if next.Start < cur.End {
			if next.End > cur.End {
				cur.End = next.End
			}
			if next.Kind.Priority() > cur.Kind.Priority() {
				cur.Kind = next.Kind
			}
			continue
		}
		merged = append(merged, cur)
		cur = next
	}
	merged = append(merged, cur)

	for i := range merged {
		merged[i].Content = text[merged[i].Start:merged[i].End]
	}
	return merged
}

// snapToLines widens [start, end) so it begins at a line start and ends at
// the end of its last line (excluding the newline).
func snapToLines(text string, start, end int) (int, int) {
	if start < 0 {
		start = 0
	}
	if end > len(text) {
		end = len(text)
	}
	for start > 0 && text[start-1] != '\n' {
		start--
	}
	for end > start && text[end-1] == '\n' {
		end--
	}
	for end < len(text) && text[end] != '\n' {
		end++
	}
	return start, end
}

// trimBlankEdges narrows [start, end) to exclude leading and trailing
// whitespace-only lines.
func trimBlankEdges(text string, start, end int) (int, int) {
	for start < end {
		nl := indexByteFrom(text, '\n', start, end)
		if nl < 0 || !isBlank(text[start:nl]) {
			break
		}
		start = nl + 1
	}
	for end > start {
		for end > start && (text[end-1] == '\n' || text[end-1] == '\r') {
			end--
		}
		if end == start {
			break
		}
		ls := lastLineStart(text, start, end)
		if !isBlank(text[ls:end]) {
			break
		}
		end = ls
	}
	return start, end
}

func indexByteFrom(s string, b byte, from, to int) int {
	for i := from; i < to; i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

func lastLineStart(s string, lo, end int) int {
	for i := end - 1; i >= lo; i-- {
		if s[i] == '\n' {
			return i + 1
		}
	}
	return lo
}

func isBlank(s string) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\r', '\n':
		default:
			return false
		}
	}
	return true
}
