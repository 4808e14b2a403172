package interval

import (
	"strings"

	"github.com/dgallion1/pagechunk/internal/doctree"
)

// Marker is a parsed BOUNDARY_START comment.
type Marker struct {
	Attrs map[string]string
	Start int // Offset of the comment
	End   int // Offset just past the comment
}

// markerKind maps the extractor's type attribute to a block kind. Unknown
// types are treated as tables, the most general atomic region.
func markerKind(typ string) doctree.BlockKind {
	switch strings.ToLower(strings.TrimSpace(typ)) {
	case "image", "figure", "picture", "chart", "diagram":
		return doctree.BlockImage
	case "code", "listing", "code_block":
		return doctree.BlockCode
	case "formula", "equation", "math":
		return doctree.BlockFormula
	default:
		return doctree.BlockTable
	}
}

func (p *Patterns) parseAttrs(s string) map[string]string {
	attrs := make(map[string]string)
	for _, m := range p.attr.FindAllStringSubmatch(s, -1) {
		attrs[strings.ToLower(m[1])] = m[2]
	}
	return attrs
}

// markerCandidates returns the inner content of each BOUNDARY_START/END
// pair. The marker comments themselves are left outside the interval.
// Markers nest: an END closes the innermost open START with the same id,
// falling back to the innermost START without an id; an END without an id
// closes the innermost open START. A START with no END extends to the end
// of the page and is reported in unterminated. regions holds the full span
// of every pair, comments included.
func (p *Patterns) markerCandidates(text string) (cands, regions []doctree.ProtectedBlock, unterminated []Marker) {
	starts := p.boundaryStart.FindAllStringSubmatchIndex(text, -1)
	if len(starts) == 0 {
		return nil, nil, nil
	}
	ends := p.boundaryEnd.FindAllStringSubmatchIndex(text, -1)

	type pair struct {
		m       Marker
		closeAt int // Offset of the END comment, -1 when unterminated
		endAt   int // Offset just past the END comment
	}
	pairs := make([]pair, 0, len(starts))
	var open []int // indexes into pairs

	si, ei := 0, 0
	for si < len(starts) || ei < len(ends) {
		if ei >= len(ends) || (si < len(starts) && starts[si][0] < ends[ei][0]) {
			s := starts[si]
			si++
			pairs = append(pairs, pair{
				m:       Marker{Attrs: p.parseAttrs(text[s[2]:s[3]]), Start: s[0], End: s[1]},
				closeAt: -1,
			})
			open = append(open, len(pairs)-1)
			continue
		}
		e := ends[ei]
		ei++
		endID := p.parseAttrs(text[e[2]:e[3]])["id"]
		at := matchOpen(open, endID, func(i int) string { return pairs[i].m.Attrs["id"] })
		if at < 0 {
			continue
		}
		idx := open[at]
		pairs[idx].closeAt, pairs[idx].endAt = e[0], e[1]
		open = append(open[:at], open[at+1:]...)
	}

	for _, pr := range pairs {
		innerStart, innerEnd := pr.m.End, pr.closeAt
		regionEnd := pr.endAt
		if pr.closeAt < 0 {
			unterminated = append(unterminated, pr.m)
			innerEnd, regionEnd = len(text), len(text)
		}
		regions = append(regions, doctree.ProtectedBlock{Start: pr.m.Start, End: regionEnd})

		// Drop the rest of the START line and the start of the END line.
		if nl := strings.IndexByte(text[innerStart:innerEnd], '\n'); nl >= 0 && isBlank(text[innerStart:innerStart+nl]) {
			innerStart += nl + 1
		}
		innerStart, innerEnd = trimBlankEdges(text, innerStart, innerEnd)
		if innerStart >= innerEnd || isBlank(text[innerStart:innerEnd]) {
			continue
		}
		cands = append(cands, doctree.ProtectedBlock{
			Start: innerStart,
			End:   innerEnd,
			Kind:  markerKind(pr.m.Attrs["type"]),
		})
	}
	return cands, regions, unterminated
}

// matchOpen picks the open START an END with endID closes and returns its
// position in open, or -1 for a stray END.
func matchOpen(open []int, endID string, idOf func(int) string) int {
	if len(open) == 0 {
		return -1
	}
	if endID != "" {
		for k := len(open) - 1; k >= 0; k-- {
			if idOf(open[k]) == endID {
				return k
			}
		}
		for k := len(open) - 1; k >= 0; k-- {
			if idOf(open[k]) == "" {
				return k
			}
		}
		return -1
	}
	return len(open) - 1
}
