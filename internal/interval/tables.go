package interval

import (
	"strings"

	"github.com/dgallion1/pagechunk/internal/doctree"
)

// pipeTableCandidates finds GFM pipe tables: runs of at least two lines
// starting with '|' that include a delimiter row.
func (p *Patterns) pipeTableCandidates(text string) []doctree.ProtectedBlock {
	if !strings.Contains(text, "|") {
		return nil
	}

	var cands []doctree.ProtectedBlock
	runStart, runEnd, rows := -1, -1, 0
	hasSep := false

	closeRun := func() {
		if runStart >= 0 && rows >= 2 && hasSep {
			cands = append(cands, doctree.ProtectedBlock{Start: runStart, End: runEnd, Kind: doctree.BlockTable})
		}
		runStart, runEnd, rows, hasSep = -1, -1, 0, false
	}

	pos := 0
	for pos <= len(text) {
		nl := strings.IndexByte(text[pos:], '\n')
		lineEnd := len(text)
		if nl >= 0 {
			lineEnd = pos + nl
		}
		line := text[pos:lineEnd]

		if strings.HasPrefix(strings.TrimSpace(line), "|") {
			if runStart < 0 {
				runStart = pos
			}
			runEnd = lineEnd
			rows++
			if p.IsTableSeparator(line) {
				hasSep = true
			}
		} else {
			closeRun()
		}

		if nl < 0 {
			break
		}
		pos = lineEnd + 1
	}
	closeRun()
	return cands
}
