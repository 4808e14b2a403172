package parser

import (
	"strings"

	"github.com/dgallion1/pagechunk/internal/doctree"
)

type state int

const (
	stateScanning state = iota
	stateInList
)

func (s state) String() string {
	if s == stateInList {
		return "in_list"
	}
	return "scanning"
}

// machine holds the cursor state for one Parse call.
type machine struct {
	p      *Parser
	ctx    *doctree.Context
	page   int
	text   string
	blocks []doctree.ProtectedBlock
	next   int // index of the first block not yet emitted

	cursor    int
	spanStart int // first byte not yet attributed to an emitted section
	crumbs    []string

	listStart int // -1 when the list buffer is empty
	listEnd   int

	out []doctree.Section
}

// line is the slice of text the machine looks at next: the rest of the
// current line, cut short at the next protected block.
type line struct {
	text    string
	end     int // end of text (exclusive)
	advance int // where the cursor goes after consuming the line
	atStart bool
}

func (m *machine) run() {
	st := stateScanning
	for m.cursor < len(m.text) {
		st = m.step(st)
	}
	if st == stateInList {
		m.flushList()
	}
	if n := len(m.out); n > 0 {
		m.out[n-1].End = len(m.text)
	}
}

// step applies the first matching rule at the cursor and returns the next
// state. Rules in priority order: blank or comment line, protected block,
// header, list item, text.
func (m *machine) step(st state) state {
	for m.next < len(m.blocks) && m.blocks[m.next].End <= m.cursor {
		m.next++
	}
	if b, ok := m.blockAt(m.cursor); ok {
		return m.onBlock(st, b)
	}

	ln := m.currentLine()
	trimmed := strings.TrimSpace(ln.text)

	switch {
	case trimmed == "":
		m.cursor = ln.advance
		return st
	case strings.HasPrefix(trimmed, "<!--"):
		m.skipComment(ln)
		return st
	}

	if ln.atStart {
		if level, title, ok := m.p.patterns.MatchHeader(ln.text); ok {
			return m.onHeader(st, ln, level, title)
		}
		if m.p.patterns.IsListItem(ln.text) || (st == stateInList && isIndented(ln.text)) {
			return m.onListItem(ln)
		}
	}
	return m.onText(st, ln, trimmed)
}

func (m *machine) blockAt(pos int) (doctree.ProtectedBlock, bool) {
	if m.next < len(m.blocks) && m.blocks[m.next].Start == pos {
		return m.blocks[m.next], true
	}
	return doctree.ProtectedBlock{}, false
}

func (m *machine) nextBlockStart() int {
	if m.next < len(m.blocks) && m.blocks[m.next].Start > m.cursor {
		return m.blocks[m.next].Start
	}
	return len(m.text)
}

func (m *machine) currentLine() line {
	lineEnd := len(m.text)
	if nl := strings.IndexByte(m.text[m.cursor:], '\n'); nl >= 0 {
		lineEnd = m.cursor + nl
	}
	ln := line{
		end:     lineEnd,
		advance: lineEnd,
		atStart: m.cursor == 0 || m.text[m.cursor-1] == '\n',
	}
	if bs := m.nextBlockStart(); bs < lineEnd {
		ln.end = bs
		ln.advance = bs
	} else if lineEnd < len(m.text) {
		ln.advance = lineEnd + 1
	}
	ln.text = m.text[m.cursor:ln.end]
	return ln
}

// skipComment moves past an HTML comment, which may span several lines.
// It never skips into a protected block.
func (m *machine) skipComment(ln line) {
	limit := m.nextBlockStart()
	end := ln.advance
	if idx := strings.Index(m.text[m.cursor:limit], "-->"); idx >= 0 {
		end = m.cursor + idx + len("-->")
		le := end
		for le < limit && m.text[le] != '\n' {
			le++
		}
		if isBlank(m.text[end:le]) {
			end = le
			if end < limit {
				end++
			}
		}
	}
	if end <= m.cursor {
		end = ln.advance
	}
	m.cursor = end
}

func (m *machine) onBlock(st state, b doctree.ProtectedBlock) state {
	if st == stateInList {
		m.flushList()
	}
	m.emit(b.Kind.SectionKind(), b.Content, b.End)
	m.cursor = b.End
	m.next++
	return stateScanning
}

func (m *machine) onHeader(st state, ln line, level int, title string) state {
	if st == stateInList {
		m.flushList()
	}
	if level == 1 && m.p.patterns.IsPageMarker(title) {
		m.cursor = ln.advance
		return stateScanning
	}

	if len(m.crumbs) > level-1 {
		m.crumbs = m.crumbs[:level-1]
	}
	m.crumbs = append(m.crumbs, title)

	kind := doctree.SectionMinorHeader
	if level <= 2 {
		kind = doctree.SectionMajorHeader
	}
	m.emit(kind, strings.TrimSpace(ln.text), ln.end)
	m.cursor = ln.advance
	return stateScanning
}

func (m *machine) onListItem(ln line) state {
	if m.listStart < 0 {
		m.listStart = m.cursor
	}
	m.listEnd = ln.end
	m.cursor = ln.advance
	return stateInList
}

func (m *machine) onText(st state, ln line, trimmed string) state {
	if st == stateInList {
		m.flushList()
	}
	m.emit(doctree.SectionText, trimmed, ln.end)
	m.cursor = ln.advance
	return stateScanning
}

func (m *machine) flushList() {
	if m.listStart < 0 {
		return
	}
	content := strings.TrimSpace(m.text[m.listStart:m.listEnd])
	m.emit(doctree.SectionText, content, m.listEnd)
	m.listStart = -1
}

func (m *machine) emit(kind doctree.SectionKind, content string, end int) {
	m.out = append(m.out, doctree.Section{
		ID:          m.ctx.NextSectionID(kind),
		Kind:        kind,
		Content:     content,
		Breadcrumbs: doctree.CopyBreadcrumbs(m.crumbs),
		Page:        m.page,
		Start:       m.spanStart,
		End:         end,
	})
	m.spanStart = end
}

func isIndented(s string) bool {
	return strings.HasPrefix(s, " ") || strings.HasPrefix(s, "\t")
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
