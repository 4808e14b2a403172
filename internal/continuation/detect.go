// Package continuation decides whether content runs across a page break and
// stitches the boundary chunks of adjacent pages together when it does.
package continuation

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dgallion1/pagechunk/internal/doctree"
	"github.com/dgallion1/pagechunk/internal/interval"
)

// Kind is the family of evidence behind a continuation signal.
type Kind int

const (
	Syntactic Kind = iota
	Structural
	Semantic
)

func (k Kind) String() string {
	switch k {
	case Syntactic:
		return "syntactic"
	case Structural:
		return "structural"
	case Semantic:
		return "semantic"
	default:
		return "unknown"
	}
}

// Confidence of each kind. Structural evidence is the strongest.
func (k Kind) Confidence() float64 {
	switch k {
	case Structural:
		return 0.9
	case Syntactic:
		return 0.75
	default:
		return 0.6
	}
}

// Signal says the last chunk of one page continues into the first chunk of
// the next.
type Signal struct {
	Kind       Kind
	Confidence float64
	Evidence   string
}

func newSignal(k Kind, format string, args ...any) Signal {
	return Signal{Kind: k, Confidence: k.Confidence(), Evidence: fmt.Sprintf(format, args...)}
}

var (
	conjunctions = set("and", "or", "but", "nor", "yet", "so", "for", "because", "while",
		"whereas", "although", "if", "that", "which", "who", "whose", "than", "as")
	prepositions = set("of", "in", "on", "at", "to", "with", "by", "from", "into", "onto",
		"about", "between", "through", "under", "over", "without", "within", "during",
		"including", "among", "across", "per", "via", "the", "a", "an")
	connectives = set("however", "therefore", "moreover", "furthermore", "thus",
		"additionally", "consequently", "nevertheless", "meanwhile", "hence", "also",
		"otherwise", "instead", "similarly", "likewise")
)

func set(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// Detect inspects the tail of prev and the head of next using p, or the
// default patterns when p is nil. Rules are checked syntactic, structural,
// semantic; the first that matches wins.
func Detect(p *interval.Patterns, prev, next doctree.Chunk) (Signal, bool) {
	tail := lastLine(prev.ContentOnly)
	head := firstLine(next.ContentOnly)
	if tail == "" || head == "" {
		return Signal{}, false
	}
	if p == nil {
		p = interval.Default()
	}
	if _, _, ok := p.MatchHeader(head); ok {
		return Signal{}, false
	}

	if sig, ok := syntactic(p, prev.ContentOnly, tail); ok {
		return sig, true
	}
	if sig, ok := structural(p, prev.ContentOnly, tail, head); ok {
		return sig, true
	}
	return semantic(p, prev.ContentOnly, head)
}

func syntactic(p *interval.Patterns, prevContent, tail string) (Signal, bool) {
	if !isProse(p, tail) || countFences(prevContent)%2 == 1 {
		return Signal{}, false
	}
	if w := lastWord(tail); conjunctions[w] || prepositions[w] {
		return newSignal(Syntactic, "tail ends with %q: %q", w, excerptEnd(tail)), true
	}
	if !endsSentence(tail) {
		return newSignal(Syntactic, "tail lacks terminal punctuation: %q", excerptEnd(tail)), true
	}
	return Signal{}, false
}

func structural(p *interval.Patterns, prevContent, tail, head string) (Signal, bool) {
	switch {
	case isTableRow(tail) && !strings.HasSuffix(tail, "|"):
		return newSignal(Structural, "table row cut mid-row: %q", excerptEnd(tail)), true
	case isTableRow(tail) && isTableRow(head):
		return newSignal(Structural, "table continues across page"), true
	case p.IsListItem(tail) && !endsSentence(tail):
		return newSignal(Structural, "unfinished list item: %q", excerptEnd(tail)), true
	case p.IsListItem(tail) && p.IsListItem(head):
		return newSignal(Structural, "list continues across page"), true
	case countFences(prevContent)%2 == 1:
		return newSignal(Structural, "unterminated code fence"), true
	}
	return Signal{}, false
}

func semantic(p *interval.Patterns, prevContent, head string) (Signal, bool) {
	word := firstWord(head)
	if r, _ := utf8.DecodeRuneInString(word); unicode.IsLower(r) {
		return newSignal(Semantic, "head starts lowercase: %q", excerptStart(head)), true
	}
	if connectives[strings.ToLower(word)] {
		return newSignal(Semantic, "head starts with connective %q", strings.ToLower(word)), true
	}
	if n, ok := p.ListNumber(head); ok {
		if last, ok := lastListNumber(p, prevContent); ok && n == last+1 {
			return newSignal(Semantic, "numbered item %d follows item %d", n, last), true
		}
	}
	return Signal{}, false
}

// isProse excludes lines whose ending says nothing about sentence flow.
func isProse(p *interval.Patterns, line string) bool {
	if _, _, ok := p.MatchHeader(line); ok {
		return false
	}
	switch {
	case isTableRow(line), p.IsListItem(line), isFence(line):
		return false
	case strings.HasPrefix(line, "!["), strings.HasPrefix(line, "<"), strings.HasSuffix(line, ">"):
		return false
	case strings.HasSuffix(line, "$"), strings.HasSuffix(line, `\]`):
		return false
	}
	return true
}

func endsSentence(line string) bool {
	trimmed := strings.TrimRight(line, " \t\"'”’)]}»*_")
	if trimmed == "" {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(trimmed)
	switch r {
	case '.', '!', '?', '…':
		return true
	}
	return false
}

func isTableRow(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "|")
}

func isFence(line string) bool {
	t := strings.TrimSpace(line)
	return strings.HasPrefix(t, "```") || strings.HasPrefix(t, "~~~")
}

func countFences(content string) int {
	n := 0
	for _, l := range strings.Split(content, "\n") {
		if isFence(l) {
			n++
		}
	}
	return n
}

func lastListNumber(p *interval.Patterns, content string) (int, bool) {
	lines := strings.Split(content, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if n, ok := p.ListNumber(lines[i]); ok {
			return n, true
		}
	}
	return 0, false
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimRight(s, " \t\r\n"), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}

func firstLine(s string) string {
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			return l
		}
	}
	return ""
}

func lastWord(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(strings.TrimFunc(fields[len(fields)-1], isNotLetter))
}

func firstWord(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimFunc(fields[0], isNotLetter)
}

func isNotLetter(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func excerptEnd(s string) string {
	const n = 60
	if len(s) <= n {
		return s
	}
	i := len(s) - n
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return "..." + s[i:]
}

func excerptStart(s string) string {
	const n = 60
	if len(s) <= n {
		return s
	}
	i := n
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return s[:i] + "..."
}
