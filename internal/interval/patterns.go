package interval

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// DefaultPageMarker matches titles of synthetic page-number headers such as
// "# Page 12" inserted by the extractor.
const DefaultPageMarker = `^Page\s+\d+\b`

// Patterns holds every regular expression used by the detector and the
// parser. It is compiled once and is safe to share between goroutines.
type Patterns struct {
	boundaryStart *regexp.Regexp
	boundaryEnd   *regexp.Regexp
	attr          *regexp.Regexp

	mdImage  *regexp.Regexp
	refImage *regexp.Regexp

	tableSep *regexp.Regexp

	displayMath *regexp.Regexp
	bracketMath *regexp.Regexp
	inlineMath  *regexp.Regexp

	header     *regexp.Regexp
	listItem   *regexp.Regexp
	numbered   *regexp.Regexp
	pageMarker *regexp.Regexp
}

// Compile builds a Patterns value with a custom page-marker expression.
func Compile(pageMarker string) (*Patterns, error) {
	if pageMarker == "" {
		pageMarker = DefaultPageMarker
	}
	pm, err := regexp.Compile(pageMarker)
	if err != nil {
		return nil, fmt.Errorf("compile page marker %q: %w", pageMarker, err)
	}
	return &Patterns{
		boundaryStart: regexp.MustCompile(`<!--\s*BOUNDARY_START\b(.*?)-->`),
		boundaryEnd:   regexp.MustCompile(`<!--\s*BOUNDARY_END\b(.*?)-->`),
		attr:          regexp.MustCompile(`(\w+)\s*=\s*"([^"]*)"`),

		mdImage:  regexp.MustCompile(`!\[[^\]\n]*\]\([^)\n]*\)`),
		refImage: regexp.MustCompile(`!\[[^\]\n]*\]\[[^\]\n]*\]`),

		tableSep: regexp.MustCompile(`^\s*\|?\s*:?-{3,}:?\s*(\|\s*:?-{3,}:?\s*)*\|?\s*$`),

		displayMath: regexp.MustCompile(`(?s)\$\$.+?\$\$`),
		bracketMath: regexp.MustCompile(`(?s)\\\[.+?\\\]`),
		inlineMath:  regexp.MustCompile(`(?m)(?:^|[^\\$\w])(\$[^\s$](?:[^$\n]*[^\s$])?\$)`),

		header:     regexp.MustCompile(`^(#{1,6})\s+(.+)$`),
		listItem:   regexp.MustCompile(`^\s*(?:[-*+]|\d+[.)])\s+\S`),
		numbered:   regexp.MustCompile(`^\s*(\d+)[.)]\s+`),
		pageMarker: pm,
	}, nil
}

var defaultPatterns = sync.OnceValue(func() *Patterns {
	p, err := Compile(DefaultPageMarker)
	if err != nil {
		panic(err)
	}
	return p
})

// Default returns the shared, process-wide compiled patterns.
func Default() *Patterns {
	return defaultPatterns()
}

// MatchHeader reports whether line is an ATX header and returns its level
// and title with closing hashes removed.
func (p *Patterns) MatchHeader(line string) (level int, title string, ok bool) {
	m := p.header.FindStringSubmatch(strings.TrimRight(line, " \t\r"))
	if m == nil {
		return 0, "", false
	}
	title = strings.TrimSpace(strings.TrimRight(m[2], "#"))
	if title == "" {
		return 0, "", false
	}
	return len(m[1]), title, true
}

// IsListItem reports whether line starts a bullet or numbered list item.
func (p *Patterns) IsListItem(line string) bool {
	return p.listItem.MatchString(line)
}

// ListNumber returns the number of a numbered list item.
func (p *Patterns) ListNumber(line string) (int, bool) {
	m := p.numbered.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// IsPageMarker reports whether a level-1 header title is a synthetic page
// number rather than real document structure.
func (p *Patterns) IsPageMarker(title string) bool {
	return p.pageMarker.MatchString(title)
}

// IsTableSeparator reports whether line is a GFM table delimiter row.
func (p *Patterns) IsTableSeparator(line string) bool {
	return strings.Contains(line, "-") && p.tableSep.MatchString(line)
}
