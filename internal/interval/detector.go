package interval

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/dgallion1/pagechunk/internal/doctree"
)

// Detection is the canonical set of protected blocks for one page.
type Detection struct {
	Blocks      []doctree.ProtectedBlock
	FromMarkers bool     // The page carried BOUNDARY markers
	Warnings    []string // Human-readable, included in document statistics
}

// Detector produces protected-block candidates for a page and merges them.
// A Detector holds no per-page state and may be shared.
type Detector struct {
	patterns *Patterns
	log      zerolog.Logger
}

// NewDetector returns a detector using p, or the default patterns if p is nil.
func NewDetector(p *Patterns, log zerolog.Logger) *Detector {
	if p == nil {
		p = Default()
	}
	return &Detector{patterns: p, log: log}
}

// Detect finds the protected blocks of a page. Extractor BOUNDARY markers
// take precedence where they overlap a pattern match; the text outside
// the markers is still pattern matched.
func (d *Detector) Detect(page doctree.Page) Detection {
	text := page.Text
	log := d.log.With().Int("page", page.Number).Logger()

	var det Detection
	markers, regions, unterminated := d.patterns.markerCandidates(text)
	det.FromMarkers = len(regions) > 0
	for _, m := range unterminated {
		log.Warn().
			Str("error_kind", "UnterminatedProtectedBlock").
			Str("id", m.Attrs["id"]).
			Str("type", m.Attrs["type"]).
			Int("offset", m.Start).
			Msg("boundary start without end, extending to end of page")
		det.Warnings = append(det.Warnings,
			fmt.Sprintf("page %d: unterminated protected block %q at offset %d", page.Number, m.Attrs["id"], m.Start))
	}

	cands := markers
	for _, c := range d.patternCandidates(text) {
		c.Start, c.End = snapToLines(text, c.Start, c.End)
		if overlapsAny(c, regions) {
			continue
		}
		cands = append(cands, c)
	}
	det.Blocks = Merge(text, cands, log)
	return det
}

func overlapsAny(c doctree.ProtectedBlock, regions []doctree.ProtectedBlock) bool {
	for _, r := range regions {
		if c.Start < r.End && r.Start < c.End {
			return true
		}
	}
	return false
}

func (d *Detector) patternCandidates(text string) []doctree.ProtectedBlock {
	p := d.patterns
	var cands []doctree.ProtectedBlock

	add := func(locs [][]int, kind doctree.BlockKind) {
		for _, loc := range locs {
			cands = append(cands, doctree.ProtectedBlock{Start: loc[0], End: loc[1], Kind: kind})
		}
	}

	add(p.mdImage.FindAllStringIndex(text, -1), doctree.BlockImage)
	add(p.refImage.FindAllStringIndex(text, -1), doctree.BlockImage)
	cands = append(cands, htmlCandidates(text)...)
	cands = append(cands, p.pipeTableCandidates(text)...)
	cands = append(cands, fencedCodeCandidates(text)...)
	cands = append(cands, p.mathCandidates(text)...)
	return cands
}

func (p *Patterns) mathCandidates(text string) []doctree.ProtectedBlock {
	if !strings.ContainsAny(text, "$\\") {
		return nil
	}
	var cands []doctree.ProtectedBlock
	for _, loc := range p.displayMath.FindAllStringIndex(text, -1) {
		cands = append(cands, doctree.ProtectedBlock{Start: loc[0], End: loc[1], Kind: doctree.BlockFormula})
	}
	for _, loc := range p.bracketMath.FindAllStringIndex(text, -1) {
		cands = append(cands, doctree.ProtectedBlock{Start: loc[0], End: loc[1], Kind: doctree.BlockFormula})
	}
	for _, loc := range p.inlineMath.FindAllStringSubmatchIndex(text, -1) {
		start, end := loc[2], loc[3]
		if looksLikeCurrency(text[start+1 : end-1]) {
			continue
		}
		cands = append(cands, doctree.ProtectedBlock{Start: start, End: end, Kind: doctree.BlockFormula})
	}
	return cands
}

// looksLikeCurrency rejects "$5 to $10"-style amounts caught between two
// dollar signs.
func looksLikeCurrency(inner string) bool {
	if inner == "" {
		return true
	}
	r := rune(inner[0])
	if !unicode.IsDigit(r) {
		return false
	}
	return strings.ContainsAny(inner, " \t") || strings.Trim(inner, "0123456789.,") == ""
}
