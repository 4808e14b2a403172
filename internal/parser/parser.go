// Package parser turns one page of markdown into an ordered stream of typed,
// breadcrumb-tagged sections. Protected blocks found by the interval package
// are emitted whole and never split.
package parser

import (
	"github.com/rs/zerolog"

	"github.com/dgallion1/pagechunk/internal/doctree"
	"github.com/dgallion1/pagechunk/internal/interval"
)

// Options tunes parser behaviour.
type Options struct {
	// CarryBreadcrumbs seeds each page with the breadcrumb path the previous
	// page ended on. Off by default: every page starts at the root.
	CarryBreadcrumbs bool
}

// Parser is stateless between calls; per-document state lives in the
// doctree.Context passed to Parse.
type Parser struct {
	patterns *interval.Patterns
	opts     Options
	log      zerolog.Logger
}

// New creates a parser. A nil patterns value uses interval.Default().
func New(patterns *interval.Patterns, opts Options, log zerolog.Logger) *Parser {
	if patterns == nil {
		patterns = interval.Default()
	}
	return &Parser{patterns: patterns, opts: opts, log: log}
}

// Parse scans page.Text once. blocks must be the merged, disjoint output of
// interval.Merge for the same text. The returned sections are in document
// order and their spans tile the page text exactly.
func (p *Parser) Parse(ctx *doctree.Context, page doctree.Page, blocks []doctree.ProtectedBlock) []doctree.Section {
	m := &machine{
		p:         p,
		ctx:       ctx,
		page:      page.Number,
		text:      page.Text,
		blocks:    blocks,
		listStart: -1,
	}
	if p.opts.CarryBreadcrumbs {
		m.crumbs = doctree.CopyBreadcrumbs(ctx.Trail)
	}

	m.run()

	ctx.Trail = doctree.CopyBreadcrumbs(m.crumbs)
	p.log.Debug().
		Int("page", page.Number).
		Int("sections", len(m.out)).
		Int("protected_blocks", len(blocks)).
		Msg("page parsed")
	return m.out
}
