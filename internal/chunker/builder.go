// Package chunker accumulates a page's section stream into size-bounded
// chunks. Sections are appended whole, so protected blocks are never split;
// a chunk may overshoot the target size as a result.
package chunker

import (
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dgallion1/pagechunk/internal/doctree"
)

// Flush reasons, reported in Stats.
const (
	FlushBreadcrumb = "breadcrumb_change"
	FlushSize       = "size"
	FlushSplit      = "split"
	FlushEndOfPage  = "end_of_page"
)

// Stats counts what a Builder did on one page.
type Stats struct {
	Flushes        map[string]int
	SplitSections  int
	OversizedAtoms int // Atomic sections larger than MaxSize, emitted whole
}

// Builder buffers one page of sections. It is not safe for concurrent use.
type Builder struct {
	cfg    Config
	ctx    *doctree.Context
	source string
	page   int
	log    zerolog.Logger

	buf       []doctree.Section
	bufLen    int
	bufCrumbs []string

	out   []doctree.Chunk
	stats Stats
}

// NewBuilder creates a builder for one page of the document tracked by ctx.
// cfg sizes left at zero take their defaults.
func NewBuilder(cfg Config, ctx *doctree.Context, source string, page int, log zerolog.Logger) *Builder {
	return &Builder{
		cfg:    cfg.WithDefaults(),
		ctx:    ctx,
		source: source,
		page:   page,
		log:    log,
		stats:  Stats{Flushes: make(map[string]int)},
	}
}

// Add feeds the next section. Trigger A (breadcrumb change with at least
// MinSize buffered) is checked before the section is appended, Trigger B
// (TargetSize reached) after. At most one of them fires per section.
func (b *Builder) Add(sec doctree.Section) {
	if sec.Content == "" {
		return
	}

	flushed := false
	if len(b.buf) > 0 && b.bufLen >= b.cfg.MinSize && !slices.Equal(sec.Breadcrumbs, b.bufCrumbs) {
		b.flush(FlushBreadcrumb)
		flushed = true
	}

	if len(b.buf) == 0 && len(sec.Content) > b.cfg.MaxSize {
		if sec.Kind == doctree.SectionText && b.cfg.SplitOversized {
			b.addSplit(sec)
			return
		}
		if sec.Kind.Atomic() {
			b.stats.OversizedAtoms++
		}
	}

	b.append(sec)
	if !flushed && b.bufLen >= b.cfg.TargetSize {
		b.flush(FlushSize)
	}
}

// addSplit breaks an oversized standalone text section. Every piece but the
// last becomes its own chunk; the last stays buffered so following sections
// can join it.
func (b *Builder) addSplit(sec doctree.Section) {
	pieces := splitOversized(sec.Content, b.cfg.TargetSize, b.cfg.MaxSize)
	b.stats.SplitSections++
	b.log.Debug().
		Str("section_id", sec.ID).
		Int("bytes", len(sec.Content)).
		Int("pieces", len(pieces)).
		Msg("splitting oversized text section")

	for i, piece := range pieces {
		part := sec
		part.Content = piece
		b.append(part)
		if i < len(pieces)-1 {
			b.flush(FlushSplit)
		}
	}
	if b.bufLen >= b.cfg.TargetSize {
		b.flush(FlushSize)
	}
}

// Finish flushes whatever is buffered and returns the page's chunks.
func (b *Builder) Finish() []doctree.Chunk {
	if len(b.buf) > 0 {
		b.flush(FlushEndOfPage)
	}
	return b.out
}

// Stats returns counters for the page built so far.
func (b *Builder) Stats() Stats {
	return b.stats
}

func (b *Builder) append(sec doctree.Section) {
	b.buf = append(b.buf, sec)
	b.bufLen += len(sec.Content)
	b.bufCrumbs = sec.Breadcrumbs
}

func (b *Builder) flush(reason string) {
	parts := make([]string, 0, len(b.buf))
	ids := make([]string, 0, len(b.buf))
	atomic := 0
	for _, s := range b.buf {
		parts = append(parts, s.Content)
		if len(ids) == 0 || ids[len(ids)-1] != s.ID {
			ids = append(ids, s.ID)
		}
		if s.Kind.Atomic() {
			atomic++
		}
	}
	content := strings.Join(parts, "\n\n")

	c := doctree.Chunk{
		ID:          ChunkID(b.source, b.page, b.ctx.NextChunkOrdinal(), content),
		ContentOnly: content,
		Metadata: doctree.ChunkMetadata{
			Source:      b.source,
			PageNumber:  b.page,
			PageEnd:     b.page,
			Type:        chunkType(b.buf),
			Breadcrumbs: doctree.CopyBreadcrumbs(b.bufCrumbs),
			SectionIDs:  ids,
			Quality:     doctree.QualityMetrics{AtomicBlocks: atomic},
		},
	}
	Finalize(&c)
	b.out = append(b.out, c)
	b.stats.Flushes[reason]++

	b.log.Debug().
		Str("reason", reason).
		Str("chunk_id", c.ID).
		Int("sections", len(b.buf)).
		Int("bytes", b.bufLen).
		Msg("chunk flushed")

	b.buf = b.buf[:0]
	b.bufLen = 0
	b.bufCrumbs = nil
}
