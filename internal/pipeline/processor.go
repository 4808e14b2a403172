package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dgallion1/pagechunk/internal/chunker"
	"github.com/dgallion1/pagechunk/internal/continuation"
	"github.com/dgallion1/pagechunk/internal/dedup"
	"github.com/dgallion1/pagechunk/internal/doctree"
	"github.com/dgallion1/pagechunk/internal/interval"
	"github.com/dgallion1/pagechunk/internal/parser"
)

// Options configures a Processor.
type Options struct {
	Chunking         chunker.Config
	DedupWindow      int  // Recent content hashes remembered; 0 uses dedup.DefaultSize
	CarryBreadcrumbs bool // Seed each page with the previous page's breadcrumb path
}

// Processor runs one document at a time through detect, parse, build,
// stitch and dedup. It holds only immutable configuration, so a single
// Processor may serve many goroutines; every per-document value lives in a
// doctree.Context created by Process.
type Processor struct {
	opts     Options
	patterns *interval.Patterns
	detector *interval.Detector
	parser   *parser.Parser
	log      zerolog.Logger
}

// NewProcessor validates opts and builds a processor. A nil patterns value
// uses interval.Default().
func NewProcessor(patterns *interval.Patterns, opts Options, log zerolog.Logger) (*Processor, error) {
	opts.Chunking = opts.Chunking.WithDefaults()
	if err := opts.Chunking.Validate(); err != nil {
		return nil, err
	}
	if patterns == nil {
		patterns = interval.Default()
	}
	return &Processor{
		opts:     opts,
		patterns: patterns,
		detector: interval.NewDetector(patterns, log),
		parser:   parser.New(patterns, parser.Options{CarryBreadcrumbs: opts.CarryBreadcrumbs}, log),
		log:      log,
	}, nil
}

// WithChunking returns a processor sharing p's patterns but sizing chunks
// with cfg.
func (p *Processor) WithChunking(cfg chunker.Config) (*Processor, error) {
	opts := p.opts
	opts.Chunking = cfg
	return NewProcessor(p.patterns, opts, p.log)
}

// Chunking returns the effective chunking configuration.
func (p *Processor) Chunking() chunker.Config {
	return p.opts.Chunking
}

// Process chunks doc. Pages are handled strictly in the order given, since
// the stitcher needs each page's final chunks before the next page's.
// Missing pages are skipped with a warning; nothing here is fatal.
func (p *Processor) Process(doc *doctree.Document) *Output {
	start := time.Now()
	log := p.log.With().Str("document", doc.Name).Logger()

	ctx := doctree.NewContext(doc.Name)
	stitch := continuation.NewStitcher(ctx, p.patterns, p.opts.Chunking.MergingEnabled, log)
	filter := dedup.NewFilter(p.opts.DedupWindow, log)
	stats := newCollector()
	stats.warn(doc.Warnings...)

	var chunks []doctree.Chunk
	for _, page := range doc.Pages {
		stats.pages.Total++
		if page.Missing {
			stats.pages.Skipped++
			log.Warn().
				Str("error_kind", "MissingMetadata").
				Int("page", page.Number).
				Msg("page file missing, skipping")
			continue
		}
		stats.pages.Processed++

		det := p.detector.Detect(page)
		stats.warn(det.Warnings...)
		for _, b := range det.Blocks {
			stats.blocks[b.Kind.String()]++
		}

		sections := p.parser.Parse(ctx, page, det.Blocks)
		if len(sections) == 0 {
			stats.pages.Empty++
			chunks = append(chunks, filter.Apply(stitch.AddPage(page.Number, nil))...)
			continue
		}

		b := chunker.NewBuilder(p.opts.Chunking, ctx, doc.Name, page.Number, log)
		for _, sec := range sections {
			stats.sections[sec.Kind.String()]++
			b.Add(sec)
		}
		built := b.Finish()
		stats.addBuild(b.Stats())

		log.Debug().
			Int("page", page.Number).
			Int("blocks", len(det.Blocks)).
			Bool("from_markers", det.FromMarkers).
			Int("sections", len(sections)).
			Int("chunks", len(built)).
			Msg("page chunked")

		chunks = append(chunks, filter.Apply(stitch.AddPage(page.Number, built))...)
	}
	chunks = append(chunks, filter.Apply(stitch.Flush())...)
	if chunks == nil {
		chunks = []doctree.Chunk{}
	}

	stats.merges = stitch.Merges()
	stats.ambiguities = stitch.Ambiguities()
	stats.duplicates = filter.Dropped()

	out := &Output{
		Document:       doc.Name,
		TotalChunks:    len(chunks),
		ChunkingConfig: p.opts.Chunking,
		Statistics:     stats.finish(chunks, p.opts.Chunking.MaxSize),
		Chunks:         chunks,
	}

	log.Info().
		Int("pages", stats.pages.Total).
		Int("chunks", out.TotalChunks).
		Int("duplicates_dropped", stats.duplicates).
		Dur("took", time.Since(start)).
		Msg("document chunked")
	return out
}

// Fingerprint identifies a document's page text together with the chunking
// settings that would be applied to it. Equal fingerprints produce equal
// output.
func (p *Processor) Fingerprint(doc *doctree.Document) string {
	c := p.opts.Chunking
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d/%d/%d/%t/%t/%d/%t\n", c.TargetSize, c.MinSize, c.MaxSize,
		c.MergingEnabled, c.SplitOversized, p.opts.DedupWindow, p.opts.CarryBreadcrumbs)
	for _, page := range doc.Pages {
		if page.Missing {
			fmt.Fprintf(&sb, "\f%d:missing", page.Number)
			continue
		}
		fmt.Fprintf(&sb, "\f%d:%s", page.Number, page.Text)
	}
	return ContentHashHex([]byte(sb.String()))
}
