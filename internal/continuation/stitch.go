package continuation

import (
	"github.com/rs/zerolog"

	"github.com/dgallion1/pagechunk/internal/chunker"
	"github.com/dgallion1/pagechunk/internal/doctree"
	"github.com/dgallion1/pagechunk/internal/interval"
)

// Stitcher holds back the chunks of the most recent page until the next
// page arrives, so the boundary pair can be merged. Pages must be fed in
// ascending order.
type Stitcher struct {
	enabled  bool
	ctx      *doctree.Context
	patterns *interval.Patterns
	log      zerolog.Logger

	pending     []doctree.Chunk
	pendingPage int

	merges      map[string]int
	ambiguities int
}

// NewStitcher returns a stitcher for the document tracked by ctx. Boundary
// signals are detected with patterns (nil for the defaults). When enabled is
// false chunks pass through unchanged, one page behind.
func NewStitcher(ctx *doctree.Context, patterns *interval.Patterns, enabled bool, log zerolog.Logger) *Stitcher {
	return &Stitcher{
		enabled:  enabled,
		ctx:      ctx,
		patterns: patterns,
		log:      log,
		merges:   make(map[string]int),
	}
}

// AddPage takes the chunks built for page and returns the chunks that are
// now final. A page with no chunks breaks adjacency.
func (s *Stitcher) AddPage(page int, chunks []doctree.Chunk) []doctree.Chunk {
	if len(chunks) == 0 {
		return s.Flush()
	}
	if len(s.pending) == 0 {
		s.pending, s.pendingPage = chunks, page
		return nil
	}

	out := s.pending
	rest := chunks
	if s.enabled && page == s.pendingPage+1 {
		last := len(out) - 1
		if merged, ok := s.tryMerge(out[last], chunks[0]); ok {
			rest = chunks[1:]
			if len(rest) == 0 {
				s.pending, s.pendingPage = []doctree.Chunk{merged}, page
				return out[:last]
			}
			out = append(out[:last:last], merged)
		}
	}
	s.pending, s.pendingPage = rest, page
	return out
}

// Flush returns any held-back chunks.
func (s *Stitcher) Flush() []doctree.Chunk {
	out := s.pending
	s.pending = nil
	return out
}

// Merges returns merge counts by signal kind.
func (s *Stitcher) Merges() map[string]int {
	return s.merges
}

// Ambiguities counts signals that fired on an already-merged chunk.
func (s *Stitcher) Ambiguities() int {
	return s.ambiguities
}

func (s *Stitcher) tryMerge(prev, next doctree.Chunk) (doctree.Chunk, bool) {
	sig, ok := Detect(s.patterns, prev, next)
	if !ok {
		return doctree.Chunk{}, false
	}
	log := s.log.With().
		Str("kind", sig.Kind.String()).
		Float64("confidence", sig.Confidence).
		Str("evidence", sig.Evidence).
		Int("page", prev.Metadata.PageEnd).
		Logger()

	if prev.Merged {
		s.ambiguities++
		log.Info().
			Str("chunk_id", prev.ID).
			Msg("continuation into an already merged chunk, not merging again")
		return doctree.Chunk{}, false
	}

	merged := Merge(s.ctx, prev, next, sig)
	s.merges[sig.Kind.String()]++
	log.Debug().
		Str("prev_id", prev.ID).
		Str("next_id", next.ID).
		Str("merged_id", merged.ID).
		Msg("merged chunks across page break")
	return merged, true
}

// Merge joins prev and next into a new chunk. Structural continuations are
// joined with a newline, the rest with a space. The deeper breadcrumb path
// wins. Sizes are recomputed; the result is never re-split.
func Merge(ctx *doctree.Context, prev, next doctree.Chunk, sig Signal) doctree.Chunk {
	sep := " "
	if sig.Kind == Structural {
		sep = "\n"
	}
	content := prev.ContentOnly + sep + next.ContentOnly

	crumbs := prev.Metadata.Breadcrumbs
	if len(next.Metadata.Breadcrumbs) > len(crumbs) {
		crumbs = next.Metadata.Breadcrumbs
	}

	ids := make([]string, 0, len(prev.Metadata.SectionIDs)+len(next.Metadata.SectionIDs))
	seen := make(map[string]bool)
	for _, id := range append(append([]string{}, prev.Metadata.SectionIDs...), next.Metadata.SectionIDs...) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	c := doctree.Chunk{
		ID:          chunker.ChunkID(prev.Metadata.Source, prev.Metadata.PageNumber, ctx.NextChunkOrdinal(), content),
		ContentOnly: content,
		Merged:      true,
		Metadata: doctree.ChunkMetadata{
			Source:      prev.Metadata.Source,
			PageNumber:  prev.Metadata.PageNumber,
			PageEnd:     next.Metadata.PageEnd,
			Type:        chunker.MergeTypes(prev.Metadata.Type, next.Metadata.Type),
			Breadcrumbs: doctree.CopyBreadcrumbs(crumbs),
			SectionIDs:  ids,
			Continuation: &doctree.ContinuationInfo{
				Kind:       sig.Kind.String(),
				Confidence: sig.Confidence,
				Evidence:   sig.Evidence,
			},
			Quality: doctree.QualityMetrics{
				AtomicBlocks: prev.Metadata.Quality.AtomicBlocks + next.Metadata.Quality.AtomicBlocks,
			},
		},
	}
	chunker.Finalize(&c)
	return c
}
