package dedup

import (
	"github.com/rs/zerolog"

	"github.com/dgallion1/pagechunk/internal/doctree"
)

// Filter applies a Window to a chunk stream and logs what it drops.
type Filter struct {
	window  *Window
	log     zerolog.Logger
	dropped int
}

// NewFilter returns a filter with a window of the given size.
func NewFilter(size int, log zerolog.Logger) *Filter {
	return &Filter{window: NewWindow(size), log: log}
}

// Apply returns the chunks whose hash is not in the window, in order.
// Admitted chunks enter the window as they pass.
func (f *Filter) Apply(chunks []doctree.Chunk) []doctree.Chunk {
	out := chunks[:0:0]
	for _, c := range chunks {
		if !f.window.Admit(c.Hash) {
			f.dropped++
			f.log.Info().
				Str("chunk_id", c.ID).
				Int("page", c.Metadata.PageNumber).
				Str("hash", c.Hash).
				Msg("dropping duplicate chunk")
			continue
		}
		out = append(out, c)
	}
	return out
}

// Dropped returns how many chunks the filter has dropped.
func (f *Filter) Dropped() int {
	return f.dropped
}
