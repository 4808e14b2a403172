package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"

	"github.com/dgallion1/pagechunk/internal/chunker"
	"github.com/dgallion1/pagechunk/internal/doctree"
)

// Output is the chunking result for one document.
type Output struct {
	Document       string          `json:"document"`
	TotalChunks    int             `json:"total_chunks"`
	ChunkingConfig chunker.Config  `json:"chunking_config"`
	Statistics     Statistics      `json:"detailed_statistics"`
	Chunks         []doctree.Chunk `json:"chunks"`
}

// Statistics summarise what happened while chunking a document.
type Statistics struct {
	Pages             PageStats      `json:"pages"`
	SectionsByKind    map[string]int `json:"sections_by_kind"`
	BlocksByKind      map[string]int `json:"protected_blocks_by_kind"`
	ChunksByType      map[string]int `json:"chunks_by_type"`
	FlushesByReason   map[string]int `json:"flushes_by_reason"`
	MergesByKind      map[string]int `json:"continuation_merges"`
	MergeAmbiguities  int            `json:"merge_ambiguities"`
	DuplicatesDropped int            `json:"duplicates_dropped"`
	SplitSections     int            `json:"split_sections"`
	OversizedAtomic   int            `json:"oversized_atomic_blocks"`
	ChunksOverMax     int            `json:"chunks_over_max"`
	ChunkSizes        SizeStats      `json:"chunk_sizes"`
	Warnings          []string       `json:"warnings"`
}

// PageStats counts pages by outcome. Processed includes empty pages.
type PageStats struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Empty     int `json:"empty"`
}

// SizeStats describe chunk content sizes in bytes.
type SizeStats struct {
	Min int     `json:"min"`
	Max int     `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
}

// WriteJSON encodes o as indented JSON.
func (o *Output) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(o); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

// WriteFile writes o to dir/<document>_chunks.json and returns the path.
func (o *Output) WriteFile(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, OutputName(o.Document))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create output: %w", err)
	}
	if err := o.WriteJSON(f); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close output: %w", err)
	}
	return path, nil
}

// OutputName is the file name used for a document's output.
func OutputName(document string) string {
	return filepath.Base(document) + "_chunks.json"
}

type collector struct {
	pages       PageStats
	sections    map[string]int
	blocks      map[string]int
	flushes     map[string]int
	merges      map[string]int
	ambiguities int
	duplicates  int
	splits      int
	oversized   int
	warnings    []string
}

func newCollector() *collector {
	return &collector{
		sections: make(map[string]int),
		blocks:   make(map[string]int),
		flushes:  make(map[string]int),
		warnings: []string{},
	}
}

func (c *collector) warn(msgs ...string) {
	c.warnings = append(c.warnings, msgs...)
}

func (c *collector) addBuild(s chunker.Stats) {
	for reason, n := range s.Flushes {
		c.flushes[reason] += n
	}
	c.splits += s.SplitSections
	c.oversized += s.OversizedAtoms
}

func (c *collector) finish(chunks []doctree.Chunk, maxSize int) Statistics {
	st := Statistics{
		Pages:             c.pages,
		SectionsByKind:    c.sections,
		BlocksByKind:      c.blocks,
		ChunksByType:      make(map[string]int),
		FlushesByReason:   c.flushes,
		MergesByKind:      c.merges,
		MergeAmbiguities:  c.ambiguities,
		DuplicatesDropped: c.duplicates,
		SplitSections:     c.splits,
		OversizedAtomic:   c.oversized,
		Warnings:          c.warnings,
	}
	if st.MergesByKind == nil {
		st.MergesByKind = make(map[string]int)
	}

	sizes := make([]int64, 0, len(chunks))
	for _, ch := range chunks {
		st.ChunksByType[ch.Metadata.Type]++
		n := len(ch.ContentOnly)
		if n > maxSize {
			st.ChunksOverMax++
		}
		sizes = append(sizes, int64(n))
	}
	st.ChunkSizes = sizeStats(sizes)
	return st
}

func sizeStats(sizes []int64) SizeStats {
	if len(sizes) == 0 {
		return SizeStats{}
	}
	slices.Sort(sizes)
	var sum int64
	for _, n := range sizes {
		sum += n
	}
	return SizeStats{
		Min: int(sizes[0]),
		Max: int(sizes[len(sizes)-1]),
		Avg: math.Round(float64(sum)/float64(len(sizes))*10) / 10,
		P50: percentile(sizes, 50),
		P95: percentile(sizes, 95),
	}
}
