package doctree

import (
	"fmt"
	"slices"
)

// Document is one source file split into pages, in page order.
type Document struct {
	Name     string   // Document name (from metadata or filename)
	Pages    []Page   // Pages in ascending page order
	Warnings []string // Loader warnings, e.g. pages referenced but missing
}

// Page is the extracted markdown of a single page.
type Page struct {
	Number  int
	Text    string
	Missing bool // Referenced by metadata but the file was absent
}

// BlockKind identifies what an atomic region holds.
type BlockKind int

const (
	BlockImage BlockKind = iota
	BlockFormula
	BlockCode
	BlockTable
)

func (k BlockKind) String() string {
	switch k {
	case BlockImage:
		return "image"
	case BlockFormula:
		return "formula"
	case BlockCode:
		return "code"
	case BlockTable:
		return "table"
	default:
		return "unknown"
	}
}

// Priority orders kinds when overlapping detections merge. Tables are most
// often the superset region, so they win.
func (k BlockKind) Priority() int {
	return int(k)
}

// SectionKind returns the section kind a block of this kind is emitted as.
func (k BlockKind) SectionKind() SectionKind {
	switch k {
	case BlockImage:
		return SectionImage
	case BlockFormula:
		return SectionFormula
	case BlockCode:
		return SectionCode
	default:
		return SectionTable
	}
}

// ProtectedBlock is a half-open byte range [Start, End) of a page that must
// never be split across chunks.
type ProtectedBlock struct {
	Start   int
	End     int
	Kind    BlockKind
	Content string
}

// SectionKind is the semantic type of a parsed section.
type SectionKind int

const (
	SectionText SectionKind = iota
	SectionMajorHeader
	SectionMinorHeader
	SectionImage
	SectionTable
	SectionCode
	SectionFormula
)

func (k SectionKind) String() string {
	switch k {
	case SectionText:
		return "text"
	case SectionMajorHeader:
		return "major_header"
	case SectionMinorHeader:
		return "minor_header"
	case SectionImage:
		return "image"
	case SectionTable:
		return "table"
	case SectionCode:
		return "code"
	case SectionFormula:
		return "formula"
	default:
		return "unknown"
	}
}

// Atomic reports whether sections of this kind must be kept whole.
func (k SectionKind) Atomic() bool {
	switch k {
	case SectionImage, SectionTable, SectionCode, SectionFormula:
		return true
	}
	return false
}

// IsHeader reports whether the kind is a major or minor header.
func (k SectionKind) IsHeader() bool {
	return k == SectionMajorHeader || k == SectionMinorHeader
}

// Section is one typed unit of a page, produced in document order.
// Start and End delimit the span of page text the section accounts for;
// Content is the trimmed payload within that span.
type Section struct {
	ID          string
	Kind        SectionKind
	Content     string
	Breadcrumbs []string
	Page        int
	Start       int
	End         int
}

// Chunk is a sized text segment with structural context, ready for embedding.
type Chunk struct {
	ID          string        `json:"id"`
	Text        string        `json:"text"`         // Breadcrumb context line + content
	ContentOnly string        `json:"content_only"` // Content without context
	Metadata    ChunkMetadata `json:"metadata"`

	// Hash is the content hash used for deduplication.
	Hash string `json:"-"`
	// Merged is set on chunks produced by a cross-page continuation merge.
	Merged bool `json:"-"`
}

// ChunkMetadata describes where a chunk came from and what it holds.
type ChunkMetadata struct {
	Source          string            `json:"source"`
	PageNumber      int               `json:"page_number"`
	PageEnd         int               `json:"page_end"`
	Type            string            `json:"type"`
	Breadcrumbs     []string          `json:"breadcrumbs"`
	CharCount       int               `json:"char_count"`
	WordCount       int               `json:"word_count"`
	EstimatedTokens int               `json:"estimated_tokens"`
	SectionIDs      []string          `json:"section_ids"`
	Continuation    *ContinuationInfo `json:"continuation,omitempty"`
	Quality         QualityMetrics    `json:"quality_metrics"`
}

// QualityMetrics are cheap content heuristics; they are not exact.
type QualityMetrics struct {
	HasNumericData     bool    `json:"has_numeric_data"`
	HasDates           bool    `json:"has_dates"`
	HasCitations       bool    `json:"has_citations"`
	HasCrossReferences bool    `json:"has_cross_references"`
	HasUnits           bool    `json:"has_units"`
	NumericDensity     float64 `json:"numeric_density"`
	AtomicBlocks       int     `json:"atomic_blocks"`
}

// ContinuationInfo records the signal that merged a chunk across pages.
type ContinuationInfo struct {
	Kind       string  `json:"kind"`
	Confidence float64 `json:"confidence"`
	Evidence   string  `json:"evidence"`
}

// Context is the per-document state threaded through the parser and the
// builder. It replaces process-wide counters; nothing in it is shared
// between documents.
type Context struct {
	Document string

	// Trail is the breadcrumb path in effect at the end of the last parsed
	// page.
	Trail []string

	counters map[SectionKind]int
	chunkSeq int
}

// NewContext creates an empty context for one document.
func NewContext(document string) *Context {
	return &Context{
		Document: document,
		counters: make(map[SectionKind]int),
	}
}

// NextSectionID returns the next id for a section of the given kind,
// e.g. "table_3".
func (c *Context) NextSectionID(kind SectionKind) string {
	c.counters[kind]++
	return fmt.Sprintf("%s_%d", kind, c.counters[kind])
}

// NextChunkOrdinal returns a document-wide sequence number for a new chunk.
func (c *Context) NextChunkOrdinal() int {
	c.chunkSeq++
	return c.chunkSeq
}

// CopyBreadcrumbs returns an independent copy of a breadcrumb path.
func CopyBreadcrumbs(bc []string) []string {
	if len(bc) == 0 {
		return nil
	}
	return slices.Clone(bc)
}
