package continuation

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/pagechunk/internal/chunker"
	"github.com/dgallion1/pagechunk/internal/doctree"
)

func chunkOn(page int, content string, crumbs ...string) doctree.Chunk {
	c := doctree.Chunk{
		ID:          chunker.ChunkID("doc", page, 0, content),
		ContentOnly: content,
		Metadata: doctree.ChunkMetadata{
			Source:      "doc",
			PageNumber:  page,
			PageEnd:     page,
			Type:        "text",
			Breadcrumbs: crumbs,
			SectionIDs:  []string{content[:1]},
		},
	}
	chunker.Finalize(&c)
	return c
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		tail     string
		head     string
		wantKind Kind
		wantOK   bool
	}{
		{"missing terminal punctuation", "the system has three", "components: ingestion, processing.", Syntactic, true},
		{"trailing conjunction", "We measured latency, and", "Throughput was stable.", Syntactic, true},
		{"trailing preposition", "The result depends on the choice of", "Parameters listed below.", Syntactic, true},
		{"complete sentence", "This ends here.", "A new paragraph starts.", Syntactic, false},
		{"table cut mid row", "| a | b |\n| 1 | 2", "3 |", Structural, true},
		{"table continues", "| a | b |\n| 1 | 2 |", "| 3 | 4 |", Structural, true},
		{"unfinished list item", "- first item\n- second item without end", "Then text.", Structural, true},
		{"list continues", "- done.", "- next one.", Structural, true},
		{"unterminated fence", "```go\nx := 1", "y := 2", Structural, true},
		{"lowercase head", "The paragraph ends.", "continues in lowercase.", Semantic, true},
		{"connective head", "The paragraph ends.", "However, there is more.", Semantic, true},
		{"numbered continuation", "1. one.\n2. two.", "3. three.", Structural, true},
		{"numbered continuation after prose", "Steps so far:\n\n2) Second.\nDone.", "3) Third.", Semantic, true},
		{"numbered gap", "Intro.\n2) two.\nDone.", "5) five.", Semantic, false},
		{"header head blocks signal", "the system has three", "## Components", Syntactic, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, ok := Detect(nil, chunkOn(1, tt.tail), chunkOn(2, tt.head))
			require.Equal(t, tt.wantOK, ok, "signal: %+v", sig)
			if ok {
				assert.Equal(t, tt.wantKind, sig.Kind)
				assert.Equal(t, tt.wantKind.Confidence(), sig.Confidence)
				assert.NotEmpty(t, sig.Evidence)
			}
		})
	}
}

func TestDetect_EmptySides(t *testing.T) {
	_, ok := Detect(nil, doctree.Chunk{}, chunkOn(2, "next"))
	assert.False(t, ok)
	_, ok = Detect(nil, chunkOn(1, "prev"), doctree.Chunk{ContentOnly: "  \n"})
	assert.False(t, ok)
}

func TestKind_ConfidenceOrder(t *testing.T) {
	assert.Greater(t, Structural.Confidence(), Syntactic.Confidence())
	assert.Greater(t, Syntactic.Confidence(), Semantic.Confidence())
}

func TestStitcher_MergesSyntacticContinuation(t *testing.T) {
	s := NewStitcher(doctree.NewContext("doc"), nil, true, zerolog.Nop())

	out := s.AddPage(1, []doctree.Chunk{
		chunkOn(1, "Opening paragraph.", "Arch"),
		chunkOn(1, "the system has three", "Arch"),
	})
	assert.Empty(t, out)

	out = append(out, s.AddPage(2, []doctree.Chunk{
		chunkOn(2, "components: ingestion, processing.", "Arch", "Parts"),
		chunkOn(2, "Another paragraph.", "Arch", "Parts"),
	})...)
	out = append(out, s.Flush()...)

	require.Len(t, out, 3)
	merged := out[1]
	assert.Equal(t, "the system has three components: ingestion, processing.", merged.ContentOnly)
	assert.True(t, merged.Merged)
	assert.Equal(t, 1, merged.Metadata.PageNumber)
	assert.Equal(t, 2, merged.Metadata.PageEnd)
	assert.Equal(t, []string{"Arch", "Parts"}, merged.Metadata.Breadcrumbs)
	assert.Equal(t, []string{"t", "c"}, merged.Metadata.SectionIDs)
	require.NotNil(t, merged.Metadata.Continuation)
	assert.Equal(t, "syntactic", merged.Metadata.Continuation.Kind)
	assert.Equal(t, chunker.ContentHash(merged.ContentOnly), merged.Hash)
	assert.Equal(t, 1, s.Merges()["syntactic"])
}

func TestStitcher_StructuralUsesNewline(t *testing.T) {
	s := NewStitcher(doctree.NewContext("doc"), nil, true, zerolog.Nop())
	s.AddPage(1, []doctree.Chunk{chunkOn(1, "| a | b |\n| 1 | 2 |")})
	s.AddPage(2, []doctree.Chunk{chunkOn(2, "| 3 | 4 |")})
	out := s.Flush()

	require.Len(t, out, 1)
	assert.Equal(t, "| a | b |\n| 1 | 2 |\n| 3 | 4 |", out[0].ContentOnly)
}

func TestStitcher_Disabled(t *testing.T) {
	s := NewStitcher(doctree.NewContext("doc"), nil, false, zerolog.Nop())
	out := s.AddPage(1, []doctree.Chunk{chunkOn(1, "the system has three")})
	out = append(out, s.AddPage(2, []doctree.Chunk{chunkOn(2, "components: a, b.")})...)
	out = append(out, s.Flush()...)

	require.Len(t, out, 2)
	assert.Empty(t, s.Merges())
}

func TestStitcher_NonAdjacentPagesNotMerged(t *testing.T) {
	s := NewStitcher(doctree.NewContext("doc"), nil, true, zerolog.Nop())
	out := s.AddPage(1, []doctree.Chunk{chunkOn(1, "the system has three")})
	out = append(out, s.AddPage(3, []doctree.Chunk{chunkOn(3, "components: a, b.")})...)
	out = append(out, s.Flush()...)

	assert.Len(t, out, 2)
}

func TestStitcher_EmptyPageBreaksAdjacency(t *testing.T) {
	s := NewStitcher(doctree.NewContext("doc"), nil, true, zerolog.Nop())
	out := s.AddPage(1, []doctree.Chunk{chunkOn(1, "the system has three")})
	out = append(out, s.AddPage(2, nil)...)
	require.Len(t, out, 1)
	out = append(out, s.AddPage(3, []doctree.Chunk{chunkOn(3, "components: a, b.")})...)
	out = append(out, s.Flush()...)

	assert.Len(t, out, 2)
}

func TestStitcher_NoTransitiveMerge(t *testing.T) {
	s := NewStitcher(doctree.NewContext("doc"), nil, true, zerolog.Nop())
	var out []doctree.Chunk
	out = append(out, s.AddPage(1, []doctree.Chunk{chunkOn(1, "alpha runs into")})...)
	out = append(out, s.AddPage(2, []doctree.Chunk{chunkOn(2, "beta which runs into")})...)
	out = append(out, s.AddPage(3, []doctree.Chunk{chunkOn(3, "gamma.")})...)
	out = append(out, s.Flush()...)

	require.Len(t, out, 2)
	assert.Equal(t, "alpha runs into beta which runs into", out[0].ContentOnly)
	assert.Equal(t, "gamma.", out[1].ContentOnly)
	assert.Equal(t, 1, s.Ambiguities())
}
