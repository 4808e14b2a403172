package interval

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/pagechunk/internal/doctree"
)

func block(start, end int, kind doctree.BlockKind) doctree.ProtectedBlock {
	return doctree.ProtectedBlock{Start: start, End: end, Kind: kind}
}

func TestMerge_Cases(t *testing.T) {
	text := strings.Repeat("x", 200)

	tests := []struct {
		name  string
		input []doctree.ProtectedBlock
		want  [][3]int // start, end, kind
	}{
		{
			name:  "empty input",
			input: nil,
			want:  [][3]int{},
		},
		{
			name:  "overlap keeps table",
			input: []doctree.ProtectedBlock{block(0, 10, doctree.BlockImage), block(5, 20, doctree.BlockTable)},
			want:  [][3]int{{0, 20, int(doctree.BlockTable)}},
		},
		{
			name:  "touching stay separate",
			input: []doctree.ProtectedBlock{block(10, 20, doctree.BlockCode), block(0, 10, doctree.BlockImage)},
			want:  [][3]int{{0, 10, int(doctree.BlockImage)}, {10, 20, int(doctree.BlockCode)}},
		},
		{
			name:  "contained interval absorbed",
			input: []doctree.ProtectedBlock{block(0, 100, doctree.BlockTable), block(10, 20, doctree.BlockImage)},
			want:  [][3]int{{0, 100, int(doctree.BlockTable)}},
		},
		{
			name:  "identical intervals collapse",
			input: []doctree.ProtectedBlock{block(30, 40, doctree.BlockFormula), block(30, 40, doctree.BlockFormula)},
			want:  [][3]int{{30, 40, int(doctree.BlockFormula)}},
		},
		{
			name:  "code outranks formula",
			input: []doctree.ProtectedBlock{block(0, 50, doctree.BlockFormula), block(40, 60, doctree.BlockCode)},
			want:  [][3]int{{0, 60, int(doctree.BlockCode)}},
		},
		{
			name: "malformed dropped",
			input: []doctree.ProtectedBlock{
				block(5, 5, doctree.BlockTable),
				block(10, 3, doctree.BlockTable),
				block(150, 999, doctree.BlockImage),
				block(50, 60, doctree.BlockImage),
			},
			want: [][3]int{{50, 60, int(doctree.BlockImage)}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge(text, tt.input, zerolog.Nop())
			require.NotNil(t, got)
			require.Len(t, got, len(tt.want))
			for i, w := range tt.want {
				assert.Equal(t, w[0], got[i].Start)
				assert.Equal(t, w[1], got[i].End)
				assert.Equal(t, doctree.BlockKind(w[2]), got[i].Kind)
				assert.Equal(t, text[w[0]:w[1]], got[i].Content)
			}
		})
	}
}

func TestMerge_DisjointAndSorted(t *testing.T) {
	text := strings.Repeat("abcdefghij", 100)
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 200; round++ {
		n := rng.Intn(30)
		cands := make([]doctree.ProtectedBlock, 0, n)
		for i := 0; i < n; i++ {
			start := rng.Intn(len(text))
			end := start + 1 + rng.Intn(80)
			if end > len(text) {
				end = len(text)
			}
			cands = append(cands, block(start, end, doctree.BlockKind(rng.Intn(4))))
		}

		got := Merge(text, cands, zerolog.Nop())
		for i, b := range got {
			require.Less(t, b.Start, b.End)
			if i > 0 {
				require.GreaterOrEqual(t, b.Start, got[i-1].End, "round %d: blocks %d and %d overlap", round, i-1, i)
			}
		}

		// Every candidate lies inside exactly one merged block.
		for _, c := range cands {
			inside := 0
			for _, b := range got {
				if c.Start >= b.Start && c.End <= b.End {
					inside++
				}
			}
			require.Equal(t, 1, inside, "round %d: candidate %d-%d not covered", round, c.Start, c.End)
		}
	}
}

func TestSnapToLines(t *testing.T) {
	text := "first line\nsecond ![img](a.png) line\nthird"
	start := strings.Index(text, "![")
	end := strings.Index(text, ") line") + 1

	s, e := snapToLines(text, start, end)
	assert.Equal(t, "second ![img](a.png) line", text[s:e])
}

func TestTrimBlankEdges(t *testing.T) {
	text := "\n  \ncontent\nmore\n \n\n"
	s, e := trimBlankEdges(text, 0, len(text))
	assert.Equal(t, "content\nmore", text[s:e])

	blank := "\n\n  \n"
	s, e = trimBlankEdges(blank, 0, len(blank))
	assert.True(t, isBlank(blank[s:e]))
}
