package dedup

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/pagechunk/internal/doctree"
)

func TestWindow_DropsRepeatInsideWindow(t *testing.T) {
	w := NewWindow(5)
	assert.True(t, w.Admit("a"))
	assert.True(t, w.Admit("b"))
	assert.False(t, w.Admit("a"))
	assert.Equal(t, 2, w.Len())
}

func TestWindow_SixthChunkOutsideWindowIsKept(t *testing.T) {
	w := NewWindow(5)
	hashes := []string{"same", "h2", "h3", "h4", "h5", "same"}
	for i, h := range hashes {
		assert.True(t, w.Admit(h), "chunk %d should be admitted", i+1)
	}
}

func TestWindow_FifthChunkRepeatIsDropped(t *testing.T) {
	w := NewWindow(5)
	for _, h := range []string{"same", "h2", "h3", "h4"} {
		require.True(t, w.Admit(h))
	}
	assert.False(t, w.Admit("same"))
}

func TestWindow_EvictsOldest(t *testing.T) {
	w := NewWindow(3)
	for i := 0; i < 10; i++ {
		require.True(t, w.Admit(fmt.Sprintf("h%d", i)))
	}
	assert.Equal(t, 3, w.Len())
	assert.True(t, w.Contains("h9"))
	assert.True(t, w.Contains("h7"))
	assert.False(t, w.Contains("h6"))
}

func TestWindow_DefaultSize(t *testing.T) {
	w := NewWindow(0)
	assert.Len(t, w.hashes, DefaultSize)
}

func TestFilter_Apply(t *testing.T) {
	f := NewFilter(5, zerolog.Nop())
	chunks := []doctree.Chunk{
		{ID: "1", Hash: "x"},
		{ID: "2", Hash: "x"},
		{ID: "3", Hash: "y"},
	}

	out := f.Apply(chunks)
	require.Len(t, out, 2)
	assert.Equal(t, "1", out[0].ID)
	assert.Equal(t, "3", out[1].ID)
	assert.Equal(t, 1, f.Dropped())

	// The window persists across calls.
	assert.Empty(t, f.Apply([]doctree.Chunk{{ID: "4", Hash: "y"}}))
	assert.Equal(t, 2, f.Dropped())
}
