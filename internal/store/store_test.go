package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGet(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	rec := Record{
		ID:          "doc-1",
		Document:    "report",
		Fingerprint: "abc",
		TotalChunks: 3,
		Output:      []byte(`{"document":"report"}`),
		CreatedAt:   created,
	}
	require.NoError(t, s.Save(ctx, rec))

	got, err := s.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "report", got.Document)
	assert.Equal(t, "abc", got.Fingerprint)
	assert.Equal(t, 3, got.TotalChunks)
	assert.JSONEq(t, `{"document":"report"}`, string(got.Output))
	assert.True(t, created.Equal(got.CreatedAt))

	// Saving the same ID replaces the row.
	rec.TotalChunks = 4
	require.NoError(t, s.Save(ctx, rec))
	got, err = s.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 4, got.TotalChunks)
}

func TestSave_RequiresID(t *testing.T) {
	s := openTest(t)
	assert.Error(t, s.Save(context.Background(), Record{Document: "x"}))
}

func TestGet_NotFound(t *testing.T) {
	s := openTest(t)
	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindByFingerprint(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Save(ctx, Record{ID: "new", Fingerprint: "fp", Output: []byte("{}"), CreatedAt: base.Add(time.Hour)}))
	require.NoError(t, s.Save(ctx, Record{ID: "old", Fingerprint: "fp", Output: []byte("{}"), CreatedAt: base}))
	require.NoError(t, s.Save(ctx, Record{ID: "other", Fingerprint: "zz", Output: []byte("{}"), CreatedAt: base}))

	got, err := s.FindByFingerprint(ctx, "fp")
	require.NoError(t, err)
	assert.Equal(t, "old", got.ID)

	_, err = s.FindByFingerprint(ctx, "none")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAndDelete(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Save(ctx, Record{
			ID:          id,
			Document:    "doc-" + id,
			TotalChunks: i,
			Output:      []byte("{}"),
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}))
	}

	all, err := s.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID)
	assert.Equal(t, "a", all[2].ID)

	page, err := s.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "b", page[0].ID)

	require.NoError(t, s.Delete(ctx, "b"))
	assert.ErrorIs(t, s.Delete(ctx, "b"), ErrNotFound)

	all, err = s.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), Record{ID: "x", Output: []byte("{}")}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "x", got.ID)
}
