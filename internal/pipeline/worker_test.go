package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/pagechunk/internal/chunker"
	"github.com/dgallion1/pagechunk/internal/pathstore"
	"github.com/dgallion1/pagechunk/internal/source"
	"github.com/dgallion1/pagechunk/internal/store"
)

const twoPageDoc = "# Page 1\n\nFirst paragraph.\n\n# Page 2\n\n# Other\n\nSecond paragraph.\n"

type fakeStore struct {
	mu   sync.Mutex
	recs map[string]store.Record
}

func newFakeStore() *fakeStore {
	return &fakeStore{recs: make(map[string]store.Record)}
}

func (s *fakeStore) Save(_ context.Context, rec store.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[rec.ID] = rec
	return nil
}

func (s *fakeStore) FindByFingerprint(_ context.Context, fp string) (*store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.recs {
		if rec.Fingerprint == fp {
			return &rec, nil
		}
	}
	return nil, store.ErrNotFound
}

type fakeNodes struct {
	mu        sync.Mutex
	nodes     map[string]pathstore.NodeRequest
	links     []pathstore.LinkRequest
	transient int   // calls that fail with a retryable error first
	fail      error // returned for every chunk write when set
	calls     int
}

func newFakeNodes() *fakeNodes {
	return &fakeNodes{nodes: make(map[string]pathstore.NodeRequest)}
}

func (n *fakeNodes) PutNode(_ context.Context, key string, req pathstore.NodeRequest) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	if n.transient > 0 {
		n.transient--
		return &pathstore.RetryableError{StatusCode: 503, Message: "busy"}
	}
	if n.fail != nil && strings.Contains(key, "/chunks/") {
		return n.fail
	}
	n.nodes[key] = req
	return nil
}

func (n *fakeNodes) PutLink(_ context.Context, req pathstore.LinkRequest) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.links = append(n.links, req)
	return nil
}

func newTestWorker(t *testing.T, st ResultStore, nodes NodeWriter) *Worker {
	t.Helper()
	proc, err := NewProcessor(nil, Options{Chunking: chunker.DefaultConfig()}, zerolog.Nop())
	require.NoError(t, err)
	w := NewWorker(WorkerDeps{
		Processor:  proc,
		Store:      st,
		Nodes:      nodes,
		Prefix:     "test",
		Source:     source.DefaultOptions(),
		MaxPublish: 2,
		Log:        zerolog.Nop(),
	})
	w.backoff = func(int) time.Duration { return time.Millisecond }
	return w
}

func markdownJob(name, body string) *Job {
	return NewJob(name, []source.File{{Name: "doc.md", Data: []byte(body)}}, nil)
}

func TestWorker_CompletesJob(t *testing.T) {
	st, nodes := newFakeStore(), newFakeNodes()
	w := newTestWorker(t, st, nodes)

	job := markdownJob("guide", twoPageDoc)
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	require.Equal(t, StatusCompleted, snap.Status, snap.Progress.Errors)
	assert.Equal(t, 2, snap.Progress.PagesTotal)
	assert.Equal(t, 2, snap.Progress.TotalChunks)
	assert.Equal(t, 2, snap.Progress.ChunksPublished)
	assert.NotEmpty(t, snap.Fingerprint)
	assert.Nil(t, job.Files(), "upload bytes released after load")

	out := job.Result()
	require.NotNil(t, out)
	assert.Equal(t, "guide", out.Document)

	rec, ok := st.recs[job.DocID]
	require.True(t, ok)
	assert.Equal(t, snap.Fingerprint, rec.Fingerprint)
	assert.Equal(t, 2, rec.TotalChunks)

	docKey := DocumentKey("test", job.DocID)
	for _, c := range out.Chunks {
		req, ok := nodes.nodes[docKey+"/chunks/"+c.ID]
		require.True(t, ok, c.ID)
		assert.Equal(t, "semantic", req.MemoryType)
		assert.Equal(t, "pagechunk:"+job.DocID, req.Source)
	}
	assert.Contains(t, nodes.nodes, docKey+"/meta")
	require.Len(t, nodes.links, 1)
	assert.Equal(t, docKey+"/chunks/"+out.Chunks[0].ID, nodes.links[0].From)
	assert.Equal(t, docKey+"/chunks/"+out.Chunks[1].ID, nodes.links[0].To)
}

func TestWorker_SkipsDuplicateDocument(t *testing.T) {
	st := newFakeStore()
	w := newTestWorker(t, st, nil)

	first := markdownJob("guide", twoPageDoc)
	w.Process(context.Background(), first)
	require.Equal(t, StatusCompleted, first.Snapshot().Status)

	second := markdownJob("guide", twoPageDoc)
	w.Process(context.Background(), second)

	snap := second.Snapshot()
	assert.Equal(t, StatusDupSkipped, snap.Status)
	assert.Equal(t, first.DocID, snap.DocID)
	require.NotNil(t, second.Result())
	assert.Equal(t, first.Result().TotalChunks, second.Result().TotalChunks)
	assert.Len(t, st.recs, 1)
}

func TestWorker_RetriesTransientPublishErrors(t *testing.T) {
	nodes := newFakeNodes()
	nodes.transient = 2
	w := newTestWorker(t, nil, nodes)

	job := markdownJob("guide", twoPageDoc)
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	assert.Equal(t, StatusCompleted, snap.Status, snap.Progress.Errors)
	assert.Equal(t, 2, snap.Progress.ChunksPublished)
	assert.Equal(t, 5, nodes.calls, "two chunks, one meta node, two retries")
}

func TestWorker_PublishFailure(t *testing.T) {
	nodes := newFakeNodes()
	nodes.fail = errors.New("bad request")
	w := newTestWorker(t, nil, nodes)

	job := markdownJob("guide", twoPageDoc)
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Equal(t, 0, snap.Progress.ChunksPublished)
	assert.Len(t, snap.Progress.Errors, 2)
	assert.Empty(t, nodes.links)
}

func TestWorker_PartialWhenStoreOnlyFails(t *testing.T) {
	nodes := newFakeNodes()
	w := newTestWorker(t, failingStore{}, nodes)

	job := markdownJob("guide", twoPageDoc)
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	assert.Equal(t, StatusPartial, snap.Status)
	assert.Equal(t, 2, snap.Progress.ChunksPublished)
	require.Len(t, snap.Progress.Errors, 1)
	assert.Contains(t, snap.Progress.Errors[0], "store")
}

type failingStore struct{}

func (failingStore) Save(context.Context, store.Record) error { return errors.New("disk full") }

func (failingStore) FindByFingerprint(context.Context, string) (*store.Record, error) {
	return nil, store.ErrNotFound
}

func TestWorker_LoadFailure(t *testing.T) {
	w := newTestWorker(t, nil, nil)
	job := NewJob("bin", []source.File{{Name: "tool.exe", Data: []byte{0}}}, nil)
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Equal(t, "loading", snap.Phase)
	require.Len(t, snap.Progress.Errors, 1)
	assert.Contains(t, snap.Progress.Errors[0], "load")
	assert.Nil(t, job.Result())
}

func TestWorker_ChunkingOverride(t *testing.T) {
	w := newTestWorker(t, nil, nil)

	bad := NewJob("doc", []source.File{{Name: "doc.md", Data: []byte("text")}},
		&chunker.Config{TargetSize: 10, MinSize: 20, MaxSize: 30})
	w.Process(context.Background(), bad)
	assert.Equal(t, StatusFailed, bad.Snapshot().Status)

	good := NewJob("doc", []source.File{{Name: "doc.md", Data: []byte("text")}},
		&chunker.Config{TargetSize: 100, MinSize: 50, MaxSize: 200})
	w.Process(context.Background(), good)
	assert.Equal(t, StatusCompleted, good.Snapshot().Status)
	assert.Equal(t, 100, good.Result().ChunkingConfig.TargetSize)
}

func TestRetry_StopsOnPermanentError(t *testing.T) {
	calls := 0
	err := retry(context.Background(), zerolog.Nop(), func(int) time.Duration { return 0 }, func() error {
		calls++
		return errors.New("permanent")
	})
	assert.EqualError(t, err, "permanent")
	assert.Equal(t, 1, calls)

	calls = 0
	err = retry(context.Background(), zerolog.Nop(), func(int) time.Duration { return 0 }, func() error {
		calls++
		return &pathstore.RetryableError{StatusCode: 429}
	})
	assert.True(t, IsRetryable(err))
	assert.Equal(t, MaxRetries, calls)
}

func TestBackoff(t *testing.T) {
	for attempt, base := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
		d := Backoff(attempt)
		assert.GreaterOrEqual(t, d, base)
		assert.Less(t, d, base+base/2)
	}
	assert.Less(t, Backoff(10), 45*time.Second)
}
