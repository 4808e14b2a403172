package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dgallion1/pagechunk/internal/doctree"
	"github.com/dgallion1/pagechunk/internal/pathstore"
	"github.com/dgallion1/pagechunk/internal/source"
	"github.com/dgallion1/pagechunk/internal/store"
)

// ResultStore persists finished chunking outputs.
type ResultStore interface {
	Save(ctx context.Context, rec store.Record) error
	FindByFingerprint(ctx context.Context, fingerprint string) (*store.Record, error)
}

// NodeWriter is the subset of the pathstore client used for publishing.
type NodeWriter interface {
	PutNode(ctx context.Context, key string, req pathstore.NodeRequest) error
	PutLink(ctx context.Context, req pathstore.LinkRequest) error
}

// Worker processes a single document job.
type Worker struct {
	proc    *Processor
	store   ResultStore // nil disables storage
	nodes   NodeWriter  // nil disables publishing
	prefix  string
	loadOpt source.Options
	latency *LatencyStats
	log     zerolog.Logger

	maxConcurrentPublish int
	backoff              func(int) time.Duration
}

// WorkerDeps bundles the collaborators a Worker needs.
type WorkerDeps struct {
	Processor  *Processor
	Store      ResultStore
	Nodes      NodeWriter
	Prefix     string
	Source     source.Options
	Latency    *LatencyStats
	MaxPublish int
	Log        zerolog.Logger
}

func NewWorker(d WorkerDeps) *Worker {
	if d.MaxPublish <= 0 {
		d.MaxPublish = 1
	}
	if d.Latency == nil {
		d.Latency = NewLatencyStats(time.Hour)
	}
	if d.Prefix == "" {
		d.Prefix = "pagechunk"
	}
	return &Worker{
		proc:                 d.Processor,
		store:                d.Store,
		nodes:                d.Nodes,
		prefix:               d.Prefix,
		loadOpt:              d.Source,
		latency:              d.Latency,
		log:                  d.Log,
		maxConcurrentPublish: d.MaxPublish,
		backoff:              Backoff,
	}
}

// Process runs load, chunk, store and publish for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With().Str("job_id", job.ID).Str("doc_id", job.DocID).Logger()

	// Phase 1: Load pages.
	job.SetStatus(StatusLoading, "loading")
	doc, err := source.FromUpload(job.Document, job.Files(), w.loadOpt)
	if err != nil {
		log.Error().Err(err).Msg("load failed")
		job.AddError(fmt.Sprintf("load: %s", err))
		job.SetStatus(StatusFailed, "loading")
		return
	}
	job.releaseFiles()
	job.SetPages(len(doc.Pages))

	proc := w.proc
	if job.chunking != nil {
		proc, err = w.proc.WithChunking(*job.chunking)
		if err != nil {
			log.Error().Err(err).Msg("invalid chunking override")
			job.AddError(err.Error())
			job.SetStatus(StatusFailed, "chunking")
			return
		}
	}
	fp := proc.Fingerprint(doc)
	job.SetFingerprint(fp)

	// Phase 1.5: Reuse an identical earlier result.
	if w.store != nil {
		out, docID, err := w.findExisting(ctx, fp)
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("fingerprint lookup failed, proceeding")
		case out != nil:
			log.Info().Str("existing_doc_id", docID).Msg("identical document already chunked")
			job.SetDocID(docID)
			job.SetResult(out)
			job.SetStatus(StatusDupSkipped, "done")
			return
		}
	}

	// Phase 2: Chunk.
	job.SetStatus(StatusChunking, "chunking")
	start := time.Now()
	out := proc.Process(doc)
	w.latency.Record(time.Since(start), out.TotalChunks)
	job.SetResult(out)

	hadErrors := false

	// Phase 3: Store.
	if w.store != nil {
		job.SetStatus(StatusStoring, "storing")
		if err := w.save(ctx, job, fp, out); err != nil {
			log.Error().Err(err).Msg("store failed")
			job.AddError(fmt.Sprintf("store: %s", err))
			hadErrors = true
		}
	}

	// Phase 4: Publish.
	published := 0
	if w.nodes != nil && out.TotalChunks > 0 {
		job.SetStatus(StatusPublishing, "publishing")
		var failed int
		published, failed = w.publish(ctx, log, job, out)
		if failed > 0 {
			hadErrors = true
		}
	}

	switch {
	case hadErrors && (published > 0 || w.nodes == nil):
		job.SetStatus(StatusPartial, "done")
	case hadErrors:
		job.SetStatus(StatusFailed, "publishing")
	default:
		job.SetStatus(StatusCompleted, "done")
	}
	log.Info().
		Int("chunks", out.TotalChunks).
		Int("published", published).
		Str("status", string(job.Snapshot().Status)).
		Msg("job finished")
}

func (w *Worker) findExisting(ctx context.Context, fp string) (*Output, string, error) {
	rec, err := w.store.FindByFingerprint(ctx, fp)
	if errors.Is(err, store.ErrNotFound) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	var out Output
	if err := json.Unmarshal(rec.Output, &out); err != nil {
		return nil, "", fmt.Errorf("decode stored output %s: %w", rec.ID, err)
	}
	return &out, rec.ID, nil
}

func (w *Worker) save(ctx context.Context, job *Job, fp string, out *Output) error {
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	return w.store.Save(ctx, store.Record{
		ID:          job.DocID,
		Document:    out.Document,
		Fingerprint: fp,
		TotalChunks: out.TotalChunks,
		Output:      data,
		CreatedAt:   job.CreatedAt,
	})
}

// publish writes every chunk, a document meta node and next-chunk links,
// with bounded concurrency. It returns the counts of chunks written and
// chunks that failed.
func (w *Worker) publish(ctx context.Context, log zerolog.Logger, job *Job, out *Output) (int, int) {
	docPrefix := DocumentKey(w.prefix, job.DocID)
	origin := "pagechunk:" + job.DocID

	sem := make(chan struct{}, w.maxConcurrentPublish)
	type publishResult struct {
		idx int
		err error
	}
	results := make(chan publishResult, len(out.Chunks))

	for i, c := range out.Chunks {
		sem <- struct{}{}
		go func(i int, c doctree.Chunk) {
			defer func() { <-sem }()
			err := retry(ctx, log, w.backoff, func() error {
				return w.nodes.PutNode(ctx, docPrefix+"/chunks/"+c.ID, pathstore.NodeRequest{
					Value:      c,
					MemoryType: "semantic",
					Salience:   salience(c),
					Source:     origin,
				})
			})
			results <- publishResult{idx: i, err: err}
		}(i, c)
	}

	ok := make([]bool, len(out.Chunks))
	published, failed := 0, 0
	for range out.Chunks {
		r := <-results
		if r.err != nil {
			log.Error().Err(r.err).Str("chunk_id", out.Chunks[r.idx].ID).Msg("publish failed")
			job.AddError(fmt.Sprintf("publish %s: %s", out.Chunks[r.idx].ID, r.err))
			failed++
			continue
		}
		ok[r.idx] = true
		published++
		job.IncrPublished()
	}

	for i := 1; i < len(out.Chunks); i++ {
		if !ok[i-1] || !ok[i] {
			continue
		}
		err := w.nodes.PutLink(ctx, pathstore.LinkRequest{
			From:    docPrefix + "/chunks/" + out.Chunks[i-1].ID,
			To:      docPrefix + "/chunks/" + out.Chunks[i].ID,
			Weight:  1.0,
			Summary: "next",
		})
		if err != nil {
			log.Warn().Err(err).Int("chunk", i).Msg("link write failed")
		}
	}

	metaErr := retry(ctx, log, w.backoff, func() error {
		return w.nodes.PutNode(ctx, docPrefix+"/meta", pathstore.NodeRequest{
			Value: map[string]any{
				"document":     out.Document,
				"fingerprint":  job.Snapshot().Fingerprint,
				"total_chunks": out.TotalChunks,
				"published":    published,
				"created_at":   job.CreatedAt.Format(time.RFC3339),
			},
			MemoryType: "metacognitive",
			Salience:   0.5,
			Source:     origin,
		})
	})
	if metaErr != nil {
		log.Error().Err(metaErr).Msg("meta write failed")
		job.AddError(fmt.Sprintf("meta: %s", metaErr))
	}
	return published, failed
}

// DocumentKey is the pathstore key under which a document's chunks live.
func DocumentKey(prefix, docID string) string {
	return prefix + "/documents/" + docID
}

// salience favours chunks carrying structure or data over plain prose.
func salience(c doctree.Chunk) float64 {
	s := 0.3
	q := c.Metadata.Quality
	if q.AtomicBlocks > 0 {
		s += 0.1
	}
	if q.HasNumericData || q.HasDates {
		s += 0.1
	}
	if len(c.Metadata.Breadcrumbs) > 0 {
		s += 0.1
	}
	return s
}
