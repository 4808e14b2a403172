package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dgallion1/pagechunk/internal/config"
)

var (
	// ErrQueueFull is returned by Submit when the job queue has no room.
	ErrQueueFull = errors.New("job queue is full")
	// ErrStopped is returned by Submit after Stop.
	ErrStopped = errors.New("orchestrator stopped")
)

// Orchestrator runs uploaded documents through a fixed pool of workers.
type Orchestrator struct {
	jobs    *JobStore
	queue   chan *Job
	proc    *Processor
	store   ResultStore
	nodes   NodeWriter
	latency *LatencyStats
	log     zerolog.Logger
	cfg     *config.Config

	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewOrchestrator creates the pipeline. st and nodes may be nil to disable
// storage and publishing.
func NewOrchestrator(cfg *config.Config, proc *Processor, st ResultStore, nodes NodeWriter, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:    NewJobStore(cfg.Pipeline.JobTTL),
		queue:   make(chan *Job, cfg.Pipeline.MaxQueueSize),
		proc:    proc,
		store:   st,
		nodes:   nodes,
		latency: NewLatencyStats(cfg.Pipeline.StatsWindow),
		log:     log.With().Str("component", "orchestrator").Logger(),
		cfg:     cfg,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for i := range o.cfg.Pipeline.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(WorkerDeps{
				Processor:  o.proc,
				Store:      o.store,
				Nodes:      o.nodes,
				Prefix:     o.cfg.Pathstore.Prefix,
				Source:     o.cfg.Source,
				Latency:    o.latency,
				MaxPublish: o.cfg.Pipeline.MaxConcurrentPublish,
				Log:        o.log.With().Int("worker", i).Logger(),
			})
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
	o.log.Info().Int("workers", o.cfg.Pipeline.WorkerCount).Msg("pipeline started")
}

// Stop cancels in-flight work and waits for the workers to exit.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	close(o.queue)
	o.mu.Unlock()

	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return ErrStopped
	}
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		o.log.Debug().Str("job_id", job.ID).Str("document", job.Document).Msg("job queued")
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("%w (%d)", ErrQueueFull, o.cfg.Pipeline.MaxQueueSize)
	}
}

// GetJob returns a job by ID, or nil.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// ActiveJobs returns the number of jobs still tracked.
func (o *Orchestrator) ActiveJobs() int {
	return o.jobs.Len()
}

// Latency returns processing latency over the stats window.
func (o *Orchestrator) Latency() LatencySnapshot {
	return o.latency.Snapshot()
}

// Processor returns the default processor.
func (o *Orchestrator) Processor() *Processor {
	return o.proc
}
