package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/docslot/internal/config"
	"github.com/dgallion1/docslot/internal/engine"
	"github.com/dgallion1/docslot/internal/store"
)

// Orchestrator manages the document processing pipeline.
type Orchestrator struct {
	jobs   *JobStore
	queue  chan *Job
	engine *engine.Engine
	store  *store.Store
	log    *slog.Logger
	cfg    config.Config

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline; Start launches its workers.
func NewOrchestrator(cfg config.Config, eng *engine.Engine, st *store.Store, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:   NewJobStore(cfg.JobTTL),
		queue:  make(chan *Job, cfg.MaxQueueSize),
		engine: eng,
		store:  st,
		log:    log,
		cfg:    cfg,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.cfg.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.engine, o.store, o.log)
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

	// Evict expired jobs and the stored documents they left behind.
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
				o.cleanup(workerCtx)
			}
		}
	}()
}

func (o *Orchestrator) cleanup(ctx context.Context) {
	o.jobs.Cleanup()
	n, err := o.store.Purge(ctx, time.Now().Add(-o.cfg.JobTTL))
	if err != nil {
		o.log.Warn("purge failed", "error", err)
		return
	}
	if n > 0 {
		o.log.Info("purged expired documents", "rows", n)
	}
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.Fail("queue_full", "job queue is full")
		return fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Engine returns the engine for handlers that run synchronously.
func (o *Orchestrator) Engine() *engine.Engine {
	return o.engine
}

// Store returns the document store.
func (o *Orchestrator) Store() *store.Store {
	return o.store
}
