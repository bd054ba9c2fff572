package queue

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/leeforge/thumbnail/errors"
	"github.com/leeforge/thumbnail/logging"
	"github.com/leeforge/thumbnail/metrics"
	"github.com/leeforge/thumbnail/thumbnail"
)

// WarmFunc pre-renders the configured sizes of one image.
type WarmFunc func(ctx context.Context, id string) (*thumbnail.WarmReport, error)

// Job is one queued warm-up.
type Job struct {
	ID       string
	TraceID  string
	Callback func(Result)
}

// Result is the outcome of a Job.
type Result struct {
	ID     string
	Report *thumbnail.WarmReport
	Err    error
}

// Config sizes the pool.
type Config struct {
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
}

// Warmer runs warm-up jobs on a fixed pool of workers fed by a bounded queue.
type Warmer struct {
	cfg     Config
	warm    WarmFunc
	jobs    chan Job
	metrics *metrics.Collector
	logger  logging.Logger
	tracker *ProgressTracker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

func NewWarmer(cfg Config, warm WarmFunc, m *metrics.Collector, logger logging.Logger) *Warmer {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 5 * time.Minute
	}
	if logger == nil {
		logger = logging.Global()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Warmer{
		cfg:     cfg,
		warm:    warm,
		jobs:    make(chan Job, cfg.QueueSize),
		metrics: m,
		logger:  logger.Named("warmer"),
		tracker: NewProgressTracker(),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the workers.
func (w *Warmer) Start() {
	for i := 0; i < w.cfg.Workers; i++ {
		w.wg.Add(1)
		go w.worker(i)
	}
}

func (w *Warmer) worker(n int) {
	defer w.wg.Done()
	for job := range w.jobs {
		w.metrics.SetWarmQueueDepth(len(w.jobs))
		w.process(n, job)
	}
}

func (w *Warmer) process(worker int, job Job) {
	ctx, cancel := context.WithTimeout(w.ctx, w.cfg.JobTimeout)
	defer cancel()
	if job.TraceID != "" {
		ctx = logging.SetTraceID(ctx, job.TraceID)
	}

	report, err := w.warm(ctx, job.ID)
	res := Result{ID: job.ID, Report: report, Err: err}

	log := logging.WithContext(w.logger, ctx).With(zap.Int("worker", worker), zap.String("image_id", job.ID))
	if err != nil {
		w.tracker.IncrementFailed()
		log.Warn("warm job failed", zap.Error(err))
	} else {
		w.tracker.IncrementCompleted()
		log.Debug("warm job done")
	}

	if job.Callback != nil {
		job.Callback(res)
	}
}

// Submit enqueues job without blocking. A full queue or a stopped warmer
// yields an unavailable error.
func (w *Warmer) Submit(job Job) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return apperrors.NewUnavailable("warmer is shutting down")
	}

	select {
	case w.jobs <- job:
		w.tracker.IncrementSubmitted()
		w.metrics.SetWarmQueueDepth(len(w.jobs))
		return nil
	default:
		return apperrors.NewUnavailable("warm queue is full").WithDetail("capacity", w.cfg.QueueSize)
	}
}

// Stop refuses new jobs and waits for queued ones to finish. If ctx ends
// first the running jobs are cancelled and ctx.Err is returned.
func (w *Warmer) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.stopped {
		w.stopped = true
		close(w.jobs)
	}
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.cancel()
		return nil
	case <-ctx.Done():
		w.cancel()
		<-done
		return ctx.Err()
	}
}

// Pending returns the number of queued jobs not yet picked up.
func (w *Warmer) Pending() int {
	return len(w.jobs)
}

// Stats reports the job counters.
func (w *Warmer) Stats() Stats {
	s := w.tracker.Snapshot()
	s.Pending = w.Pending()
	return s
}

// WarmAll warms ids through the pool and waits for every result, in the
// order of ids.
func (w *Warmer) WarmAll(ctx context.Context, ids []string) ([]Result, error) {
	results := make([]Result, len(ids))
	var wg sync.WaitGroup

	for i, id := range ids {
		wg.Add(1)
		job := Job{ID: id, TraceID: logging.GetTraceID(ctx), Callback: func(r Result) {
			results[i] = r
			wg.Done()
		}}
		if err := w.Submit(job); err != nil {
			wg.Done()
			results[i] = Result{ID: id, Err: err}
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return results, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
