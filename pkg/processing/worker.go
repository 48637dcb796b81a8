package processing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Worker pool defaults.
const (
	DefaultWorkers    = 2
	DefaultJobTimeout = 30 * time.Minute
)

// WorkerConfig contains worker pool configuration.
type WorkerConfig struct {
	// Queue feeds envelopes to the pool.
	Queue Queue

	// Ledger deduplicates redelivered envelopes.
	Ledger Ledger

	// Registry resolves job types to handlers.
	Registry *Registry

	// Notifier receives terminal progress events. Optional.
	Notifier Notifier

	// Metrics tracks throughput. Optional.
	Metrics *Metrics

	// Workers is the pool size. Defaults to DefaultWorkers.
	Workers int

	// JobTimeout bounds a single handler run. Defaults to
	// DefaultJobTimeout.
	JobTimeout time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// ApplyDefaults fills in zero values.
func (c *WorkerConfig) ApplyDefaults() {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = DefaultJobTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Notifier == nil {
		c.Notifier = NewLogNotifier(c.Logger)
	}
}

// WorkerPool drains the queue with a fixed set of goroutines. Each
// envelope passes the ledger before its handler runs, so a redelivered
// or concurrently claimed job is skipped rather than processed twice.
type WorkerPool struct {
	cfg WorkerConfig

	mu        sync.Mutex
	started   bool
	cancel    context.CancelFunc
	stoppedCh chan struct{}
	wg        sync.WaitGroup
}

// NewWorkerPool creates a worker pool.
func NewWorkerPool(cfg WorkerConfig) *WorkerPool {
	cfg.ApplyDefaults()
	return &WorkerPool{cfg: cfg}
}

// Start launches the workers. The passed context scopes startup only;
// the pool runs until Stop.
func (p *WorkerPool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return fmt.Errorf("worker pool already started")
	}
	p.started = true

	runCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.stoppedCh = make(chan struct{})

	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(runCtx, i)
	}
	go func() {
		p.wg.Wait()
		close(p.stoppedCh)
	}()

	p.cfg.Logger.Info("job workers started", "workers", p.cfg.Workers)
	return nil
}

// Stop closes the queue, cancels in-flight handlers after the timeout
// elapses, and waits for the workers to exit.
func (p *WorkerPool) Stop(timeout time.Duration) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return nil
	}
	p.started = false
	cancel := p.cancel
	stoppedCh := p.stoppedCh
	p.mu.Unlock()

	// Closing the queue lets idle workers see the drained state and
	// exit; busy workers finish their current job first.
	if err := p.cfg.Queue.Close(); err != nil {
		p.cfg.Logger.Warn("failed to close job queue", "error", err)
	}

	select {
	case <-stoppedCh:
		cancel()
		return nil
	case <-time.After(timeout):
		cancel()
		select {
		case <-stoppedCh:
			return nil
		case <-time.After(5 * time.Second):
			return fmt.Errorf("job workers did not stop within %s", timeout)
		}
	}
}

// worker is the per-goroutine drain loop.
func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	logger := p.cfg.Logger.With("worker", id)

	for {
		env, err := p.cfg.Queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("failed to dequeue job", "error", err)
			continue
		}
		if env == nil {
			// Queue closed and drained.
			return
		}
		p.process(ctx, logger, env)
	}
}

// process runs one envelope through the ledger and its handler.
func (p *WorkerPool) process(ctx context.Context, logger *slog.Logger, env *JobEnvelope) {
	logger = logger.With("job_id", env.JobID, "job_type", env.Type)

	completed, err := p.cfg.Ledger.IsCompleted(ctx, env.JobID)
	if err != nil {
		logger.Error("failed to consult job ledger", "error", err)
		return
	}
	if completed {
		logger.Debug("skipping already completed job")
		p.cfg.Metrics.RecordDuplicate()
		return
	}

	claimed, err := p.cfg.Ledger.TryMarkProcessing(ctx, env.JobID)
	if err != nil {
		logger.Error("failed to claim job", "error", err)
		return
	}
	if !claimed {
		logger.Debug("skipping job claimed elsewhere")
		p.cfg.Metrics.RecordDuplicate()
		return
	}

	newPayload, handler, err := p.cfg.Registry.Resolve(env.Type)
	if err != nil {
		p.fail(ctx, logger, env, time.Now(), "unknown_type", err)
		return
	}

	payload := newPayload()
	if err := json.Unmarshal(env.PayloadJSON, payload); err != nil {
		p.fail(ctx, logger, env, time.Now(), "bad_payload",
			fmt.Errorf("failed to deserialize job payload: %w", err))
		return
	}

	started := time.Now()
	// Handlers run under their own deadline so a shutdown cancellation
	// still bounds, not truncates, the current job.
	jobCtx, cancelJob := context.WithTimeout(ctx, p.cfg.JobTimeout)
	err = handler.Handle(jobCtx, env.JobID, payload)
	cancelJob()
	if err != nil {
		p.fail(ctx, logger, env, started, "handler_error", err)
		return
	}

	if err := p.cfg.Ledger.MarkCompleted(ctx, env.JobID); err != nil {
		logger.Error("failed to record job completion", "error", err)
	}
	elapsed := time.Since(started)
	p.cfg.Metrics.RecordProcessed(env.Type, elapsed)
	p.cfg.Notifier.Publish(ctx, ProcessingProgress{
		JobID:           env.JobID,
		Stage:           "Completed",
		PercentComplete: 100,
		IsComplete:      true,
		IsSuccess:       true,
		Timestamp:       time.Now(),
	})
	logger.Info("job completed", "elapsed", elapsed)
}

// fail records a failed run and publishes the terminal event.
func (p *WorkerPool) fail(ctx context.Context, logger *slog.Logger, env *JobEnvelope, started time.Time, reason string, cause error) {
	if err := p.cfg.Ledger.MarkFailed(ctx, env.JobID, cause.Error()); err != nil {
		logger.Error("failed to record job failure", "error", err)
	}
	p.cfg.Metrics.RecordFailure(env.Type, reason, time.Since(started))
	logger.Warn("job failed", "reason", reason, "error", cause)
	p.cfg.Notifier.Publish(ctx, ProcessingProgress{
		JobID:        env.JobID,
		Stage:        "Failed",
		IsComplete:   true,
		IsSuccess:    false,
		ErrorMessage: cause.Error(),
		Timestamp:    time.Now(),
	})
}
