package processing

import (
	"context"
	"sync"
	"time"
)

// JobState is the ledger-side lifecycle of a job id.
type JobState int

const (
	// JobStateUnknown means the ledger has never seen the job id.
	JobStateUnknown JobState = iota
	// JobStateProcessing means a worker holds the job.
	JobStateProcessing
	// JobStateCompleted means the job finished successfully. Completed
	// jobs are never re-run.
	JobStateCompleted
	// JobStateFailed means the last attempt failed. Failed jobs may be
	// claimed again on redelivery.
	JobStateFailed
)

// String returns the state name.
func (s JobState) String() string {
	switch s {
	case JobStateProcessing:
		return "processing"
	case JobStateCompleted:
		return "completed"
	case JobStateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Ledger tracks job outcomes so redelivered envelopes are not processed
// twice. TryMarkProcessing is the claim: it returns false when the job
// is already held or already completed, and succeeds again after a
// failure so failed jobs can be retried.
type Ledger interface {
	TryMarkProcessing(ctx context.Context, jobID string) (bool, error)
	MarkCompleted(ctx context.Context, jobID string) error
	MarkFailed(ctx context.Context, jobID string, reason string) error
	IsCompleted(ctx context.Context, jobID string) (bool, error)
}

type ledgerEntry struct {
	state     JobState
	reason    string
	updatedAt time.Time
}

// MemoryLedger is an in-process Ledger.
type MemoryLedger struct {
	mu      sync.Mutex
	entries map[string]ledgerEntry
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{entries: make(map[string]ledgerEntry)}
}

// TryMarkProcessing claims the job. Returns false for jobs that are
// already processing or completed.
func (l *MemoryLedger) TryMarkProcessing(ctx context.Context, jobID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry := l.entries[jobID]
	if entry.state == JobStateProcessing || entry.state == JobStateCompleted {
		return false, nil
	}
	l.entries[jobID] = ledgerEntry{state: JobStateProcessing, updatedAt: time.Now()}
	return true, nil
}

// MarkCompleted records a successful run.
func (l *MemoryLedger) MarkCompleted(ctx context.Context, jobID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[jobID] = ledgerEntry{state: JobStateCompleted, updatedAt: time.Now()}
	return nil
}

// MarkFailed records a failed run. The job may be claimed again.
func (l *MemoryLedger) MarkFailed(ctx context.Context, jobID string, reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[jobID] = ledgerEntry{state: JobStateFailed, reason: reason, updatedAt: time.Now()}
	return nil
}

// IsCompleted reports whether the job already finished successfully.
func (l *MemoryLedger) IsCompleted(ctx context.Context, jobID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entries[jobID].state == JobStateCompleted, nil
}

// State returns the recorded state, for tests and diagnostics.
func (l *MemoryLedger) State(jobID string) JobState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entries[jobID].state
}
