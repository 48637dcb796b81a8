package processing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// Key layout inside the shared database:
//
//	queue/{seq:020d}   -> JobEnvelope JSON, FIFO by sequence
//	ledger/{jobId}     -> ledgerRecord JSON
var (
	queueKeyPrefix  = []byte("queue/")
	ledgerKeyPrefix = []byte("ledger/")
)

// OpenDB opens (or creates) the badger database backing the durable
// queue and ledger. The caller owns the returned handle and closes it
// after stopping the workers.
func OpenDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open job database at %s: %w", path, err)
	}
	return db, nil
}

// ============================================================================
// BadgerQueue
// ============================================================================

// BadgerQueue is a durable FIFO queue. Envelopes survive a restart;
// ordering follows a monotonic sequence assigned at enqueue time.
type BadgerQueue struct {
	db      *badger.DB
	mu      sync.Mutex
	cond    *sync.Cond
	nextSeq uint64
	pending int
	closed  bool
}

// NewBadgerQueue creates a queue over an open database, recovering any
// envelopes left from a previous run.
func NewBadgerQueue(db *badger.DB) (*BadgerQueue, error) {
	q := &BadgerQueue{db: db}
	q.cond = sync.NewCond(&q.mu)

	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = queueKeyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			q.pending++
			var seq uint64
			if _, err := fmt.Sscanf(string(it.Item().Key()), "queue/%d", &seq); err == nil && seq >= q.nextSeq {
				q.nextSeq = seq + 1
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to recover job queue: %w", err)
	}
	return q, nil
}

func queueKey(seq uint64) []byte {
	return fmt.Appendf(nil, "queue/%020d", seq)
}

// Enqueue persists the envelope at the tail of the queue.
func (q *BadgerQueue) Enqueue(ctx context.Context, env *JobEnvelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to serialize job envelope: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	seq := q.nextSeq
	if err := q.db.Update(func(txn *badger.Txn) error {
		return txn.Set(queueKey(seq), raw)
	}); err != nil {
		return fmt.Errorf("failed to persist job envelope: %w", err)
	}
	q.nextSeq++
	q.pending++
	q.cond.Signal()
	return nil
}

// Dequeue removes and returns the oldest envelope, blocking until one
// arrives, the context is cancelled, or the queue is closed and drained.
func (q *BadgerQueue) Dequeue(ctx context.Context) (*JobEnvelope, error) {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if q.pending > 0 {
			env, err := q.popLocked()
			if err != nil {
				return nil, err
			}
			if env != nil {
				q.pending--
				return env, nil
			}
			// Counter drift after a partial recovery; resync and wait.
			q.pending = 0
		}
		if q.closed {
			return nil, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		q.cond.Wait()
	}
}

// popLocked removes the smallest queue key. Returns nil when the prefix
// is empty.
func (q *BadgerQueue) popLocked() (*JobEnvelope, error) {
	var env *JobEnvelope
	err := q.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = queueKeyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		it.Rewind()
		if !it.Valid() {
			return nil
		}
		item := it.Item()
		key := item.KeyCopy(nil)
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		var decoded JobEnvelope
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return fmt.Errorf("corrupt job envelope at %s: %w", key, err)
		}
		env = &decoded
		return txn.Delete(key)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue job envelope: %w", err)
	}
	return env, nil
}

// Len returns the number of queued envelopes.
func (q *BadgerQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

// Close stops accepting envelopes. Persisted envelopes remain
// dequeueable until drained; undrained ones are recovered next start.
func (q *BadgerQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
	return nil
}

// ============================================================================
// BadgerLedger
// ============================================================================

type ledgerRecord struct {
	State     JobState  `json:"state"`
	Reason    string    `json:"reason,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BadgerLedger is a durable Ledger, typically sharing the database with
// a BadgerQueue so completed jobs stay deduplicated across restarts.
type BadgerLedger struct {
	db *badger.DB
}

// NewBadgerLedger creates a ledger over an open database.
func NewBadgerLedger(db *badger.DB) *BadgerLedger {
	return &BadgerLedger{db: db}
}

func ledgerKey(jobID string) []byte {
	return []byte("ledger/" + jobID)
}

func (l *BadgerLedger) read(txn *badger.Txn, jobID string) (*ledgerRecord, error) {
	item, err := txn.Get(ledgerKey(jobID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec ledgerRecord
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	}); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (l *BadgerLedger) write(txn *badger.Txn, jobID string, rec ledgerRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return txn.Set(ledgerKey(jobID), raw)
}

// TryMarkProcessing claims the job. Returns false for jobs that are
// already processing or completed.
func (l *BadgerLedger) TryMarkProcessing(ctx context.Context, jobID string) (bool, error) {
	claimed := false
	err := l.db.Update(func(txn *badger.Txn) error {
		rec, err := l.read(txn, jobID)
		if err != nil {
			return err
		}
		if rec != nil && (rec.State == JobStateProcessing || rec.State == JobStateCompleted) {
			return nil
		}
		claimed = true
		return l.write(txn, jobID, ledgerRecord{State: JobStateProcessing, UpdatedAt: time.Now()})
	})
	if err != nil {
		return false, fmt.Errorf("failed to claim job %s: %w", jobID, err)
	}
	return claimed, nil
}

// MarkCompleted records a successful run.
func (l *BadgerLedger) MarkCompleted(ctx context.Context, jobID string) error {
	err := l.db.Update(func(txn *badger.Txn) error {
		return l.write(txn, jobID, ledgerRecord{State: JobStateCompleted, UpdatedAt: time.Now()})
	})
	if err != nil {
		return fmt.Errorf("failed to record job completion for %s: %w", jobID, err)
	}
	return nil
}

// MarkFailed records a failed run. The job may be claimed again.
func (l *BadgerLedger) MarkFailed(ctx context.Context, jobID string, reason string) error {
	err := l.db.Update(func(txn *badger.Txn) error {
		return l.write(txn, jobID, ledgerRecord{State: JobStateFailed, Reason: reason, UpdatedAt: time.Now()})
	})
	if err != nil {
		return fmt.Errorf("failed to record job failure for %s: %w", jobID, err)
	}
	return nil
}

// IsCompleted reports whether the job already finished successfully.
func (l *BadgerLedger) IsCompleted(ctx context.Context, jobID string) (bool, error) {
	completed := false
	err := l.db.View(func(txn *badger.Txn) error {
		rec, err := l.read(txn, jobID)
		if err != nil {
			return err
		}
		completed = rec != nil && rec.State == JobStateCompleted
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to read ledger entry for %s: %w", jobID, err)
	}
	return completed, nil
}
