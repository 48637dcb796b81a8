package processing

import (
	"context"
	"testing"
)

func TestMemoryLedger(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()

	t.Run("claim is exclusive", func(t *testing.T) {
		claimed, err := ledger.TryMarkProcessing(ctx, "job-1")
		if err != nil || !claimed {
			t.Fatalf("first claim = (%v, %v), want (true, nil)", claimed, err)
		}
		claimed, err = ledger.TryMarkProcessing(ctx, "job-1")
		if err != nil || claimed {
			t.Errorf("second claim = (%v, %v), want (false, nil)", claimed, err)
		}
	})

	t.Run("completed jobs stay claimed", func(t *testing.T) {
		if err := ledger.MarkCompleted(ctx, "job-1"); err != nil {
			t.Fatalf("MarkCompleted failed: %v", err)
		}
		done, err := ledger.IsCompleted(ctx, "job-1")
		if err != nil || !done {
			t.Errorf("IsCompleted = (%v, %v), want (true, nil)", done, err)
		}
		claimed, err := ledger.TryMarkProcessing(ctx, "job-1")
		if err != nil || claimed {
			t.Errorf("claim after completion = (%v, %v), want (false, nil)", claimed, err)
		}
	})

	t.Run("failed jobs can be retried", func(t *testing.T) {
		claimed, _ := ledger.TryMarkProcessing(ctx, "job-2")
		if !claimed {
			t.Fatal("expected to claim job-2")
		}
		if err := ledger.MarkFailed(ctx, "job-2", "engine exploded"); err != nil {
			t.Fatalf("MarkFailed failed: %v", err)
		}
		done, _ := ledger.IsCompleted(ctx, "job-2")
		if done {
			t.Error("failed job reported completed")
		}
		claimed, err := ledger.TryMarkProcessing(ctx, "job-2")
		if err != nil || !claimed {
			t.Errorf("reclaim after failure = (%v, %v), want (true, nil)", claimed, err)
		}
	})

	t.Run("unknown job is not completed", func(t *testing.T) {
		done, err := ledger.IsCompleted(ctx, "never-seen")
		if err != nil || done {
			t.Errorf("IsCompleted = (%v, %v), want (false, nil)", done, err)
		}
	})
}
