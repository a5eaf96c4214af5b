package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	apperrors "github.com/louisbranch/spinout/internal/platform/errors"
)

func TestAcquireIsExclusiveUntilRelease(t *testing.T) {
	manager := NewManager(30 * time.Second)

	if !manager.Acquire("sess-1", 0) {
		t.Fatal("expected first acquire to succeed")
	}
	if manager.Acquire("sess-1", 0) {
		t.Fatal("expected second acquire to fail while lease is live")
	}
	if !manager.Acquire("sess-2", 0) {
		t.Fatal("expected independent key to acquire")
	}

	manager.Release("sess-1")
	if !manager.Acquire("sess-1", 0) {
		t.Fatal("expected acquire after release")
	}
}

func TestAcquireAfterTTLExpiry(t *testing.T) {
	manager := NewManager(30 * time.Second)
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	manager.clock = func() time.Time { return now }

	if !manager.Acquire("sess-1", time.Second) {
		t.Fatal("expected acquire")
	}
	if manager.Acquire("sess-1", time.Second) {
		t.Fatal("expected held lease to block")
	}

	now = now.Add(2 * time.Second)
	if !manager.Acquire("sess-1", time.Second) {
		t.Fatal("expected expired lease to be stealable")
	}
}

func TestDoSerializesInSubmissionOrder(t *testing.T) {
	manager := NewManager(30 * time.Second)

	const workers = 8
	var mu sync.Mutex
	var order []int
	var inCritical int

	ready := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			<-ready
			// Stagger submissions so queue order is deterministic.
			time.Sleep(time.Duration(i) * 20 * time.Millisecond)
			err := manager.Do(context.Background(), "sess-1", func(context.Context) error {
				mu.Lock()
				inCritical++
				if inCritical != 1 {
					t.Error("critical section overlap")
				}
				order = append(order, i)
				inCritical--
				mu.Unlock()
				return nil
			})
			if err != nil {
				t.Errorf("do: %v", err)
			}
		}()
	}
	close(ready)
	wg.Wait()

	for i, got := range order {
		if got != i {
			t.Fatalf("expected FIFO order, got %v", order)
		}
	}
}

func TestDoFailureDoesNotStallQueue(t *testing.T) {
	manager := NewManager(30 * time.Second)
	ctx := context.Background()

	err := manager.Do(ctx, "sess-1", func(context.Context) error {
		return apperrors.New(apperrors.CodeInvalidTarget, "bad kick")
	})
	if apperrors.CodeOf(err) != apperrors.CodeInvalidTarget {
		t.Fatalf("expected fn error surfaced, got %v", err)
	}

	ran := false
	if err := manager.Do(ctx, "sess-1", func(context.Context) error {
		ran = true
		return nil
	}); err != nil {
		t.Fatalf("follow-up do: %v", err)
	}
	if !ran {
		t.Fatal("expected follow-up action to run after a failed one")
	}
}

func TestDoContextExpiryReturnsBusy(t *testing.T) {
	manager := NewManager(30 * time.Second)

	holding := make(chan struct{})
	releaseHold := make(chan struct{})
	go func() {
		_ = manager.Do(context.Background(), "sess-1", func(context.Context) error {
			close(holding)
			<-releaseHold
			return nil
		})
	}()
	<-holding

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := manager.Do(ctx, "sess-1", func(context.Context) error { return nil })
	if apperrors.CodeOf(err) != apperrors.CodeBusyTryAgain {
		t.Fatalf("expected BUSY_TRY_AGAIN, got %v", err)
	}

	close(releaseHold)

	// The abandoned queue link must not stall later actions.
	done := make(chan error, 1)
	go func() {
		done <- manager.Do(context.Background(), "sess-1", func(context.Context) error { return nil })
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("later do: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("queue stalled after abandoned waiter")
	}
}

func TestDoLeaseBlocksAcquireDuringCriticalSection(t *testing.T) {
	manager := NewManager(30 * time.Second)

	err := manager.Do(context.Background(), "sess-1", func(context.Context) error {
		if manager.Acquire("sess-1", 0) {
			t.Error("expected Acquire to fail inside critical section")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if !manager.Acquire("sess-1", 0) {
		t.Fatal("expected acquire after Do completes")
	}
}
