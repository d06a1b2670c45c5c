package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glimpser/glimpser-go/internal/model"
)

func TestTryAcquireRejectsSecondHolder(t *testing.T) {
	store := NewInMemoryLockStore()
	m1 := NewLockManager(store, time.Minute)
	m2 := NewLockManager(store, time.Minute)

	lock, err := m1.TryAcquire(context.Background(), "job1", "exec1")
	if err != nil || lock == nil {
		t.Fatalf("expected first acquire to succeed, got lock=%v err=%v", lock, err)
	}

	second, err := m2.TryAcquire(context.Background(), "job1", "exec2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second != nil {
		t.Fatal("expected second acquire to be rejected while first lock is live")
	}
}

func TestTryAcquireSucceedsAfterExpiry(t *testing.T) {
	store := NewInMemoryLockStore()
	m := NewLockManager(store, time.Millisecond)

	lock1, _ := m.TryAcquire(context.Background(), "job1", "exec1")
	if lock1 == nil {
		t.Fatal("expected first acquire to succeed")
	}
	time.Sleep(5 * time.Millisecond)

	lock2, err := m.TryAcquire(context.Background(), "job1", "exec2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lock2 == nil {
		t.Fatal("expected acquire to succeed once previous lease expired")
	}
}

func TestReleaseByWrongInstanceFails(t *testing.T) {
	store := NewInMemoryLockStore()
	m1 := NewLockManager(store, time.Minute)
	lock, _ := m1.TryAcquire(context.Background(), "job1", "exec1")

	other := NewLockManager(store, time.Minute)
	other.instanceID = "someone-else:1"
	if err := other.Release(context.Background(), lock); err == nil {
		t.Fatal("expected release by mismatched instance id to fail")
	}
}

func TestRunnerCompletesSuccessfulJob(t *testing.T) {
	store := NewInMemoryLockStore()
	runner := NewRunner(NewLockManager(store, time.Minute))

	def := model.JobDefinition{ID: "retention-sweep", TimeoutMs: 1000, GracePeriodMs: 100}
	exec, err := runner.Run(context.Background(), def, func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exec.Status != model.JobCompleted {
		t.Fatalf("expected JobCompleted, got %v", exec.Status)
	}
}

func TestRunnerTimesOutAndAbandons(t *testing.T) {
	store := NewInMemoryLockStore()
	runner := NewRunner(NewLockManager(store, time.Minute))

	def := model.JobDefinition{ID: "slow-job", TimeoutMs: 5, GracePeriodMs: 5}
	exec, err := runner.Run(context.Background(), def, func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return errors.New("cancelled late")
	})
	if exec.Status != model.JobTimedOut {
		t.Fatalf("expected JobTimedOut, got %v", exec.Status)
	}
	if err == nil {
		t.Fatal("expected deadline-exceeded error")
	}
}
