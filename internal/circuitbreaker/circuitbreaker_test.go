package circuitbreaker

import (
	"testing"
	"time"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := New(Config{FailureThreshold: 3, SuccessThreshold: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Second, BackoffMultiplier: 2, OpenTimeout: time.Hour})
	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	if b.State() != Open {
		t.Fatalf("expected Open after 3 failures, got %v", b.State())
	}
	if b.ShouldAllowRequest() {
		t.Fatal("expected request to be blocked while open and within timeout")
	}
}

func TestBreakerHalfOpenRecoversToClosed(t *testing.T) {
	b := New(Config{FailureThreshold: 1, SuccessThreshold: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Second, BackoffMultiplier: 2, OpenTimeout: time.Millisecond})
	b.RecordFailure()
	if b.State() != Open {
		t.Fatalf("expected Open, got %v", b.State())
	}

	time.Sleep(5 * time.Millisecond)
	if !b.ShouldAllowRequest() {
		t.Fatal("expected half-open trial request to be allowed after timeout")
	}
	if b.State() != HalfOpen {
		t.Fatalf("expected HalfOpen, got %v", b.State())
	}

	b.RecordSuccess()
	if b.State() != HalfOpen {
		t.Fatalf("expected still HalfOpen after 1 of 2 successes, got %v", b.State())
	}
	b.RecordSuccess()
	if b.State() != Closed {
		t.Fatalf("expected Closed after success threshold met, got %v", b.State())
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := New(Config{FailureThreshold: 1, SuccessThreshold: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Second, BackoffMultiplier: 2, OpenTimeout: time.Millisecond})
	b.RecordFailure()
	time.Sleep(5 * time.Millisecond)
	b.ShouldAllowRequest()
	if b.State() != HalfOpen {
		t.Fatalf("expected HalfOpen, got %v", b.State())
	}
	b.RecordFailure()
	if b.State() != Open {
		t.Fatalf("expected Open again after half-open failure, got %v", b.State())
	}
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	b := New(Config{FailureThreshold: 1, SuccessThreshold: 1, InitialBackoff: time.Second, MaxBackoff: 4 * time.Second, BackoffMultiplier: 2, OpenTimeout: time.Hour})
	b.RecordFailure()
	if h := b.Health().CurrentBackoff; h != time.Second {
		t.Errorf("expected initial backoff 1s, got %v", h)
	}
}
