package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/dclobato/resilient-cache/cacheerrors"
)

func TestDisabledAlwaysClosed(t *testing.T) {
	b := New(Config{Enabled: false, Threshold: 1, Timeout: time.Second}, nil)
	b.RecordFailure()
	b.RecordFailure()
	if b.IsOpen() {
		t.Fatal("disabled breaker must never report open")
	}
	if got := b.State(); got != Closed {
		t.Fatalf("got %v, want CLOSED", got)
	}
}

// TestOpensAtThreshold covers P4 / scenario 3: N consecutive failures with
// N >= threshold opens the breaker and blocks further calls.
func TestOpensAtThreshold(t *testing.T) {
	b := New(Config{Enabled: true, Threshold: 2, Timeout: 60 * time.Second}, nil)

	b.RecordFailure()
	if b.IsOpen() {
		t.Fatal("breaker opened before reaching threshold")
	}

	b.RecordFailure()
	if !b.IsOpen() {
		t.Fatal("breaker did not open at threshold")
	}
}

func TestThresholdOneOpensOnSingleFailure(t *testing.T) {
	b := New(Config{Enabled: true, Threshold: 1, Timeout: 60 * time.Second}, nil)
	b.RecordFailure()
	if !b.IsOpen() {
		t.Fatal("threshold=1 breaker did not open on first failure")
	}
}

// TestHalfOpenRecovery covers scenario 4: after timeout elapses, state reads
// as HALF_OPEN, and a success there closes the circuit.
func TestHalfOpenRecovery(t *testing.T) {
	b := New(Config{Enabled: true, Threshold: 1, Timeout: 50 * time.Millisecond}, nil)

	b.RecordFailure()
	if !b.IsOpen() {
		t.Fatal("expected OPEN after failure")
	}

	time.Sleep(60 * time.Millisecond)

	if got := b.State(); got != HalfOpen {
		t.Fatalf("got %v, want HALF_OPEN after timeout", got)
	}

	b.RecordSuccess()
	if got := b.State(); got != Closed {
		t.Fatalf("got %v, want CLOSED after success in half-open", got)
	}
	if b.Stats().FailureCount != 0 {
		t.Fatalf("failure count not reset after recovery")
	}
}

func TestHalfOpenFailureReopensImmediately(t *testing.T) {
	b := New(Config{Enabled: true, Threshold: 5, Timeout: 30 * time.Millisecond}, nil)

	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}
	time.Sleep(40 * time.Millisecond)
	if got := b.State(); got != HalfOpen {
		t.Fatalf("got %v, want HALF_OPEN", got)
	}

	b.RecordFailure()
	if got := b.State(); got != Open {
		t.Fatalf("got %v, want OPEN: a half-open failure must reopen regardless of threshold", got)
	}
}

func TestSuccessResetsCounterInClosed(t *testing.T) {
	b := New(Config{Enabled: true, Threshold: 3, Timeout: time.Second}, nil)
	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	if got := b.Stats().FailureCount; got != 0 {
		t.Fatalf("got failure count %d, want 0 after success", got)
	}
	b.RecordFailure()
	b.RecordFailure()
	if b.IsOpen() {
		t.Fatal("breaker should not be open: counter was reset by the earlier success")
	}
}

func TestReset(t *testing.T) {
	b := New(Config{Enabled: true, Threshold: 1, Timeout: time.Second}, nil)
	b.RecordFailure()
	if !b.IsOpen() {
		t.Fatal("expected OPEN before reset")
	}
	b.Reset()
	if got := b.State(); got != Closed {
		t.Fatalf("got %v, want CLOSED after reset", got)
	}
	if b.Stats().FailureCount != 0 {
		t.Fatal("reset must zero the failure counter")
	}
}

func TestExecuteOpenRejectsWithoutCallingFn(t *testing.T) {
	b := New(Config{Enabled: true, Threshold: 1, Timeout: time.Hour}, nil)
	b.RecordFailure()

	called := false
	err := b.Execute("L2", func() error {
		called = true
		return nil
	})

	if called {
		t.Fatal("Execute must not invoke fn while the circuit is open")
	}

	var openErr *cacheerrors.CircuitBreakerOpen
	if !errors.As(err, &openErr) {
		t.Fatalf("expected CircuitBreakerOpen, got %v", err)
	}
	if openErr.Backend != "L2" {
		t.Fatalf("got backend %q, want L2", openErr.Backend)
	}
}

func TestExecuteRecordsOutcome(t *testing.T) {
	b := New(Config{Enabled: true, Threshold: 2, Timeout: time.Second}, nil)

	boom := errors.New("boom")
	_ = b.Execute("L2", func() error { return boom })
	if b.Stats().FailureCount != 1 {
		t.Fatalf("expected failure to be recorded")
	}

	_ = b.Execute("L2", func() error { return nil })
	if b.Stats().FailureCount != 0 {
		t.Fatalf("expected success to reset the counter")
	}
}

func TestConfigValidate(t *testing.T) {
	if err := (Config{Enabled: true, Threshold: 0, Timeout: time.Second}).Validate(); err == nil {
		t.Fatal("expected error for threshold < 1")
	}
	if err := (Config{Enabled: true, Threshold: 1, Timeout: 0}).Validate(); err == nil {
		t.Fatal("expected error for timeout < 1s")
	}
	if err := (Config{Enabled: false, Threshold: 0, Timeout: 0}).Validate(); err != nil {
		t.Fatalf("disabled config should skip validation, got %v", err)
	}
}
