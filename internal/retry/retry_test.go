package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

/**
 * Test that Do stops after the first success
 * @param {*testing.T} t - Testing framework instance
 */
func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Fixed(3, 0), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

/**
 * Test that transient failures consume the full attempt budget
 * @param {*testing.T} t - Testing framework instance
 */
func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	transient := errors.New("transient")
	err := Do(context.Background(), Fixed(3, 0), func() error {
		calls++
		return transient
	})
	if err == nil {
		t.Fatal("Do should fail when every attempt fails")
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
	if !errors.Is(err, transient) {
		t.Errorf("Final error should wrap the last failure, got %v", err)
	}
}

/**
 * Test that Do recovers when a later attempt succeeds
 * @param {*testing.T} t - Testing framework instance
 */
func TestDoRecoversMidway(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Fixed(3, 0), func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

/**
 * Test that permanent failures abort immediately
 * @param {*testing.T} t - Testing framework instance
 */
func TestDoPermanentAborts(t *testing.T) {
	calls := 0
	cause := errors.New("missing binary")
	err := Do(context.Background(), Fixed(5, 0), func() error {
		calls++
		return Permanent(cause)
	})
	if calls != 1 {
		t.Errorf("Permanent failure should stop after 1 call, got %d", calls)
	}
	if !IsPermanent(err) {
		t.Error("Returned error should still test as permanent")
	}
	if !errors.Is(err, cause) {
		t.Errorf("Returned error should wrap the cause, got %v", err)
	}
}

/**
 * Test that Permanent passes nil through
 * @param {*testing.T} t - Testing framework instance
 */
func TestPermanentNil(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
	if IsPermanent(errors.New("plain")) {
		t.Error("Plain errors should not test as permanent")
	}
}

/**
 * Test that context cancellation interrupts the delay
 * @param {*testing.T} t - Testing framework instance
 */
func TestDoContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := Do(ctx, Fixed(5, time.Minute), func() error {
		calls++
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call before cancellation, got %d", calls)
	}
}

/**
 * Test that the backoff multiplier grows the delay
 * @param {*testing.T} t - Testing framework instance
 */
func TestDoExponentialBackoff(t *testing.T) {
	start := time.Now()
	calls := 0
	_ = Do(context.Background(), Exponential(3, 10*time.Millisecond, 2), func() error {
		calls++
		return errors.New("transient")
	})
	elapsed := time.Since(start)
	if calls != 3 {
		t.Fatalf("Expected 3 calls, got %d", calls)
	}
	// Delays are 10ms then 20ms
	if elapsed < 30*time.Millisecond {
		t.Errorf("Expected at least 30ms of backoff, got %v", elapsed)
	}
}
