package infra

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(failures, successes int, timeout time.Duration) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "CMC",
		FailureThreshold: failures,
		SuccessThreshold: successes,
		Timeout:          timeout,
	})
	cb.now = clock.Now
	return cb, clock
}

func TestCircuitBreaker_AllowInClosed(t *testing.T) {
	cb, _ := newTestBreaker(3, 1, time.Second)

	if !cb.Allow() {
		t.Error("Expected Allow() = true in CLOSED state")
	}
	if cb.State() != BreakerClosed {
		t.Errorf("Expected state CLOSED, got %s", cb.State())
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(3, 1, time.Minute)

	cb.RecordFailure()
	cb.RecordFailure()
	if cb.State() != BreakerClosed {
		t.Errorf("Expected CLOSED after 2 failures, got %s", cb.State())
	}

	cb.RecordFailure()
	if cb.State() != BreakerOpen {
		t.Errorf("Expected OPEN after 3 failures, got %s", cb.State())
	}
	if cb.Allow() {
		t.Error("Expected Allow() = false in OPEN state")
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb, _ := newTestBreaker(2, 1, time.Minute)

	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	if cb.State() != BreakerClosed {
		t.Errorf("non-consecutive failures must not open the breaker, got %s", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenAfterTimeout(t *testing.T) {
	cb, clock := newTestBreaker(1, 1, 30*time.Second)

	cb.RecordFailure()
	if cb.State() != BreakerOpen {
		t.Fatalf("Expected OPEN, got %s", cb.State())
	}

	clock.Advance(29 * time.Second)
	if cb.Allow() {
		t.Error("Expected Allow() = false before timeout")
	}

	clock.Advance(time.Second)
	if !cb.Allow() {
		t.Error("Expected Allow() = true after timeout")
	}
	if cb.State() != BreakerHalfOpen {
		t.Errorf("Expected HALF_OPEN, got %s", cb.State())
	}
}

func TestCircuitBreaker_ClosesOnSuccess(t *testing.T) {
	cb, clock := newTestBreaker(1, 2, time.Second)

	cb.RecordFailure()
	clock.Advance(time.Second)
	cb.Allow()

	cb.RecordSuccess()
	if cb.State() != BreakerHalfOpen {
		t.Errorf("Expected HALF_OPEN after 1 success, got %s", cb.State())
	}

	cb.RecordSuccess()
	if cb.State() != BreakerClosed {
		t.Errorf("Expected CLOSED after 2 successes, got %s", cb.State())
	}
}

func TestCircuitBreaker_ProbeFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(1, 2, time.Second)

	cb.RecordFailure()
	clock.Advance(time.Second)
	cb.Allow()
	cb.RecordFailure()

	if cb.State() != BreakerOpen {
		t.Errorf("Expected OPEN after failed probe, got %s", cb.State())
	}
	if cb.Allow() {
		t.Error("reopened breaker must wait a full timeout again")
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb, _ := newTestBreaker(1, 1, time.Hour)

	cb.RecordFailure()
	cb.Reset()

	if cb.State() != BreakerClosed {
		t.Errorf("Expected CLOSED after Reset, got %s", cb.State())
	}
}

func TestBreakerConfigFor(t *testing.T) {
	cfg, err := ParseConfig([]byte("engine:\n  breaker:\n    enabled: true\n    timeout_sec: 7\n"))
	if err != nil {
		t.Fatal(err)
	}

	bc := BreakerConfigFor("MOBULA", cfg)
	if bc.Name != "MOBULA" || bc.FailureThreshold != 5 || bc.SuccessThreshold != 2 || bc.Timeout != 7*time.Second {
		t.Errorf("unexpected breaker config: %+v", bc)
	}
}
