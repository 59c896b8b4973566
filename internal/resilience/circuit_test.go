package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errUpstream = NewTransientError(errors.New("upstream down"), 503)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(threshold int) (*Breaker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := NewBreaker("test", BreakerConfig{FailureThreshold: threshold, ResetTimeout: time.Minute})
	b.now = clock.Now
	return b, clock
}

func fail(context.Context) error { return errUpstream }
func pass(context.Context) error { return nil }

func TestBreaker_ClosedPassesThrough(t *testing.T) {
	b, _ := newTestBreaker(3)
	if err := b.Execute(context.Background(), pass); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.State() != CircuitClosed {
		t.Errorf("expected closed, got %s", b.State())
	}
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(3)
	for i := 0; i < 3; i++ {
		_ = b.Execute(context.Background(), fail)
	}
	if b.State() != CircuitOpen {
		t.Fatalf("expected open, got %s", b.State())
	}

	err := b.Execute(context.Background(), func(context.Context) error {
		t.Error("upstream called while open")
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	b, _ := newTestBreaker(3)
	_ = b.Execute(context.Background(), fail)
	_ = b.Execute(context.Background(), fail)
	if b.Failures() != 2 {
		t.Fatalf("expected 2 failures, got %d", b.Failures())
	}
	_ = b.Execute(context.Background(), pass)
	if b.Failures() != 0 {
		t.Errorf("expected failures reset, got %d", b.Failures())
	}
}

func TestBreaker_PermanentErrorsDoNotTrip(t *testing.T) {
	b, _ := newTestBreaker(1)
	for i := 0; i < 5; i++ {
		_ = b.Execute(context.Background(), func(context.Context) error { return errors.New("bad request") })
	}
	if b.State() != CircuitClosed {
		t.Errorf("expected closed, got %s", b.State())
	}
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	b, clock := newTestBreaker(1)
	_ = b.Execute(context.Background(), fail)
	if b.State() != CircuitOpen {
		t.Fatalf("expected open, got %s", b.State())
	}

	clock.Advance(time.Minute)
	if b.State() != CircuitHalfOpen {
		t.Fatalf("expected half-open after timeout, got %s", b.State())
	}

	// Failed probe reopens.
	if err := b.Execute(context.Background(), fail); !errors.Is(err, errUpstream) {
		t.Fatalf("expected upstream error from probe, got %v", err)
	}
	if b.State() != CircuitOpen {
		t.Fatalf("expected reopened, got %s", b.State())
	}

	clock.Advance(time.Minute)
	if err := b.Execute(context.Background(), pass); err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if b.State() != CircuitClosed {
		t.Errorf("expected closed after good probe, got %s", b.State())
	}
}

func TestBreaker_SingleProbeInFlight(t *testing.T) {
	b, clock := newTestBreaker(1)
	_ = b.Execute(context.Background(), fail)
	clock.Advance(time.Minute)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- b.Execute(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	if err := b.Execute(context.Background(), pass); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected second probe rejected, got %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("probe failed: %v", err)
	}
}

func TestExecuteVal(t *testing.T) {
	b, _ := newTestBreaker(2)
	v, err := ExecuteVal(context.Background(), b, func(context.Context) (string, error) {
		return "ok", nil
	})
	if err != nil || v != "ok" {
		t.Fatalf("got %q, %v", v, err)
	}
}

func TestCircuitState_String(t *testing.T) {
	for state, want := range map[CircuitState]string{
		CircuitClosed:    "closed",
		CircuitOpen:      "open",
		CircuitHalfOpen:  "half-open",
		CircuitState(99): "unknown",
	} {
		if state.String() != want {
			t.Errorf("%d: got %q, want %q", state, state.String(), want)
		}
	}
}

func TestSettings_Breaker(t *testing.T) {
	b := Settings{FailureThreshold: 2}.Breaker("denue")
	if b.cfg.FailureThreshold != 2 {
		t.Errorf("threshold not applied: %d", b.cfg.FailureThreshold)
	}
	if b.cfg.ResetTimeout != DefaultBreakerConfig().ResetTimeout {
		t.Errorf("expected default reset timeout, got %v", b.cfg.ResetTimeout)
	}
}
