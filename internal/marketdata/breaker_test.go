package marketdata

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/saidmurad/cryptobot-sub000/internal/model"
)

func TestCircuitBreaker_StartsClosed(t *testing.T) {
	cb := NewCircuitBreaker(3, 100*time.Millisecond)
	if cb.CurrentState() != StateClosed {
		t.Errorf("expected Closed, got %v", cb.CurrentState())
	}
}

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	cb := NewCircuitBreaker(3, 100*time.Millisecond)
	errFail := errors.New("fail")

	for i := 0; i < 3; i++ {
		if err := cb.Execute(func() error { return errFail }); err != errFail {
			t.Fatalf("expected errFail, got %v", err)
		}
	}
	if cb.CurrentState() != StateOpen {
		t.Errorf("expected Open after 3 failures, got %v", cb.CurrentState())
	}

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	if err != ErrCircuitOpen || called {
		t.Errorf("expected fast ErrCircuitOpen, got %v (called=%v)", err, called)
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker(2, 50*time.Millisecond)
	errFail := errors.New("fail")
	for i := 0; i < 2; i++ {
		cb.Execute(func() error { return errFail })
	}

	time.Sleep(60 * time.Millisecond)

	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if cb.CurrentState() != StateClosed {
		t.Errorf("expected Closed after successful probe, got %v", cb.CurrentState())
	}
}

func TestCircuitBreaker_HalfOpenFailure(t *testing.T) {
	cb := NewCircuitBreaker(2, 50*time.Millisecond)
	errFail := errors.New("fail")
	for i := 0; i < 2; i++ {
		cb.Execute(func() error { return errFail })
	}

	time.Sleep(60 * time.Millisecond)
	cb.Execute(func() error { return errFail })

	if cb.CurrentState() != StateOpen {
		t.Errorf("expected Open after failed probe, got %v", cb.CurrentState())
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(3, 100*time.Millisecond)
	errFail := errors.New("fail")

	cb.Execute(func() error { return errFail })
	cb.Execute(func() error { return errFail })
	cb.Execute(func() error { return nil })
	cb.Execute(func() error { return errFail })
	cb.Execute(func() error { return errFail })

	if cb.CurrentState() != StateClosed {
		t.Errorf("expected Closed (counter should have reset), got %v", cb.CurrentState())
	}
}

func TestCircuitBreaker_IgnoresInvalidInstrument(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute)
	cb.IsFailure = IsTransportFailure

	err := cb.Execute(func() error { return fmt.Errorf("klines: %w", model.ErrInvalidInstrument) })
	if !errors.Is(err, model.ErrInvalidInstrument) {
		t.Fatalf("expected invalid instrument error, got %v", err)
	}
	if cb.CurrentState() != StateClosed {
		t.Errorf("invalid instrument must not trip the breaker, got %v", cb.CurrentState())
	}
}

func TestCircuitBreaker_OnStateChangeCallback(t *testing.T) {
	var transitions []State
	cb := NewCircuitBreaker(1, 50*time.Millisecond)
	cb.OnStateChange = func(from, to State) {
		transitions = append(transitions, to)
	}

	cb.Execute(func() error { return errors.New("fail") })
	if len(transitions) != 1 || transitions[0] != StateOpen {
		t.Errorf("expected [Open], got %v", transitions)
	}

	time.Sleep(60 * time.Millisecond)
	cb.Execute(func() error { return nil })

	if len(transitions) != 3 {
		t.Fatalf("expected 3 transitions, got %d: %v", len(transitions), transitions)
	}
	if transitions[1] != StateHalfOpen || transitions[2] != StateClosed {
		t.Errorf("expected [Open, HalfOpen, Closed], got %v", transitions)
	}
}
