package correlation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eiscp-protocol/eiscp-go/pkg/wire"
)

func TestDispatchToWaiter(t *testing.T) {
	table := NewTable()
	w := table.Register("PWR")

	if !table.Dispatch(wire.NewMessage("PWR", "01")) {
		t.Fatal("Dispatch should have found the waiter")
	}

	got, err := table.Await(context.Background(), w, time.Second)
	if err != nil {
		t.Fatalf("Await failed: %v", err)
	}
	if got.Parameter != "01" {
		t.Errorf("Parameter = %q, want 01", got.Parameter)
	}
	if table.Pending("PWR") != 0 {
		t.Errorf("Pending = %d after resolution", table.Pending("PWR"))
	}
}

func TestDispatchIgnoresUnrelatedPrefix(t *testing.T) {
	table := NewTable()
	w := table.Register("PWR")

	// A volume report while awaiting power must not resolve the waiter.
	if table.Dispatch(wire.NewMessage("MVL", "23")) {
		t.Error("Dispatch consumed a message with no waiter")
	}
	if table.Pending("PWR") != 1 {
		t.Errorf("Pending = %d, want 1", table.Pending("PWR"))
	}

	table.Cancel(w)
	if _, err := table.Await(context.Background(), w, time.Second); !errors.Is(err, ErrCancelled) {
		t.Errorf("err = %v, want ErrCancelled", err)
	}
}

func TestAwaitTimeout(t *testing.T) {
	table := NewTable()
	w := table.Register("MVL")

	start := time.Now()
	_, err := table.Await(context.Background(), w, 20*time.Millisecond)
	if !errors.Is(err, ErrAwaitTimeout) {
		t.Fatalf("err = %v, want ErrAwaitTimeout", err)
	}
	if time.Since(start) > time.Second {
		t.Error("timeout took far longer than requested")
	}

	// The timed-out waiter is gone; a late reply is not consumed by it.
	if table.Pending("MVL") != 0 {
		t.Errorf("Pending = %d after timeout", table.Pending("MVL"))
	}
	if table.Dispatch(wire.NewMessage("MVL", "30")) {
		t.Error("late reply was consumed by a dead waiter")
	}
}

func TestAwaitContextCancel(t *testing.T) {
	table := NewTable()
	w := table.Register("SLI")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := table.Await(ctx, w, time.Second); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestFIFOOrder(t *testing.T) {
	table := NewTable()
	first := table.Register("PRS")
	second := table.Register("PRS")

	table.Dispatch(wire.NewMessage("PRS", "01"))
	table.Dispatch(wire.NewMessage("PRS", "02"))

	got1, err := table.Await(context.Background(), first, time.Second)
	if err != nil {
		t.Fatalf("first Await failed: %v", err)
	}
	got2, err := table.Await(context.Background(), second, time.Second)
	if err != nil {
		t.Fatalf("second Await failed: %v", err)
	}
	if got1.Parameter != "01" || got2.Parameter != "02" {
		t.Errorf("replies delivered out of order: %q, %q", got1.Parameter, got2.Parameter)
	}
}

func TestFailAll(t *testing.T) {
	table := NewTable()
	w1 := table.Register("PWR")
	w2 := table.Register("MVL")

	failure := errors.New("connection lost")
	table.FailAll(failure)

	for _, w := range []*Waiter{w1, w2} {
		if _, err := table.Await(context.Background(), w, time.Second); !errors.Is(err, failure) {
			t.Errorf("err = %v, want %v", err, failure)
		}
	}
	if table.Pending("PWR") != 0 || table.Pending("MVL") != 0 {
		t.Error("waiters remained after FailAll")
	}
}

func TestConcurrentDispatchAndTimeout(t *testing.T) {
	table := NewTable()

	// Race arrival against a tiny timeout. Whichever wins, the waiter
	// resolves exactly once and Await returns a consistent outcome.
	for i := 0; i < 200; i++ {
		w := table.Register("PWR")
		go table.Dispatch(wire.NewMessage("PWR", "01"))

		got, err := table.Await(context.Background(), w, time.Millisecond)
		switch {
		case err == nil:
			if got.Parameter != "01" {
				t.Fatalf("Parameter = %q", got.Parameter)
			}
		case errors.Is(err, ErrAwaitTimeout):
		default:
			t.Fatalf("unexpected err %v", err)
		}
	}
}
