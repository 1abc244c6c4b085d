package connection

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestBackoffSequence(t *testing.T) {
	b := NewBackoffWithConfig(BackoffConfig{Jitter: 0})

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		32 * time.Second,
		60 * time.Second,
		60 * time.Second, // capped
	}
	for i, expected := range want {
		if got := b.Next(); got != expected {
			t.Errorf("Next() #%d = %v, want %v", i, got, expected)
		}
	}
}

func TestBackoffReset(t *testing.T) {
	b := NewBackoffWithConfig(BackoffConfig{Jitter: 0})
	b.Next()
	b.Next()
	b.Reset()

	if got := b.Next(); got != InitialBackoff {
		t.Errorf("Next() after Reset = %v, want %v", got, InitialBackoff)
	}
	if b.Attempts() != 1 {
		t.Errorf("Attempts = %d, want 1", b.Attempts())
	}
}

func TestBackoffPeekDoesNotAdvance(t *testing.T) {
	b := NewBackoffWithConfig(BackoffConfig{Jitter: 0})

	if got := b.Peek(); got != InitialBackoff {
		t.Errorf("Peek() = %v, want %v", got, InitialBackoff)
	}
	if b.Attempts() != 0 {
		t.Errorf("Attempts after Peek = %d, want 0", b.Attempts())
	}
	if got := b.Next(); got != InitialBackoff {
		t.Errorf("Next() after Peek = %v, want %v", got, InitialBackoff)
	}
}

func TestBackoffJitterBounds(t *testing.T) {
	b := NewBackoff()
	for i := 0; i < 50; i++ {
		base := b.Current()
		d := b.Next()
		if d < base || d > base+time.Duration(float64(base)*JitterFactor) {
			t.Fatalf("jittered delay %v out of bounds for base %v", d, base)
		}
		b.Reset()
	}
}

func TestManagerConnect(t *testing.T) {
	var calls atomic.Int32
	m := NewManager(func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})
	defer m.Close()

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if !m.IsConnected() {
		t.Error("manager not connected")
	}
	if err := m.Connect(context.Background()); !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("second Connect = %v, want ErrAlreadyConnected", err)
	}
	if calls.Load() != 1 {
		t.Errorf("connectFn called %d times", calls.Load())
	}
}

func TestManagerConnectFailureIsNotRetried(t *testing.T) {
	dialErr := errors.New("dial failed")
	var calls atomic.Int32
	m := NewManager(func(ctx context.Context) error {
		calls.Add(1)
		return dialErr
	})
	defer m.Close()
	m.StartReconnectLoop()

	if err := m.Connect(context.Background()); !errors.Is(err, dialErr) {
		t.Fatalf("Connect = %v, want dial error", err)
	}
	if m.State() != StateDisconnected {
		t.Errorf("State = %v, want DISCONNECTED", m.State())
	}

	// The initial attempt is caller-driven; no background retry starts.
	time.Sleep(50 * time.Millisecond)
	if calls.Load() != 1 {
		t.Errorf("connectFn called %d times, want 1", calls.Load())
	}
}

func TestManagerReconnectsAfterConnectionLost(t *testing.T) {
	var calls atomic.Int32
	reconnected := make(chan struct{})

	m := NewManagerWithConfig(func(ctx context.Context) error {
		if calls.Add(1) > 1 {
			close(reconnected)
		}
		return nil
	}, ManagerConfig{
		Backoff: BackoffConfig{Initial: time.Millisecond, Jitter: 0},
	})
	defer m.Close()
	m.StartReconnectLoop()

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	m.ConnectionLost()

	select {
	case <-reconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("no reconnect attempt after connection loss")
	}

	deadline := time.Now().Add(2 * time.Second)
	for !m.IsConnected() {
		if time.Now().After(deadline) {
			t.Fatalf("State = %v, want CONNECTED", m.State())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestManagerGivesUpAfterMaxAttempts(t *testing.T) {
	dialErr := errors.New("dial failed")
	var calls atomic.Int32
	gaveUp := make(chan error, 1)

	m := NewManagerWithConfig(func(ctx context.Context) error {
		if calls.Add(1) == 1 {
			return nil // initial connect succeeds
		}
		return dialErr
	}, ManagerConfig{
		Backoff:     BackoffConfig{Initial: time.Millisecond, Max: 2 * time.Millisecond, Jitter: 0},
		MaxAttempts: 3,
	})
	defer m.Close()
	m.OnGiveUp(func(err error) { gaveUp <- err })
	m.StartReconnectLoop()

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	m.ConnectionLost()

	select {
	case err := <-gaveUp:
		if !errors.Is(err, ErrRetriesExhausted) {
			t.Errorf("give-up err = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("manager never gave up")
	}
	if got := calls.Load(); got != 4 { // 1 initial + 3 retries
		t.Errorf("connectFn called %d times, want 4", got)
	}
	if m.State() != StateDisconnected {
		t.Errorf("State = %v, want DISCONNECTED", m.State())
	}
}

func TestManagerAutoReconnectDisabled(t *testing.T) {
	var calls atomic.Int32
	m := NewManager(func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})
	defer m.Close()
	m.SetAutoReconnect(false)
	m.StartReconnectLoop()

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	m.ConnectionLost()

	time.Sleep(50 * time.Millisecond)
	if m.State() != StateDisconnected {
		t.Errorf("State = %v, want DISCONNECTED", m.State())
	}
	if calls.Load() != 1 {
		t.Errorf("connectFn called %d times, want 1", calls.Load())
	}
}

func TestManagerCoalescesConcurrentDials(t *testing.T) {
	var inFlight, peak, dials atomic.Int32
	dialGate := make(chan struct{})

	m := NewManagerWithConfig(func(ctx context.Context) error {
		cur := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		if dials.Add(1) > 1 {
			<-dialGate
		}
		return nil
	}, ManagerConfig{
		Backoff: BackoffConfig{Initial: time.Millisecond, Jitter: 0},
	})
	defer m.Close()
	m.StartReconnectLoop()

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	m.ConnectionLost()

	// Wait for the background reconnect dial to be in flight.
	deadline := time.Now().Add(2 * time.Second)
	for dials.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("reconnect dial never started")
		}
		time.Sleep(time.Millisecond)
	}

	// A caller-driven Connect joins that dial instead of opening a
	// second session with a second read loop.
	done := make(chan error, 1)
	go func() { done <- m.Connect(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	close(dialGate)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("joined Connect = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("joined Connect never returned")
	}

	if got := peak.Load(); got != 1 {
		t.Errorf("%d dials in flight at once, want 1", got)
	}
	if got := dials.Load(); got != 2 {
		t.Errorf("connectFn called %d times, want 2", got)
	}
	if !m.IsConnected() {
		t.Error("manager not connected after coalesced dial")
	}
}

func TestManagerConnectJoinHonorsContext(t *testing.T) {
	dialGate := make(chan struct{})
	var dials atomic.Int32

	m := NewManagerWithConfig(func(ctx context.Context) error {
		if dials.Add(1) > 1 {
			<-dialGate
		}
		return nil
	}, ManagerConfig{
		Backoff: BackoffConfig{Initial: time.Millisecond, Jitter: 0},
	})
	defer func() {
		close(dialGate)
		m.Close()
	}()
	m.StartReconnectLoop()

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	m.ConnectionLost()

	deadline := time.Now().Add(2 * time.Second)
	for dials.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("reconnect dial never started")
		}
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := m.Connect(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("joined Connect = %v, want context deadline", err)
	}
}

func TestManagerCloseStopsEpisode(t *testing.T) {
	m := NewManagerWithConfig(func(ctx context.Context) error {
		return errors.New("dial failed")
	}, ManagerConfig{
		Backoff: BackoffConfig{Initial: time.Hour, Jitter: 0},
	})
	m.StartReconnectLoop()

	m.Connect(context.Background())
	done := make(chan struct{})
	go func() {
		m.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked on the reconnect loop")
	}
	if m.State() != StateClosed {
		t.Errorf("State = %v, want CLOSED", m.State())
	}
	if err := m.Connect(context.Background()); !errors.Is(err, ErrManagerClosed) {
		t.Errorf("Connect after Close = %v, want ErrManagerClosed", err)
	}
}
