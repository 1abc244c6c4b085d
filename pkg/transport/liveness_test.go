package transport

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestLivenessProbesSilentLine(t *testing.T) {
	var probes atomic.Int32
	lv := NewLiveness(
		LivenessConfig{ProbeInterval: 20 * time.Millisecond, MaxMissedProbes: 100},
		func() error { probes.Add(1); return nil },
		func() {},
	)
	lv.Start(context.Background())
	defer lv.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for probes.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no probe sent on a silent line")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestLivenessQuietWhileTrafficFlows(t *testing.T) {
	var probes atomic.Int32
	lv := NewLiveness(
		LivenessConfig{ProbeInterval: 30 * time.Millisecond, MaxMissedProbes: 3},
		func() error { probes.Add(1); return nil },
		func() {},
	)
	lv.Start(context.Background())
	defer lv.Stop()

	// Steady inbound traffic: the line is never silent long enough.
	for i := 0; i < 10; i++ {
		lv.MessageReceived()
		time.Sleep(10 * time.Millisecond)
	}
	if n := probes.Load(); n != 0 {
		t.Errorf("sent %d probes while traffic was flowing", n)
	}
}

func TestLivenessDeclaresDeadAfterMissedProbes(t *testing.T) {
	timedOut := make(chan struct{})
	lv := NewLiveness(
		LivenessConfig{ProbeInterval: 10 * time.Millisecond, MaxMissedProbes: 2},
		func() error { return nil },
		func() { close(timedOut) },
	)
	lv.Start(context.Background())
	defer lv.Stop()

	select {
	case <-timedOut:
	case <-time.After(2 * time.Second):
		t.Fatal("liveness never declared the connection dead")
	}
}

func TestLivenessDisabled(t *testing.T) {
	lv := NewLiveness(
		LivenessConfig{Disabled: true, ProbeInterval: time.Millisecond},
		func() error { t.Error("probe sent while disabled"); return nil },
		func() { t.Error("timeout fired while disabled") },
	)
	lv.Start(context.Background())

	time.Sleep(30 * time.Millisecond)
	if lv.IsRunning() {
		t.Error("disabled monitor reports running")
	}
}

func TestLivenessStopIsIdempotent(t *testing.T) {
	lv := NewLiveness(DefaultLivenessConfig(), func() error { return nil }, func() {})
	lv.Start(context.Background())
	lv.Stop()
	lv.Stop()
	if lv.IsRunning() {
		t.Error("monitor still running after Stop")
	}
}
