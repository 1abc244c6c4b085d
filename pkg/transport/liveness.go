package transport

import (
	"context"
	"sync"
	"time"
)

// Liveness constants.
const (
	// DefaultProbeInterval is the default interval between silence checks.
	DefaultProbeInterval = 30 * time.Second

	// DefaultMaxMissedProbes is the default number of unanswered probes
	// before the connection is declared dead.
	DefaultMaxMissedProbes = 3
)

// LivenessConfig configures silent-line probing.
type LivenessConfig struct {
	// ProbeInterval is the interval between silence checks.
	ProbeInterval time.Duration

	// MaxMissedProbes is the number of unanswered probes before disconnect.
	MaxMissedProbes int

	// Disabled turns probing off entirely.
	Disabled bool
}

// DefaultLivenessConfig returns the default liveness configuration.
func DefaultLivenessConfig() LivenessConfig {
	return LivenessConfig{
		ProbeInterval:   DefaultProbeInterval,
		MaxMissedProbes: DefaultMaxMissedProbes,
	}
}

// DetectionDelay is the worst-case time to notice a dead connection.
func (c LivenessConfig) DetectionDelay() time.Duration {
	return c.ProbeInterval * time.Duration(c.MaxMissedProbes+1)
}

// Liveness watches for a silent line. The device has no ping message, so
// the probe is an ordinary status query; any inbound traffic at all
// counts as proof of life.
type Liveness struct {
	config LivenessConfig

	sendProbe func() error
	onTimeout func()

	mu          sync.Mutex
	lastInbound time.Time
	missed      int
	running     bool
	stopCh      chan struct{}
}

// NewLiveness creates a liveness monitor.
func NewLiveness(config LivenessConfig, sendProbe func() error, onTimeout func()) *Liveness {
	if config.ProbeInterval == 0 {
		config.ProbeInterval = DefaultProbeInterval
	}
	if config.MaxMissedProbes == 0 {
		config.MaxMissedProbes = DefaultMaxMissedProbes
	}

	return &Liveness{
		config:    config,
		sendProbe: sendProbe,
		onTimeout: onTimeout,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the monitoring loop.
func (lv *Liveness) Start(ctx context.Context) {
	if lv.config.Disabled {
		return
	}

	lv.mu.Lock()
	if lv.running {
		lv.mu.Unlock()
		return
	}
	lv.running = true
	lv.lastInbound = time.Now()
	lv.stopCh = make(chan struct{})
	lv.mu.Unlock()

	go lv.loop(ctx)
}

// Stop stops the monitoring loop.
func (lv *Liveness) Stop() {
	lv.mu.Lock()
	defer lv.mu.Unlock()

	if !lv.running {
		return
	}
	lv.running = false
	close(lv.stopCh)
}

// MessageReceived records inbound traffic. The read loop calls this for
// every decoded message.
func (lv *Liveness) MessageReceived() {
	lv.mu.Lock()
	lv.lastInbound = time.Now()
	lv.missed = 0
	lv.mu.Unlock()
}

// IsRunning reports whether the monitoring loop is active.
func (lv *Liveness) IsRunning() bool {
	lv.mu.Lock()
	defer lv.mu.Unlock()
	return lv.running
}

// loop checks for silence once per probe interval.
func (lv *Liveness) loop(ctx context.Context) {
	ticker := time.NewTicker(lv.config.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-lv.stopCh:
			return
		case <-ticker.C:
			if !lv.handleTick() {
				return
			}
		}
	}
}

// handleTick probes a silent line. Returns false when the connection is
// declared dead.
func (lv *Liveness) handleTick() bool {
	lv.mu.Lock()
	silent := time.Since(lv.lastInbound) >= lv.config.ProbeInterval
	if !silent {
		lv.mu.Unlock()
		return true
	}

	lv.missed++
	dead := lv.missed > lv.config.MaxMissedProbes
	lv.mu.Unlock()

	if dead {
		if lv.onTimeout != nil {
			lv.onTimeout()
		}
		return false
	}

	// Probe failures surface on the next silence check.
	lv.sendProbe()
	return true
}
