package connection

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Reconnect pacing defaults.
const (
	// InitialBackoff is the delay before the first retry.
	InitialBackoff = 1 * time.Second

	// MaxBackoff caps the delay between retries.
	MaxBackoff = 60 * time.Second

	// BackoffMultiplier is the per-attempt growth factor.
	BackoffMultiplier = 2.0

	// JitterFactor is the maximum random spread added to a delay, as a
	// fraction of the base.
	JitterFactor = 0.25
)

// BackoffConfig overrides the reconnect pacing. Zero fields take the
// package defaults; Jitter set to 0 disables jitter.
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
}

func (c BackoffConfig) withDefaults() BackoffConfig {
	if c.Initial <= 0 {
		c.Initial = InitialBackoff
	}
	if c.Max <= 0 {
		c.Max = MaxBackoff
	}
	if c.Multiplier <= 1 {
		c.Multiplier = BackoffMultiplier
	}
	if c.Jitter < 0 {
		c.Jitter = 0
	}
	return c
}

// Backoff paces reconnect attempts. The base delay grows geometrically
// with the attempt count, capped at Max, and each handed-out delay gets
// up to Jitter of random spread on top so a fleet of clients does not
// redial in lockstep.
type Backoff struct {
	cfg BackoffConfig

	mu      sync.Mutex
	attempt int
	rng     *rand.Rand
}

// NewBackoff returns a pacer with the package defaults, jitter included.
func NewBackoff() *Backoff {
	return NewBackoffWithConfig(BackoffConfig{Jitter: JitterFactor})
}

// NewBackoffWithConfig returns a pacer with custom settings.
func NewBackoffWithConfig(cfg BackoffConfig) *Backoff {
	return &Backoff{
		cfg: cfg.withDefaults(),
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// baseLocked is the jitter-free delay for the current attempt.
func (b *Backoff) baseLocked() time.Duration {
	d := float64(b.cfg.Initial) * math.Pow(b.cfg.Multiplier, float64(b.attempt))
	if d >= float64(b.cfg.Max) {
		return b.cfg.Max
	}
	return time.Duration(d)
}

// Next returns the delay to wait before the next attempt, jitter
// applied, and advances the attempt counter.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	delay := b.jitteredLocked(b.baseLocked())
	b.attempt++
	return delay
}

// Peek returns the delay Next would hand out, without advancing.
func (b *Backoff) Peek() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.jitteredLocked(b.baseLocked())
}

// Reset rewinds to the initial delay. Call after a successful connect.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempt = 0
}

// Attempts returns the number of delays handed out since the last Reset.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempt
}

// Current returns the base delay for the upcoming attempt, jitter-free.
func (b *Backoff) Current() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.baseLocked()
}

func (b *Backoff) jitteredLocked(d time.Duration) time.Duration {
	if b.cfg.Jitter <= 0 {
		return d
	}
	return d + time.Duration(float64(d)*b.cfg.Jitter*b.rng.Float64())
}
