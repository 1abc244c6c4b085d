package correlation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eiscp-protocol/eiscp-go/pkg/wire"
)

// Table errors.
var (
	ErrAwaitTimeout = errors.New("no reply before deadline")
	ErrCancelled    = errors.New("waiter cancelled")
)

// DefaultAwaitTimeout bounds how long a waiter outlives its command.
const DefaultAwaitTimeout = 5 * time.Second

// outcome is the single resolution of a waiter.
type outcome struct {
	msg *wire.Message
	err error
}

// Waiter is one registered expectation of a reply.
type Waiter struct {
	prefix string

	// claimed guards exactly-once resolution. Whoever flips it first
	// owns the waiter; everyone else backs off.
	claimed atomic.Bool

	// done carries the outcome. Buffered so the claimer never blocks.
	done chan outcome
}

// Prefix returns the command prefix this waiter is registered for.
func (w *Waiter) Prefix() string { return w.prefix }

// claim attempts to take ownership of the waiter's resolution.
func (w *Waiter) claim() bool {
	return w.claimed.CompareAndSwap(false, true)
}

// Table is a prefix-keyed FIFO registry of reply waiters.
type Table struct {
	mu      sync.Mutex
	waiters map[string][]*Waiter
}

// NewTable creates an empty correlation table.
func NewTable() *Table {
	return &Table{
		waiters: make(map[string][]*Waiter),
	}
}

// Register enqueues a waiter for the given command prefix. Call it before
// writing the command to the connection.
func (t *Table) Register(prefix string) *Waiter {
	w := &Waiter{
		prefix: prefix,
		done:   make(chan outcome, 1),
	}

	t.mu.Lock()
	t.waiters[prefix] = append(t.waiters[prefix], w)
	t.mu.Unlock()

	return w
}

// Dispatch hands an inbound message to the oldest live waiter registered
// for its prefix. It reports whether a waiter consumed the message; the
// caller forwards the message to state listeners either way.
func (t *Table) Dispatch(msg *wire.Message) bool {
	prefix := msg.Command

	t.mu.Lock()
	queue := t.waiters[prefix]
	var target *Waiter
	kept := queue[:0]
	for _, w := range queue {
		if target == nil && w.claim() {
			target = w
			continue
		}
		if !w.claimed.Load() {
			kept = append(kept, w)
		}
	}
	t.setQueue(prefix, kept)
	t.mu.Unlock()

	if target == nil {
		return false
	}
	target.done <- outcome{msg: msg}
	return true
}

// Await blocks until the waiter resolves: reply arrival, timeout, context
// cancellation, or table-wide failure. A timeout of zero means
// DefaultAwaitTimeout.
func (t *Table) Await(ctx context.Context, w *Waiter, timeout time.Duration) (*wire.Message, error) {
	if timeout <= 0 {
		timeout = DefaultAwaitTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-w.done:
		return out.msg, out.err

	case <-timer.C:
		if w.claim() {
			t.remove(w)
			return nil, ErrAwaitTimeout
		}
		// A dispatcher claimed the waiter between the timer firing and
		// our claim attempt; the outcome is already in flight.
		out := <-w.done
		return out.msg, out.err

	case <-ctx.Done():
		if w.claim() {
			t.remove(w)
			return nil, ctx.Err()
		}
		out := <-w.done
		return out.msg, out.err
	}
}

// Cancel resolves a waiter with ErrCancelled if nothing else claimed it.
func (t *Table) Cancel(w *Waiter) {
	if !w.claim() {
		return
	}
	t.remove(w)
	w.done <- outcome{err: ErrCancelled}
}

// FailAll resolves every live waiter with err. Called when the connection
// the waiters were registered against goes away.
func (t *Table) FailAll(err error) {
	t.mu.Lock()
	var claimed []*Waiter
	for prefix, queue := range t.waiters {
		for _, w := range queue {
			if w.claim() {
				claimed = append(claimed, w)
			}
		}
		delete(t.waiters, prefix)
	}
	t.mu.Unlock()

	for _, w := range claimed {
		w.done <- outcome{err: err}
	}
}

// Pending returns the number of live waiters for a prefix.
func (t *Table) Pending(prefix string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, w := range t.waiters[prefix] {
		if !w.claimed.Load() {
			n++
		}
	}
	return n
}

// remove drops a waiter from its queue.
func (t *Table) remove(w *Waiter) {
	t.mu.Lock()
	defer t.mu.Unlock()

	queue := t.waiters[w.prefix]
	kept := queue[:0]
	for _, q := range queue {
		if q != w {
			kept = append(kept, q)
		}
	}
	t.setQueue(w.prefix, kept)
}

// setQueue stores a queue, dropping the map entry when it is empty.
// Callers hold t.mu.
func (t *Table) setQueue(prefix string, queue []*Waiter) {
	if len(queue) == 0 {
		delete(t.waiters, prefix)
		return
	}
	t.waiters[prefix] = queue
}
