package troupe

import (
	"context"
	"sync"
)

// errorReport carries a failed receive from a Cast worker to the director.
// The worker blocks on reply until the director has run the handle function.
type errorReport[T any] struct {
	err   error
	msg   T
	id    int
	snap  Snapshot[T]
	reply chan struct{}
}

func newErrorReport[T any](err error, msg T, id int, snap Snapshot[T]) errorReport[T] {
	return errorReport[T]{err: err, msg: msg, id: id, snap: snap, reply: make(chan struct{}, 1)}
}

// errorGate pauses mailbox polling while the director handles an error.
// The zero value is not usable; use newErrorGate.
type errorGate struct {
	mu   sync.Mutex
	open chan struct{} // closed while polling is allowed
}

func newErrorGate() *errorGate {
	ch := make(chan struct{})
	close(ch)
	return &errorGate{open: ch}
}

// shut blocks subsequent wait calls until reopen. Repeated calls are no-ops.
func (g *errorGate) shut() {
	g.mu.Lock()
	defer g.mu.Unlock()
	select {
	case <-g.open:
		g.open = make(chan struct{})
	default:
	}
}

// reopen releases all waiters.
func (g *errorGate) reopen() {
	g.mu.Lock()
	defer g.mu.Unlock()
	select {
	case <-g.open:
	default:
		close(g.open)
	}
}

// wait returns nil once the gate is open, or ctx.Err() if ctx is done first.
func (g *errorGate) wait(ctx context.Context) error {
	g.mu.Lock()
	ch := g.open
	g.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// send delivers r to the director and waits for the reply.
// It returns false if ctx ends first, in which case the report may have been dropped.
func (r errorReport[T]) send(ctx context.Context, reports chan<- errorReport[T]) bool {
	select {
	case reports <- r:
	case <-ctx.Done():
		return false
	}
	select {
	case <-r.reply:
		return true
	case <-ctx.Done():
		return false
	}
}
