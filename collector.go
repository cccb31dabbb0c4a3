package troupe

import (
	"context"
	"sync"

	"github.com/ygrebnov/errorc"
)

// CollectedField is the snapshot field holding the final fold in a Collector's callback.
const CollectedField = "collected"

// Collect folds msg into the accumulator. prior is the zero value of A until the first
// successful call. An error leaves the accumulator unchanged and is routed to the handle.
type Collect[T, A any] func(ctx context.Context, msg T, prior A, snap Snapshot[T]) (A, error)

// runtime is the surface shared by Actor and Cast.
type runtime[T any] interface {
	Start(ctx context.Context) error
	Restart(ctx context.Context) error
	Cut()
	CutImmediately()
	Wait() error
	Done() <-chan struct{}
	State() State
	Mailbox() *Mailbox[T]
	Set(name string, value any)
}

// Collector folds every message of a run into one accumulator.
// Folds are serialized, so a Cast-backed Collector may run collect on several workers
// without further locking in collect.
type Collector[T, A any] struct {
	runtime[T]

	mu   sync.Mutex
	cell *cell[A]
	cast *Cast[T]
}

// NewCollector creates a Collector driven by a single Actor.
func NewCollector[T, A any](collect Collect[T, A], opts ...Option) (*Collector[T, A], error) {
	if collect == nil {
		return nil, errorc.With(ErrInvalidConfig, errorc.String("", "NewCollector requires a collect function"))
	}
	c := &Collector[T, A]{cell: &cell[A]{}}
	a, err := NewActor[T](c.receiver(collect), withCollected[T](opts, c.cell)...)
	if err != nil {
		return nil, err
	}
	c.runtime = a
	return c, nil
}

// NewCastCollector creates a Collector driven by a Cast. Use WithWorkers to size the crew.
func NewCastCollector[T, A any](collect Collect[T, A], opts ...Option) (*Collector[T, A], error) {
	if collect == nil {
		return nil, errorc.With(ErrInvalidConfig, errorc.String("", "NewCastCollector requires a collect function"))
	}
	c := &Collector[T, A]{cell: &cell[A]{}}
	cast, err := NewCast[T](c.receiver(collect), withCollected[T](opts, c.cell)...)
	if err != nil {
		return nil, err
	}
	c.runtime = cast
	c.cast = cast
	return c, nil
}

// Start clears the accumulator and begins a new run.
func (c *Collector[T, A]) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.runtime.Done():
	default:
		return ErrAlreadyRunning
	}
	c.cell.reset()
	return c.runtime.Start(ctx)
}

// Restart cuts the current run immediately, clears the accumulator and starts a fresh run.
func (c *Collector[T, A]) Restart(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.runtime.CutImmediately()
	_ = c.runtime.Wait()
	c.cell.reset()
	return c.runtime.Start(ctx)
}

// Collected returns the current accumulator. The boolean is false until collect has
// succeeded at least once in the current run.
func (c *Collector[T, A]) Collected() (A, bool) { return c.cell.get() }

// Cast returns the underlying Cast, or nil for an Actor-backed Collector.
func (c *Collector[T, A]) Cast() *Cast[T] { return c.cast }

func (c *Collector[T, A]) receiver(collect Collect[T, A]) Receive[T] {
	return func(ctx context.Context, msg T, snap Snapshot[T]) (Fields, error) {
		return nil, c.cell.fold(func(prior A) (A, error) {
			return collect(ctx, msg, prior, snap)
		})
	}
}

// withCollected appends an option that exposes the accumulator to the callback
// under CollectedField. opts is not modified.
func withCollected[T, A any](opts []Option, cl *cell[A]) []Option {
	wrap := func(cfg *config) error {
		var inner Callback[T]
		switch fn := cfg.Callback.(type) {
		case nil:
		case Callback[T]:
			inner = fn
		default:
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithCallback message type does not match the runtime"))
		}
		cfg.Callback = Callback[T](func(ctx context.Context, snap Snapshot[T]) {
			if acc, ok := cl.get(); ok {
				snap = snap.With(Fields{CollectedField: acc})
			}
			cb := inner
			if cb == nil {
				cb = defaultCallback[T](cfg.Logger)
			}
			cb(ctx, snap)
		})
		return nil
	}
	return append(opts[:len(opts):len(opts)], wrap)
}

// cell is the accumulator of a Collector. folding serializes collect calls; mu guards the
// published value only, so readers never wait for a collect in progress.
type cell[A any] struct {
	folding sync.Mutex

	mu      sync.Mutex
	acc     A
	present bool
}

// fold replaces the accumulator with fn(acc). On error the accumulator is kept.
func (c *cell[A]) fold(fn func(prior A) (A, error)) error {
	c.folding.Lock()
	defer c.folding.Unlock()

	prior, _ := c.get()
	next, err := fn(prior)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.acc = next
	c.present = true
	c.mu.Unlock()
	return nil
}

func (c *cell[A]) get() (A, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acc, c.present
}

func (c *cell[A]) reset() {
	c.folding.Lock()
	defer c.folding.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero A
	c.acc = zero
	c.present = false
}
