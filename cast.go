package troupe

import (
	"context"
	"sync"

	"github.com/duke-git/lancet/v2/maputil"
	"github.com/ygrebnov/errorc"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/ygrebnov/troupe/pool"
)

// Cast runs a crew of workers that share one mailbox, coordinated by a director.
// The crew can grow and shrink while running (Add, Remove), a single idle timeout covers
// the whole crew, and failed receives are reported to one CastHandle.
// Cast is a concrete struct; methods are safe for concurrent use.
type Cast[T any] struct {
	//go:nocopy
	nc noCopy

	config   *config
	receive  Receive[T]
	callback Callback[T]
	handle   CastHandle[T]
	mailbox  *Mailbox[T]
	inst     *instruments
	logger   *zap.Logger

	// pending is the resize delta not yet applied by the director.
	pending *atomic.Int64
	resize  chan struct{}

	mu     sync.Mutex
	fields Fields
	run    *castRun[T]
}

// castRun is the state shared by the director and the workers of one run.
type castRun[T any] struct {
	*lifecycle

	snap Snapshot[T]
	pool pool.Pool
	gate *errorGate

	reports  chan errorReport[T]
	exits    chan int
	activity chan struct{}

	// cut is closed when a worker takes the stop sentinel; draining is set just before.
	cut       chan struct{}
	draining  *atomic.Bool
	drainOnce sync.Once

	busy  *atomic.Int64
	alive *atomic.Int64
}

// observeCut switches the run to draining and stops blocking receives.
func (r *castRun[T]) observeCut() {
	r.drainOnce.Do(func() {
		r.draining.Store(true)
		r.stopListening()
		close(r.cut)
	})
}

// touch tells the director that a worker is active.
func (r *castRun[T]) touch() {
	select {
	case r.activity <- struct{}{}:
	default:
	}
}

// NewCast creates a Cast calling receive for every message put into its shared mailbox.
// The crew size at Start is set with WithWorkers (default 1).
func NewCast[T any](receive Receive[T], opts ...Option) (*Cast[T], error) {
	if receive == nil {
		return nil, errorc.With(ErrInvalidConfig, errorc.String("", "NewCast requires a receive function"))
	}
	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}
	callback, err := callbackFrom[T](cfg)
	if err != nil {
		return nil, err
	}
	handle, err := castHandleFrom[T](cfg)
	if err != nil {
		return nil, err
	}
	mb, err := mailboxFrom[T](cfg)
	if err != nil {
		return nil, err
	}

	return &Cast[T]{
		config:   cfg,
		receive:  receive,
		callback: callback,
		handle:   handle,
		mailbox:  mb,
		inst:     newInstruments(cfg.Metrics),
		logger:   cfg.Logger.With(zap.String("runtime", "cast")),
		pending:  atomic.NewInt64(0),
		resize:   make(chan struct{}, 1),
		fields:   maputil.Merge(cfg.Fields),
	}, nil
}

// Start spawns the crew and the director. It returns ErrAlreadyRunning while a previous
// run is active. Canceling ctx stops the run immediately.
func (c *Cast[T]) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.run != nil && !c.run.finished() {
		return ErrAlreadyRunning
	}

	p, err := c.newPool()
	if err != nil {
		return err
	}

	run := &castRun[T]{
		lifecycle: newLifecycle(ctx),
		snap:      captureSnapshot(c.mailbox, c.config.Timeout, c.config.Workers, c.fields),
		pool:      p,
		gate:      newErrorGate(),
		reports:   make(chan errorReport[T]),
		exits:     make(chan int),
		activity:  make(chan struct{}, 1),
		cut:       make(chan struct{}),
		draining:  atomic.NewBool(false),
		busy:      atomic.NewInt64(0),
		alive:     atomic.NewInt64(0),
	}
	d := newDirector(c, run)
	for i := 0; i < c.config.Workers; i++ {
		d.spawn()
	}
	c.run = run

	c.logger.Info("cast started",
		zap.Int("workers", d.crew.size()),
		zap.Duration("timeout", run.snap.Timeout()),
	)
	go d.direct()
	return nil
}

func (c *Cast[T]) newPool() (pool.Pool, error) {
	if c.config.MaxWorkers > 0 {
		return pool.NewFixed(c.config.MaxWorkers, c.recoverPanic)
	}
	return pool.NewDynamic(c.recoverPanic)
}

// Restart cuts the current run immediately, waits for it to end and starts a fresh one.
func (c *Cast[T]) Restart(ctx context.Context) error {
	if run := c.current(); run != nil && !run.finished() {
		c.logger.Info("cutting existing run before restart")
		run.halt()
		_ = run.wait()
	}
	return c.Start(ctx)
}

// Cut requests a graceful stop. The worker that takes the stop sentinel switches the crew
// to draining: remaining messages are processed, pending resizes are abandoned, and the
// callback runs once all workers have exited.
//
// As with Actor.Cut, the sentinel is queued even when no run is active and ends the next
// run once the messages ahead of it are processed.
func (c *Cast[T]) Cut() { c.mailbox.PutStop() }

// CutImmediately stops every worker after its current message. The callback does not run.
func (c *Cast[T]) CutImmediately() {
	if run := c.current(); run != nil {
		run.halt()
	}
}

// Wait blocks until the current run ends and returns its error: nil, or a *HandlerError
// when the CastHandle returned a fatal error. Wait returns nil if the Cast was never started.
func (c *Cast[T]) Wait() error {
	run := c.current()
	if run == nil {
		return nil
	}
	return run.wait()
}

// Done returns a channel closed when the current run ends.
func (c *Cast[T]) Done() <-chan struct{} {
	run := c.current()
	if run == nil {
		return closedChan
	}
	return run.done
}

// State returns the state of the current run, or Idle if the Cast was never started.
func (c *Cast[T]) State() State {
	run := c.current()
	if run == nil {
		return Idle
	}
	return run.State()
}

// Mailbox returns the mailbox shared by the crew.
func (c *Cast[T]) Mailbox() *Mailbox[T] { return c.mailbox }

// Set stores a user field for the next run. The current run keeps its snapshot.
func (c *Cast[T]) Set(name string, value any) {
	c.mu.Lock()
	c.fields[name] = value
	c.mu.Unlock()
}

// Add asks the director to spawn n more workers. Before Start, the workers are added to
// the initial crew. Values n <= 0 are ignored.
func (c *Cast[T]) Add(n int) {
	if n <= 0 {
		return
	}
	c.pending.Add(int64(n))
	c.wakeDirector()
}

// Remove asks the director to retire n workers, highest ids first. Each retired worker
// finishes its current message before exiting. Removing more workers than exist is not
// an error. Values n <= 0 are ignored.
func (c *Cast[T]) Remove(n int) {
	if n <= 0 {
		return
	}
	c.pending.Sub(int64(n))
	c.wakeDirector()
}

// Size returns the number of live workers plus the resize delta not yet applied.
// Before Start it is the initial crew size plus pending Add/Remove requests.
func (c *Cast[T]) Size() int {
	run := c.current()
	size := c.pending.Load()
	if run == nil || run.finished() {
		size += int64(c.config.Workers)
	} else {
		size += run.alive.Load()
	}
	if size < 0 {
		return 0
	}
	return int(size)
}

func (c *Cast[T]) wakeDirector() {
	select {
	case c.resize <- struct{}{}:
	default:
	}
}

func (c *Cast[T]) current() *castRun[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.run
}

func (c *Cast[T]) runCallback(ctx context.Context, snap Snapshot[T]) {
	err := callProtected(func() error {
		c.callback(ctx, snap)
		return nil
	})
	if err != nil {
		c.logger.Error("callback failed", zap.Error(err))
	}
}

func (c *Cast[T]) recoverPanic(v any) {
	c.logger.Error("cast goroutine panicked", zap.Any("panic", v))
}
