package troupe

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/duke-git/lancet/v2/maputil"
	"github.com/ygrebnov/errorc"
	"go.uber.org/zap"

	"github.com/ygrebnov/troupe/pool"
)

// Actor runs a single worker that drains a mailbox and calls receive for every message.
// Actor is a concrete struct; methods are safe for concurrent use.
// An Actor may be started again after a run ends; every run takes a fresh snapshot.
type Actor[T any] struct {
	//go:nocopy
	nc noCopy

	config   *config
	receive  Receive[T]
	callback Callback[T]
	handle   Handle[T]
	mailbox  *Mailbox[T]
	inst     *instruments
	logger   *zap.Logger

	mu     sync.Mutex
	fields Fields
	run    *lifecycle
}

// noCopy is a vet-recognized marker to discourage copying types with this field embedded.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// NewActor creates an Actor calling receive for every message put into its mailbox.
func NewActor[T any](receive Receive[T], opts ...Option) (*Actor[T], error) {
	if receive == nil {
		return nil, errorc.With(ErrInvalidConfig, errorc.String("", "NewActor requires a receive function"))
	}
	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}
	callback, err := callbackFrom[T](cfg)
	if err != nil {
		return nil, err
	}
	handle, err := handleFrom[T](cfg)
	if err != nil {
		return nil, err
	}
	mb, err := mailboxFrom[T](cfg)
	if err != nil {
		return nil, err
	}

	return &Actor[T]{
		config:   cfg,
		receive:  receive,
		callback: callback,
		handle:   handle,
		mailbox:  mb,
		inst:     newInstruments(cfg.Metrics),
		logger:   cfg.Logger.With(zap.String("runtime", "actor")),
		fields:   maputil.Merge(cfg.Fields),
	}, nil
}

// Start begins a new run. It returns ErrAlreadyRunning while a previous run is active.
// Canceling ctx stops the run immediately.
func (a *Actor[T]) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.run != nil && !a.run.finished() {
		return ErrAlreadyRunning
	}

	p, err := pool.NewDynamic(a.recoverPanic)
	if err != nil {
		return err
	}

	snap := captureSnapshot(a.mailbox, a.config.Timeout, 1, a.fields)
	lc := newLifecycle(ctx)
	if err = p.Submit(func() { a.listen(lc, snap, p) }); err != nil {
		lc.finish(Failed, err, nil, p.Release)
		return err
	}
	a.run = lc

	a.logger.Info("actor started", zap.Duration("timeout", snap.Timeout()))
	return nil
}

// Restart cuts the current run immediately, waits for it to end and starts a fresh one.
// Messages left in the mailbox are kept for the new run.
func (a *Actor[T]) Restart(ctx context.Context) error {
	if lc := a.current(); lc != nil && !lc.finished() {
		a.logger.Info("cutting existing run before restart")
		lc.halt()
		_ = lc.wait()
	}
	return a.Start(ctx)
}

// Cut requests a graceful stop: messages put before the call are processed, then the
// callback runs.
//
// Cut queues a stop sentinel whether or not a run is active. On an idle Actor the next run
// processes the messages queued before the sentinel and then stops. A sentinel left behind
// by a run that ended otherwise, for example by CutImmediately, ends the next run at the
// same point.
func (a *Actor[T]) Cut() { a.mailbox.PutStop() }

// CutImmediately stops the run without processing further messages or running the callback.
// A message being processed completes.
func (a *Actor[T]) CutImmediately() {
	if lc := a.current(); lc != nil {
		lc.halt()
	}
}

// Wait blocks until the current run ends and returns its error: nil, or a *HandlerError
// when a handle function returned a fatal error. Wait returns nil if the Actor was never started.
func (a *Actor[T]) Wait() error {
	lc := a.current()
	if lc == nil {
		return nil
	}
	return lc.wait()
}

// Done returns a channel closed when the current run ends.
func (a *Actor[T]) Done() <-chan struct{} {
	lc := a.current()
	if lc == nil {
		return closedChan
	}
	return lc.done
}

// State returns the state of the current run, or Idle if the Actor was never started.
func (a *Actor[T]) State() State {
	lc := a.current()
	if lc == nil {
		return Idle
	}
	return lc.State()
}

// Mailbox returns the mailbox drained by the Actor.
func (a *Actor[T]) Mailbox() *Mailbox[T] { return a.mailbox }

// Set stores a user field for the next run. The current run keeps its snapshot.
func (a *Actor[T]) Set(name string, value any) {
	a.mu.Lock()
	a.fields[name] = value
	a.mu.Unlock()
}

func (a *Actor[T]) current() *lifecycle {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.run
}

func (a *Actor[T]) listen(lc *lifecycle, snap Snapshot[T], p pool.Pool) {
	a.inst.workerUp()
	state, last, err := a.loop(lc, snap)
	a.inst.workerDown()

	lc.finish(state, err, func() { a.runCallback(lc.ctx, last) }, p.Release)
	if err != nil {
		a.logger.Error("actor failed", zap.Error(err))
		return
	}
	a.logger.Info("actor stopped", zap.Stringer("state", lc.State()))
}

// loop processes envelopes until the run ends and returns the terminal state together
// with the snapshot as updated by receive.
func (a *Actor[T]) loop(lc *lifecycle, snap Snapshot[T]) (State, Snapshot[T], error) {
	for {
		env, err := a.mailbox.Receive(lc.listen, snap.Timeout())
		switch {
		case errors.Is(err, ErrMailboxTimeout):
			return StoppedNaturally, snap, nil
		case err != nil, lc.halted.Load():
			// an envelope taken after an immediate cut is discarded
			return StoppedImmediately, snap, nil
		case env.IsStop():
			return StoppedNaturally, snap, nil
		}

		msg := env.Data()
		start := time.Now()
		fields, err := callReceive(lc.ctx, a.receive, msg, snap)
		a.inst.observe(start, err)
		if err != nil {
			herr := callProtected(func() error { return a.handle(lc.ctx, err, msg, snap) })
			if herr != nil {
				return Failed, snap, newHandlerError(herr, msg, snap.ActorID())
			}
			continue
		}
		snap = snap.With(fields)
	}
}

func (a *Actor[T]) runCallback(ctx context.Context, snap Snapshot[T]) {
	err := callProtected(func() error {
		a.callback(ctx, snap)
		return nil
	})
	if err != nil {
		a.logger.Error("callback failed", zap.Error(err))
	}
}

func (a *Actor[T]) recoverPanic(v any) {
	a.logger.Error("actor goroutine panicked", zap.Any("panic", v))
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()
