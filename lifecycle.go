package troupe

import (
	"context"
	"sync"

	"go.uber.org/atomic"
)

// lifecycle holds the control state of one run of an Actor or a Cast.
//
// Contexts form a chain: ctx is passed to user handlers and is derived from the caller's
// context; listen is derived from ctx and gates mailbox polling. Stopping the listen
// context ends polling without interrupting handlers already in flight.
//
// finish is safe for concurrent calls; the shutdown sequence executes exactly once.
type lifecycle struct {
	ctx    context.Context
	cancel context.CancelFunc

	listen        context.Context
	stopListening context.CancelFunc

	// halted is the out-of-band immediate stop flag, checked after every poll.
	halted *atomic.Bool
	state  *atomic.Int32

	done chan struct{}
	err  error
	once sync.Once
}

func newLifecycle(parent context.Context) *lifecycle {
	ctx, cancel := context.WithCancel(parent)
	listen, stopListening := context.WithCancel(ctx)
	lc := &lifecycle{
		ctx:           ctx,
		cancel:        cancel,
		listen:        listen,
		stopListening: stopListening,
		halted:        atomic.NewBool(false),
		state:         atomic.NewInt32(int32(Running)),
		done:          make(chan struct{}),
	}
	return lc
}

// halt requests an immediate stop: no more envelopes are taken and callback is skipped.
func (lc *lifecycle) halt() {
	lc.halted.Store(true)
	lc.stopListening()
}

// stoppedImmediately reports whether the run must end without callback:
// either halt was called or the caller's context is done.
func (lc *lifecycle) stoppedImmediately() bool {
	return lc.halted.Load() || lc.ctx.Err() != nil
}

// finish executes the shutdown sequence exactly once:
// 1) record the terminal state and error; a natural stop racing halt counts as immediate
// 2) run onNatural when the state is StoppedNaturally
// 3) cancel listen and handler contexts
// 4) release, if not nil
// 5) close done
func (lc *lifecycle) finish(state State, err error, onNatural func(), release func()) {
	lc.once.Do(func() {
		if state == StoppedNaturally && lc.stoppedImmediately() {
			state = StoppedImmediately
		}
		lc.err = err
		lc.state.Store(int32(state))
		if state == StoppedNaturally && onNatural != nil {
			onNatural()
		}
		lc.stopListening()
		lc.cancel()
		if release != nil {
			release()
		}
		close(lc.done)
	})
}

func (lc *lifecycle) State() State { return State(lc.state.Load()) }

func (lc *lifecycle) finished() bool {
	select {
	case <-lc.done:
		return true
	default:
		return false
	}
}

func (lc *lifecycle) wait() error {
	<-lc.done
	return lc.err
}
