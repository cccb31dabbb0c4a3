package troupe

import (
	"context"
	"time"
)

// worker is one member of a Cast crew.
//
// ctx is derived from the run context and is canceled when the worker is terminated;
// receive calls observe it. listen is derived from the run's listen context and is
// canceled when the worker is retired by Remove, which lets the current message finish.
type worker[T any] struct {
	id     int
	ctx    context.Context
	kill   context.CancelFunc
	listen context.Context
	retire context.CancelFunc
}

func newWorker[T any](run *castRun[T], id int) *worker[T] {
	ctx, kill := context.WithCancel(run.ctx)
	listen, retire := context.WithCancel(run.listen)
	return &worker[T]{id: id, ctx: ctx, kill: kill, listen: listen, retire: retire}
}

// terminate stops the worker at once; a receive in flight sees a canceled context.
func (w *worker[T]) terminate() {
	w.kill()
	w.retire()
}

// work is the listen loop of a Cast worker. It reports its id on run.exits when it returns.
func (c *Cast[T]) work(run *castRun[T], w *worker[T]) {
	c.inst.workerUp()
	defer func() {
		c.inst.workerDown()
		w.terminate()
		run.exits <- w.id
	}()

	snap := run.snap.withActorID(w.id)
	for {
		if err := run.gate.wait(w.listen); err != nil {
			break
		}
		env, err := c.mailbox.Receive(w.listen, 0)
		if err != nil {
			break
		}
		if run.halted.Load() {
			return
		}
		if env.IsStop() {
			run.observeCut()
			break
		}

		var ok bool
		if snap, ok = c.process(run, w, env.Data(), snap); !ok {
			return
		}
	}

	if run.draining.Load() {
		c.drain(run, w, snap)
	}
}

// drain processes what is left in the mailbox after a graceful cut, without blocking.
// Further stop sentinels are skipped.
func (c *Cast[T]) drain(run *castRun[T], w *worker[T], snap Snapshot[T]) {
	for w.ctx.Err() == nil && !run.halted.Load() {
		if err := run.gate.wait(w.ctx); err != nil {
			return
		}
		env, ok := c.mailbox.Poll()
		if !ok {
			return
		}
		if run.halted.Load() {
			return
		}
		if env.IsStop() {
			continue
		}
		if snap, ok = c.process(run, w, env.Data(), snap); !ok {
			return
		}
	}
}

// process calls receive for msg and reports a failure to the director.
// It returns the updated snapshot and false when the worker must exit.
func (c *Cast[T]) process(run *castRun[T], w *worker[T], msg T, snap Snapshot[T]) (Snapshot[T], bool) {
	run.busy.Inc()
	run.touch()

	start := time.Now()
	fields, err := callReceive(w.ctx, c.receive, msg, snap)
	c.inst.observe(start, err)

	run.busy.Dec()
	run.touch()

	if err != nil {
		if !newErrorReport(err, msg, w.id, snap).send(w.ctx, run.reports) {
			return snap, false
		}
		return snap, w.ctx.Err() == nil
	}
	return snap.With(fields), true
}
