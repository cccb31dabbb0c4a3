package troupe

import (
	"sort"
	"sync"
	"time"

	"github.com/duke-git/lancet/v2/maputil"
	"go.uber.org/zap"
)

// Crew is the director's view of the live workers of a Cast, handed to CastHandle.
type Crew interface {
	// Live returns the ids of workers that are still listening, in ascending order.
	Live() []int
	// Terminate stops the worker with the given id at once. It reports whether the worker was live.
	Terminate(id int) bool
}

type crew[T any] struct {
	mu      sync.Mutex
	workers map[int]*worker[T]
}

func newCrew[T any]() *crew[T] {
	return &crew[T]{workers: make(map[int]*worker[T])}
}

func (c *crew[T]) Live() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]int, 0, len(c.workers))
	for _, id := range maputil.Keys(c.workers) {
		if c.workers[id].ctx.Err() == nil {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

func (c *crew[T]) Terminate(id int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.workers[id]
	if !ok || w.ctx.Err() != nil {
		return false
	}
	w.terminate()
	return true
}

func (c *crew[T]) add(w *worker[T]) {
	c.mu.Lock()
	c.workers[w.id] = w
	c.mu.Unlock()
}

func (c *crew[T]) remove(id int) {
	c.mu.Lock()
	delete(c.workers, id)
	c.mu.Unlock()
}

// size counts workers that have not exited yet, terminated ones included.
func (c *crew[T]) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.workers)
}

// retireHighest retires the live worker with the highest id and returns that id.
func (c *crew[T]) retireHighest() (int, bool) {
	ids := c.Live()
	if len(ids) == 0 {
		return 0, false
	}
	id := ids[len(ids)-1]

	c.mu.Lock()
	defer c.mu.Unlock()
	c.workers[id].retire()
	return id, true
}

// director coordinates one Cast run: it applies resize requests, runs the CastHandle for
// reported errors, owns the pool-wide idle timer and ends the run once no worker is left.
// All director fields are owned by the direct goroutine.
type director[T any] struct {
	cast   *Cast[T]
	run    *castRun[T]
	crew   *crew[T]
	logger *zap.Logger

	nextID   int
	retiring int // id of the worker being removed, or -1
	stopping bool
	timedOut bool
	failure  error
}

func newDirector[T any](c *Cast[T], run *castRun[T]) *director[T] {
	return &director[T]{
		cast:     c,
		run:      run,
		crew:     newCrew[T](),
		logger:   c.logger,
		retiring: -1,
	}
}

func (d *director[T]) direct() {
	timer := newIdleTimer(d.run.snap.Timeout())
	defer timer.stop()

	cut := d.run.cut
	listenDone := d.run.listen.Done()

	for {
		if d.resizeOnce() {
			timer.reset()
			continue
		}
		if d.crew.size() == 0 {
			break
		}
		if d.stopping {
			timer.stop()
		}

		select {
		case id := <-d.run.exits:
			d.reap(id)
		case rep := <-d.run.reports:
			d.report(rep)
			timer.reset()
		case <-d.run.activity:
			timer.reset()
		case <-timer.C():
			d.expire(timer)
		case <-d.cast.resize:
		case <-cut:
			cut = nil
			d.stopping = true
			d.logger.Info("cut observed, draining mailbox", zap.Int("remaining", d.cast.mailbox.Len()))
		case <-listenDone:
			listenDone = nil
			d.stopping = true
		}
	}

	d.finish()
}

// resizeOnce applies one unit of the pending resize delta. It reports whether it changed
// anything. No resize happens while a removal is in progress or the run is stopping.
func (d *director[T]) resizeOnce() bool {
	if d.stopping || d.retiring >= 0 || d.run.listen.Err() != nil {
		return false
	}

	switch delta := d.cast.pending.Load(); {
	case delta > 0:
		d.cast.pending.Dec()
		if d.spawn() {
			d.logger.Info("actor added", zap.Int("actor_id", d.nextID-1))
		}
		return true
	case delta < 0:
		id, ok := d.crew.retireHighest()
		if !ok {
			return false
		}
		d.cast.pending.Inc()
		d.retiring = id
		d.logger.Info("removing actor", zap.Int("actor_id", id))
		return true
	}
	return false
}

// spawn starts a worker with the next id. A worker rejected by a capped pool is dropped.
func (d *director[T]) spawn() bool {
	w := newWorker(d.run, d.nextID)
	if err := d.run.pool.Submit(func() { d.cast.work(d.run, w) }); err != nil {
		w.terminate()
		d.logger.Warn("actor not added", zap.Int("actor_id", w.id), zap.Error(err))
		return false
	}
	d.crew.add(w)
	d.run.alive.Inc()
	d.nextID++
	return true
}

func (d *director[T]) reap(id int) {
	d.crew.remove(id)
	d.run.alive.Dec()
	if id != d.retiring {
		return
	}
	d.retiring = -1
	if id == d.nextID-1 {
		d.nextID--
	}
	d.logger.Info("actor removed", zap.Int("actor_id", id))
}

// report runs the CastHandle for a failed receive while workers are held at the error gate.
// A handle returning an error fails the run and terminates every worker.
func (d *director[T]) report(rep errorReport[T]) {
	defer func() { rep.reply <- struct{}{} }()
	if d.failure != nil {
		return
	}

	d.run.gate.shut()
	err := callProtected(func() error {
		return d.cast.handle(d.run.ctx, rep.err, rep.msg, rep.id, d.crew, rep.snap)
	})
	d.run.gate.reopen()
	if err == nil {
		return
	}

	d.failure = newHandlerError(err, rep.msg, rep.id)
	d.stopping = true
	d.logger.Error("cast failed", zap.Int("actor_id", rep.id), zap.Error(err))
	d.run.cancel()
}

// expire stops the run naturally unless a worker is still inside receive.
func (d *director[T]) expire(timer *idleTimer) {
	if d.stopping {
		return
	}
	if d.run.busy.Load() > 0 {
		timer.reset()
		return
	}
	d.logger.Info("idle timeout reached, stopping cast", zap.Duration("timeout", d.run.snap.Timeout()))
	d.timedOut = true
	d.stopping = true
	d.run.stopListening()
}

func (d *director[T]) finish() {
	run := d.run
	d.cast.pending.Store(0)

	state := StoppedNaturally
	switch {
	case d.failure != nil:
		state = Failed
	case run.stoppedImmediately():
		state = StoppedImmediately
	}

	run.finish(state, d.failure, func() { d.cast.runCallback(run.ctx, run.snap) }, run.pool.Release)
	d.logger.Info("cast stopped", zap.Stringer("state", run.State()), zap.Bool("timed_out", d.timedOut))
}

// idleTimer is the pool-wide idle timeout. A zero duration disables it.
type idleTimer struct {
	d time.Duration
	t *time.Timer
}

func newIdleTimer(d time.Duration) *idleTimer {
	if d <= 0 {
		return &idleTimer{}
	}
	return &idleTimer{d: d, t: time.NewTimer(d)}
}

// C returns the expiry channel, or nil when the timer is disabled.
func (t *idleTimer) C() <-chan time.Time {
	if t.t == nil {
		return nil
	}
	return t.t.C
}

func (t *idleTimer) reset() {
	if t.t == nil {
		return
	}
	if !t.t.Stop() {
		select {
		case <-t.t.C:
		default:
		}
	}
	t.t.Reset(t.d)
}

func (t *idleTimer) stop() {
	if t.t != nil {
		t.t.Stop()
		t.t = nil
	}
}
