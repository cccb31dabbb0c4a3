package troupe

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestCast_ProcessesEveryMessageOnce(t *testing.T) {
	const messages = 200
	var (
		rec     recorder[int]
		actorMu sync.Mutex
		actors  = map[int]bool{}
	)
	callbacks := atomic.NewInt32(0)

	c, err := NewCast(func(_ context.Context, msg int, snap Snapshot[int]) (Fields, error) {
		actorMu.Lock()
		actors[snap.ActorID()] = true
		actorMu.Unlock()
		rec.add(msg)
		time.Sleep(time.Millisecond)
		return nil, nil
	}, quiet, WithWorkers(4),
		WithCallback[int](func(_ context.Context, snap Snapshot[int]) {
			callbacks.Inc()
		}),
	)
	require.NoError(t, err)
	require.Equal(t, 4, c.Size())

	require.NoError(t, c.Start(context.Background()))
	for i := 0; i < messages; i++ {
		require.NoError(t, c.Mailbox().Put(i))
	}
	c.Cut()

	require.NoError(t, c.Wait())
	require.Equal(t, StoppedNaturally, c.State())
	require.EqualValues(t, 1, callbacks.Load())

	got := rec.get()
	sort.Ints(got)
	want := make([]int, messages)
	for i := range want {
		want[i] = i
	}
	require.Equal(t, want, got)

	actorMu.Lock()
	defer actorMu.Unlock()
	for id := range actors {
		require.True(t, id >= 0 && id < 4, "unexpected actor id %d", id)
	}
}

func TestCast_CutDrainsBehindSentinel(t *testing.T) {
	// the sentinel is taken early by one worker while the others are still busy
	var rec recorder[int]
	c, err := NewCast(ReceiveValue(func(msg int) {
		time.Sleep(5 * time.Millisecond)
		rec.add(msg)
	}), quiet, WithWorkers(3))
	require.NoError(t, err)

	require.NoError(t, c.Start(context.Background()))
	for i := 0; i < 30; i++ {
		require.NoError(t, c.Mailbox().Put(i))
	}
	c.Cut()

	require.NoError(t, c.Wait())
	require.Len(t, rec.get(), 30)
	require.True(t, c.Mailbox().Empty())
}

func TestCast_IdleTimeout(t *testing.T) {
	t.Run("pool-wide timeout stops naturally", func(t *testing.T) {
		called := make(chan struct{}, 1)
		c, err := NewCast(ReceiveValue(func(int) {}), quiet,
			WithWorkers(3),
			WithTimeout(40*time.Millisecond),
			WithCallback[int](func(context.Context, Snapshot[int]) { called <- struct{}{} }),
		)
		require.NoError(t, err)
		require.NoError(t, c.Start(context.Background()))
		for i := 0; i < 5; i++ {
			require.NoError(t, c.Mailbox().Put(i))
		}

		waitDone(t, c.Done(), 2*time.Second)
		require.Equal(t, StoppedNaturally, c.State())
		require.Len(t, called, 1)
	})

	t.Run("a long receive delays the timeout", func(t *testing.T) {
		finished := atomic.NewBool(false)
		c, err := NewCast(ReceiveValue(func(int) {
			time.Sleep(150 * time.Millisecond)
			finished.Store(true)
		}), quiet, WithWorkers(2), WithTimeout(30*time.Millisecond))
		require.NoError(t, err)
		require.NoError(t, c.Start(context.Background()))
		require.NoError(t, c.Mailbox().Put(1))

		waitDone(t, c.Done(), 2*time.Second)
		require.True(t, finished.Load())
		require.Equal(t, StoppedNaturally, c.State())
	})
}

func TestIdleTimeout_RestartsOnActivity(t *testing.T) {
	const (
		timeout  = 100 * time.Millisecond
		interval = 20 * time.Millisecond
		messages = 12
	)
	tests := []struct {
		name string
		new  func(Receive[int]) (runtime[int], error)
	}{
		{"actor", func(r Receive[int]) (runtime[int], error) {
			return NewActor(r, quiet, WithTimeout(timeout))
		}},
		{"cast", func(r Receive[int]) (runtime[int], error) {
			return NewCast(r, quiet, WithWorkers(3), WithTimeout(timeout))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			received := atomic.NewInt64(0)
			rt, err := tt.new(ReceiveValue(func(int) { received.Inc() }))
			require.NoError(t, err)
			require.NoError(t, rt.Start(context.Background()))

			// arrivals span several timeout windows
			for i := 0; i < messages; i++ {
				time.Sleep(interval)
				require.Equalf(t, Running, rt.State(), "stopped before message %d", i)
				require.NoError(t, rt.Mailbox().Put(i))
			}

			waitDone(t, rt.Done(), 2*time.Second)
			require.Equal(t, StoppedNaturally, rt.State())
			require.EqualValues(t, messages, received.Load())
		})
	}
}

func TestCast_Resize(t *testing.T) {
	c, err := NewCast(ReceiveValue(func(int) {}), quiet, WithWorkers(1))
	require.NoError(t, err)

	// requests before Start carry into the run
	c.Add(1)
	require.Equal(t, 2, c.Size())
	c.Add(0)
	c.Remove(-3)
	require.Equal(t, 2, c.Size())

	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, func() bool { return c.Size() == 2 && c.pending.Load() == 0 }, time.Second, 5*time.Millisecond)

	c.Add(2)
	require.Eventually(t, func() bool { return c.current().alive.Load() == 4 }, time.Second, 5*time.Millisecond)

	c.Remove(1)
	require.Eventually(t, func() bool { return c.current().alive.Load() == 3 }, time.Second, 5*time.Millisecond)
	require.Equal(t, Running, c.State())

	// removing more workers than exist empties the crew and ends the run
	c.Remove(10)
	waitDone(t, c.Done(), 2*time.Second)
	require.Equal(t, StoppedNaturally, c.State())
	require.Zero(t, c.pending.Load())
}

func TestCast_RemoveLetsCurrentMessageFinish(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	done := atomic.NewInt32(0)

	c, err := NewCast(ReceiveValue(func(int) {
		close(started)
		<-release
		done.Inc()
	}), quiet, WithWorkers(1))
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Mailbox().Put(1))
	<-started

	c.Remove(1)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, Running, c.State(), "worker exits only after its message")

	close(release)
	waitDone(t, c.Done(), time.Second)
	require.EqualValues(t, 1, done.Load())
}

func TestCast_MaxWorkers(t *testing.T) {
	block := make(chan struct{})
	c, err := NewCast(ReceiveValue(func(int) { <-block }), quiet, WithWorkers(1), WithMaxWorkers(2))
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))

	c.Add(3)
	require.Eventually(t, func() bool { return c.pending.Load() == 0 }, time.Second, 5*time.Millisecond)
	require.EqualValues(t, 2, c.current().alive.Load())

	close(block)
	c.CutImmediately()
	require.NoError(t, c.Wait())
}

func TestCast_ErrorHandling(t *testing.T) {
	boom := errors.New("boom")
	failOn := func(bad int) Receive[int] {
		return ReceiveFunc(func(_ context.Context, msg int, _ Snapshot[int]) error {
			if msg == bad {
				return boom
			}
			return nil
		})
	}

	t.Run("handle that returns nil keeps the crew running", func(t *testing.T) {
		var rec recorder[int]
		reports := make(chan [2]int, 1)
		c, err := NewCast(func(ctx context.Context, msg int, snap Snapshot[int]) (Fields, error) {
			rec.add(msg)
			return failOn(3)(ctx, msg, snap)
		}, quiet, WithWorkers(2),
			WithCastHandle[int](func(_ context.Context, err error, msg int, id int, crew Crew, _ Snapshot[int]) error {
				if errors.Is(err, boom) {
					live := 0
					for _, liveID := range crew.Live() {
						if liveID == id {
							live = 1
						}
					}
					reports <- [2]int{msg, live}
				}
				return nil
			}),
		)
		require.NoError(t, err)
		require.NoError(t, c.Start(context.Background()))
		for i := 0; i < 10; i++ {
			require.NoError(t, c.Mailbox().Put(i))
		}
		c.Cut()

		require.NoError(t, c.Wait())
		require.Equal(t, [2]int{3, 1}, <-reports, "the failing worker is live while handled")
		require.Len(t, rec.get(), 10)
		require.Equal(t, StoppedNaturally, c.State())
	})

	t.Run("handle can terminate only the failing worker", func(t *testing.T) {
		c, err := NewCast(failOn(0), quiet, WithWorkers(3),
			WithCastHandle[int](func(_ context.Context, _ error, _ int, id int, crew Crew, _ Snapshot[int]) error {
				if !crew.Terminate(id) {
					return errors.New("worker was not live")
				}
				return nil
			}),
		)
		require.NoError(t, err)
		require.NoError(t, c.Start(context.Background()))
		require.NoError(t, c.Mailbox().Put(0))

		require.Eventually(t, func() bool { return c.Size() == 2 }, time.Second, 5*time.Millisecond)
		require.Equal(t, Running, c.State())
		c.Cut()
		require.NoError(t, c.Wait())
	})

	t.Run("default handle is fatal to the pool", func(t *testing.T) {
		c, err := NewCast(failOn(7), quiet, WithWorkers(3))
		require.NoError(t, err)
		require.NoError(t, c.Start(context.Background()))
		for i := 0; i < 20; i++ {
			require.NoError(t, c.Mailbox().Put(i))
		}

		err = c.Wait()
		require.ErrorIs(t, err, boom)
		msg, ok := ExtractMessage(err)
		require.True(t, ok)
		require.Equal(t, 7, msg)
		id, ok := ExtractActorID(err)
		require.True(t, ok)
		require.True(t, id >= 0 && id < 3)
		require.Equal(t, Failed, c.State())
	})
}

func TestCast_CutImmediately(t *testing.T) {
	var rec recorder[int]
	started := make(chan struct{}, 2)
	release := make(chan struct{})
	called := atomic.NewBool(false)

	c, err := NewCast(ReceiveValue(func(msg int) {
		rec.add(msg)
		started <- struct{}{}
		<-release
	}), quiet, WithWorkers(2), WithCallback[int](func(context.Context, Snapshot[int]) { called.Store(true) }))
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))

	require.NoError(t, c.Mailbox().Put(0))
	require.NoError(t, c.Mailbox().Put(1))
	<-started
	<-started
	c.CutImmediately()
	for i := 2; i < 6; i++ {
		require.NoError(t, c.Mailbox().Put(i))
	}
	close(release)

	require.NoError(t, c.Wait())
	require.Equal(t, StoppedImmediately, c.State())
	require.ElementsMatch(t, []int{0, 1}, rec.get())
	require.False(t, called.Load())
}

func TestCast_Restart(t *testing.T) {
	c, err := NewCast(ReceiveValue(func(int) {}), quiet, WithWorkers(2))
	require.NoError(t, err)

	require.NoError(t, c.Start(context.Background()))
	require.ErrorIs(t, c.Start(context.Background()), ErrAlreadyRunning)

	first := c.Done()
	require.NoError(t, c.Restart(context.Background()))
	waitDone(t, first, time.Second)
	require.Equal(t, Running, c.State())

	c.Cut()
	require.NoError(t, c.Wait())
}

func TestCrew_Live(t *testing.T) {
	run := &castRun[int]{lifecycle: newLifecycle(context.Background())}
	cr := newCrew[int]()
	for _, id := range []int{2, 0, 1} {
		cr.add(newWorker(run, id))
	}
	require.Equal(t, []int{0, 1, 2}, cr.Live())

	require.True(t, cr.Terminate(1))
	require.False(t, cr.Terminate(1))
	require.False(t, cr.Terminate(9))
	require.Equal(t, []int{0, 2}, cr.Live())
	require.Equal(t, 3, cr.size())

	id, ok := cr.retireHighest()
	require.True(t, ok)
	require.Equal(t, 2, id)
	cr.remove(1)
	require.Equal(t, 2, cr.size())
}

func TestErrorGate(t *testing.T) {
	g := newErrorGate()
	require.NoError(t, g.wait(context.Background()))

	g.shut()
	g.shut()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, g.wait(ctx), context.DeadlineExceeded)

	released := make(chan error, 1)
	go func() { released <- g.wait(context.Background()) }()
	g.reopen()
	g.reopen()
	require.NoError(t, <-released)
}
