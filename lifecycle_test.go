package troupe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLifecycle_FinishOnce(t *testing.T) {
	lc := newLifecycle(context.Background())
	require.Equal(t, Running, lc.State())
	require.False(t, lc.finished())

	var steps []string
	onNatural := func() { steps = append(steps, "callback") }
	release := func() { steps = append(steps, "release") }

	lc.finish(StoppedNaturally, nil, onNatural, release)
	lc.finish(Failed, errors.New("late"), onNatural, release)

	require.Equal(t, []string{"callback", "release"}, steps)
	require.Equal(t, StoppedNaturally, lc.State())
	require.True(t, lc.finished())
	require.NoError(t, lc.wait())
	require.Error(t, lc.ctx.Err())
	require.Error(t, lc.listen.Err())
}

func TestLifecycle_NoCallbackUnlessNatural(t *testing.T) {
	for _, state := range []State{StoppedImmediately, Failed} {
		t.Run(state.String(), func(t *testing.T) {
			lc := newLifecycle(context.Background())
			called := false
			boom := errors.New("boom")
			lc.finish(state, boom, func() { called = true }, nil)

			require.False(t, called)
			require.Equal(t, state, lc.State())
			require.ErrorIs(t, lc.wait(), boom)
		})
	}
}

func TestLifecycle_Halt(t *testing.T) {
	lc := newLifecycle(context.Background())
	require.False(t, lc.stoppedImmediately())

	lc.halt()
	require.True(t, lc.stoppedImmediately())
	require.Error(t, lc.listen.Err())
	require.NoError(t, lc.ctx.Err(), "halt must not cancel in-flight handlers")
}

func TestLifecycle_NaturalStopAfterHaltSkipsCallback(t *testing.T) {
	lc := newLifecycle(context.Background())
	// halted is set but listen is not yet canceled, as inside halt
	lc.halted.Store(true)

	called := false
	lc.finish(StoppedNaturally, nil, func() { called = true }, nil)

	require.False(t, called)
	require.Equal(t, StoppedImmediately, lc.State())
}

func TestLifecycle_ParentCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	lc := newLifecycle(ctx)
	cancel()

	select {
	case <-lc.listen.Done():
	case <-time.After(time.Second):
		t.Fatalf("listen context not canceled with its parent")
	}
	require.True(t, lc.stoppedImmediately())
}

func TestState_String(t *testing.T) {
	require.Equal(t, "idle", Idle.String())
	require.Equal(t, "running", Running.String())
	require.Equal(t, "stopped naturally", StoppedNaturally.String())
	require.Equal(t, "stopped immediately", StoppedImmediately.String())
	require.Equal(t, "failed", Failed.String())
	require.Equal(t, "unknown", State(42).String())

	require.False(t, Running.Terminal())
	require.True(t, Failed.Terminal())
}
