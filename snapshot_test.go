package troupe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSnapshot_IsolatedFromSource(t *testing.T) {
	fields := Fields{"greeting": "hello"}
	mb := NewMailbox[string]()
	snap := captureSnapshot(mb, time.Second, 3, fields)

	fields["greeting"] = "changed"
	fields["extra"] = 1

	v, ok := snap.Field("greeting")
	require.True(t, ok)
	require.Equal(t, "hello", v)
	_, ok = snap.Field("extra")
	require.False(t, ok)

	require.Same(t, mb, snap.Mailbox())
	require.Equal(t, time.Second, snap.Timeout())
	require.Equal(t, 3, snap.Workers())
	require.Zero(t, snap.ActorID())
}

func TestSnapshot_WithIsCopyOnWrite(t *testing.T) {
	base := captureSnapshot(NewMailbox[int](), 0, 1, Fields{"a": 1})
	next := base.With(Fields{"a": 2, "b": 3})

	require.Equal(t, Fields{"a": 1}, base.Fields())
	require.Equal(t, Fields{"a": 2, "b": 3}, next.Fields())
	require.Equal(t, base, base.With(nil))

	got := next.Fields()
	got["a"] = 100
	a, _ := FieldAs[int](next, "a")
	require.Equal(t, 2, a)
}

func TestFieldAs(t *testing.T) {
	snap := captureSnapshot(NewMailbox[int](), 0, 1, Fields{"name": "troupe", "n": 4})

	name, ok := FieldAs[string](snap, "name")
	require.True(t, ok)
	require.Equal(t, "troupe", name)

	_, ok = FieldAs[string](snap, "n")
	require.False(t, ok)
	_, ok = FieldAs[int](snap, "missing")
	require.False(t, ok)

	require.Equal(t, 5, snap.withActorID(5).ActorID())
}
