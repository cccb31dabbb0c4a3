package troupe

import (
	"time"

	"github.com/duke-git/lancet/v2/maputil"
)

// Fields holds arbitrary user values passed through to every handler call.
type Fields map[string]any

// Snapshot is the read-only configuration handed to every worker of a run.
// It is captured once at Start; mutating the owning runtime afterwards does not affect it.
// A Snapshot is a value: copies share nothing mutable except the mailbox.
type Snapshot[T any] struct {
	mailbox *Mailbox[T]
	timeout time.Duration
	workers int
	actorID int
	fields  Fields
}

func captureSnapshot[T any](mb *Mailbox[T], timeout time.Duration, workers int, fields Fields) Snapshot[T] {
	return Snapshot[T]{
		mailbox: mb,
		timeout: timeout,
		workers: workers,
		fields:  maputil.Merge(fields),
	}
}

// Mailbox returns the mailbox drained by the run.
func (s Snapshot[T]) Mailbox() *Mailbox[T] { return s.mailbox }

// Timeout returns the idle timeout; zero means disabled.
func (s Snapshot[T]) Timeout() time.Duration { return s.timeout }

// Workers returns the worker count requested at Start (1 for an Actor).
func (s Snapshot[T]) Workers() int { return s.workers }

// ActorID returns the identity of the worker holding this snapshot.
// It is 0 for an Actor and for snapshots given to callbacks.
func (s Snapshot[T]) ActorID() int { return s.actorID }

// Field returns a user field by name.
func (s Snapshot[T]) Field(name string) (any, bool) {
	v, ok := s.fields[name]
	return v, ok
}

// Fields returns a copy of all user fields.
func (s Snapshot[T]) Fields() Fields { return maputil.Merge(s.fields) }

// With returns a snapshot with fields laid over the current ones. The receiver is unchanged.
func (s Snapshot[T]) With(fields Fields) Snapshot[T] {
	if len(fields) == 0 {
		return s
	}
	s.fields = maputil.Merge(s.fields, fields)
	return s
}

func (s Snapshot[T]) withActorID(id int) Snapshot[T] {
	s.actorID = id
	return s
}

// FieldAs returns the user field name converted to V.
// The boolean is false if the field is missing or holds another type.
func FieldAs[V, T any](s Snapshot[T], name string) (V, bool) {
	v, ok := s.fields[name].(V)
	return v, ok
}
