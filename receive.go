package troupe

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Receive is the canonical message handler shape.
// It processes msg and may return fields that are laid over the calling worker's
// snapshot for its subsequent messages. Returning a nil Fields leaves the snapshot as is.
// Use ReceiveFunc / ReceiveValue to adapt simpler signatures.
type Receive[T any] func(ctx context.Context, msg T, snap Snapshot[T]) (Fields, error)

// ReceiveFunc adapts func(ctx, msg, snap) error to Receive[T].
func ReceiveFunc[T any](fn func(context.Context, T, Snapshot[T]) error) Receive[T] {
	return func(ctx context.Context, msg T, snap Snapshot[T]) (Fields, error) {
		return nil, fn(ctx, msg, snap)
	}
}

// ReceiveValue adapts func(msg) to Receive[T]. The handler can never fail.
func ReceiveValue[T any](fn func(T)) Receive[T] {
	return func(_ context.Context, msg T, _ Snapshot[T]) (Fields, error) {
		fn(msg)
		return nil, nil
	}
}

// Callback runs once when a run stops naturally (idle timeout or stop sentinel).
// It never runs after an immediate cut or a fatal error.
type Callback[T any] func(ctx context.Context, snap Snapshot[T])

// Handle receives every error returned (or panic raised) by an Actor's receive, together with
// the offending message. Returning nil keeps the worker alive; returning an error stops
// the run and Wait reports it.
type Handle[T any] func(ctx context.Context, err error, msg T, snap Snapshot[T]) error

// CastHandle is the Cast counterpart of Handle. It runs on the director with the
// failing worker's id and a view of the live crew, so it can terminate workers.
// Returning an error stops the whole pool.
type CastHandle[T any] func(ctx context.Context, err error, msg T, actorID int, crew Crew, snap Snapshot[T]) error

// callReceive runs fn with panic recovery.
func callReceive[T any](ctx context.Context, fn Receive[T], msg T, snap Snapshot[T]) (fields Fields, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(ErrReceivePanicked, "%v", r)
		}
	}()
	return fn(ctx, msg, snap)
}

// callProtected runs fn, converting a panic into an error.
func callProtected(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("%s: handler panicked: %v", Namespace, r)
		}
	}()
	return fn()
}

func defaultCallback[T any](logger *zap.Logger) Callback[T] {
	return func(_ context.Context, snap Snapshot[T]) {
		logger.Info("inbox processing done", zap.Int("workers", snap.Workers()))
	}
}

func defaultHandle[T any](logger *zap.Logger) Handle[T] {
	return func(_ context.Context, err error, msg T, _ Snapshot[T]) error {
		logger.Error("receive failed", zap.Any("message", msg), zap.Error(err))
		return err
	}
}

func defaultCastHandle[T any](logger *zap.Logger) CastHandle[T] {
	return func(_ context.Context, err error, msg T, actorID int, crew Crew, _ Snapshot[T]) error {
		logger.Error("receive failed",
			zap.Int("actor_id", actorID),
			zap.Any("message", msg),
			zap.Error(err),
		)
		crew.Terminate(actorID)
		logger.Warn("actor terminated", zap.Int("actor_id", actorID))
		return err
	}
}
