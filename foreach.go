package troupe

import "context"

// ForEach applies fn to each item on a Cast and waits until every item is processed.
// Options like WithWorkers, WithMaxWorkers and WithCastHandle are honored.
// With the default handle, the first failing item stops the run and its *HandlerError
// is returned.
func ForEach[T any](ctx context.Context, items []T, fn func(context.Context, T) error, opts ...Option) error {
	if len(items) == 0 {
		return nil
	}
	c, err := NewCast[T](ReceiveFunc(func(ctx context.Context, item T, _ Snapshot[T]) error {
		return fn(ctx, item)
	}), opts...)
	if err != nil {
		return err
	}
	return feed[T](ctx, c, items)
}
