package troupe

import "context"

// Fold runs collect over items on a Cast-backed Collector and returns the accumulator.
// It owns the lifecycle: Start, put all items, Cut, Wait.
//
// Semantics:
// - Items are folded in the order workers take them; with WithWorkers(1) that is input order.
// - The returned error is the run's *HandlerError, if any. With the default handle the first
//   failed collect stops the run.
// - If ctx is canceled before the mailbox drains, Fold returns ctx.Err().
func Fold[T, A any](ctx context.Context, items []T, collect Collect[T, A], opts ...Option) (A, error) {
	var zero A
	c, err := NewCastCollector[T, A](collect, opts...)
	if err != nil {
		return zero, err
	}
	if err = feed[T](ctx, c, items); err != nil {
		return zero, err
	}
	acc, _ := c.Collected()
	return acc, nil
}

// feed starts rt, puts items into its mailbox, cuts gracefully and waits for the run to end.
func feed[T any](ctx context.Context, rt runtime[T], items []T) error {
	if err := rt.Start(ctx); err != nil {
		return err
	}
	for _, item := range items {
		if err := rt.Mailbox().Put(item); err != nil {
			rt.CutImmediately()
			_ = rt.Wait()
			return err
		}
	}
	rt.Cut()

	if err := rt.Wait(); err != nil {
		return err
	}
	if rt.State() == StoppedImmediately {
		return ctx.Err()
	}
	return nil
}
