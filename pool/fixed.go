package pool

import (
	"errors"

	"github.com/panjf2000/ants/v2"
)

// ErrZeroCapacity is returned by NewFixed for a zero capacity.
var ErrZeroCapacity = errors.New("pool: fixed pool requires capacity > 0")

// NewFixed returns a pool running at most capacity functions at once.
// Submit never blocks: it fails with ErrOverload when the pool is full.
func NewFixed(capacity uint, panicHandler func(any)) (Pool, error) {
	if capacity == 0 {
		return nil, ErrZeroCapacity
	}
	opts := []ants.Option{ants.WithNonblocking(true)}
	if panicHandler != nil {
		opts = append(opts, ants.WithPanicHandler(panicHandler))
	}
	p, err := ants.NewPool(int(capacity), opts...)
	if err != nil {
		return nil, err
	}
	return p, nil
}
