// Package pool runs the long-lived listen loops of troupe workers on an ants goroutine pool.
package pool

import "github.com/panjf2000/ants/v2"

// ErrOverload is returned by Submit on a fixed pool whose capacity is exhausted.
var ErrOverload = ants.ErrPoolOverload

// Pool is an interface that defines methods on a pool of worker goroutines.
type Pool interface {
	// Submit runs fn on a pool goroutine.
	Submit(fn func()) error

	// Running returns the number of goroutines currently executing a submitted function.
	Running() int

	// Cap returns the pool capacity, -1 when unbounded.
	Cap() int

	// Release closes the pool. Functions already running are not interrupted.
	Release()
}
