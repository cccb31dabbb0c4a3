package troupe

import (
	"context"
	"sync"
	"time"

	"github.com/eapache/queue"
)

// Envelope is a single mailbox entry: either a data message or the stop sentinel.
type Envelope[T any] struct {
	data T
	stop bool
}

// Data returns the carried message. It is the zero value for the stop sentinel.
func (e Envelope[T]) Data() T { return e.data }

// IsStop reports whether the envelope is the stop sentinel.
func (e Envelope[T]) IsStop() bool { return e.stop }

// Mailbox is a FIFO multi-producer/multi-consumer queue shared by the workers of a runtime.
// Every envelope is delivered to exactly one receiver.
// Methods are safe for concurrent use.
type Mailbox[T any] struct {
	mu       sync.Mutex
	queue    *queue.Queue
	capacity int

	// ready holds a wake-up token for a blocked receiver. Receivers re-arm it
	// while entries remain so that competing consumers are not left asleep.
	ready chan struct{}
}

type mailboxConfig struct {
	capacity int
}

// MailboxOption configures a Mailbox.
type MailboxOption func(*mailboxConfig)

// WithCapacity bounds the mailbox to n data messages. Zero (default) means unbounded.
func WithCapacity(n int) MailboxOption {
	return func(c *mailboxConfig) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// NewMailbox creates an empty mailbox.
func NewMailbox[T any](opts ...MailboxOption) *Mailbox[T] {
	var cfg mailboxConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Mailbox[T]{
		queue:    queue.New(),
		capacity: cfg.capacity,
		ready:    make(chan struct{}, 1),
	}
}

// Put enqueues msg. It never blocks: a bounded mailbox that is full returns ErrMailboxFull.
func (m *Mailbox[T]) Put(msg T) error {
	m.mu.Lock()
	if m.capacity > 0 && m.queue.Length() >= m.capacity {
		m.mu.Unlock()
		return ErrMailboxFull
	}
	m.queue.Add(Envelope[T]{data: msg})
	m.mu.Unlock()

	m.wake()
	return nil
}

// PutStop enqueues the stop sentinel. The capacity bound does not apply to it.
func (m *Mailbox[T]) PutStop() {
	m.mu.Lock()
	m.queue.Add(Envelope[T]{stop: true})
	m.mu.Unlock()

	m.wake()
}

// Poll returns the next envelope without blocking. The boolean is false when the mailbox is empty.
func (m *Mailbox[T]) Poll() (Envelope[T], bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.queue.Length() == 0 {
		return Envelope[T]{}, false
	}
	env := m.queue.Remove().(Envelope[T])
	if m.queue.Length() > 0 {
		m.wake()
	}
	return env, true
}

// Receive blocks until an envelope is available, the timeout elapses or ctx is done.
//
// A timeout <= 0 waits indefinitely. An elapsed timeout returns ErrMailboxTimeout; a done
// context returns ctx.Err(). The context is checked before every poll, so a canceled
// receiver never takes another envelope.
func (m *Mailbox[T]) Receive(ctx context.Context, timeout time.Duration) (Envelope[T], error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		if err := ctx.Err(); err != nil {
			m.passOn()
			return Envelope[T]{}, err
		}
		if env, ok := m.Poll(); ok {
			return env, nil
		}

		select {
		case <-ctx.Done():
			m.passOn()
			return Envelope[T]{}, ctx.Err()
		case <-expired:
			return Envelope[T]{}, ErrMailboxTimeout
		case <-m.ready:
		}
	}
}

// Len returns the number of queued envelopes, stop sentinels included.
func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.Length()
}

// Empty reports whether the mailbox holds no envelopes.
func (m *Mailbox[T]) Empty() bool { return m.Len() == 0 }

// passOn re-arms the wake-up token for another receiver when a canceled receiver
// leaves entries behind.
func (m *Mailbox[T]) passOn() {
	if m.Len() > 0 {
		m.wake()
	}
}

func (m *Mailbox[T]) wake() {
	select {
	case m.ready <- struct{}{}:
	default:
	}
}
