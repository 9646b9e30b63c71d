// Package broadcast implements a conflated, single-producer/multi-consumer
// latest-value notification bus: Publish overwrites the current value and
// wakes every subscriber, and a slow subscriber that misses several
// publishes only ever observes the most recent one, never an unbounded
// backlog. No queue exists for a backlog to build up in.
//
// This is the one piece of the storage engine's concurrency surface built
// directly on the standard library by necessity rather than a pack
// dependency: channels naturally model queues or one-shot signals, not a
// "conflated, latest-value-wins" wakeup, and no example-pack or ecosystem
// library supplies that primitive more directly than sync.Cond.
package broadcast

import (
	"context"
	"sync"
)

// Bus holds the current value and a generation counter; Subscribe captures
// the counter at subscription time and Recv blocks until it advances.
type Bus[T any] struct {
	mu    sync.Mutex
	cond  *sync.Cond
	value T
	seq   uint64
}

// New returns an empty Bus. The zero value of T is never observable by a
// Receiver unless explicitly Published.
func New[T any]() *Bus[T] {
	b := &Bus[T]{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Publish overwrites the bus's current value and wakes every blocked
// Receiver.
func (b *Bus[T]) Publish(v T) {
	b.mu.Lock()
	b.value = v
	b.seq++
	b.mu.Unlock()
	b.cond.Broadcast()
}

// Subscribe returns a Receiver that will not observe any value published
// before this call.
func (b *Bus[T]) Subscribe() *Receiver[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &Receiver[T]{bus: b, seq: b.seq}
}

// waitForChange blocks until the bus's generation has advanced past since,
// or ctx is done. A helper goroutine forces a spurious Broadcast when ctx is
// cancelled so this receiver's Wait wakes up to re-check ctx.Err(); waking
// every receiver on every cancellation is harmless since an unrelated
// receiver just loops back into Wait.
func (b *Bus[T]) waitForChange(ctx context.Context, since uint64) (T, uint64, error) {
	if done := ctx.Done(); done != nil {
		stop := make(chan struct{})
		defer close(stop)
		go func() {
			select {
			case <-done:
				// Holding mu ensures the waiter is either inside Wait or
				// has not yet checked ctx.Err(), so the wakeup is not lost.
				b.mu.Lock()
				b.cond.Broadcast()
				b.mu.Unlock()
			case <-stop:
			}
		}()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for b.seq == since {
		if err := ctx.Err(); err != nil {
			var zero T
			return zero, since, err
		}
		b.cond.Wait()
	}
	return b.value, b.seq, nil
}

// Receiver tracks one subscriber's position in the bus's generation
// sequence.
type Receiver[T any] struct {
	bus *Bus[T]
	seq uint64
}

// Recv blocks until a value newer than the last one this receiver observed
// is published, or ctx is done.
func (r *Receiver[T]) Recv(ctx context.Context) (T, error) {
	v, seq, err := r.bus.waitForChange(ctx, r.seq)
	if err != nil {
		var zero T
		return zero, err
	}
	r.seq = seq
	return v, nil
}
