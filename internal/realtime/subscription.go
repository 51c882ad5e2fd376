package realtime

import (
	"context"
	"iter"
)

// Snapshot is one full result of a subscription's query. Seq increases by one
// with every snapshot delivered by the same subscription.
type Snapshot[T any] struct {
	Seq  uint64
	Data T
	Err  error
}

// Fetcher runs the query behind a subscription.
type Fetcher[T any] func(ctx context.Context) (T, error)

// Subscription is a lazy sequence of full snapshots for one query. It emits
// an initial snapshot and then one per change notification. Subscribing again
// restarts the sequence from a fresh initial snapshot.
type Subscription[T any] struct {
	change Change
	events chan Snapshot[T]
	cancel context.CancelFunc
	done   chan struct{}
}

// Subscribe starts a subscription for change. It stops when ctx is
// cancelled or Close is called.
func Subscribe[T any](ctx context.Context, hub *Hub, change Change, fetch Fetcher[T]) *Subscription[T] {
	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription[T]{
		change: change,
		events: make(chan Snapshot[T]),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	// Register before the first fetch so no change is missed in between.
	wake, unwatch := hub.watch(change)
	go s.run(ctx, wake, unwatch, fetch)
	return s
}

func (s *Subscription[T]) run(ctx context.Context, wake <-chan struct{}, unwatch func(), fetch Fetcher[T]) {
	defer close(s.done)
	defer close(s.events)
	defer unwatch()

	var seq uint64
	for {
		data, err := fetch(ctx)
		if ctx.Err() != nil {
			return
		}
		seq++

		select {
		case s.events <- Snapshot[T]{Seq: seq, Data: data, Err: err}:
		case <-ctx.Done():
			return
		}

		select {
		case <-wake:
		case <-ctx.Done():
			return
		}
	}
}

// Change returns the change the subscription watches.
func (s *Subscription[T]) Change() Change {
	return s.change
}

// Events returns the snapshot channel. It is closed after the subscription stops.
func (s *Subscription[T]) Events() <-chan Snapshot[T] {
	return s.events
}

// All returns the snapshots as an iterator. Breaking out of the loop closes
// the subscription.
func (s *Subscription[T]) All() iter.Seq[Snapshot[T]] {
	return func(yield func(Snapshot[T]) bool) {
		for snap := range s.events {
			if !yield(snap) {
				s.Close()
				return
			}
		}
	}
}

// Close stops the subscription and waits for its goroutine to exit.
func (s *Subscription[T]) Close() {
	s.cancel()
	<-s.done
}
