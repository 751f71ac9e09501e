package engine

import "sync"

const defaultFeedDepth = 8

// Feed fans values out to zero or more subscribers. Delivery is
// fire-and-forget: each subscriber gets a buffered channel and a value
// is dropped for a subscriber whose buffer is full, so a slow consumer
// can never stall the poll or commit cycle.
type Feed[T any] struct {
	mu   sync.Mutex
	subs map[int]chan T
	next int
}

// NewFeed returns a feed with no subscribers.
func NewFeed[T any]() *Feed[T] {
	return &Feed[T]{
		subs: make(map[int]chan T),
	}
}

// Subscribe registers a subscriber with the given channel depth
// (defaulted when non-positive) and returns its channel plus an
// unsubscribe function. Unsubscribing closes the channel.
func (f *Feed[T]) Subscribe(depth int) (<-chan T, func()) {
	if depth <= 0 {
		depth = defaultFeedDepth
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.next
	f.next++

	ch := make(chan T, depth)
	f.subs[id] = ch

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()

		if sub, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(sub)
		}
	}

	return ch, cancel
}

// Publish delivers v to every subscriber that has buffer room and
// returns the number of subscribers that received it.
func (f *Feed[T]) Publish(v T) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	delivered := 0
	for _, sub := range f.subs {
		select {
		case sub <- v:
			delivered++
		default:
			// subscriber is behind, drop
		}
	}

	return delivered
}

// Close unsubscribes everyone and closes their channels.
func (f *Feed[T]) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for id, sub := range f.subs {
		delete(f.subs, id)
		close(sub)
	}
}
