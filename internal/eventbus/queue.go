// Package eventbus provides the typed FIFO queues that connect the stages of
// an editor tick.
package eventbus

// Queue is a FIFO of events. Producers Send; the consuming stage Drains.
// Not safe for concurrent use.
type Queue[T any] struct {
	events []T
}

func (q *Queue[T]) Send(ev T) { q.events = append(q.events, ev) }

func (q *Queue[T]) Len() int { return len(q.events) }

// Drain returns queued events in arrival order and empties the queue.
func (q *Queue[T]) Drain() []T {
	out := q.events
	q.events = nil
	return out
}
