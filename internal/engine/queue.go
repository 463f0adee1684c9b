package engine

import (
	"sync"

	"github.com/roach88/gridsync/internal/model"
)

// EventType distinguishes between event kinds.
type EventType int

const (
	// EventTypeTask runs an owner-side closure posted from any goroutine.
	EventTypeTask EventType = iota + 1
	// EventTypeTick is a periodic scheduler tick.
	EventTypeTick
	// EventTypeCompletion delivers a worker's result to the owner.
	EventTypeCompletion
)

func (t EventType) String() string {
	switch t {
	case EventTypeTask:
		return "task"
	case EventTypeTick:
		return "tick"
	case EventTypeCompletion:
		return "completion"
	default:
		return "unknown"
	}
}

// Event is one unit of owner-side work.
type Event struct {
	Type EventType

	// Task is set for EventTypeTask.
	Task func()

	// Op, Kind, and Result are set for EventTypeCompletion.
	Op     string
	Kind   model.Kind
	Result ReconciliationResult
	apply  func(ReconciliationResult)
}

// eventQueue is a thread-safe FIFO queue for events.
//
// The queue is unbounded so a worker posting its result never blocks, even
// if the owner is busy.
//
// Enqueue is safe from any goroutine; only the owner dequeues. The signal
// channel (buffered, size 1) lets the owner wait with a select that also
// watches its context.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front event without blocking.
// Returns (Event{}, false) if the queue is empty.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}

	e := q.events[0]

	// Nil out the slot so the closures it holds can be collected.
	q.events[0] = Event{}

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Wait returns a channel that signals when events may be available. The
// channel is closed when the queue is closed.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Closed reports whether Close has been called.
func (q *eventQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close stops further enqueues and wakes waiters.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
