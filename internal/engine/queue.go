package engine

import (
	"sync"

	"github.com/roach88/ffspoints/internal/point"
)

// EventType distinguishes between event kinds.
type EventType int

const (
	// EventTypeTrial records a finished trial as a new point.
	EventTypeTrial EventType = iota + 1
	// EventTypeCost extends the recorded cost of an existing point.
	EventTypeCost
)

func (t EventType) String() string {
	switch t {
	case EventTypeTrial:
		return "trial"
	case EventTypeCost:
		return "cost"
	default:
		return "unknown"
	}
}

// Cost is the payload of a cost event.
type Cost struct {
	PointID string
	Steps   int64
	Time    float64
}

// Event is one worker report waiting for the Run loop.
type Event struct {
	Type   EventType
	Ticket int64
	Trial  *point.Point
	Cost   *Cost
	reply  chan<- Result
}

// Result is the outcome of one processed event.
type Result struct {
	Ticket int64
	Type   EventType
	// Point is the stored point for trial events.
	Point point.Point
	// Found reports whether a cost event matched a point.
	Found bool
	Err   error
}

// eventQueue is a thread-safe unbounded FIFO queue.
//
// Workers enqueue from any goroutine while the Run loop dequeues. The
// signal channel (buffered, size 1) lets Run wait on the queue and the
// context together.
type eventQueue struct {
	mu     sync.Mutex
	clock  *Clock
	events []Event
	closed bool
	signal chan struct{}
}

func newEventQueue(clock *Clock) *eventQueue {
	return &eventQueue{
		clock:  clock,
		events: make([]Event, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue stamps e with the next ticket and adds it to the back of the
// queue. Stamping under mu keeps tickets increasing in dequeue order.
// Returns false if the queue is closed; no ticket is used then.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	e.Ticket = q.clock.Next()
	q.events = append(q.events, e)

	// Non-blocking: the one-slot buffer coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front event without blocking.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}
	e := q.events[0]
	// Clear the slot so the backing array does not pin the point.
	q.events[0] = Event{}
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	return e, true
}

// Wait returns a channel that signals when events may be available. It is
// closed once the queue is closed.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close stops further enqueues and wakes the waiter. Queued events are
// still delivered by TryDequeue.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
