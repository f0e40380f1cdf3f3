package synth

import "sync/atomic"

// EventQueue is a fixed-capacity single-producer/single-consumer ring of note
// events. Push and Pop never block or allocate. One goroutine may push while
// the audio thread pops.
type EventQueue struct {
	buf     []Event
	mask    uint64
	head    atomic.Uint64 // next slot to pop
	tail    atomic.Uint64 // next slot to push
	dropped atomic.Uint64
}

// NewEventQueue creates a queue holding at least capacity events.
func NewEventQueue(capacity int) *EventQueue {
	size := 1
	for size < capacity {
		size <<= 1
	}
	return &EventQueue{
		buf:  make([]Event, size),
		mask: uint64(size - 1),
	}
}

// Cap returns the number of slots.
func (q *EventQueue) Cap() int {
	return len(q.buf)
}

// Len returns the number of queued events.
func (q *EventQueue) Len() int {
	return int(q.tail.Load() - q.head.Load())
}

// Push appends e. It returns false and counts a drop when the ring is full.
func (q *EventQueue) Push(e Event) bool {
	tail := q.tail.Load()
	if tail-q.head.Load() >= uint64(len(q.buf)) {
		q.dropped.Add(1)
		return false
	}
	q.buf[tail&q.mask] = e
	q.tail.Store(tail + 1)
	return true
}

// PushMIDI decodes a raw message and pushes it. Malformed data is dropped.
func (q *EventQueue) PushMIDI(data []byte) bool {
	e, ok := DecodeMIDI(data)
	if !ok {
		return false
	}
	return q.Push(e)
}

// Pop removes the oldest event.
func (q *EventQueue) Pop() (Event, bool) {
	head := q.head.Load()
	if head == q.tail.Load() {
		return Event{}, false
	}
	e := q.buf[head&q.mask]
	q.head.Store(head + 1)
	return e, true
}

// Dropped returns the number of events rejected because the ring was full.
func (q *EventQueue) Dropped() uint64 {
	return q.dropped.Load()
}
