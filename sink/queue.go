// Package sink holds the byte destinations the read sequencer pushes into.
package sink

import (
	"errors"
	"sync"

	"github.com/emirpasic/gods/queues/circularbuffer"
)

// DefaultCapacity matches the staging buffer of the firmware the queue replaces.
const DefaultCapacity = 255

var ErrFull = errors.New("sink is full")

// Queue is a bounded FIFO safe for one producer (the bus sequencer) and one
// independent consumer (the transport draining it).
type Queue struct {
	mx       sync.Mutex
	buf      *circularbuffer.Queue
	capacity int
}

func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Queue{
		buf:      circularbuffer.New(capacity),
		capacity: capacity,
	}
}

// Push appends b. Unlike the underlying ring it never overwrites: a full
// queue rejects the byte.
func (q *Queue) Push(b byte) error {
	q.mx.Lock()
	defer q.mx.Unlock()
	if q.buf.Full() {
		return ErrFull
	}
	q.buf.Enqueue(b)
	return nil
}

func (q *Queue) Pop() (byte, bool) {
	q.mx.Lock()
	defer q.mx.Unlock()
	v, ok := q.buf.Dequeue()
	if !ok {
		return 0, false
	}
	return v.(byte), true
}

// Drain moves up to len(p) queued bytes into p and returns how many it moved.
func (q *Queue) Drain(p []byte) int {
	q.mx.Lock()
	defer q.mx.Unlock()
	n := 0
	for n < len(p) {
		v, ok := q.buf.Dequeue()
		if !ok {
			break
		}
		p[n] = v.(byte)
		n++
	}
	return n
}

func (q *Queue) Len() int {
	q.mx.Lock()
	defer q.mx.Unlock()
	return q.buf.Size()
}

func (q *Queue) Cap() int {
	return q.capacity
}

func (q *Queue) Space() int {
	q.mx.Lock()
	defer q.mx.Unlock()
	return q.capacity - q.buf.Size()
}
