// Package eventqueue implements the single-slot producer/consumer channel
// between the VP simulation thread and the receiver thread (§4.4). It
// reproduces the original's two counting-semaphore (empty_slots/full_slots)
// suspend-on-event/resume-on-CONTINUE discipline with native Go channels,
// since both sides are goroutines in one process rather than separate
// pthreads sharing POSIX semaphores.
package eventqueue

import (
	"errors"

	"github.com/rwth-ice/vpti/internal/wire"
)

// ErrClosed is returned by Post and Continue once the queue has been
// closed, so a blocked simulation thread can unwind instead of hanging
// forever on Kill (§5).
var ErrClosed = errors.New("eventqueue: closed")

// Queue is a single-slot rendezvous between the simulation thread (producer)
// and the receiver thread (consumer). At most one event is ever in flight:
// Post blocks until the event has been consumed and the driver has replied
// with CONTINUE, exactly mirroring handle_continue's role as the unique
// release point (§4.4).
type Queue struct {
	slot   chan wire.Event // full_slots: holds the one pending event, if any
	resume chan struct{}   // signaled by Continue to release a blocked Post
	done   chan struct{}
}

// NewQueue returns an empty, open event queue.
func NewQueue() *Queue {
	return &Queue{
		slot:   make(chan wire.Event, 1),
		resume: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Post is called by the VP simulation thread to report ev and suspend until
// the driver has drained it via Continue. It returns ErrClosed if the queue
// is closed before or while waiting.
func (q *Queue) Post(ev wire.Event) error {
	select {
	case q.slot <- ev:
	case <-q.done:
		return ErrClosed
	}

	select {
	case <-q.resume:
		return nil
	case <-q.done:
		return ErrClosed
	}
}

// Continue is called by the dispatcher on a CONTINUE command. It blocks
// until an event is posted, then releases the producer and returns the
// event that was waiting.
func (q *Queue) Continue() (wire.Event, error) {
	select {
	case ev := <-q.slot:
		select {
		case q.resume <- struct{}{}:
		case <-q.done:
		}
		return ev, nil
	case <-q.done:
		return wire.Event{}, ErrClosed
	}
}

// Close unblocks any goroutine currently suspended in Post or Continue.
// Idempotent calls after the first are a no-op.
func (q *Queue) Close() {
	select {
	case <-q.done:
	default:
		close(q.done)
	}
}
