package fanout

import (
	"errors"
	"sync"
)

var (
	// ErrOverflow closes a subscriber whose queue could not take a frame.
	ErrOverflow = errors.New("subscriber queue overflow")
	// ErrStopped is returned by a stopped hub and closes its subscribers.
	ErrStopped = errors.New("fan-out hub stopped")
	// ErrClosed is returned when operating on a disconnected subscriber.
	ErrClosed = errors.New("subscriber closed")
)

type OverflowPolicy string

const (
	DropOldest OverflowPolicy = "drop_oldest"
	Disconnect OverflowPolicy = "disconnect"
)

// Subscriber is one connection's view of the hub. Its topic set is guarded
// by the hub lock; its queue by its own lock.
type Subscriber struct {
	id     string
	policy OverflowPolicy

	topics map[Topic]struct{}

	mu      sync.Mutex
	queue   *ring[Frame]
	closed  bool
	err     error
	dropped int64

	notify chan struct{}
	done   chan struct{}
}

func newSubscriber(id string, capacity int, policy OverflowPolicy) *Subscriber {
	return &Subscriber{
		id:     id,
		policy: policy,
		topics: make(map[Topic]struct{}),
		queue:  newRing[Frame](capacity),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (s *Subscriber) ID() string { return s.id }

// Notify fires when frames are waiting. It coalesces signals.
func (s *Subscriber) Notify() <-chan struct{} { return s.notify }

// Done is closed once the subscriber is disconnected.
func (s *Subscriber) Done() <-chan struct{} { return s.done }

// Err reports why the subscriber was closed: ErrOverflow, ErrStopped or nil
// for a regular disconnect.
func (s *Subscriber) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscriber) Dropped() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Drain removes up to max queued frames in order.
func (s *Subscriber) Drain(max int) []Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.popBatch(max)
}

func (s *Subscriber) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.len()
}

// enqueue applies the overflow policy. dropped reports that an old frame was
// discarded. ErrOverflow means the subscriber must be closed.
func (s *Subscriber) enqueue(f Frame) (dropped bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	if s.queue.full() {
		if s.policy == Disconnect {
			return false, ErrOverflow
		}
		// A snapshot is never silently discarded.
		if oldest, _ := s.queue.peek(); oldest.Type == FrameSnapshot {
			return false, ErrOverflow
		}
		s.queue.dropOldest()
		s.dropped++
		dropped = true
	}
	s.queue.push(f)
	s.signal()
	return dropped, nil
}

func (s *Subscriber) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// close marks the subscriber closed. Frames already queued stay readable so
// a writer can flush them. Returns false if it was already closed.
func (s *Subscriber) close(reason error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	s.err = reason
	close(s.done)
	return true
}

func (s *Subscriber) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
