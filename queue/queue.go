package queue

import (
	"errors"
	"sync"
)

var (
	// ErrDuplicate is returned when the case is already waiting in the queue.
	ErrDuplicate = errors.New("case already queued")
	// ErrClosed is returned when the queue no longer accepts work.
	ErrClosed = errors.New("queue closed")
)

// Entry is a unit of work waiting for a worker.
type Entry struct {
	CaseNumber string
}

// Queue is a FIFO work queue with O(1) duplicate detection. A case number
// can appear at most once at any time; workers poll with Dequeue.
type Queue struct {
	mu      sync.Mutex
	entries []Entry
	members map[string]struct{}
	closed  bool
}

func New() *Queue {
	return &Queue{
		members: make(map[string]struct{}),
	}
}

// Enqueue appends an entry unless its case number is already present.
func (q *Queue) Enqueue(e Entry) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	if _, ok := q.members[e.CaseNumber]; ok {
		return ErrDuplicate
	}

	q.entries = append(q.entries, e)
	q.members[e.CaseNumber] = struct{}{}
	return nil
}

// Dequeue pops the oldest entry. The second return is false when the
// queue is empty; callers are expected to poll.
func (q *Queue) Dequeue() (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return Entry{}, false
	}

	e := q.entries[0]
	q.entries = q.entries[1:]
	delete(q.members, e.CaseNumber)
	return e, true
}

// Requeue puts an entry back at the tail, e.g. when its case number is
// currently being processed by another worker. It reports whether the
// entry is still represented in the queue: duplicates count as accepted
// since the work is already there, but a closed queue refuses the entry
// and the caller must dispose of the case itself.
func (q *Queue) Requeue(e Entry) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	if _, ok := q.members[e.CaseNumber]; ok {
		return true
	}
	q.entries = append(q.entries, e)
	q.members[e.CaseNumber] = struct{}{}
	return true
}

// Contains reports whether the case number is waiting in the queue.
func (q *Queue) Contains(caseNumber string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.members[caseNumber]
	return ok
}

// Len returns the number of waiting entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Close rejects further Enqueue calls. Entries already queued can still
// be drained with Dequeue.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}

// Closed reports whether the queue has been closed.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
