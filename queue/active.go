package queue

import "sync"

// ActiveSet tracks case numbers currently held by workers. It gives
// at-most-one-worker-per-case mutual exclusion: a worker must TryAcquire
// before processing and Release in a defer when done.
type ActiveSet struct {
	mu      sync.Mutex
	members map[string]struct{}
}

func NewActiveSet() *ActiveSet {
	return &ActiveSet{
		members: make(map[string]struct{}),
	}
}

// TryAcquire claims the case number. It returns false if another worker
// already holds it.
func (s *ActiveSet) TryAcquire(caseNumber string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[caseNumber]; ok {
		return false
	}
	s.members[caseNumber] = struct{}{}
	return true
}

// Release gives the case number back. Releasing an unheld case is a no-op.
func (s *ActiveSet) Release(caseNumber string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members, caseNumber)
}

// Contains reports whether the case number is currently held.
func (s *ActiveSet) Contains(caseNumber string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.members[caseNumber]
	return ok
}

// Len returns the number of held case numbers.
func (s *ActiveSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.members)
}
