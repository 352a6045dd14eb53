package history

import (
	"slices"
	"sync"

	"llmarena/internal/core"
)

// Store is a bounded, deduplicated list of recently submitted prompts.
// It is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	prompts  []string
	capacity int
}

// NewStore creates a store keeping at most capacity prompts.
func NewStore(capacity int) *Store {
	if capacity < 1 {
		capacity = core.DefaultHistorySize
	}
	return &Store{
		prompts:  make([]string, 0, capacity+1),
		capacity: capacity,
	}
}

// Record appends prompt unless an identical prompt is already stored, then
// drops the oldest entries beyond capacity.
func (s *Store) Record(prompt string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if slices.Contains(s.prompts, prompt) {
		return
	}
	s.prompts = append(s.prompts, prompt)
	if overflow := len(s.prompts) - s.capacity; overflow > 0 {
		s.prompts = append(s.prompts[:0], s.prompts[overflow:]...)
	}
}

// List returns a snapshot of the stored prompts, oldest first.
func (s *Store) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.prompts)
}

// Len returns the number of stored prompts.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.prompts)
}

// Capacity returns the maximum number of prompts kept.
func (s *Store) Capacity() int {
	return s.capacity
}
