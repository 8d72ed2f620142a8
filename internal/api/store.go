package api

import (
	"sync"

	"github.com/mumuon/drivefinder/kml-service/internal/service"
)

// Store keeps the most recent conversions in memory. When full, the oldest
// conversion is evicted.
type Store struct {
	mu       sync.RWMutex
	capacity int
	items    map[string]*service.Conversion
	order    []string // Insertion order, oldest first
}

// NewStore creates a store holding at most capacity conversions.
func NewStore(capacity int) *Store {
	if capacity < 1 {
		capacity = 1
	}
	return &Store{
		capacity: capacity,
		items:    make(map[string]*service.Conversion, capacity),
	}
}

// Put adds c, evicting the oldest conversion if the store is full.
func (s *Store) Put(c *service.Conversion) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[c.ID]; !exists {
		s.order = append(s.order, c.ID)
	}
	s.items[c.ID] = c

	for len(s.order) > s.capacity {
		delete(s.items, s.order[0])
		s.order = s.order[1:]
	}
}

// Get returns the conversion with the given ID.
func (s *Store) Get(id string) (*service.Conversion, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.items[id]
	return c, ok
}

// Delete removes a conversion and reports whether it existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return false
	}
	delete(s.items, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// List returns the stored conversions, newest first.
func (s *Store) List() []*service.Conversion {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*service.Conversion, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, s.items[s.order[i]])
	}
	return out
}

// Len returns the number of stored conversions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
