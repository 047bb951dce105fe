package recent

import (
	"slices"
	"sync"
)

// DefaultCapacity is the number of identifiers kept when no capacity is
// configured.
const DefaultCapacity = 10

// Persister holds the shared copy of the list, most recent first. Other
// processes may change it between calls.
type Persister interface {
	LoadRecent() ([]string, error)
	// UpdateRecent applies fn to the stored list atomically and returns
	// what was written.
	UpdateRecent(fn func(stored []string) []string) ([]string, error)
}

// Store is the bounded most-recently-used list of launched entry names. A
// single mutex guards it; Touch holds it across the persisted update and the
// in-memory swap and nothing else.
type Store struct {
	mu       sync.Mutex
	ids      []string
	capacity int
	persist  Persister
}

// NewStore returns a store seeded with initial, which is normalized the same
// way Touch keeps the list: duplicates dropped, at most capacity ids.
func NewStore(capacity int, initial []string, persist Persister) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Store{ids: normalize(initial, capacity), capacity: capacity, persist: persist}
}

// normalize drops duplicates and keeps at most capacity ids.
func normalize(ids []string, capacity int) []string {
	out := make([]string, 0, min(len(ids), capacity))
	for _, id := range ids {
		if len(out) == capacity {
			break
		}
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// Snapshot returns a copy of the list, most recent first.
func (s *Store) Snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

// Len returns the number of stored ids.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// Capacity returns the maximum length.
func (s *Store) Capacity() int {
	return s.capacity
}

// Touch moves id to the front and persists the result. With a persister the
// promotion is applied to the stored list, which may hold launches recorded
// by other processes; the in-memory list is replaced by what was written
// only once the write succeeded.
func (s *Store) Touch(id string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := Promote(s.ids, id, s.capacity)
	if s.persist != nil {
		written, err := s.persist.UpdateRecent(func(stored []string) []string {
			return Promote(stored, id, s.capacity)
		})
		if err != nil {
			return nil, err
		}
		next = written
	}
	s.ids = next

	out := make([]string, len(next))
	copy(out, next)
	return out, nil
}

// Refresh reloads the list from the persister, picking up launches recorded
// by other processes. Without a persister it does nothing.
func (s *Store) Refresh() error {
	if s.persist == nil {
		return nil
	}

	ids, err := s.persist.LoadRecent()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = normalize(ids, s.capacity)
	return nil
}

// Promote returns a new list with id at the front, any earlier occurrence
// removed and the tail cut to capacity. ids is not modified.
func Promote(ids []string, id string, capacity int) []string {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	next := make([]string, 0, min(len(ids)+1, capacity))
	next = append(next, id)
	for _, existing := range ids {
		if len(next) == capacity {
			break
		}
		if existing != id {
			next = append(next, existing)
		}
	}
	return next
}
