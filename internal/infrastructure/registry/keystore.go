package registry

import "sync"

// MemoryKeyStore is a thread-safe, insertion-ordered, append-only set of names
type MemoryKeyStore struct {
	index map[string]struct{}
	order []string
	mutex sync.RWMutex
}

// NewMemoryKeyStore creates a key store seeded with the given names.
// Duplicate seed names are kept once, at their first position.
func NewMemoryKeyStore(seed ...string) *MemoryKeyStore {
	store := &MemoryKeyStore{
		index: make(map[string]struct{}, len(seed)),
		order: make([]string, 0, len(seed)),
	}
	for _, name := range seed {
		store.insert(name)
	}
	return store
}

// InsertIfAbsent adds name and reports whether it was new
func (s *MemoryKeyStore) InsertIfAbsent(name string) bool {
	if name == "" {
		return false
	}

	s.mutex.RLock()
	_, exists := s.index[name]
	s.mutex.RUnlock()
	if exists {
		return false
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.insert(name)
}

// insert must be called with the write lock held (or before the store is shared)
func (s *MemoryKeyStore) insert(name string) bool {
	if _, exists := s.index[name]; exists || name == "" {
		return false
	}
	s.index[name] = struct{}{}
	s.order = append(s.order, name)
	return true
}

// Contains reports whether name is in the set
func (s *MemoryKeyStore) Contains(name string) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	_, exists := s.index[name]
	return exists
}

// Snapshot returns a copy of the names in insertion order
func (s *MemoryKeyStore) Snapshot() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of names in the set
func (s *MemoryKeyStore) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.order)
}
