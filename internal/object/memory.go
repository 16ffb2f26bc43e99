package object

import (
	"sync"

	apperrors "minigit/internal/errors"
)

// MemoryStore keeps objects in a map. Payloads are copied on the way in and
// out so callers cannot mutate stored objects.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[Hash][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[Hash][]byte),
	}
}

func (s *MemoryStore) Store(payload []byte) (Hash, error) {
	h := HashBytes(payload)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.objects[h]; !exists {
		s.objects[h] = clone(payload)
	}
	return h, nil
}

func (s *MemoryStore) Retrieve(h Hash) ([]byte, error) {
	if !ValidHash(h) {
		return nil, apperrors.InvalidHash(string(h))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	payload, ok := s.objects[h]
	if !ok {
		return nil, apperrors.ObjectNotFound(string(h))
	}
	return clone(payload), nil
}

func (s *MemoryStore) Exists(h Hash) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[h]
	return ok
}

// Len returns the number of distinct objects held.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
