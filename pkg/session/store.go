package session

import (
	"sync"
	"time"
)

// MemoryStore keeps the record in process memory. Values are held as loosely
// typed entries, mirroring a platform key-value store, so a record with a
// wrongly typed or missing value reads back as absent.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]any
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]any)}
}

func (s *MemoryStore) Read() (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.values[IDKey].(string)
	if !ok {
		return nil, nil
	}
	start, ok := s.values[StartTimeKey].(time.Time)
	if !ok {
		return nil, nil
	}
	return &Session{ID: id, StartTimestamp: start}, nil
}

func (s *MemoryStore) Save(session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[IDKey] = session.ID
	s.values[StartTimeKey] = session.StartTimestamp
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, IDKey)
	delete(s.values, StartTimeKey)
	return nil
}

// Set writes a raw value. It exists so callers can seed partial or
// malformed records.
func (s *MemoryStore) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}
