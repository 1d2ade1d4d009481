package dedup

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore is a process-local FIFO window. It is not shared across
// server instances.
type MemoryStore struct {
	mu        sync.Mutex
	capacity  int
	order     []string
	responses map[string]json.RawMessage
}

func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryStore{
		capacity:  capacity,
		order:     make([]string, 0, capacity),
		responses: make(map[string]json.RawMessage, capacity),
	}
}

func (s *MemoryStore) Track(ctx context.Context, sig string) (bool, json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cached, ok := s.responses[sig]; ok {
		return true, cached, nil
	}
	s.responses[sig] = nil
	s.order = append(s.order, sig)
	for len(s.order) > s.capacity {
		delete(s.responses, s.order[0])
		s.order = s.order[1:]
	}
	return false, nil, nil
}

func (s *MemoryStore) Record(ctx context.Context, sig string, response json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.responses[sig]; ok {
		s.responses[sig] = response
	}
	return nil
}

func (s *MemoryStore) Forget(ctx context.Context, sig string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.responses[sig]; !ok {
		return nil
	}
	delete(s.responses, sig)
	for i, v := range s.order {
		if v == sig {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) Len(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order), nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = s.order[:0]
	s.responses = make(map[string]json.RawMessage, s.capacity)
	return nil
}
