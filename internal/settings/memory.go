package settings

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-process Store used for tests and database-less runs.
// It mimics the persistence layer's semantics: per-key last-write-wins and no
// atomicity across keys.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(ctx context.Context, keys ...string) (Values, error) {
	if s == nil {
		return nil, fmt.Errorf("memory store is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(Values, len(keys))
	for _, key := range keys {
		if value, ok := s.values[key]; ok {
			out[key] = value
		}
	}
	return out, nil
}

func (s *MemoryStore) Set(ctx context.Context, values Values) error {
	if s == nil {
		return fmt.Errorf("memory store is nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, value := range values {
		s.values[key] = value
	}
	return nil
}
