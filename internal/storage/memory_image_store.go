package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"go-damage-assessor/internal/repository"
)

// MemoryImageStore keeps images in process memory
type MemoryImageStore struct {
	mu     sync.RWMutex
	images map[string][]byte
}

// NewMemoryImageStore creates an empty store
func NewMemoryImageStore() *MemoryImageStore {
	return &MemoryImageStore{images: make(map[string][]byte)}
}

func (s *MemoryImageStore) Put(_ context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("put image: empty payload")
	}
	id := uuid.NewString()
	s.PutWithID(id, data)
	return id, nil
}

// PutWithID stores a copy of data under a caller-chosen id
func (s *MemoryImageStore) PutWithID(id string, data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)

	s.mu.Lock()
	s.images[id] = cp
	s.mu.Unlock()
}

func (s *MemoryImageStore) Get(_ context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.images[id]
	if !ok {
		return nil, repository.ErrImageNotFound
	}
	return data, nil
}

func (s *MemoryImageStore) Exists(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.images[id]
	return ok, nil
}
