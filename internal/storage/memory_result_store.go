package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go-damage-assessor/internal/repository"
	"go-damage-assessor/pkg/models"
)

type storedResult struct {
	payload   []byte
	createdAt time.Time
	seq       uint64
}

// MemoryResultStore keeps serialized results in process memory. Results are
// stored as JSON so callers never share a mutable record with the store.
type MemoryResultStore struct {
	mu      sync.RWMutex
	results map[string]storedResult
	seq     uint64
}

// NewMemoryResultStore creates an empty store
func NewMemoryResultStore() *MemoryResultStore {
	return &MemoryResultStore{results: make(map[string]storedResult)}
}

func (s *MemoryResultStore) Save(_ context.Context, jobID string, result *models.AnalysisResult) error {
	if result == nil {
		return fmt.Errorf("save result %s: nil result", jobID)
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.results[jobID] = storedResult{payload: payload, createdAt: result.CreatedAt, seq: s.seq}
	return nil
}

func (s *MemoryResultStore) Load(_ context.Context, jobID string) (*models.AnalysisResult, error) {
	s.mu.RLock()
	rec, ok := s.results[jobID]
	s.mu.RUnlock()
	if !ok {
		return nil, repository.ErrResultNotFound
	}
	return decodeResult(rec.payload)
}

// Latest returns the newest result by creation time, then by save order
func (s *MemoryResultStore) Latest(_ context.Context) (*models.AnalysisResult, error) {
	s.mu.RLock()
	var latest storedResult
	for _, rec := range s.results {
		if latest.payload == nil || rec.createdAt.After(latest.createdAt) ||
			(rec.createdAt.Equal(latest.createdAt) && rec.seq > latest.seq) {
			latest = rec
		}
	}
	s.mu.RUnlock()

	if latest.payload == nil {
		return nil, repository.ErrResultNotFound
	}
	return decodeResult(latest.payload)
}

func (s *MemoryResultStore) Delete(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.results[jobID]; !ok {
		return repository.ErrResultNotFound
	}
	delete(s.results, jobID)
	return nil
}

func (s *MemoryResultStore) Close() error {
	return nil
}

func decodeResult(payload []byte) (*models.AnalysisResult, error) {
	var res models.AnalysisResult
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &res, nil
}
