package store

import (
	"context"
	"sync"

	"github.com/stemsi/assessment-session/internal/model"
)

// MemoryStore keeps records in process memory. It survives UI reloads but not host restarts.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]model.SessionRecord
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]model.SessionRecord)}
}

func (s *MemoryStore) Get(_ context.Context, testID string) (*model.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[testID]
	if !ok {
		return nil, ErrNotFound
	}
	out := copyRecord(rec)
	return &out, nil
}

func (s *MemoryStore) Set(_ context.Context, testID string, rec model.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[testID] = copyRecord(rec)
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, testID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, testID)
	return nil
}

func copyRecord(rec model.SessionRecord) model.SessionRecord {
	if rec.Registration != nil {
		reg := *rec.Registration
		rec.Registration = &reg
	}
	return rec
}
