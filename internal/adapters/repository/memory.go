package repository

import (
	"context"
	"sync"

	"github.com/okian/applicantpool/internal/domain/model"
)

// MemoryStore keeps the pool in process memory. Nothing survives a restart.
type MemoryStore struct {
	mu     sync.RWMutex
	recs   []model.ApplicantRecord
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns deep copies of the saved records.
func (s *MemoryStore) Load(_ context.Context) ([]model.ApplicantRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	return cloneAll(s.recs), nil
}

// Save replaces the stored records with deep copies of recs.
func (s *MemoryStore) Save(_ context.Context, recs []model.ApplicantRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.recs = cloneAll(recs)
	return nil
}

// Close marks the store closed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func cloneAll(recs []model.ApplicantRecord) []model.ApplicantRecord {
	out := make([]model.ApplicantRecord, 0, len(recs))
	for i := range recs {
		out = append(out, recs[i].Clone())
	}
	return out
}
