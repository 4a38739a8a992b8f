package data

import (
	"context"
	"sync"
	"time"

	"github.com/target/graph-coordinator/internal/domain/model"
)

// MemoryServiceStore is the in-process service registry table.
type MemoryServiceStore struct {
	mu      sync.RWMutex
	records map[model.ServiceKey]*model.ServiceRecord
}

// NewMemoryServiceStore creates an empty MemoryServiceStore.
func NewMemoryServiceStore() *MemoryServiceStore {
	return &MemoryServiceStore{records: make(map[model.ServiceKey]*model.ServiceRecord)}
}

// Put inserts or replaces the record stored under rec.Key.
func (s *MemoryServiceStore) Put(_ context.Context, rec *model.ServiceRecord) error {
	if rec == nil {
		return ErrNilRecord
	}
	s.mu.Lock()
	s.records[rec.Key] = rec.Clone()
	s.mu.Unlock()
	return nil
}

// Get returns a copy of the stored record regardless of expiry.
func (s *MemoryServiceStore) Get(_ context.Context, key model.ServiceKey) (*model.ServiceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key]
	if !ok {
		return nil, ErrServiceNotFound
	}
	return rec.Clone(), nil
}

// Update applies fn to a copy of the stored record under the write lock and stores the
// result when fn returns nil.
func (s *MemoryServiceStore) Update(
	_ context.Context,
	key model.ServiceKey,
	fn func(*model.ServiceRecord) error,
) (*model.ServiceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return nil, ErrServiceNotFound
	}
	next := rec.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.Key = key
	s.records[key] = next
	return next.Clone(), nil
}

// List returns copies of every stored record, expired or not, in no particular order.
func (s *MemoryServiceStore) List(_ context.Context) ([]*model.ServiceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.ServiceRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.Clone())
	}
	return out, nil
}

// Delete removes the record under key and reports whether one existed.
func (s *MemoryServiceStore) Delete(_ context.Context, key model.ServiceKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.records[key]
	delete(s.records, key)
	return ok, nil
}

// DeleteExpired removes every record whose deadline is at or before now in a single locked pass.
func (s *MemoryServiceStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for key, rec := range s.records {
		if rec.Expired(now) {
			delete(s.records, key)
			n++
		}
	}
	return n, nil
}

// Ping always succeeds; the store lives in process memory.
func (s *MemoryServiceStore) Ping(_ context.Context) error {
	return nil
}
