package data

import (
	"context"
	"sort"
	"sync"

	"github.com/target/graph-coordinator/internal/domain/model"
)

// jobEntry pairs a job with its insertion sequence so listings can break CreatedAt ties.
type jobEntry struct {
	job *model.Job
	seq uint64
}

// MemoryJobStore is a volatile, mutex-guarded job table. Every read returns a copy and every
// mutation runs under the write lock, so check-and-set updates are linearizable per job.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]*jobEntry
	seq  uint64
}

// NewMemoryJobStore creates an empty MemoryJobStore.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]*jobEntry)}
}

// Insert stores a new job. It fails with ErrJobExists if the id is taken.
func (s *MemoryJobStore) Insert(_ context.Context, job *model.Job) error {
	if job == nil {
		return ErrNilRecord
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; ok {
		return ErrJobExists
	}
	s.seq++
	s.jobs[job.ID] = &jobEntry{job: job.Clone(), seq: s.seq}
	return nil
}

// Get returns a snapshot of the job with the given id.
func (s *MemoryJobStore) Get(_ context.Context, id string) (*model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return e.job.Clone(), nil
}

// Update applies fn to a copy of the job under the write lock. The copy replaces the stored
// job only when fn returns nil; otherwise the stored job is untouched and fn's error is returned.
func (s *MemoryJobStore) Update(_ context.Context, id string, fn func(*model.Job) error) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	next := e.job.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.ID = e.job.ID
	e.job = next
	return next.Clone(), nil
}

// Delete removes the job when guard (if non-nil) accepts it. The guard runs under the write lock.
func (s *MemoryJobStore) Delete(_ context.Context, id string, guard func(*model.Job) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if guard != nil {
		if err := guard(e.job.Clone()); err != nil {
			return err
		}
	}
	delete(s.jobs, id)
	return nil
}

// List returns snapshots ordered newest-created first; equal CreatedAt values fall back to
// reverse insertion order.
func (s *MemoryJobStore) List(_ context.Context, opts model.JobListOptions) ([]*model.Job, error) {
	s.mu.RLock()
	entries := make([]*jobEntry, 0, len(s.jobs))
	for _, e := range s.jobs {
		if opts.Status != "" && e.job.Status != opts.Status {
			continue
		}
		entries = append(entries, &jobEntry{job: e.job.Clone(), seq: e.seq})
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.job.CreatedAt.Equal(b.job.CreatedAt) {
			return a.job.CreatedAt.After(b.job.CreatedAt)
		}
		return a.seq > b.seq
	})

	if opts.Limit > 0 && len(entries) > opts.Limit {
		entries = entries[:opts.Limit]
	}
	out := make([]*model.Job, len(entries))
	for i, e := range entries {
		out[i] = e.job
	}
	return out, nil
}

// Stats counts jobs per status.
func (s *MemoryJobStore) Stats(_ context.Context) (model.JobStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st model.JobStats
	for _, e := range s.jobs {
		st.Add(e.job.Status)
	}
	return st, nil
}

// Ping always succeeds; the store lives in process memory.
func (s *MemoryJobStore) Ping(_ context.Context) error {
	return nil
}
