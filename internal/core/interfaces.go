// Package core defines the ports between the coordinator's services and its stores.
package core

import (
	"context"
	"time"

	"github.com/target/graph-coordinator/internal/domain/model"
)

// This file contains store interface definitions (ports in hexagonal architecture).
// Services depend on these interfaces; internal/data and internal/adapters provide implementations.

// JobStore defines the storage contract for job records.
//
// Implementations return copies so callers never alias stored state. Update and Delete run
// their callbacks atomically with respect to every other operation on the same job.
type JobStore interface {
	Insert(ctx context.Context, job *model.Job) error
	Get(ctx context.Context, id string) (*model.Job, error)
	// Update applies fn to a copy of the job; the copy is stored only if fn returns nil.
	Update(ctx context.Context, id string, fn func(*model.Job) error) (*model.Job, error)
	// List returns jobs newest-created first, ties broken by reverse insertion order.
	List(ctx context.Context, opts model.JobListOptions) ([]*model.Job, error)
	// Delete removes the job if guard (when non-nil) returns nil.
	Delete(ctx context.Context, id string, guard func(*model.Job) error) error
	Stats(ctx context.Context) (model.JobStats, error)
	Ping(ctx context.Context) error
}

// ServiceStore defines the storage contract for service registry records.
//
// Stores do not filter by expiry on read; the registry applies its own inline deadline check
// so lookups stay correct between sweeps.
type ServiceStore interface {
	// Put inserts or replaces the record under rec.Key.
	Put(ctx context.Context, rec *model.ServiceRecord) error
	Get(ctx context.Context, key model.ServiceKey) (*model.ServiceRecord, error)
	// Update applies fn to a copy of an existing record and stores it if fn returns nil.
	Update(ctx context.Context, key model.ServiceKey, fn func(*model.ServiceRecord) error) (*model.ServiceRecord, error)
	List(ctx context.Context) ([]*model.ServiceRecord, error)
	// Delete removes the record and reports whether it existed.
	Delete(ctx context.Context, key model.ServiceKey) (bool, error)
	// DeleteExpired removes every record with ExpiresAt <= now and returns how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
	Ping(ctx context.Context) error
}
