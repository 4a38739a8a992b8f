// Package model defines the core data types shared by the coordinator's job manager and service registry.
package model

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"
)

// JobStatus represents the current lifecycle state of a job.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type JobStatus string

const (
	// JobStatusPending indicates a job was accepted and no engine has picked it up yet.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates an engine reported that it started the job.
	JobStatusRunning JobStatus = "running"
	// JobStatusSuccess indicates the job finished successfully.
	JobStatusSuccess JobStatus = "success"
	// JobStatusFailed indicates the job finished with an error.
	JobStatusFailed JobStatus = "failed"
	// JobStatusCancelled indicates the job was cancelled before finishing.
	JobStatusCancelled JobStatus = "cancelled"
)

const (
	// MaxJobKindLength bounds the free-form kind label supplied on submit.
	MaxJobKindLength = 64
	// MaxJobMetadataEntries bounds the number of metadata entries supplied on submit.
	MaxJobMetadataEntries = 64
)

// AllJobStatuses lists every status in lifecycle order.
var AllJobStatuses = []JobStatus{
	JobStatusPending,
	JobStatusRunning,
	JobStatusSuccess,
	JobStatusFailed,
	JobStatusCancelled,
}

// jobTransitions is the lifecycle graph. Terminal states have no outgoing edges.
var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusPending: {JobStatusRunning, JobStatusCancelled},
	JobStatusRunning: {JobStatusSuccess, JobStatusFailed, JobStatusCancelled},
}

// Valid returns true if the JobStatus is one of the known lifecycle states.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusSuccess, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are possible from s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSuccess || s == JobStatusFailed || s == JobStatusCancelled
}

// CanTransitionTo reports whether from -> to is an edge of the lifecycle graph.
func (s JobStatus) CanTransitionTo(to JobStatus) bool {
	for _, next := range jobTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// UnmarshalText implements encoding.TextUnmarshaler so statuses can be read from
// query strings and JSON bodies case-insensitively.
func (s *JobStatus) UnmarshalText(text []byte) error {
	v := JobStatus(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid job status: %q", string(text))
	}
	*s = v
	return nil
}

// Job is the coordinator's record of one asynchronous unit of work executed by a graph engine.
type Job struct {
	ID        string            `json:"id"`
	Status    JobStatus         `json:"status"`
	Detail    string            `json:"detail"`
	Kind      string            `json:"kind,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Clone returns a deep copy so callers never share mutable state with a store.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	cp.Metadata = maps.Clone(j.Metadata)
	return &cp
}

// SubmitJobRequest represents a request to create a new job.
type SubmitJobRequest struct {
	Kind     string            `json:"kind,omitempty"`
	Detail   string            `json:"detail,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Validate validates the SubmitJobRequest fields.
func (r *SubmitJobRequest) Validate() error {
	if len(r.Kind) > MaxJobKindLength {
		return fmt.Errorf("kind must be at most %d bytes", MaxJobKindLength)
	}
	if len(r.Metadata) > MaxJobMetadataEntries {
		return fmt.Errorf("metadata must have at most %d entries", MaxJobMetadataEntries)
	}
	for k := range r.Metadata {
		if strings.TrimSpace(k) == "" {
			return errors.New("metadata keys must not be blank")
		}
	}
	return nil
}

// TransitionJobRequest represents a request to move a job to a new status.
type TransitionJobRequest struct {
	Status JobStatus `json:"status"`
	Detail string    `json:"detail,omitempty"`
}

// CancelJobRequest carries the optional reason recorded on a cancelled job.
type CancelJobRequest struct {
	Reason string `json:"reason,omitempty"`
}

// JobListOptions filters and bounds a job listing.
type JobListOptions struct {
	// Status restricts the listing to a single status when non-empty.
	Status JobStatus
	// Limit caps the number of returned jobs when positive.
	Limit int
}

// JobStats represents counts of jobs in each status.
type JobStats struct {
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Success   int `json:"success"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
	Total     int `json:"total"`
}

// Add increments the counter for status.
func (s *JobStats) Add(status JobStatus) {
	switch status {
	case JobStatusPending:
		s.Pending++
	case JobStatusRunning:
		s.Running++
	case JobStatusSuccess:
		s.Success++
	case JobStatusFailed:
		s.Failed++
	case JobStatusCancelled:
		s.Cancelled++
	default:
		return
	}
	s.Total++
}
