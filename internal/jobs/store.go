// Package jobs tracks in-flight translation jobs: an injected store
// abstraction holding mutable job records, a supervised runner goroutine
// per job consuming the engine's event stream, and a broker fanning
// progress snapshots out to subscribers.
package jobs

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/seantiz/babelpdf/internal/model"
)

// Store errors.
var (
	ErrNotFound          = errors.New("job not found")
	ErrInvalidTransition = errors.New("invalid job status transition")
)

// Store is the job-record abstraction. Each job has exactly one writer
// (its runner goroutine); any number of request handlers read concurrently.
// Implementations must reject writes that would move a job out of a
// terminal status.
type Store interface {
	Get(ctx context.Context, id string) (*model.Job, error)
	Put(ctx context.Context, j *model.Job) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*model.Job, error)
}

// Compile-time interface satisfaction check.
var _ Store = (*MemoryStore)(nil)

// MemoryStore is the default in-process job store. Records vanish on
// restart; durable history is the store of record for finished jobs.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*model.Job
}

// NewMemoryStore creates an empty in-memory job store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*model.Job)}
}

// Get returns a copy of the job so readers never observe a half-applied
// mutation from the runner.
func (s *MemoryStore) Get(_ context.Context, id string) (*model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneJob(j), nil
}

// Put stores a copy of the job, rejecting transitions out of a terminal
// status.
func (s *MemoryStore) Put(_ context.Context, j *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.jobs[j.ID]; ok && model.IsTerminal(prev.Status) && prev.Status != j.Status {
		return ErrInvalidTransition
	}
	s.jobs[j.ID] = cloneJob(j)
	return nil
}

// Delete removes a job record. Deleting a missing job is not an error.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	return nil
}

// List returns copies of all tracked jobs, newest first.
func (s *MemoryStore) List(_ context.Context) ([]*model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]*model.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, cloneJob(j))
	}
	sort.Slice(jobs, func(i, k int) bool {
		return jobs[i].CreatedAt.After(jobs[k].CreatedAt)
	})
	return jobs, nil
}

func cloneJob(j *model.Job) *model.Job {
	c := *j
	if j.OutputFiles != nil {
		c.OutputFiles = make(map[string]string, len(j.OutputFiles))
		for k, v := range j.OutputFiles {
			c.OutputFiles[k] = v
		}
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}
