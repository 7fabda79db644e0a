// Package memory implements the job store as a mutex-guarded map. Job state
// is deliberately not persisted; a restart forgets all jobs.
package memory

import (
	"sync"

	"github.com/mlevkov/clipdock/internal/domain"
	"github.com/mlevkov/clipdock/internal/port"
)

type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*domain.Job
}

func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string]*domain.Job),
	}
}

func (s *JobStore) Put(job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

func (s *JobStore) Get(id string) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *job
	return &copied, nil
}

// Update applies fn under the store lock. Records in a terminal state are
// left untouched: a processor result that lands after cancellation is
// silently discarded instead of resurrecting the job.
func (s *JobStore) Update(id string, fn func(*domain.Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if job.Status.IsTerminal() {
		return nil
	}
	fn(job)
	return nil
}

func (s *JobStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.jobs, id)
	return nil
}

func (s *JobStore) List() []*domain.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]*domain.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		copied := *job
		jobs = append(jobs, &copied)
	}
	return jobs
}

var _ port.JobStore = (*JobStore)(nil)
