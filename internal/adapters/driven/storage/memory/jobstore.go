package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/ragmem/internal/core/domain"
	"github.com/custodia-labs/ragmem/internal/core/ports/driven"
)

// Ensure JobStore implements the interface.
var _ driven.JobStore = (*JobStore)(nil)

// JobStore is an in-memory implementation of driven.JobStore.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]domain.PipelineJob
	seq  map[string]int
	next int
}

// NewJobStore creates a new in-memory job store.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string]domain.PipelineJob),
		seq:  make(map[string]int),
	}
}

// Save creates or updates a job.
func (s *JobStore) Save(_ context.Context, job *domain.PipelineJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	stored := *job
	stored.Steps = append([]domain.Step(nil), job.Steps...)
	s.jobs[job.ID] = stored
	s.next++
	s.seq[job.ID] = s.next
	return nil
}

// Get retrieves a job by ID.
func (s *JobStore) Get(_ context.Context, id string) (*domain.PipelineJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &job, nil
}

// GetByDocument returns the most recently saved job for a document.
func (s *JobStore) GetByDocument(_ context.Context, documentID string) (*domain.PipelineJob, error) {
	for _, job := range s.sorted() {
		if job.DocumentID == documentID {
			return &job, nil
		}
	}
	return nil, domain.ErrNotFound
}

// List returns jobs, most recently saved first. limit <= 0 returns all.
func (s *JobStore) List(_ context.Context, limit int) ([]domain.PipelineJob, error) {
	jobs := s.sorted()
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// DeleteByDocument removes all jobs for a document.
func (s *JobStore) DeleteByDocument(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, job := range s.jobs {
		if job.DocumentID == documentID {
			delete(s.jobs, id)
			delete(s.seq, id)
		}
	}
	return nil
}

func (s *JobStore) sorted() []domain.PipelineJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobs := make([]domain.PipelineJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return s.seq[jobs[i].ID] > s.seq[jobs[j].ID]
	})
	return jobs
}
