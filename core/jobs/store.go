package jobs

import (
	"context"
	"sync"

	"storyreel/model"
)

// StatusStore keeps the latest status of each job. cache.JobCache is the
// Redis implementation.
type StatusStore interface {
	Save(ctx context.Context, status *model.JobStatus) error
	Get(ctx context.Context, jobID string) (*model.JobStatus, error)
	Recent(ctx context.Context, n int) ([]*model.JobStatus, error)
}

// MemoryStore is an in-process StatusStore used when Redis is not
// configured. Statuses never expire.
type MemoryStore struct {
	mu       sync.RWMutex
	statuses map[string]model.JobStatus
	order    []string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{statuses: make(map[string]model.JobStatus)}
}

func (s *MemoryStore) Save(_ context.Context, status *model.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.statuses[status.ID]; !ok {
		s.order = append(s.order, status.ID)
	}
	s.statuses[status.ID] = *status
	return nil
}

func (s *MemoryStore) Get(_ context.Context, jobID string) (*model.JobStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.statuses[jobID]
	if !ok {
		return nil, model.ErrJobNotFound
	}
	return &status, nil
}

// Recent returns up to n jobs, most recently submitted first.
func (s *MemoryStore) Recent(_ context.Context, n int) ([]*model.JobStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.JobStatus, 0, n)
	for i := len(s.order) - 1; i >= 0 && len(out) < n; i-- {
		status := s.statuses[s.order[i]]
		out = append(out, &status)
	}
	return out, nil
}
