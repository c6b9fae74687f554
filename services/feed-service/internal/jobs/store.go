package jobs

import (
	"context"
	"sort"
	"sync"
)

// Store хранилище состояний задач.
// Get возвращает nil, nil если задача не найдена.
type Store interface {
	Save(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	// ListOpen возвращает задачи очереди в состояниях queued и running по времени создания
	ListOpen(ctx context.Context, queue string) ([]*Job, error)
	Close() error
}

// MemoryStore хранилище задач в памяти процесса
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewMemoryStore создает пустое хранилище
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*Job)}
}

func (s *MemoryStore) Save(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job.Clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	return job.Clone(), nil
}

func (s *MemoryStore) ListOpen(_ context.Context, queue string) ([]*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var open []*Job
	for _, job := range s.jobs {
		if job.Queue == queue && !job.State.Terminal() {
			open = append(open, job.Clone())
		}
	}
	sort.Slice(open, func(i, j int) bool {
		return open[i].CreatedAt.Before(open[j].CreatedAt)
	})
	return open, nil
}

func (s *MemoryStore) Close() error { return nil }
