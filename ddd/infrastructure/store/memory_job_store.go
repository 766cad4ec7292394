package store

import (
	"context"
	"sync"
	"time"

	"manim-service/ddd/domain/entity"
	"manim-service/ddd/domain/repo"
	"manim-service/pkg/logger"
)

const DefaultLogCap = 400

// MemoryJobStore keeps jobs in process memory. It is the default backend and
// only valid for single-instance deployments.
type MemoryJobStore struct {
	mu     sync.RWMutex
	jobs   map[string]*entity.RenderJob
	active map[string]string // clientID -> jobID
	logCap int
	now    func() time.Time
}

var _ repo.JobStore = (*MemoryJobStore)(nil)

func NewMemoryJobStore(logCap int) *MemoryJobStore {
	if logCap <= 0 {
		logCap = DefaultLogCap
	}
	return &MemoryJobStore{
		jobs:   make(map[string]*entity.RenderJob),
		active: make(map[string]string),
		logCap: logCap,
		now:    time.Now,
	}
}

func (s *MemoryJobStore) CreateJob(_ context.Context, job *entity.RenderJob) error {
	if job == nil {
		return entity.NewDomainError("nil job")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID()]; exists {
		return entity.NewDomainError("job already exists: " + job.ID())
	}
	s.jobs[job.ID()] = job.Clone()
	s.active[job.ClientID()] = job.ID()
	return nil
}

func (s *MemoryJobStore) GetJob(_ context.Context, id string) (*entity.RenderJob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	return j.Clone(), true
}

func (s *MemoryJobStore) GetActiveJobID(_ context.Context, clientID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.active[clientID]
	return id, ok
}

func (s *MemoryJobStore) UpdateJob(_ context.Context, id string, u entity.JobUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return
	}
	if err := j.Apply(u, s.now()); err != nil {
		logger.Warnf("job update ignored job_id=%s error=%v", id, err)
	}
}

func (s *MemoryJobStore) AppendLog(_ context.Context, id, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		j.AppendLog(line, s.logCap, s.now())
	}
}

func (s *MemoryJobStore) RetireJob(_ context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return
	}
	if cur, ok := s.active[j.ClientID()]; ok && cur == id {
		delete(s.active, j.ClientID())
	}
}
