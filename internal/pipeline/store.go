package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gamechar/internal/domain"
	"gamechar/internal/infra"
)

// Store holds the session's single job record. Load returns domain.ErrNoJob
// when nothing has been submitted. Implementations return copies so the
// controller and readers never share a mutable record.
type Store interface {
	Load(ctx context.Context) (*domain.Job, error)
	Save(ctx context.Context, job *domain.Job) error
	Clear(ctx context.Context) error
}

// MemoryStore keeps the record, image bytes included, in process memory.
type MemoryStore struct {
	mu  sync.RWMutex
	job *domain.Job
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Load(ctx context.Context) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.job == nil {
		return nil, domain.ErrNoJob
	}
	return s.job.Clone(), nil
}

func (s *MemoryStore) Save(ctx context.Context, job *domain.Job) error {
	if job == nil {
		return errors.New("pipeline: nil job")
	}
	s.mu.Lock()
	s.job = job.Clone()
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.job = nil
	s.mu.Unlock()
	return nil
}

// RepositoryStore keeps the live record in memory and mirrors its metadata to
// a JobRepository, so a restarted process can find jobs whose staging handle
// still needs revoking. While the process runs the in-memory record is
// authoritative: a failed mirror write is logged and retried on the next
// Save, never returned. After a restart Load returns the persisted metadata
// without image bytes.
type RepositoryStore struct {
	mem    MemoryStore
	repo   domain.JobRepository
	logger *infra.Logger

	mu    sync.Mutex
	stale bool
}

func NewRepositoryStore(repo domain.JobRepository, logger *infra.Logger) *RepositoryStore {
	if logger == nil {
		l := infra.DiscardLogger()
		logger = &l
	}
	return &RepositoryStore{repo: repo, logger: logger}
}

func (s *RepositoryStore) Load(ctx context.Context) (*domain.Job, error) {
	job, err := s.mem.Load(ctx)
	if err == nil || !errors.Is(err, domain.ErrNoJob) {
		return job, err
	}
	job, err = s.repo.Current(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNoJob
	}
	if err != nil {
		return nil, fmt.Errorf("pipeline: load persisted job: %w", err)
	}
	_ = s.mem.Save(ctx, job)
	return job.Clone(), nil
}

func (s *RepositoryStore) Save(ctx context.Context, job *domain.Job) error {
	if err := s.mem.Save(ctx, job); err != nil {
		return err
	}
	err := s.repo.Save(ctx, job)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.stale = true
		mirrorFailuresTotal.Inc()
		s.logger.Warn().Err(err).Str("job_id", job.ID.String()).Str("phase", string(job.Phase)).Msg("pipeline: job mirror write failed")
		return nil
	}
	if s.stale {
		s.stale = false
		s.logger.Info().Str("job_id", job.ID.String()).Msg("pipeline: job mirror caught up")
	}
	return nil
}

// Stale reports whether the last mirror write failed.
func (s *RepositoryStore) Stale() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stale
}

// Clear forgets the in-memory record. Persisted rows are kept as history.
func (s *RepositoryStore) Clear(ctx context.Context) error {
	return s.mem.Clear(ctx)
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*RepositoryStore)(nil)
)
