package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-jobs/internal/domain"
	"github.com/phrazzld/scry-jobs/internal/ratelimit"
	"github.com/phrazzld/scry-jobs/internal/store"
)

// Store keeps all entities in maps guarded by one mutex.
type Store struct {
	mu   sync.Mutex
	now  func() time.Time
	data *state
}

// Option configures a Store.
type Option func(*Store)

// WithClock makes the store read time from now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		now:  func() time.Time { return time.Now().UTC() },
		data: newState(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var (
	_ store.JobStore       = (*Store)(nil)
	_ store.GoalStore      = (*Store)(nil)
	_ store.MessageStore   = (*Store)(nil)
	_ store.HierarchyStore = (*Store)(nil)
	_ store.NodeStore      = (*Store)(nil)
	_ store.CardStore      = (*Store)(nil)
	_ store.Transactor     = (*Store)(nil)
)

// Stores returns every store interface backed by s.
func (s *Store) Stores() store.Stores {
	return store.Stores{Jobs: s, Goals: s, Messages: s, Hierarchies: s, Nodes: s, Cards: s}
}

// WithinTx runs fn while holding the store lock. Any change fn made is
// discarded if it returns an error or panics.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Stores) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	defer func() {
		if p := recover(); p != nil {
			s.data = snapshot
			panic(p)
		}
	}()

	if err = fn(ctx, s.unlocked().stores()); err != nil {
		s.data = snapshot
	}
	return err
}

func (s *Store) unlocked() *txStore {
	return &txStore{s: s}
}

// CreateJob implements store.JobStore.
func (s *Store) CreateJob(ctx context.Context, job *domain.Job, limiter *ratelimit.Limiter) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unlocked().CreateJob(ctx, job, limiter)
}

// CreateJobs implements store.JobStore.
func (s *Store) CreateJobs(ctx context.Context, jobs []*domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.data.clone()
	if err := s.unlocked().CreateJobs(ctx, jobs); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

// ClaimNextJob implements store.JobStore.
func (s *Store) ClaimNextJob(ctx context.Context) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unlocked().ClaimNextJob(ctx)
}

// UpdateJobStatus implements store.JobStore.
func (s *Store) UpdateJobStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.JobStatus,
	update store.JobUpdate,
) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unlocked().UpdateJobStatus(ctx, id, status, update)
}

// GetJobByID implements store.JobStore.
func (s *Store) GetJobByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unlocked().GetJobByID(ctx, id)
}

// ListStaleProcessing implements store.JobStore.
func (s *Store) ListStaleProcessing(ctx context.Context, olderThan time.Time) ([]*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unlocked().ListStaleProcessing(ctx, olderThan)
}

// WindowUsage implements store.JobStore and ratelimit.UsageCounter.
func (s *Store) WindowUsage(
	ctx context.Context,
	userID uuid.UUID,
	jobType domain.JobType,
	since time.Time,
) (ratelimit.WindowUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unlocked().WindowUsage(ctx, userID, jobType, since)
}

// ListJobs returns every job, oldest first. Intended for tests.
func (s *Store) ListJobs() []*domain.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unlocked().listJobs(nil)
}

// CreateGoal implements store.GoalStore.
func (s *Store) CreateGoal(ctx context.Context, goal *domain.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unlocked().CreateGoal(ctx, goal)
}

// GetGoal implements store.GoalStore.
func (s *Store) GetGoal(ctx context.Context, id uuid.UUID) (*domain.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unlocked().GetGoal(ctx, id)
}

// CreateMessage implements store.MessageStore.
func (s *Store) CreateMessage(ctx context.Context, msg *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unlocked().CreateMessage(ctx, msg)
}

// GetMessage implements store.MessageStore.
func (s *Store) GetMessage(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unlocked().GetMessage(ctx, id)
}

// CreateHierarchy implements store.HierarchyStore.
func (s *Store) CreateHierarchy(ctx context.Context, h *domain.Hierarchy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unlocked().CreateHierarchy(ctx, h)
}

// GetHierarchy implements store.HierarchyStore.
func (s *Store) GetHierarchy(ctx context.Context, id uuid.UUID) (*domain.Hierarchy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unlocked().GetHierarchy(ctx, id)
}

// CreateNodes implements store.NodeStore.
func (s *Store) CreateNodes(ctx context.Context, nodes []*domain.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.data.clone()
	if err := s.unlocked().CreateNodes(ctx, nodes); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

// GetNode implements store.NodeStore.
func (s *Store) GetNode(ctx context.Context, id uuid.UUID) (*domain.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unlocked().GetNode(ctx, id)
}

// ListNodes implements store.NodeStore.
func (s *Store) ListNodes(ctx context.Context, hierarchyID uuid.UUID) ([]*domain.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unlocked().ListNodes(ctx, hierarchyID)
}

// IncrementCardCount implements store.NodeStore.
func (s *Store) IncrementCardCount(ctx context.Context, id uuid.UUID, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unlocked().IncrementCardCount(ctx, id, delta)
}

// CreateCards implements store.CardStore.
func (s *Store) CreateCards(ctx context.Context, cards []*domain.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.data.clone()
	if err := s.unlocked().CreateCards(ctx, cards); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

// GetCard implements store.CardStore.
func (s *Store) GetCard(ctx context.Context, id uuid.UUID) (*domain.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unlocked().GetCard(ctx, id)
}

// UpdateCardContent implements store.CardStore.
func (s *Store) UpdateCardContent(ctx context.Context, card *domain.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unlocked().UpdateCardContent(ctx, card)
}

// CountCardsBySource implements store.CardStore.
func (s *Store) CountCardsBySource(ctx context.Context, source domain.CardSource) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unlocked().CountCardsBySource(ctx, source)
}
