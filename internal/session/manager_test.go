package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "geoincra-portal/internal/common/errors"
	"geoincra-portal/internal/common/logger"
	"geoincra-portal/internal/models"
	"geoincra-portal/internal/wizard"
)

const testDefinition = `
kind: demo
initial: {nome: ""}
steps:
  - id: 1
    label: Name
    rules:
      - {type: required, field: nome, message: name is required}
  - id: 2
    label: Review
`

type memoryRepo struct {
	mu    sync.Mutex
	items map[string]models.SessionSnapshot
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: make(map[string]models.SessionSnapshot)}
}

func (r *memoryRepo) Save(ctx context.Context, s *models.SessionSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[s.ID] = *s
	return nil
}

func (r *memoryRepo) Find(ctx context.Context, id string) (*models.SessionSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.items[id]
	if !ok {
		return nil, apperrors.NewSessionNotFoundError(id)
	}
	return &s, nil
}

func (r *memoryRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}

func (r *memoryRepo) DeleteIdle(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.items {
		if s.UpdatedAt.Before(before) {
			delete(r.items, id)
			n++
		}
	}
	return n, nil
}

func (r *memoryRepo) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.items[id]
	return ok
}

type okSubmitter struct{}

func (okSubmitter) Submit(ctx context.Context, draft wizard.Draft, targetID string) wizard.SubmissionResult {
	return wizard.Success([]byte(`{}`), 200)
}

func newTestManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	def := wizard.MustParseDefinition([]byte(testDefinition))
	opts = append([]Option{WithLogger(logger.NewTestLogger(t))}, opts...)
	m := NewManager(opts...)
	m.Register("demo", func(targetID string) *wizard.Controller {
		return wizard.NewController(def, okSubmitter{}, wizard.WithTarget(targetID))
	})
	return m
}

func TestManager_CreateAndGet(t *testing.T) {
	m := newTestManager(t)

	s, err := m.Create(context.Background(), "demo", "9")
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "9", s.Controller.TargetID())

	got, err := m.Get(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, []string{"demo"}, m.Kinds())
}

func TestManager_UnknownKindAndSession(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Create(context.Background(), "nope", "")
	assert.Equal(t, apperrors.ErrCodeUnknownWizard, apperrors.AsStandardError(err).Code)

	_, err = m.Get(context.Background(), "missing")
	assert.Equal(t, apperrors.ErrCodeSessionNotFound, apperrors.AsStandardError(err).Code)

	err = m.Delete(context.Background(), "missing")
	assert.Equal(t, apperrors.ErrCodeSessionNotFound, apperrors.AsStandardError(err).Code)
}

func TestManager_RestoresFromRepository(t *testing.T) {
	repo := newMemoryRepo()
	first := newTestManager(t, WithRepository(repo))

	s, err := first.Create(context.Background(), "demo", "9")
	require.NoError(t, err)
	require.NoError(t, s.Controller.Set("nome", "Ana"))
	_, err = s.Controller.Next()
	require.NoError(t, err)
	require.NoError(t, first.Persist(context.Background(), s))

	// a restarted process
	second := newTestManager(t, WithRepository(repo))
	restored, err := second.Get(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, wizard.State{Phase: wizard.PhaseStep, Step: 2}, restored.Controller.State())
	assert.Equal(t, "Ana", restored.Controller.Draft()["nome"])
	assert.Equal(t, "9", restored.Controller.TargetID())
}

func TestManager_SubmittedSessionsLeaveRepository(t *testing.T) {
	repo := newMemoryRepo()
	m := newTestManager(t, WithRepository(repo))

	s, err := m.Create(context.Background(), "demo", "9")
	require.NoError(t, err)
	require.True(t, repo.Has(s.ID))

	require.NoError(t, s.Controller.Set("nome", "Ana"))
	_, err = s.Controller.Next()
	require.NoError(t, err)
	_, err = s.Controller.Submit(context.Background())
	require.NoError(t, err)

	require.NoError(t, m.Persist(context.Background(), s))
	assert.False(t, repo.Has(s.ID))
}

func TestManager_DeleteResetsController(t *testing.T) {
	repo := newMemoryRepo()
	m := newTestManager(t, WithRepository(repo))
	s, err := m.Create(context.Background(), "demo", "9")
	require.NoError(t, err)
	gen := s.Controller.Generation()

	require.NoError(t, m.Delete(context.Background(), s.ID))
	assert.Equal(t, gen+1, s.Controller.Generation())
	assert.Equal(t, 0, m.Len())
	assert.False(t, repo.Has(s.ID))
}

func TestManager_Sweep(t *testing.T) {
	repo := newMemoryRepo()
	m := newTestManager(t, WithRepository(repo), WithIdleTimeout(time.Minute))

	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	stale, err := m.Create(context.Background(), "demo", "1")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	fresh, err := m.Create(context.Background(), "demo", "2")
	require.NoError(t, err)

	assert.Equal(t, 1, m.Sweep(context.Background()))

	_, err = m.Get(context.Background(), fresh.ID)
	assert.NoError(t, err)
	assert.False(t, repo.Has(stale.ID))
	_, err = m.Get(context.Background(), stale.ID)
	assert.Error(t, err)
}

func TestManager_SweepDisabled(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Create(context.Background(), "demo", "")
	require.NoError(t, err)
	assert.Equal(t, 0, m.Sweep(context.Background()))
}

func TestManager_Run(t *testing.T) {
	m := newTestManager(t, WithIdleTimeout(time.Nanosecond))
	_, err := m.Create(context.Background(), "demo", "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
