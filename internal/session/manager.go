// Package session keeps the live wizard controllers of the HTTP API, keyed
// by session id, and optionally persists their snapshots.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "geoincra-portal/internal/common/errors"
	"geoincra-portal/internal/common/logger"
	"geoincra-portal/internal/common/metrics"
	"geoincra-portal/internal/models"
	"geoincra-portal/internal/wizard"
)

// Factory builds a fresh controller of one wizard kind.
type Factory func(targetID string) *wizard.Controller

// Session is one live wizard.
type Session struct {
	ID         string
	Controller *wizard.Controller

	mu       sync.Mutex
	lastUsed time.Time
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

type Manager struct {
	mu       sync.RWMutex
	kinds    map[string]Factory
	sessions map[string]*Session

	repo   models.SessionRepository
	idle   time.Duration
	logger logger.Logger
	now    func() time.Time
}

type Option func(*Manager)

// WithRepository persists snapshots so sessions survive restarts.
func WithRepository(r models.SessionRepository) Option {
	return func(m *Manager) { m.repo = r }
}

func WithIdleTimeout(d time.Duration) Option {
	return func(m *Manager) { m.idle = d }
}

func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		kinds:    make(map[string]Factory),
		sessions: make(map[string]*Session),
		logger:   logger.NewNoOpLogger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Register(kind string, f Factory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kinds[kind] = f
}

// Kinds lists the registered wizard kinds.
func (m *Manager) Kinds() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.kinds))
	for k := range m.kinds {
		out = append(out, k)
	}
	return out
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Create starts a new session of kind.
func (m *Manager) Create(ctx context.Context, kind, targetID string) (*Session, error) {
	m.mu.RLock()
	factory, ok := m.kinds[kind]
	m.mu.RUnlock()
	if !ok {
		return nil, apperrors.NewUnknownWizardError(kind)
	}

	s := &Session{ID: uuid.New().String(), Controller: factory(targetID)}
	s.touch(m.now())
	m.put(s)

	m.logger.Info("wizard session created", map[string]interface{}{
		"sessionId": s.ID,
		"kind":      kind,
		"targetId":  targetID,
	})
	if err := m.Persist(ctx, s); err != nil {
		return s, err
	}
	return s, nil
}

// Get returns a live session, restoring it from the repository when needed.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		s.touch(m.now())
		return s, nil
	}
	if m.repo == nil {
		return nil, apperrors.NewSessionNotFoundError(id)
	}

	snap, err := m.repo.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	s, err = m.restore(snap)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if existing, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		existing.touch(m.now())
		return existing, nil
	}
	m.sessions[id] = s
	metrics.WizardSessionsActive.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	m.logger.Info("wizard session restored", map[string]interface{}{"sessionId": id, "step": snap.Step})
	return s, nil
}

func (m *Manager) restore(snap *models.SessionSnapshot) (*Session, error) {
	m.mu.RLock()
	factory, ok := m.kinds[snap.Kind]
	m.mu.RUnlock()
	if !ok {
		return nil, apperrors.NewUnknownWizardError(snap.Kind)
	}

	c := factory(snap.TargetID)
	if err := c.Restore(snap.Step, snap.TargetID, wizard.Draft(snap.Draft), snap.Generation); err != nil {
		return nil, apperrors.NewPersistenceFailedError("restore", err)
	}
	s := &Session{ID: snap.ID, Controller: c}
	s.touch(m.now())
	return s, nil
}

// Persist saves the session snapshot. Finished sessions are removed from
// the repository instead.
func (m *Manager) Persist(ctx context.Context, s *Session) error {
	if m.repo == nil {
		return nil
	}
	snap := s.Controller.Snapshot()
	if snap.State.Phase == wizard.PhaseSubmitted {
		return m.repo.Delete(ctx, s.ID)
	}
	if snap.State.Phase == wizard.PhaseSubmitting {
		return nil
	}

	err := m.repo.Save(ctx, &models.SessionSnapshot{
		ID:         s.ID,
		Kind:       snap.Kind,
		TargetID:   snap.TargetID,
		Step:       snap.State.Step,
		State:      snap.State.String(),
		Draft:      snap.Draft,
		Generation: snap.Generation,
		UpdatedAt:  m.now().UTC(),
	})
	if err != nil {
		m.logger.Error("failed to persist wizard session", map[string]interface{}{
			"sessionId": s.ID,
			"error":     err.Error(),
		})
	}
	return err
}

// Delete resets the wizard, so an in-flight submission is discarded, and
// forgets the session.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	metrics.WizardSessionsActive.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	if ok {
		s.Controller.Reset(nil)
	}
	if m.repo != nil {
		if err := m.repo.Delete(ctx, id); err != nil {
			return err
		}
	} else if !ok {
		return apperrors.NewSessionNotFoundError(id)
	}
	return nil
}

// Sweep drops sessions idle longer than the idle timeout.
func (m *Manager) Sweep(ctx context.Context) int {
	if m.idle <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.idle)

	var expired []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) && s.Controller.State().Phase != wizard.PhaseSubmitting {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	metrics.WizardSessionsActive.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	for _, s := range expired {
		s.Controller.Reset(nil)
	}

	if m.repo != nil {
		n, err := m.repo.DeleteIdle(ctx, cutoff.UTC())
		if err != nil {
			m.logger.Warn("failed to sweep persisted sessions", map[string]interface{}{"error": err.Error()})
		} else if n > 0 {
			m.logger.Info("swept persisted sessions", map[string]interface{}{"count": n})
		}
	}
	if len(expired) > 0 {
		m.logger.Info("swept idle wizard sessions", map[string]interface{}{"count": len(expired)})
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

func (m *Manager) put(s *Session) {
	m.mu.Lock()
	m.sessions[s.ID] = s
	metrics.WizardSessionsActive.Set(float64(len(m.sessions)))
	m.mu.Unlock()
}
