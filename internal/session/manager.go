package session

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prepview/backend/internal/models"
	"github.com/prepview/backend/internal/scoring"
	"github.com/prepview/backend/internal/telemetry"
)

// Manager holds live session engines (thread-safe). Engines exist from session
// creation until End, after which only the persisted rows remain.
type Manager struct {
	mu        sync.RWMutex
	engines   map[string]*Engine
	evaluator Evaluator
	scorer    *scoring.Scorer
	logger    *zap.Logger
}

// NewManager creates an engine registry.
func NewManager(evaluator Evaluator, scorer *scoring.Scorer, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		engines:   make(map[string]*Engine),
		evaluator: evaluator,
		scorer:    scorer,
		logger:    logger,
	}
}

// Create builds and registers an engine for a new session.
func (m *Manager) Create(sess models.Session) *Engine {
	engine := NewEngine(sess, m.evaluator, m.scorer, telemetry.NewAggregator(), m.logger)
	m.mu.Lock()
	m.engines[sess.ID.String()] = engine
	m.mu.Unlock()
	return engine
}

// Get returns the live engine for a session, if any.
func (m *Manager) Get(sessionID uuid.UUID) (*Engine, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.engines[sessionID.String()]
	return e, ok
}

// Remove drops a session's engine, discarding its telemetry history.
func (m *Manager) Remove(sessionID uuid.UUID) {
	m.mu.Lock()
	delete(m.engines, sessionID.String())
	m.mu.Unlock()
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.engines)
}

// IngestFacial routes a facial sample to the session's aggregator. Returns
// false when the session has no live engine.
func (m *Manager) IngestFacial(sessionID uuid.UUID, sample models.FacialSample) bool {
	e, ok := m.Get(sessionID)
	if !ok {
		return false
	}
	e.Telemetry().IngestFacial(sample)
	return true
}

// IngestVoice routes a voice sample to the session's aggregator.
func (m *Manager) IngestVoice(sessionID uuid.UUID, sample models.VoiceSample) bool {
	e, ok := m.Get(sessionID)
	if !ok {
		return false
	}
	e.Telemetry().IngestVoice(sample)
	return true
}
