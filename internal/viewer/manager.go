package viewer

import (
	"sync"

	"github.com/esllessons/backend/internal/config"
	cache "github.com/go-pkgz/expirable-cache/v3"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Manager keeps viewer sessions in an expirable LRU cache
type Manager struct {
	sessions     cache.Cache[string, *Session]
	mu           sync.Mutex
	lessonSource LessonSource
	analyzer     Analyzer
	logger       *zap.Logger
}

// NewManager creates a new session manager.
// Sessions expire after cfg.TTL without access; the oldest are evicted above cfg.MaxKeys.
func NewManager(lessonSource LessonSource, analyzer Analyzer, cfg config.SessionConfig, logger *zap.Logger) *Manager {
	sessions := cache.NewCache[string, *Session]().
		WithMaxKeys(cfg.MaxKeys).
		WithLRU().
		WithTTL(cfg.TTL)

	return &Manager{
		sessions:     sessions,
		lessonSource: lessonSource,
		analyzer:     analyzer,
		logger:       logger,
	}
}

// Get returns the session with the given id and extends its lifetime
func (m *Manager) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	s, ok := m.sessions.Get(id)
	if !ok {
		return nil, false
	}
	m.sessions.Set(id, s, 0)
	return s, true
}

// GetOrCreate returns the session with the given id or a new one.
// The boolean result reports whether the session was created.
func (m *Manager) GetOrCreate(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.Get(id); ok {
		return s, false
	}

	s := newSession(uuid.NewString(), m.lessonSource, m.analyzer, m.logger)
	m.sessions.Set(s.ID, s, 0)
	m.logger.Debug("viewer session created", zap.String("session_id", s.ID))
	return s, true
}

// Len returns the number of live sessions
func (m *Manager) Len() int {
	m.sessions.DeleteExpired()
	return m.sessions.Len()
}
