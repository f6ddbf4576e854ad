package sessions

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/graphloom/internal/agent"
)

// ErrSessionNotFound indicates no registered session under the given id.
var ErrSessionNotFound = errors.New("session not found")

const (
	// defaultIdleTimeout is how long a session may sit idle before the
	// eviction loop closes it.
	defaultIdleTimeout = 30 * time.Minute

	// evictInterval is how often the eviction loop wakes.
	evictInterval = 60 * time.Second
)

// Manager owns the session map: creation, lookup with activity refresh,
// closing, and idle eviction.
type Manager struct {
	factory     agent.Factory
	logger      *slog.Logger
	idleTimeout time.Duration

	mu       sync.Mutex
	sessions map[string]*ChatSession

	done     chan struct{}
	wg       sync.WaitGroup
	shutdown sync.Once

	nowFunc  func() time.Time
	interval time.Duration
}

// NewManager creates a manager and starts its eviction loop. A zero
// idleTimeout uses the default.
func NewManager(factory agent.Factory, logger *slog.Logger, idleTimeout time.Duration) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if idleTimeout <= 0 {
		idleTimeout = defaultIdleTimeout
	}
	m := &Manager{
		factory:     factory,
		logger:      logger,
		idleTimeout: idleTimeout,
		sessions:    make(map[string]*ChatSession),
		done:        make(chan struct{}),
		nowFunc:     time.Now,
		interval:    evictInterval,
	}
	m.wg.Add(1)
	go m.evictLoop()
	return m
}

// CreateSession initialises a new session for the workflow and registers
// it under a fresh id.
func (m *Manager) CreateSession(ctx context.Context, workflowID string, opts Options) (*ChatSession, error) {
	id := uuid.NewString()
	session := NewChatSession(id, workflowID, opts, m.factory, m.logger)
	session.nowFunc = m.nowFunc
	if err := session.Initialize(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[id] = session
	m.mu.Unlock()

	m.logger.Info("session created", "session_id", id, "workflow_id", workflowID)
	return session, nil
}

// GetSession looks a session up by id, refreshing its last activity on
// hit.
func (m *Manager) GetSession(id string) (*ChatSession, bool) {
	m.mu.Lock()
	session, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, false
	}
	session.touch(m.nowFunc())
	return session, true
}

// CloseSession closes the session and removes it from the map.
func (m *Manager) CloseSession(id string) error {
	m.mu.Lock()
	session, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	return session.Close()
}

// Sessions returns the number of registered sessions.
func (m *Manager) Sessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// evictLoop wakes on the eviction interval and closes sessions idle past
// the timeout. Errors are logged; the loop runs until shutdown.
func (m *Manager) evictLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.evictIdle()
		}
	}
}

func (m *Manager) evictIdle() {
	cutoff := m.nowFunc().Add(-m.idleTimeout)

	m.mu.Lock()
	var idle []*ChatSession
	for id, session := range m.sessions {
		if session.IsProcessing() {
			continue
		}
		if session.LastActivity().Before(cutoff) {
			idle = append(idle, session)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, session := range idle {
		if err := session.Close(); err != nil {
			m.logger.Warn("evicted session close failed", "session_id", session.ID, "error", err)
			continue
		}
		m.logger.Info("evicted idle session", "session_id", session.ID)
	}
}

// Shutdown cancels the eviction loop, waits for it, then closes every
// session. Idempotent.
func (m *Manager) Shutdown() {
	m.shutdown.Do(func() {
		close(m.done)
		m.wg.Wait()

		m.mu.Lock()
		remaining := make([]*ChatSession, 0, len(m.sessions))
		for _, session := range m.sessions {
			remaining = append(remaining, session)
		}
		m.sessions = make(map[string]*ChatSession)
		m.mu.Unlock()

		for _, session := range remaining {
			if err := session.Close(); err != nil {
				m.logger.Warn("session close failed during shutdown", "session_id", session.ID, "error", err)
			}
		}
		m.logger.Info("session manager shut down", "closed", len(remaining))
	})
}
