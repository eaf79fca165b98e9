package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/taskmesh/taskmesh/pkg/agent"
	"github.com/taskmesh/taskmesh/pkg/llm"
	"github.com/taskmesh/taskmesh/pkg/models"
	"github.com/taskmesh/taskmesh/pkg/orchestrator"
	"github.com/taskmesh/taskmesh/pkg/planner"
	"github.com/taskmesh/taskmesh/pkg/store"
	"github.com/taskmesh/taskmesh/pkg/tools"
)

// Config tunes the session runtime.
type Config struct {
	MaxToolIterations int
	IdleTimeout       time.Duration
	SweepInterval     time.Duration
}

func (c *Config) applyDefaults() {
	if c.MaxToolIterations <= 0 {
		c.MaxToolIterations = agent.DefaultMaxToolIterations
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 30 * time.Minute
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 5 * time.Minute
	}
}

// Manager owns the session map, the only process-wide mutable state
// outside the store. Sessions are created lazily and evicted on
// inactivity; everything they hold is recoverable from the store.
type Manager struct {
	cfg      Config
	store    store.Store
	llm      llm.Client
	registry *tools.Registry
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session

	rootCtx context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewManager builds the runtime and starts the idle-eviction sweeper.
func NewManager(cfg Config, st store.Store, client llm.Client, registry *tools.Registry, logger *slog.Logger) *Manager {
	cfg.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:      cfg,
		store:    st,
		llm:      client,
		registry: registry,
		logger:   logger.With("component", "runtime"),
		sessions: make(map[string]*Session),
		rootCtx:  ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go m.sweep()
	return m
}

// GetOrCreate returns the live session for the id, building the
// instance graph and persisting the session document on first use.
func (m *Manager) GetOrCreate(ctx context.Context, sessionID, userID string) (*Session, error) {
	m.mu.Lock()
	if s, ok := m.sessions[sessionID]; ok {
		m.mu.Unlock()
		if s.UserID != userID {
			return nil, fmt.Errorf("session %s belongs to another user", sessionID)
		}
		return s, nil
	}

	s := newSession(m.rootCtx, sessionID, userID, func(s *Session) *orchestrator.Manager {
		roster := agent.NewRoster(m.registry, m.llm, m.store, m.cfg.MaxToolIterations, m.logger)
		pl := planner.New(m.llm, m.store, m.registry, m.logger)
		return orchestrator.NewManager(m.store, pl, roster, s, m.logger)
	})
	m.sessions[sessionID] = s
	m.mu.Unlock()

	if err := m.ensureSessionDocument(ctx, sessionID, userID); err != nil {
		m.evict(sessionID)
		return nil, err
	}
	m.logger.Info("session runtime created", "session_id", sessionID)
	return s, nil
}

// ensureSessionDocument persists the session entity on first contact.
// A concurrent create racing us is fine.
func (m *Manager) ensureSessionDocument(ctx context.Context, sessionID, userID string) error {
	_, err := m.store.GetSession(ctx, userID, sessionID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("load session %s: %w", sessionID, err)
	}
	session := &models.Session{
		ID:            sessionID,
		UserID:        userID,
		CurrentStatus: "active",
		Timestamp:     time.Now().UTC(),
	}
	if err := m.store.AddSession(ctx, session); err != nil && !errors.Is(err, store.ErrConflict) {
		return fmt.Errorf("create session %s: %w", sessionID, err)
	}
	return nil
}

// sweep evicts sessions idle past the configured timeout.
func (m *Manager) sweep() {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()
	defer close(m.done)
	for {
		select {
		case <-m.rootCtx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-m.cfg.IdleTimeout)
			for _, id := range m.idleSessions(cutoff) {
				m.evict(id)
				m.logger.Info("idle session evicted", "session_id", id)
			}
		}
	}
}

func (m *Manager) idleSessions(cutoff time.Time) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, s := range m.sessions {
		if s.IdleSince().Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids
}

func (m *Manager) evict(sessionID string) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()
	if ok {
		s.stop()
	}
}

// ActiveSessions reports the current size of the session map.
func (m *Manager) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Shutdown cancels every session and waits for in-flight work to
// drain, bounded by the context.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.cancel()

	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		for _, s := range sessions {
			s.stop()
		}
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		return fmt.Errorf("runtime shutdown: %w", ctx.Err())
	}
	select {
	case <-m.done:
	case <-ctx.Done():
		return fmt.Errorf("runtime shutdown: %w", ctx.Err())
	}
	return nil
}
