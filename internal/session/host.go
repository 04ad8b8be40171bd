package session

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/proinvest/advisor/internal/config"
	"github.com/proinvest/advisor/internal/metrics"
)

// Host owns the open sessions. Sessions share nothing but their runtime
// client.
type Host struct {
	agents   map[string]config.Agent
	runtimes map[string]Runtime
	metrics  *metrics.Collector
	logger   *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewHost builds a host with one runtime per configured agent.
func NewHost(agents map[string]config.Agent, newRuntime func(config.Agent) Runtime, m *metrics.Collector, logger *zap.Logger) *Host {
	if logger == nil {
		logger = zap.NewNop()
	}
	runtimes := make(map[string]Runtime, len(agents))
	for name, a := range agents {
		runtimes[name] = newRuntime(a)
	}
	return &Host{
		agents:   agents,
		runtimes: runtimes,
		metrics:  m,
		logger:   logger.With(zap.String("component", "session")),
		sessions: make(map[string]*Session),
	}
}

// Agents lists the configured agent names.
func (h *Host) Agents() []string {
	names := make([]string, 0, len(h.agents))
	for name := range h.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create opens a session on a fresh thread of the named agent.
func (h *Host) Create(ctx context.Context, agentName string) (*Session, error) {
	agent, ok := h.agents[agentName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAgent, agentName)
	}
	rt := h.runtimes[agentName]

	threadID, err := rt.CreateThread(ctx)
	if err != nil {
		return nil, fmt.Errorf("create thread: %w", err)
	}

	s := newSession(uuid.New().String(), agent, threadID, rt, h.metrics, h.logger)

	h.mu.Lock()
	h.sessions[s.id] = s
	h.mu.Unlock()

	h.metrics.SessionOpened()
	s.logger.Info("session opened", zap.String("thread_id", threadID))
	return s, nil
}

// Get looks up an open session.
func (h *Host) Get(id string) (*Session, error) {
	h.mu.RLock()
	s, ok := h.sessions[id]
	h.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Close abandons and forgets a session.
func (h *Host) Close(id string) error {
	h.mu.Lock()
	s, ok := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.Close()
	h.metrics.SessionClosed()
	return nil
}

// CloseAll abandons every session, for shutdown.
func (h *Host) CloseAll() {
	h.mu.Lock()
	sessions := h.sessions
	h.sessions = make(map[string]*Session)
	h.mu.Unlock()

	for _, s := range sessions {
		s.Close()
		h.metrics.SessionClosed()
	}
}

// Len returns the number of open sessions.
func (h *Host) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}
