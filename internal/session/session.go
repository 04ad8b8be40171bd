// Package session hosts agent sessions: one conversation bound to one
// LangGraph graph, with at most one run streaming and at most one interrupt
// awaiting its resolution.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/proinvest/advisor/internal/config"
	"github.com/proinvest/advisor/internal/interrupt"
	"github.com/proinvest/advisor/internal/langgraph"
	"github.com/proinvest/advisor/internal/metrics"
)

// Runtime is the remote graph runtime a session drives.
type Runtime interface {
	CreateThread(ctx context.Context) (string, error)
	StreamRun(ctx context.Context, threadID string, run langgraph.RunRequest, fn func(langgraph.StreamEvent) error) error
}

// State is the lifecycle state of a session.
type State string

const (
	StateIdle        State = "idle"
	StateRunning     State = "running"
	StateInterrupted State = "interrupted"
	StateClosed      State = "closed"
)

// Session is a conversation with one agent.
type Session struct {
	id        string
	agent     config.Agent
	threadID  string
	createdAt time.Time
	runtime   Runtime
	metrics   *metrics.Collector
	logger    *zap.Logger

	mu        sync.Mutex
	state     State
	pending   *Pending
	messages  []Message
	changed   chan struct{}
	cancelRun context.CancelFunc
}

func newSession(id string, agent config.Agent, threadID string, rt Runtime, m *metrics.Collector, logger *zap.Logger) *Session {
	return &Session{
		id:        id,
		agent:     agent,
		threadID:  threadID,
		createdAt: time.Now().UTC(),
		runtime:   rt,
		metrics:   m,
		logger:    logger.With(zap.String("session_id", id), zap.String("agent", agent.Name)),
		state:     StateIdle,
		changed:   make(chan struct{}),
	}
}

func (s *Session) ID() string           { return s.id }
func (s *Session) Agent() string        { return s.agent.Name }
func (s *Session) ThreadID() string     { return s.threadID }
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Messages returns a copy of the transcript.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Pending returns the outstanding interrupt, or nil.
func (s *Session) Pending() *Pending {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	ID        string           `json:"id"`
	Agent     string           `json:"agent"`
	ThreadID  string           `json:"thread_id"`
	State     State            `json:"state"`
	CreatedAt time.Time        `json:"created_at"`
	Messages  []Message        `json:"messages"`
	Interrupt *interrupt.Event `json:"interrupt,omitempty"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ID:        s.id,
		Agent:     s.agent.Name,
		ThreadID:  s.threadID,
		State:     s.state,
		CreatedAt: s.createdAt,
		Messages:  append([]Message{}, s.messages...),
	}
	if s.pending != nil {
		ev := s.pending.event
		snap.Interrupt = &ev
	}
	return snap
}

// notifyLocked wakes AwaitInterrupt callers. s.mu must be held.
func (s *Session) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

// Send starts a run with a user message and streams it to emit. It returns
// once the run finishes, pauses on an interrupt, fails, or the session is
// closed. Ending ctx only stops delivery to emit.
func (s *Session) Send(ctx context.Context, text string, emit EmitFunc) error {
	s.mu.Lock()
	switch s.state {
	case StateClosed:
		s.mu.Unlock()
		return ErrSessionClosed
	case StateRunning:
		s.mu.Unlock()
		return ErrRunInProgress
	case StateInterrupted:
		s.mu.Unlock()
		return ErrInterruptPending
	}
	s.state = StateRunning
	s.messages = append(s.messages, Message{Role: RoleUser, Content: text})
	s.notifyLocked()
	s.mu.Unlock()

	return s.run(ctx, langgraph.RunRequest{
		AssistantID: s.agent.GraphID,
		Input:       langgraph.MessagesInput(text),
	}, nil, emit)
}

// AwaitInterrupt blocks until an interrupt is outstanding and returns its
// handle. It returns immediately when one already is. There is no timeout
// beyond ctx.
func (s *Session) AwaitInterrupt(ctx context.Context) (*Pending, error) {
	for {
		s.mu.Lock()
		if s.state == StateClosed {
			s.mu.Unlock()
			return nil, ErrSessionClosed
		}
		if s.pending != nil {
			p := s.pending
			s.mu.Unlock()
			return p, nil
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-changed:
		}
	}
}

// Resolve answers the outstanding interrupt.
func (s *Session) Resolve(ctx context.Context, text string, emit EmitFunc) error {
	p := s.Pending()
	if p == nil {
		if s.State() == StateClosed {
			return ErrSessionClosed
		}
		return ErrNoPendingInterrupt
	}
	return p.Resolve(ctx, text, emit)
}

// Close abandons the session. An in-flight local stream is cancelled; the
// remote run is not signalled and a paused run stays paused.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	pending := s.pending
	s.pending = nil
	s.state = StateClosed
	cancel := s.cancelRun
	s.notifyLocked()
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if pending != nil {
		s.metrics.RecordAbandoned(s.agent.Name, string(pending.event.Kind))
		s.logger.Warn("session closed with unresolved interrupt; remote run left paused",
			zap.String("thread_id", s.threadID),
			zap.String("kind", string(pending.event.Kind)),
		)
	}
	s.logger.Info("session closed")
}

// listener forwards chunks to the caller until it goes away. The run itself
// keeps streaming so that a later interrupt is still recorded.
type listener struct {
	ctx    context.Context
	emit   EmitFunc
	logger *zap.Logger
	gone   bool
}

func (l *listener) send(c Chunk) {
	if l.gone {
		return
	}
	if l.ctx.Err() != nil {
		l.gone = true
		l.logger.Info("caller left; run continues without a listener")
		return
	}
	if err := l.emit(c); err != nil {
		l.gone = true
		l.logger.Info("chunk delivery failed; run continues without a listener", zap.Error(err))
	}
}

// run streams one run. The stream is bound to the session, not to ctx: it
// ends when the remote run ends or the session closes. resuming is the
// interrupt being answered, if any; when the runtime fails before sending a
// single event the resolution never arrived and that interrupt is restored.
func (s *Session) run(ctx context.Context, req langgraph.RunRequest, resuming *Pending, emit EmitFunc) error {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.cancelRun = cancel
	s.mu.Unlock()

	out := &listener{ctx: ctx, emit: emit, logger: s.logger}
	var (
		reply     strings.Builder
		latest    json.RawMessage
		delivered bool
	)
	err := s.runtime.StreamRun(runCtx, s.threadID, req, func(ev langgraph.StreamEvent) error {
		delivered = true
		switch ev.Type {
		case langgraph.EventMessage:
			reply.WriteString(ev.Text)
			out.send(Chunk{Type: ChunkMessage, Text: ev.Text})
		case langgraph.EventInterrupt:
			if n := len(ev.Interrupts); n > 0 {
				latest = ev.Interrupts[n-1]
			}
		}
		return nil
	})

	s.mu.Lock()
	s.cancelRun = nil
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if reply.Len() > 0 {
		s.messages = append(s.messages, Message{Role: RoleAssistant, Content: reply.String()})
	}

	var pending *Pending
	restored := false
	switch {
	case latest != nil:
		ev, decodeErr := interrupt.Decode(latest)
		if decodeErr != nil {
			s.logger.Warn("interrupt payload not recognised; offering free-text answer",
				zap.Error(decodeErr), zap.ByteString("value", latest))
		}
		pending = &Pending{session: s, event: ev}
		s.pending = pending
		s.state = StateInterrupted
	case err != nil && !delivered && resuming != nil:
		// The resolution is the last message; nothing else runs meanwhile.
		s.messages = s.messages[:len(s.messages)-1]
		resuming.resolved = false
		pending = resuming
		restored = true
		s.pending = pending
		s.state = StateInterrupted
	default:
		s.state = StateIdle
	}
	s.notifyLocked()
	s.mu.Unlock()

	if err != nil && !errors.Is(err, context.Canceled) {
		s.metrics.RecordRunError(s.agent.Name)
		s.logger.Error("run failed", zap.Error(err), zap.Bool("interrupt_restored", restored))
		out.send(Chunk{Type: ChunkError, Error: err.Error()})
	}
	if pending != nil {
		if !restored {
			s.metrics.RecordInterrupt(s.agent.Name, string(pending.event.Kind))
			s.logger.Info("run paused on interrupt", zap.String("kind", string(pending.event.Kind)))
		}
		ev := pending.event
		out.send(Chunk{Type: ChunkInterrupt, Interrupt: &ev})
	}
	out.send(Chunk{Type: ChunkDone})
	return err
}
