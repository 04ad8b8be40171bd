package session

import (
	"context"

	"go.uber.org/zap"

	"github.com/proinvest/advisor/internal/interrupt"
	"github.com/proinvest/advisor/internal/langgraph"
)

// Pending is an interrupt awaiting its resolution. It can be resolved once.
type Pending struct {
	session  *Session
	event    interrupt.Event
	resolved bool // guarded by session.mu
}

// Event returns the decoded interrupt.
func (p *Pending) Event() interrupt.Event {
	return p.event
}

// Resolve sends text as the resolution and streams the resumed run to emit.
// Only the first call transmits; later calls return ErrAlreadyResolved. If
// the runtime could not be reached the interrupt is pending again and can be
// answered anew.
func (p *Pending) Resolve(ctx context.Context, text string, emit EmitFunc) error {
	s := p.session

	s.mu.Lock()
	if p.resolved {
		s.mu.Unlock()
		return ErrAlreadyResolved
	}
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	p.resolved = true
	s.pending = nil
	s.state = StateRunning
	s.messages = append(s.messages, Message{Role: RoleUser, Content: text})
	s.notifyLocked()
	s.mu.Unlock()

	s.metrics.RecordResolution(s.agent.Name, string(p.event.Kind))
	s.logger.Info("resolving interrupt", zap.String("kind", string(p.event.Kind)))

	return s.run(ctx, langgraph.RunRequest{
		AssistantID: s.agent.GraphID,
		Command:     &langgraph.Command{Resume: text},
	}, p, emit)
}
