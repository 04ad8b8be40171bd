// Package tui is the terminal chat host: a transcript, an input line, and
// the interrupt forms that replace the input while the agent waits.
package tui

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/proinvest/advisor/internal/client"
	"github.com/proinvest/advisor/internal/interrupt"
	"github.com/proinvest/advisor/internal/session"
)

// interruptPollTimeout bounds one long-poll while recovering a broken stream.
const interruptPollTimeout = 15 * time.Second

// Backend is the server API the UI drives.
type Backend interface {
	Health(ctx context.Context) error
	CreateSession(ctx context.Context, agent string) (*client.SessionInfo, error)
	Snapshot(ctx context.Context, id string) (*session.Snapshot, error)
	AwaitInterrupt(ctx context.Context, id string) (*interrupt.Event, error)
	Send(ctx context.Context, id, text string, fn func(session.Chunk) error) error
	Resolve(ctx context.Context, id, text string, fn func(session.Chunk) error) error
	CloseSession(ctx context.Context, id string) error
}

var _ Backend = (*client.Client)(nil)

type entryRole int

const (
	roleUser entryRole = iota
	roleAssistant
	roleSystem
	roleError
)

type entry struct {
	role entryRole
	text string
}

// streamItem is one chunk, or the terminal error, of a streamed turn.
type streamItem struct {
	chunk session.Chunk
	err   error
}

type sessionCreatedMsg struct {
	info *client.SessionInfo
	err  error
}

type streamBatchMsg struct {
	items []streamItem
}

// streamEndedMsg is sent when the stream channel closes.
type streamEndedMsg struct{}

type snapshotMsg struct {
	snap *session.Snapshot
	err  error
}

type interruptPolledMsg struct {
	event *interrupt.Event
	err   error
}

// Model is the root Bubble Tea model
type Model struct {
	backend Backend
	agent   string
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// Terminal dimensions
	width  int
	height int
	ready  bool

	sessionID string

	// Transcript
	entries  []entry
	viewport viewport.Model

	// Input
	input textinput.Model

	// Active interrupt form; kept after submission to show its final state.
	widget formWidget

	// Streaming state
	streamChan chan streamItem
	running    bool
	// streamFailed marks a turn that ended on an error instead of done.
	streamFailed bool
	spinner    spinner.Model
	status     string

	keys KeyMap
	help help.Model
}

// NewRootModel creates the root model for one agent.
func NewRootModel(backend Backend, agent string, logger *zap.Logger) Model {
	if logger == nil {
		logger = zap.NewNop()
	}

	ti := textinput.New()
	ti.Placeholder = "Ask about insurance..."
	ti.Prompt = "❯ "
	ti.PromptStyle = InputPromptStyle
	ti.CharLimit = 0 // No limit
	ti.Width = 80    // Default width, will be updated on WindowSizeMsg
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = StatusRunningStyle

	ctx, cancel := context.WithCancel(context.Background())

	return Model{
		backend: backend,
		agent:   agent,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		input:   ti,
		spinner: sp,
		status:  "Connecting...",
		keys:    DefaultKeyMap(),
		help:    help.New(),
	}
}

// Init opens the session.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.createSessionCmd())
}

func (m Model) createSessionCmd() tea.Cmd {
	backend, ctx, agent := m.backend, m.ctx, m.agent
	return func() tea.Msg {
		if err := backend.Health(ctx); err != nil && !client.IsStatus(err, http.StatusServiceUnavailable) {
			return sessionCreatedMsg{err: fmt.Errorf("advisor server unreachable: %w", err)}
		}
		info, err := backend.CreateSession(ctx, agent)
		return sessionCreatedMsg{info: info, err: err}
	}
}

// recoverCmd reloads the session after a broken stream. The run keeps going
// on the server, so an interrupt it reaches still needs its form here.
func (m Model) recoverCmd() tea.Cmd {
	backend, ctx, id := m.backend, m.ctx, m.sessionID
	return func() tea.Msg {
		snap, err := backend.Snapshot(ctx, id)
		return snapshotMsg{snap: snap, err: err}
	}
}

func (m Model) pollInterruptCmd() tea.Cmd {
	backend, ctx, id := m.backend, m.ctx, m.sessionID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, interruptPollTimeout)
		defer cancel()
		ev, err := backend.AwaitInterrupt(ctx, id)
		return interruptPolledMsg{event: ev, err: err}
	}
}

// openRecoveredForm shows a form for an interrupt learnt outside a stream.
func (m *Model) openRecoveredForm(ev *interrupt.Event) {
	if ev == nil || m.running || m.formOpen() {
		return
	}
	m.widget = newWidget(*ev, m.keys)
	m.status = "The assistant is waiting for your answer"
}

// closeSessionCmd abandons the server session. Failures are only logged.
func (m Model) closeSessionCmd() tea.Cmd {
	if m.sessionID == "" {
		return nil
	}
	backend, id, logger := m.backend, m.sessionID, m.logger
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := backend.CloseSession(ctx, id); err != nil {
			logger.Warn("close session failed", zap.String("session_id", id), zap.Error(err))
		}
		return nil
	}
}

// startStream runs a streamed turn in the background and polls its chunks.
func (m *Model) startStream(run func(ctx context.Context, fn func(session.Chunk) error) error) tea.Cmd {
	ch := make(chan streamItem, 64)
	m.streamChan = ch
	m.running = true
	m.streamFailed = false
	m.status = ""

	ctx := m.ctx
	go func() {
		defer close(ch)
		err := run(ctx, func(c session.Chunk) error {
			select {
			case ch <- streamItem{chunk: c}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil && ctx.Err() == nil {
			ch <- streamItem{err: err}
		}
	}()

	return tea.Batch(waitForStream(ch), m.spinner.Tick)
}

// waitForStream blocks until a chunk is available and then drains whatever
// else is immediately ready.
func waitForStream(ch <-chan streamItem) tea.Cmd {
	return func() tea.Msg {
		if ch == nil {
			return nil
		}
		item, ok := <-ch
		if !ok {
			return streamEndedMsg{}
		}
		items := []streamItem{item}
		for {
			select {
			case it, ok := <-ch:
				if !ok {
					return streamBatchMsg{items: items}
				}
				items = append(items, it)
			default:
				return streamBatchMsg{items: items}
			}
		}
	}
}

func (m *Model) appendEntry(role entryRole, text string) {
	m.entries = append(m.entries, entry{role: role, text: text})
}

// appendAssistantText extends the assistant reply being streamed.
func (m *Model) appendAssistantText(text string) {
	if n := len(m.entries); n > 0 && m.entries[n-1].role == roleAssistant {
		m.entries[n-1].text += text
		return
	}
	m.appendEntry(roleAssistant, text)
}

func (m *Model) applyItem(item streamItem) {
	if item.err != nil {
		m.streamFailed = true
		m.appendEntry(roleError, "Error: "+item.err.Error())
		return
	}
	c := item.chunk
	switch c.Type {
	case session.ChunkMessage:
		m.appendAssistantText(c.Text)
	case session.ChunkInterrupt:
		if c.Interrupt != nil {
			m.widget = newWidget(*c.Interrupt, m.keys)
		}
	case session.ChunkError:
		m.appendEntry(roleError, "Error: "+c.Error)
	}
}

func (m *Model) sendMessage(text string) tea.Cmd {
	m.appendEntry(roleUser, text)
	m.widget = nil
	backend, id := m.backend, m.sessionID
	return m.startStream(func(ctx context.Context, fn func(session.Chunk) error) error {
		return backend.Send(ctx, id, text, fn)
	})
}

func (m *Model) resolve(resolution string) tea.Cmd {
	m.appendEntry(roleUser, resolution)
	backend, id := m.backend, m.sessionID
	return m.startStream(func(ctx context.Context, fn func(session.Chunk) error) error {
		return backend.Resolve(ctx, id, resolution, fn)
	})
}

// formOpen reports whether an interrupt form is waiting for the user.
func (m Model) formOpen() bool {
	return m.widget != nil && !m.widget.Submitted()
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-8, 10)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, m.viewportHeight())
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = m.viewportHeight()
		}
		m.refreshViewport()
		return m, nil

	case sessionCreatedMsg:
		if msg.err != nil {
			m.status = "Could not start a session: " + msg.err.Error()
			m.appendEntry(roleError, m.status)
			m.refreshViewport()
			return m, nil
		}
		m.sessionID = msg.info.ID
		m.status = ""
		m.appendEntry(roleSystem, fmt.Sprintf("Connected to %s.", msg.info.Agent))
		m.refreshViewport()
		return m, nil

	case streamBatchMsg:
		for _, item := range msg.items {
			m.applyItem(item)
		}
		m.refreshViewport()
		return m, waitForStream(m.streamChan)

	case streamEndedMsg:
		m.running = false
		m.streamChan = nil
		m.refreshViewport()
		if m.streamFailed && m.sessionID != "" {
			return m, m.recoverCmd()
		}
		return m, nil

	case snapshotMsg:
		if msg.err != nil {
			m.logger.Warn("session recovery failed", zap.Error(msg.err))
			return m, nil
		}
		switch msg.snap.State {
		case session.StateInterrupted:
			m.openRecoveredForm(msg.snap.Interrupt)
		case session.StateRunning:
			m.status = "Reconnecting to the assistant..."
			return m, m.pollInterruptCmd()
		case session.StateClosed:
			m.status = "The session was closed"
		default:
			m.status = ""
		}
		m.refreshViewport()
		return m, nil

	case interruptPolledMsg:
		switch {
		case msg.err == nil:
			m.openRecoveredForm(msg.event)
		case errors.Is(msg.err, context.DeadlineExceeded):
			// The run may have finished without pausing; look again.
			return m, m.recoverCmd()
		default:
			m.logger.Warn("interrupt poll failed", zap.Error(msg.err))
			return m, nil
		}
		m.refreshViewport()
		return m, nil

	case spinner.TickMsg:
		if !m.running {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancel()
		return m, tea.Sequence(m.closeSessionCmd(), tea.Quit)
	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfPageUp()
		return m, nil
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfPageDown()
		return m, nil
	}

	if m.formOpen() {
		// There is no way to cancel an interrupt; esc keeps the form up.
		if key.Matches(msg, m.keys.Escape) {
			m.status = "Answer the form to let the assistant continue"
			return m, nil
		}
		resolution, ok := m.widget.HandleKey(msg)
		if !ok {
			return m, nil
		}
		cmd := m.resolve(resolution)
		m.refreshViewport()
		return m, cmd
	}

	if key.Matches(msg, m.keys.Enter) {
		text := strings.TrimSpace(m.input.Value())
		if text == "" || m.running || m.sessionID == "" {
			return m, nil
		}
		m.input.SetValue("")
		cmd := m.sendMessage(text)
		m.refreshViewport()
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) viewportHeight() int {
	// header, input box, status bar
	h := m.height - 6
	if m.widget != nil {
		h -= lipgloss.Height(m.widget.View(m.width))
	}
	return max(h, 3)
}

func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	m.viewport.Height = m.viewportHeight()
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) renderTranscript() string {
	wrap := max(m.width-4, 20)
	var b strings.Builder
	for _, e := range m.entries {
		switch e.role {
		case roleUser:
			b.WriteString(UserInputStyle.Width(wrap).Render(UserTextStyle.Render(e.text)))
		case roleAssistant:
			b.WriteString(AssistantStyle.Width(wrap).Render(e.text))
		case roleSystem:
			b.WriteString(SystemStyle.Width(wrap).Render(SystemTextStyle.Render(e.text)))
		case roleError:
			b.WriteString(SystemStyle.Width(wrap).Render(ErrorStyle.Render(e.text)))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// View renders the UI
func (m Model) View() string {
	if !m.ready {
		return "Starting..."
	}

	var b strings.Builder
	b.WriteString(HeaderStyle.Render("Pro Invest Advisor"))
	b.WriteString(HeaderAgentStyle.Render("  " + m.agent))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	if m.widget != nil {
		b.WriteString(m.widget.View(m.width))
		b.WriteString("\n")
	}
	if !m.formOpen() {
		b.WriteString(InputStyle.Width(m.width - 4).Render(m.input.View()))
		b.WriteString("\n")
	}

	b.WriteString(m.renderStatusBar())
	return b.String()
}

func (m Model) renderStatusBar() string {
	var left string
	switch {
	case m.running:
		left = m.spinner.View() + StatusRunningStyle.Render(" Thinking")
	case m.status != "":
		left = m.status
	case m.formOpen():
		left = "Waiting for your answer"
	default:
		left = "Ready"
	}
	return StatusBarStyle.Render(left + "  " + m.help.ShortHelpView(m.keys.ShortHelp()))
}
