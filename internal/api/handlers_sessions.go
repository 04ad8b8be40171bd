package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/proinvest/advisor/internal/forms"
	"github.com/proinvest/advisor/internal/interrupt"
	"github.com/proinvest/advisor/internal/session"
	"github.com/proinvest/advisor/internal/sse"
)

// SessionHandler handles agent session requests.
type SessionHandler struct {
	host   *session.Host
	logger *zap.Logger
}

func NewSessionHandler(host *session.Host, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{host: host, logger: logger}
}

// sessionStatus maps session and form errors to HTTP statuses.
func sessionStatus(err error) int {
	switch {
	case errors.Is(err, session.ErrRunInProgress),
		errors.Is(err, session.ErrInterruptPending),
		errors.Is(err, session.ErrAlreadyResolved),
		errors.Is(err, forms.ErrAlreadySubmitted):
		return http.StatusConflict
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, session.ErrSessionClosed),
		errors.Is(err, session.ErrNoPendingInterrupt),
		errors.Is(err, session.ErrUnknownAgent):
		return http.StatusNotFound
	case errors.Is(err, forms.ErrInvalidForm),
		errors.Is(err, forms.ErrUnknownOption):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func (h *SessionHandler) writeSessionError(w http.ResponseWriter, err error) {
	status := sessionStatus(err)
	if status == http.StatusBadGateway {
		h.logger.Error("session request failed", zap.Error(err))
	}
	writeError(w, status, err.Error())
}

func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.host.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeSessionError(w, err)
		return nil, false
	}
	return s, true
}

// stream runs fn with an emitter that writes chunks as SSE events. Errors
// returned before the first chunk become plain JSON error responses.
func (h *SessionHandler) stream(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, emit session.EmitFunc) error) {
	sw, err := sse.NewWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	emit := func(c session.Chunk) error {
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("marshal chunk: %w", err)
		}
		return sw.Send(string(c.Type), data)
	}

	err = fn(r.Context(), emit)
	if err == nil {
		return
	}
	if !sw.Started() {
		h.writeSessionError(w, err)
		return
	}
	h.logger.Warn("streamed turn ended with error",
		zap.String("session_id", chi.URLParam(r, "id")),
		zap.Error(err),
	)
}

// Create handles POST /sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Agent == "" {
		writeError(w, http.StatusBadRequest, "agent is required")
		return
	}

	s, err := h.host.Create(r.Context(), req.Agent)
	if err != nil {
		h.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateSessionResponse{ID: s.ID(), Agent: s.Agent(), ThreadID: s.ThreadID()})
}

// Get handles GET /sessions/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

// Delete handles DELETE /sessions/{id}
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.host.Close(chi.URLParam(r, "id")); err != nil {
		h.writeSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Send handles POST /sessions/{id}/messages
func (h *SessionHandler) Send(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req MessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	h.stream(w, r, func(ctx context.Context, emit session.EmitFunc) error {
		return s.Send(ctx, req.Text, emit)
	})
}

// Interrupt handles GET /sessions/{id}/interrupt. It blocks until the
// session has an outstanding interrupt unless wait=false is given.
func (h *SessionHandler) Interrupt(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	if r.URL.Query().Get("wait") == "false" {
		p := s.Pending()
		if p == nil {
			h.writeSessionError(w, session.ErrNoPendingInterrupt)
			return
		}
		writeJSON(w, http.StatusOK, p.Event())
		return
	}

	p, err := s.AwaitInterrupt(r.Context())
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		h.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p.Event())
}

// Resolve handles POST /sessions/{id}/resolve with a ready-made resolution.
func (h *SessionHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req MessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	h.stream(w, r, func(ctx context.Context, emit session.EmitFunc) error {
		return s.Resolve(ctx, req.Text, emit)
	})
}

// pendingOfKind returns the outstanding interrupt if it has the given kind.
func (h *SessionHandler) pendingOfKind(w http.ResponseWriter, s *session.Session, kind interrupt.Kind) (*session.Pending, bool) {
	p := s.Pending()
	if p == nil {
		h.writeSessionError(w, session.ErrNoPendingInterrupt)
		return nil, false
	}
	if p.Event().Kind != kind {
		writeError(w, http.StatusConflict, fmt.Sprintf("pending interrupt is %s, not %s", p.Event().Kind, kind))
		return nil, false
	}
	return p, true
}

// ResolveSteps handles POST /sessions/{id}/resolve/steps
func (h *SessionHandler) ResolveSteps(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req StepResolutionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	p, ok := h.pendingOfKind(w, s, interrupt.KindStepSelection)
	if !ok {
		return
	}

	form, err := buildStepForm(p.Event().Steps, req)
	if err != nil {
		h.writeSessionError(w, err)
		return
	}
	resolution, err := form.Submit()
	if err != nil {
		h.writeSessionError(w, err)
		return
	}

	h.stream(w, r, func(ctx context.Context, emit session.EmitFunc) error {
		return p.Resolve(ctx, resolution, emit)
	})
}

// buildStepForm replays the user's choices onto the proposed plan through
// Toggle, so executing steps keep their status whatever the client sends.
func buildStepForm(proposed []interrupt.Step, req StepResolutionRequest) (*forms.StepForm, error) {
	form := forms.NewStepForm(proposed)

	want := make([]bool, len(proposed))
	switch {
	case req.Steps != nil:
		if len(req.Steps) != len(proposed) {
			return nil, fmt.Errorf("%w: expected %d steps, got %d", forms.ErrInvalidForm, len(proposed), len(req.Steps))
		}
		for i, st := range interrupt.NormalizeSteps(req.Steps) {
			want[i] = st.Status == interrupt.StepEnabled
		}
	case req.Selected != nil:
		for _, i := range req.Selected {
			if i < 0 || i >= len(proposed) {
				return nil, fmt.Errorf("%w: step index %d out of range", forms.ErrInvalidForm, i)
			}
			want[i] = true
		}
	default:
		return form, nil
	}

	for i, st := range form.Steps() {
		if (st.Status == interrupt.StepEnabled) != want[i] {
			form.Toggle(i)
		}
	}
	return form, nil
}

// ResolveInsurance handles POST /sessions/{id}/resolve/insurance
func (h *SessionHandler) ResolveInsurance(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req InsuranceResolutionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	p, ok := h.pendingOfKind(w, s, interrupt.KindInsuranceDetails)
	if !ok {
		return
	}

	form := forms.NewInsuranceForm(p.Event().Insurance)
	if req.NumberOfPersons != nil {
		form.SetPersons(*req.NumberOfPersons)
	}
	if req.BudgetRange != nil {
		if err := form.SetBudgetRange(*req.BudgetRange); err != nil {
			h.writeSessionError(w, err)
			return
		}
	}
	if req.InsuranceType != nil {
		if err := form.SetInsuranceType(*req.InsuranceType); err != nil {
			h.writeSessionError(w, err)
			return
		}
	}
	if req.Location != nil {
		form.SetLocation(*req.Location)
	}

	resolution, err := form.Submit()
	if err != nil {
		h.writeSessionError(w, err)
		return
	}

	h.stream(w, r, func(ctx context.Context, emit session.EmitFunc) error {
		return p.Resolve(ctx, resolution, emit)
	})
}
