package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/proinvest/advisor/internal/auth"
)

// AuthHandler exposes the login and signup forms. Validation failures are
// returned inline as 400s; the client decides where to navigate.
type AuthHandler struct {
	svc    auth.Service
	logger *zap.Logger
}

func NewAuthHandler(svc auth.Service, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, logger: logger}
}

func (h *AuthHandler) writeAuthError(w http.ResponseWriter, err error) {
	var ve *auth.ValidationError
	if errors.As(err, &ve) {
		writeError(w, http.StatusBadRequest, ve.Message)
		return
	}
	h.logger.Error("auth failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "authentication unavailable")
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	u, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{User: u})
}

// Signup handles POST /auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	u, err := h.svc.Signup(r.Context(), req.Name, req.Email, req.Password, req.ConfirmPassword)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, UserResponse{User: u})
}

// Logout handles POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Logout(r.Context()); err != nil {
		h.writeAuthError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.CurrentUser(r.Context())
	if err != nil {
		h.writeAuthError(w, err)
		return
	}
	if u == nil {
		writeError(w, http.StatusUnauthorized, "not signed in")
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{User: u})
}
