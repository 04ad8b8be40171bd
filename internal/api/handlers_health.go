package api

import (
	"context"
	"net/http"
	"time"

	"github.com/proinvest/advisor/internal/session"
)

// Pinger checks the local store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker probes an agent runtime.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type HealthHandler struct {
	store  Pinger
	probes map[string]HealthChecker
	host   *session.Host
}

func NewHealthHandler(store Pinger, probes map[string]HealthChecker, host *session.Host) *HealthHandler {
	return &HealthHandler{store: store, probes: probes, host: host}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status: "ok",
		Agents: make(map[string]ServiceCheck, len(h.probes)),
	}

	if err := h.store.Ping(ctx); err != nil {
		resp.Store = ServiceCheck{Status: "error", Message: err.Error()}
		resp.Status = "degraded"
	} else {
		resp.Store = ServiceCheck{Status: "ok"}
	}

	for name, probe := range h.probes {
		if err := probe.HealthCheck(ctx); err != nil {
			resp.Agents[name] = ServiceCheck{Status: "error", Message: err.Error()}
			resp.Status = "degraded"
		} else {
			resp.Agents[name] = ServiceCheck{Status: "ok"}
		}
	}

	if h.host != nil {
		resp.Sessions = h.host.Len()
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
