package api

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/proinvest/advisor/internal/auth"
	"github.com/proinvest/advisor/internal/metrics"
	"github.com/proinvest/advisor/internal/proxy"
	"github.com/proinvest/advisor/internal/session"
)

// RuntimePrefix is where the chat UI's runtime requests are proxied from.
const RuntimePrefix = "/api/copilotkit/langgraph"

// NewRouter creates the Chi router with all routes and middleware.
func NewRouter(
	store Pinger,
	probes map[string]HealthChecker,
	host *session.Host,
	prox *proxy.Proxy,
	authSvc auth.Service,
	m *metrics.Collector,
	logger *zap.Logger,
) *chi.Mux {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "api"))

	r := chi.NewRouter()

	// Global middleware (runs on ALL routes including /health)
	r.Use(CORS)
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recovery(logger))
	r.Use(Metrics(m))

	healthH := NewHealthHandler(store, probes, host)
	authH := NewAuthHandler(authSvc, logger)
	sessionH := NewSessionHandler(host, logger)

	r.Get("/health", healthH.Health)
	if m != nil {
		r.Handle("/metrics", m.Handler())
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", authH.Login)
		r.Post("/signup", authH.Signup)
		r.Post("/logout", authH.Logout)
		r.Get("/me", authH.Me)
	})

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", sessionH.Create)
		r.Get("/{id}", sessionH.Get)
		r.Delete("/{id}", sessionH.Delete)
		r.Post("/{id}/messages", sessionH.Send)
		r.Get("/{id}/interrupt", sessionH.Interrupt)
		r.Post("/{id}/resolve", sessionH.Resolve)
		r.Post("/{id}/resolve/steps", sessionH.ResolveSteps)
		r.Post("/{id}/resolve/insurance", sessionH.ResolveInsurance)
	})

	if prox != nil {
		r.Mount(RuntimePrefix, prox.Routes())
	}

	return r
}
