package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/proinvest/advisor/internal/api"
	"github.com/proinvest/advisor/internal/auth"
	"github.com/proinvest/advisor/internal/config"
	"github.com/proinvest/advisor/internal/langgraph"
	"github.com/proinvest/advisor/internal/logging"
	"github.com/proinvest/advisor/internal/metrics"
	"github.com/proinvest/advisor/internal/proxy"
	"github.com/proinvest/advisor/internal/session"
	"github.com/proinvest/advisor/internal/store"
	"github.com/proinvest/advisor/internal/telemetry"
)

func main() {
	// Config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Logger
	logger := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	defer logger.Sync() //nolint:errcheck

	// Tracing
	tp, err := telemetry.Setup(context.Background(), cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal("failed to set up tracing", zap.Error(err))
	}

	// SQLite
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()
	kv := store.NewKVStore(db)

	m := metrics.New()

	// Agent runtimes
	clients := make(map[string]*langgraph.Client, len(cfg.Agents))
	probes := make(map[string]api.HealthChecker, len(cfg.Agents))
	for name, a := range cfg.Agents {
		c := langgraph.NewClient(a.DeploymentURL, a.TracingAPIKey)
		clients[name] = c
		probes[name] = c
	}
	host := session.NewHost(cfg.Agents, func(a config.Agent) session.Runtime {
		return clients[a.Name]
	}, m, logger)

	prox, err := proxy.New(cfg.Agents, proxy.Options{
		RateLimit: cfg.ProxyRateLimit,
		Burst:     cfg.ProxyBurst,
	}, m, logger)
	if err != nil {
		logger.Fatal("failed to build runtime proxy", zap.Error(err))
	}

	authSvc := auth.NewStubService(kv, cfg.AuthStubDelay, logger)

	// Router
	router := api.NewRouter(kv, probes, host, prox, authSvc, m, logger)

	// Server. No write timeout: runs stream for as long as the agent talks.
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("advisor server starting",
			zap.String("addr", addr),
			zap.Strings("agents", host.Agents()),
			zap.Bool("tracing", tp.Enabled()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-done
	logger.Info("shutting down...")

	// Abandon open sessions first so their streams release the connections.
	host.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	if err := tp.Shutdown(ctx); err != nil {
		logger.Error("tracer shutdown error", zap.Error(err))
	}

	logger.Info("server stopped")
}
