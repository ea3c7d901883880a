package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/technerv/election-monitor/internal/app"
	fanoutmetrics "github.com/technerv/election-monitor/internal/fanout/metrics"
	"github.com/technerv/election-monitor/internal/fanout/transport"
	"github.com/technerv/election-monitor/internal/identity"
	"github.com/technerv/election-monitor/internal/platform/config"
	"github.com/technerv/election-monitor/internal/platform/httpserver"
	"github.com/technerv/election-monitor/internal/platform/logger"
	platformmetrics "github.com/technerv/election-monitor/internal/platform/metrics"
	reconcilehandler "github.com/technerv/election-monitor/internal/reconcile/handler"
	syncmetrics "github.com/technerv/election-monitor/internal/reconcile/metrics"
	"github.com/technerv/election-monitor/internal/reconcile/scheduler"
	reporthandler "github.com/technerv/election-monitor/internal/report/handler"
	reportmetrics "github.com/technerv/election-monitor/internal/report/metrics"
	reportservice "github.com/technerv/election-monitor/internal/report/service"
	"github.com/technerv/election-monitor/pkg/platform/middleware/auth"
	"github.com/technerv/election-monitor/pkg/platform/middleware/metadata"
	"github.com/technerv/election-monitor/pkg/platform/middleware/request"
	"github.com/technerv/election-monitor/pkg/platform/middleware/requesttime"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "election-monitor:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(os.Getenv("ELECTION_CONFIG_FILE"))
	if err != nil {
		return err
	}
	log := logger.New(cfg.Logging)
	slog.SetDefault(log)

	stores, err := app.OpenStores(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer stores.Close()

	locker, closeLocker, err := app.OpenLocker(ctx, cfg.Redis, log)
	if err != nil {
		return err
	}
	defer closeLocker()

	hub, closeSink, err := app.NewHub(ctx, cfg, log, fanoutmetrics.New())
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		closeSink(closeCtx)
	}()
	hub.Start(ctx)

	reports, err := reportservice.New(stores.Reports, hub,
		reportservice.WithLogger(log),
		reportservice.WithMetrics(reportmetrics.New()),
		reportservice.WithElections(stores.Elections),
	)
	if err != nil {
		return err
	}

	sm := syncmetrics.New()
	synchronizer, _, err := app.NewSynchronizer(cfg, stores.Elections, hub, locker, log, sm)
	if err != nil {
		return err
	}

	sched := scheduler.New(cfg.Sync.MaxConcurrent, scheduler.WithLogger(log), scheduler.WithMetrics(sm))
	if cfg.Sync.Enabled {
		for _, job := range scheduler.SyncJobs(cfg.Sync, synchronizer) {
			if err := sched.Add(job); err != nil {
				return err
			}
		}
		sched.Start()
	}

	tokens := identity.NewTokenService(cfg.Auth.SigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
	router := newRouter(log, tokens)
	reporthandler.New(reports, log).Register(router)
	reconcilehandler.New(synchronizer, cfg.Auth.AdminToken, log).Register(router)
	transport.New(hub,
		transport.WithLogger(log),
		transport.WithWriteTimeout(cfg.Fanout.WriteTimeout),
		transport.WithPingInterval(cfg.Fanout.PingInterval),
		transport.WithAllowedOrigins(cfg.Server.AllowedOrigins),
	).Register(router)

	srv := httpserver.New(cfg.Server.Addr, router)
	log.Info("election-monitor starting", "environment", cfg.Environment, "sync_enabled", cfg.Sync.Enabled)
	return httpserver.Run(ctx, srv, cfg.Server.ShutdownTimeout, log, func(ctx context.Context) {
		if err := sched.Stop(ctx); err != nil {
			log.Warn("scheduler did not stop in time", "error", err)
		}
		hub.Stop()
	})
}

func newRouter(log *slog.Logger, tokens auth.TokenValidator) chi.Router {
	httpMetrics := platformmetrics.NewHTTP()
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(httpMetrics.Middleware)
	r.Use(auth.Authenticate(tokens, log))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}
