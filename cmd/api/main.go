package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmlabs-hris/compliance-engine/internal/config"
	appHTTP "github.com/cmlabs-hris/compliance-engine/internal/handler/http"
	"github.com/cmlabs-hris/compliance-engine/internal/pkg/cron"
	"github.com/cmlabs-hris/compliance-engine/internal/pkg/database"
	"github.com/cmlabs-hris/compliance-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/compliance-engine/internal/pkg/metrics"
	"github.com/cmlabs-hris/compliance-engine/internal/repository/postgresql"
	complianceService "github.com/cmlabs-hris/compliance-engine/internal/service/compliance"
	"github.com/cmlabs-hris/compliance-engine/internal/service/scope"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL())
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	sourceRepo := postgresql.NewSourceRepository(db)
	snapshotRepo, err := postgresql.NewSnapshotRepository(db)
	if err != nil {
		return err
	}

	store := complianceService.NewStore(
		complianceService.WithHistory(cfg.Compliance.RetainSnapshots),
		complianceService.WithRetryAfter(cfg.Compliance.RetryAfter),
		complianceService.WithFallback(snapshotRepo),
	)
	recomputer := complianceService.NewRecomputer(sourceRepo, snapshotRepo, store, m, complianceService.RecomputeConfig{
		HorizonDays:  cfg.Compliance.HorizonDays,
		MinGroupSize: cfg.Compliance.MinGroupSize,
		Retain:       cfg.Compliance.RetainSnapshots,
	})
	queryService := complianceService.NewQueryService(store, scope.NewResolver(), m, complianceService.QueryConfig{
		MaxWindowDays: cfg.Compliance.MaxWindowDays,
		Timeout:       cfg.Compliance.QueryTimeout,
		MinGroupSize:  cfg.Compliance.MinGroupSize,
	})

	// Serve the last persisted snapshot until the next scheduled run.
	if err := recomputer.Restore(ctx); err != nil {
		slog.Warn("Could not restore persisted snapshot", "error", err)
	}

	scheduler := cron.NewScheduler()
	complianceJobs := cron.NewComplianceJobs(recomputer, cfg.Compliance.RecomputeSchedule)
	if err := complianceJobs.RegisterJobs(scheduler); err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	if cfg.Compliance.RecomputeOnStart || store.Current() == nil {
		go func() {
			if err := complianceJobs.Recompute(ctx); err != nil {
				slog.Error("Initial recompute failed", "error", err)
			}
		}()
	}

	JWTService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)
	complianceHandler := appHTTP.NewComplianceHandler(queryService, recomputer)
	router := appHTTP.NewRouter(cfg.App, JWTService, complianceHandler, m.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server running", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
