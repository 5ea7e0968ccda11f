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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/podology-booking/internal/api/router"
	"github.com/wolfman30/podology-booking/internal/app/bootstrap"
	appconfig "github.com/wolfman30/podology-booking/internal/config"
	"github.com/wolfman30/podology-booking/internal/flows"
	"github.com/wolfman30/podology-booking/internal/http/handlers"
	syncworker "github.com/wolfman30/podology-booking/internal/worker/sync"
	"github.com/wolfman30/podology-booking/pkg/logging"
)

func main() {
	appconfig.LoadDotEnv()
	cfg := appconfig.Load()

	logger := logging.NewWithWriter(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	logger.Info("starting podology-booking API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg, metricsHandler := setupMetrics()
	rt, err := bootstrap.BuildRuntime(ctx, cfg, logger, reg)
	if err != nil {
		logger.Error("failed to wire booking service", "error", err)
		os.Exit(1)
	}
	defer rt.Close()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      buildHandler(cfg, rt, metricsHandler, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // full syncs over many calendars
		IdleTimeout:  60 * time.Second,
	}

	if cfg.SyncCron != "" {
		refresher := syncworker.NewRefresher(rt.Service, logger).
			WithSchedule(cfg.SyncCron).
			WithWindow(syncWindow(cfg)).
			WithLocation(cfg.Location())
		go func() {
			if err := refresher.Run(ctx); err != nil {
				logger.Error("refresher stopped", "error", err)
			}
		}()
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

func setupMetrics() (*prometheus.Registry, http.Handler) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg, promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func syncWindow(cfg *appconfig.Config) time.Duration {
	days := cfg.SyncWindowDays
	if days <= 0 {
		days = 30
	}
	return time.Duration(days) * 24 * time.Hour
}

func buildHandler(cfg *appconfig.Config, rt *bootstrap.Runtime, metricsHandler http.Handler, logger *logging.Logger) http.Handler {
	return router.New(&router.Config{
		Logger:             logger,
		Bookings:           handlers.NewBookingsHandler(rt.Service, syncWindow(cfg), logger),
		Flows:              handlers.NewFlowsHandler(flows.NewDispatcher(rt.Service), logger),
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		WriteRateLimit:     cfg.WriteRateLimit,
		WriteBurst:         cfg.WriteBurst,
	})
}
