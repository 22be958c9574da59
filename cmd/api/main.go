package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/clinic-scheduling/internal/api/router"
	"github.com/wolfman30/clinic-scheduling/internal/app/bootstrap"
	"github.com/wolfman30/clinic-scheduling/internal/appointments"
	appconfig "github.com/wolfman30/clinic-scheduling/internal/config"
	httpmiddleware "github.com/wolfman30/clinic-scheduling/internal/http/middleware"
	"github.com/wolfman30/clinic-scheduling/internal/observability/metrics"
	"github.com/wolfman30/clinic-scheduling/internal/scheduling"
	"github.com/wolfman30/clinic-scheduling/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic scheduling API",
		"env", cfg.Env,
		"port", cfg.Port,
		"timezone", cfg.Location().String(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	pool, err := bootstrap.BuildPool(ctx, cfg)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}

	metricsHandler, schedulingMetrics := setupMetrics()
	service := appointments.NewService(
		bootstrap.BuildStore(pool, logger),
		scheduling.SystemClock{Location: cfg.Location()},
		logger.Component("appointments"),
	).WithMetrics(schedulingMetrics)

	readiness := map[string]router.Pinger{}
	if pool != nil {
		readiness["postgres"] = pool
	}

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
		service.WithSlotHolds(bootstrap.BuildSlotLocker(redisClient), cfg.SlotHoldTTL)
		readiness["redis"] = redisPinger{redisClient}
		logger.Info("slot holds enabled", "ttl", cfg.SlotHoldTTL)
	}

	pipeline, err := bootstrap.BuildEventPipeline(ctx, cfg, pool, logger)
	if err != nil {
		return err
	}
	if pipeline != nil {
		service.WithEvents(pipeline.Outbox)
		if pipeline.Deliverer != nil {
			go pipeline.Deliverer.Start(ctx)
		}
	}

	var limiter *httpmiddleware.RateLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		go limiter.RunEviction(ctx, 5*time.Minute)
	}

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: router.New(&router.Config{
			Logger:             logger,
			Appointments:       appointments.NewHandler(service, logger.Component("http")),
			StaffAuthSecret:    cfg.StaffJWTSecret,
			MetricsHandler:     metricsHandler,
			CORSAllowedOrigins: cfg.CORSAllowedOrigins,
			RateLimiter:        limiter,
			Readiness:          readiness,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return serve(ctx, srv, logger)
}

// serve runs srv until ctx is cancelled, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server, logger *logging.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
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

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func setupMetrics() (http.Handler, *metrics.SchedulingMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewSchedulingMetrics(reg)
}
