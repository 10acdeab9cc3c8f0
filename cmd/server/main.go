package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/edquest/proctor-backend/internal/clock"
	"github.com/edquest/proctor-backend/internal/config"
	"github.com/edquest/proctor-backend/internal/database"
	"github.com/edquest/proctor-backend/internal/handler"
	"github.com/edquest/proctor-backend/internal/logger"
	"github.com/edquest/proctor-backend/internal/metrics"
	"github.com/edquest/proctor-backend/internal/middleware"
	"github.com/edquest/proctor-backend/internal/proctor"
	"github.com/edquest/proctor-backend/internal/realtime"
	"github.com/edquest/proctor-backend/internal/repository"
	"github.com/edquest/proctor-backend/internal/router"
	"github.com/edquest/proctor-backend/internal/service"
	"github.com/edquest/proctor-backend/internal/validator"
	"github.com/edquest/proctor-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting proctoring backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	m := metrics.New(prometheus.DefaultRegisterer)
	publisher := realtime.NewPublisher(rdb, log)

	// ─── Initialize Repositories ───────────────────────────────────────
	userRepo := repository.NewUserRepository(pool)
	testRepo := repository.NewTestRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	activityRepo := repository.NewActivityRepository(pool)
	flagRepo := repository.NewFlagRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, userRepo)
	testService := service.NewTestService(testRepo)
	activityService := service.NewActivityLogService(activityRepo, publisher, log)
	submissionService := service.NewSubmissionService(attemptRepo, publisher, m, log, cfg.FlushTimeout)
	violationService := service.NewViolationService(activityRepo, testRepo)
	monitorService := service.NewMonitorService(testRepo, activityRepo, attemptRepo, flagRepo)

	sessionDeps := proctor.Deps{
		Clock:           clock.Real{},
		Sink:            activityService,
		Submitter:       submissionService,
		Flags:           worker.NewFlagQueue(rdb),
		Publisher:       publisher,
		Metrics:         m,
		Log:             logger.Component(log, "proctor"),
		NotificationTTL: cfg.NotificationTTL,
		FrameQueueSize:  cfg.FrameQueueSize,
	}

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Activity: handler.NewActivityHandler(activityService, cfg.MaxActivityLogsBytes, log),
		Auth:     handler.NewAuthHandler(authService, log),
		Test:     handler.NewTestHandler(testService, log),
		Admin:    handler.NewAdminHandler(activityService, violationService, monitorService, log),
		Monitor:  handler.NewMonitorHandler(publisher, monitorService, log),
		WS:       handler.NewWSHandler(testService, sessionDeps, log, cfg.AllowedOrigins),
	}

	ingestLimit := middleware.NewRateLimiter(cfg.IngestRatePerMinute, time.Minute)
	defer ingestLimit.Stop()

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(handlers, router.Deps{
		Auth:        authService,
		Redis:       rdb,
		Gatherer:    prometheus.DefaultGatherer,
		IngestLimit: ingestLimit,
		Log:         log,
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Run Server and Workers ────────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		worker.NewFlagWorker(pool, rdb, publisher, logger.Component(log, "flag_worker")).Start(workerCtx)
		return nil
	})
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")
	case <-gctx.Done():
		log.Error().Msg("Server stopped unexpectedly, shutting down")
	}

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the flag worker; it drains its buffer before returning.
	workerCancel()
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server error")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
