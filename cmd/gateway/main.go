package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/ulms/ulms-gateway/internal/academics"
	"github.com/ulms/ulms-gateway/internal/app"
	"github.com/ulms/ulms-gateway/internal/assistant"
	"github.com/ulms/ulms-gateway/internal/auth"
	"github.com/ulms/ulms-gateway/internal/backend"
	jobmetrics "github.com/ulms/ulms-gateway/internal/jobs"
	"github.com/ulms/ulms-gateway/internal/observability"
	"github.com/ulms/ulms-gateway/internal/platform/cache"
	"github.com/ulms/ulms-gateway/internal/proctoring"
	"github.com/ulms/ulms-gateway/internal/rbac"
	"github.com/ulms/ulms-gateway/jobs"
)

const ingestDispatchers = 4

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing(), logger)
	if err != nil {
		logger.Warn("init tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracing == nil {
			return
		}
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracing shutdown", slog.Any("error", err))
		}
	}()

	registry := backend.NewRegistry(cfg.BackendEndpoints(), backend.WithLogger(logger))
	defer func() {
		if err := registry.Close(); err != nil {
			logger.Warn("backend registry close", slog.Any("error", err))
		}
	}()

	identity := backend.NewIdentityClient(registry, cfg.AuthTimeout)
	users := backend.NewUserClient(registry, cfg.AuthTimeout)

	authMiddleware := auth.Middleware{Service: auth.NewService(identity), Logger: logger}
	authHandler := auth.NewHandler(logger, identity, authMiddleware)

	evaluator := rbac.NewEvaluator(users)
	gate := rbac.Gate{Permissions: evaluator, Logger: logger}

	metrics := observability.NewMetrics()
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())

	var outcomes jobs.OutcomeRecorder
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, detection outcomes will not be kept", slog.Any("error", err))
	} else {
		outcomes = proctoring.NewOutcomeStore(redisClient)
		defer closeRedis(redisClient, logger)
	}

	group, groupCtx := errgroup.WithContext(ctx)

	var (
		queue      jobs.Enqueuer
		queueStats jobs.StatsSource
	)
	switch cfg.QueueDriver {
	case app.QueueDriverMemory:
		detector := proctoring.NewHTTPDetector(cfg.ProctoringAPIURL, cfg.ProctoringAuthToken)
		job := jobs.NewDetectCheatingJob(detector, outcomes, logger, jobMetrics)
		memQueue := jobs.NewMemoryQueue(asynq.HandlerFunc(job.Handle), jobs.DefaultRetryPolicy, jobs.WithMemoryLogger(logger))
		group.Go(func() error {
			return ignoreCanceled(memQueue.Run(groupCtx, cfg.QueueConcurrency))
		})
		queue, queueStats = memQueue, memQueue
		logger.Info("proctoring queue running in process", slog.Int("concurrency", cfg.QueueConcurrency))
	default:
		client := jobs.NewClient(cfg.RedisOpts(), jobs.DefaultRetryPolicy)
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warn("queue client close", slog.Any("error", err))
			}
		}()
		inspector := jobs.NewInspector(cfg.RedisOpts())
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		queue, queueStats = client, inspector
	}

	reference := proctoring.LoadReferenceImage(cfg.ProctoringReferenceImage, logger)
	ingest := proctoring.NewIngest(queue, reference, logger,
		proctoring.WithBuffer(cfg.IngestBuffer),
		proctoring.WithIngestMetrics(jobMetrics),
	)
	group.Go(func() error {
		ingest.Run(groupCtx, ingestDispatchers)
		return nil
	})

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Metrics:            metrics,
		AuthHandler:        authHandler,
		AuthMiddleware:     authMiddleware,
		PermissionsHandler: rbac.NewPermissionsHandler(evaluator, gate),
		CoursesHandler:     academics.NewCoursesHandler(registry, gate, logger),
		AssignmentsHandler: academics.NewAssignmentsHandler(registry, gate, logger),
		ExamsHandler:       academics.NewExamsHandler(registry, gate, logger),
		ProctorHandler:     proctoring.NewHandler(backend.NewProctorClient(registry), logger),
		ProctoringSocket:   proctoring.NewSocketHandler(ingest, logger),
		AssistantHandler:   assistant.NewHandler(backend.NewAssistantClient(registry), logger),
		JobHandler:         jobs.NewHandler(queueStats, logger),
	})

	server := &http.Server{
		Addr:        cfg.AppAddr,
		Handler:     router,
		ReadTimeout: cfg.AppReadTimeout,
		// Streaming handlers clear their own write deadline.
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown, closing open streams", slog.Any("error", err))
			return server.Close()
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		logger.Error("gateway stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func closeRedis(client *redis.Client, logger *slog.Logger) {
	if err := client.Close(); err != nil {
		logger.Warn("redis close", slog.Any("error", err))
	}
}
