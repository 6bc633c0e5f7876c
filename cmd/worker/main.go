package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/markmate/upload-engine/internal/config"
	"github.com/markmate/upload-engine/internal/credentials"
	"github.com/markmate/upload-engine/internal/handler"
	"github.com/markmate/upload-engine/internal/infra/postgresql"
	infraredis "github.com/markmate/upload-engine/internal/infra/redis"
	"github.com/markmate/upload-engine/internal/observability"
	"github.com/markmate/upload-engine/internal/portal"
	"github.com/markmate/upload-engine/internal/queue"
	"github.com/markmate/upload-engine/internal/repository"
	"github.com/markmate/upload-engine/internal/service"
	"github.com/markmate/upload-engine/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	rabbit, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	consumer := queue.NewRabbitMQConsumer(rabbit, logger)
	defer consumer.Close()

	rateLimiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.SessionOpensPerSec)
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}

	// The lock TTL matches the reclaim threshold: a batch that outlives it is
	// treated as abandoned anyway.
	sessionLock, err := infraredis.NewSessionLock(rdb, time.Duration(cfg.ReclaimAfterMin)*time.Minute)
	if err != nil {
		logger.Fatal("session lock initialization failed", zap.Error(err))
	}

	cipher, err := credentials.NewCipher(cfg.CredentialSecret)
	if err != nil {
		logger.Fatal("cipher initialization failed", zap.Error(err))
	}

	batchRepo := repository.NewGormBatchRepo(db)
	candidateRepo := repository.NewGormCandidateRepo(db)
	credentialRepo := repository.NewGormCredentialRepo(db)

	credentialProvider, err := credentials.NewStoreProvider(credentialRepo, cipher)
	if err != nil {
		logger.Fatal("credential provider initialization failed", zap.Error(err))
	}

	opener, err := portal.NewHTTPOpener(cfg.PortalBaseURL, time.Duration(cfg.SubmitTimeoutSec)*time.Second)
	if err != nil {
		logger.Fatal("portal opener initialization failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()

	executor, err := service.NewBatchExecutor(batchRepo, candidateRepo, credentialProvider, opener, logger)
	if err != nil {
		logger.Fatal("executor initialization failed", zap.Error(err))
	}
	executor.SetMetrics(metrics)

	dispatcher, err := service.NewDispatcher(consumer, executor, rateLimiter, sessionLock, logger)
	if err != nil {
		logger.Fatal("dispatcher initialization failed", zap.Error(err))
	}

	reclaimer, err := service.NewReclaimer(
		batchRepo,
		time.Duration(cfg.ReclaimAfterMin)*time.Minute,
		time.Minute,
		logger,
	)
	if err != nil {
		logger.Fatal("reclaimer initialization failed", zap.Error(err))
	}
	reclaimer.SetMetrics(metrics)

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	handler.RegisterHealthRoutes(app, sqlDB, rdb)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dispatcher.Start(gCtx)
	})
	g.Go(func() error {
		return reclaimer.Start(gCtx)
	})
	g.Go(func() error {
		logger.Info("worker started", zap.Int("port", cfg.APIPort))
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down worker")
		return app.Shutdown()
	})

	if err := g.Wait(); err != nil {
		logger.Error("worker stopped with error", zap.Error(err))
	}
}
