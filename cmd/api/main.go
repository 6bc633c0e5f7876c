package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/markmate/upload-engine/internal/config"
	"github.com/markmate/upload-engine/internal/credentials"
	"github.com/markmate/upload-engine/internal/handler"
	"github.com/markmate/upload-engine/internal/infra/postgresql"
	"github.com/markmate/upload-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/markmate/upload-engine/internal/infra/redis"
	"github.com/markmate/upload-engine/internal/observability"
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

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
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
	publisher := queue.NewRabbitMQPublisher(rabbit)
	defer publisher.Close()

	cipher, err := credentials.NewCipher(cfg.CredentialSecret)
	if err != nil {
		logger.Fatal("cipher initialization failed", zap.Error(err))
	}

	batchRepo := repository.NewGormBatchRepo(db)
	candidateRepo := repository.NewGormCandidateRepo(db)
	credentialRepo := repository.NewGormCredentialRepo(db)

	uploadService, err := service.NewUploadService(batchRepo, candidateRepo, credentialRepo, publisher, logger)
	if err != nil {
		logger.Fatal("upload service initialization failed", zap.Error(err))
	}
	reportService, err := service.NewReportService(batchRepo, candidateRepo, logger)
	if err != nil {
		logger.Fatal("report service initialization failed", zap.Error(err))
	}
	credentialService, err := service.NewCredentialService(credentialRepo, cipher, logger)
	if err != nil {
		logger.Fatal("credential service initialization failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
		BodyLimit:    12 << 20,
	})
	app.Use(metrics.HTTPMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	if err := handler.RegisterUploadRoutes(app, uploadService, reportService); err != nil {
		logger.Fatal("failed to register upload routes", zap.Error(err))
	}
	if err := handler.RegisterCredentialRoutes(app, credentialService); err != nil {
		logger.Fatal("failed to register credential routes", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("api started", zap.Int("port", cfg.APIPort))
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down api")
		return app.Shutdown()
	})

	if err := g.Wait(); err != nil {
		logger.Error("api stopped with error", zap.Error(err))
	}
}
