package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/marketplace-support/internal/api/http"
	"github.com/spec-kit/marketplace-support/internal/api/http/handlers"
	"github.com/spec-kit/marketplace-support/internal/auth"
	"github.com/spec-kit/marketplace-support/internal/config"
	"github.com/spec-kit/marketplace-support/internal/dedup"
	"github.com/spec-kit/marketplace-support/internal/events"
	"github.com/spec-kit/marketplace-support/internal/ingest"
	"github.com/spec-kit/marketplace-support/internal/observability"
	"github.com/spec-kit/marketplace-support/internal/persistence"
	"github.com/spec-kit/marketplace-support/internal/queue"
	"github.com/spec-kit/marketplace-support/internal/reply"
	"github.com/spec-kit/marketplace-support/internal/repository"
	"github.com/spec-kit/marketplace-support/internal/scheduler"
	"github.com/spec-kit/marketplace-support/internal/service"
	"github.com/spec-kit/marketplace-support/internal/wbapi"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	messageRepo := repository.NewTicketMessageRepository(pool)
	credRepo := repository.NewCredentialRepository(pool)

	metrics := observability.NewMetrics()
	bus := events.NewInMemoryDispatcher()

	supportService := service.NewSupportService(service.SupportDependencies{
		TicketRepo:  ticketRepo,
		MessageRepo: messageRepo,
		Dispatcher:  bus,
		Logger:      logger,
	})

	client := wbapi.NewClient(cfg.Wildberries, cfg.App.IsProduction(), logger)
	if !cfg.App.IsProduction() {
		logger.Warn("outbound platform mutations disabled outside production")
	}

	redisQueue := queue.NewRedisQueue(redis.Client)
	deduplicator := dedup.NewRedis(redis.Client, cfg.Ingest.DedupTTL())
	normalizer := ingest.NewNormalizer(ingest.NewHTTPAttachmentResolver(), logger)

	ingestor := ingest.NewIngestor(ingest.IngestorDependencies{
		CredentialRepo: credRepo,
		Client:         client,
		Normalizer:     normalizer,
		Dedup:          deduplicator,
		Support:        supportService,
		Queue:          redisQueue,
		Metrics:        metrics,
		Logger:         logger,
		PollInterval:   cfg.Ingest.PollInterval(),
	})
	autoReplier := ingest.NewAutoReplier(ticketRepo, supportService, logger)

	replyDispatcher := reply.NewDispatcher(reply.DispatcherDependencies{
		TicketRepo:     ticketRepo,
		MessageRepo:    messageRepo,
		CredentialRepo: credRepo,
		Platform:       client,
		Queue:          redisQueue,
		Logger:         logger,
	})
	replyDispatcher.Subscribe(bus)

	worker := queue.NewWorker(redisQueue, logger)
	worker.Register(ingest.JobTypeIngestProfile, ingestor.HandleIngestJob)
	worker.Register(ingest.JobTypeAutoReply, autoReplier.HandleAutoReplyJob)
	worker.Register(reply.JobTypeDispatchReply, replyDispatcher.HandleDispatchJob)
	go worker.Run(ctx)

	sched := scheduler.New(credRepo, redisQueue, logger,
		cfg.Ingest.PollInterval(), cfg.Ingest.ProfileSpacing())
	go sched.Run(ctx)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewMiddleware(tokens)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(tokens, cfg.Auth.APIKeyHash),
		Tickets:        handlers.NewTicketsHandler(supportService),
		Ingest:         handlers.NewIngestHandler(redisQueue),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
