package main

import (
	"context"
	"log"
	"os"

	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-support/internal/config"
	"github.com/spec-kit/marketplace-support/internal/dedup"
	"github.com/spec-kit/marketplace-support/internal/events"
	"github.com/spec-kit/marketplace-support/internal/ingest"
	"github.com/spec-kit/marketplace-support/internal/observability"
	"github.com/spec-kit/marketplace-support/internal/persistence"
	"github.com/spec-kit/marketplace-support/internal/queue"
	"github.com/spec-kit/marketplace-support/internal/repository"
	"github.com/spec-kit/marketplace-support/internal/service"
	"github.com/spec-kit/marketplace-support/internal/wbapi"
)

// options are the command-line flags of the backfill run.
type options struct {
	Profile     string `short:"p" long:"profile" description:"profile id to ingest; all profiles with active credentials when omitted"`
	FullHistory bool   `short:"f" long:"full" description:"ignore the incremental window and walk the feeds from the beginning"`
	SkipImages  bool   `long:"skip-images" description:"do not download and inline attachment images"`
}

func main() {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()

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

	supportService := service.NewSupportService(service.SupportDependencies{
		TicketRepo:  ticketRepo,
		MessageRepo: messageRepo,
		Dispatcher:  events.NewInMemoryDispatcher(),
		Logger:      logger,
	})

	var resolver ingest.AttachmentResolver = ingest.NewHTTPAttachmentResolver()
	if opts.SkipImages {
		resolver = ingest.NoopAttachmentResolver{}
	}

	ingestor := ingest.NewIngestor(ingest.IngestorDependencies{
		CredentialRepo: credRepo,
		Client:         wbapi.NewClient(cfg.Wildberries, false, logger),
		Normalizer:     ingest.NewNormalizer(resolver, logger),
		Dedup:          dedup.NewRedis(redis.Client, cfg.Ingest.DedupTTL()),
		Support:        supportService,
		Queue:          queue.NewRedisQueue(redis.Client),
		Metrics:        observability.NewMetrics(),
		Logger:         logger,
		PollInterval:   cfg.Ingest.PollInterval(),
	})

	profiles := []string{opts.Profile}
	if opts.Profile == "" {
		profiles, err = credRepo.ListProfilesWithActive(ctx)
		if err != nil {
			logger.Fatal("listing profiles failed", zap.Error(err))
		}
	}

	for _, profileID := range profiles {
		logger.Info("backfilling profile",
			zap.String("profile", profileID),
			zap.Bool("full_history", opts.FullHistory))
		if err := ingestor.IngestProfile(ctx, profileID, opts.FullHistory); err != nil {
			logger.Error("backfill failed", zap.String("profile", profileID), zap.Error(err))
		}
	}
	logger.Info("backfill finished", zap.Int("profiles", len(profiles)))
}
