package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-support/internal/ingest"
	"github.com/spec-kit/marketplace-support/internal/queue"
	"github.com/spec-kit/marketplace-support/internal/repository"
)

// Scheduler periodically sweeps all profiles with active credentials and
// enqueues one ingestion job per profile. Profiles are spaced out within a
// sweep so the platform sees a steady trickle instead of a burst.
type Scheduler struct {
	creds    repository.CredentialRepository
	queue    queue.Queue
	logger   *zap.Logger
	interval time.Duration
	spacing  time.Duration
}

// New constructs a scheduler.
func New(creds repository.CredentialRepository, q queue.Queue, logger *zap.Logger, interval, spacing time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Scheduler{
		creds:    creds,
		queue:    q,
		logger:   logger,
		interval: interval,
		spacing:  spacing,
	}
}

// Run sweeps immediately and then on every tick until the context is
// cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	profiles, err := s.creds.ListProfilesWithActive(ctx)
	if err != nil {
		s.logger.Error("listing profiles failed", zap.Error(err))
		return
	}

	for i, profileID := range profiles {
		job, err := queue.NewJob(ingest.JobTypeIngestProfile, ingest.IngestProfilePayload{
			ProfileID: profileID,
		})
		if err != nil {
			s.logger.Error("building ingest job failed",
				zap.String("profile", profileID), zap.Error(err))
			continue
		}
		delay := time.Duration(i) * s.spacing
		if err := s.queue.Enqueue(ctx, job, delay, queue.TransportDefault); err != nil {
			s.logger.Error("enqueueing ingest job failed",
				zap.String("profile", profileID), zap.Error(err))
		}
	}
	s.logger.Info("ingestion sweep scheduled", zap.Int("profiles", len(profiles)))
}
