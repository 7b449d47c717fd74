package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-support/internal/dedup"
	"github.com/spec-kit/marketplace-support/internal/domain"
	"github.com/spec-kit/marketplace-support/internal/observability"
	"github.com/spec-kit/marketplace-support/internal/queue"
	"github.com/spec-kit/marketplace-support/internal/repository"
	"github.com/spec-kit/marketplace-support/internal/wbapi"
)

// Job types handled by the ingestion side of the worker.
const (
	JobTypeIngestProfile = "ingest.profile"
	JobTypeAutoReply     = "review.auto_reply"
)

// IngestProfilePayload asks for one ingestion pass over a profile.
type IngestProfilePayload struct {
	ProfileID   string `json:"profile_id"`
	FullHistory bool   `json:"full_history"`
}

// AutoReplyPayload schedules an automatic answer to a freshly ingested review.
type AutoReplyPayload struct {
	TicketID     string `json:"ticket_id"`
	ProfileID    string `json:"profile_id"`
	CredentialID string `json:"credential_id"`
	ReviewID     string `json:"review_id"`
	CustomerName string `json:"customer_name"`
	Rating       int    `json:"rating"`
}

// Deduplication namespaces, one per feed kind. External event ids are only
// unique within their feed.
const (
	nsChat     = "wb:chat"
	nsQuestion = "wb:question"
	nsReview   = "wb:review"
)

// TicketUpserter is the slice of the support service the ingestor needs.
type TicketUpserter interface {
	ApplyUpdate(ctx context.Context, profileID, credentialID string, update domain.TicketUpdate) (*domain.Ticket, error)
}

// Ingestor pulls the three seller feeds for a profile and folds every entry
// into ticket state. Failures are contained per feed and per credential: one
// broken token or one failing endpoint never blocks the rest of the sweep.
type Ingestor struct {
	creds   repository.CredentialRepository
	client  *wbapi.Client
	norm    *Normalizer
	dedup   dedup.Deduplicator
	support TicketUpserter
	queue   queue.Queue
	metrics *observability.Metrics
	logger  *zap.Logger

	pollInterval time.Duration
}

// IngestorDependencies bundles collaborators for the ingestor.
type IngestorDependencies struct {
	CredentialRepo repository.CredentialRepository
	Client         *wbapi.Client
	Normalizer     *Normalizer
	Dedup          dedup.Deduplicator
	Support        TicketUpserter
	Queue          queue.Queue
	Metrics        *observability.Metrics
	Logger         *zap.Logger
	PollInterval   time.Duration
}

// NewIngestor constructs the ingestor.
func NewIngestor(deps IngestorDependencies) *Ingestor {
	poll := deps.PollInterval
	if poll <= 0 {
		poll = 5 * time.Minute
	}
	return &Ingestor{
		creds:        deps.CredentialRepo,
		client:       deps.Client,
		norm:         deps.Normalizer,
		dedup:        deps.Dedup,
		support:      deps.Support,
		queue:        deps.Queue,
		metrics:      deps.Metrics,
		logger:       deps.Logger,
		pollInterval: poll,
	}
}

// HandleIngestJob adapts IngestProfile to the worker contract.
func (ing *Ingestor) HandleIngestJob(ctx context.Context, job queue.Job) error {
	var payload IngestProfilePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("ingest job payload: %w", err)
	}
	return ing.IngestProfile(ctx, payload.ProfileID, payload.FullHistory)
}

// IngestProfile runs one pass over all active credentials of a profile. A
// feed that fails mid-way keeps whatever it already ingested; the error is
// logged and the pass moves on.
func (ing *Ingestor) IngestProfile(ctx context.Context, profileID string, fullHistory bool) error {
	creds, err := ing.creds.ActiveByProfile(ctx, profileID)
	if err != nil {
		return fmt.Errorf("loading credentials for profile %s: %w", profileID, err)
	}
	if len(creds) == 0 {
		ing.logger.Info("no active credentials, skipping profile", zap.String("profile", profileID))
		return nil
	}

	for _, cred := range creds {
		for _, run := range []struct {
			feed string
			fn   func(context.Context, domain.Credential, bool) error
		}{
			{"chat", ing.ingestChats},
			{"question", ing.ingestQuestions},
			{"review", ing.ingestReviews},
		} {
			if err := run.fn(ctx, cred, fullHistory); err != nil {
				ing.logger.Error("feed ingestion failed",
					zap.String("profile", profileID),
					zap.String("credential", cred.ID),
					zap.String("feed", run.feed),
					zap.Error(err))
				ing.metrics.RecordError("ingest", run.feed, "FEED_FAILED")
			}
		}
	}
	return nil
}

func (ing *Ingestor) ingestChats(ctx context.Context, cred domain.Credential, fullHistory bool) error {
	var cursor int64
	if !fullHistory {
		cursor = ing.windowStart().UnixMilli()
	}

	feed := ing.client.ChatEvents(cred, cursor)
	for {
		event, ok := feed.Next(ctx)
		if !ok {
			break
		}
		ing.apply(ctx, nsChat, cred, ing.norm.FromChatEvent(ctx, event))
	}
	return feed.Err()
}

func (ing *Ingestor) ingestQuestions(ctx context.Context, cred domain.Credential, fullHistory bool) error {
	var from int64
	if !fullHistory {
		from = ing.windowStart().Unix()
	}

	feed := ing.client.Questions(cred, from)
	for {
		question, ok := feed.Next(ctx)
		if !ok {
			break
		}
		if ing.apply(ctx, nsQuestion, cred, ing.norm.FromQuestion(question)) == nil {
			continue
		}
		// acknowledged questions stop counting as unread in the seller console
		if err := ing.client.MarkQuestionViewed(ctx, cred, question.ID); err != nil {
			ing.logger.Warn("marking question viewed failed",
				zap.String("question", question.ID), zap.Error(err))
		}
	}
	return feed.Err()
}

func (ing *Ingestor) ingestReviews(ctx context.Context, cred domain.Credential, fullHistory bool) error {
	var from int64
	if !fullHistory {
		from = ing.windowStart().Unix()
	}

	feed := ing.client.Reviews(cred, from)
	for {
		review, ok := feed.Next(ctx)
		if !ok {
			break
		}
		update := ing.norm.FromReview(ctx, review)
		ticket := ing.apply(ctx, nsReview, cred, update)
		if ticket == nil {
			continue
		}
		ing.maybeScheduleAutoReply(ctx, cred, ticket, review, update)
	}
	return feed.Err()
}

// apply folds one normalized update into ticket state and returns the ticket
// it landed on. Duplicates and failures both return nil, but a failure
// additionally leaves the dedup entry unset so the next pass retries.
func (ing *Ingestor) apply(ctx context.Context, namespace string, cred domain.Credential, update domain.TicketUpdate) *domain.Ticket {
	if update.BodyHTML == "" {
		return nil
	}

	dup, err := ing.dedup.IsExecuted(ctx, namespace, update.ExternalEventID)
	if err != nil {
		// fall through; the durable event-id check catches real duplicates
		ing.logger.Warn("dedup lookup failed", zap.Error(err))
	}
	if dup {
		return nil
	}

	ticket, err := ing.support.ApplyUpdate(ctx, cred.ProfileID, cred.ID, update)
	if errors.Is(err, domain.ErrEventAlreadyApplied) {
		// dedup entry expired but the event is stored; refresh the entry and
		// skip without re-triggering downstream side effects
		if err := ing.dedup.Save(ctx, namespace, update.ExternalEventID); err != nil {
			ing.logger.Warn("dedup save failed", zap.Error(err))
		}
		return nil
	}
	if err != nil {
		ing.logger.Error("applying update failed",
			zap.String("credential", cred.ID),
			zap.String("kind", string(update.Kind)),
			zap.String("event", update.ExternalEventID),
			zap.Error(err))
		return nil
	}

	if err := ing.dedup.Save(ctx, namespace, update.ExternalEventID); err != nil {
		ing.logger.Warn("dedup save failed", zap.Error(err))
	}
	if ing.metrics != nil {
		ing.metrics.RecordIngested(string(update.Kind))
	}
	ing.logger.Debug("update ingested",
		zap.String("ticket", ticket.ID),
		zap.String("kind", string(update.Kind)),
		zap.String("event", update.ExternalEventID))
	return ticket
}

// maybeScheduleAutoReply queues an automatic answer for reviews that need no
// human attention: top ratings and reviews carrying no text at all. The delay
// of one poll interval leaves the seller a window to answer manually first.
func (ing *Ingestor) maybeScheduleAutoReply(ctx context.Context, cred domain.Credential, ticket *domain.Ticket, review wbapi.Review, update domain.TicketUpdate) {
	if update.Rating != 5 && update.HasText {
		return
	}

	job, err := queue.NewJob(JobTypeAutoReply, AutoReplyPayload{
		TicketID:     ticket.ID,
		ProfileID:    cred.ProfileID,
		CredentialID: cred.ID,
		ReviewID:     review.ID,
		CustomerName: review.UserName,
		Rating:       update.Rating,
	})
	if err != nil {
		ing.logger.Error("building auto-reply job failed", zap.Error(err))
		return
	}
	if err := ing.queue.Enqueue(ctx, job, ing.pollInterval, queue.TransportDefault); err != nil {
		ing.logger.Error("enqueueing auto-reply failed",
			zap.String("ticket", ticket.ID), zap.Error(err))
	}
}

// windowStart is the lower bound of an incremental pass: one poll interval
// back plus a safety margin covering scheduler jitter.
func (ing *Ingestor) windowStart() time.Time {
	return time.Now().Add(-ing.pollInterval - time.Minute)
}
