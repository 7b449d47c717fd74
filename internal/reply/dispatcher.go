package reply

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-support/internal/domain"
	"github.com/spec-kit/marketplace-support/internal/events"
	"github.com/spec-kit/marketplace-support/internal/queue"
	"github.com/spec-kit/marketplace-support/internal/repository"
	"github.com/spec-kit/marketplace-support/internal/wbapi"
)

// JobTypeDispatchReply carries a pending outbound answer to the platform.
const JobTypeDispatchReply = "reply.dispatch"

// retryDelay is the fixed backoff between redelivery attempts.
const retryDelay = time.Minute

// DispatchPayload identifies the ticket whose latest outbound message should
// be delivered.
type DispatchPayload struct {
	TicketID string `json:"ticket_id"`
	Attempt  int    `json:"attempt"`
}

// PlatformReplier is the outbound slice of the platform client.
type PlatformReplier interface {
	ReplyToChat(ctx context.Context, cred domain.Credential, replySign, message string) error
	ReplyToQuestion(ctx context.Context, cred domain.Credential, questionID, text string, state wbapi.QuestionState) error
	ReplyToReview(ctx context.Context, cred domain.Credential, reviewID, text string) error
}

// Dispatcher delivers seller answers to the platform. Closing a ticket arms a
// dispatch job; the job sends the newest outbound message and stamps it with a
// delivery marker so redeliveries abort. A failed delivery re-enqueues itself
// after a fixed backoff until it succeeds; no retry cap is enforced here.
type Dispatcher struct {
	tickets  repository.TicketRepository
	messages repository.TicketMessageRepository
	creds    repository.CredentialRepository
	platform PlatformReplier
	queue    queue.Queue
	logger   *zap.Logger

	// reviewSendDelay spaces review answers; the reviews endpoint throttles
	// at one request per second.
	reviewSendDelay time.Duration
}

// DispatcherDependencies bundles collaborators for the dispatcher.
type DispatcherDependencies struct {
	TicketRepo     repository.TicketRepository
	MessageRepo    repository.TicketMessageRepository
	CredentialRepo repository.CredentialRepository
	Platform       PlatformReplier
	Queue          queue.Queue
	Logger         *zap.Logger
}

// NewDispatcher constructs the dispatcher.
func NewDispatcher(deps DispatcherDependencies) *Dispatcher {
	return &Dispatcher{
		tickets:         deps.TicketRepo,
		messages:        deps.MessageRepo,
		creds:           deps.CredentialRepo,
		platform:        deps.Platform,
		queue:           deps.Queue,
		logger:          deps.Logger,
		reviewSendDelay: time.Second,
	}
}

// Subscribe arms dispatch on every ticket that transitions to Closed.
func (d *Dispatcher) Subscribe(bus events.Dispatcher) {
	bus.Subscribe(events.EventTicketStatusChanged, func(ctx context.Context, event events.Event) error {
		payload, ok := event.Payload.(events.TicketStatusChangedPayload)
		if !ok || payload.NewStatus != domain.TicketStatusClosed {
			return nil
		}
		return d.enqueue(ctx, event.TicketID, 0, 0)
	})
}

// HandleDispatchJob delivers the pending answer of one ticket. A delivery
// failure re-enqueues the job after the backoff; the message stays armed until
// the platform accepts it.
func (d *Dispatcher) HandleDispatchJob(ctx context.Context, job queue.Job) error {
	var payload DispatchPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("dispatch job payload: %w", err)
	}

	if err := d.deliver(ctx, payload.TicketID); err != nil {
		d.logger.Warn("reply delivery failed, scheduling retry",
			zap.String("ticket", payload.TicketID),
			zap.Int("attempt", payload.Attempt),
			zap.Error(err))
		return d.enqueue(ctx, payload.TicketID, payload.Attempt+1, retryDelay)
	}
	return nil
}

func (d *Dispatcher) enqueue(ctx context.Context, ticketID string, attempt int, delay time.Duration) error {
	ticket, err := d.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return err
	}
	job, err := queue.NewJob(JobTypeDispatchReply, DispatchPayload{TicketID: ticketID, Attempt: attempt})
	if err != nil {
		return err
	}
	return d.queue.Enqueue(ctx, job, delay, transportFor(ticket.Kind))
}

func (d *Dispatcher) deliver(ctx context.Context, ticketID string) error {
	ticket, err := d.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return err
	}
	msgs, err := d.messages.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}

	last := msgs[len(msgs)-1]
	if ticket.Kind == domain.FeedKindQuestion && ticket.Status == domain.TicketStatusClosed &&
		last.Direction == domain.DirectionIn && last.ExternalID != nil {
		// closed without a seller answer; decline the question so it leaves
		// the unanswered feed
		cred, err := d.creds.GetByID(ctx, ticket.CredentialID)
		if err != nil {
			return err
		}
		if err := d.platform.ReplyToQuestion(ctx, *cred, ticket.ExternalTicketID, "", wbapi.QuestionStateRejected); err != nil {
			return err
		}
		d.logger.Info("question declined", zap.String("ticket", ticket.ID))
		return nil
	}
	if last.Direction != domain.DirectionOut {
		// customer answered after the close; nothing to send
		return nil
	}
	if last.ExternalID != nil {
		// already delivered
		return nil
	}

	cred, err := d.creds.GetByID(ctx, ticket.CredentialID)
	if err != nil {
		return err
	}

	switch ticket.Kind {
	case domain.FeedKindChat:
		sign := replySign(msgs)
		if sign == "" {
			// nothing to quote, nothing to reply to
			d.logger.Debug("chat ticket has no reply signature, skipping",
				zap.String("ticket", ticket.ID))
			return nil
		}
		err = d.platform.ReplyToChat(ctx, *cred, sign, last.Body)
	case domain.FeedKindQuestion:
		err = d.platform.ReplyToQuestion(ctx, *cred, ticket.ExternalTicketID, last.Body, wbapi.QuestionStateAnswered)
	case domain.FeedKindReview:
		time.Sleep(d.reviewSendDelay)
		err = d.platform.ReplyToReview(ctx, *cred, ticket.ExternalTicketID, last.Body)
	default:
		return fmt.Errorf("unknown ticket kind %q", ticket.Kind)
	}
	if err != nil {
		return err
	}

	if err := d.messages.MarkDelivered(ctx, last.ID, "out:"+last.ID); err != nil {
		d.logger.Error("recording delivery marker failed",
			zap.String("ticket", ticket.ID),
			zap.String("message", last.ID),
			zap.Error(err))
	}
	d.logger.Info("reply delivered",
		zap.String("ticket", ticket.ID),
		zap.String("kind", string(ticket.Kind)))
	return nil
}

// replySign is the newest inbound delivery anchor of the thread; chat answers
// must quote it.
func replySign(msgs []domain.TicketMessage) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Direction == domain.DirectionIn && msgs[i].ExternalID != nil {
			return *msgs[i].ExternalID
		}
	}
	return ""
}

func transportFor(kind domain.FeedKind) string {
	// question answers are bulky and least urgent; keep them off the main lane
	if kind == domain.FeedKindQuestion {
		return queue.TransportLow
	}
	return queue.TransportDefault
}
