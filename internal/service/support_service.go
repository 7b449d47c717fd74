package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-support/internal/domain"
	"github.com/spec-kit/marketplace-support/internal/events"
	"github.com/spec-kit/marketplace-support/internal/repository"
	"github.com/spec-kit/marketplace-support/pkg/util"
)

// SupportService maps normalized external events onto ticket state and owns
// the seller reply path. Every write is idempotent on the external event id.
type SupportService struct {
	tickets    repository.TicketRepository
	messages   repository.TicketMessageRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// SupportDependencies bundles collaborators for the support service.
type SupportDependencies struct {
	TicketRepo  repository.TicketRepository
	MessageRepo repository.TicketMessageRepository
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewSupportService constructs the service.
func NewSupportService(deps SupportDependencies) *SupportService {
	return &SupportService{
		tickets:    deps.TicketRepo,
		messages:   deps.MessageRepo,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// ApplyUpdate upserts a ticket from one normalized external event. It creates
// the ticket on first sight of the conversation key, otherwise appends to the
// existing thread; either way the ticket is forced back to Open. The title is
// written once at creation and never touched on appends. Re-applying an
// already stored event id returns domain.ErrEventAlreadyApplied so callers can
// tell a replay from a fresh ingestion.
func (s *SupportService) ApplyUpdate(ctx context.Context, profileID, credentialID string, update domain.TicketUpdate) (*domain.Ticket, error) {
	exists, err := s.tickets.ExistsByExternalEventID(ctx, update.Kind, update.ExternalEventID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrEventAlreadyApplied
	}

	ticket, err := s.tickets.GetByExternalTicketID(ctx, update.Kind, update.ExternalTicketID)
	if err != nil {
		return nil, err
	}

	if ticket == nil {
		ticket = &domain.Ticket{
			ProfileID:        profileID,
			Kind:             update.Kind,
			ExternalTicketID: update.ExternalTicketID,
			Title:            ticketTitle(update),
			CredentialID:     credentialID,
			Status:           domain.TicketStatusOpen,
		}
		if err := s.tickets.Create(ctx, ticket); err != nil {
			return nil, err
		}
		s.publish(ctx, events.Event{
			Type:     events.EventTicketCreated,
			TicketID: ticket.ID,
			Payload: events.TicketCreatedPayload{
				ProfileID:        ticket.ProfileID,
				Kind:             ticket.Kind,
				ExternalTicketID: ticket.ExternalTicketID,
				Title:            ticket.Title,
			},
		})
	} else if ticket.Status != domain.TicketStatusOpen {
		// every new external message re-opens the conversation
		if err := s.tickets.UpdateStatus(ctx, ticket.ID, domain.TicketStatusOpen); err != nil {
			return nil, err
		}
		s.publish(ctx, events.Event{
			Type:     events.EventTicketStatusChanged,
			TicketID: ticket.ID,
			Payload: events.TicketStatusChangedPayload{
				OldStatus: ticket.Status,
				NewStatus: domain.TicketStatusOpen,
			},
		})
		ticket.Status = domain.TicketStatusOpen
	}

	externalID := update.ExternalEventID
	msg := &domain.TicketMessage{
		TicketID:   ticket.ID,
		Direction:  update.Direction(),
		AuthorName: update.AuthorName,
		Body:       update.BodyHTML,
		ExternalID: &externalID,
		CreatedAt:  update.CreatedAt,
	}
	if err := s.messages.Append(ctx, msg); err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{
		Type:     events.EventTicketMessageAdded,
		TicketID: ticket.ID,
		Payload: events.TicketMessageAddedPayload{
			MessageID:  msg.ID,
			Direction:  msg.Direction,
			AuthorName: msg.AuthorName,
			External:   msg.ExternalID,
		},
	})
	return ticket, nil
}

// Reply appends a locally authored outbound message and closes the ticket.
// The message has no external id until the dispatcher delivers it; closing
// the ticket is what arms the outbound dispatch.
func (s *SupportService) Reply(ctx context.Context, ticketID, authorName, body string) (*domain.TicketMessage, error) {
	if strings.TrimSpace(body) == "" {
		return nil, util.NewValidationError("reply body must not be empty", nil)
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	msg := &domain.TicketMessage{
		TicketID:   ticket.ID,
		Direction:  domain.DirectionOut,
		AuthorName: authorName,
		Body:       strings.TrimSpace(body),
		CreatedAt:  time.Now(),
	}
	if err := s.messages.Append(ctx, msg); err != nil {
		return nil, err
	}

	if ticket.Status != domain.TicketStatusClosed {
		if err := s.tickets.UpdateStatus(ctx, ticket.ID, domain.TicketStatusClosed); err != nil {
			return nil, err
		}
		s.publish(ctx, events.Event{
			Type:     events.EventTicketStatusChanged,
			TicketID: ticket.ID,
			Payload: events.TicketStatusChangedPayload{
				OldStatus: ticket.Status,
				NewStatus: domain.TicketStatusClosed,
			},
		})
	}

	s.publish(ctx, events.Event{
		Type:     events.EventTicketMessageAdded,
		TicketID: ticket.ID,
		Payload: events.TicketMessageAddedPayload{
			MessageID:  msg.ID,
			Direction:  msg.Direction,
			AuthorName: msg.AuthorName,
		},
	})
	return msg, nil
}

// GetTicket fetches a ticket with its ordered message thread.
func (s *SupportService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, []domain.TicketMessage, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := s.messages.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, nil, err
	}
	return ticket, msgs, nil
}

// ListTickets returns tickets matching the filter.
func (s *SupportService) ListTickets(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	return s.tickets.ListWithFilter(ctx, filter)
}

func (s *SupportService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func ticketTitle(update domain.TicketUpdate) string {
	title := strings.TrimSpace(update.TitleHint)
	if title == "" {
		title = "No subject"
	}
	if runes := []rune(title); len(runes) > 255 {
		title = string(runes[:255])
	}
	return title
}
