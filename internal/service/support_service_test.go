package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-support/internal/domain"
	"github.com/spec-kit/marketplace-support/internal/events"
	"github.com/spec-kit/marketplace-support/internal/repository"
)

// memStore backs both ticket and message repositories for tests.
type memStore struct {
	tickets map[string]*domain.Ticket
	msgs    map[string][]domain.TicketMessage
	nextID  int

	failAppend bool
}

func newMemStore() *memStore {
	return &memStore{
		tickets: make(map[string]*domain.Ticket),
		msgs:    make(map[string][]domain.TicketMessage),
	}
}

func (s *memStore) Create(_ context.Context, ticket *domain.Ticket) error {
	s.nextID++
	ticket.ID = fmt.Sprintf("t-%d", s.nextID)
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	copied := *ticket
	s.tickets[ticket.ID] = &copied
	return nil
}

func (s *memStore) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	ticket, ok := s.tickets[id]
	if !ok {
		return nil, fmt.Errorf("ticket %s not found", id)
	}
	copied := *ticket
	return &copied, nil
}

func (s *memStore) GetByExternalTicketID(_ context.Context, kind domain.FeedKind, externalTicketID string) (*domain.Ticket, error) {
	for _, ticket := range s.tickets {
		if ticket.Kind == kind && ticket.ExternalTicketID == externalTicketID {
			copied := *ticket
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *memStore) UpdateStatus(_ context.Context, id string, status domain.TicketStatus) error {
	ticket, ok := s.tickets[id]
	if !ok {
		return fmt.Errorf("ticket %s not found", id)
	}
	ticket.Status = status
	return nil
}

func (s *memStore) ExistsByExternalEventID(_ context.Context, kind domain.FeedKind, externalEventID string) (bool, error) {
	for ticketID, msgs := range s.msgs {
		ticket, ok := s.tickets[ticketID]
		if !ok || ticket.Kind != kind {
			continue
		}
		for _, msg := range msgs {
			if msg.ExternalID != nil && *msg.ExternalID == externalEventID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *memStore) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for _, ticket := range s.tickets {
		if filter.Kind != nil && ticket.Kind != *filter.Kind {
			continue
		}
		result = append(result, *ticket)
	}
	return result, nil
}

func (s *memStore) Append(_ context.Context, msg *domain.TicketMessage) error {
	if s.failAppend {
		return fmt.Errorf("append rejected")
	}
	s.nextID++
	msgs := s.msgs[msg.TicketID]
	msg.ID = fmt.Sprintf("m-%d", s.nextID)
	msg.Seq = len(msgs) + 1
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	s.msgs[msg.TicketID] = append(msgs, *msg)
	return nil
}

func (s *memStore) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketMessage, error) {
	return append([]domain.TicketMessage(nil), s.msgs[ticketID]...), nil
}

func (s *memStore) MarkDelivered(_ context.Context, messageID, externalID string) error {
	for ticketID, msgs := range s.msgs {
		for i := range msgs {
			if msgs[i].ID == messageID {
				s.msgs[ticketID][i].ExternalID = &externalID
				return nil
			}
		}
	}
	return fmt.Errorf("message %s not found", messageID)
}

func newTestService(store *memStore) (*SupportService, events.Dispatcher) {
	bus := events.NewInMemoryDispatcher()
	return NewSupportService(SupportDependencies{
		TicketRepo:  store,
		MessageRepo: store,
		Dispatcher:  bus,
		Logger:      zap.NewNop(),
	}), bus
}

func chatUpdate(eventID, chatID, body string) domain.TicketUpdate {
	return domain.TicketUpdate{
		ExternalEventID:  eventID,
		ExternalTicketID: chatID,
		Kind:             domain.FeedKindChat,
		AuthorType:       domain.AuthorCustomer,
		AuthorName:       "Anna",
		BodyHTML:         body,
		CreatedAt:        time.Now(),
		TitleHint:        "Where is my parcel?",
	}
}

func TestApplyUpdateCreatesTicketWithFirstMessage(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)

	ticket, err := svc.ApplyUpdate(context.Background(), "p1", "c1", chatUpdate("ev-1", "chat-1", "<p>hello</p>"))
	if err != nil {
		t.Fatalf("ApplyUpdate: %v", err)
	}
	if ticket.Status != domain.TicketStatusOpen {
		t.Errorf("status = %s, want OPEN", ticket.Status)
	}
	if ticket.Title != "Where is my parcel?" {
		t.Errorf("title = %q", ticket.Title)
	}

	msgs, _ := store.ListByTicket(context.Background(), ticket.ID)
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if msgs[0].Direction != domain.DirectionIn {
		t.Errorf("direction = %s, want IN", msgs[0].Direction)
	}
	if msgs[0].ExternalID == nil || *msgs[0].ExternalID != "ev-1" {
		t.Errorf("external id = %v, want ev-1", msgs[0].ExternalID)
	}
}

func TestApplyUpdateIsIdempotentOnEventID(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)
	ctx := context.Background()

	ticket, err := svc.ApplyUpdate(ctx, "p1", "c1", chatUpdate("ev-1", "chat-1", "<p>hello</p>"))
	if err != nil {
		t.Fatalf("first ApplyUpdate: %v", err)
	}
	if _, err := svc.ApplyUpdate(ctx, "p1", "c1", chatUpdate("ev-1", "chat-1", "<p>hello</p>")); !errors.Is(err, domain.ErrEventAlreadyApplied) {
		t.Fatalf("second ApplyUpdate err = %v, want ErrEventAlreadyApplied", err)
	}

	msgs, _ := store.ListByTicket(ctx, ticket.ID)
	if len(msgs) != 1 {
		t.Errorf("got %d messages after replay, want 1", len(msgs))
	}
}

func TestApplyUpdateEventIDsAreScopedPerKind(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)
	ctx := context.Background()

	if _, err := svc.ApplyUpdate(ctx, "p1", "c1", chatUpdate("shared-id", "chat-1", "<p>hello</p>")); err != nil {
		t.Fatalf("chat ApplyUpdate: %v", err)
	}

	// a question reusing the same external id is a distinct event
	question := domain.TicketUpdate{
		ExternalEventID:  "shared-id",
		ExternalTicketID: "shared-id",
		Kind:             domain.FeedKindQuestion,
		AuthorType:       domain.AuthorCustomer,
		AuthorName:       "Customer",
		BodyHTML:         "<p>Does it run small?</p>",
		CreatedAt:        time.Now(),
		TitleHint:        "Sizing",
	}
	ticket, err := svc.ApplyUpdate(ctx, "p1", "c1", question)
	if err != nil {
		t.Fatalf("question ApplyUpdate: %v", err)
	}
	if ticket == nil || ticket.Kind != domain.FeedKindQuestion {
		t.Fatalf("question must land on its own ticket, got %+v", ticket)
	}
	msgs, _ := store.ListByTicket(ctx, ticket.ID)
	if len(msgs) != 1 {
		t.Errorf("got %d question messages, want 1", len(msgs))
	}
}

func TestApplyUpdateReopensClosedTicketAndKeepsTitle(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)
	ctx := context.Background()

	ticket, err := svc.ApplyUpdate(ctx, "p1", "c1", chatUpdate("ev-1", "chat-1", "<p>hello</p>"))
	if err != nil {
		t.Fatalf("ApplyUpdate: %v", err)
	}
	if err := store.UpdateStatus(ctx, ticket.ID, domain.TicketStatusClosed); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	followUp := chatUpdate("ev-2", "chat-1", "<p>still waiting</p>")
	followUp.TitleHint = "A different subject"
	reopened, err := svc.ApplyUpdate(ctx, "p1", "c1", followUp)
	if err != nil {
		t.Fatalf("ApplyUpdate follow-up: %v", err)
	}

	if reopened.ID != ticket.ID {
		t.Fatalf("follow-up landed on ticket %s, want %s", reopened.ID, ticket.ID)
	}
	stored, _ := store.GetByID(ctx, ticket.ID)
	if stored.Status != domain.TicketStatusOpen {
		t.Errorf("status = %s, want OPEN after follow-up", stored.Status)
	}
	if stored.Title != "Where is my parcel?" {
		t.Errorf("title changed on append: %q", stored.Title)
	}
	msgs, _ := store.ListByTicket(ctx, ticket.ID)
	if len(msgs) != 2 {
		t.Errorf("got %d messages, want 2", len(msgs))
	}
}

func TestApplyUpdateSellerEventsStoreOutbound(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)

	update := chatUpdate("ev-1", "chat-1", "<p>we shipped it</p>")
	update.AuthorType = domain.AuthorSeller
	ticket, err := svc.ApplyUpdate(context.Background(), "p1", "c1", update)
	if err != nil {
		t.Fatalf("ApplyUpdate: %v", err)
	}

	msgs, _ := store.ListByTicket(context.Background(), ticket.ID)
	if msgs[0].Direction != domain.DirectionOut {
		t.Errorf("direction = %s, want OUT for seller event", msgs[0].Direction)
	}
}

func TestReplyClosesTicketAndEmitsStatusChange(t *testing.T) {
	store := newMemStore()
	svc, bus := newTestService(store)
	ctx := context.Background()

	var closedTickets []string
	bus.Subscribe(events.EventTicketStatusChanged, func(_ context.Context, event events.Event) error {
		payload, ok := event.Payload.(events.TicketStatusChangedPayload)
		if ok && payload.NewStatus == domain.TicketStatusClosed {
			closedTickets = append(closedTickets, event.TicketID)
		}
		return nil
	})

	ticket, err := svc.ApplyUpdate(ctx, "p1", "c1", chatUpdate("ev-1", "chat-1", "<p>hello</p>"))
	if err != nil {
		t.Fatalf("ApplyUpdate: %v", err)
	}

	msg, err := svc.Reply(ctx, ticket.ID, "support", "  We are on it.  ")
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if msg.Direction != domain.DirectionOut {
		t.Errorf("direction = %s, want OUT", msg.Direction)
	}
	if msg.Body != "We are on it." {
		t.Errorf("body = %q, want trimmed", msg.Body)
	}
	if msg.ExternalID != nil {
		t.Errorf("fresh reply must not carry an external id")
	}

	stored, _ := store.GetByID(ctx, ticket.ID)
	if stored.Status != domain.TicketStatusClosed {
		t.Errorf("status = %s, want CLOSED", stored.Status)
	}
	if len(closedTickets) != 1 || closedTickets[0] != ticket.ID {
		t.Errorf("close events = %v, want [%s]", closedTickets, ticket.ID)
	}
}

func TestReplyRejectsEmptyBody(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)

	if _, err := svc.Reply(context.Background(), "t-1", "support", "   "); err == nil {
		t.Fatal("expected validation error for empty body")
	}
}

func TestTicketTitleFallsBackAndTruncates(t *testing.T) {
	if got := ticketTitle(domain.TicketUpdate{TitleHint: "  "}); got != "No subject" {
		t.Errorf("empty hint title = %q", got)
	}
	long := strings.Repeat("я", 300)
	got := ticketTitle(domain.TicketUpdate{TitleHint: long})
	if len([]rune(got)) != 255 {
		t.Errorf("truncated title has %d runes, want 255", len([]rune(got)))
	}
}
