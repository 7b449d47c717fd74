package ingest

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-support/internal/domain"
	"github.com/spec-kit/marketplace-support/internal/queue"
	"github.com/spec-kit/marketplace-support/internal/repository"
)

type fakeTicketRepo struct {
	tickets map[string]*domain.Ticket
}

func (f *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	f.tickets[ticket.ID] = ticket
	return nil
}

func (f *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	ticket, ok := f.tickets[id]
	if !ok {
		return nil, fmt.Errorf("ticket %s not found", id)
	}
	copied := *ticket
	return &copied, nil
}

func (f *fakeTicketRepo) GetByExternalTicketID(context.Context, domain.FeedKind, string) (*domain.Ticket, error) {
	return nil, nil
}

func (f *fakeTicketRepo) UpdateStatus(_ context.Context, id string, status domain.TicketStatus) error {
	f.tickets[id].Status = status
	return nil
}

func (f *fakeTicketRepo) ExistsByExternalEventID(context.Context, domain.FeedKind, string) (bool, error) {
	return false, nil
}

func (f *fakeTicketRepo) ListWithFilter(context.Context, repository.TicketFilter) ([]domain.Ticket, error) {
	return nil, nil
}

type fakeReplier struct {
	replies []string
}

func (f *fakeReplier) Reply(_ context.Context, ticketID, _, body string) (*domain.TicketMessage, error) {
	f.replies = append(f.replies, ticketID+": "+body)
	return &domain.TicketMessage{TicketID: ticketID, Direction: domain.DirectionOut, Body: body}, nil
}

func autoReplyJob(t *testing.T, payload AutoReplyPayload) queue.Job {
	t.Helper()
	job, err := queue.NewJob(JobTypeAutoReply, payload)
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	return job
}

func TestHandleAutoReplyJobAnswersOpenTicket(t *testing.T) {
	repo := &fakeTicketRepo{tickets: map[string]*domain.Ticket{
		"t-r1": {ID: "t-r1", Kind: domain.FeedKindReview, Status: domain.TicketStatusOpen},
	}}
	replier := &fakeReplier{}
	auto := NewAutoReplier(repo, replier, zap.NewNop())

	job := autoReplyJob(t, AutoReplyPayload{
		TicketID: "t-r1", ReviewID: "r1", CustomerName: "Anna", Rating: 5,
	})
	if err := auto.HandleAutoReplyJob(context.Background(), job); err != nil {
		t.Fatalf("HandleAutoReplyJob: %v", err)
	}

	if len(replier.replies) != 1 {
		t.Fatalf("got %d replies, want 1", len(replier.replies))
	}
	if !strings.Contains(replier.replies[0], "Здравствуйте, Anna!") {
		t.Errorf("reply = %q, want personalized greeting", replier.replies[0])
	}
}

func TestHandleAutoReplyJobSkipsHandledTicket(t *testing.T) {
	repo := &fakeTicketRepo{tickets: map[string]*domain.Ticket{
		"t-r1": {ID: "t-r1", Kind: domain.FeedKindReview, Status: domain.TicketStatusClosed},
	}}
	replier := &fakeReplier{}
	auto := NewAutoReplier(repo, replier, zap.NewNop())

	job := autoReplyJob(t, AutoReplyPayload{TicketID: "t-r1", ReviewID: "r1", Rating: 5})
	if err := auto.HandleAutoReplyJob(context.Background(), job); err != nil {
		t.Fatalf("HandleAutoReplyJob: %v", err)
	}
	if len(replier.replies) != 0 {
		t.Errorf("closed ticket must not be auto-answered, got %v", replier.replies)
	}
}
