package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-support/internal/domain"
	"github.com/spec-kit/marketplace-support/internal/queue"
	"github.com/spec-kit/marketplace-support/internal/repository"
)

// Replier is the slice of the support service the auto-replier needs.
type Replier interface {
	Reply(ctx context.Context, ticketID, authorName, body string) (*domain.TicketMessage, error)
}

// AutoReplier answers reviews that were queued for an automatic response. The
// job runs one poll interval after ingestion; if the seller answered in the
// meantime the ticket is closed and the job is a no-op.
type AutoReplier struct {
	tickets repository.TicketRepository
	support Replier
	logger  *zap.Logger
}

// NewAutoReplier constructs the auto-replier.
func NewAutoReplier(tickets repository.TicketRepository, support Replier, logger *zap.Logger) *AutoReplier {
	return &AutoReplier{tickets: tickets, support: support, logger: logger}
}

// HandleAutoReplyJob answers the review ticket unless a seller got there first.
func (a *AutoReplier) HandleAutoReplyJob(ctx context.Context, job queue.Job) error {
	var payload AutoReplyPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("auto-reply job payload: %w", err)
	}

	ticket, err := a.tickets.GetByID(ctx, payload.TicketID)
	if err != nil {
		return err
	}
	if ticket.Status != domain.TicketStatusOpen {
		a.logger.Debug("ticket already handled, skipping auto-reply",
			zap.String("ticket", ticket.ID))
		return nil
	}

	text := ReviewReplyText(payload.Rating, payload.CustomerName)
	if _, err := a.support.Reply(ctx, ticket.ID, sellerAuthorName, text); err != nil {
		return fmt.Errorf("auto-replying to ticket %s: %w", ticket.ID, err)
	}
	a.logger.Info("auto-reply recorded",
		zap.String("ticket", ticket.ID),
		zap.Int("rating", payload.Rating))
	return nil
}

// ReviewReplyText renders the canned answer for a review. The greeting names
// the customer unless the platform substituted its anonymity placeholder.
func ReviewReplyText(rating int, customerName string) string {
	greeting := "Здравствуйте!"
	if name := strings.TrimSpace(customerName); name != "" && name != anonymousUserName {
		greeting = fmt.Sprintf("Здравствуйте, %s!", name)
	}

	var body string
	switch {
	case rating == 5:
		body = "Спасибо за высокую оценку! Нам очень приятно, что вы остались довольны покупкой. Будем рады видеть вас снова!"
	case rating >= 3:
		body = "Спасибо за ваш отзыв! Мы ценим обратную связь и постоянно работаем над качеством товаров и сервиса."
	default:
		body = "Приносим извинения за доставленные неудобства. Нам жаль, что покупка вас разочаровала. Пожалуйста, напишите нам в чат, и мы постараемся решить проблему."
	}
	return greeting + " " + body
}
