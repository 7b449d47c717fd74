package dto

import (
	"time"

	"github.com/spec-kit/marketplace-support/internal/domain"
)

// TicketSummary response.
type TicketSummary struct {
	ID               string              `json:"id"`
	ProfileID        string              `json:"profile_id"`
	Kind             domain.FeedKind     `json:"kind"`
	ExternalTicketID string              `json:"external_ticket_id"`
	Title            string              `json:"title"`
	Status           domain.TicketStatus `json:"status"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info including the thread.
type TicketDetailResponse struct {
	TicketSummary
	Messages []TicketMessageResponse `json:"messages"`
}

// TicketMessageResponse represents one thread message.
type TicketMessageResponse struct {
	ID         string                  `json:"id"`
	Direction  domain.MessageDirection `json:"direction"`
	AuthorName string                  `json:"author_name"`
	Body       string                  `json:"body"`
	ExternalID *string                 `json:"external_id,omitempty"`
	Seq        int                     `json:"seq"`
	CreatedAt  time.Time               `json:"created_at"`
}

// ReplyRequest payload.
type ReplyRequest struct {
	Body       string `json:"body"`
	AuthorName string `json:"author_name"`
}
