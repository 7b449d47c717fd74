package domain

import (
	"errors"
	"time"
)

// ErrEventAlreadyApplied reports that an external event id is already stored
// for its feed kind; the update carrying it must be skipped, not retried.
var ErrEventAlreadyApplied = errors.New("external event already applied")

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen   TicketStatus = "OPEN"
	TicketStatusClosed TicketStatus = "CLOSED"
)

// FeedKind identifies which external communication feed a ticket came from.
type FeedKind string

const (
	FeedKindChat     FeedKind = "CHAT"
	FeedKindQuestion FeedKind = "QUESTION"
	FeedKindReview   FeedKind = "REVIEW"
)

// Ticket is the aggregate for one external conversation, question or review.
// The invariable block (ProfileID, Kind, ExternalTicketID, Title, CredentialID)
// is set once on creation; appends only touch Status and the message sequence.
type Ticket struct {
	ID               string
	ProfileID        string
	Kind             FeedKind
	ExternalTicketID string
	Title            string
	CredentialID     string
	Status           TicketStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
