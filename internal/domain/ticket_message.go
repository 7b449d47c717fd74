package domain

import "time"

// MessageDirection distinguishes inbound customer messages from seller replies.
type MessageDirection string

const (
	DirectionIn  MessageDirection = "IN"
	DirectionOut MessageDirection = "OUT"
)

// TicketMessage captures one entry of a ticket thread. ExternalID carries the
// platform's event identifier for ingested messages and stays nil for locally
// authored replies until they are delivered.
type TicketMessage struct {
	ID         string
	TicketID   string
	Direction  MessageDirection
	AuthorName string
	Body       string
	ExternalID *string
	Seq        int
	CreatedAt  time.Time
}
