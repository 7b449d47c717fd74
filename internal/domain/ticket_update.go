package domain

import "time"

// AuthorType classifies who produced an external event.
type AuthorType string

const (
	AuthorSeller   AuthorType = "SELLER"
	AuthorCustomer AuthorType = "CUSTOMER"
	AuthorUnknown  AuthorType = "UNKNOWN"
)

// TicketUpdate is the normalized form of one external event, common to all
// three feed kinds. ExternalEventID is globally unique within a feed kind and
// drives deduplication; ExternalTicketID is the stable conversation key.
type TicketUpdate struct {
	ExternalEventID  string
	ExternalTicketID string
	Kind             FeedKind
	AuthorType       AuthorType
	AuthorName       string
	BodyHTML         string
	CreatedAt        time.Time
	OpensTicket      bool
	TitleHint        string

	// Review-only attributes consumed by the auto-reply decision.
	Rating  int
	HasText bool
}

// Direction maps the author type onto the stored message direction.
func (u TicketUpdate) Direction() MessageDirection {
	if u.AuthorType == AuthorSeller {
		return DirectionOut
	}
	return DirectionIn
}
