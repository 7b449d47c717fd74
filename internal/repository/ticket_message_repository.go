package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/marketplace-support/internal/domain"
)

// TicketMessageRepository persists the ordered message sequence of a ticket.
type TicketMessageRepository interface {
	// Append stores a message at the next free position of the ticket thread.
	Append(ctx context.Context, msg *domain.TicketMessage) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketMessage, error)
	// MarkDelivered records the delivery marker of an outbound message. A set
	// external id is what makes redelivery attempts abort.
	MarkDelivered(ctx context.Context, messageID, externalID string) error
}

type ticketMessageRepository struct {
	pool *pgxpool.Pool
}

// NewTicketMessageRepository instantiates repository.
func NewTicketMessageRepository(pool *pgxpool.Pool) TicketMessageRepository {
	return &ticketMessageRepository{pool: pool}
}

func (r *ticketMessageRepository) Append(ctx context.Context, msg *domain.TicketMessage) error {
	const query = `
        INSERT INTO ticket_messages (ticket_id, direction, author_name, body, external_id, seq, created_at)
        VALUES ($1,$2,$3,$4,$5,
            (SELECT COALESCE(MAX(seq),0)+1 FROM ticket_messages WHERE ticket_id=$1),
            COALESCE($6, NOW()))
        RETURNING id, seq, created_at`
	var createdAt any
	if !msg.CreatedAt.IsZero() {
		createdAt = msg.CreatedAt
	}
	return r.pool.QueryRow(ctx, query,
		msg.TicketID,
		msg.Direction,
		msg.AuthorName,
		msg.Body,
		msg.ExternalID,
		createdAt,
	).Scan(&msg.ID, &msg.Seq, &msg.CreatedAt)
}

func (r *ticketMessageRepository) MarkDelivered(ctx context.Context, messageID, externalID string) error {
	const query = `UPDATE ticket_messages SET external_id=$1 WHERE id=$2 AND external_id IS NULL`
	_, err := r.pool.Exec(ctx, query, externalID, messageID)
	return err
}

func (r *ticketMessageRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketMessage, error) {
	const query = `
        SELECT id, ticket_id, direction, author_name, body, external_id, seq, created_at
        FROM ticket_messages WHERE ticket_id=$1 ORDER BY seq ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketMessage
	for rows.Next() {
		var msg domain.TicketMessage
		if err := rows.Scan(
			&msg.ID,
			&msg.TicketID,
			&msg.Direction,
			&msg.AuthorName,
			&msg.Body,
			&msg.ExternalID,
			&msg.Seq,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}
