package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/marketplace-support/internal/domain"
)

// TicketFilter captures listing parameters for the internal API.
type TicketFilter struct {
	ProfileID *string
	Kind      *domain.FeedKind
	Statuses  []domain.TicketStatus
	Limit     int
	Offset    int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// GetByExternalTicketID resolves a ticket by the platform's conversation
	// key within one feed kind; returns nil without error when absent.
	GetByExternalTicketID(ctx context.Context, kind domain.FeedKind, externalTicketID string) (*domain.Ticket, error)
	UpdateStatus(ctx context.Context, id string, status domain.TicketStatus) error
	// ExistsByExternalEventID is the durable idempotency backstop: it reports
	// whether a stored message of the given feed kind already carries the
	// external event id. Event ids are only unique within their feed.
	ExistsByExternalEventID(ctx context.Context, kind domain.FeedKind, externalEventID string) (bool, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (profile_id, kind, external_ticket_id, title, credential_id, status)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.ProfileID,
		ticket.Kind,
		ticket.ExternalTicketID,
		ticket.Title,
		ticket.CredentialID,
		ticket.Status,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	const query = `
        SELECT id, profile_id, kind, external_ticket_id, title, credential_id, status, created_at, updated_at
        FROM tickets WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetByExternalTicketID(ctx context.Context, kind domain.FeedKind, externalTicketID string) (*domain.Ticket, error) {
	const query = `
        SELECT id, profile_id, kind, external_ticket_id, title, credential_id, status, created_at, updated_at
        FROM tickets WHERE kind=$1 AND external_ticket_id=$2`
	ticket, err := r.fetchSingle(ctx, query, kind, externalTicketID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return ticket, err
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, id string, status domain.TicketStatus) error {
	const query = `UPDATE tickets SET status=$1, updated_at=NOW() WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, status, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) ExistsByExternalEventID(ctx context.Context, kind domain.FeedKind, externalEventID string) (bool, error) {
	const query = `
        SELECT EXISTS (
            SELECT 1 FROM ticket_messages m
            JOIN tickets t ON t.id = m.ticket_id
            WHERE t.kind=$1 AND m.external_id=$2)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, kind, externalEventID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, args...).Scan(
		&ticket.ID,
		&ticket.ProfileID,
		&ticket.Kind,
		&ticket.ExternalTicketID,
		&ticket.Title,
		&ticket.CredentialID,
		&ticket.Status,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT id, profile_id, kind, external_ticket_id, title, credential_id, status, created_at, updated_at
             FROM tickets`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.ProfileID != nil {
		args = append(args, *filter.ProfileID)
		clauses = append(clauses, fmt.Sprintf("profile_id=$%d", len(args)))
	}
	if filter.Kind != nil {
		args = append(args, *filter.Kind)
		clauses = append(clauses, fmt.Sprintf("kind=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.ProfileID,
			&ticket.Kind,
			&ticket.ExternalTicketID,
			&ticket.Title,
			&ticket.CredentialID,
			&ticket.Status,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
