package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/marketplace-support/internal/domain"
)

// CredentialRepository reads seller API tokens. Tokens are provisioned by an
// external token-management flow; this service never writes them.
type CredentialRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Credential, error)
	ActiveByProfile(ctx context.Context, profileID string) ([]domain.Credential, error)
	// ListProfilesWithActive returns the distinct profile ids that own at
	// least one active token; the scheduler sweeps over these.
	ListProfilesWithActive(ctx context.Context) ([]string, error)
}

type credentialRepository struct {
	pool *pgxpool.Pool
}

// NewCredentialRepository instantiates repository.
func NewCredentialRepository(pool *pgxpool.Pool) CredentialRepository {
	return &credentialRepository{pool: pool}
}

func (r *credentialRepository) GetByID(ctx context.Context, id string) (*domain.Credential, error) {
	const query = `
        SELECT id, profile_id, token, active, created_at
        FROM wb_credentials WHERE id=$1`
	var cred domain.Credential
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&cred.ID, &cred.ProfileID, &cred.Token, &cred.Active, &cred.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &cred, nil
}

func (r *credentialRepository) ActiveByProfile(ctx context.Context, profileID string) ([]domain.Credential, error) {
	const query = `
        SELECT id, profile_id, token, active, created_at
        FROM wb_credentials WHERE profile_id=$1 AND active ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Credential
	for rows.Next() {
		var cred domain.Credential
		if err := rows.Scan(&cred.ID, &cred.ProfileID, &cred.Token, &cred.Active, &cred.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, cred)
	}
	return result, rows.Err()
}

func (r *credentialRepository) ListProfilesWithActive(ctx context.Context) ([]string, error) {
	const query = `SELECT DISTINCT profile_id FROM wb_credentials WHERE active`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var profileID string
		if err := rows.Scan(&profileID); err != nil {
			return nil, err
		}
		result = append(result, profileID)
	}
	return result, rows.Err()
}
