package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads administrator rows from Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByEmail loads the administrator with the given email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (Administrator, error) {
	const q = `
SELECT id::text, email, password_hash, party_id, created_at
FROM administrators
WHERE email = $1
`
	var admin Administrator
	err := r.pool.QueryRow(ctx, q, email).Scan(
		&admin.ID,
		&admin.Email,
		&admin.PasswordHash,
		&admin.PartyID,
		&admin.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Administrator{}, ErrAdministratorNotFound
		}
		return Administrator{}, fmt.Errorf("auth: get administrator: %w", err)
	}
	return admin, nil
}

// Ensure seeds the administrator row if none exists yet, so a fresh deploy
// has a usable login. An existing row is left untouched.
func (r *Repository) Ensure(ctx context.Context, email, passwordHash, partyID string) error {
	const q = `
INSERT INTO administrators (email, password_hash, party_id)
VALUES ($1, $2, $3)
ON CONFLICT (email) DO NOTHING
`
	if _, err := r.pool.Exec(ctx, q, email, passwordHash, partyID); err != nil {
		return fmt.Errorf("auth: ensure administrator: %w", err)
	}
	return nil
}
