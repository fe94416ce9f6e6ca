package agreement

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository is the Postgres-backed Store. Rows in agreements always carry a
// nonzero amount; deletion is the only way an agreement stops existing, so
// row presence doubles as the existence marker.
type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

func (r *Repository) InsertPending(ctx context.Context, tx pgx.Tx, p PendingAgreement) error {
	const q = `
INSERT INTO pending_agreements (correlation_id, party1, amount, premium)
VALUES ($1, $2, $3::numeric, $4::numeric)
`
	if _, err := tx.Exec(ctx, q, p.CorrelationID, p.Party1, p.Amount.String(), p.Premium.String()); err != nil {
		return fmt.Errorf("agreement: insert pending: %w", err)
	}
	return nil
}

func (r *Repository) GetPendingForUpdate(ctx context.Context, tx pgx.Tx, correlationID string) (PendingAgreement, error) {
	const q = `
SELECT correlation_id::text, party1, amount::text, premium::text
FROM pending_agreements
WHERE correlation_id = $1
FOR UPDATE
`
	var (
		p               PendingAgreement
		amount, premium string
	)
	err := tx.QueryRow(ctx, q, correlationID).Scan(&p.CorrelationID, &p.Party1, &amount, &premium)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PendingAgreement{}, ErrPendingNotFound
		}
		return PendingAgreement{}, fmt.Errorf("agreement: load pending: %w", err)
	}
	if p.Amount, err = parseAmount(amount); err != nil {
		return PendingAgreement{}, err
	}
	if p.Premium, err = parseAmount(premium); err != nil {
		return PendingAgreement{}, err
	}
	return p, nil
}

func (r *Repository) DeletePending(ctx context.Context, tx pgx.Tx, correlationID string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM pending_agreements WHERE correlation_id = $1`, correlationID); err != nil {
		return fmt.Errorf("agreement: delete pending: %w", err)
	}
	return nil
}

func (r *Repository) AgreementExists(ctx context.Context, tx pgx.Tx, key []byte) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM agreements WHERE key = $1)`, key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("agreement: check existence: %w", err)
	}
	return exists, nil
}

func (r *Repository) InsertAgreement(ctx context.Context, tx pgx.Tx, a Agreement) error {
	const q = `
INSERT INTO agreements (key, party1, party2, amount, transfer_amount, premium, expires_at, executed)
VALUES ($1, $2, NULLIF($3, ''), $4::numeric, $5::numeric, $6::numeric, $7, $8)
`
	_, err := tx.Exec(ctx, q, a.Key, a.Party1, a.Party2, a.Amount.String(), a.TransferAmount.String(), a.Premium.String(), a.ExpiresAt, a.Executed)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyExists
		}
		return fmt.Errorf("agreement: insert agreement: %w", err)
	}
	return nil
}

func (r *Repository) GetAgreementForUpdate(ctx context.Context, tx pgx.Tx, key []byte) (Agreement, error) {
	const q = `
SELECT key, party1, COALESCE(party2, ''), amount::text, transfer_amount::text, premium::text, expires_at, executed
FROM agreements
WHERE key = $1
FOR UPDATE
`
	var (
		a                         Agreement
		amount, transfer, premium string
	)
	err := tx.QueryRow(ctx, q, key).Scan(&a.Key, &a.Party1, &a.Party2, &amount, &transfer, &premium, &a.ExpiresAt, &a.Executed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Agreement{}, ErrNotFound
		}
		return Agreement{}, fmt.Errorf("agreement: load agreement: %w", err)
	}
	if a.Amount, err = parseAmount(amount); err != nil {
		return Agreement{}, err
	}
	if a.TransferAmount, err = parseAmount(transfer); err != nil {
		return Agreement{}, err
	}
	if a.Premium, err = parseAmount(premium); err != nil {
		return Agreement{}, err
	}
	return a, nil
}

func (r *Repository) SetCounterparty(ctx context.Context, tx pgx.Tx, key []byte, party2 string) error {
	tag, err := tx.Exec(ctx, `UPDATE agreements SET party2 = $2 WHERE key = $1`, key, party2)
	if err != nil {
		return fmt.Errorf("agreement: set counterparty: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) MarkExecuted(ctx context.Context, tx pgx.Tx, key []byte) error {
	tag, err := tx.Exec(ctx, `UPDATE agreements SET executed = true WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("agreement: mark executed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteAgreement(ctx context.Context, tx pgx.Tx, key []byte) error {
	if _, err := tx.Exec(ctx, `DELETE FROM agreements WHERE key = $1`, key); err != nil {
		return fmt.Errorf("agreement: delete agreement: %w", err)
	}
	return nil
}

func (r *Repository) InsertSettlement(ctx context.Context, tx pgx.Tx, s PendingSettlement) error {
	const q = `
INSERT INTO pending_settlements (correlation_id, agreement_key)
VALUES ($1, $2)
`
	if _, err := tx.Exec(ctx, q, s.CorrelationID, s.AgreementKey); err != nil {
		return fmt.Errorf("agreement: insert settlement mapping: %w", err)
	}
	return nil
}

func (r *Repository) GetSettlementForUpdate(ctx context.Context, tx pgx.Tx, correlationID string) (PendingSettlement, error) {
	const q = `
SELECT correlation_id::text, agreement_key
FROM pending_settlements
WHERE correlation_id = $1
FOR UPDATE
`
	var s PendingSettlement
	err := tx.QueryRow(ctx, q, correlationID).Scan(&s.CorrelationID, &s.AgreementKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PendingSettlement{}, ErrSettlementNotFound
		}
		return PendingSettlement{}, fmt.Errorf("agreement: load settlement mapping: %w", err)
	}
	return s, nil
}

func (r *Repository) DeleteSettlement(ctx context.Context, tx pgx.Tx, correlationID string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM pending_settlements WHERE correlation_id = $1`, correlationID); err != nil {
		return fmt.Errorf("agreement: delete settlement mapping: %w", err)
	}
	return nil
}

func parseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("agreement: malformed amount %q", s)
	}
	return v, nil
}
