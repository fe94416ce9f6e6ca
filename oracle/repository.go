package oracle

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the Postgres-backed Store plus the dispatcher's outbox queries.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) InsertRequest(ctx context.Context, tx pgx.Tx, req PendingRequest) error {
	const q = `
INSERT INTO oracle_requests (correlation_id, oracle_id, callback, payment, expires_at)
VALUES ($1, $2, $3, $4::numeric, $5)
`
	if _, err := tx.Exec(ctx, q, req.CorrelationID, req.OracleID, req.Callback, req.Payment.String(), req.ExpiresAt); err != nil {
		return fmt.Errorf("oracle: insert request: %w", err)
	}
	return nil
}

func (r *Repository) GetRequestForUpdate(ctx context.Context, tx pgx.Tx, correlationID string) (PendingRequest, error) {
	const q = `
SELECT correlation_id::text, oracle_id, callback, payment::text, expires_at
FROM oracle_requests
WHERE correlation_id = $1
FOR UPDATE
`
	var (
		req     PendingRequest
		payment string
	)
	err := tx.QueryRow(ctx, q, correlationID).Scan(&req.CorrelationID, &req.OracleID, &req.Callback, &payment, &req.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PendingRequest{}, ErrUnknownRequest
		}
		return PendingRequest{}, fmt.Errorf("oracle: load request: %w", err)
	}
	req.Payment, err = parseAmount(payment)
	if err != nil {
		return PendingRequest{}, err
	}
	return req, nil
}

func (r *Repository) DeleteRequest(ctx context.Context, tx pgx.Tx, correlationID string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM oracle_requests WHERE correlation_id = $1`, correlationID); err != nil {
		return fmt.Errorf("oracle: delete request: %w", err)
	}
	return nil
}

func (r *Repository) EnqueueMessage(ctx context.Context, tx pgx.Tx, msg Message) error {
	const q = `
INSERT INTO oracle_outbox (id, correlation_id, payload)
VALUES ($1, $2, $3::jsonb)
`
	if _, err := tx.Exec(ctx, q, msg.ID, msg.CorrelationID, msg.Payload); err != nil {
		return fmt.Errorf("oracle: enqueue message: %w", err)
	}
	return nil
}

func (r *Repository) DiscardMessages(ctx context.Context, tx pgx.Tx, correlationID string) error {
	const q = `
UPDATE oracle_outbox
SET status = 'cancelled'
WHERE correlation_id = $1 AND status = 'pending'
`
	if _, err := tx.Exec(ctx, q, correlationID); err != nil {
		return fmt.Errorf("oracle: discard messages: %w", err)
	}
	return nil
}

// NextPending returns up to limit undelivered outbox messages, oldest first.
func (r *Repository) NextPending(ctx context.Context, limit int) ([]Message, error) {
	const q = `
SELECT id::text, correlation_id::text, payload, attempts
FROM oracle_outbox
WHERE status = 'pending'
ORDER BY created_at
LIMIT $1
`
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("oracle: list pending messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.CorrelationID, &m.Payload, &m.Attempts); err != nil {
			return nil, fmt.Errorf("oracle: scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// MarkSent records a successful delivery.
func (r *Repository) MarkSent(ctx context.Context, id string) error {
	const q = `
UPDATE oracle_outbox
SET status = 'sent', attempts = attempts + 1
WHERE id = $1
`
	if _, err := r.pool.Exec(ctx, q, id); err != nil {
		return fmt.Errorf("oracle: mark sent: %w", err)
	}
	return nil
}

// MarkFailed counts a failed delivery attempt; the message stays pending.
func (r *Repository) MarkFailed(ctx context.Context, id string) error {
	const q = `
UPDATE oracle_outbox
SET attempts = attempts + 1
WHERE id = $1
`
	if _, err := r.pool.Exec(ctx, q, id); err != nil {
		return fmt.Errorf("oracle: mark failed: %w", err)
	}
	return nil
}

func parseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("oracle: malformed amount %q", s)
	}
	return v, nil
}
