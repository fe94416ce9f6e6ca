package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"optionflow/auth"
	"optionflow/ledger"
)

// Store defines the data access the gateway needs. Methods taking a pgx.Tx
// participate in the caller's transaction so a pending correlation commits
// atomically with the state change that caused it.
type Store interface {
	InsertRequest(ctx context.Context, tx pgx.Tx, req PendingRequest) error
	GetRequestForUpdate(ctx context.Context, tx pgx.Tx, correlationID string) (PendingRequest, error)
	DeleteRequest(ctx context.Context, tx pgx.Tx, correlationID string) error
	EnqueueMessage(ctx context.Context, tx pgx.Tx, msg Message) error
	DiscardMessages(ctx context.Context, tx pgx.Tx, correlationID string) error
}

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Config carries the administered gateway parameters.
type Config struct {
	// OracleID is the identity requests are addressed to; callbacks must
	// originate from it.
	OracleID string
	// Payment is the fixed fee charged per request, in payment-asset units.
	Payment *big.Int
	// PricingJobID and SettlementJobID name the oracle jobs per request kind.
	PricingJobID    string
	SettlementJobID string
	// RequestTTL is how long after the scheduled fulfillment instant a
	// request stays uncancellable.
	RequestTTL time.Duration
	// Custody is the engine's own ledger account.
	Custody string
}

// Gateway submits oracle requests and authorizes their callbacks.
type Gateway struct {
	mu     sync.RWMutex
	pool   TxBeginner
	store  Store
	guard  *auth.Guard
	ledger ledger.Ledger
	cfg    Config
	now    func() time.Time
}

// NewGateway builds a gateway with the given collaborators and parameters.
func NewGateway(pool TxBeginner, store Store, guard *auth.Guard, lgr ledger.Ledger, cfg Config) *Gateway {
	return &Gateway{
		pool:   pool,
		store:  store,
		guard:  guard,
		ledger: lgr,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Submit records a fresh correlation inside the caller's transaction and
// enqueues the request descriptor for delivery. It returns the correlation ID
// immediately; the callback arrives whenever the oracle fulfills.
func (g *Gateway) Submit(ctx context.Context, tx pgx.Tx, req Request) (string, error) {
	g.mu.RLock()
	cfg := g.cfg
	g.mu.RUnlock()

	var jobID string
	switch req.Kind {
	case KindPricing:
		jobID = cfg.PricingJobID
	case KindSettlement:
		jobID = cfg.SettlementJobID
	default:
		return "", fmt.Errorf("oracle: unknown request kind %q", req.Kind)
	}
	if jobID == "" {
		return "", ErrJobNotConfigured
	}
	if req.Callback == "" {
		return "", fmt.Errorf("oracle: missing callback")
	}

	correlationID := uuid.NewString()
	now := g.now()

	// Cancellation opens only after the scheduled fulfillment instant plus
	// the TTL, so delayed settlement requests cannot be cancelled early.
	base := now
	if req.Until.After(base) {
		base = req.Until
	}
	expiresAt := base.Add(cfg.RequestTTL)

	desc := Descriptor{
		CorrelationID: correlationID,
		OracleID:      cfg.OracleID,
		JobID:         jobID,
		Callback:      req.Callback,
		Payment:       cfg.Payment.String(),
	}
	if !req.Until.IsZero() {
		until := req.Until.UTC()
		desc.Until = &until
	}
	if req.Times != nil {
		desc.Times = req.Times.String()
	}

	payload, err := json.Marshal(desc)
	if err != nil {
		return "", fmt.Errorf("oracle: marshal descriptor: %w", err)
	}

	pending := PendingRequest{
		CorrelationID: correlationID,
		OracleID:      cfg.OracleID,
		Callback:      req.Callback,
		Payment:       new(big.Int).Set(cfg.Payment),
		ExpiresAt:     expiresAt,
	}
	if err := g.store.InsertRequest(ctx, tx, pending); err != nil {
		return "", err
	}

	msg := Message{
		ID:            uuid.NewString(),
		CorrelationID: correlationID,
		Payload:       payload,
	}
	if err := g.store.EnqueueMessage(ctx, tx, msg); err != nil {
		return "", err
	}

	return correlationID, nil
}

// Fulfill authorizes a callback delivery inside the caller's transaction:
// the correlation must be outstanding, addressed to the calling oracle, and
// targeting the given callback. On success the pending request is consumed.
func (g *Gateway) Fulfill(ctx context.Context, tx pgx.Tx, correlationID, oracleID, callback string) error {
	pending, err := g.store.GetRequestForUpdate(ctx, tx, correlationID)
	if err != nil {
		return err
	}
	if oracleID == "" || pending.OracleID != oracleID {
		return ErrUnauthorized
	}
	if pending.Callback != callback {
		return ErrUnauthorized
	}
	return g.store.DeleteRequest(ctx, tx, correlationID)
}

// Cancel abandons a stuck request. Administrator only, and only after the
// request's expiration window has elapsed without a callback. The committed
// fee is forfeited; nothing is retried.
func (g *Gateway) Cancel(ctx context.Context, caller, correlationID string) error {
	if err := g.guard.Require(caller); err != nil {
		return err
	}

	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("oracle: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	pending, err := g.store.GetRequestForUpdate(ctx, tx, correlationID)
	if err != nil {
		return err
	}
	if g.now().Before(pending.ExpiresAt) {
		return ErrNotExpired
	}

	if err := g.store.DeleteRequest(ctx, tx, correlationID); err != nil {
		return err
	}
	if err := g.store.DiscardMessages(ctx, tx, correlationID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("oracle: commit cancel: %w", err)
	}
	return nil
}

// SetPayment updates the per-request fee. Administrator only.
func (g *Gateway) SetPayment(caller string, amount *big.Int) error {
	if err := g.guard.Require(caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("oracle: invalid payment amount")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cfg.Payment = new(big.Int).Set(amount)
	return nil
}

// SetJobIDs updates the job identifiers. Administrator only.
func (g *Gateway) SetJobIDs(caller, pricingJobID, settlementJobID string) error {
	if err := g.guard.Require(caller); err != nil {
		return err
	}
	if pricingJobID == "" || settlementJobID == "" {
		return fmt.Errorf("oracle: empty job identifier")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cfg.PricingJobID = pricingJobID
	g.cfg.SettlementJobID = settlementJobID
	return nil
}

// WithdrawPayment sends the engine's entire payment-asset balance to the
// caller. Administrator only.
func (g *Gateway) WithdrawPayment(ctx context.Context, caller string) (*big.Int, error) {
	if err := g.guard.Require(caller); err != nil {
		return nil, err
	}
	g.mu.RLock()
	custody := g.cfg.Custody
	g.mu.RUnlock()

	balance, err := g.ledger.PaymentBalance(ctx, custody)
	if err != nil {
		return nil, fmt.Errorf("oracle: query payment balance: %w", err)
	}
	if balance.Sign() == 0 {
		return balance, nil
	}
	if err := g.ledger.TransferPayment(ctx, caller, balance); err != nil {
		return nil, fmt.Errorf("oracle: withdraw payment balance: %w", err)
	}
	return balance, nil
}
