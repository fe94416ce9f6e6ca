package agreement

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"

	"optionflow/ledger"
	"optionflow/observability"
	"optionflow/oracle"
)

var (
	// ErrNoPayment signals a transition that requires value was called without any.
	ErrNoPayment = errors.New("agreement: no payment given")
	// ErrAlreadyExists signals the derived key is already occupied by a live agreement.
	ErrAlreadyExists = errors.New("agreement: agreement already exists")
	// ErrNotFound signals no live agreement exists at the derived key.
	ErrNotFound = errors.New("agreement: agreement does not exist")
	// ErrNotExpired signals an expiry withdrawal before the expiration timestamp.
	ErrNotExpired = errors.New("agreement: agreement is not expired")
	// ErrExpired signals an entry attempt after the expiration timestamp.
	ErrExpired = errors.New("agreement: agreement is expired")
	// ErrHasCounterparty signals the agreement was already entered.
	ErrHasCounterparty = errors.New("agreement: agreement already has counterparty")
	// ErrPremiumNotMet signals the entry payment is below the stored premium.
	ErrPremiumNotMet = errors.New("agreement: premium amount not met")
	// ErrWrongCounterparty signals execute was called by anyone but the stored counterparty.
	ErrWrongCounterparty = errors.New("agreement: incorrect agreement")
	// ErrAlreadyExecuted signals a settlement callback whose agreement is already gone.
	ErrAlreadyExecuted = errors.New("agreement: agreement already executed")
	// ErrNotApproved signals the counterparty's secondary-asset escrow pull failed.
	ErrNotApproved = errors.New("agreement: secondary asset not approved")
	// ErrPendingNotFound signals a pricing callback with no matching pending deposit.
	ErrPendingNotFound = errors.New("agreement: pending agreement not found")
	// ErrSettlementNotFound signals a settlement callback with no matching mapping.
	ErrSettlementNotFound = errors.New("agreement: pending settlement not found")
)

// rawValueScale tells the pricing job how many decimals to report the price
// with. Opaque to this state machine; the reported value feeds the transfer
// formula as-is.
var rawValueScale = big.NewInt(100_000_000)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store defines the data access required by the state machine. Every method
// participates in the caller's transaction; together with row locking this
// makes each transition's precondition check and mutation a single atomic
// unit.
type Store interface {
	InsertPending(ctx context.Context, tx pgx.Tx, p PendingAgreement) error
	GetPendingForUpdate(ctx context.Context, tx pgx.Tx, correlationID string) (PendingAgreement, error)
	DeletePending(ctx context.Context, tx pgx.Tx, correlationID string) error

	AgreementExists(ctx context.Context, tx pgx.Tx, key []byte) (bool, error)
	InsertAgreement(ctx context.Context, tx pgx.Tx, a Agreement) error
	GetAgreementForUpdate(ctx context.Context, tx pgx.Tx, key []byte) (Agreement, error)
	SetCounterparty(ctx context.Context, tx pgx.Tx, key []byte, party2 string) error
	MarkExecuted(ctx context.Context, tx pgx.Tx, key []byte) error
	DeleteAgreement(ctx context.Context, tx pgx.Tx, key []byte) error

	InsertSettlement(ctx context.Context, tx pgx.Tx, s PendingSettlement) error
	GetSettlementForUpdate(ctx context.Context, tx pgx.Tx, correlationID string) (PendingSettlement, error)
	DeleteSettlement(ctx context.Context, tx pgx.Tx, correlationID string) error
}

// Gateway is the slice of the oracle request gateway the state machine uses.
type Gateway interface {
	Submit(ctx context.Context, tx pgx.Tx, req oracle.Request) (string, error)
	Fulfill(ctx context.Context, tx pgx.Tx, correlationID, oracleID, callback string) error
}

// Service drives the agreement lifecycle. All state mutations happen before
// any ledger movement within a transition, and the whole transition runs in
// one transaction: a precondition failure leaves no partial state behind.
type Service struct {
	pool    TxBeginner
	store   Store
	ledger  ledger.Ledger
	gateway Gateway
	metrics *observability.Metrics
	now     func() time.Time
}

// NewService builds the state machine. metrics may be nil.
func NewService(pool TxBeginner, store Store, lgr ledger.Ledger, gateway Gateway, metrics *observability.Metrics) *Service {
	return &Service{
		pool:    pool,
		store:   store,
		ledger:  lgr,
		gateway: gateway,
		metrics: metrics,
		now:     time.Now,
	}
}

// Create accepts party1's deposit and submits the initial pricing request.
// The deposit is held in custody; the agreement itself comes into being only
// when the pricing callback arrives.
func (s *Service) Create(ctx context.Context, party1 string, deposit, premium *big.Int) (string, error) {
	if party1 == "" {
		return "", fmt.Errorf("agreement: missing party identity")
	}
	if deposit == nil || deposit.Sign() <= 0 {
		return "", ErrNoPayment
	}
	if premium == nil || premium.Sign() < 0 {
		return "", fmt.Errorf("agreement: invalid premium")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("agreement: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	correlationID, err := s.gateway.Submit(ctx, tx, oracle.Request{
		Kind:     oracle.KindPricing,
		Callback: CallbackInitialize,
		Times:    rawValueScale,
	})
	if err != nil {
		return "", err
	}

	pending := PendingAgreement{
		CorrelationID: correlationID,
		Party1:        party1,
		Amount:        new(big.Int).Set(deposit),
		Premium:       new(big.Int).Set(premium),
	}
	if err := s.store.InsertPending(ctx, tx, pending); err != nil {
		return "", err
	}

	if err := s.ledger.DepositNative(ctx, party1, deposit); err != nil {
		return "", fmt.Errorf("agreement: hold deposit: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("agreement: commit create: %w", err)
	}

	if s.metrics != nil {
		s.metrics.AgreementsCreated.Inc()
		s.metrics.RequestsSubmitted.WithLabelValues(string(oracle.KindPricing)).Inc()
	}
	return correlationID, nil
}

// Initialize is the pricing callback. It authorizes the delivery against the
// recorded correlation, prices the pending deposit, and materializes the
// agreement at its derived key. A key collision rejects the callback and
// leaves the pending record in place.
func (s *Service) Initialize(ctx context.Context, oracleID, correlationID string, raw *big.Int) error {
	if raw == nil || raw.Sign() < 0 {
		return fmt.Errorf("agreement: invalid reported value")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("agreement: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.gateway.Fulfill(ctx, tx, correlationID, oracleID, CallbackInitialize); err != nil {
		return err
	}

	pending, err := s.store.GetPendingForUpdate(ctx, tx, correlationID)
	if err != nil {
		return err
	}

	key := DeriveKey(pending.Party1, pending.Amount, pending.Premium)
	exists, err := s.store.AgreementExists(ctx, tx, key)
	if err != nil {
		return err
	}
	if exists {
		return ErrAlreadyExists
	}

	if err := s.store.DeletePending(ctx, tx, correlationID); err != nil {
		return err
	}

	a := Agreement{
		Key:            key,
		Party1:         pending.Party1,
		Amount:         pending.Amount,
		TransferAmount: ComputeTransferAmount(raw, pending.Amount),
		Premium:        pending.Premium,
		ExpiresAt:      s.now().Add(ValidPeriod),
	}
	if err := s.store.InsertAgreement(ctx, tx, a); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("agreement: commit initialize: %w", err)
	}

	if s.metrics != nil {
		s.metrics.AgreementsInitialized.Inc()
	}
	return nil
}

// Enter sets the caller as counterparty on party1's agreement, pays the
// premium through to party1, and schedules the delayed settlement callback.
func (s *Service) Enter(ctx context.Context, caller, party1 string, amount, premium, payment *big.Int) error {
	if caller == "" {
		return fmt.Errorf("agreement: missing party identity")
	}
	if payment == nil || payment.Sign() <= 0 {
		return ErrNoPayment
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("agreement: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	key := DeriveKey(party1, amount, premium)
	a, err := s.store.GetAgreementForUpdate(ctx, tx, key)
	if err != nil {
		return err
	}
	if !s.now().Before(a.ExpiresAt) {
		return ErrExpired
	}
	if a.Party2 != "" {
		return ErrHasCounterparty
	}
	if payment.Cmp(a.Premium) < 0 {
		return ErrPremiumNotMet
	}

	if err := s.store.SetCounterparty(ctx, tx, key, caller); err != nil {
		return err
	}

	correlationID, err := s.gateway.Submit(ctx, tx, oracle.Request{
		Kind:     oracle.KindSettlement,
		Callback: CallbackSettle,
		Until:    s.now().Add(SettlementDelay),
	})
	if err != nil {
		return err
	}
	if err := s.store.InsertSettlement(ctx, tx, PendingSettlement{
		CorrelationID: correlationID,
		AgreementKey:  key,
	}); err != nil {
		return err
	}

	if err := s.ledger.DepositNative(ctx, caller, payment); err != nil {
		return fmt.Errorf("agreement: hold entry payment: %w", err)
	}
	if err := s.ledger.TransferNative(ctx, a.Party1, a.Premium); err != nil {
		return fmt.Errorf("agreement: pay premium: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("agreement: commit enter: %w", err)
	}

	if s.metrics != nil {
		s.metrics.AgreementsEntered.Inc()
		s.metrics.RequestsSubmitted.WithLabelValues(string(oracle.KindSettlement)).Inc()
	}
	return nil
}

// Execute marks the agreement executed and escrows the transfer amount of
// the secondary asset from the counterparty. A failed pull fails the whole
// call; nothing is escrowed partially.
func (s *Service) Execute(ctx context.Context, caller, party1 string, amount, premium *big.Int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("agreement: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	key := DeriveKey(party1, amount, premium)
	a, err := s.store.GetAgreementForUpdate(ctx, tx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrWrongCounterparty
		}
		return err
	}
	if caller == "" || a.Party2 != caller {
		return ErrWrongCounterparty
	}

	if err := s.store.MarkExecuted(ctx, tx, key); err != nil {
		return err
	}

	if err := s.ledger.PullSecondary(ctx, caller, a.TransferAmount); err != nil {
		if errors.Is(err, ledger.ErrNotApproved) {
			return ErrNotApproved
		}
		return fmt.Errorf("agreement: escrow secondary asset: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("agreement: commit execute: %w", err)
	}

	if s.metrics != nil {
		s.metrics.AgreementsExecuted.Inc()
	}
	return nil
}

// Settle is the settlement callback. The agreement and its settlement
// mapping are deleted before any value moves. If the agreement was executed,
// the escrowed secondary asset goes to party1 and the deposit back to
// party2; otherwise only party1 is made whole.
//
// The snapshot loaded here is the double-fulfillment guard: a repeated
// delivery of the same correlation ID finds the mapping and agreement
// already gone. That the oracle delivers each correlation at most once is
// the Oracle Service's promise, not verified here.
func (s *Service) Settle(ctx context.Context, oracleID, correlationID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("agreement: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.gateway.Fulfill(ctx, tx, correlationID, oracleID, CallbackSettle); err != nil {
		return err
	}

	mapping, err := s.store.GetSettlementForUpdate(ctx, tx, correlationID)
	if err != nil {
		return err
	}

	a, err := s.store.GetAgreementForUpdate(ctx, tx, mapping.AgreementKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrAlreadyExecuted
		}
		return err
	}

	if err := s.store.DeleteAgreement(ctx, tx, mapping.AgreementKey); err != nil {
		return err
	}
	if err := s.store.DeleteSettlement(ctx, tx, correlationID); err != nil {
		return err
	}

	outcome := "unwound"
	if a.Executed {
		outcome = "delivered"
		if err := s.ledger.TransferSecondary(ctx, a.Party1, a.TransferAmount); err != nil {
			return fmt.Errorf("agreement: deliver secondary asset: %w", err)
		}
		if err := s.ledger.TransferNative(ctx, a.Party2, a.Amount); err != nil {
			return fmt.Errorf("agreement: refund counterparty deposit: %w", err)
		}
	} else {
		if err := s.ledger.TransferNative(ctx, a.Party1, a.Amount); err != nil {
			return fmt.Errorf("agreement: refund deposit: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("agreement: commit settle: %w", err)
	}

	if s.metrics != nil {
		s.metrics.AgreementsSettled.WithLabelValues(outcome).Inc()
	}
	return nil
}

// EndExpired lets party1 withdraw an expired agreement: the record is
// deleted and the original deposit refunded. The caller is identified
// implicitly through key derivation.
func (s *Service) EndExpired(ctx context.Context, party1 string, amount, premium *big.Int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("agreement: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	key := DeriveKey(party1, amount, premium)
	a, err := s.store.GetAgreementForUpdate(ctx, tx, key)
	if err != nil {
		return err
	}
	if s.now().Before(a.ExpiresAt) {
		return ErrNotExpired
	}

	if err := s.store.DeleteAgreement(ctx, tx, key); err != nil {
		return err
	}

	if err := s.ledger.TransferNative(ctx, a.Party1, a.Amount); err != nil {
		return fmt.Errorf("agreement: refund deposit: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("agreement: commit expiry withdrawal: %w", err)
	}

	if s.metrics != nil {
		s.metrics.AgreementsExpired.Inc()
	}
	return nil
}
