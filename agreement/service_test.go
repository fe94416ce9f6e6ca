package agreement

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"optionflow/ledger"
	"optionflow/oracle"
)

const (
	party1   = "0xalice"
	party2   = "0xbob"
	oracleID = "0xoracle"
	custody  = "engine"
)

var (
	oneUnit    = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	premiumAmt = big.NewInt(5_000)
	// 2000.00000000 in 8-decimal fixed point.
	rawPrice = big.NewInt(200_000_000_000)
)

type rig struct {
	svc     *Service
	pool    *fakePool
	store   *fakeStore
	gateway *fakeGateway
	book    *ledger.Book
	now     time.Time
}

func newRig(t *testing.T) *rig {
	t.Helper()
	r := &rig{
		pool:    &fakePool{},
		store:   newFakeStore(),
		gateway: &fakeGateway{oracleID: oracleID, pending: make(map[string]oracle.Request)},
		book:    ledger.NewBook(custody),
		now:     time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC),
	}
	r.svc = NewService(r.pool, r.store, r.book, r.gateway, nil)
	r.svc.now = func() time.Time { return r.now }
	return r
}

func (r *rig) advance(d time.Duration) { r.now = r.now.Add(d) }

// priced runs create + initialize and returns the agreement key.
func (r *rig) priced(t *testing.T) []byte {
	t.Helper()
	ctx := context.Background()
	r.book.MintNative(party1, new(big.Int).Mul(oneUnit, big.NewInt(10)))

	corrID, err := r.svc.Create(ctx, party1, oneUnit, premiumAmt)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := r.svc.Initialize(ctx, oracleID, corrID, rawPrice); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return DeriveKey(party1, oneUnit, premiumAmt)
}

// entered additionally has party2 enter with an exact premium payment.
func (r *rig) entered(t *testing.T) []byte {
	t.Helper()
	key := r.priced(t)
	r.book.MintNative(party2, new(big.Int).Mul(oneUnit, big.NewInt(10)))
	if err := r.svc.Enter(context.Background(), party2, party1, oneUnit, premiumAmt, premiumAmt); err != nil {
		t.Fatalf("enter: %v", err)
	}
	return key
}

func TestCreateRequiresPayment(t *testing.T) {
	r := newRig(t)

	if _, err := r.svc.Create(context.Background(), party1, big.NewInt(0), premiumAmt); !errors.Is(err, ErrNoPayment) {
		t.Fatalf("zero deposit: got %v", err)
	}
	if _, err := r.svc.Create(context.Background(), party1, nil, premiumAmt); !errors.Is(err, ErrNoPayment) {
		t.Fatalf("nil deposit: got %v", err)
	}
	if len(r.gateway.submitted) != 0 {
		t.Fatal("request submitted without payment")
	}
}

func TestCreateHoldsDepositAndSubmitsPricing(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	r.book.MintNative(party1, new(big.Int).Mul(oneUnit, big.NewInt(2)))

	corrID, err := r.svc.Create(ctx, party1, oneUnit, premiumAmt)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !r.pool.tx.committed {
		t.Fatal("create did not commit")
	}

	held, _ := r.book.NativeBalance(ctx, custody)
	if held.Cmp(oneUnit) != 0 {
		t.Fatalf("custody holds %s, want %s", held, oneUnit)
	}

	p, ok := r.store.pendings[corrID]
	if !ok {
		t.Fatal("pending agreement not recorded")
	}
	if p.Party1 != party1 || p.Amount.Cmp(oneUnit) != 0 || p.Premium.Cmp(premiumAmt) != 0 {
		t.Fatalf("pending fields: %+v", p)
	}

	if len(r.gateway.submitted) != 1 || r.gateway.submitted[0].Kind != oracle.KindPricing {
		t.Fatalf("submissions: %+v", r.gateway.submitted)
	}
}

func TestCreateInsufficientFundsRollsBack(t *testing.T) {
	r := newRig(t)

	_, err := r.svc.Create(context.Background(), party1, oneUnit, premiumAmt)
	if err == nil {
		t.Fatal("expected failure without funds")
	}
	if r.pool.tx.committed {
		t.Fatal("create committed despite failed deposit")
	}
	if !r.pool.tx.rolled {
		t.Fatal("create did not roll back")
	}
}

func TestInitializePricesAgreement(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	r.book.MintNative(party1, oneUnit)

	corrID, err := r.svc.Create(ctx, party1, oneUnit, premiumAmt)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := r.svc.Initialize(ctx, oracleID, corrID, rawPrice); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	if _, ok := r.store.pendings[corrID]; ok {
		t.Fatal("pending agreement not consumed")
	}

	key := DeriveKey(party1, oneUnit, premiumAmt)
	a, ok := r.store.get(key)
	if !ok {
		t.Fatal("agreement not materialized")
	}
	want := ComputeTransferAmount(rawPrice, oneUnit)
	if a.TransferAmount.Cmp(want) != 0 {
		t.Fatalf("transfer amount: got %s, want %s", a.TransferAmount, want)
	}
	if wantExp := r.now.Add(ValidPeriod); !a.ExpiresAt.Equal(wantExp) {
		t.Fatalf("expiration: got %v, want %v", a.ExpiresAt, wantExp)
	}
	if a.Party2 != "" || a.Executed {
		t.Fatalf("fresh agreement state: %+v", a)
	}
}

func TestInitializeRejectsUnauthorizedCallback(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	r.book.MintNative(party1, oneUnit)

	corrID, err := r.svc.Create(ctx, party1, oneUnit, premiumAmt)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := r.svc.Initialize(ctx, "0xintruder", corrID, rawPrice); !errors.Is(err, oracle.ErrUnauthorized) {
		t.Fatalf("wrong oracle: got %v", err)
	}
	if r.pool.tx.committed {
		t.Fatal("unauthorized callback committed state")
	}
	if _, ok := r.store.pendings[corrID]; !ok {
		t.Fatal("pending agreement consumed by unauthorized callback")
	}
	if _, ok := r.store.get(DeriveKey(party1, oneUnit, premiumAmt)); ok {
		t.Fatal("agreement materialized by unauthorized callback")
	}
}

func TestInitializeUnknownCorrelation(t *testing.T) {
	r := newRig(t)

	err := r.svc.Initialize(context.Background(), oracleID, "no-such-correlation", rawPrice)
	if !errors.Is(err, oracle.ErrUnknownRequest) {
		t.Fatalf("expected ErrUnknownRequest, got %v", err)
	}
}

func TestInitializeRejectsExistingKey(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	key := r.priced(t)
	before, _ := r.store.get(key)

	// Second flow for the same (party1, amount, premium) triple.
	corrID, err := r.svc.Create(ctx, party1, oneUnit, premiumAmt)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	err = r.svc.Initialize(ctx, oracleID, corrID, big.NewInt(999_999_999_999))
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if r.pool.tx.committed {
		t.Fatal("colliding initialization committed")
	}

	after, _ := r.store.get(key)
	if after.TransferAmount.Cmp(before.TransferAmount) != 0 || !after.ExpiresAt.Equal(before.ExpiresAt) {
		t.Fatalf("existing record altered: before %+v after %+v", before, after)
	}
	// The colliding deposit stays parked in its pending record.
	if _, ok := r.store.pendings[corrID]; !ok {
		t.Fatal("colliding pending record deleted")
	}
}

func TestEnterPreconditions(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	if err := r.svc.Enter(ctx, party2, party1, oneUnit, premiumAmt, big.NewInt(0)); !errors.Is(err, ErrNoPayment) {
		t.Fatalf("zero payment: got %v", err)
	}
	if err := r.svc.Enter(ctx, party2, party1, oneUnit, premiumAmt, premiumAmt); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing agreement: got %v", err)
	}

	r.priced(t)
	r.book.MintNative(party2, new(big.Int).Mul(oneUnit, big.NewInt(10)))

	short := new(big.Int).Sub(premiumAmt, big.NewInt(1))
	if err := r.svc.Enter(ctx, party2, party1, oneUnit, premiumAmt, short); !errors.Is(err, ErrPremiumNotMet) {
		t.Fatalf("short premium: got %v", err)
	}

	if err := r.svc.Enter(ctx, party2, party1, oneUnit, premiumAmt, premiumAmt); err != nil {
		t.Fatalf("enter: %v", err)
	}
	if err := r.svc.Enter(ctx, "0xcarol", party1, oneUnit, premiumAmt, premiumAmt); !errors.Is(err, ErrHasCounterparty) {
		t.Fatalf("second entry: got %v", err)
	}
}

func TestEnterExpiredAgreement(t *testing.T) {
	r := newRig(t)
	r.priced(t)
	r.book.MintNative(party2, oneUnit)
	r.advance(ValidPeriod)

	err := r.svc.Enter(context.Background(), party2, party1, oneUnit, premiumAmt, premiumAmt)
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestEnterPaysPremiumAndSchedulesSettlement(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	key := r.entered(t)

	a, _ := r.store.get(key)
	if a.Party2 != party2 {
		t.Fatalf("counterparty: got %q", a.Party2)
	}

	// Premium went straight through to party1.
	p1, _ := r.book.NativeBalance(ctx, party1)
	wantP1 := new(big.Int).Mul(oneUnit, big.NewInt(10))
	wantP1.Sub(wantP1, oneUnit).Add(wantP1, premiumAmt)
	if p1.Cmp(wantP1) != 0 {
		t.Fatalf("party1 balance: got %s, want %s", p1, wantP1)
	}

	last := r.gateway.submitted[len(r.gateway.submitted)-1]
	if last.Kind != oracle.KindSettlement {
		t.Fatalf("settlement request kind: %v", last.Kind)
	}
	if want := r.now.Add(SettlementDelay); !last.Until.Equal(want) {
		t.Fatalf("settlement delay: got %v, want %v", last.Until, want)
	}

	found := false
	for _, s := range r.store.settlements {
		if bytes.Equal(s.AgreementKey, key) {
			found = true
		}
	}
	if !found {
		t.Fatal("settlement mapping not recorded")
	}
}

func TestExecuteRequiresCounterparty(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	if err := r.svc.Execute(ctx, party2, party1, oneUnit, premiumAmt); !errors.Is(err, ErrWrongCounterparty) {
		t.Fatalf("missing agreement: got %v", err)
	}

	r.entered(t)
	if err := r.svc.Execute(ctx, "0xcarol", party1, oneUnit, premiumAmt); !errors.Is(err, ErrWrongCounterparty) {
		t.Fatalf("stranger execute: got %v", err)
	}
	if err := r.svc.Execute(ctx, party1, party1, oneUnit, premiumAmt); !errors.Is(err, ErrWrongCounterparty) {
		t.Fatalf("party1 execute: got %v", err)
	}
}

func TestExecuteWithoutApprovalFails(t *testing.T) {
	r := newRig(t)
	r.entered(t)

	err := r.svc.Execute(context.Background(), party2, party1, oneUnit, premiumAmt)
	if !errors.Is(err, ErrNotApproved) {
		t.Fatalf("expected ErrNotApproved, got %v", err)
	}
	if r.pool.tx.committed {
		t.Fatal("failed escrow committed")
	}
	if !r.pool.tx.rolled {
		t.Fatal("failed escrow did not roll back")
	}
	escrowed, _ := r.book.SecondaryBalance(context.Background(), custody)
	if escrowed.Sign() != 0 {
		t.Fatalf("partial escrow: %s", escrowed)
	}
}

func TestExecuteEscrowsTransferAmount(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	key := r.entered(t)

	transfer := ComputeTransferAmount(rawPrice, oneUnit)
	r.book.MintSecondary(party2, transfer)
	r.book.ApproveSecondary(party2, transfer)

	if err := r.svc.Execute(ctx, party2, party1, oneUnit, premiumAmt); err != nil {
		t.Fatalf("execute: %v", err)
	}

	a, _ := r.store.get(key)
	if !a.Executed {
		t.Fatal("executed flag not set")
	}
	escrowed, _ := r.book.SecondaryBalance(ctx, custody)
	if escrowed.Cmp(transfer) != 0 {
		t.Fatalf("escrowed: got %s, want %s", escrowed, transfer)
	}
}

func TestSettleDeliversAfterExecution(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	key := r.entered(t)

	transfer := ComputeTransferAmount(rawPrice, oneUnit)
	r.book.MintSecondary(party2, transfer)
	r.book.ApproveSecondary(party2, transfer)
	if err := r.svc.Execute(ctx, party2, party1, oneUnit, premiumAmt); err != nil {
		t.Fatalf("execute: %v", err)
	}

	corrID := r.settlementCorrelation(t, key)
	if err := r.svc.Settle(ctx, oracleID, corrID); err != nil {
		t.Fatalf("settle: %v", err)
	}

	if _, ok := r.store.get(key); ok {
		t.Fatal("agreement survived settlement")
	}
	if _, ok := r.store.settlements[corrID]; ok {
		t.Fatal("settlement mapping survived")
	}

	// Physical settlement: secondary to party1, deposit back to party2.
	p1Secondary, _ := r.book.SecondaryBalance(ctx, party1)
	if p1Secondary.Cmp(transfer) != 0 {
		t.Fatalf("party1 secondary: got %s, want %s", p1Secondary, transfer)
	}
	p2Native, _ := r.book.NativeBalance(ctx, party2)
	wantP2 := new(big.Int).Mul(oneUnit, big.NewInt(10))
	wantP2.Sub(wantP2, premiumAmt).Add(wantP2, oneUnit)
	if p2Native.Cmp(wantP2) != 0 {
		t.Fatalf("party2 native: got %s, want %s", p2Native, wantP2)
	}

	// Engine custody drains to zero in both assets.
	custodyNative, _ := r.book.NativeBalance(ctx, custody)
	custodySecondary, _ := r.book.SecondaryBalance(ctx, custody)
	if custodyNative.Sign() != 0 || custodySecondary.Sign() != 0 {
		t.Fatalf("custody not drained: native %s secondary %s", custodyNative, custodySecondary)
	}
}

func TestSettleUnwindsWithoutExecution(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	key := r.entered(t)

	corrID := r.settlementCorrelation(t, key)
	if err := r.svc.Settle(ctx, oracleID, corrID); err != nil {
		t.Fatalf("settle: %v", err)
	}

	// Party1 is made whole; party2's secondary asset was never pulled.
	p1Native, _ := r.book.NativeBalance(ctx, party1)
	wantP1 := new(big.Int).Mul(oneUnit, big.NewInt(10))
	wantP1.Add(wantP1, premiumAmt)
	if p1Native.Cmp(wantP1) != 0 {
		t.Fatalf("party1 native: got %s, want %s", p1Native, wantP1)
	}
	p2Secondary, _ := r.book.SecondaryBalance(ctx, party2)
	if p2Secondary.Sign() != 0 {
		t.Fatalf("party2 secondary touched: %s", p2Secondary)
	}
	custodyNative, _ := r.book.NativeBalance(ctx, custody)
	if custodyNative.Sign() != 0 {
		t.Fatalf("custody native not drained: %s", custodyNative)
	}
}

func TestSettleRejectsUnauthorizedCallback(t *testing.T) {
	r := newRig(t)
	key := r.entered(t)
	corrID := r.settlementCorrelation(t, key)

	err := r.svc.Settle(context.Background(), "0xintruder", corrID)
	if !errors.Is(err, oracle.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if r.pool.tx.committed {
		t.Fatal("unauthorized settle committed")
	}
	if _, ok := r.store.get(key); !ok {
		t.Fatal("agreement removed by unauthorized settle")
	}
}

func TestSettleAfterExpiryWithdrawalIsRejected(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	key := r.entered(t)
	corrID := r.settlementCorrelation(t, key)

	// Party1 withdraws the expired agreement before the settlement fires.
	r.advance(ValidPeriod)
	if err := r.svc.EndExpired(ctx, party1, oneUnit, premiumAmt); err != nil {
		t.Fatalf("end expired: %v", err)
	}

	err := r.svc.Settle(ctx, oracleID, corrID)
	if !errors.Is(err, ErrAlreadyExecuted) {
		t.Fatalf("expected ErrAlreadyExecuted, got %v", err)
	}
}

func TestEndExpiredPreconditions(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	if err := r.svc.EndExpired(ctx, party1, oneUnit, premiumAmt); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing agreement: got %v", err)
	}

	r.priced(t)
	if err := r.svc.EndExpired(ctx, party1, oneUnit, premiumAmt); !errors.Is(err, ErrNotExpired) {
		t.Fatalf("before expiry: got %v", err)
	}
}

func TestEndExpiredRefundsDeposit(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	key := r.priced(t)
	r.advance(ValidPeriod)

	if err := r.svc.EndExpired(ctx, party1, oneUnit, premiumAmt); err != nil {
		t.Fatalf("end expired: %v", err)
	}
	if _, ok := r.store.get(key); ok {
		t.Fatal("agreement survived expiry withdrawal")
	}

	p1, _ := r.book.NativeBalance(ctx, party1)
	if want := new(big.Int).Mul(oneUnit, big.NewInt(10)); p1.Cmp(want) != 0 {
		t.Fatalf("refund: got %s, want %s", p1, want)
	}

	if err := r.svc.EndExpired(ctx, party1, oneUnit, premiumAmt); !errors.Is(err, ErrNotFound) {
		t.Fatalf("repeated withdrawal: got %v", err)
	}
}

func (r *rig) settlementCorrelation(t *testing.T, key []byte) string {
	t.Helper()
	for corrID, s := range r.store.settlements {
		if bytes.Equal(s.AgreementKey, key) {
			return corrID
		}
	}
	t.Fatal("no settlement mapping for key")
	return ""
}

// --- fakes ---

type fakeStore struct {
	pendings    map[string]PendingAgreement
	agreements  map[string]Agreement
	settlements map[string]PendingSettlement
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		pendings:    make(map[string]PendingAgreement),
		agreements:  make(map[string]Agreement),
		settlements: make(map[string]PendingSettlement),
	}
}

func (f *fakeStore) get(key []byte) (Agreement, bool) {
	a, ok := f.agreements[string(key)]
	return a, ok
}

func (f *fakeStore) InsertPending(ctx context.Context, tx pgx.Tx, p PendingAgreement) error {
	f.pendings[p.CorrelationID] = p
	return nil
}

func (f *fakeStore) GetPendingForUpdate(ctx context.Context, tx pgx.Tx, correlationID string) (PendingAgreement, error) {
	p, ok := f.pendings[correlationID]
	if !ok {
		return PendingAgreement{}, ErrPendingNotFound
	}
	return p, nil
}

func (f *fakeStore) DeletePending(ctx context.Context, tx pgx.Tx, correlationID string) error {
	delete(f.pendings, correlationID)
	return nil
}

func (f *fakeStore) AgreementExists(ctx context.Context, tx pgx.Tx, key []byte) (bool, error) {
	_, ok := f.agreements[string(key)]
	return ok, nil
}

func (f *fakeStore) InsertAgreement(ctx context.Context, tx pgx.Tx, a Agreement) error {
	if _, ok := f.agreements[string(a.Key)]; ok {
		return ErrAlreadyExists
	}
	f.agreements[string(a.Key)] = a
	return nil
}

func (f *fakeStore) GetAgreementForUpdate(ctx context.Context, tx pgx.Tx, key []byte) (Agreement, error) {
	a, ok := f.agreements[string(key)]
	if !ok {
		return Agreement{}, ErrNotFound
	}
	return a, nil
}

func (f *fakeStore) SetCounterparty(ctx context.Context, tx pgx.Tx, key []byte, party2 string) error {
	a, ok := f.agreements[string(key)]
	if !ok {
		return ErrNotFound
	}
	a.Party2 = party2
	f.agreements[string(key)] = a
	return nil
}

func (f *fakeStore) MarkExecuted(ctx context.Context, tx pgx.Tx, key []byte) error {
	a, ok := f.agreements[string(key)]
	if !ok {
		return ErrNotFound
	}
	a.Executed = true
	f.agreements[string(key)] = a
	return nil
}

func (f *fakeStore) DeleteAgreement(ctx context.Context, tx pgx.Tx, key []byte) error {
	delete(f.agreements, string(key))
	return nil
}

func (f *fakeStore) InsertSettlement(ctx context.Context, tx pgx.Tx, s PendingSettlement) error {
	f.settlements[s.CorrelationID] = s
	return nil
}

func (f *fakeStore) GetSettlementForUpdate(ctx context.Context, tx pgx.Tx, correlationID string) (PendingSettlement, error) {
	s, ok := f.settlements[correlationID]
	if !ok {
		return PendingSettlement{}, ErrSettlementNotFound
	}
	return s, nil
}

func (f *fakeStore) DeleteSettlement(ctx context.Context, tx pgx.Tx, correlationID string) error {
	delete(f.settlements, correlationID)
	return nil
}

type fakeGateway struct {
	oracleID  string
	seq       int
	pending   map[string]oracle.Request
	submitted []oracle.Request
}

func (f *fakeGateway) Submit(ctx context.Context, tx pgx.Tx, req oracle.Request) (string, error) {
	f.seq++
	corrID := fmt.Sprintf("corr-%d", f.seq)
	f.pending[corrID] = req
	f.submitted = append(f.submitted, req)
	return corrID, nil
}

func (f *fakeGateway) Fulfill(ctx context.Context, tx pgx.Tx, correlationID, oracleID, callback string) error {
	req, ok := f.pending[correlationID]
	if !ok {
		return oracle.ErrUnknownRequest
	}
	if oracleID != f.oracleID {
		return oracle.ErrUnauthorized
	}
	if req.Callback != callback {
		return oracle.ErrUnauthorized
	}
	delete(f.pending, correlationID)
	return nil
}

type fakePool struct {
	tx *fakeTx
}

func (f *fakePool) Begin(ctx context.Context) (pgx.Tx, error) {
	f.tx = &fakeTx{}
	return f.tx, nil
}

type fakeTx struct {
	rolled    bool
	committed bool
}

func (f *fakeTx) Begin(context.Context) (pgx.Tx, error) {
	return nil, errors.New("fakeTx does not support nested transactions")
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	f.rolled = true
	return nil
}

func (f *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}

func (f *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}

func (f *fakeTx) LargeObjects() pgx.LargeObjects {
	panic("not implemented")
}

func (f *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}

func (f *fakeTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}

func (f *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("not implemented")
}

func (f *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("not implemented")
}

func (f *fakeTx) Conn() *pgx.Conn {
	return nil
}
