package ledger

import (
	"context"
	"math/big"
	"sync"
)

// Book is an in-memory Ledger used by tests and local runs. Balances are
// tracked per asset; secondary-asset allowances are granted to the custodian
// account only, mirroring the engine's escrow flow.
type Book struct {
	mu        sync.Mutex
	custodian string
	native    map[string]*big.Int
	secondary map[string]*big.Int
	payment   map[string]*big.Int
	allowance map[string]*big.Int
}

// NewBook creates an empty book with the given custodian account.
func NewBook(custodian string) *Book {
	return &Book{
		custodian: custodian,
		native:    make(map[string]*big.Int),
		secondary: make(map[string]*big.Int),
		payment:   make(map[string]*big.Int),
		allowance: make(map[string]*big.Int),
	}
}

// MintNative credits native value to an account. Test/bootstrap helper.
func (b *Book) MintNative(account string, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	credit(b.native, account, amount)
}

// MintSecondary credits secondary-asset value to an account.
func (b *Book) MintSecondary(account string, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	credit(b.secondary, account, amount)
}

// MintPayment credits payment-asset value to an account.
func (b *Book) MintPayment(account string, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	credit(b.payment, account, amount)
}

// ApproveSecondary grants the custodian an allowance over owner's secondary
// balance. The grant replaces any previous allowance.
func (b *Book) ApproveSecondary(owner string, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allowance[owner] = new(big.Int).Set(amount)
}

func (b *Book) DepositNative(ctx context.Context, from string, amount *big.Int) error {
	return b.move(b.native, from, b.custodian, amount)
}

func (b *Book) TransferNative(ctx context.Context, to string, amount *big.Int) error {
	return b.move(b.native, b.custodian, to, amount)
}

func (b *Book) PullSecondary(ctx context.Context, from string, amount *big.Int) error {
	if !validAmount(amount) {
		return ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	allowed := b.allowance[from]
	if allowed == nil || allowed.Cmp(amount) < 0 {
		return ErrNotApproved
	}
	if err := debit(b.secondary, from, amount); err != nil {
		return err
	}
	allowed.Sub(allowed, amount)
	credit(b.secondary, b.custodian, amount)
	return nil
}

func (b *Book) TransferSecondary(ctx context.Context, to string, amount *big.Int) error {
	return b.move(b.secondary, b.custodian, to, amount)
}

func (b *Book) TransferPayment(ctx context.Context, to string, amount *big.Int) error {
	return b.move(b.payment, b.custodian, to, amount)
}

func (b *Book) NativeBalance(ctx context.Context, account string) (*big.Int, error) {
	return b.balance(b.native, account), nil
}

func (b *Book) SecondaryBalance(ctx context.Context, account string) (*big.Int, error) {
	return b.balance(b.secondary, account), nil
}

func (b *Book) PaymentBalance(ctx context.Context, account string) (*big.Int, error) {
	return b.balance(b.payment, account), nil
}

func (b *Book) move(asset map[string]*big.Int, from, to string, amount *big.Int) error {
	if !validAmount(amount) {
		return ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := debit(asset, from, amount); err != nil {
		return err
	}
	credit(asset, to, amount)
	return nil
}

func (b *Book) balance(asset map[string]*big.Int, account string) *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if bal, ok := asset[account]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

func credit(asset map[string]*big.Int, account string, amount *big.Int) {
	if bal, ok := asset[account]; ok {
		bal.Add(bal, amount)
		return
	}
	asset[account] = new(big.Int).Set(amount)
}

func debit(asset map[string]*big.Int, account string, amount *big.Int) error {
	bal := asset[account]
	if bal == nil || bal.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	bal.Sub(bal, amount)
	return nil
}
