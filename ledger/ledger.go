// Package ledger adapts the external fungible-asset transfer capability the
// agreement engine settles against. Three assets exist: the native value
// asset deposits arrive in, the secondary (stablecoin) asset settlements pay
// out in, and the payment asset oracle request fees are charged in.
package ledger

import (
	"context"
	"errors"
	"math/big"
)

var (
	// ErrInsufficientFunds signals the source account cannot cover the transfer.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
	// ErrNotApproved signals a pull transfer exceeds the allowance granted to the custodian.
	ErrNotApproved = errors.New("ledger: secondary asset not approved")
	// ErrInvalidAmount signals a nil, zero or negative transfer amount.
	ErrInvalidAmount = errors.New("ledger: invalid amount")
)

// Ledger is the engine's view of the value ledger. The engine itself owns a
// custody account; pushes move value out of custody, DepositNative and
// PullSecondary move value in.
type Ledger interface {
	// DepositNative moves native value from an external party into custody.
	DepositNative(ctx context.Context, from string, amount *big.Int) error
	// TransferNative pushes native value from custody to an external party.
	TransferNative(ctx context.Context, to string, amount *big.Int) error
	// PullSecondary draws secondary-asset value from a party into custody.
	// The party must have approved the custodian for at least amount.
	PullSecondary(ctx context.Context, from string, amount *big.Int) error
	// TransferSecondary pushes secondary-asset value from custody to a party.
	TransferSecondary(ctx context.Context, to string, amount *big.Int) error
	// TransferPayment pushes payment-asset value from custody to a party.
	TransferPayment(ctx context.Context, to string, amount *big.Int) error
	// NativeBalance reports an account's native-asset balance.
	NativeBalance(ctx context.Context, account string) (*big.Int, error)
	// SecondaryBalance reports an account's secondary-asset balance.
	SecondaryBalance(ctx context.Context, account string) (*big.Int, error)
	// PaymentBalance reports an account's payment-asset balance.
	PaymentBalance(ctx context.Context, account string) (*big.Int, error)
}

func validAmount(amount *big.Int) bool {
	return amount != nil && amount.Sign() > 0
}
