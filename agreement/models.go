// Package agreement implements the oracle-settled two-party agreement
// lifecycle: a deposit becomes a priced agreement through an asynchronous
// pricing callback, a counterparty enters and executes it, and a delayed
// settlement callback distributes funds.
package agreement

import (
	"math/big"
	"time"

	"golang.org/x/crypto/sha3"
)

// Fixed-point scaling. The externally reported price is converted into
// secondary-asset units with integer arithmetic only:
//
//	transferAmount = raw * PrecisionScale * deposit / OneUnit
//
// Division truncates. Substituting floating point here would change
// settlement amounts.
var (
	// PrecisionScale is applied to reported prices to avoid floating point.
	PrecisionScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(10), nil)
	// OneUnit is the number of base units in one native-value unit.
	OneUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
)

const (
	// ValidPeriod is how long a priced agreement stays open for entry.
	ValidPeriod = 24 * time.Hour
	// SettlementDelay is how long after entry the settlement callback fires.
	SettlementDelay = 30 * 24 * time.Hour

	// CallbackInitialize and CallbackSettle name the two callback entry
	// points oracle requests are addressed to.
	CallbackInitialize = "agreement.initialize"
	CallbackSettle     = "agreement.settle"
)

// PendingAgreement holds a deposit awaiting its pricing callback. Keyed by
// the pricing request's correlation ID and consumed exactly once.
type PendingAgreement struct {
	CorrelationID string
	Party1        string
	Amount        *big.Int
	Premium       *big.Int
}

// Agreement is a priced agreement. Keyed by DeriveKey(Party1, Amount,
// Premium); a stored row always has Amount > 0, so row presence is the
// existence marker.
type Agreement struct {
	Key            []byte
	Party1         string
	Party2         string
	Amount         *big.Int
	TransferAmount *big.Int
	Premium        *big.Int
	ExpiresAt      time.Time
	Executed       bool
}

// PendingSettlement maps a settlement request's correlation ID to the
// agreement it will settle.
type PendingSettlement struct {
	CorrelationID string
	AgreementKey  []byte
}

// DeriveKey computes the agreement key: Keccak-256 over party1's identity
// bytes followed by amount and premium as 32-byte big-endian words. The key
// deliberately carries no sequence counter, so two flows for the same
// (party1, amount, premium) triple collide and re-initialization is rejected.
func DeriveKey(party1 string, amount, premium *big.Int) []byte {
	var amountWord, premiumWord [32]byte
	if amount != nil {
		amount.FillBytes(amountWord[:])
	}
	if premium != nil {
		premium.FillBytes(premiumWord[:])
	}

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(party1))
	h.Write(amountWord[:])
	h.Write(premiumWord[:])
	return h.Sum(nil)
}

// ComputeTransferAmount converts a reported raw price and a native deposit
// into secondary-asset units. Truncating integer division.
func ComputeTransferAmount(raw, deposit *big.Int) *big.Int {
	out := new(big.Int).Mul(raw, PrecisionScale)
	out.Mul(out, deposit)
	return out.Quo(out, OneUnit)
}
