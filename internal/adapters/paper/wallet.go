// Package paper provides a simulated wallet and swap venue. Fills are priced from the
// live oracle so paper results track the market.
package paper

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"solTradeBot/internal/ports"
)

// lamportPlaces is the SOL precision on chain.
const lamportPlaces = 9

var dustTolerance = decimal.New(1, -9)

// Wallet is an in-memory ledger of SOL and token balances.
type Wallet struct {
	address string

	mu     sync.Mutex
	sol    decimal.Decimal
	tokens map[string]decimal.Decimal
}

func NewWallet(address string, initialSOL float64) *Wallet {
	return &Wallet{
		address: address,
		sol:     decimal.NewFromFloat(initialSOL).Round(lamportPlaces),
		tokens:  make(map[string]decimal.Decimal),
	}
}

func (w *Wallet) Address() string { return w.address }

func (w *Wallet) BalanceSOL(ctx context.Context) (float64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sol.InexactFloat64(), nil
}

// TokenBalance returns the paper holding of token.
func (w *Wallet) TokenBalance(token string) float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tokens[token].InexactFloat64()
}

// exchange debits one side and credits the other atomically. The SOL leg uses token "".
func (w *Wallet) exchange(debitToken string, debit decimal.Decimal, creditToken string, credit decimal.Decimal) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	have := w.balance(debitToken)
	// Amounts round-trip through float64, so a full token exit can miss the holding by an ulp either way.
	if debitToken != "" && debit.Sub(have).Abs().LessThanOrEqual(have.Mul(dustTolerance)) {
		debit = have
	}
	if have.LessThan(debit) {
		return fmt.Errorf("need %s, have %s: %w", debit, have, ports.ErrInsufficientFunds)
	}
	w.set(debitToken, have.Sub(debit))
	w.set(creditToken, w.balance(creditToken).Add(credit))
	return nil
}

func (w *Wallet) balance(token string) decimal.Decimal {
	if token == "" {
		return w.sol
	}
	return w.tokens[token]
}

func (w *Wallet) set(token string, v decimal.Decimal) {
	if token == "" {
		w.sol = v
		return
	}
	if v.IsZero() {
		delete(w.tokens, token)
		return
	}
	w.tokens[token] = v
}
